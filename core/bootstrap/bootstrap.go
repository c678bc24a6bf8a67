// Package bootstrap wires the shared infrastructure a menu bot needs before
// it can serve updates: logging, the session registry, and optionally a
// database for poll archives.
package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/menus/core/config"
	"github.com/m3rciful/menus/core/logger"
	"github.com/m3rciful/menus/core/session"
	corestorage "github.com/m3rciful/menus/core/storage"
)

// Options control the generic bootstrap pipeline shared between bots.
// Database is optional; leave it nil to run without persistence.
type Options struct {
	Config   *coreconfig.Config
	Database *corestorage.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(corestorage.Config) (*sqlx.DB, error)
	Migrate    func(corestorage.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// DB is nil when no database was configured.
type Result struct {
	DB       *sqlx.DB
	Sessions *session.Registry
}

// Run initializes the logger, builds the session registry from config, and,
// when a database is configured, connects and applies migrations.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	menu := opts.Config.Menu
	registry := session.NewRegistry(session.Policy{
		PerUser:      menu.SessionsPerUser,
		PerChannel:   menu.SessionsPerChannel,
		PerGuild:     menu.SessionsPerGuild,
		AllowRestore: menu.AllowSessionRestore,
		HistoryLimit: menu.HistoryCacheLimit,
	})

	result := &Result{Sessions: registry}
	if opts.Database == nil {
		return result, nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = corestorage.Connect
	}
	db, err := connect(*opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = corestorage.RunMigrations
	}
	if err := migrate(*opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	result.DB = db
	return result, nil
}
