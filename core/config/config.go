package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// RateLimitConfig throttles per-user update processing.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// MenuConfig tunes the menu/session engine. Every field has a documented
// default applied by Normalize, so an empty block is valid.
type MenuConfig struct {
	// HistoryCacheLimit caps retained navigation-history entries per session.
	HistoryCacheLimit int `yaml:"history_cache_limit" envconfig:"MENU_HISTORY_CACHE_LIMIT"`

	// Occupancy caps for concurrent active sessions.
	SessionsPerUser    int `yaml:"sessions_per_user" envconfig:"MENU_SESSIONS_PER_USER"`
	SessionsPerChannel int `yaml:"sessions_per_channel" envconfig:"MENU_SESSIONS_PER_CHANNEL"`
	SessionsPerGuild   int `yaml:"sessions_per_guild" envconfig:"MENU_SESSIONS_PER_GUILD"`

	// SessionTimeoutSeconds is the hard ceiling on poll/session duration.
	SessionTimeoutSeconds int `yaml:"session_timeout_seconds" envconfig:"MENU_SESSION_TIMEOUT_SECONDS"`

	// AllowSessionRestore freezes sessions on close instead of killing them.
	AllowSessionRestore bool `yaml:"allow_session_restore" envconfig:"MENU_ALLOW_SESSION_RESTORE"`

	// ReplyAsDefault makes the first render a reply to the invoking message.
	ReplyAsDefault bool `yaml:"reply_as_default" envconfig:"MENU_REPLY_AS_DEFAULT"`

	// ButtonDelayMS paces consecutive reaction-button placements to stay
	// under platform rate limits.
	ButtonDelayMS int `yaml:"button_delay_ms" envconfig:"MENU_BUTTON_DELAY_MS"`

	// TimeoutSeconds is the per-menu default input-wait timeout.
	TimeoutSeconds int `yaml:"timeout_seconds" envconfig:"MENU_TIMEOUT_SECONDS"`

	// Text-menu vocabularies for implicit confirm/deny/cancel matching.
	ConfirmWords []string `yaml:"confirm_words" envconfig:"MENU_CONFIRM_WORDS"`
	DenyWords    []string `yaml:"deny_words" envconfig:"MENU_DENY_WORDS"`
	QuitWords    []string `yaml:"quit_words" envconfig:"MENU_QUIT_WORDS"`

	// Buttons are the default paginated-navigation glyphs, ordered
	// first/previous/stop/next/last. 3 values disable the jump buttons;
	// partial overwrites are not allowed.
	Buttons []string `yaml:"buttons" envconfig:"MENU_BUTTONS"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// Default vocabularies and glyphs used when the config omits them.
var (
	DefaultConfirmWords = []string{"y", "yes", "ok", "k", "kk", "ready", "rdy", "r", "confirm", "okay"}
	DefaultDenyWords    = []string{"n", "no", "deny", "negative", "back", "return"}
	DefaultQuitWords    = []string{"e", "exit", "q", "quit", "stop", "x", "cancel", "c"}
	DefaultButtons      = []string{"⏮️", "◀️", "⏹️", "▶️", "⏭️"}
)

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Menu      MenuConfig      `yaml:"menu"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadSection decodes one top-level YAML section of the config file into out
// and applies environment overrides. Bots use it for sections the core
// Config does not model, such as database settings.
func LoadSection(path, section string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if node, ok := raw[section]; ok {
		if err := node.Decode(out); err != nil {
			return fmt.Errorf("failed to decode section %q: %w", section, err)
		}
	}
	if err := envconfig.Process("", out); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Normalize validates required fields and fills documented defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	return NormalizeMenu(&cfg.Menu)
}

// NormalizeMenu applies menu defaults and validates overrides. Split out so
// library users without the Telegram runtime can reuse it directly.
func NormalizeMenu(m *MenuConfig) error {
	if m == nil {
		return fmt.Errorf("nil menu config")
	}
	if m.SessionsPerUser < 0 || m.SessionsPerChannel < 0 || m.SessionsPerGuild < 0 {
		return fmt.Errorf("menu session caps must be >= 0")
	}
	if m.HistoryCacheLimit <= 0 {
		m.HistoryCacheLimit = 10
	}
	if m.SessionsPerUser == 0 {
		m.SessionsPerUser = 10
	}
	if m.SessionsPerChannel == 0 {
		m.SessionsPerChannel = 1
	}
	if m.SessionsPerGuild == 0 {
		m.SessionsPerGuild = 3
	}
	if m.SessionTimeoutSeconds <= 0 {
		m.SessionTimeoutSeconds = 3600
	}
	if m.ButtonDelayMS <= 0 {
		m.ButtonDelayMS = 350
	}
	if m.TimeoutSeconds <= 0 {
		m.TimeoutSeconds = 120
	}
	if len(m.ConfirmWords) == 0 {
		m.ConfirmWords = append([]string(nil), DefaultConfirmWords...)
	}
	if len(m.DenyWords) == 0 {
		m.DenyWords = append([]string(nil), DefaultDenyWords...)
	}
	if len(m.QuitWords) == 0 {
		m.QuitWords = append([]string(nil), DefaultQuitWords...)
	}
	if len(m.Buttons) == 0 {
		m.Buttons = append([]string(nil), DefaultButtons...)
	}
	if len(m.Buttons) < 3 || len(m.Buttons) > 5 {
		return fmt.Errorf("menu.buttons must have 3 to 5 values to cover all default cases; partial overwrites are not allowed")
	}
	return nil
}

// ButtonDelay returns the configured pacing as a duration.
func (m *MenuConfig) ButtonDelay() time.Duration {
	return time.Duration(m.ButtonDelayMS) * time.Millisecond
}

// Timeout returns the per-menu default wait timeout as a duration.
func (m *MenuConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// SessionTimeout returns the hard session ceiling as a duration.
func (m *MenuConfig) SessionTimeout() time.Duration {
	return time.Duration(m.SessionTimeoutSeconds) * time.Second
}
