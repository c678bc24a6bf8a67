package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMenuAppliesDefaults(t *testing.T) {
	var m MenuConfig
	require.NoError(t, NormalizeMenu(&m))

	assert.Equal(t, 10, m.HistoryCacheLimit)
	assert.Equal(t, 10, m.SessionsPerUser)
	assert.Equal(t, 1, m.SessionsPerChannel)
	assert.Equal(t, 3, m.SessionsPerGuild)
	assert.Equal(t, 120*time.Second, m.Timeout())
	assert.Equal(t, time.Hour, m.SessionTimeout())
	assert.Equal(t, 350*time.Millisecond, m.ButtonDelay())
	assert.Equal(t, DefaultConfirmWords, m.ConfirmWords)
	assert.Equal(t, DefaultQuitWords, m.QuitWords)
	assert.Equal(t, DefaultButtons, m.Buttons)
}

func TestNormalizeMenuKeepsOverrides(t *testing.T) {
	m := MenuConfig{
		TimeoutSeconds: 30,
		QuitWords:      []string{"done"},
		Buttons:        []string{"a", "b", "c"},
	}
	require.NoError(t, NormalizeMenu(&m))

	assert.Equal(t, 30*time.Second, m.Timeout())
	assert.Equal(t, []string{"done"}, m.QuitWords)
	assert.Equal(t, []string{"a", "b", "c"}, m.Buttons)
}

func TestNormalizeMenuRejectsPartialButtonOverride(t *testing.T) {
	m := MenuConfig{Buttons: []string{"a", "b"}}
	assert.Error(t, NormalizeMenu(&m))

	m = MenuConfig{Buttons: []string{"a", "b", "c", "d", "e", "f"}}
	assert.Error(t, NormalizeMenu(&m))
}

func TestNormalizeMenuRejectsNegativeCaps(t *testing.T) {
	m := MenuConfig{SessionsPerUser: -1}
	assert.Error(t, NormalizeMenu(&m))
}

func TestNormalizeRequiresToken(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeRunModeDefaultsToLongpoll(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "x"}}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestNormalizeWebhookRequiresEndpoint(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "x", RunMode: "webhook"}}
	assert.Error(t, Normalize(cfg))

	cfg.Webhook = WebhookConfig{URL: "https://example.org/hook", Listen: "0.0.0.0", Port: 8443}
	assert.NoError(t, Normalize(cfg))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "test-token"
menu:
  timeout_seconds: 45
  quit_words: [bye]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-token", cfg.Telegram.Token)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, 45*time.Second, cfg.Menu.Timeout())
	assert.Equal(t, []string{"bye"}, cfg.Menu.QuitWords)
	assert.Equal(t, DefaultButtons, cfg.Menu.Buttons)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadSectionDecodesOneBlock(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "x"
database:
  host: db.internal
  port: "5433"
`)

	var out struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	}
	require.NoError(t, LoadSection(path, "database", &out))
	assert.Equal(t, "db.internal", out.Host)
	assert.Equal(t, "5433", out.Port)
}

func TestLoadSectionMissingSectionLeavesZero(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "x"
`)
	var out struct {
		Host string `yaml:"host"`
	}
	require.NoError(t, LoadSection(path, "database", &out))
	assert.Empty(t, out.Host)
}
