package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Monitor.FastInterval)
	assert.Equal(t, 3*time.Hour, cfg.Monitor.MeteredInterval)
	assert.Equal(t, "TQBR", cfg.Providers.MOEX.Board)
	assert.Equal(t, 800, cfg.Providers.TwelveData.DailyLimit)
	assert.Equal(t, 100, cfg.Providers.TwelveData.Reserve)
	assert.Equal(t, 8, cfg.Providers.TwelveData.ChunkSize)
	assert.Equal(t, 8, cfg.Providers.TwelveData.MaxRequestsPerMinute)
	assert.False(t, cfg.Notify.Telegram.Enabled)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, ":8090", cfg.Server.Listen)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	data := []byte(`
storage:
  path: /tmp/watch.db
monitor:
  fast_interval: 15s
providers:
  twelvedata:
    api_key: secret-key
    daily_limit: 400
notify:
  telegram:
    enabled: true
    token: bot-token
logging:
  level: debug
`)
	err := os.WriteFile(cfgPath, data, 0o644)
	require.NoError(t, err)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/watch.db", cfg.Storage.Path)
	assert.Equal(t, 15*time.Second, cfg.Monitor.FastInterval)
	assert.Equal(t, "secret-key", cfg.Providers.TwelveData.APIKey)
	assert.Equal(t, 400, cfg.Providers.TwelveData.DailyLimit)
	assert.Equal(t, 100, cfg.Providers.TwelveData.Reserve, "unlisted keys keep defaults")
	assert.True(t, cfg.Notify.Telegram.Enabled)
	assert.Equal(t, "bot-token", cfg.Notify.Telegram.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STOCKWATCH_LOGGING_LEVEL", "error")
	t.Setenv("STOCKWATCH_SERVER_LISTEN", ":7070")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, ":7070", cfg.Server.Listen)
}
