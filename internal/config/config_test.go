package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("GEMINI_API_KEY", " key ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiTextModel)
	assert.Equal(t, "gemini-2.5-flash-image", cfg.GeminiImageModel)
	assert.Equal(t, 240*time.Second, cfg.RequestTimeout())
	assert.Equal(t, int64(200<<20), cfg.MaxUploadBytes())
	assert.Equal(t, time.Hour, cfg.SessionTTL())
	assert.True(t, cfg.PreferIPv4)
	assert.Error(t, cfg.RequireTelegram())
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	assert.EqualError(t, err, "GEMINI_API_KEY is required")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gemini_api_key: from-file\nmax_concurrent: 9\nlog_level: DEBUG\nweb_addr: \":9000\"\n"), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("MAX_CONCURRENT", "2")
	t.Setenv("PREFER_IPV4", "false")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tg")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.GeminiAPIKey)
	assert.Equal(t, 2, cfg.MaxConcurrent)
	assert.Equal(t, ":9000", cfg.WebAddr)
	assert.False(t, cfg.PreferIPv4)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.NoError(t, cfg.RequireTelegram())
}

func TestLoadClampsInvalidNumbers(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("MAX_CONCURRENT", "0")
	t.Setenv("SESSION_TTL_MINUTES", "-5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.MaxConcurrent)
	assert.Equal(t, 60, cfg.SessionTTLMinutes)
}
