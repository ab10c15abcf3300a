package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("API_ID", "12345")
	t.Setenv("API_HASH", "abcdef")
	t.Setenv("BOT_TOKEN", "123:token")
	t.Setenv("OWNER_ID", "1000")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.APIID)
	assert.Equal(t, int64(1000), cfg.OwnerID)
	assert.Equal(t, "media_relay", cfg.SessionName)
	assert.Equal(t, "session.db", cfg.DBPath)
	assert.Equal(t, int64(1<<30), cfg.MaxFileSize)
	assert.Equal(t, "0.0.0.0:5000", cfg.Web.BindAddress)
	assert.Equal(t, 30*time.Second, cfg.Web.ShutdownTimeout)
	assert.True(t, cfg.TelemetryEnabled)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	t.Setenv("API_ID", "")
	t.Setenv("API_HASH", "")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("OWNER_ID", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsNonPositiveCeiling(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_FILE_SIZE", "0")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			assert.Equal(t, tt.want, cfg.SlogLevel())
		})
	}
}
