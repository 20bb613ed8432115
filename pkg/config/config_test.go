package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENCRYPTION_KEY", "")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, 5, cfg.SchedulerIntervalMinutes)
	assert.Empty(t, cfg.EncryptionKey)
}

func TestLoad_DerivesEncryptionKeyFromJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "super-secret")
	t.Setenv("ENCRYPTION_KEY", "")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.EncryptionKey)
	assert.Len(t, cfg.EncryptionKey, 64)
}

func TestLoad_AllowedOriginsCSV(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}
