package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TRACKER_DATA_DIR", dir)
	t.Setenv("SECRET_KEY", "test-secret")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.Equal(t, 60*time.Minute, cfg.AccessTokenExpiry)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 60*time.Second, cfg.QuoteCacheTTL)
	assert.Equal(t, "@every 15s", cfg.PriceBroadcastSchedule)
	require.NotNil(t, cfg.Backup)
	assert.False(t, cfg.Backup.Enabled)
	assert.Equal(t, 30, cfg.Backup.RetentionDays)
	assert.Equal(t, filepath.Join(dir, "tracker.db"), cfg.TrackerDBPath())
	assert.Equal(t, filepath.Join(dir, "cache.db"), cfg.CacheDBPath())
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9100")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "15")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, ,http://b.example")
	t.Setenv("QUOTE_CACHE_TTL_SECONDS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenExpiry)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.QuoteCacheTTL)
}

func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("TRACKER_DATA_DIR", t.TempDir())
	t.Setenv("SECRET_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET_KEY")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SecretKey:         "s",
			JWTAlgorithm:      "HS256",
			AccessTokenExpiry: time.Minute,
			Backup:            &BackupConfig{},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		cfg := valid()
		cfg.JWTAlgorithm = "RS256"
		assert.Error(t, cfg.Validate())
	})

	t.Run("backup without bucket", func(t *testing.T) {
		cfg := valid()
		cfg.Backup.Enabled = true
		assert.Error(t, cfg.Validate())
	})

	t.Run("backup with bucket", func(t *testing.T) {
		cfg := valid()
		cfg.Backup.Enabled = true
		cfg.Backup.Bucket = "tracker-backups"
		assert.NoError(t, cfg.Validate())
	})
}
