package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://steamcommunity.com", cfg.Steam.BaseURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Steam.MinInterval)
	assert.Equal(t, 3*time.Second, cfg.Steam.RetryDelay)
	assert.Equal(t, 3, cfg.Steam.MaxAttempts)
	assert.Equal(t, 730, cfg.Steam.AppID)
	assert.Equal(t, "2", cfg.Steam.ContextID)
	assert.True(t, cfg.Valuation.NoiseThreshold.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, 6*time.Hour, cfg.Revalue.FailureBackoff)
}

func TestValuationTimeout(t *testing.T) {
	t.Run("derived from a full inventory", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		// 1001 slots of 1.5s plus a minute
		assert.Equal(t, 26*time.Minute+1500*time.Millisecond, cfg.Valuation.Timeout)
	})

	t.Run("floor for small inventories", func(t *testing.T) {
		t.Setenv("STEAM_INVENTORY_COUNT", "50")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 10*time.Minute, cfg.Valuation.Timeout)
	})

	t.Run("explicit value wins", func(t *testing.T) {
		t.Setenv("VALUATION_TIMEOUT", "45m")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 45*time.Minute, cfg.Valuation.Timeout)
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STEAM_MIN_INTERVAL", "250ms")
	t.Setenv("STEAM_MAX_ATTEMPTS", "5")
	t.Setenv("STEAM_BASE_URL", "http://localhost:1234/")
	t.Setenv("VALUATION_NOISE_THRESHOLD", "0.05")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Steam.MinInterval)
	assert.Equal(t, 5, cfg.Steam.MaxAttempts)
	assert.Equal(t, "http://localhost:1234", cfg.Steam.BaseURL)
	assert.True(t, cfg.Valuation.NoiseThreshold.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "port: \"7070\"\nsteam:\n  app_id: 440\n  context_id: \"6\"\nrevalue:\n  batch_size: 9\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, 440, cfg.Steam.AppID)
	assert.Equal(t, "6", cfg.Steam.ContextID)
	assert.Equal(t, 9, cfg.Revalue.BatchSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("bad threshold", func(t *testing.T) {
		t.Setenv("VALUATION_NOISE_THRESHOLD", "abc")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("zero attempts", func(t *testing.T) {
		t.Setenv("STEAM_MAX_ATTEMPTS", "0")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})
}
