// Package config loads runtime settings from defaults, an optional YAML file
// (CONFIG_PATH) and environment variables, in increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port             string
	DBPath           string
	CORSOrigins      []string
	FrontendDistPath string

	LogLevel  string
	LogFormat string

	Steam     SteamConfig
	Valuation ValuationConfig
	Revalue   RevalueConfig
}

// SteamConfig controls every outbound call to Steam.
type SteamConfig struct {
	BaseURL        string
	MinInterval    time.Duration
	RetryDelay     time.Duration
	MaxAttempts    int
	HTTPTimeout    time.Duration
	AppID          int
	ContextID      string
	InventoryCount int
	PriceCacheSize int
	PriceCacheTTL  time.Duration
}

type ValuationConfig struct {
	NoiseThreshold   decimal.Decimal
	Timeout          time.Duration
	PriceConcurrency int
}

// RevalueConfig drives the background worker. An Interval of zero disables
// periodic refreshes; queued refreshes still run.
type RevalueConfig struct {
	Interval       time.Duration
	StaleAfter     time.Duration
	BatchSize      int
	FailureBackoff time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "./inventory_valuator.db")
	v.SetDefault("cors_allowed_origins", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("frontend_dist_path", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("steam.base_url", "https://steamcommunity.com")
	v.SetDefault("steam.min_interval", 1500*time.Millisecond)
	v.SetDefault("steam.retry_delay", 3*time.Second)
	v.SetDefault("steam.max_attempts", 3)
	v.SetDefault("steam.http_timeout", 15*time.Second)
	v.SetDefault("steam.app_id", 730)
	v.SetDefault("steam.context_id", "2")
	v.SetDefault("steam.inventory_count", 1000)

	v.SetDefault("price.cache_size", 512)
	v.SetDefault("price.cache_ttl", 10*time.Minute)
	v.SetDefault("price.concurrency", 4)

	v.SetDefault("valuation.noise_threshold", "0.01")
	// Zero derives the timeout from the inventory size and Steam spacing
	v.SetDefault("valuation.timeout", 0)

	v.SetDefault("revalue.interval", 6*time.Hour)
	v.SetDefault("revalue.stale_after", 24*time.Hour)
	v.SetDefault("revalue.batch_size", 5)
	v.SetDefault("revalue.failure_backoff", 6*time.Hour)
}

// Load reads configuration. Nested keys map to env vars with dots replaced by
// underscores, e.g. steam.min_interval -> STEAM_MIN_INTERVAL.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config_path"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	threshold, err := decimal.NewFromString(v.GetString("valuation.noise_threshold"))
	if err != nil {
		return nil, fmt.Errorf("invalid valuation.noise_threshold: %w", err)
	}

	cfg := &Config{
		Port:             v.GetString("port"),
		DBPath:           v.GetString("db_path"),
		CORSOrigins:      splitList(v.GetString("cors_allowed_origins")),
		FrontendDistPath: v.GetString("frontend_dist_path"),
		LogLevel:         v.GetString("log_level"),
		LogFormat:        v.GetString("log_format"),
		Steam: SteamConfig{
			BaseURL:        strings.TrimRight(v.GetString("steam.base_url"), "/"),
			MinInterval:    v.GetDuration("steam.min_interval"),
			RetryDelay:     v.GetDuration("steam.retry_delay"),
			MaxAttempts:    v.GetInt("steam.max_attempts"),
			HTTPTimeout:    v.GetDuration("steam.http_timeout"),
			AppID:          v.GetInt("steam.app_id"),
			ContextID:      v.GetString("steam.context_id"),
			InventoryCount: v.GetInt("steam.inventory_count"),
			PriceCacheSize: v.GetInt("price.cache_size"),
			PriceCacheTTL:  v.GetDuration("price.cache_ttl"),
		},
		Valuation: ValuationConfig{
			NoiseThreshold:   threshold,
			Timeout:          v.GetDuration("valuation.timeout"),
			PriceConcurrency: v.GetInt("price.concurrency"),
		},
		Revalue: RevalueConfig{
			Interval:       v.GetDuration("revalue.interval"),
			StaleAfter:     v.GetDuration("revalue.stale_after"),
			BatchSize:      v.GetInt("revalue.batch_size"),
			FailureBackoff: v.GetDuration("revalue.failure_backoff"),
		},
	}

	if cfg.Steam.MaxAttempts < 1 {
		return nil, fmt.Errorf("steam.max_attempts must be at least 1, got %d", cfg.Steam.MaxAttempts)
	}
	if cfg.Valuation.Timeout <= 0 {
		cfg.Valuation.Timeout = valuationTimeoutFor(cfg.Steam.InventoryCount, cfg.Steam.MinInterval)
	}
	if cfg.Valuation.PriceConcurrency < 1 {
		cfg.Valuation.PriceConcurrency = 1
	}
	if cfg.Valuation.NoiseThreshold.IsNegative() {
		return nil, fmt.Errorf("valuation.noise_threshold must not be negative")
	}

	return cfg, nil
}

// valuationTimeoutFor allows one limiter slot for the inventory request and
// one per item, plus a minute of slack, and never less than ten minutes.
func valuationTimeoutFor(inventoryCount int, minInterval time.Duration) time.Duration {
	timeout := time.Duration(inventoryCount+1)*minInterval + time.Minute
	if timeout < 10*time.Minute {
		timeout = 10 * time.Minute
	}
	return timeout
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
