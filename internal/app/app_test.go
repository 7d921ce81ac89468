package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codyseavey/inventory-valuator/internal/config"
)

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Steam: config.SteamConfig{
			BaseURL:        baseURL,
			MinInterval:    time.Millisecond,
			RetryDelay:     time.Millisecond,
			MaxAttempts:    1,
			HTTPTimeout:    time.Second,
			AppID:          730,
			ContextID:      "2",
			InventoryCount: 1000,
			PriceCacheSize: 16,
			PriceCacheTTL:  time.Minute,
		},
		Valuation: config.ValuationConfig{
			NoiseThreshold:   decimal.RequireFromString("0.01"),
			Timeout:          time.Minute,
			PriceConcurrency: 2,
		},
	}
}

func TestNewWiresServices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a, err := New(testConfig(t, srv.URL), zap.NewNop())
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	inv, err := a.Inventory.FetchInventory(context.Background(), "76561198000000001")
	require.NoError(t, err)
	assert.Nil(t, inv, "private inventories are absent")

	stats, err := a.Store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Valuations)
	assert.Zero(t, a.Worker.GetQueueSize())
}
