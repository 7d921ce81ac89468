package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codyseavey/inventory-valuator/internal/models"
)

func TestParsePriceText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"$1.50", "1.5", true},
		{"$0.03", "0.03", true},
		{"$1,234.56", "1234.56", true},
		{"1.234,56€", "1234.56", true},
		{"0,03€", "0.03", true},
		{"12,5", "12.5", true},
		{"1,234", "1234", true},
		{"1,234,567", "1234567", true},
		{"1.234.567", "1234567", true},
		{"1.234", "1.234", true},
		{"0,03 pуб.", "0.03", true},
		{"$12", "12", true},
		{"", "0", false},
		{"free", "0", false},
		{"--", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			price, ok := ParsePriceText(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, decimal.RequireFromString(tt.expected).Equal(price), "got %s", price)
			}
		})
	}
}

// fakeMarket serves priceoverview responses keyed by market hash name.
func fakeMarket(t *testing.T, prices map[string]models.SteamPriceResponse, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/market/priceoverview/", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("currency"))
		assert.Equal(t, "730", r.URL.Query().Get("appid"))

		resp, ok := prices[r.URL.Query().Get("market_hash_name")]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestMarket(serverURL string) *SteamMarketService {
	return NewSteamMarketService(http.DefaultClient, SteamMarketConfig{BaseURL: serverURL}, zap.NewNop())
}

func TestGetItemPrice(t *testing.T) {
	var calls atomic.Int32
	server := fakeMarket(t, map[string]models.SteamPriceResponse{
		"AK-47 | Redline (Field-Tested)": {Success: true, LowestPrice: "$12.34", MedianPrice: "$12.00"},
		"Median Only":                    {Success: true, MedianPrice: "$0.75"},
		"Unparsable":                     {Success: true, LowestPrice: "n/a", MedianPrice: "--"},
		"Failed":                         {Success: false, LowestPrice: "$5.00"},
	}, &calls)
	defer server.Close()

	market := newTestMarket(server.URL)
	ctx := context.Background()

	price, err := market.GetItemPrice(ctx, "AK-47 | Redline (Field-Tested)")
	require.NoError(t, err)
	require.True(t, price.Valid)
	assert.True(t, decimal.RequireFromString("12.34").Equal(price.Decimal))

	price, err = market.GetItemPrice(ctx, "Median Only")
	require.NoError(t, err)
	require.True(t, price.Valid)
	assert.True(t, decimal.RequireFromString("0.75").Equal(price.Decimal))

	for _, name := range []string{"Unparsable", "Failed", "Unknown"} {
		price, err = market.GetItemPrice(ctx, name)
		require.NoError(t, err)
		assert.False(t, price.Valid, name)
	}
}

func TestGetItemPriceEmptyNameSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	server := fakeMarket(t, nil, &calls)
	defer server.Close()

	price, err := newTestMarket(server.URL).GetItemPrice(context.Background(), "  ")
	require.NoError(t, err)
	assert.False(t, price.Valid)
	assert.Zero(t, calls.Load())
}

func TestGetItemPriceCachesFoundPrices(t *testing.T) {
	var calls atomic.Int32
	server := fakeMarket(t, map[string]models.SteamPriceResponse{
		"Sticker": {Success: true, LowestPrice: "$0.10"},
		"Nothing": {Success: false},
	}, &calls)
	defer server.Close()

	market := newTestMarket(server.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		price, err := market.GetItemPrice(ctx, "Sticker")
		require.NoError(t, err)
		assert.True(t, price.Valid)
	}
	assert.Equal(t, int32(1), calls.Load())

	for i := 0; i < 2; i++ {
		_, err := market.GetItemPrice(ctx, "Nothing")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load(), "absent prices are not cached")
}

func TestGetItemPriceThrottledIsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	transport := NewSteamTransport(nil, SteamTransportConfig{
		MinInterval: time.Millisecond,
		RetryDelay:  time.Millisecond,
		MaxAttempts: 2,
	}, zap.NewNop())
	market := NewSteamMarketService(transport.Client(), SteamMarketConfig{BaseURL: server.URL}, zap.NewNop())

	price, err := market.GetItemPrice(context.Background(), "Case Key")
	require.NoError(t, err)
	assert.False(t, price.Valid)
}

func TestGetItemPriceCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestMarket(server.URL).GetItemPrice(ctx, "Case Key")
	assert.ErrorIs(t, err, context.Canceled)
}
