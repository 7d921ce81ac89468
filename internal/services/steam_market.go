package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/codyseavey/inventory-valuator/internal/metrics"
	"github.com/codyseavey/inventory-valuator/internal/models"
)

const (
	DefaultPriceCacheSize = 512
	DefaultPriceCacheTTL  = 10 * time.Minute

	steamCurrencyUSD = 1
)

type SteamMarketConfig struct {
	BaseURL   string
	AppID     int
	CacheSize int
	CacheTTL  time.Duration
}

// SteamMarketService resolves USD market prices by market hash name.
type SteamMarketService struct {
	client  *http.Client
	baseURL string
	appID   int
	cache   *expirable.LRU[string, decimal.Decimal] // market hash name -> found price
	logger  *zap.Logger
}

func NewSteamMarketService(client *http.Client, cfg SteamMarketConfig, logger *zap.Logger) *SteamMarketService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSteamBaseURL
	}
	if cfg.AppID <= 0 {
		cfg.AppID = DefaultInventoryAppID
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultPriceCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultPriceCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SteamMarketService{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		appID:   cfg.AppID,
		cache:   expirable.NewLRU[string, decimal.Decimal](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:  logger.Named("SteamMarket"),
	}
}

// GetItemPrice returns the current USD price of one unit. An invalid result
// means the price is unavailable; that is not an error. Only cancellation of
// ctx, or a deadline the lookup cannot meet, is reported as an error.
func (s *SteamMarketService) GetItemPrice(ctx context.Context, marketHashName string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(marketHashName) == "" {
		return decimal.NullDecimal{}, nil
	}

	if price, ok := s.cache.Get(marketHashName); ok {
		metrics.PriceLookupsTotal.WithLabelValues("cache_hit").Inc()
		return decimal.NewNullDecimal(price), nil
	}

	price, err := s.fetchPrice(ctx, marketHashName)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return decimal.NullDecimal{}, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return decimal.NullDecimal{}, err
		}
		// A throttled item is priced as unavailable so it does not fail the
		// whole valuation
		if errors.Is(err, ErrUpstreamThrottled) {
			s.logger.Warn("Price lookup throttled, treating as unavailable",
				zap.String("market_hash_name", marketHashName))
			metrics.PriceLookupsTotal.WithLabelValues("throttled").Inc()
			return decimal.NullDecimal{}, nil
		}
		s.logger.Warn("Price lookup failed",
			zap.String("market_hash_name", marketHashName),
			zap.Error(err))
		metrics.PriceLookupsTotal.WithLabelValues("missing").Inc()
		return decimal.NullDecimal{}, nil
	}

	if !price.Valid {
		metrics.PriceLookupsTotal.WithLabelValues("missing").Inc()
		return price, nil
	}

	s.cache.Add(marketHashName, price.Decimal)
	metrics.PriceLookupsTotal.WithLabelValues("found").Inc()
	return price, nil
}

func (s *SteamMarketService) fetchPrice(ctx context.Context, marketHashName string) (decimal.NullDecimal, error) {
	reqURL := fmt.Sprintf("%s/market/priceoverview/?currency=%d&appid=%d&market_hash_name=%s",
		s.baseURL, steamCurrencyUSD, s.appID, url.QueryEscape(marketHashName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("failed to fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return decimal.NullDecimal{}, ErrUpstreamThrottled
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		s.logger.Debug("Price overview returned non-success status",
			zap.String("market_hash_name", marketHashName),
			zap.Int("status", resp.StatusCode))
		return decimal.NullDecimal{}, nil
	}

	var overview models.SteamPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&overview); err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("failed to decode price overview: %w", err)
	}

	if !overview.Success {
		return decimal.NullDecimal{}, nil
	}

	if price, ok := ParsePriceText(overview.LowestPrice); ok {
		return decimal.NewNullDecimal(price), nil
	}
	if price, ok := ParsePriceText(overview.MedianPrice); ok {
		return decimal.NewNullDecimal(price), nil
	}
	return decimal.NullDecimal{}, nil
}

// ParsePriceText extracts a decimal amount from a localized price string
// such as "$1,234.56", "1.234,56€" or "0,03 pуб.".
//
// Only digits, commas and periods are kept. When both separators occur the
// last one is the decimal separator. A lone comma followed by exactly three
// digits, or repeated commas, is grouping; any other lone comma is decimal.
// Repeated periods are grouping; a lone period is decimal.
func ParsePriceText(text string) (decimal.Decimal, bool) {
	var b strings.Builder
	digits := 0
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == ',' || r == '.':
			b.WriteRune(r)
		}
	}
	if digits == 0 {
		return decimal.Zero, false
	}
	// Separators after the last digit belong to a currency suffix ("pуб.")
	cleaned := strings.TrimRight(b.String(), ",.")

	commas := strings.Count(cleaned, ",")
	periods := strings.Count(cleaned, ".")

	var decimalSep, groupSep string
	switch {
	case commas > 0 && periods > 0:
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			decimalSep, groupSep = ",", "."
		} else {
			decimalSep, groupSep = ".", ","
		}
	case commas > 1:
		groupSep = ","
	case commas == 1:
		if len(cleaned)-strings.Index(cleaned, ",")-1 == 3 {
			groupSep = ","
		} else {
			decimalSep = ","
		}
	case periods > 1:
		groupSep = "."
	case periods == 1:
		decimalSep = "."
	}

	if groupSep != "" {
		cleaned = strings.ReplaceAll(cleaned, groupSep, "")
	}
	if decimalSep != "" {
		if strings.Count(cleaned, decimalSep) > 1 {
			return decimal.Zero, false
		}
		cleaned = strings.Replace(cleaned, decimalSep, ".", 1)
	}

	if strings.HasPrefix(cleaned, ".") {
		cleaned = "0" + cleaned
	}
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}
