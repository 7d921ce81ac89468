package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codyseavey/inventory-valuator/internal/metrics"
	"github.com/codyseavey/inventory-valuator/internal/models"
)

const (
	DefaultValuationTimeout = 10 * time.Minute
	DefaultPriceConcurrency = 4
)

// DefaultNoiseThreshold is the item value at or below which an item is left
// out of a valuation.
func DefaultNoiseThreshold() decimal.Decimal {
	return decimal.New(1, -2)
}

type InventoryFetcher interface {
	FetchInventory(ctx context.Context, steamID string) (*models.SteamInventoryResponse, error)
}

type PriceResolver interface {
	GetItemPrice(ctx context.Context, marketHashName string) (decimal.NullDecimal, error)
}

type ValuationRecorder interface {
	Upsert(ctx context.Context, steamID string, total decimal.Decimal, items []models.ValuationItem, valuedAt time.Time) (*models.Valuation, error)
}

type ValuationConfig struct {
	NoiseThreshold   decimal.Decimal
	Timeout          time.Duration
	PriceConcurrency int
}

// ValuationService values an account's inventory and records the result.
type ValuationService struct {
	inventory      InventoryFetcher
	prices         PriceResolver
	store          ValuationRecorder
	noiseThreshold decimal.Decimal
	timeout        time.Duration
	concurrency    int
	logger         *zap.Logger
}

func NewValuationService(inventory InventoryFetcher, prices PriceResolver, store ValuationRecorder, cfg ValuationConfig, logger *zap.Logger) *ValuationService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultValuationTimeout
	}
	if cfg.PriceConcurrency < 1 {
		cfg.PriceConcurrency = DefaultPriceConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValuationService{
		inventory:      inventory,
		prices:         prices,
		store:          store,
		noiseThreshold: cfg.NoiseThreshold,
		timeout:        cfg.Timeout,
		concurrency:    cfg.PriceConcurrency,
		logger:         logger.Named("ValuationService"),
	}
}

// pricedLine is one distinct marketable item awaiting a price.
type pricedLine struct {
	name   string
	amount int
	price  decimal.NullDecimal
}

// ValueAccount fetches the inventory of steamID, prices every distinct
// marketable item and replaces the stored valuation of the account.
// Nothing is stored when any step fails.
func (s *ValuationService) ValueAccount(ctx context.Context, steamID string) (*models.ValuationResult, error) {
	start := time.Now()
	result, err := s.valueAccount(ctx, steamID)
	metrics.ValuationsTotal.WithLabelValues(valuationOutcome(err)).Inc()
	if err != nil {
		s.logger.Warn("Valuation failed", zap.String("steam_id", steamID), zap.Error(err))
		return nil, err
	}

	metrics.ValuationDuration.Observe(time.Since(start).Seconds())
	metrics.ValuationItemsIncluded.Observe(float64(len(result.Items)))
	s.logger.Info("Valued inventory",
		zap.String("steam_id", steamID),
		zap.String("total_usd", result.TotalValueUSD.StringFixed(2)),
		zap.Int("items", len(result.Items)),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

func (s *ValuationService) valueAccount(ctx context.Context, steamID string) (*models.ValuationResult, error) {
	if !models.IsValidSteamID64(steamID) {
		return nil, ErrInvalidAccountID
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	inventory, err := s.inventory.FetchInventory(ctx, steamID)
	if err != nil {
		return nil, fmt.Errorf("fetching inventory of %s: %w", steamID, err)
	}
	if inventory == nil {
		return nil, ErrInventoryInaccessible
	}

	lines := s.collectLines(steamID, inventory)
	if err := s.resolvePrices(ctx, lines); err != nil {
		return nil, fmt.Errorf("pricing inventory of %s: %w", steamID, err)
	}
	// A lookup can absorb a failure as "unavailable" just as time runs out;
	// a valuation finished past its deadline is discarded
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pricing inventory of %s: %w", steamID, err)
	}

	result := &models.ValuationResult{
		SteamID64:     steamID,
		TotalValueUSD: decimal.Zero,
		Items:         []models.ValuationResultItem{},
		ValuedAt:      time.Now().UTC(),
	}
	for _, line := range lines {
		if !line.price.Valid {
			continue
		}
		value := line.price.Decimal.Mul(decimal.NewFromInt(int64(line.amount)))
		if value.LessThanOrEqual(s.noiseThreshold) {
			continue
		}
		result.Items = append(result.Items, models.ValuationResultItem{
			MarketHashName: line.name,
			Amount:         line.amount,
			ValueUSD:       value,
		})
		result.TotalValueUSD = result.TotalValueUSD.Add(value)
	}

	if _, err := s.store.Upsert(ctx, steamID, result.TotalValueUSD, result.ToItems(), result.ValuedAt); err != nil {
		if !errors.Is(err, ErrPersistence) {
			err = fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return nil, err
	}

	return result, nil
}

// collectLines joins asset quantities to marketable descriptions. Each
// CorrelationKey yields at most one line.
func (s *ValuationService) collectLines(steamID string, inventory *models.SteamInventoryResponse) []*pricedLine {
	amounts := make(map[models.CorrelationKey]int, len(inventory.Assets))
	for _, asset := range inventory.Assets {
		qty, err := asset.Quantity()
		if err != nil {
			s.logger.Warn("Skipping asset with unparsable amount",
				zap.String("steam_id", steamID),
				zap.String("asset_id", asset.AssetID),
				zap.String("amount", asset.Amount))
			continue
		}
		amounts[asset.Key()] += qty
	}

	seen := make(map[models.CorrelationKey]bool, len(inventory.Descriptions))
	var lines []*pricedLine
	for _, desc := range inventory.Descriptions {
		if !desc.IsMarketable() {
			continue
		}
		key := desc.Key()
		if seen[key] {
			continue
		}
		amount, ok := amounts[key]
		if !ok || amount <= 0 {
			continue
		}
		seen[key] = true
		lines = append(lines, &pricedLine{name: desc.MarketHashName, amount: amount})
	}
	return lines
}

// resolvePrices looks up each distinct item name once, concurrently, and
// assigns the price to every line with that name. Each lookup still passes
// through the shared Steam rate limiter.
func (s *ValuationService) resolvePrices(ctx context.Context, lines []*pricedLine) error {
	byName := make(map[string][]*pricedLine, len(lines))
	var names []string
	for _, line := range lines {
		if _, ok := byName[line.name]; !ok {
			names = append(names, line.name)
		}
		byName[line.name] = append(byName[line.name], line)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, name := range names {
		g.Go(func() error {
			price, err := s.prices.GetItemPrice(gctx, name)
			if err != nil {
				return err
			}
			// Each goroutine owns the lines of its name
			for _, line := range byName[name] {
				line.price = price
			}
			return nil
		})
	}
	return g.Wait()
}

func valuationOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidAccountID):
		return "invalid"
	case errors.Is(err, ErrInventoryInaccessible):
		return "inaccessible"
	case errors.Is(err, ErrUpstreamThrottled):
		return "throttled"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "error"
	}
}
