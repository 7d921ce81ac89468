package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/inventory-valuator/internal/metrics"
	"github.com/codyseavey/inventory-valuator/internal/models"
)

// ValuationStore persists the latest valuation per account. Every write of
// one account (header plus items) happens in a single transaction.
type ValuationStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewValuationStore(db *gorm.DB, logger *zap.Logger) *ValuationStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValuationStore{db: db, logger: logger.Named("ValuationStore")}
}

// Upsert creates or replaces the valuation of steamID. Total, timestamp and
// the whole item set are replaced; old items never survive.
func (s *ValuationStore) Upsert(ctx context.Context, steamID string, total decimal.Decimal, items []models.ValuationItem, valuedAt time.Time) (*models.Valuation, error) {
	var saved models.Valuation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := upsertValuation(tx, steamID, total, items, valuedAt)
		if err != nil {
			return err
		}
		saved = *v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.refreshGauges(ctx)
	return &saved, nil
}

func upsertValuation(tx *gorm.DB, steamID string, total decimal.Decimal, items []models.ValuationItem, valuedAt time.Time) (*models.Valuation, error) {
	header := models.Valuation{
		SteamID64:     steamID,
		TotalValueUSD: total,
		CreatedAt:     valuedAt,
		UpdatedAt:     time.Now(),
	}

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "steam_id64"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_value_usd", "created_at", "updated_at"}),
	}).Omit(clause.Associations).Create(&header).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert valuation header: %w", err)
	}

	// The conflict path does not report the existing row id
	if err := tx.Where("steam_id64 = ?", steamID).First(&header).Error; err != nil {
		return nil, fmt.Errorf("failed to reload valuation header: %w", err)
	}

	if err := tx.Where("valuation_id = ?", header.ID).Delete(&models.ValuationItem{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete previous items: %w", err)
	}

	rows := make([]models.ValuationItem, 0, len(items))
	for _, it := range items {
		rows = append(rows, models.ValuationItem{
			ValuationID:    header.ID,
			MarketHashName: it.MarketHashName,
			Amount:         it.Amount,
			ValueUSD:       it.ValueUSD,
		})
	}
	if len(rows) > 0 {
		if err := tx.Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to insert items: %w", err)
		}
	}

	header.Items = rows
	return &header, nil
}

// ExportAll returns every stored valuation with its items.
func (s *ValuationStore) ExportAll(ctx context.Context) ([]models.Valuation, error) {
	var valuations []models.Valuation
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("id").
		Find(&valuations).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return valuations, nil
}

// Get returns the valuation of one account or ErrValuationNotFound.
func (s *ValuationStore) Get(ctx context.Context, steamID string) (*models.Valuation, error) {
	var v models.Valuation
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("steam_id64 = ?", steamID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrValuationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return &v, nil
}

// ImportBatch upserts each record in its own transaction and returns how many
// were stored. Invalid or failing records are skipped and logged, so a bad
// record never discards the good ones.
func (s *ValuationStore) ImportBatch(ctx context.Context, records []models.Valuation) (int, error) {
	imported := 0
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return imported, err
		}

		if err := validateImportRecord(rec); err != nil {
			s.logger.Warn("Skipping invalid import record",
				zap.Int("index", i),
				zap.String("steam_id", rec.SteamID64),
				zap.Error(err))
			continue
		}

		valuedAt := rec.CreatedAt
		if valuedAt.IsZero() {
			valuedAt = time.Now().UTC()
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := upsertValuation(tx, rec.SteamID64, rec.TotalValueUSD, rec.Items, valuedAt)
			return err
		})
		if err != nil {
			s.logger.Error("Failed to import record",
				zap.Int("index", i),
				zap.String("steam_id", rec.SteamID64),
				zap.Error(err))
			continue
		}
		imported++
	}

	s.logger.Info("Import finished", zap.Int("imported", imported), zap.Int("records", len(records)))
	s.refreshGauges(ctx)
	return imported, nil
}

func validateImportRecord(v models.Valuation) error {
	if !models.IsValidSteamID64(v.SteamID64) {
		return ErrInvalidAccountID
	}
	if v.TotalValueUSD.IsNegative() {
		return errors.New("total value is negative")
	}
	for i, it := range v.Items {
		if strings.TrimSpace(it.MarketHashName) == "" {
			return fmt.Errorf("item %d has no market hash name", i)
		}
		if it.Amount <= 0 {
			return fmt.Errorf("item %d has non-positive amount %d", i, it.Amount)
		}
	}
	return nil
}

// ResetAll deletes every valuation and item and returns the number of
// valuations removed. An empty store is not an error.
func (s *ValuationStore) ResetAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.ValuationItem{}).Error; err != nil {
			return err
		}
		result := tx.Where("1 = 1").Delete(&models.Valuation{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if deleted > 0 {
		s.logger.Info("Reset valuations", zap.Int64("deleted", deleted))
	}
	s.refreshGauges(ctx)
	return deleted, nil
}

// Stale returns up to limit account ids whose valuation is older than
// olderThan, oldest first.
func (s *ValuationStore) Stale(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Valuation{}).
		Where("created_at < ?", olderThan).
		Order("created_at ASC").
		Limit(limit).
		Pluck("steam_id64", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return ids, nil
}

// Stats counts stored valuations and sums their totals.
func (s *ValuationStore) Stats(ctx context.Context) (models.ValuationStats, error) {
	var row struct {
		Valuations int64
		Total      decimal.Decimal
	}
	err := s.db.WithContext(ctx).
		Model(&models.Valuation{}).
		Select("COUNT(*) AS valuations, COALESCE(SUM(total_value_usd), 0) AS total").
		Scan(&row).Error
	if err != nil {
		return models.ValuationStats{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return models.ValuationStats{Valuations: row.Valuations, TotalValueUSD: row.Total}, nil
}

func (s *ValuationStore) refreshGauges(ctx context.Context) {
	stats, err := s.Stats(ctx)
	if err != nil {
		s.logger.Debug("Failed to refresh store gauges", zap.Error(err))
		return
	}
	metrics.StoredValuations.Set(float64(stats.Valuations))
	metrics.StoredValueUSD.Set(stats.TotalValueUSD.InexactFloat64())
}
