// Package app wires configuration into the services shared by the server and
// the valuectl command.
package app

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codyseavey/inventory-valuator/internal/config"
	"github.com/codyseavey/inventory-valuator/internal/database"
	"github.com/codyseavey/inventory-valuator/internal/services"
)

type App struct {
	DB        *gorm.DB
	Transport *services.SteamTransport
	Inventory *services.SteamInventoryService
	Market    *services.SteamMarketService
	Profiles  *services.SteamProfileResolver
	Store     *services.ValuationStore
	Valuation *services.ValuationService
	Worker    *services.RevaluationWorker
}

// New opens the database and builds every service. All Steam clients share
// one transport so the request spacing holds across them.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.Open(cfg.DBPath, logger.Named("Database"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	transport := services.NewSteamTransport(nil, services.SteamTransportConfig{
		MinInterval:     cfg.Steam.MinInterval,
		RetryDelay:      cfg.Steam.RetryDelay,
		MaxAttempts:     cfg.Steam.MaxAttempts,
		ResponseTimeout: cfg.Steam.HTTPTimeout,
	}, logger)
	client := transport.Client()

	inventory := services.NewSteamInventoryService(client, services.SteamInventoryConfig{
		BaseURL:   cfg.Steam.BaseURL,
		AppID:     cfg.Steam.AppID,
		ContextID: cfg.Steam.ContextID,
		Count:     cfg.Steam.InventoryCount,
	}, logger)

	market := services.NewSteamMarketService(client, services.SteamMarketConfig{
		BaseURL:   cfg.Steam.BaseURL,
		AppID:     cfg.Steam.AppID,
		CacheSize: cfg.Steam.PriceCacheSize,
		CacheTTL:  cfg.Steam.PriceCacheTTL,
	}, logger)

	profiles := services.NewSteamProfileResolver(client, cfg.Steam.BaseURL, logger)
	store := services.NewValuationStore(db, logger)

	valuation := services.NewValuationService(inventory, market, store, services.ValuationConfig{
		NoiseThreshold:   cfg.Valuation.NoiseThreshold,
		Timeout:          cfg.Valuation.Timeout,
		PriceConcurrency: cfg.Valuation.PriceConcurrency,
	}, logger)

	worker := services.NewRevaluationWorker(valuation, store, services.RevaluationConfig{
		Interval:       cfg.Revalue.Interval,
		StaleAfter:     cfg.Revalue.StaleAfter,
		BatchSize:      cfg.Revalue.BatchSize,
		FailureBackoff: cfg.Revalue.FailureBackoff,
	}, logger)

	return &App{
		DB:        db,
		Transport: transport,
		Inventory: inventory,
		Market:    market,
		Profiles:  profiles,
		Store:     store,
		Valuation: valuation,
		Worker:    worker,
	}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
