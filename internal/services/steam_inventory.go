package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/codyseavey/inventory-valuator/internal/models"
)

const (
	DefaultSteamBaseURL   = "https://steamcommunity.com"
	DefaultInventoryAppID = 730
	DefaultInventoryCtxID = "2"
	DefaultInventoryCount = 1000
)

type SteamInventoryConfig struct {
	BaseURL   string
	AppID     int
	ContextID string
	Count     int
}

// SteamInventoryService downloads account inventories from the Steam
// Community inventory endpoint.
type SteamInventoryService struct {
	client    *http.Client
	baseURL   string
	appID     int
	contextID string
	count     int
	logger    *zap.Logger
}

// NewSteamInventoryService builds a fetcher. client should send through the
// shared SteamTransport.
func NewSteamInventoryService(client *http.Client, cfg SteamInventoryConfig, logger *zap.Logger) *SteamInventoryService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSteamBaseURL
	}
	if cfg.AppID <= 0 {
		cfg.AppID = DefaultInventoryAppID
	}
	if cfg.ContextID == "" {
		cfg.ContextID = DefaultInventoryCtxID
	}
	if cfg.Count <= 0 {
		cfg.Count = DefaultInventoryCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SteamInventoryService{
		client:    client,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		appID:     cfg.AppID,
		contextID: cfg.ContextID,
		count:     cfg.Count,
		logger:    logger.Named("SteamInventory"),
	}
}

// FetchInventory fetches the configured app/context inventory.
func (s *SteamInventoryService) FetchInventory(ctx context.Context, steamID string) (*models.SteamInventoryResponse, error) {
	return s.FetchInventoryFor(ctx, steamID, s.appID, s.contextID)
}

// FetchInventoryFor fetches one app/context inventory of an account.
//
// A nil response with a nil error means the inventory is absent: private,
// unknown or reported as failed by Steam. ErrUpstreamThrottled is returned
// when Steam kept answering 429.
func (s *SteamInventoryService) FetchInventoryFor(ctx context.Context, steamID string, appID int, contextID string) (*models.SteamInventoryResponse, error) {
	if appID <= 0 {
		appID = s.appID
	}
	if contextID == "" {
		contextID = s.contextID
	}

	reqURL := fmt.Sprintf("%s/inventory/%s/%d/%s/?l=english&count=%d",
		s.baseURL, url.PathEscape(steamID), appID, url.PathEscape(contextID), s.count)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inventory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("inventory %s: %w", steamID, ErrUpstreamThrottled)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		s.logger.Info("Inventory not available",
			zap.String("steam_id", steamID),
			zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	var inventory models.SteamInventoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&inventory); err != nil {
		return nil, fmt.Errorf("failed to decode inventory: %w", err)
	}

	if inventory.Success != 1 {
		s.logger.Info("Steam reported inventory failure",
			zap.String("steam_id", steamID),
			zap.Int("success", inventory.Success))
		return nil, nil
	}

	if inventory.Assets == nil {
		inventory.Assets = []models.SteamAsset{}
	}
	if inventory.Descriptions == nil {
		inventory.Descriptions = []models.SteamDescription{}
	}

	s.logger.Debug("Fetched inventory",
		zap.String("steam_id", steamID),
		zap.Int("app_id", appID),
		zap.Int("assets", len(inventory.Assets)),
		zap.Int("descriptions", len(inventory.Descriptions)))

	return &inventory, nil
}
