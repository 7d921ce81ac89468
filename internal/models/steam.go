package models

import (
	"strconv"
	"strings"
)

// SteamInventoryResponse is the payload of
// GET /inventory/{steamId64}/{appId}/{contextId}
type SteamInventoryResponse struct {
	Assets              []SteamAsset       `json:"assets"`
	Descriptions        []SteamDescription `json:"descriptions"`
	TotalInventoryCount int                `json:"total_inventory_count"`
	Success             int                `json:"success"`
}

// SteamAsset is one owned item instance
type SteamAsset struct {
	AppID      int    `json:"appid"`
	ContextID  string `json:"contextid"`
	AssetID    string `json:"assetid"`
	ClassID    string `json:"classid"`
	InstanceID string `json:"instanceid"`
	Amount     string `json:"amount"`
}

// SteamDescription is the catalog entry for an item type
type SteamDescription struct {
	AppID          int    `json:"appid"`
	ClassID        string `json:"classid"`
	InstanceID     string `json:"instanceid"`
	MarketHashName string `json:"market_hash_name"`
	IconURL        string `json:"icon_url,omitempty"`
	Tradable       int    `json:"tradable"`
	Marketable     int    `json:"marketable"`
}

// SteamPriceResponse is the payload of GET /market/priceoverview/
type SteamPriceResponse struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price,omitempty"`
	MedianPrice string `json:"median_price,omitempty"`
	Volume      string `json:"volume,omitempty"`
}

// CorrelationKey joins asset quantities to description metadata.
type CorrelationKey struct {
	ClassID    string
	InstanceID string
}

func (a SteamAsset) Key() CorrelationKey {
	return CorrelationKey{ClassID: a.ClassID, InstanceID: a.InstanceID}
}

func (d SteamDescription) Key() CorrelationKey {
	return CorrelationKey{ClassID: d.ClassID, InstanceID: d.InstanceID}
}

// Quantity parses the string-encoded amount. A missing amount counts as 1.
func (a SteamAsset) Quantity() (int, error) {
	amount := strings.TrimSpace(a.Amount)
	if amount == "" {
		return 1, nil
	}
	return strconv.Atoi(amount)
}

// IsMarketable reports whether the description can be priced on the market.
func (d SteamDescription) IsMarketable() bool {
	return d.Marketable == 1 && strings.TrimSpace(d.MarketHashName) != ""
}

// IsValidSteamID64 checks the 17-digit numeric account identifier format.
func IsValidSteamID64(id string) bool {
	if len(id) != 17 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
