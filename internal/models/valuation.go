package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// API and export consumers expect JSON numbers, not quoted strings
	decimal.MarshalJSONWithoutQuotes = true
}

// Valuation is the latest computed value of one account's inventory.
// There is at most one row per SteamID64.
type Valuation struct {
	ID            uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	SteamID64     string          `json:"steam_id64" gorm:"column:steam_id64;not null;uniqueIndex:idx_valuation_steam_id"`
	TotalValueUSD decimal.Decimal `json:"total_value_usd" gorm:"column:total_value_usd;type:decimal(20,8);not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"index"` // time of the last computation
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []ValuationItem `json:"items" gorm:"foreignKey:ValuationID;constraint:OnDelete:CASCADE"`
}

func (Valuation) TableName() string {
	return "inventory_valuations"
}

// ValuationItem is one priced line of a Valuation
type ValuationItem struct {
	ID             uint                `json:"id" gorm:"primaryKey;autoIncrement"`
	ValuationID    uint                `json:"valuation_id" gorm:"not null;index"`
	MarketHashName string              `json:"market_hash_name" gorm:"not null"`
	Amount         int                 `json:"amount" gorm:"not null"`
	ValueUSD       decimal.NullDecimal `json:"value_usd" gorm:"column:value_usd;type:decimal(20,8)"`
}

func (ValuationItem) TableName() string {
	return "inventory_valuation_items"
}

// ValuationResult is returned by a valuation run
type ValuationResult struct {
	SteamID64     string                `json:"steamId64"`
	TotalValueUSD decimal.Decimal       `json:"totalValueUSD"`
	Items         []ValuationResultItem `json:"items"`
	ValuedAt      time.Time             `json:"valuedAt"`
}

type ValuationResultItem struct {
	MarketHashName string          `json:"marketHashName"`
	Amount         int             `json:"amount"`
	ValueUSD       decimal.Decimal `json:"valueUSD"`
}

// ToItems converts result lines into storable items.
func (r *ValuationResult) ToItems() []ValuationItem {
	items := make([]ValuationItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, ValuationItem{
			MarketHashName: it.MarketHashName,
			Amount:         it.Amount,
			ValueUSD:       decimal.NewNullDecimal(it.ValueUSD),
		})
	}
	return items
}

// ValuationStats summarises the store
type ValuationStats struct {
	Valuations    int64           `json:"valuations"`
	TotalValueUSD decimal.Decimal `json:"total_value_usd"`
}
