package models

import (
	"encoding/xml"
	"time"

	"github.com/shopspring/decimal"
)

// ValuationExport is the portable form of a Valuation used by the
// JSON/XML/YAML import and export endpoints.
type ValuationExport struct {
	XMLName       xml.Name              `json:"-" yaml:"-" xml:"InventoryValuation"`
	SteamID64     string                `json:"steamId64" yaml:"steamId64" xml:"SteamId64"`
	TotalValueUSD decimal.Decimal       `json:"totalValueUsd" yaml:"totalValueUsd" xml:"TotalValueUsd"`
	CreatedAt     time.Time             `json:"createdAt" yaml:"createdAt" xml:"CreatedAt"`
	Items         []ValuationItemExport `json:"items" yaml:"items" xml:"Items>Item"`
}

type ValuationItemExport struct {
	MarketHashName string           `json:"marketHashName" yaml:"marketHashName" xml:"MarketHashName"`
	Amount         int              `json:"amount" yaml:"amount" xml:"Amount"`
	ValueUSD       *decimal.Decimal `json:"valueUsd" yaml:"valueUsd" xml:"ValueUsd,omitempty"`
}

// ImportRequest carries an encoded document in the body of an import call
type ImportRequest struct {
	Data string `json:"data" binding:"required"`
}

// ImportExportResponse is the envelope used by every import/export endpoint
type ImportExportResponse struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewValuationExport flattens a stored valuation.
func NewValuationExport(v Valuation) ValuationExport {
	out := ValuationExport{
		SteamID64:     v.SteamID64,
		TotalValueUSD: v.TotalValueUSD,
		CreatedAt:     v.CreatedAt.UTC(),
		Items:         make([]ValuationItemExport, 0, len(v.Items)),
	}
	for _, it := range v.Items {
		item := ValuationItemExport{
			MarketHashName: it.MarketHashName,
			Amount:         it.Amount,
		}
		if it.ValueUSD.Valid {
			value := it.ValueUSD.Decimal
			item.ValueUSD = &value
		}
		out.Items = append(out.Items, item)
	}
	return out
}

// ToValuation converts an imported record into a storable valuation (ID unset).
func (e ValuationExport) ToValuation() Valuation {
	v := Valuation{
		SteamID64:     e.SteamID64,
		TotalValueUSD: e.TotalValueUSD,
		CreatedAt:     e.CreatedAt,
		Items:         make([]ValuationItem, 0, len(e.Items)),
	}
	for _, it := range e.Items {
		item := ValuationItem{
			MarketHashName: it.MarketHashName,
			Amount:         it.Amount,
		}
		if it.ValueUSD != nil {
			item.ValueUSD = decimal.NewNullDecimal(*it.ValueUSD)
		}
		v.Items = append(v.Items, item)
	}
	return v
}
