package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is one normalized entry of the price feed.
type PriceRecord struct {
	Category     Category        `json:"category"`
	SKU          string          `json:"sku"`
	Product      string          `json:"product"`
	Presentation string          `json:"presentation,omitempty"`
	Unit         string          `json:"unit,omitempty"`
	PriceUSD     decimal.Decimal `json:"price_usd"`
	PriceLocal   decimal.Decimal `json:"price_local"`
}

// Snapshot is the result of one feed refresh.
type Snapshot struct {
	Records   []PriceRecord   `json:"records"`
	Rate      decimal.Decimal `json:"rate"`
	Version   string          `json:"version"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Pack is a package size parsed from free text, e.g. "20L" is {20, "L"}.
type Pack struct {
	Size float64 `json:"size"`
	Unit string  `json:"unit"`
}
