package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is a line requested by the shopping session. Every field is
// optional free text.
type CartItem struct {
	SKU          string `json:"sku,omitempty"`
	Name         string `json:"name,omitempty"`
	Presentation string `json:"presentation,omitempty"`
	QuantityText string `json:"quantity,omitempty"`
}

type Customer struct {
	Name   string `json:"name"`
	Region string `json:"region"`
	City   string `json:"city"`
}

type QuoteLine struct {
	SKU          string          `json:"sku"`
	DisplayName  string          `json:"display_name"`
	PackageLabel string          `json:"package_label"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPriceUSD decimal.Decimal `json:"unit_price_usd"`
	SubtotalUSD  decimal.Decimal `json:"subtotal_usd"`
	PriceFound   bool            `json:"price_found"`
	MatchTier    string          `json:"match_tier,omitempty"`
}

type Quote struct {
	ID              string          `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	Rate            decimal.Decimal `json:"rate"`
	Customer        Customer        `json:"customer"`
	Lines           []QuoteLine     `json:"lines"`
	SubtotalUSD     decimal.Decimal `json:"subtotal_usd"`
	TotalUSD        decimal.Decimal `json:"total_usd"`
	MinimumOrderUSD decimal.Decimal `json:"minimum_order_usd"`
	CurrencyCode    string          `json:"currency_code"`
	Version         string          `json:"version"`
	Records         []PriceRecord   `json:"-"`
}

// BelowMinimum reports whether the quote total is under the minimum order.
// Callers decide what to do about it.
func (q *Quote) BelowMinimum() bool {
	return q.TotalUSD.LessThan(q.MinimumOrderUSD)
}

// UnpricedLines returns the lines for which no price was found.
func (q *Quote) UnpricedLines() []QuoteLine {
	var out []QuoteLine
	for _, line := range q.Lines {
		if !line.PriceFound {
			out = append(out, line)
		}
	}
	return out
}
