package domain

import "github.com/shopspring/decimal"

// Round2 rounds an amount to cents, half away from zero. Every price and
// total in the catalog and in quotes goes through it.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
