package feed

import (
	"sort"

	"github.com/shopspring/decimal"

	"agroquote/quoter/internal/domain"
)

var two = decimal.NewFromInt(2)

// InferRate returns the median local/USD ratio over the records that carry
// both prices. It must run before local prices are backfilled, otherwise the
// backfilled rows would feed their own rate back in. When no record has both
// prices, defaultRate is returned and the second result is false.
func InferRate(records []domain.PriceRecord, defaultRate decimal.Decimal) (decimal.Decimal, bool) {
	ratios := make([]decimal.Decimal, 0, len(records))
	for _, r := range records {
		if !r.PriceUSD.IsPositive() || !r.PriceLocal.IsPositive() {
			continue
		}
		ratio := r.PriceLocal.Div(r.PriceUSD)
		if ratio.IsPositive() {
			ratios = append(ratios, ratio)
		}
	}

	if len(ratios) == 0 {
		return defaultRate, false
	}
	return median(ratios), true
}

func median(values []decimal.Decimal) decimal.Decimal {
	sort.Slice(values, func(i, j int) bool { return values[i].LessThan(values[j]) })
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return values[mid-1].Add(values[mid]).Div(two)
}
