// Package feed turns the raw cells of the price spreadsheet into normalized
// price records and an exchange rate.
package feed

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"agroquote/quoter/internal/canon"
	"agroquote/quoter/internal/domain"
)

// RawFeed is the feed as delivered by a source: a header row followed by
// data rows, plus the optional metadata cells.
type RawFeed struct {
	Rows    [][]string
	Version string
	Rate    string
}

type RateSource string

const (
	RateExplicit RateSource = "explicit"
	RateInferred RateSource = "inferred"
	RateDefault  RateSource = "default"
)

type Result struct {
	Records    []domain.PriceRecord
	Rate       decimal.Decimal
	RateSource RateSource
	Version    string
}

// Normalize never fails: malformed cells degrade to zero values and a
// missing version label becomes the current time.
func Normalize(raw RawFeed, defaultRate decimal.Decimal, now time.Time) Result {
	result := Result{Version: strings.TrimSpace(raw.Version)}
	if result.Version == "" {
		result.Version = now.Format(time.RFC3339)
	}

	if len(raw.Rows) > 0 {
		result.Records = parseRows(raw.Rows)
	}

	if rate, ok := ParseAmount(raw.Rate); ok && rate.IsPositive() {
		result.Rate = rate
		result.RateSource = RateExplicit
	} else {
		var inferred bool
		result.Rate, inferred = InferRate(result.Records, defaultRate)
		result.RateSource = RateDefault
		if inferred {
			result.RateSource = RateInferred
		}
		if strings.TrimSpace(raw.Rate) != "" {
			log.Warnf("Unreadable exchange rate cell %q, using %s rate %s", raw.Rate, result.RateSource, result.Rate)
		}
	}

	backfillLocal(result.Records, result.Rate)
	SortRecords(result.Records)

	log.Debugf("Normalized %d price records (version %s, rate %s from %s)",
		len(result.Records), result.Version, result.Rate, result.RateSource)
	return result
}

func parseRows(rows [][]string) []domain.PriceRecord {
	header := matchHeaders(rows[0])
	for col := column(0); col < numColumns; col++ {
		if header[col] < 0 {
			log.Warnf("Price feed has no %s column; treating it as empty", col)
		}
	}

	records := make([]domain.PriceRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		product := header.cell(row, colProduct)
		presentation := header.cell(row, colPresentation)
		if product == "" && presentation == "" {
			continue
		}

		sku := product
		if presentation != "" {
			sku = product + "-" + presentation
		}

		unit := canon.Unit(header.cell(row, colUnit))
		if unit == "" {
			if pack, ok := canon.ExtractPack(presentation); ok {
				unit = pack.Unit
			}
		}

		records = append(records, domain.PriceRecord{
			Category:     domain.ParseCategory(header.cell(row, colCategory)),
			SKU:          sku,
			Product:      product,
			Presentation: presentation,
			Unit:         unit,
			PriceUSD:     moneyCell(header.cell(row, colPriceUSD)),
			PriceLocal:   moneyCell(header.cell(row, colPriceLocal)),
		})
	}
	return records
}

// ParseAmount reads a decimal cell that may use a comma as the decimal
// separator.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func moneyCell(s string) decimal.Decimal {
	d, ok := ParseAmount(s)
	if !ok || d.IsNegative() {
		return decimal.Zero
	}
	return domain.Round2(d)
}

// backfillLocal fills the local price of records that only carry a USD price.
func backfillLocal(records []domain.PriceRecord, rate decimal.Decimal) {
	for i := range records {
		r := &records[i]
		if r.PriceLocal.IsZero() && r.PriceUSD.IsPositive() {
			r.PriceLocal = domain.Round2(r.PriceUSD.Mul(rate))
		}
	}
}

// SortRecords orders records by category priority, then by SKU.
func SortRecords(records []domain.PriceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		pi, pj := records[i].Category.Priority(), records[j].Category.Priority()
		if pi != pj {
			return pi < pj
		}
		return records[i].SKU < records[j].SKU
	})
}
