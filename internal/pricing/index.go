// Package pricing indexes normalized price records and resolves cart items
// against them.
package pricing

import (
	"strconv"
	"strings"

	"agroquote/quoter/internal/canon"
	"agroquote/quoter/internal/domain"
)

type packKey struct {
	base string
	unit string
	size string
}

func newPackKey(base string, pack domain.Pack) packKey {
	return packKey{
		base: canon.Name(base),
		unit: pack.Unit,
		size: strconv.FormatFloat(pack.Size, 'f', -1, 64),
	}
}

// Index is a read-only view over one feed snapshot. It is never mutated
// after NewIndex returns, so it is safe for concurrent readers.
type Index struct {
	records        []domain.PriceRecord
	bySKU          map[string]domain.PriceRecord
	byCanonicalSKU map[string]domain.PriceRecord
	byBasePack     map[packKey]domain.PriceRecord
}

// NewIndex builds all lookup maps in one pass. When two records share a
// key, the later one wins.
func NewIndex(records []domain.PriceRecord) *Index {
	idx := &Index{
		records:        append([]domain.PriceRecord(nil), records...),
		bySKU:          make(map[string]domain.PriceRecord, len(records)),
		byCanonicalSKU: make(map[string]domain.PriceRecord, len(records)),
		byBasePack:     make(map[packKey]domain.PriceRecord),
	}

	for _, r := range idx.records {
		sku := strings.TrimSpace(r.SKU)
		idx.bySKU[sku] = r

		d := canon.DecomposeSKU(sku)
		idx.byCanonicalSKU[d.Canonical] = r
		if d.HasPack && canon.Name(d.Base) != "" {
			idx.byBasePack[newPackKey(d.Base, d.Pack)] = r
		}
	}
	return idx
}

// Records returns the indexed records in feed order. The slice is shared and
// must not be modified.
func (i *Index) Records() []domain.PriceRecord {
	return i.records
}

func (i *Index) Len() int {
	return len(i.records)
}

func (i *Index) LookupSKU(sku string) (domain.PriceRecord, bool) {
	r, ok := i.bySKU[strings.TrimSpace(sku)]
	return r, ok
}

func (i *Index) LookupCanonical(sku string) (domain.PriceRecord, bool) {
	r, ok := i.byCanonicalSKU[canon.SKU(sku)]
	return r, ok
}

func (i *Index) LookupBasePack(base string, pack domain.Pack) (domain.PriceRecord, bool) {
	r, ok := i.byBasePack[newPackKey(base, pack)]
	return r, ok
}
