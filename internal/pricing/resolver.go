package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"agroquote/quoter/internal/canon"
	"agroquote/quoter/internal/domain"
)

// Request identifies the item being priced. Any field may be empty.
type Request struct {
	SKU          string
	Name         string
	Presentation string
}

func (r Request) trimmed() Request {
	return Request{
		SKU:          strings.TrimSpace(r.SKU),
		Name:         strings.TrimSpace(r.Name),
		Presentation: strings.TrimSpace(r.Presentation),
	}
}

// Tier is one lookup strategy of the resolver.
type Tier struct {
	Name   string
	Lookup func(idx *Index, req Request) (domain.PriceRecord, bool)
}

// Tiers are tried in order; the first match wins.
var Tiers = []Tier{
	{Name: "sku", Lookup: lookupExactSKU},
	{Name: "canonical_sku", Lookup: lookupCanonicalSKU},
	{Name: "name_presentation", Lookup: lookupNamePresentation},
	{Name: "base_pack", Lookup: lookupBasePack},
}

// TierByName returns the tier registered under name.
func TierByName(name string) (Tier, bool) {
	for _, t := range Tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

func lookupExactSKU(idx *Index, req Request) (domain.PriceRecord, bool) {
	if req.SKU == "" {
		return domain.PriceRecord{}, false
	}
	return idx.LookupSKU(req.SKU)
}

func lookupCanonicalSKU(idx *Index, req Request) (domain.PriceRecord, bool) {
	if req.SKU == "" {
		return domain.PriceRecord{}, false
	}
	return idx.LookupCanonical(req.SKU)
}

func lookupNamePresentation(idx *Index, req Request) (domain.PriceRecord, bool) {
	if req.Name == "" || req.Presentation == "" {
		return domain.PriceRecord{}, false
	}
	return idx.LookupCanonical(req.Name + "-" + req.Presentation)
}

func lookupBasePack(idx *Index, req Request) (domain.PriceRecord, bool) {
	var fromSKU canon.Decomposed
	if req.SKU != "" {
		fromSKU = canon.DecomposeSKU(req.SKU)
	}

	base := req.Name
	if base == "" {
		base = fromSKU.Base
	}
	if canon.Name(base) == "" {
		return domain.PriceRecord{}, false
	}

	pack, ok := canon.ExtractPack(req.Presentation)
	if !ok {
		pack, ok = fromSKU.Pack, fromSKU.HasPack
	}
	if !ok {
		return domain.PriceRecord{}, false
	}
	return idx.LookupBasePack(base, pack)
}

// Resolution is the outcome of pricing one request. Found is false when no
// tier matched; PriceUSD is then zero. A found record can still price at
// zero if the feed lists it without prices.
type Resolution struct {
	Record   domain.PriceRecord
	PriceUSD decimal.Decimal
	Found    bool
	Tier     string
}

// Resolve prices req against idx. It never fails: an unknown item resolves
// to a zero price with Found set to false.
func Resolve(idx *Index, req Request, rate decimal.Decimal) Resolution {
	return ResolveWith(idx, req, rate, Tiers)
}

// ResolveWith is Resolve restricted to the given tiers.
func ResolveWith(idx *Index, req Request, rate decimal.Decimal, tiers []Tier) Resolution {
	req = req.trimmed()
	if idx == nil {
		return Resolution{PriceUSD: decimal.Zero}
	}

	for _, tier := range tiers {
		record, ok := tier.Lookup(idx, req)
		if !ok {
			continue
		}
		return Resolution{
			Record:   record,
			PriceUSD: PriceUSD(record, rate),
			Found:    true,
			Tier:     tier.Name,
		}
	}
	return Resolution{PriceUSD: decimal.Zero}
}

// PriceUSD returns the record's USD price, deriving it from the local price
// when only that one is present.
func PriceUSD(r domain.PriceRecord, rate decimal.Decimal) decimal.Decimal {
	if r.PriceUSD.IsZero() && r.PriceLocal.IsPositive() && rate.IsPositive() {
		return domain.Round2(r.PriceLocal.Div(rate))
	}
	return domain.Round2(r.PriceUSD)
}
