package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"agroquote/quoter/internal/canon"
	"agroquote/quoter/internal/domain"
	"agroquote/quoter/internal/pricing"
	"agroquote/quoter/internal/repository"
)

// ErrQuoteUnavailable is wrapped by every failed quote assembly.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// Placeholder shown for customer fields the session did not collect.
const missingField = "-"

var (
	qtyKgRe     = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:kgs?|kilos?|kilogramos?)(?:[^\p{L}]|$)`)
	qtyLitreRe  = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:l|lts?|litros?)(?:[^\p{L}]|$)`)
	qtyNumberRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

// ParseQuantity reads free text such as "40 l" or "3,5 kilos". Anything that
// is neither weight nor volume counts units; the quantity defaults to zero.
func ParseQuantity(text string) (decimal.Decimal, string) {
	unit := canon.UnitUnit
	switch {
	case qtyKgRe.MatchString(text):
		unit = canon.UnitKG
	case qtyLitreRe.MatchString(text):
		unit = canon.UnitL
	}

	qty := decimal.Zero
	if m := qtyNumberRe.FindString(text); m != "" {
		if d, err := decimal.NewFromString(strings.Replace(m, ",", ".", 1)); err == nil {
			qty = d
		}
	}
	return qty, unit
}

// Quoter assembles quotes from a cart against the current catalog.
type Quoter struct {
	catalog      *Catalog
	products     repository.ProductRepository
	minimumOrder decimal.Decimal
	currency     string
	now          func() time.Time
}

func NewQuoter(
	catalog *Catalog,
	products repository.ProductRepository,
	minimumOrder decimal.Decimal,
	currency string,
) *Quoter {
	return &Quoter{
		catalog:      catalog,
		products:     products,
		minimumOrder: minimumOrder,
		currency:     currency,
		now:          time.Now,
	}
}

// AssembleQuote prices every cart item. Items without a price become lines
// at zero with PriceFound unset; the minimum order is reported, not enforced.
func (q *Quoter) AssembleQuote(ctx context.Context, cart []domain.CartItem, customer domain.Customer) (*domain.Quote, error) {
	snap, idx, err := q.catalog.load(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuoteUnavailable, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate quote id: %w", ErrQuoteUnavailable, err)
	}

	quote := &domain.Quote{
		ID:              id.String(),
		Timestamp:       q.now(),
		Rate:            snap.Rate,
		Customer:        fillCustomer(customer),
		Lines:           make([]domain.QuoteLine, 0, len(cart)),
		MinimumOrderUSD: q.minimumOrder,
		CurrencyCode:    q.currency,
		Version:         snap.Version,
		Records:         snap.Records,
	}

	subtotal := decimal.Zero
	for _, item := range cart {
		line, err := q.buildLine(ctx, idx, snap.Rate, item)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuoteUnavailable, err)
		}
		subtotal = subtotal.Add(line.SubtotalUSD)
		quote.Lines = append(quote.Lines, line)
	}
	quote.SubtotalUSD = domain.Round2(subtotal)
	quote.TotalUSD = quote.SubtotalUSD

	if n := len(quote.UnpricedLines()); n > 0 {
		log.Warnf("⚠️ Quote %s has %d line(s) without a price", quote.ID, n)
	}
	log.Infof("Assembled quote %s: %d lines, total %s %s", quote.ID, len(quote.Lines), quote.TotalUSD.StringFixed(2), q.currency)
	return quote, nil
}

func (q *Quoter) buildLine(ctx context.Context, idx *pricing.Index, rate decimal.Decimal, item domain.CartItem) (domain.QuoteLine, error) {
	req := pricing.Request{
		SKU:          strings.TrimSpace(item.SKU),
		Name:         strings.TrimSpace(item.Name),
		Presentation: strings.TrimSpace(item.Presentation),
	}

	// The reference only labels the line; prices come from the cart item alone.
	res := pricing.Resolve(idx, req, rate)

	name, presentation := req.Name, req.Presentation
	if name == "" || presentation == "" {
		product, err := q.lookupProduct(ctx, req)
		if err != nil {
			return domain.QuoteLine{}, err
		}
		if product != nil {
			name = firstNonEmpty(name, product.Name)
			presentation = firstNonEmpty(presentation, product.Presentation)
		}
	}

	qty, unit := ParseQuantity(item.QuantityText)

	line := domain.QuoteLine{
		SKU:          firstNonEmpty(req.SKU, res.Record.SKU),
		DisplayName:  firstNonEmpty(name, res.Record.Product, req.SKU),
		PackageLabel: firstNonEmpty(presentation, res.Record.Presentation),
		Unit:         unit,
		Quantity:     qty,
		UnitPriceUSD: res.PriceUSD,
		SubtotalUSD:  domain.Round2(qty.Mul(res.PriceUSD)),
		PriceFound:   res.Found,
		MatchTier:    res.Tier,
	}
	return line, nil
}

// lookupProduct consults the display reference by exact SKU, then by name.
func (q *Quoter) lookupProduct(ctx context.Context, req pricing.Request) (*domain.Product, error) {
	if q.products == nil {
		return nil, nil
	}

	if req.SKU != "" {
		p, err := q.products.FindBySKU(ctx, req.SKU)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrProductNotFound) {
			return nil, fmt.Errorf("failed to look up product %s: %w", req.SKU, err)
		}
	}

	if req.Name != "" {
		p, err := q.products.FindByName(ctx, req.Name)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrProductNotFound) {
			return nil, fmt.Errorf("failed to look up product %q: %w", req.Name, err)
		}
	}
	return nil, nil
}

func fillCustomer(c domain.Customer) domain.Customer {
	return domain.Customer{
		Name:   firstNonEmpty(strings.TrimSpace(c.Name), missingField),
		Region: firstNonEmpty(strings.TrimSpace(c.Region), missingField),
		City:   firstNonEmpty(strings.TrimSpace(c.City), missingField),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
