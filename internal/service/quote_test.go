package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agroquote/quoter/internal/domain"
	"agroquote/quoter/internal/repository"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		text string
		qty  string
		unit string
	}{
		{"40 l", "40", "L"},
		{"40l", "40", "L"},
		{"5 litros", "5", "L"},
		{"3,5 kilos", "3.5", "KG"},
		{"10 kg", "10", "KG"},
		{"12 unidades", "12", "UNID"},
		{"7", "7", "UNID"},
		{"unas cajas", "0", "UNID"},
		{"", "0", "UNID"},
		{"lote de 20 y 30", "20", "UNID"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			qty, unit := ParseQuantity(tt.text)
			assert.True(t, qty.Equal(decimal.RequireFromString(tt.qty)), "got %s", qty)
			assert.Equal(t, tt.unit, unit)
		})
	}
}

func newTestQuoter(t *testing.T, src *fakeSource, products repository.ProductRepository) *Quoter {
	t.Helper()
	c, _ := newTestCatalog(src, CatalogOptions{Products: products})
	return NewQuoter(c, products, decimal.NewFromInt(1000), "USD")
}

func TestAssembleQuote_NamePresentation(t *testing.T) {
	q := newTestQuoter(t, &fakeSource{raw: priceFeed()}, nil)

	cart := []domain.CartItem{{Name: "FIX", Presentation: "20 L", QuantityText: "40 l"}}
	quote, err := q.AssembleQuote(context.Background(), cart, domain.Customer{Name: "Agro Sur"})
	require.NoError(t, err)

	require.Len(t, quote.Lines, 1)
	line := quote.Lines[0]
	assert.True(t, line.UnitPriceUSD.Equal(decimal.NewFromInt(50)))
	assert.True(t, line.Quantity.Equal(decimal.NewFromInt(40)))
	assert.True(t, line.SubtotalUSD.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, "L", line.Unit)
	assert.True(t, line.PriceFound)

	assert.True(t, quote.TotalUSD.Equal(decimal.NewFromInt(2000)))
	assert.False(t, quote.BelowMinimum())
	assert.Equal(t, domain.Customer{Name: "Agro Sur", Region: "-", City: "-"}, quote.Customer)
	assert.Equal(t, "2026-10", quote.Version)
	assert.Len(t, quote.Records, 3)

	id, err := uuid.Parse(quote.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestAssembleQuote_UnknownSKU(t *testing.T) {
	q := newTestQuoter(t, &fakeSource{raw: priceFeed()}, nil)

	cart := []domain.CartItem{{SKU: "NO-EXISTE-99", QuantityText: "3"}}
	quote, err := q.AssembleQuote(context.Background(), cart, domain.Customer{})
	require.NoError(t, err)

	require.Len(t, quote.Lines, 1)
	assert.True(t, quote.Lines[0].UnitPriceUSD.IsZero())
	assert.True(t, quote.Lines[0].SubtotalUSD.IsZero())
	assert.False(t, quote.Lines[0].PriceFound)
	assert.Len(t, quote.UnpricedLines(), 1)
	assert.True(t, quote.BelowMinimum())
}

func TestAssembleQuote_TotalsAreExactSums(t *testing.T) {
	q := newTestQuoter(t, &fakeSource{raw: priceFeed()}, nil)

	cart := []domain.CartItem{
		// 87 / 7 = 12.43 per litre
		{SKU: "Clorpirifós-1 Lt", QuantityText: "3 lts"},
		{SKU: "MANCOZEB-25KG", QuantityText: "2,5 kg"},
	}
	quote, err := q.AssembleQuote(context.Background(), cart, domain.Customer{})
	require.NoError(t, err)

	assert.True(t, quote.Lines[0].SubtotalUSD.Equal(decimal.RequireFromString("37.29")))
	assert.Equal(t, "sku", quote.Lines[0].MatchTier)
	assert.True(t, quote.Lines[1].SubtotalUSD.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "canonical_sku", quote.Lines[1].MatchTier)
	assert.True(t, quote.SubtotalUSD.Equal(decimal.RequireFromString("137.29")))
	assert.True(t, quote.TotalUSD.Equal(quote.SubtotalUSD))
}

func TestAssembleQuote_DisplayFieldsFromReference(t *testing.T) {
	products := repository.NewMemoryProductRepository()
	q := newTestQuoter(t, &fakeSource{raw: priceFeed()}, products)

	cart := []domain.CartItem{
		{SKU: "FIX-20L", QuantityText: "2"},
		{Name: "clorpirifos", QuantityText: "1 l"},
	}
	original := append([]domain.CartItem(nil), cart...)

	quote, err := q.AssembleQuote(context.Background(), cart, domain.Customer{})
	require.NoError(t, err)
	assert.Equal(t, original, cart)

	assert.Equal(t, "FIX", quote.Lines[0].DisplayName)
	assert.Equal(t, "20L", quote.Lines[0].PackageLabel)

	// a bare name is labelled from the reference but not priced by it
	assert.Equal(t, "clorpirifos", quote.Lines[1].DisplayName)
	assert.Equal(t, "1 Lt", quote.Lines[1].PackageLabel)
	assert.False(t, quote.Lines[1].PriceFound)
	assert.Empty(t, quote.Lines[1].MatchTier)
	assert.True(t, quote.Lines[1].UnitPriceUSD.IsZero())
	assert.True(t, quote.Lines[1].SubtotalUSD.IsZero())
}

func TestAssembleQuote_ReferenceDoesNotPickPack(t *testing.T) {
	raw := priceFeed()
	raw.Rows = append(raw.Rows, []string{"Herbicida", "FIX", "1L", "5", ""})
	cart := []domain.CartItem{{Name: "FIX", QuantityText: "40 l"}}

	bare := newTestQuoter(t, &fakeSource{raw: raw}, nil)
	withoutRef, err := bare.AssembleQuote(context.Background(), cart, domain.Customer{})
	require.NoError(t, err)

	referenced := newTestQuoter(t, &fakeSource{raw: raw}, repository.NewMemoryProductRepository())
	withRef, err := referenced.AssembleQuote(context.Background(), cart, domain.Customer{})
	require.NoError(t, err)

	line := withRef.Lines[0]
	assert.False(t, line.PriceFound)
	assert.Empty(t, line.MatchTier)
	assert.True(t, line.UnitPriceUSD.IsZero())
	assert.True(t, line.SubtotalUSD.IsZero())
	// the lowest SKU for the name only labels the line
	assert.Equal(t, "1L", line.PackageLabel)
	assert.Equal(t, "FIX", line.DisplayName)

	assert.Equal(t, withoutRef.Lines[0].PriceFound, line.PriceFound)
	assert.True(t, withoutRef.Lines[0].UnitPriceUSD.Equal(line.UnitPriceUSD))
	assert.True(t, withoutRef.TotalUSD.Equal(withRef.TotalUSD))
}

func TestAssembleQuote_FeedUnavailable(t *testing.T) {
	src := &fakeSource{err: errors.New("timeout")}
	q := newTestQuoter(t, src, nil)

	quote, err := q.AssembleQuote(context.Background(), []domain.CartItem{{SKU: "FIX-20L"}}, domain.Customer{})
	assert.Nil(t, quote)
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
	assert.ErrorIs(t, err, ErrPriceDataUnavailable)
}

type brokenProducts struct{ repository.ProductRepository }

func (brokenProducts) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return nil, errors.New("connection reset")
}

func TestAssembleQuote_ReferenceFailureIsNotPartial(t *testing.T) {
	q := newTestQuoter(t, &fakeSource{raw: priceFeed()}, nil)
	q.products = brokenProducts{}

	quote, err := q.AssembleQuote(context.Background(), []domain.CartItem{{SKU: "FIX-20L"}}, domain.Customer{})
	assert.Nil(t, quote)
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
}
