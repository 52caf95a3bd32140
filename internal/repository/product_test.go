package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agroquote/quoter/internal/domain"
)

func TestNameKey(t *testing.T) {
	assert.Equal(t, "clorpirifos", NameKey("  Clorpirifós "))
	assert.Equal(t, "glifosato max", NameKey("GLIFOSATO   Max"))
	assert.Equal(t, "", NameKey(""))
}

func TestMemoryProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProductRepository()

	_, err := repo.FindBySKU(ctx, "FIX-20L")
	assert.ErrorIs(t, err, ErrProductNotFound)

	records := []domain.PriceRecord{
		{SKU: "FIX-20L", Product: "FIX", Presentation: "20L", PriceUSD: decimal.NewFromInt(50)},
		{SKU: "FIX-5L", Product: "FIX", Presentation: "5L"},
		{SKU: " CLO-1L ", Product: "Clorpirifós", Presentation: "1 Lt"},
		{SKU: "", Product: "sin sku"},
	}
	require.NoError(t, repo.ReplaceProducts(ctx, ProductsFromRecords(records)))

	p, err := repo.FindBySKU(ctx, "CLO-1L")
	require.NoError(t, err)
	assert.Equal(t, "Clorpirifós", p.Name)

	p, err = repo.FindByName(ctx, "clorpirifos")
	require.NoError(t, err)
	assert.Equal(t, "CLO-1L", p.SKU)

	// first SKU in order wins for a shared name
	p, err = repo.FindByName(ctx, "fix")
	require.NoError(t, err)
	assert.Equal(t, "FIX-20L", p.SKU)

	// exact only: no partial matches
	_, err = repo.FindByName(ctx, "clorpiri")
	assert.ErrorIs(t, err, ErrProductNotFound)
	_, err = repo.FindByName(ctx, "sin sku")
	assert.ErrorIs(t, err, ErrProductNotFound)

	require.NoError(t, repo.ReplaceProducts(ctx, nil))
	_, err = repo.FindBySKU(ctx, "FIX-20L")
	assert.ErrorIs(t, err, ErrProductNotFound)
}
