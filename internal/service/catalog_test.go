package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agroquote/quoter/internal/domain"
	"agroquote/quoter/internal/feed"
	"agroquote/quoter/internal/repository"
	"agroquote/quoter/internal/state"
)

type fakeSource struct {
	mu    sync.Mutex
	raw   feed.RawFeed
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeSource) FetchFeed(ctx context.Context) (*feed.RawFeed, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	raw := f.raw
	return &raw, nil
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func priceFeed() feed.RawFeed {
	return feed.RawFeed{
		Rows: [][]string{
			{"TIPO", "PRODUCTO", "PRESENTACION", "USD", "BS"},
			{"Fungicida", "MANCOZEB", "25 kg", "40", ""},
			{"Herbicida", "FIX", "20L", "50", ""},
			{"Insecticida", "Clorpirifós", "1 Lt", "", "87"},
		},
		Version: "2026-10",
		Rate:    "7",
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCatalog(src *fakeSource, opts CatalogOptions) (*Catalog, *clock) {
	if opts.DefaultRate.IsZero() {
		opts.DefaultRate = decimal.RequireFromString("6.96")
	}
	if opts.TTL == 0 {
		opts.TTL = 5 * time.Minute
	}
	clk := &clock{now: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)}
	c := NewCatalog(src, opts)
	c.now = clk.Now
	return c, clk
}

func TestCatalog_GetPricesCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{raw: priceFeed()}
	c, clk := newTestCatalog(src, CatalogOptions{})

	snap, err := c.GetPrices(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "2026-10", snap.Version)
	assert.True(t, snap.Rate.Equal(decimal.NewFromInt(7)))
	assert.Len(t, snap.Records, 3)

	clk.Advance(time.Minute)
	_, err = c.GetPrices(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())

	_, err = c.GetPrices(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())

	clk.Advance(6 * time.Minute)
	_, err = c.GetPrices(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestCatalog_ListPricesOrderedAndStable(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCatalog(&fakeSource{raw: priceFeed()}, CatalogOptions{})

	first, err := c.ListPrices(ctx)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, "FIX-20L", first[0].SKU)
	assert.Equal(t, domain.CategoryInsecticide, first[1].Category)
	assert.Equal(t, "MANCOZEB-25 kg", first[2].SKU)

	second, err := c.ListPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// callers get a copy
	first[0].SKU = "changed"
	third, err := c.ListPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, "FIX-20L", third[0].SKU)
}

func TestCatalog_FetchFailure(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{raw: priceFeed()}
	c, clk := newTestCatalog(src, CatalogOptions{})

	assert.Nil(t, c.Cached())
	_, err := c.GetPrices(ctx, false)
	require.NoError(t, err)
	before := c.Cached()
	require.NotNil(t, before)

	src.fail(errors.New("connection refused"))
	clk.Advance(10 * time.Minute)

	_, err = c.GetPrices(ctx, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPriceDataUnavailable)

	_, err = c.ListPrices(ctx)
	assert.ErrorIs(t, err, ErrPriceDataUnavailable)

	// stale data is kept but only handed out on request
	assert.Same(t, before, c.Cached())
}

func TestCatalog_ConcurrentRefreshSharesFetch(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{raw: priceFeed(), gate: make(chan struct{})}
	c, _ := newTestCatalog(src, CatalogOptions{})

	const callers = 8
	var wg sync.WaitGroup
	var started sync.WaitGroup
	started.Add(callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			_, errs[i] = c.GetPrices(ctx, false)
		}(i)
	}

	started.Wait()
	require.Eventually(t, func() bool { return src.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCatalog_CancelledCallerDoesNotFailJoiners(t *testing.T) {
	src := &fakeSource{raw: priceFeed(), gate: make(chan struct{})}
	c, _ := newTestCatalog(src, CatalogOptions{})

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetPrices(firstCtx, false)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		_, err := c.GetPrices(context.Background(), false)
		secondErr <- err
	}()

	cancel()
	err := <-firstErr
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrPriceDataUnavailable)

	close(src.gate)
	require.NoError(t, <-secondErr)
	assert.Equal(t, int32(1), src.calls.Load())
	require.NotNil(t, c.Cached())
	assert.Equal(t, "2026-10", c.Cached().Version)
}

func TestCatalog_GetBySKUAndFindPrice(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCatalog(&fakeSource{raw: priceFeed()}, CatalogOptions{})

	res, err := c.GetBySKU(ctx, "FIX-20L")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "sku", res.Tier)
	assert.True(t, res.PriceUSD.Equal(decimal.NewFromInt(50)))

	// exact only, the canonical form is not tried
	res, err = c.GetBySKU(ctx, "fix-20 l")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.True(t, res.PriceUSD.IsZero())

	res, err = c.GetBySKU(ctx, "NOPE")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.True(t, res.PriceUSD.IsZero())

	res, err = c.FindPrice(ctx, "Clorpirifós", "1 Lt")
	require.NoError(t, err)
	require.True(t, res.Found)
	// 87 / 7
	assert.True(t, res.PriceUSD.Equal(decimal.RequireFromString("12.43")))

	res, err = c.FindPrice(ctx, "FIX", "")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestCatalog_SharedSnapshotMirror(t *testing.T) {
	ctx := context.Background()
	mirror := state.NewMemorySnapshotStore()

	first, clk := newTestCatalog(&fakeSource{raw: priceFeed()}, CatalogOptions{Mirror: mirror})
	_, err := first.GetPrices(ctx, false)
	require.NoError(t, err)

	other := &fakeSource{raw: priceFeed()}
	second := NewCatalog(other, CatalogOptions{
		DefaultRate: decimal.RequireFromString("6.96"),
		TTL:         5 * time.Minute,
		Mirror:      mirror,
	})
	second.now = clk.Now

	snap, err := second.GetPrices(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "2026-10", snap.Version)
	assert.Equal(t, int32(0), other.calls.Load())

	_, err = second.GetPrices(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), other.calls.Load())
}

func TestCatalog_UpdatesProductReference(t *testing.T) {
	ctx := context.Background()
	products := repository.NewMemoryProductRepository()
	c, _ := newTestCatalog(&fakeSource{raw: priceFeed()}, CatalogOptions{Products: products})

	_, err := c.GetPrices(ctx, false)
	require.NoError(t, err)

	p, err := products.FindByName(ctx, "clorpirifos")
	require.NoError(t, err)
	assert.Equal(t, "1 Lt", p.Presentation)
}
