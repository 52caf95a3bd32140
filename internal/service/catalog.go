package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"agroquote/quoter/internal/client"
	"agroquote/quoter/internal/domain"
	"agroquote/quoter/internal/feed"
	"agroquote/quoter/internal/pricing"
	"agroquote/quoter/internal/repository"
	"agroquote/quoter/internal/state"
)

// ErrPriceDataUnavailable is wrapped by every catalog read that could not
// obtain price data from the feed.
var ErrPriceDataUnavailable = errors.New("price data unavailable")

const (
	refreshKey = "refresh"
	forcedKey  = "forced"
)

// Catalog owns the price snapshot and its index. Reads within the TTL window
// are served from memory; concurrent refreshes share one feed fetch.
type Catalog struct {
	source      client.FeedSource
	mirror      state.SnapshotStore
	products    repository.ProductRepository
	defaultRate decimal.Decimal
	ttl         time.Duration

	mu       sync.RWMutex
	snapshot *domain.Snapshot
	index    *pricing.Index

	group singleflight.Group
	now   func() time.Time
}

type CatalogOptions struct {
	DefaultRate decimal.Decimal
	TTL         time.Duration
	// Mirror shares snapshots between processes. Optional.
	Mirror state.SnapshotStore
	// Products, when set, is overwritten with the display data of every
	// fetched snapshot.
	Products repository.ProductRepository
}

func NewCatalog(source client.FeedSource, opts CatalogOptions) *Catalog {
	return &Catalog{
		source:      source,
		mirror:      opts.Mirror,
		products:    opts.Products,
		defaultRate: opts.DefaultRate,
		ttl:         opts.TTL,
		now:         time.Now,
	}
}

// GetPrices returns the current snapshot, fetching the feed when the cached
// one is older than the TTL or when force is set.
func (c *Catalog) GetPrices(ctx context.Context, force bool) (*domain.Snapshot, error) {
	snap, _, err := c.load(ctx, force)
	return snap, err
}

// ListPrices returns all records in category then SKU order.
func (c *Catalog) ListPrices(ctx context.Context) ([]domain.PriceRecord, error) {
	snap, _, err := c.load(ctx, false)
	if err != nil {
		return nil, err
	}
	return append([]domain.PriceRecord(nil), snap.Records...), nil
}

// GetBySKU looks a record up by its exact SKU. Spelling variants such as
// "fix 20 lts" are left to Resolve.
func (c *Catalog) GetBySKU(ctx context.Context, sku string) (pricing.Resolution, error) {
	snap, idx, err := c.load(ctx, false)
	if err != nil {
		return pricing.Resolution{}, err
	}
	tier, _ := pricing.TierByName("sku")
	return pricing.ResolveWith(idx, pricing.Request{SKU: sku}, snap.Rate, []pricing.Tier{tier}), nil
}

// FindPrice looks a record up by product name and presentation only.
func (c *Catalog) FindPrice(ctx context.Context, name, presentation string) (pricing.Resolution, error) {
	snap, idx, err := c.load(ctx, false)
	if err != nil {
		return pricing.Resolution{}, err
	}
	tier, _ := pricing.TierByName("name_presentation")
	req := pricing.Request{Name: name, Presentation: presentation}
	return pricing.ResolveWith(idx, req, snap.Rate, []pricing.Tier{tier}), nil
}

// Resolve prices one item through every tier.
func (c *Catalog) Resolve(ctx context.Context, req pricing.Request) (pricing.Resolution, *domain.Snapshot, error) {
	snap, idx, err := c.load(ctx, false)
	if err != nil {
		return pricing.Resolution{}, nil, err
	}
	return pricing.Resolve(idx, req, snap.Rate), snap, nil
}

// Cached returns the last snapshot regardless of its age, or nil. Callers
// that accept stale prices after a failed refresh use it.
func (c *Catalog) Cached() *domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

type loaded struct {
	snapshot *domain.Snapshot
	index    *pricing.Index
}

// load returns a fresh snapshot, refreshing it at most once for all
// concurrent callers. The shared fetch runs detached from any one caller's
// cancellation; a cancelled caller stops waiting while the others still get
// the result.
func (c *Catalog) load(ctx context.Context, force bool) (*domain.Snapshot, *pricing.Index, error) {
	if !force {
		if snap, idx, ok := c.fresh(); ok {
			return snap, idx, nil
		}
	}

	key := refreshKey
	if force {
		key = forcedKey
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if !force {
			if snap, idx, ok := c.fresh(); ok {
				return loaded{snap, idx}, nil
			}
			if l, ok := c.adoptMirror(fetchCtx); ok {
				return l, nil
			}
		}
		return c.refresh(fetchCtx)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: %w", ErrPriceDataUnavailable, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, nil, res.Err
	}
	if res.Shared {
		log.Debug("Joined an in-flight price refresh")
	}

	l := res.Val.(loaded)
	return l.snapshot, l.index, nil
}

func (c *Catalog) fresh() (*domain.Snapshot, *pricing.Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil || !c.isFresh(c.snapshot) {
		return nil, nil, false
	}
	return c.snapshot, c.index, true
}

func (c *Catalog) isFresh(snap *domain.Snapshot) bool {
	return c.now().Sub(snap.FetchedAt) < c.ttl
}

func (c *Catalog) adoptMirror(ctx context.Context) (loaded, bool) {
	if c.mirror == nil {
		return loaded{}, false
	}

	snap, err := c.mirror.LoadSnapshot(ctx)
	if err != nil {
		if !errors.Is(err, state.ErrNoSnapshot) {
			log.Warnf("⚠️ Failed to read shared price snapshot, fetching the feed: %v", err)
		}
		return loaded{}, false
	}
	if !c.isFresh(snap) {
		return loaded{}, false
	}

	l := loaded{snapshot: snap, index: pricing.NewIndex(snap.Records)}
	c.store(l)
	log.Infof("Using shared price snapshot %s (%d records)", snap.Version, len(snap.Records))
	return l, true
}

func (c *Catalog) refresh(ctx context.Context) (loaded, error) {
	start := c.now()

	raw, err := c.source.FetchFeed(ctx)
	if err != nil {
		log.Errorf("❌ Failed to fetch price feed: %v", err)
		return loaded{}, fmt.Errorf("%w: %w", ErrPriceDataUnavailable, err)
	}

	result := feed.Normalize(*raw, c.defaultRate, start)
	snap := &domain.Snapshot{
		Records:   result.Records,
		Rate:      result.Rate,
		Version:   result.Version,
		FetchedAt: start,
	}
	l := loaded{snapshot: snap, index: pricing.NewIndex(snap.Records)}
	c.store(l)

	log.Infof("✅ Loaded %d prices, version %s, rate %s (%s)",
		len(snap.Records), snap.Version, snap.Rate.String(), result.RateSource)

	if c.mirror != nil {
		if err := c.mirror.SaveSnapshot(ctx, snap, c.ttl); err != nil {
			log.Warnf("⚠️ Failed to share price snapshot: %v", err)
		}
	}
	if c.products != nil {
		if err := c.products.ReplaceProducts(ctx, repository.ProductsFromRecords(snap.Records)); err != nil {
			log.Warnf("⚠️ Failed to update product reference: %v", err)
		}
	}
	return l, nil
}

func (c *Catalog) store(l loaded) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = l.snapshot
	c.index = l.index
}
