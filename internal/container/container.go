package container

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"agroquote/quoter/internal/client"
	"agroquote/quoter/internal/config"
	"agroquote/quoter/internal/proxy"
	"agroquote/quoter/internal/queue"
	"agroquote/quoter/internal/repository"
	"agroquote/quoter/internal/service"
	"agroquote/quoter/internal/state"
)

// Container holds all initialized components
type Container struct {
	Config    *config.Config
	Source    client.FeedSource
	Products  repository.ProductRepository
	Snapshots state.SnapshotStore
	Quotes    queue.QuotePublisher

	Catalog *service.Catalog
	Quoter  *service.Quoter

	db    *pgxpool.Pool
	redis *redis.Client
}

// SetupLogging applies the log section of the config to logrus.
func SetupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// New creates a new container with all dependencies initialized. Redis and
// Postgres are optional; without them the snapshot and the product reference
// live in process.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		Config: cfg,
	}

	var opts []client.Option
	if len(cfg.Feed.Proxies) > 0 {
		if feedURL := client.FeedURL(cfg.Feed); feedURL != "" {
			opts = append(opts, client.WithProxySupplier(proxy.NewProxySupplier(ctx, cfg.Feed.Proxies, feedURL)))
		}
	}

	source, err := client.NewFeedSource(cfg.Feed, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize feed source: %w", err)
	}
	c.Source = source

	syncProducts := true
	if cfg.Database.Enabled {
		db, err := pgxpool.New(ctx,
			fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
				cfg.Database.Host,
				cfg.Database.Port,
				cfg.Database.User,
				cfg.Database.Password,
				cfg.Database.Name,
			))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		c.db = db

		if err := repository.EnsureSchema(ctx, db); err != nil {
			c.Close()
			return nil, err
		}
		c.Products = repository.NewProductRepository(db)
		syncProducts = cfg.Database.SyncProducts
		log.Info("✅ Connected to Postgres successfully")
	} else {
		c.Products = repository.NewMemoryProductRepository()
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		c.redis = rdb

		// Test connection
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")

		c.Snapshots = state.NewRedisSnapshotStore(rdb, cfg.Redis.SnapshotKey)

		quotes, err := queue.NewRedisQuoteStream(ctx, rdb, cfg.Redis)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Quotes = quotes
	} else {
		c.Snapshots = state.NewMemorySnapshotStore()
	}

	catalogOpts := service.CatalogOptions{
		DefaultRate: decimal.NewFromFloat(cfg.Pricing.DefaultRate),
		TTL:         cfg.Pricing.CacheTTL,
		Mirror:      c.Snapshots,
	}
	if syncProducts {
		catalogOpts.Products = c.Products
	}
	c.Catalog = service.NewCatalog(source, catalogOpts)
	c.Quoter = service.NewQuoter(
		c.Catalog,
		c.Products,
		decimal.NewFromFloat(cfg.Pricing.MinimumOrderUSD),
		cfg.Pricing.CurrencyCode,
	)

	return c, nil
}

// Warmup loads the first snapshot and checks the optional backends in
// parallel.
func (c *Container) Warmup(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := c.Catalog.GetPrices(ctx, false)
		return err
	})

	if c.db != nil {
		g.Go(func() error {
			if err := c.db.Ping(ctx); err != nil {
				return fmt.Errorf("failed to ping Postgres: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Debug("Shutting down container...")

	if closer, ok := c.Source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warnf("Failed to close feed source: %v", err)
		}
	}
	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Warnf("Failed to close Redis client: %v", err)
		}
	}

	log.Debug("Container shut down successfully")
	return nil
}
