package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

const (
	SourceSheets   = "sheets"
	SourceHTML     = "html"
	SourceWorkbook = "xlsx"
)

// FeedConfig describes where the price spreadsheet lives
type FeedConfig struct {
	Source string `mapstructure:"source"`

	// Google Sheets values API
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	Range         string `mapstructure:"range"`

	// Published ("publish to web") HTML export
	PublishedURL string `mapstructure:"published_url"`

	// Local workbook
	WorkbookPath string `mapstructure:"workbook_path"`
	Sheet        string `mapstructure:"sheet"`

	// Optional metadata cells, A1 notation, optionally prefixed by a sheet name
	VersionCell string `mapstructure:"version_cell"`
	RateCell    string `mapstructure:"rate_cell"`

	// Optional egress proxies for the HTTP sources
	Proxies []string `mapstructure:"proxies"`

	Timeout              time.Duration `mapstructure:"timeout"`
	MaxRetries           int           `mapstructure:"max_retries"`
	MaxRequestsPerSecond int           `mapstructure:"max_requests_per_second"`
}

// PricingConfig holds the business constants used by the catalog and quotes
type PricingConfig struct {
	DefaultRate     float64       `mapstructure:"default_rate"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	MinimumOrderUSD float64       `mapstructure:"minimum_order_usd"`
	CurrencyCode    string        `mapstructure:"currency_code"`
}

// DatabaseConfig holds database configuration for the product reference
type DatabaseConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SyncProducts bool   `mapstructure:"sync_products"` // overwrite products on every refresh
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Name         string `mapstructure:"name"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Password    string `mapstructure:"password"`
	Database    int    `mapstructure:"database"`
	SnapshotKey string `mapstructure:"snapshot_key"`
	QuoteStream string `mapstructure:"quote_stream"`

	ConsumerGroup string        `mapstructure:"consumer_group"`
	MinIdleTime   time.Duration `mapstructure:"min_idle_time"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from an optional YAML file with environment
// variable overrides (QUOTER_FEED_SPREADSHEET_ID and so on). An empty path
// looks for config.yaml in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("quoter")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values that have no safe fallback
func (c *Config) Validate() error {
	switch c.Feed.Source {
	case SourceSheets, SourceHTML, SourceWorkbook:
	default:
		return fmt.Errorf("unknown feed source %q", c.Feed.Source)
	}
	if c.Pricing.DefaultRate <= 0 {
		return fmt.Errorf("pricing.default_rate must be positive, got %v", c.Pricing.DefaultRate)
	}
	if c.Pricing.CacheTTL < 0 {
		return fmt.Errorf("pricing.cache_ttl must not be negative, got %v", c.Pricing.CacheTTL)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.source", SourceSheets)
	v.SetDefault("feed.spreadsheet_id", "")
	v.SetDefault("feed.api_key", "")
	v.SetDefault("feed.base_url", "https://sheets.googleapis.com")
	v.SetDefault("feed.range", "Precios!A1:Z")
	v.SetDefault("feed.published_url", "")
	v.SetDefault("feed.workbook_path", "")
	v.SetDefault("feed.sheet", "")
	v.SetDefault("feed.version_cell", "")
	v.SetDefault("feed.rate_cell", "")
	v.SetDefault("feed.proxies", []string{})
	v.SetDefault("feed.timeout", 30*time.Second)
	v.SetDefault("feed.max_retries", 2)
	v.SetDefault("feed.max_requests_per_second", 5)

	v.SetDefault("pricing.default_rate", 6.96)
	v.SetDefault("pricing.cache_ttl", 5*time.Minute)
	v.SetDefault("pricing.minimum_order_usd", 1000)
	v.SetDefault("pricing.currency_code", "USD")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.sync_products", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "quoter")
	v.SetDefault("database.user", "quoter")
	v.SetDefault("database.password", "quoter")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.snapshot_key", "quoter:prices:snapshot")
	v.SetDefault("redis.quote_stream", "quoter:stream:quotes")
	v.SetDefault("redis.consumer_group", "renderers")
	v.SetDefault("redis.min_idle_time", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
