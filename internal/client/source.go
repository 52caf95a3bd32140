package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"go.uber.org/ratelimit"
	"resty.dev/v3"

	"agroquote/quoter/internal/config"
	"agroquote/quoter/internal/feed"
	"agroquote/quoter/internal/proxy"
)

// ErrMissingFeedID is returned when the configured source has nothing to
// read from. It is a configuration error and is never retried.
var ErrMissingFeedID = errors.New("price feed identifier is not configured")

// FeedSource delivers the raw price spreadsheet.
type FeedSource interface {
	FetchFeed(ctx context.Context) (*feed.RawFeed, error)
}

// Option configures the HTTP feed sources.
type Option func(*options)

type options struct {
	proxies proxy.ProxySupplier
}

// WithProxySupplier routes feed requests through the supplied proxies. Each
// fetch takes the next proxy in turn.
func WithProxySupplier(p proxy.ProxySupplier) Option {
	return func(o *options) {
		o.proxies = p
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// rotateProxy points client at the next proxy, if any. The proxy is set on
// the shared transport, so callers hold their fetch lock across the rotation
// and the requests that use it.
func rotateProxy(client *resty.Client, proxies proxy.ProxySupplier) {
	if proxies == nil {
		return
	}
	if p := proxies.Get(); p != "" {
		client.SetProxy(p)
		log.Debugf("Fetching feed through proxy %s", p)
	}
}

// FeedURL is the address a source fetches from, used to test proxies. It is
// empty for local sources.
func FeedURL(cfg config.FeedConfig) string {
	switch cfg.Source {
	case config.SourceSheets:
		return cfg.BaseURL
	case config.SourceHTML:
		return cfg.PublishedURL
	default:
		return ""
	}
}

// NewFeedSource builds the source selected by cfg.Source.
func NewFeedSource(cfg config.FeedConfig, opts ...Option) (FeedSource, error) {
	var (
		source FeedSource
		err    error
	)
	switch cfg.Source {
	case config.SourceSheets:
		source, err = NewSheetsClient(cfg, opts...)
	case config.SourceHTML:
		source, err = NewPublishedSheetClient(cfg, opts...)
	case config.SourceWorkbook:
		source, err = NewWorkbookSource(cfg)
	default:
		return nil, fmt.Errorf("unknown feed source %q", cfg.Source)
	}
	if err != nil {
		return nil, err
	}
	return source, nil
}

func newLimiter(rps int) ratelimit.Limiter {
	if rps <= 0 {
		return ratelimit.NewUnlimited()
	}
	return ratelimit.New(rps)
}

// cellRef is a parsed metadata cell reference such as "Config!B2".
type cellRef struct {
	Sheet string
	Cell  string
	Col   int // 1-based
	Row   int // 1-based
}

func parseCellRef(ref string) (cellRef, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return cellRef{}, false
	}

	var out cellRef
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		out.Sheet = strings.Trim(ref[:i], "'")
		ref = ref[i+1:]
	}
	out.Cell = strings.ToUpper(strings.ReplaceAll(ref, "$", ""))

	col, row, err := excelize.CellNameToCoordinates(out.Cell)
	if err != nil {
		return cellRef{}, false
	}
	out.Col, out.Row = col, row
	return out, true
}

// cellAt reads a 1-based cell from a grid, empty when out of range.
func cellAt(rows [][]string, ref cellRef) string {
	if ref.Row < 1 || ref.Row > len(rows) {
		return ""
	}
	row := rows[ref.Row-1]
	if ref.Col < 1 || ref.Col > len(row) {
		return ""
	}
	return strings.TrimSpace(row[ref.Col-1])
}
