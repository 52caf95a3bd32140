package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"

	"agroquote/quoter/internal/config"
	"agroquote/quoter/internal/feed"
	"agroquote/quoter/internal/proxy"
)

// PublishedSheetClient reads a sheet exported with "publish to web" as HTML.
// Metadata cells are looked up in the same table; a sheet prefix on the cell
// reference is ignored.
type PublishedSheetClient struct {
	rl         ratelimit.Limiter
	config     config.FeedConfig
	httpClient *resty.Client
	proxies    proxy.ProxySupplier

	fetchMu sync.Mutex
}

func NewPublishedSheetClient(cfg config.FeedConfig, opts ...Option) (*PublishedSheetClient, error) {
	if strings.TrimSpace(cfg.PublishedURL) == "" {
		return nil, fmt.Errorf("published sheet source: %w", ErrMissingFeedID)
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	return &PublishedSheetClient{
		rl:         newLimiter(cfg.MaxRequestsPerSecond),
		config:     cfg,
		httpClient: client,
		proxies:    applyOptions(opts).proxies,
	}, nil
}

// FetchFeed is safe for concurrent use; fetches run one at a time.
func (c *PublishedSheetClient) FetchFeed(ctx context.Context) (*feed.RawFeed, error) {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	rotateProxy(c.httpClient, c.proxies)
	c.rl.Take()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(c.config.PublishedURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to fetch published sheet: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	grid, err := parseSheetTable(resp.String())
	if err != nil {
		return nil, err
	}

	raw := &feed.RawFeed{Rows: trimLeadingEmptyRows(grid)}
	if ref, ok := parseCellRef(c.config.VersionCell); ok {
		raw.Version = cellAt(grid, ref)
	}
	if ref, ok := parseCellRef(c.config.RateCell); ok {
		raw.Rate = cellAt(grid, ref)
	}

	log.Debugf("Parsed %d rows from published sheet", len(grid))
	return raw, nil
}

// parseSheetTable reads the first table of the page. Rows made only of
// header cells (the column letters and row numbers Google adds) are skipped,
// so grid coordinates match the sheet's own A1 coordinates.
func parseSheetTable(html string) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no table found in published sheet")
	}

	var grid [][]string
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		row := make([]string, 0, cells.Length())
		cells.Each(func(j int, td *goquery.Selection) {
			row = append(row, strings.TrimSpace(td.Text()))
		})
		grid = append(grid, row)
	})

	return grid, nil
}

func trimLeadingEmptyRows(grid [][]string) [][]string {
	for len(grid) > 0 && isBlankRow(grid[0]) {
		grid = grid[1:]
	}
	return grid
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func (c *PublishedSheetClient) Close() error {
	return c.httpClient.Close()
}
