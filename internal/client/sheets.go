package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"

	"agroquote/quoter/internal/config"
	"agroquote/quoter/internal/feed"
	"agroquote/quoter/internal/proxy"
)

// valueRange is the Sheets v4 values.get response body.
type valueRange struct {
	Range          string  `json:"range"`
	MajorDimension string  `json:"majorDimension"`
	Values         [][]any `json:"values"`
}

// SheetsClient reads the feed through the Google Sheets v4 values API.
type SheetsClient struct {
	rl            ratelimit.Limiter
	config        config.FeedConfig
	httpClient    *resty.Client
	spreadsheetID string
	proxies       proxy.ProxySupplier

	fetchMu sync.Mutex
}

func NewSheetsClient(cfg config.FeedConfig, opts ...Option) (*SheetsClient, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, fmt.Errorf("sheets source: %w", ErrMissingFeedID)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetHeader("Accept", "application/json")

	return &SheetsClient{
		rl:            newLimiter(cfg.MaxRequestsPerSecond),
		config:        cfg,
		httpClient:    client,
		spreadsheetID: cfg.SpreadsheetID,
		proxies:       applyOptions(opts).proxies,
	}, nil
}

// FetchFeed reads the price range and the optional metadata cells
// concurrently. Metadata cells that cannot be read are left empty; a failure
// on the price range fails the whole fetch. Concurrent fetches run one at a
// time.
func (c *SheetsClient) FetchFeed(ctx context.Context) (*feed.RawFeed, error) {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	rotateProxy(c.httpClient, c.proxies)

	raw := &feed.RawFeed{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := c.getValues(gctx, c.config.Range)
		if err != nil {
			return fmt.Errorf("failed to fetch price range %s: %w", c.config.Range, err)
		}
		raw.Rows = rows
		return nil
	})

	if c.config.VersionCell != "" {
		g.Go(func() error {
			raw.Version = c.getCell(gctx, c.config.VersionCell)
			return nil
		})
	}
	if c.config.RateCell != "" {
		g.Go(func() error {
			raw.Rate = c.getCell(gctx, c.config.RateCell)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debugf("Fetched %d rows from spreadsheet %s", len(raw.Rows), c.spreadsheetID)
	return raw, nil
}

func (c *SheetsClient) getCell(ctx context.Context, cell string) string {
	rows, err := c.getValues(ctx, cell)
	if err != nil {
		log.Warnf("Failed to read metadata cell %s, ignoring it: %v", cell, err)
		return ""
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return ""
	}
	return rows[0][0]
}

func (c *SheetsClient) getValues(ctx context.Context, a1Range string) ([][]string, error) {
	c.rl.Take()

	endpoint := fmt.Sprintf("/v4/spreadsheets/%s/values/%s",
		url.PathEscape(c.spreadsheetID), url.PathEscape(a1Range))

	var body valueRange
	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("valueRenderOption", "UNFORMATTED_VALUE").
		SetQueryParam("majorDimension", "ROWS").
		SetResult(&body)
	if c.config.APIKey != "" {
		req.SetQueryParam("key", c.config.APIKey)
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to fetch values: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	return stringifyRows(body.Values), nil
}

func stringifyRows(values [][]any) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		rows[i] = cells
	}
	return rows
}

func (c *SheetsClient) Close() error {
	return c.httpClient.Close()
}
