package client

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"agroquote/quoter/internal/config"
	"agroquote/quoter/internal/feed"
)

// WorkbookSource reads the feed from a local .xlsx file. The file is opened
// on every fetch so an updated copy is picked up by the next refresh.
type WorkbookSource struct {
	path  string
	sheet string
	cfg   config.FeedConfig
}

func NewWorkbookSource(cfg config.FeedConfig) (*WorkbookSource, error) {
	if strings.TrimSpace(cfg.WorkbookPath) == "" {
		return nil, fmt.Errorf("workbook source: %w", ErrMissingFeedID)
	}
	return &WorkbookSource{path: cfg.WorkbookPath, sheet: cfg.Sheet, cfg: cfg}, nil
}

func (s *WorkbookSource) FetchFeed(ctx context.Context) (*feed.RawFeed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wb, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", s.path, err)
	}
	defer wb.Close()

	sheet := s.sheet
	if sheet == "" {
		sheet = wb.GetSheetName(0)
	}

	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	raw := &feed.RawFeed{Rows: trimLeadingEmptyRows(rows)}
	raw.Version = readMetaCell(wb, sheet, s.cfg.VersionCell)
	raw.Rate = readMetaCell(wb, sheet, s.cfg.RateCell)

	log.Debugf("Read %d rows from workbook %s (sheet %s)", len(rows), s.path, sheet)
	return raw, nil
}

func readMetaCell(wb *excelize.File, defaultSheet, refText string) string {
	ref, ok := parseCellRef(refText)
	if !ok {
		return ""
	}
	sheet := ref.Sheet
	if sheet == "" {
		sheet = defaultSheet
	}
	v, err := wb.GetCellValue(sheet, ref.Cell)
	if err != nil {
		log.Warnf("Failed to read metadata cell %s, ignoring it: %v", refText, err)
		return ""
	}
	return strings.TrimSpace(v)
}
