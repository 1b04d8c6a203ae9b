package sheets

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

var ErrMissingSpreadsheetID = errors.New("spreadsheet id is required")

// Backend is the subset of the Sheets API the publisher needs. *Client
// implements it.
type Backend interface {
	ListTabs(ctx context.Context, spreadsheetID string) ([]string, error)
	CreateTab(ctx context.Context, spreadsheetID, title string) error
	ReadRange(ctx context.Context, spreadsheetID, range_ string) ([][]interface{}, error)
	ClearRange(ctx context.Context, spreadsheetID, range_ string) error
	WriteRange(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error
}

// Request describes one publish: the master tab, an optional category
// summary tab and any number of per-category tabs.
type Request struct {
	SpreadsheetID string
	// RetentionCap applies to tabs without their own Cap.
	RetentionCap int
	Master       Tab
	Summary      *Tab
	Tabs         []Tab
}

func (r Request) destinations() []Tab {
	tabs := []Tab{r.Master}
	if r.Summary != nil {
		tabs = append(tabs, *r.Summary)
	}
	return append(tabs, r.Tabs...)
}

// TabResult records what was written to one tab.
type TabResult struct {
	Title   string `json:"title"`
	NewRows int    `json:"newRows"`
	Rows    int    `json:"rows"`
	Created bool   `json:"created"`
}

type Publisher struct {
	backend Backend
}

func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend}
}

// Publish writes each destination tab in order. Tabs are created when
// missing, and each tab's previous rows are kept below the new ones up to
// its cap. A failure stops the publish; tabs already written stay written
// and are returned alongside the error.
func (p *Publisher) Publish(ctx context.Context, req Request) ([]TabResult, error) {
	if req.SpreadsheetID == "" {
		return nil, ErrMissingSpreadsheetID
	}

	titles, err := p.backend.ListTabs(ctx, req.SpreadsheetID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(titles))
	for _, t := range titles {
		existing[t] = true
	}

	var results []TabResult
	for _, tab := range req.destinations() {
		res, err := p.publishTab(ctx, req, tab, existing)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	log.Info().
		Str("spreadsheet_id", req.SpreadsheetID).
		Int("tabs", len(results)).
		Msg("Published to spreadsheet")
	return results, nil
}

func (p *Publisher) publishTab(ctx context.Context, req Request, tab Tab, existing map[string]bool) (TabResult, error) {
	title := TitleFromRange(tab.Range)
	if title == "" {
		return TabResult{}, fmt.Errorf("invalid range %q: no tab title", tab.Range)
	}
	res := TabResult{Title: title, NewRows: len(tab.Table.Body)}

	if !existing[title] {
		if err := p.backend.CreateTab(ctx, req.SpreadsheetID, title); err != nil {
			return res, err
		}
		existing[title] = true
		res.Created = true
	}

	whole := QuoteTitle(title)
	current, err := p.backend.ReadRange(ctx, req.SpreadsheetID, whole)
	if err != nil {
		if !IsNoData(err) {
			return res, fmt.Errorf("failed to read tab %q: %w", title, err)
		}
		log.Debug().Str("tab", title).Msg("Tab has no data yet")
		current = nil
	}

	limit := tab.Cap
	if limit <= 0 {
		limit = req.RetentionCap
	}
	body := MergeHistory(tab.Table.Header, current, tab.Table.Body, limit)
	if len(current) > 0 && !headersMatch(tab.Table.Header, current[0]) {
		log.Warn().
			Str("tab", title).
			Int("discarded_rows", len(current)-1).
			Msg("Header changed, discarding previous rows")
	}

	if err := p.backend.ClearRange(ctx, req.SpreadsheetID, whole); err != nil {
		return res, fmt.Errorf("failed to clear tab %q: %w", title, err)
	}

	values := Table{Header: tab.Table.Header, Body: body}.Values()
	if err := p.backend.WriteRange(ctx, req.SpreadsheetID, CellRange(title, "A1"), values); err != nil {
		return res, fmt.Errorf("failed to write tab %q: %w", title, err)
	}

	res.Rows = len(body)
	log.Debug().
		Str("tab", title).
		Int("new_rows", res.NewRows).
		Int("rows", res.Rows).
		Msg("Wrote tab")
	return res, nil
}
