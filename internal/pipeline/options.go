package pipeline

import (
	"affiliate_sheets/internal/affiliate"
	"affiliate_sheets/internal/config"
	"affiliate_sheets/internal/ranking"
)

// Options control one run. Zero-valued fields fall back to the
// package defaults of whichever stage consumes them.
type Options struct {
	Fetch    affiliate.FetchOptions
	Criteria ranking.Criteria

	SpreadsheetID string
	MasterRange   string
	CategoryRange string

	HistoryLimit         int
	CategoryHistoryLimit int
	TabHistoryLimit      int

	CategoryTopLimit int
	CategoryTabLimit int
	CategorySummary  bool
	CategoryTabs     bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	p := cfg.Pipeline
	return Options{
		Fetch: affiliate.FetchOptions{
			CategoryID: p.CategoryID,
			PageSize:   p.PageSize,
			MaxPages:   p.MaxPages,
		},
		Criteria: ranking.Criteria{
			MinRate:       p.MinRate,
			MaxRate:       p.MaxRate,
			MinPrice:      p.MinPrice,
			MaxPrice:      p.MaxPrice,
			MinCommission: p.MinCommission,
			TopN:          p.Top,
		},
		SpreadsheetID:        cfg.Sheets.SpreadsheetID,
		MasterRange:          cfg.Sheets.MasterRange,
		CategoryRange:        cfg.Sheets.CategoryRange,
		HistoryLimit:         p.HistoryLimit,
		CategoryHistoryLimit: p.CategoryHistoryLimit,
		TabHistoryLimit:      p.TabHistoryLimit,
		CategoryTopLimit:     p.CategoryTopLimit,
		CategoryTabLimit:     p.CategoryTabLimit,
		CategorySummary:      p.CategorySummary,
		CategoryTabs:         p.CategoryTabs,
	}
}
