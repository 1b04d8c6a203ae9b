package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"affiliate_sheets/internal/affiliate"
	"affiliate_sheets/internal/cache"
	"affiliate_sheets/internal/notifications"
	"affiliate_sheets/internal/ranking"
	"affiliate_sheets/internal/resolution"
	"affiliate_sheets/internal/rows"
	"affiliate_sheets/internal/sheets"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	StatusPublished      Status = "published"
	StatusNothingFetched Status = "no_products_fetched"
	StatusNothingRanked  Status = "no_products_matched"
	StatusFailed         Status = "failed"
)

type Fetcher interface {
	FetchAll(ctx context.Context, opts affiliate.FetchOptions) ([]affiliate.Listing, error)
}

type Publisher interface {
	Publish(ctx context.Context, req sheets.Request) ([]sheets.TabResult, error)
}

type Notifier interface {
	NotifyRun(ctx context.Context, s notifications.RunSummary) error
}

type Result struct {
	RunID     string             `json:"runId"`
	Status    Status             `json:"status"`
	Fetched   int                `json:"fetched"`
	Ranked    int                `json:"ranked"`
	Tabs      []sheets.TabResult `json:"tabs,omitempty"`
	Top       *affiliate.Listing `json:"top,omitempty"`
	StartedAt time.Time          `json:"startedAt"`
	Duration  time.Duration      `json:"duration"`
}

// Message is a one-line human summary of the result.
func (r *Result) Message() string {
	switch r.Status {
	case StatusNothingFetched:
		return "No products fetched"
	case StatusNothingRanked:
		return "No products matched filters"
	case StatusPublished:
		return fmt.Sprintf("Published %d of %d products to %d tabs", r.Ranked, r.Fetched, len(r.Tabs))
	}
	return string(r.Status)
}

type Orchestrator struct {
	fetcher   Fetcher
	publisher Publisher
	store     cache.Store
	namer     resolution.Namer
	notifier  Notifier
	defaults  Options
	maxAge    time.Duration
	now       func() time.Time

	running sync.Mutex
}

type Option func(*Orchestrator)

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithCacheMaxAge sets how long cached listings are served before a
// refetch.
func WithCacheMaxAge(d time.Duration) Option {
	return func(o *Orchestrator) { o.maxAge = d }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(fetcher Fetcher, publisher Publisher, store cache.Store, namer resolution.Namer, defaults Options, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:   fetcher,
		publisher: publisher,
		store:     store,
		namer:     namer,
		defaults:  defaults,
		maxAge:    cache.DefaultMaxAge,
		now:       time.Now,
	}
	if o.store == nil {
		o.store = cache.NewMemory()
	}
	if o.namer == nil {
		o.namer = resolution.DefaultCategories
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Defaults returns a copy of the options configured at construction.
func (o *Orchestrator) Defaults() Options {
	return o.defaults
}

// Run executes fetch, rank, build and publish in order. Only one run
// proceeds at a time; a concurrent call gets ErrRunInProgress.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	if !o.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer o.running.Unlock()

	res := &Result{RunID: uuid.NewString(), StartedAt: o.now()}
	logger := log.With().Str("run_id", res.RunID).Logger()
	logger.Info().Msg("Starting pipeline run")

	err := o.run(ctx, opts, res)
	res.Duration = o.now().Sub(res.StartedAt)

	if err != nil {
		res.Status = StatusFailed
		logger.Error().Err(err).Str("stage", string(FailedStage(err))).Dur("duration", res.Duration).Msg("Pipeline run failed")
	} else {
		logger.Info().
			Str("status", string(res.Status)).
			Int("fetched", res.Fetched).
			Int("ranked", res.Ranked).
			Int("tabs", len(res.Tabs)).
			Dur("duration", res.Duration).
			Msg(res.Message())
	}

	o.notify(ctx, res, err)
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, opts Options, res *Result) error {
	if opts.SpreadsheetID == "" {
		return &StageError{Stage: StageConfig, Err: sheets.ErrMissingSpreadsheetID}
	}

	listings, err := o.fetch(ctx, opts.Fetch)
	if err != nil {
		return &StageError{Stage: StageFetch, Err: err}
	}
	res.Fetched = len(listings)
	if len(listings) == 0 {
		res.Status = StatusNothingFetched
		return nil
	}

	ranked := ranking.Rank(listings, opts.Criteria)
	res.Ranked = len(ranked)
	if len(ranked) == 0 {
		res.Status = StatusNothingRanked
		return nil
	}
	top := ranked[0]
	res.Top = &top

	req, err := o.buildRequest(ranked, opts, res.StartedAt)
	if err != nil {
		return &StageError{Stage: StageBuildRows, Err: err}
	}

	tabs, err := o.publisher.Publish(ctx, req)
	res.Tabs = tabs
	if err != nil {
		return &StageError{Stage: StagePublish, Err: err}
	}

	res.Status = StatusPublished
	return nil
}

func (o *Orchestrator) buildRequest(ranked []affiliate.Listing, opts Options, runAt time.Time) (sheets.Request, error) {
	if sheets.TitleFromRange(opts.MasterRange) == "" {
		return sheets.Request{}, fmt.Errorf("master range %q has no tab title", opts.MasterRange)
	}

	req := sheets.Request{
		SpreadsheetID: opts.SpreadsheetID,
		RetentionCap:  opts.HistoryLimit,
		Master: sheets.Tab{
			Range: opts.MasterRange,
			Table: rows.Master(ranked, runAt.UTC(), o.namer),
		},
	}

	if opts.CategorySummary && sheets.TitleFromRange(opts.CategoryRange) != "" {
		req.Summary = &sheets.Tab{
			Range: opts.CategoryRange,
			Table: rows.CategorySummary(ranked, opts.CategoryTopLimit),
			Cap:   opts.CategoryHistoryLimit,
		}
	}

	if opts.CategoryTabs {
		for _, tab := range rows.CategoryTabs(ranked, opts.CategoryTabLimit) {
			tab.Cap = opts.TabHistoryLimit
			req.Tabs = append(req.Tabs, tab)
		}
	}
	return req, nil
}

// Fetch pulls listings and, for unfiltered fetches, replaces the cached
// snapshot.
func (o *Orchestrator) Fetch(ctx context.Context, opts affiliate.FetchOptions) ([]affiliate.Listing, error) {
	return o.fetch(ctx, opts)
}

func (o *Orchestrator) fetch(ctx context.Context, opts affiliate.FetchOptions) ([]affiliate.Listing, error) {
	listings, err := o.fetcher.FetchAll(ctx, opts)
	if err != nil {
		return nil, err
	}

	if affiliate.NormalizeID(opts.CategoryID) == "" && len(listings) > 0 {
		entry := cache.Entry{Listings: listings, FetchedAt: o.now()}
		if err := o.store.Save(ctx, entry); err != nil {
			log.Warn().Err(err).Msg("Failed to refresh listing cache")
		}
	}
	return listings, nil
}

// Listings returns the cached snapshot while it is fresh, otherwise
// fetches with the default options. The bool reports whether the cache
// served the request.
func (o *Orchestrator) Listings(ctx context.Context) (cache.Entry, bool, error) {
	entry, ok, err := o.store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read listing cache")
	}
	if ok && entry.Fresh(o.now(), o.maxAge) {
		return entry, true, nil
	}

	fetchOpts := o.defaults.Fetch
	fetchOpts.CategoryID = ""
	listings, err := o.fetch(ctx, fetchOpts)
	if err != nil {
		return cache.Entry{}, false, err
	}
	return cache.Entry{Listings: listings, FetchedAt: o.now()}, false, nil
}

// FilterResult is the outcome of ranking the current listings without
// publishing them.
type FilterResult struct {
	Products     []affiliate.Listing `json:"products"`
	Stats        ranking.Stats       `json:"stats"`
	TotalMatches int                 `json:"totalMatches"`
}

// Filter ranks the current listings against c. Stats cover every match,
// Products only the top c.TopN.
func (o *Orchestrator) Filter(ctx context.Context, c ranking.Criteria) (*FilterResult, error) {
	entry, _, err := o.Listings(ctx)
	if err != nil {
		return nil, err
	}

	matches := ranking.Filter(entry.Listings, c)
	return &FilterResult{
		Products:     ranking.Rank(matches, c),
		Stats:        ranking.Summarize(matches),
		TotalMatches: len(matches),
	}, nil
}

func (o *Orchestrator) notify(ctx context.Context, res *Result, runErr error) {
	if o.notifier == nil {
		return
	}
	summary := notifications.RunSummary{
		RunID:    res.RunID,
		Status:   string(res.Status),
		Fetched:  res.Fetched,
		Ranked:   res.Ranked,
		Tabs:     len(res.Tabs),
		Duration: res.Duration,
		Top:      res.Top,
		Err:      runErr,
	}
	// the report still goes out when the trigger was cancelled
	if err := o.notifier.NotifyRun(context.WithoutCancel(ctx), summary); err != nil {
		log.Warn().Err(err).Str("run_id", res.RunID).Msg("Failed to send run notification")
	}
}
