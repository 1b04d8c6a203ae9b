package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"affiliate_sheets/internal/affiliate"
	"affiliate_sheets/internal/cache"
	"affiliate_sheets/internal/notifications"
	"affiliate_sheets/internal/ranking"
	"affiliate_sheets/internal/resolution"
	"affiliate_sheets/internal/rows"
	"affiliate_sheets/internal/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	listings []affiliate.Listing
	err      error
	calls    []affiliate.FetchOptions
	started  chan struct{}
	block    chan struct{}
}

func (f *fakeFetcher) FetchAll(_ context.Context, opts affiliate.FetchOptions) ([]affiliate.Listing, error) {
	f.calls = append(f.calls, opts)
	if f.block != nil {
		close(f.started)
		<-f.block
	}
	return f.listings, f.err
}

type fakePublisher struct {
	requests []sheets.Request
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, req sheets.Request) ([]sheets.TabResult, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	out := []sheets.TabResult{{Title: sheets.TitleFromRange(req.Master.Range), NewRows: len(req.Master.Table.Body)}}
	if req.Summary != nil {
		out = append(out, sheets.TabResult{Title: sheets.TitleFromRange(req.Summary.Range)})
	}
	for _, t := range req.Tabs {
		out = append(out, sheets.TabResult{Title: sheets.TitleFromRange(t.Range)})
	}
	return out, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	summaries []notifications.RunSummary
}

func (n *fakeNotifier) NotifyRun(_ context.Context, s notifications.RunSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, s)
	return errors.New("ntfy down")
}

func testListings() []affiliate.Listing {
	return []affiliate.Listing{
		{ItemID: "1", Name: "Kettle", CommissionRate: 0.12, Commission: 80, Price: 600, CategoryIDs: []string{"100636"}},
		{ItemID: "2", Name: "Serum", CommissionRate: 0.25, Commission: 75, Price: 300, CategoryIDs: []string{"100630", "100636"}},
		{ItemID: "3", Name: "Snack", CommissionRate: 0.30, Commission: 15, Price: 50, CategoryIDs: []string{"100629"}},
		{ItemID: "4", Name: "Cable", CommissionRate: 0.05, Commission: 90, Price: 1800},
	}
}

func testOptions() Options {
	return Options{
		Criteria:             ranking.Criteria{MinRate: 10, MinCommission: 60, TopN: 100},
		SpreadsheetID:        "sheet",
		MasterRange:          "DailyTop!A1",
		CategoryRange:        "CategoryTop!A1",
		HistoryLimit:         1000,
		CategoryHistoryLimit: 200,
		TabHistoryLimit:      50,
		CategoryTopLimit:     5,
		CategoryTabLimit:     20,
		CategorySummary:      true,
		CategoryTabs:         true,
	}
}

func TestRunPublishes(t *testing.T) {
	fetcher := &fakeFetcher{listings: testListings()}
	pub := &fakePublisher{}
	store := cache.NewMemory()
	notifier := &fakeNotifier{}

	o := New(fetcher, pub, store, resolution.DefaultCategories, testOptions(), WithNotifier(notifier))
	res, err := o.Run(context.Background(), testOptions())
	require.NoError(t, err)

	assert.Equal(t, StatusPublished, res.Status)
	assert.Equal(t, 4, res.Fetched)
	assert.Equal(t, 2, res.Ranked)
	assert.NotEmpty(t, res.RunID)
	require.NotNil(t, res.Top)
	assert.Equal(t, "Serum", res.Top.Name)

	require.Len(t, pub.requests, 1)
	req := pub.requests[0]
	assert.Equal(t, "sheet", req.SpreadsheetID)
	assert.Equal(t, 1000, req.RetentionCap)
	assert.Equal(t, rows.MasterHeader, req.Master.Table.Header)
	assert.Len(t, req.Master.Table.Body, 2)
	require.NotNil(t, req.Summary)
	assert.Equal(t, 200, req.Summary.Cap)
	require.Len(t, req.Tabs, 2)
	assert.Equal(t, "100630!A1", req.Tabs[0].Range)
	assert.Equal(t, "100636!A1", req.Tabs[1].Range)
	assert.Equal(t, 50, req.Tabs[0].Cap)
	assert.Len(t, res.Tabs, 4)

	entry, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, entry.Listings, 4)

	// notification failures never fail the run
	require.Len(t, notifier.summaries, 1)
	assert.Equal(t, "published", notifier.summaries[0].Status)
}

func TestRunNothingFetched(t *testing.T) {
	pub := &fakePublisher{}
	o := New(&fakeFetcher{}, pub, nil, nil, testOptions())

	res, err := o.Run(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, StatusNothingFetched, res.Status)
	assert.Equal(t, "No products fetched", res.Message())
	assert.Empty(t, pub.requests)
}

func TestRunNothingRanked(t *testing.T) {
	pub := &fakePublisher{}
	o := New(&fakeFetcher{listings: testListings()}, pub, nil, nil, testOptions())

	opts := testOptions()
	opts.Criteria.MinRate = 90
	res, err := o.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, StatusNothingRanked, res.Status)
	assert.Equal(t, "No products matched filters", res.Message())
	assert.Empty(t, pub.requests)
}

func TestRunFetchFailure(t *testing.T) {
	boom := errors.New("connection refused")
	pub := &fakePublisher{}
	notifier := &fakeNotifier{}
	o := New(&fakeFetcher{err: boom}, pub, nil, nil, testOptions(), WithNotifier(notifier))

	res, err := o.Run(context.Background(), testOptions())
	require.Error(t, err)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageFetch, se.Stage)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Empty(t, pub.requests)

	require.Len(t, notifier.summaries, 1)
	assert.ErrorIs(t, notifier.summaries[0].Err, boom)
}

func TestRunPublishFailure(t *testing.T) {
	o := New(&fakeFetcher{listings: testListings()}, &fakePublisher{err: sheets.ErrMissingSpreadsheetID}, nil, nil, testOptions())

	_, err := o.Run(context.Background(), testOptions())
	assert.Equal(t, StagePublish, FailedStage(err))
	assert.ErrorIs(t, err, sheets.ErrMissingSpreadsheetID)
}

func TestRunWithoutSpreadsheetIDFailsBeforeFetch(t *testing.T) {
	tests := []struct {
		name     string
		listings []affiliate.Listing
	}{
		{"with listings", testListings()},
		{"empty upstream", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			opts.SpreadsheetID = ""
			fetcher := &fakeFetcher{listings: tt.listings}
			pub := &fakePublisher{}

			res, err := New(fetcher, pub, nil, nil, opts).Run(context.Background(), opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, sheets.ErrMissingSpreadsheetID)
			assert.Equal(t, StageConfig, FailedStage(err))
			assert.Equal(t, StatusFailed, res.Status)
			assert.Empty(t, fetcher.calls)
			assert.Empty(t, pub.requests)
		})
	}
}

func TestRunBadMasterRange(t *testing.T) {
	opts := testOptions()
	opts.MasterRange = "!A1"
	o := New(&fakeFetcher{listings: testListings()}, &fakePublisher{}, nil, nil, opts)

	_, err := o.Run(context.Background(), opts)
	assert.Equal(t, StageBuildRows, FailedStage(err))
}

func TestRunOptionalTabs(t *testing.T) {
	opts := testOptions()
	opts.CategorySummary = false
	opts.CategoryTabs = false
	pub := &fakePublisher{}

	_, err := New(&fakeFetcher{listings: testListings()}, pub, nil, nil, opts).Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, pub.requests, 1)
	assert.Nil(t, pub.requests[0].Summary)
	assert.Empty(t, pub.requests[0].Tabs)
}

func TestRunCategoryFetchSkipsCache(t *testing.T) {
	store := cache.NewMemory()
	opts := testOptions()
	opts.Fetch.CategoryID = "100636"

	_, err := New(&fakeFetcher{listings: testListings()}, &fakePublisher{}, store, nil, opts).Run(context.Background(), opts)
	require.NoError(t, err)

	_, ok, _ := store.Load(context.Background())
	assert.False(t, ok)
}

func TestRunIsSingleFlight(t *testing.T) {
	fetcher := &fakeFetcher{listings: testListings(), started: make(chan struct{}), block: make(chan struct{})}
	o := New(fetcher, &fakePublisher{}, nil, nil, testOptions())

	done := make(chan error)
	go func() {
		_, err := o.Run(context.Background(), testOptions())
		done <- err
	}()

	<-fetcher.started
	_, err := o.Run(context.Background(), testOptions())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(fetcher.block)
	require.NoError(t, <-done)
}

func TestListingsUsesFreshCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := cache.NewMemory()
	require.NoError(t, store.Save(context.Background(), cache.Entry{
		Listings:  []affiliate.Listing{{ItemID: "cached"}},
		FetchedAt: now.Add(-10 * time.Minute),
	}))

	fetcher := &fakeFetcher{listings: testListings()}
	o := New(fetcher, &fakePublisher{}, store, nil, testOptions(), WithClock(func() time.Time { return now }))

	entry, hit, err := o.Listings(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "cached", entry.Listings[0].ItemID)
	assert.Empty(t, fetcher.calls)
}

func TestListingsRefetchesStaleCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := cache.NewMemory()
	require.NoError(t, store.Save(context.Background(), cache.Entry{
		Listings:  []affiliate.Listing{{ItemID: "cached"}},
		FetchedAt: now.Add(-2 * time.Hour),
	}))

	opts := testOptions()
	opts.Fetch.CategoryID = "100636"
	fetcher := &fakeFetcher{listings: testListings()}
	o := New(fetcher, &fakePublisher{}, store, nil, opts, WithClock(func() time.Time { return now }))

	entry, hit, err := o.Listings(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, entry.Listings, 4)
	require.Len(t, fetcher.calls, 1)
	assert.Empty(t, fetcher.calls[0].CategoryID)

	cached, _, _ := store.Load(context.Background())
	assert.True(t, cached.FetchedAt.Equal(now))
}

func TestFilter(t *testing.T) {
	o := New(&fakeFetcher{listings: testListings()}, &fakePublisher{}, nil, nil, testOptions())

	res, err := o.Filter(context.Background(), ranking.Criteria{MinRate: 10, TopN: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalMatches)
	assert.Equal(t, 3, res.Stats.Total)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Snack", res.Products[0].Name)
	assert.InDelta(t, 30, res.Stats.HighestRatePct, 1e-9)
}

func TestStageErrorMessage(t *testing.T) {
	err := &StageError{Stage: StageFetch, Err: errors.New("boom")}
	assert.Equal(t, "fetch: boom", err.Error())
	assert.Equal(t, Stage(""), FailedStage(errors.New("plain")))
}
