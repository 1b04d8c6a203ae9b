package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"affiliate_sheets/internal/affiliate"
	"affiliate_sheets/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = retry.Config{
	MaxRetries: 2,
	BaseDelay:  time.Millisecond,
	MaxDelay:   5 * time.Millisecond,
	Timeout:    time.Second,
}

func TestSendNotification(t *testing.T) {
	var gotBody, gotTitle, gotPriority, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "affiliate-runs", true, "high", fastPolicy)
	require.NoError(t, c.SendNotification(context.Background(), "Run done", "Fetched 10"))

	assert.Equal(t, "/affiliate-runs", gotPath)
	assert.Equal(t, "Fetched 10", gotBody)
	assert.Equal(t, "Run done", gotTitle)
	assert.Equal(t, "high", gotPriority)

	sent, failed, retries := c.GetMetrics()
	assert.Equal(t, int64(1), sent)
	assert.Zero(t, failed)
	assert.Zero(t, retries)
}

func TestSendNotificationRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", true, "", fastPolicy)
	require.NoError(t, c.SendNotification(context.Background(), "", "hi"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	_, _, retries := c.GetMetrics()
	assert.Equal(t, int64(2), retries)
}

func TestSendNotificationClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", true, "", fastPolicy)
	err := c.SendNotification(context.Background(), "", "hi")
	require.Error(t, err)

	var ne *NotificationError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "client", ne.Type)
	assert.Equal(t, http.StatusBadRequest, ne.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSendNotificationRateLimitIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", true, "", fastPolicy)
	require.Error(t, c.SendNotification(context.Background(), "", "hi"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", true, "", fastPolicy)
	for i := 0; i < circuitThreshold; i++ {
		require.Error(t, c.SendNotification(context.Background(), "", "hi"))
	}

	err := c.SendNotification(context.Background(), "", "hi")
	var ne *NotificationError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "circuit_open", ne.Type)
	assert.Equal(t, int32(circuitThreshold), atomic.LoadInt32(&calls))
}

func TestDisabledClientSendsNothing(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "t", false, "", fastPolicy)
	assert.NoError(t, c.SendNotification(context.Background(), "", "hi"))
	assert.NoError(t, c.NotifyRun(context.Background(), RunSummary{Status: "published"}))
}

func TestFormatRunSummary(t *testing.T) {
	title, msg := FormatRunSummary(RunSummary{
		RunID:    "abc",
		Status:   "published",
		Fetched:  250,
		Ranked:   100,
		Tabs:     7,
		Duration: 1500 * time.Millisecond,
		Top:      &affiliate.Listing{Name: "Serum", CommissionRate: 0.25, Commission: 75, OfferLink: "https://s.shopee.co.th/x"},
	})

	assert.Equal(t, "Affiliate pipeline: published", title)
	assert.Equal(t, "Fetched 250, ranked 100, wrote 7 tabs in 1.5s\nTop: Serum (25.00%, 75.00 THB)\nhttps://s.shopee.co.th/x\nRun abc", msg)

	title, msg = FormatRunSummary(RunSummary{Status: "failed", Err: errors.New("fetch: boom")})
	assert.Equal(t, "Affiliate pipeline failed", title)
	assert.Contains(t, msg, "Error: fetch: boom")
}
