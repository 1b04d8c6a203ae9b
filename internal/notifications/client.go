package notifications

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"affiliate_sheets/internal/affiliate"
	"affiliate_sheets/internal/retry"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	circuitThreshold = 5
	circuitCooldown  = 30 * time.Second
)

type Client struct {
	http     *resty.Client
	baseURL  string
	topic    string
	enabled  bool
	priority string
	policy   retry.Config
	// Circuit breaker state
	failures    int
	lastFailure time.Time
	circuitOpen bool
	mutex       sync.Mutex
	// Metrics
	totalSent    int64
	totalFailed  int64
	totalRetries int64
}

// RunSummary is what a notification says about a pipeline run.
type RunSummary struct {
	RunID    string
	Status   string
	Fetched  int
	Ranked   int
	Tabs     int
	Duration time.Duration
	Top      *affiliate.Listing
	Err      error
}

type NotificationError struct {
	Type       string
	StatusCode int
	Attempt    int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s] attempt %d: %v", e.Type, e.Attempt, e.Underlying)
}

func (e *NotificationError) Unwrap() error { return e.Underlying }

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "timeout", "rate_limit":
		return true
	case "auth", "client", "circuit_open":
		return false
	default:
		return e.StatusCode >= 500
	}
}

func NewClient(baseURL, topic string, enabled bool, priority string, policy retry.Config) *Client {
	return &Client{
		http:     resty.New().SetTimeout(10 * time.Second),
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		topic:    topic,
		enabled:  enabled,
		priority: priority,
		policy:   policy,
	}
}

func (c *Client) SendNotification(ctx context.Context, title, message string) error {
	if !c.enabled {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}

	if c.isCircuitOpen() {
		log.Warn().Msg("Circuit breaker open, skipping notification")
		return &NotificationError{
			Type:       "circuit_open",
			Underlying: fmt.Errorf("circuit breaker is open"),
		}
	}

	attempt := 0
	_, err := retry.WithRetry(ctx, c.policy, func(ctx context.Context) (struct{}, error) {
		attempt++
		if attempt > 1 {
			c.incrementRetries()
		}
		err := c.sendSingleNotification(ctx, title, message, attempt)
		if ne, ok := err.(*NotificationError); ok && !ne.IsRetryable() {
			return struct{}{}, retry.Permanent(err)
		}
		return struct{}{}, err
	})
	if err != nil {
		c.recordFailure()
		return err
	}

	c.recordSuccess()
	return nil
}

func (c *Client) sendSingleNotification(ctx context.Context, title, message string, attempt int) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)

	log.Debug().
		Str("url", url).
		Int("attempt", attempt).
		Msg("Sending notification")

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain").
		SetBody(message)
	if title != "" {
		req.SetHeader("Title", title)
	}
	if c.priority != "" {
		req.SetHeader("Priority", c.priority)
	}

	resp, err := req.Post(url)
	if err != nil {
		errType := "network"
		if ctx.Err() != nil {
			errType = "timeout"
		}
		return &NotificationError{Type: errType, Attempt: attempt, Underlying: err}
	}

	if resp.StatusCode() >= 400 {
		return &NotificationError{
			Type:       categorizeHTTPError(resp.StatusCode()),
			StatusCode: resp.StatusCode(),
			Attempt:    attempt,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.Status()),
		}
	}

	log.Debug().
		Int("status_code", resp.StatusCode()).
		Int("attempt", attempt).
		Msg("Notification sent successfully")
	return nil
}

// NotifyRun sends the summary of a finished run. Failures are logged and
// returned but callers are free to ignore them.
func (c *Client) NotifyRun(ctx context.Context, s RunSummary) error {
	if !c.enabled {
		return nil
	}
	title, message := FormatRunSummary(s)
	if err := c.SendNotification(ctx, title, message); err != nil {
		log.Warn().Err(err).Str("run_id", s.RunID).Msg("Run notification failed")
		return err
	}
	return nil
}

func FormatRunSummary(s RunSummary) (string, string) {
	var sb strings.Builder

	title := "Affiliate pipeline: " + s.Status
	if s.Err != nil {
		title = "Affiliate pipeline failed"
		sb.WriteString(fmt.Sprintf("Error: %v\n", s.Err))
	}

	sb.WriteString(fmt.Sprintf("Fetched %d, ranked %d", s.Fetched, s.Ranked))
	if s.Tabs > 0 {
		sb.WriteString(fmt.Sprintf(", wrote %d tabs", s.Tabs))
	}
	sb.WriteString(fmt.Sprintf(" in %s\n", s.Duration.Round(time.Millisecond)))

	if s.Top != nil {
		sb.WriteString(fmt.Sprintf("Top: %s (%.2f%%, %.2f THB)\n", s.Top.Name, s.Top.RatePercent(), s.Top.Commission))
		if s.Top.OfferLink != "" {
			sb.WriteString(s.Top.OfferLink + "\n")
		}
	}
	if s.RunID != "" {
		sb.WriteString("Run " + s.RunID)
	}

	return title, strings.TrimSuffix(sb.String(), "\n")
}

func (c *Client) isCircuitOpen() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.circuitOpen {
		return false
	}
	if time.Since(c.lastFailure) > circuitCooldown {
		c.circuitOpen = false
		c.failures = 0
		log.Info().Msg("Circuit breaker moving to half-open state")
	}
	return c.circuitOpen
}

func (c *Client) recordSuccess() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalSent++
	c.failures = 0
	if c.circuitOpen {
		c.circuitOpen = false
		log.Info().Msg("Circuit breaker closed after successful notification")
	}
}

func (c *Client) recordFailure() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalFailed++
	c.failures++
	c.lastFailure = time.Now()

	if c.failures >= circuitThreshold && !c.circuitOpen {
		c.circuitOpen = true
		log.Warn().
			Int("failures", c.failures).
			Msg("Circuit breaker opened due to consecutive failures")
	}
}

func (c *Client) incrementRetries() {
	c.mutex.Lock()
	c.totalRetries++
	c.mutex.Unlock()
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == 401 || statusCode == 403:
		return "auth"
	case statusCode == 429:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}

// GetMetrics returns current notification metrics
func (c *Client) GetMetrics() (sent, failed, retries int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.totalSent, c.totalFailed, c.totalRetries
}
