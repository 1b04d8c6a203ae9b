package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Timeout bounds each attempt; zero leaves attempts bounded only by ctx.
	Timeout time.Duration
}

// Notification is the policy for delivering run notifications.
var Notification = Config{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   15 * time.Second,
	Timeout:    10 * time.Second,
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. WithRetry returns it
// unwrapped on the first occurrence.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func WithRetry[T any](ctx context.Context, config Config, operation func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := runAttempt(ctx, config.Timeout, operation)
		if err == nil {
			return result, nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			log.Debug().Err(p.err).Int("attempt", attempt+1).Msg("Operation failed permanently")
			return zero, p.err
		}

		log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Msg("Operation failed")

		if attempt < config.MaxRetries {
			delay := calculateBackoffDelay(attempt, config.BaseDelay, config.MaxDelay)
			log.Debug().
				Dur("delay", delay).
				Int("next_attempt", attempt+2).
				Msg("Retrying after delay")

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
		return zero, fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, err)
	}
	return zero, fmt.Errorf("unexpected: exceeded retry loop")
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, operation func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return operation(ctx)
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return operation(opCtx)
}

func calculateBackoffDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	// 2^30 is the largest shift that stays safe for int
	safeAttempt := min(attempt, 30)
	delay := time.Duration(1<<safeAttempt) * baseDelay

	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}

	// jitter between 0.5x and 1.5x
	delay = time.Duration(float64(delay) * (0.5 + rand.Float64()))

	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
