package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 500 * time.Millisecond

	// defaultRequestsPerSecond is deliberately conservative. Provider rate
	// limits vary wildly; 2 rps keeps a five-provider fan-out under every
	// free tier we have seen.
	defaultRequestsPerSecond = 2
)

func newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1)
}

// statusError lets providers mark an HTTP status as retryable or not.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

// callWithRetry runs fn with rate limiting and exponential backoff.
// Retries on 429 and 5xx; gives up immediately on 4xx (bad request, bad key)
// and on context cancellation.
func callWithRetry(ctx context.Context, limiter *rate.Limiter, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(defaultMaxRetries, retry.NewExponential(defaultInitialBackoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var se *statusError
		if errors.As(err, &se) {
			if se.status == http.StatusTooManyRequests || se.status >= 500 {
				return retry.RetryableError(err)
			}
			return err
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Transport-level failures (connection reset, DNS) are worth a retry.
		return retry.RetryableError(err)
	})
}
