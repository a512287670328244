package rate

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// maxScrapeAttempts bounds retries for one crawl unit.
	maxScrapeAttempts = 3
	// maxBackoff caps the post-failure backoff.
	maxBackoff = 30 * time.Minute
)

// Outcome is the result of one rate-controlled crawl unit. ZeroProducts
// marks a response that parsed cleanly but contained nothing: the target is
// known never to be legitimately empty, so callers must treat it as a
// possible block, not as an empty category.
type Outcome[T any] struct {
	Products     []T
	ZeroProducts bool
	Attempts     int
}

// ScrapeWithRetry runs one crawl unit under the controller's failure policy.
// Errors are retried up to three attempts with a cooldown of
// min(FailureCooldown * 2^attempt, 30m) between them. A zero-result success
// records a failure on the controller and is returned as a distinguished
// non-error outcome.
func ScrapeWithRetry[T any](ctx context.Context, c *Controller, fn func(ctx context.Context) ([]T, error)) (Outcome[T], error) {
	var lastErr error

	for attempt := 0; attempt < maxScrapeAttempts; attempt++ {
		products, err := fn(ctx)
		if err == nil {
			if len(products) == 0 {
				c.RecordFailure()
				return Outcome[T]{ZeroProducts: true, Attempts: attempt + 1}, nil
			}
			c.RecordSuccess()
			return Outcome[T]{Products: products, Attempts: attempt + 1}, nil
		}
		lastErr = err
		c.RecordFailure()

		if ctx.Err() != nil {
			return Outcome[T]{Attempts: attempt + 1}, lastErr
		}
		if attempt >= maxScrapeAttempts-1 {
			break
		}

		backoff := c.FailureCooldown() * (1 << attempt)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		zap.L().Warn("crawl unit failed, backing off",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := c.sleep(ctx, backoff); err != nil {
			return Outcome[T]{Attempts: attempt + 1}, lastErr
		}
	}

	return Outcome[T]{Attempts: maxScrapeAttempts}, lastErr
}
