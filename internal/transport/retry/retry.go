// Package retry implements the fixed-backoff retry spec.md §7 requires for
// transient transport errors from clients that own an outbound endpoint
// (agent RPCs, orchestrator->controller registration). Pacing is built on
// golang.org/x/time/rate the way the pack's adaptive rate limiter
// (features/model/middleware.AdaptiveRateLimiter) paces outbound calls,
// simplified here to a fixed (non-adaptive) budget since spec.md names only
// fixed backoff, not AIMD.
package retry

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

// Retrier re-issues a failing call up to MaxAttempts times, spaced by a
// fixed-rate limiter rather than a growing delay: spec.md §7 calls for
// fixed backoff, not exponential.
type Retrier struct {
	limiter     *rate.Limiter
	maxAttempts int
	log         *logger.Logger
}

// New creates a Retrier that permits one attempt every interval (via
// rate.Every) and gives up after maxAttempts.
func New(interval rate.Limit, burst, maxAttempts int, log *logger.Logger) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{
		limiter:     rate.NewLimiter(interval, burst),
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// ErrExhausted is wrapped, together with the last attempt's error, by the
// error Do returns once all retries are spent.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Do calls fn, retrying on error up to MaxAttempts times. Each attempt
// (including the first) waits for the limiter before running, so a burst of
// callers sharing one Retrier is itself rate-limited. ctx cancellation
// aborts immediately, whether waiting on the limiter or between attempts.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if r.log != nil {
			r.log.Warn("retry: attempt failed", "attempt", attempt, "max_attempts", r.maxAttempts, "error", lastErr)
		}
	}
	return fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}
