package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryExecutor runs an operation with a bounded attempt count, exponential
// backoff between attempts, and a hard timeout per attempt. It has no
// knowledge of extraction semantics and no side effects beyond invoking the
// operation and sleeping between attempts.
//
// Only individual interaction primitives (navigate, click, type) should be
// wrapped - never stateful multi-step transactions, which are not idempotent
// at retry granularity.
type RetryExecutor struct {
	logger      arbor.ILogger
	baseBackoff time.Duration

	// sleep is replaceable in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor creates a retry executor with 1s base backoff.
func NewRetryExecutor(logger arbor.ILogger) *RetryExecutor {
	return &RetryExecutor{
		logger:      logger,
		baseBackoff: time.Second,
		sleep:       sleepCtx,
	}
}

// Execute runs op up to maxAttempts times, racing each attempt against
// attemptTimeout. The backoff before attempt n+1 is 2^(n-1) * 1s (attempts
// are 1-indexed). After exhaustion the returned error wraps the operation
// name, the attempt count, and the last underlying error.
//
// The timeout races the operation against a timer; if the operation itself
// ignores context cancellation the underlying driver call cannot be aborted,
// only abandoned.
func (e *RetryExecutor) Execute(ctx context.Context, name string, maxAttempts int, attemptTimeout time.Duration, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = e.runAttempt(ctx, name, attemptTimeout, op)
		if lastErr == nil {
			if attempt > 1 {
				e.logger.Debug().
					Str("operation", name).
					Int("attempt", attempt).
					Msg("Operation succeeded after retry")
			}
			return nil
		}

		e.logger.Debug().
			Str("operation", name).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Err(lastErr).
			Msg("Operation attempt failed")

		if attempt < maxAttempts {
			backoff := e.baseBackoff * time.Duration(1<<uint(attempt-1))
			e.logger.Debug().
				Str("operation", name).
				Dur("backoff", backoff).
				Msg("Retrying after backoff")
			if err := e.sleep(ctx, backoff); err != nil {
				return err
			}
		}
	}

	e.logger.Warn().
		Str("operation", name).
		Int("max_attempts", maxAttempts).
		Err(lastErr).
		Msg("All retry attempts exhausted")

	return fmt.Errorf("%s failed after %d attempts: %w", name, maxAttempts, lastErr)
}

// runAttempt races one invocation of op against the attempt timeout.
func (e *RetryExecutor) runAttempt(ctx context.Context, name string, attemptTimeout time.Duration, op func(ctx context.Context) error) error {
	if attemptTimeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- op(attemptCtx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-attemptCtx.Done():
		return fmt.Errorf("%s timed out after %s", name, attemptTimeout)
	}
}

// sleepCtx sleeps for d with context cancellation support.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
