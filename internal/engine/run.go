package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run drives drain passes until ctx is cancelled.
//
// A pass runs at startup, on every connectivity-restored event, on Kick, and
// whenever the retry timer fires. After a pass with failures the retry
// interval doubles up to the max backoff; a clean pass or a restored event
// resets it.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// Returns ctx.Err() on cancellation.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("sync engine starting",
		zap.Duration("retry_interval", e.retryInterval),
		zap.Duration("max_backoff", e.maxBackoff))

	delay := e.pass(ctx, 0)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sync engine stopping: context cancelled")
			return ctx.Err()

		case <-e.conn.Restored():
			delay = e.pass(ctx, 0)

		case <-e.kick.Wait():
			delay = e.pass(ctx, delay)

		case <-timer.C:
			delay = e.pass(ctx, delay)
		}

		timer.Reset(delay)
	}
}

// pass runs one drain pass and returns the delay before the next timed pass.
func (e *Engine) pass(ctx context.Context, delay time.Duration) time.Duration {
	report, err := e.Drain(ctx)
	if err != nil && ctx.Err() == nil {
		e.logger.Error("drain pass failed", zap.Error(err))
	}
	return nextDelay(delay, report, err, e.retryInterval, e.maxBackoff)
}

// nextDelay computes the retry delay after a pass.
// Skipped passes leave it unchanged. A non-positive current marks a fresh
// start (startup or restore): a failed pass then waits base, not twice base.
func nextDelay(current time.Duration, report DrainReport, err error, base, ceiling time.Duration) time.Duration {
	fresh := current <= 0
	if fresh {
		current = base
	}

	switch {
	case err != nil || (!report.Skipped && report.Failed > 0):
		if fresh {
			return base
		}
		next := current * 2
		if next > ceiling || next <= 0 {
			next = ceiling
		}
		return next
	case report.Skipped:
		return current
	default:
		return base
	}
}
