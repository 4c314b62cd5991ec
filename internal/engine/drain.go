package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/posync/internal/pos"
)

// DrainReport summarizes one drain pass.
type DrainReport struct {
	Attempted  int  // Entries a delivery was attempted for
	Delivered  int  // Entries delivered and removed from the queue
	Failed     int  // Entries whose delivery failed; kept in the queue
	Remaining  int  // Queue length after the pass
	Superseded int  // Price entries dropped unsent because a newer sheet for the date is queued
	Skipped    bool // Pass did not run: offline or another pass in flight
}

// Clean reports whether the pass ran without delivery failures.
func (r DrainReport) Clean() bool {
	return !r.Skipped && r.Failed == 0
}

// Drain replays the pending queue once, in enqueue order.
//
// The pass is skipped when offline or when another pass is already in
// flight. Each delivered entry is deleted; a failed entry has the attempt
// recorded and the pass continues with the next one. The pass stops early
// if connectivity drops. A queued price sheet is removed unsent when a newer
// sheet for the same date is queued behind it.
//
// A non-nil error means the queue itself could not be read; per-entry
// delivery failures are counted in the report, not returned.
func (e *Engine) Drain(ctx context.Context) (DrainReport, error) {
	if !e.conn.IsOnline() {
		e.logger.Debug("drain skipped: offline")
		return DrainReport{Skipped: true}, nil
	}
	if !e.draining.CompareAndSwap(false, true) {
		e.logger.Debug("drain skipped: pass in flight")
		return DrainReport{Skipped: true}, nil
	}
	defer e.draining.Store(false)

	entries, err := e.store.ListPendingSyncs(ctx)
	if err != nil {
		return DrainReport{}, err
	}

	latest := latestPriceEntries(entries)

	var report DrainReport
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.Kind == pos.PayloadPrices && latest[entry.IdempotencyKey()] != entry.ID {
			if err := e.store.DeletePendingSync(ctx, entry.ID); err != nil {
				e.logger.Error("delete superseded entry failed",
					zap.Int64("entry_id", entry.ID),
					zap.Error(err))
				continue
			}
			report.Superseded++
			e.logger.Debug("superseded price sheet dropped",
				zap.Int64("entry_id", entry.ID),
				zap.String("key", entry.IdempotencyKey()))
			continue
		}
		if !e.conn.IsOnline() {
			e.logger.Info("drain stopped: connectivity lost",
				zap.Int("attempted", report.Attempted))
			break
		}

		report.Attempted++
		if err := e.send(ctx, entry); err != nil {
			report.Failed++
			e.logger.Warn("replay failed",
				zap.Int64("entry_id", entry.ID),
				zap.String("key", entry.IdempotencyKey()),
				zap.Int("attempts", entry.Attempts+1),
				zap.Error(err),
			)
			if rerr := e.store.RecordSyncAttempt(ctx, entry.ID, err); rerr != nil {
				e.logger.Error("record sync attempt failed",
					zap.Int64("entry_id", entry.ID),
					zap.Error(rerr))
			}
			continue
		}

		report.Delivered++
		// A failed delete leaves the entry queued; the next pass resends it
		// under the same idempotency key.
		if err := e.store.DeletePendingSync(ctx, entry.ID); err != nil {
			e.logger.Error("delete delivered entry failed",
				zap.Int64("entry_id", entry.ID),
				zap.Error(err))
		}
	}

	remaining, err := e.store.CountPendingSyncs(context.WithoutCancel(ctx))
	if err != nil {
		return report, err
	}
	report.Remaining = remaining

	if report.Attempted > 0 || report.Superseded > 0 {
		e.logger.Info("drain pass finished",
			zap.Int("attempted", report.Attempted),
			zap.Int("superseded", report.Superseded),
			zap.Int("delivered", report.Delivered),
			zap.Int("failed", report.Failed),
			zap.Int("remaining", report.Remaining),
		)
	}
	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}

// latestPriceEntries maps each queued price key to its newest entry id.
func latestPriceEntries(entries []pos.PendingSyncEntry) map[string]int64 {
	latest := map[string]int64{}
	for _, entry := range entries {
		if entry.Kind == pos.PayloadPrices {
			latest[entry.IdempotencyKey()] = entry.ID
		}
	}
	return latest
}
