package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/posync/internal/pos"
)

// EnqueuePendingSync appends entry to the pending-sync queue and returns it
// with its assigned id. Queue ids are their own namespace, unrelated to sale ids.
func (s *Store) EnqueuePendingSync(ctx context.Context, entry pos.PendingSyncEntry) (pos.PendingSyncEntry, error) {
	payload, err := marshalPayload(entry)
	if err != nil {
		return pos.PendingSyncEntry{}, err
	}
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = s.now()
	}

	err = s.withTx(ctx, "enqueue pending sync", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO pending_syncs (payload_kind, payload, enqueued_at, attempts, last_error)
			VALUES (?, ?, ?, ?, ?)
		`, string(entry.Kind), payload, formatTime(entry.EnqueuedAt), entry.Attempts, entry.LastError)
		if err != nil {
			return pos.NewStorageError("enqueue pending sync", err)
		}
		entry.ID, err = result.LastInsertId()
		if err != nil {
			return pos.NewStorageError("enqueue pending sync", fmt.Errorf("last insert id: %w", err))
		}
		return nil
	})
	if err != nil {
		return pos.PendingSyncEntry{}, err
	}
	return entry, nil
}

// ListPendingSyncs returns every queued entry, oldest first.
// AUTOINCREMENT ids never decrease, so id order is enqueue order.
func (s *Store) ListPendingSyncs(ctx context.Context) ([]pos.PendingSyncEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload_kind, payload, enqueued_at, attempts, last_error
		FROM pending_syncs
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, pos.NewStorageError("list pending syncs", err)
	}
	defer rows.Close()

	entries := []pos.PendingSyncEntry{}
	for rows.Next() {
		var (
			entry         pos.PendingSyncEntry
			kind, payload string
			enqueuedAt    string
		)
		if err := rows.Scan(&entry.ID, &kind, &payload, &enqueuedAt, &entry.Attempts, &entry.LastError); err != nil {
			return nil, pos.NewStorageError("list pending syncs", err)
		}
		entry.Kind = pos.PayloadKind(kind)
		if entry.EnqueuedAt, err = parseTime(enqueuedAt); err != nil {
			return nil, pos.NewStorageError("list pending syncs", err)
		}
		if err := unmarshalPayload(&entry, payload); err != nil {
			return nil, pos.NewStorageError("list pending syncs", fmt.Errorf("entry %d: %w", entry.ID, err))
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, pos.NewStorageError("list pending syncs", fmt.Errorf("iterate: %w", err))
	}
	return entries, nil
}

// DeletePendingSync removes the entry with the given id.
// Deleting an absent entry is a no-op, not an error, so racing drain passes
// and retries after an unobserved deletion are safe.
func (s *Store) DeletePendingSync(ctx context.Context, id int64) error {
	return s.withTx(ctx, "delete pending sync", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_syncs WHERE id = ?`, id); err != nil {
			return pos.NewStorageError("delete pending sync", fmt.Errorf("entry %d: %w", id, err))
		}
		return nil
	})
}

// RecordSyncAttempt increments the attempt count of an entry and stores the
// error of the failed delivery. Unknown ids are ignored.
func (s *Store) RecordSyncAttempt(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.withTx(ctx, "record sync attempt", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE pending_syncs
			SET attempts = attempts + 1, last_error = ?
			WHERE id = ?
		`, msg, id)
		if err != nil {
			return pos.NewStorageError("record sync attempt", fmt.Errorf("entry %d: %w", id, err))
		}
		return nil
	})
}

// CountPendingSyncs returns the queue length.
func (s *Store) CountPendingSyncs(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_syncs`).Scan(&count); err != nil {
		return 0, pos.NewStorageError("count pending syncs", err)
	}
	return count, nil
}
