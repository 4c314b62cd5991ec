// Package store provides SQLite-backed durable storage for the point-of-sale data layer.
//
// The store owns three collections:
//   - Price sheets: one row per calendar date (upsert)
//   - Sales: append-only, auto-assigned monotonic ids, indexed by date and type
//   - Pending syncs: payloads awaiting remote delivery, drained oldest-first
//
// # Critical Patterns
//
// Single Handle:
//   - One *Store per process, opened once at startup and shared
//   - MaxOpenConns=1 so SQLite sees a single writer
//
// Scoped Transactions:
//   - Every logical operation runs in withTx (begin, deferred rollback, commit)
//   - Resources are released on every exit path, including errors
//
// Replayable Migrations:
//   - Ordered steps recorded in PRAGMA user_version
//   - Each step checks existing state before mutating and never drops data
//
// Idempotent Queue Removal:
//   - Deleting an absent pending entry is a no-op
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All failures are returned as *pos.Error with code STORAGE or VALIDATION.
package store
