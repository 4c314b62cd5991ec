// Package engine implements the write-through sync engine.
//
// Every write goes to the local store first. Only after the local commit does
// the engine attempt remote delivery, so a record is never lost to a network
// failure.
//
// WRITE PATH:
//
//	Issued -> local commit -> AttemptDelivery -> Delivered | Queued
//
// Online writes are delivered immediately. A write that cannot be delivered
// (offline, transport error, 4xx, 5xx) is appended to the pending-sync queue.
// The caller always learns which happened from the returned Outcome.
//
// DRAIN:
//
// A drain pass replays the queue in enqueue order. Each delivered entry is
// removed; each failed entry is kept with its attempt count bumped, and the
// pass moves on. Passes never overlap: a pass requested while another is in
// flight is skipped.
//
// Run drives drain passes: once at startup, on every connectivity-restored
// event, on Kick, and on a retry timer with exponential backoff.
//
// DELIVERY GUARANTEES:
//
// Queue removal is at-most-once and remote delivery is at-least-once. A crash
// between a successful send and the queue delete resends the payload, which
// the authority de-duplicates by idempotency key (sale ref, or prices:<date>).
package engine
