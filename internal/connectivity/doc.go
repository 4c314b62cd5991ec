// Package connectivity reports whether the remote authority is reachable.
//
// An Oracle holds the current online state and publishes one event on every
// offline to online transition. Events coalesce: a subscriber that is slow to
// read sees a single pending event, never a backlog. There is exactly one
// subscriber (the sync engine), so restoration can never start two drain
// passes.
//
// The state is fed by Poll, which probes the remote's health endpoint on an
// interval. Any other source (a platform network callback, a test) can drive
// the Oracle through Set.
package connectivity
