package engine

import "time"

// Clock supplies wall-clock time for sale timestamps and queue entries.
//
// Queue ordering never depends on it: entries are ordered by their
// autoincrement id. Tests substitute a fixed clock for reproducible records.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}
