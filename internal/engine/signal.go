package engine

// signal is a coalescing wake-up channel.
//
// Notify never blocks: the buffer of one holds at most a single pending
// wake-up, so any number of notifications before the reader wakes collapse
// into one. A drain pass reads the whole queue, so one wake-up covers every
// write that happened before it.
type signal struct {
	ch chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{}, 1)}
}

// Notify records a wake-up.
// Thread-safe: may be called from any goroutine.
func (s *signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait returns the channel that receives pending wake-ups.
// Use with select for context-aware waiting.
func (s *signal) Wait() <-chan struct{} {
	return s.ch
}
