package connectivity

import (
	"sync"

	"go.uber.org/zap"
)

// Oracle tracks online state and signals restored connectivity.
//
// Thread-safety: all methods are safe for concurrent use.
type Oracle struct {
	mu       sync.Mutex
	online   bool
	restored chan struct{} // Buffered, size 1: coalesces transitions
	logger   *zap.Logger
}

// NewOracle creates an oracle with the given initial state.
// A nil logger disables logging.
func NewOracle(online bool, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{
		online:   online,
		restored: make(chan struct{}, 1),
		logger:   logger,
	}
}

// IsOnline reports the last known state.
func (o *Oracle) IsOnline() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.online
}

// Set records the current state and reports whether it changed.
// An offline to online transition publishes a restored event.
func (o *Oracle) Set(online bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.online == online {
		return false
	}
	o.online = online

	if !online {
		o.logger.Info("connectivity lost")
		return true
	}

	o.logger.Info("connectivity restored")
	// Non-blocking: a pending event already covers this transition
	select {
	case o.restored <- struct{}{}:
	default:
	}
	return true
}

// Restored returns the channel that receives one value per restoration.
// The channel is never closed and must have a single reader.
func (o *Oracle) Restored() <-chan struct{} {
	return o.restored
}
