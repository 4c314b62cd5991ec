package testutil

import (
	"context"
	"sync"

	"github.com/roach88/posync/internal/pos"
)

// Delivery is one call recorded by ScriptedGateway.
type Delivery struct {
	Kind   pos.PayloadKind
	Key    string // Idempotency key of the payload
	Prices *pos.PriceSheet
	Sale   *pos.SaleRecord
	Err    error // Error returned to the caller; nil means delivered
}

// ScriptedGateway is an in-memory remote authority for engine tests.
//
// It records every delivery attempt in call order. Failures are programmed
// per idempotency key (FailKey), for the next n calls (FailNext), or for
// every call (FailAll). OnSend runs before each call returns, which lets a
// test flip connectivity in the middle of a drain pass.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScriptedGateway struct {
	mu       sync.Mutex
	calls    []Delivery
	failKeys map[string]error
	failNext []error
	failAll  error

	// OnSend, if set, is called with each recorded delivery.
	// Called without the gateway lock held.
	OnSend func(Delivery)
}

// NewScriptedGateway creates a gateway that accepts everything.
func NewScriptedGateway() *ScriptedGateway {
	return &ScriptedGateway{failKeys: make(map[string]error)}
}

// FailKey makes every delivery of the payload with key fail with err.
// A nil err clears the failure.
func (g *ScriptedGateway) FailKey(key string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failKeys, key)
		return
	}
	g.failKeys[key] = err
}

// FailNext makes the next len(errs) calls fail with errs in order.
func (g *ScriptedGateway) FailNext(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = append(g.failNext, errs...)
}

// FailAll makes every call fail with err. A nil err clears it.
func (g *ScriptedGateway) FailAll(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failAll = err
}

// SendPrices records a price sheet delivery.
func (g *ScriptedGateway) SendPrices(ctx context.Context, sheet pos.PriceSheet) error {
	return g.record(Delivery{
		Kind:   pos.PayloadPrices,
		Key:    "prices:" + sheet.Date.String(),
		Prices: &sheet,
	})
}

// SendSale records a sale delivery.
func (g *ScriptedGateway) SendSale(ctx context.Context, sale pos.SaleRecord) error {
	return g.record(Delivery{
		Kind: pos.PayloadSale,
		Key:  sale.Ref,
		Sale: &sale,
	})
}

func (g *ScriptedGateway) record(d Delivery) error {
	g.mu.Lock()
	switch {
	case len(g.failNext) > 0:
		d.Err = g.failNext[0]
		g.failNext = g.failNext[1:]
	case g.failKeys[d.Key] != nil:
		d.Err = g.failKeys[d.Key]
	case g.failAll != nil:
		d.Err = g.failAll
	}
	g.calls = append(g.calls, d)
	hook := g.OnSend
	g.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return d.Err
}

// Calls returns every recorded attempt in call order.
func (g *ScriptedGateway) Calls() []Delivery {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Delivery, len(g.calls))
	copy(out, g.calls)
	return out
}

// Delivered returns the idempotency keys of successful deliveries in order.
func (g *ScriptedGateway) Delivered() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var keys []string
	for _, d := range g.calls {
		if d.Err == nil {
			keys = append(keys, d.Key)
		}
	}
	return keys
}

// Reset forgets recorded calls and programmed failures.
func (g *ScriptedGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
	g.failKeys = make(map[string]error)
	g.failNext = nil
	g.failAll = nil
}
