package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/roach88/posync/internal/pos"
)

// Store is the durable local store the engine writes through.
// Implemented by *store.Store.
type Store interface {
	GetPriceSheet(ctx context.Context, date pos.CalendarDate) (pos.PriceSheet, error)
	SetPriceSheet(ctx context.Context, sheet pos.PriceSheet) error
	InsertSale(ctx context.Context, sale pos.SaleRecord) (pos.SaleRecord, error)
	EnqueuePendingSync(ctx context.Context, entry pos.PendingSyncEntry) (pos.PendingSyncEntry, error)
	ListPendingSyncs(ctx context.Context) ([]pos.PendingSyncEntry, error)
	DeletePendingSync(ctx context.Context, id int64) error
	RecordSyncAttempt(ctx context.Context, id int64, cause error) error
	CountPendingSyncs(ctx context.Context) (int, error)
}

// Gateway delivers payloads to the remote authority.
// Implemented by *gateway.HTTPGateway.
type Gateway interface {
	SendPrices(ctx context.Context, sheet pos.PriceSheet) error
	SendSale(ctx context.Context, sale pos.SaleRecord) error
}

// Connectivity reports reachability of the remote authority.
// Implemented by *connectivity.Oracle.
type Connectivity interface {
	IsOnline() bool
	Restored() <-chan struct{}
}

const (
	// DefaultRetryInterval is the delay between drain passes while entries remain.
	DefaultRetryInterval = 30 * time.Second

	// DefaultMaxBackoff caps the retry interval after repeated failed passes.
	DefaultMaxBackoff = 5 * time.Minute
)

// Status is the delivery result of a single write.
type Status int

const (
	// StatusDelivered means the remote acknowledged the payload; nothing was queued.
	StatusDelivered Status = iota + 1

	// StatusQueued means the payload is in the pending-sync queue and will be
	// delivered by a later drain pass.
	StatusQueued

	// StatusUnsynced means the local write committed but the payload could be
	// neither delivered nor queued. Outcome.Err holds the enqueue failure.
	StatusUnsynced

	// StatusHeld means a price sheet was stored locally but neither sent nor
	// queued, because the remote only accepts prices > 0. Outcome.Err holds
	// the validation error.
	StatusHeld
)

// String returns the status name used in logs and CLI output.
func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusQueued:
		return "queued"
	case StatusUnsynced:
		return "unsynced"
	case StatusHeld:
		return "held"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Outcome reports what happened to a write after its local commit.
type Outcome struct {
	Status  Status
	EntryID int64 // Pending queue id when Status is StatusQueued
	Err     error // Delivery failure that caused queuing, the enqueue failure, or why it was held
}

// Engine writes through the local store to the remote authority.
//
// Thread-safety model:
//   - SetPriceSheet, InsertSale, Drain, Kick: safe from any goroutine
//   - Run: must be called from exactly one goroutine (it is the only reader
//     of the connectivity-restored channel)
type Engine struct {
	store   Store
	gateway Gateway
	conn    Connectivity
	clock   Clock
	refs    RefGenerator
	logger  *zap.Logger

	retryInterval time.Duration
	maxBackoff    time.Duration

	draining atomic.Bool // Set while a drain pass is in flight
	kick     *signal
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the clock used to stamp sales and queue entries.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithRefGenerator sets the generator for sale refs.
func WithRefGenerator(refs RefGenerator) Option {
	return func(e *Engine) {
		e.refs = refs
	}
}

// WithRetryInterval sets the base delay between drain passes in Run.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.retryInterval = d
	}
}

// WithMaxBackoff caps the retry delay in Run.
func WithMaxBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.maxBackoff = d
	}
}

// New creates an Engine over the given store, gateway, and connectivity oracle.
func New(s Store, g Gateway, conn Connectivity, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		gateway:       g,
		conn:          conn,
		clock:         SystemClock{},
		refs:          UUIDv7Generator{},
		logger:        zap.NewNop(),
		retryInterval: DefaultRetryInterval,
		maxBackoff:    DefaultMaxBackoff,
		kick:          newSignal(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.maxBackoff < e.retryInterval {
		e.maxBackoff = e.retryInterval
	}
	return e
}

// SetPriceSheet stores the sheet locally, then attempts delivery.
//
// A non-nil error means the local write failed and nothing was stored or
// queued. Delivery problems never surface as an error; they are reported in
// the Outcome. A sheet with a price the remote would refuse (zero) is stored
// but held back with StatusHeld, so it never becomes an undeliverable entry.
func (e *Engine) SetPriceSheet(ctx context.Context, sheet pos.PriceSheet) (Outcome, error) {
	if err := e.store.SetPriceSheet(ctx, sheet); err != nil {
		return Outcome{}, fmt.Errorf("set price sheet: %w", err)
	}
	e.logger.Info("price sheet stored", zap.Stringer("date", sheet.Date))

	if err := pos.ValidatePricesForSync(sheet); err != nil {
		e.logger.Warn("price sheet held back from sync",
			zap.Stringer("date", sheet.Date),
			zap.Error(err))
		return Outcome{Status: StatusHeld, Err: err}, nil
	}
	return e.deliver(ctx, pos.NewPricesEntry(sheet, time.Time{})), nil
}

// InsertSale stores the sale locally, then attempts delivery.
//
// Missing fields are filled before the write: Ref from the ref generator,
// Timestamp from the clock, and Date from the timestamp. Returns the stored
// record with its assigned id and total.
func (e *Engine) InsertSale(ctx context.Context, sale pos.SaleRecord) (pos.SaleRecord, Outcome, error) {
	if sale.Ref == "" {
		sale.Ref = e.refs.Generate()
	}
	if sale.Timestamp.IsZero() {
		sale.Timestamp = e.clock.Now()
	}
	if sale.Date == "" {
		sale.Date = pos.DateOf(sale.Timestamp)
	}

	stored, err := e.store.InsertSale(ctx, sale)
	if err != nil {
		return pos.SaleRecord{}, Outcome{}, fmt.Errorf("insert sale: %w", err)
	}

	e.logger.Info("sale stored",
		zap.Int64("sale_id", stored.ID),
		zap.String("ref", stored.Ref),
		zap.String("type", string(stored.TransactionType)),
		zap.Stringer("total", stored.Total),
	)
	return stored, e.deliver(ctx, pos.NewSaleEntry(stored, time.Time{})), nil
}

// DefaultRate returns the rate to prefill for a sale of item on date: the
// day's price for that item. The second result is false when no positive
// price is on file.
func (e *Engine) DefaultRate(ctx context.Context, date pos.CalendarDate, item pos.ItemKind) (decimal.Decimal, bool, error) {
	sheet, err := e.store.GetPriceSheet(ctx, date)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("default rate: %w", err)
	}
	price := sheet.Price(item)
	return price, price.IsPositive(), nil
}

// Pending returns the number of entries awaiting delivery.
func (e *Engine) Pending(ctx context.Context) (int, error) {
	return e.store.CountPendingSyncs(ctx)
}

// Kick requests a drain pass from Run. Non-blocking; requests coalesce.
func (e *Engine) Kick() {
	e.kick.Notify()
}

// deliver attempts delivery of a freshly committed payload and queues it on
// any failure.
//
// While older entries are queued the payload goes behind them, so the remote
// sees writes in the order they were made.
func (e *Engine) deliver(ctx context.Context, entry pos.PendingSyncEntry) Outcome {
	if !e.conn.IsOnline() {
		e.logger.Debug("offline, queuing", zap.String("key", entry.IdempotencyKey()))
		return e.enqueue(ctx, entry, nil)
	}

	pending, err := e.store.CountPendingSyncs(ctx)
	if err != nil || pending > 0 {
		e.logger.Debug("queue not empty, queuing behind it",
			zap.String("key", entry.IdempotencyKey()),
			zap.Int("pending", pending),
			zap.NamedError("count_error", err),
		)
		out := e.enqueue(ctx, entry, nil)
		e.Kick()
		return out
	}

	if err := e.send(ctx, entry); err != nil {
		e.logger.Warn("delivery failed, queuing",
			zap.String("key", entry.IdempotencyKey()),
			zap.Bool("rejected", pos.IsRejected(err)),
			zap.Error(err),
		)
		return e.enqueue(ctx, entry, err)
	}

	e.logger.Info("delivered", zap.String("key", entry.IdempotencyKey()))
	return Outcome{Status: StatusDelivered}
}

// enqueue appends entry to the pending queue. cause is the failed delivery,
// if one was attempted.
func (e *Engine) enqueue(ctx context.Context, entry pos.PendingSyncEntry, cause error) Outcome {
	entry.EnqueuedAt = e.clock.Now()
	if cause != nil {
		entry.Attempts = 1
		entry.LastError = cause.Error()
	}

	// Enqueue even if ctx was cancelled after the local commit.
	stored, err := e.store.EnqueuePendingSync(context.WithoutCancel(ctx), entry)
	if err != nil {
		e.logger.Error("enqueue failed, write will not sync",
			zap.String("key", entry.IdempotencyKey()),
			zap.Error(err),
		)
		return Outcome{Status: StatusUnsynced, Err: err}
	}

	e.logger.Info("queued",
		zap.Int64("entry_id", stored.ID),
		zap.String("key", entry.IdempotencyKey()),
	)
	return Outcome{Status: StatusQueued, EntryID: stored.ID, Err: cause}
}

// send routes entry to the matching gateway method.
func (e *Engine) send(ctx context.Context, entry pos.PendingSyncEntry) error {
	switch {
	case entry.Kind == pos.PayloadPrices && entry.Prices != nil:
		return e.gateway.SendPrices(ctx, *entry.Prices)
	case entry.Kind == pos.PayloadSale && entry.Sale != nil:
		return e.gateway.SendSale(ctx, *entry.Sale)
	}
	return fmt.Errorf("send entry %d: unknown or empty payload %q", entry.ID, entry.Kind)
}
