package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/posync/internal/connectivity"
	"github.com/roach88/posync/internal/pos"
	"github.com/roach88/posync/internal/store"
	"github.com/roach88/posync/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *store.Store
	gw     *testutil.ScriptedGateway
	oracle *connectivity.Oracle
	clock  *testutil.FakeClock
	engine *Engine
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(dir + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newFixture(t *testing.T, online bool, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  setupTestStore(t),
		gw:     testutil.NewScriptedGateway(),
		oracle: connectivity.NewOracle(online, nil),
		clock:  testutil.NewFakeClock(t0, time.Second),
	}
	opts = append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithClock(f.clock),
	}, opts...)
	f.engine = New(f.store, f.gw, f.oracle, opts...)
	return f
}

func newSale(name string, typ pos.TransactionType, rate, kilos int64) pos.SaleRecord {
	return pos.SaleRecord{
		CustomerName:    name,
		Item:            pos.ItemCorns,
		Rate:            decimal.NewFromInt(rate),
		Kilos:           decimal.NewFromInt(kilos),
		TransactionType: typ,
	}
}

func newSheet(date pos.CalendarDate, corns int64) pos.PriceSheet {
	return pos.PriceSheet{
		Date: date,
		Prices: map[pos.ItemKind]decimal.Decimal{
			pos.ItemCorns: decimal.NewFromInt(corns),
			pos.ItemMaize: decimal.NewFromInt(20),
			pos.ItemFlour: decimal.NewFromInt(30),
		},
	}
}

func (f *fixture) pending(t *testing.T) []pos.PendingSyncEntry {
	t.Helper()
	entries, err := f.store.ListPendingSyncs(context.Background())
	require.NoError(t, err)
	return entries
}

// Write path

func TestInsertSale_OnlineDelivers(t *testing.T) {
	f := newFixture(t, true)

	sale, out, err := f.engine.InsertSale(context.Background(), newSale("Ravi", pos.Sold, 40, 10))
	require.NoError(t, err)

	assert.Equal(t, StatusDelivered, out.Status)
	assert.NoError(t, out.Err)
	assert.Zero(t, out.EntryID)
	assert.Equal(t, []string{sale.Ref}, f.gw.Delivered())
	assert.Empty(t, f.pending(t))

	calls := f.gw.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, sale.ID, calls[0].Sale.ID)
	assert.True(t, calls[0].Sale.Total.Equal(decimal.NewFromInt(400)))
}

func TestInsertSale_FillsRefTimestampAndDate(t *testing.T) {
	f := newFixture(t, true, WithRefGenerator(NewFixedGenerator("sale-1")))

	sale, _, err := f.engine.InsertSale(context.Background(), newSale("Ravi", pos.Bought, 10, 1))
	require.NoError(t, err)

	assert.Equal(t, "sale-1", sale.Ref)
	assert.True(t, sale.Timestamp.Equal(t0))
	assert.Equal(t, pos.CalendarDate("2024-01-01"), sale.Date)
}

func TestInsertSale_OfflineQueuesWithoutNetwork(t *testing.T) {
	f := newFixture(t, false)

	sale, out, err := f.engine.InsertSale(context.Background(), newSale("Ravi", pos.Sold, 40, 10))
	require.NoError(t, err)

	assert.Equal(t, StatusQueued, out.Status)
	assert.NoError(t, out.Err)
	assert.Empty(t, f.gw.Calls(), "offline writes never touch the network")

	entries := f.pending(t)
	require.Len(t, entries, 1)
	assert.Equal(t, out.EntryID, entries[0].ID)
	assert.Equal(t, sale.Ref, entries[0].Sale.Ref)
	assert.Zero(t, entries[0].Attempts)

	// The local record is durable regardless of delivery
	stored, err := f.store.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.Ref, stored.Ref)
}

func TestWrite_DeliveryFailureQueues(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"transient", pos.NewDeliveryError("send sale", 503, errors.New("unavailable"))},
		{"rejected", pos.NewDeliveryError("send sale", 400, errors.New("bad rate"))},
		{"transport", pos.NewDeliveryError("send sale", 0, errors.New("connection refused"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			f.gw.FailNext(tt.err)

			sale, out, err := f.engine.InsertSale(context.Background(), newSale("Ravi", pos.Sold, 40, 10))
			require.NoError(t, err, "delivery failure is not a write failure")

			assert.Equal(t, StatusQueued, out.Status)
			assert.ErrorIs(t, out.Err, tt.err)

			entries := f.pending(t)
			require.Len(t, entries, 1)
			assert.Equal(t, sale.Ref, entries[0].IdempotencyKey())
			assert.Equal(t, 1, entries[0].Attempts)
			assert.Equal(t, tt.err.Error(), entries[0].LastError)
		})
	}
}

func TestSetPriceSheet_OnlineAndOffline(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	out, err := f.engine.SetPriceSheet(ctx, newSheet("2024-01-01", 10))
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, out.Status)

	f.oracle.Set(false)
	out, err = f.engine.SetPriceSheet(ctx, newSheet("2024-01-02", 11))
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, out.Status)

	entries := f.pending(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "prices:2024-01-02", entries[0].IdempotencyKey())
}

func TestSetPriceSheet_UpsertIdempotent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.engine.SetPriceSheet(ctx, newSheet("2024-01-01", 12))
		require.NoError(t, err)
	}

	count, err := f.store.CountPriceSheets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	sheet, err := f.store.GetPriceSheet(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.True(t, sheet.Price(pos.ItemCorns).Equal(decimal.NewFromInt(12)))
}

func TestSetPriceSheet_StaleQueuedSheetNeverOverwritesNewer(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.gw.FailNext(pos.NewDeliveryError("send prices", 503, errors.New("unavailable")))

	out, err := f.engine.SetPriceSheet(ctx, newSheet("2024-01-01", 10))
	require.NoError(t, err)
	require.Equal(t, StatusQueued, out.Status)

	out, err = f.engine.SetPriceSheet(ctx, newSheet("2024-01-01", 20))
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, out.Status, "a newer write waits behind the queue")
	assert.Len(t, f.gw.Calls(), 1)

	report, err := f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainReport{Attempted: 1, Delivered: 1, Superseded: 1}, report)
	assert.Empty(t, f.pending(t))

	calls := f.gw.Calls()
	last := calls[len(calls)-1]
	require.NoError(t, last.Err)
	require.NotNil(t, last.Prices)
	assert.True(t, last.Prices.Price(pos.ItemCorns).Equal(decimal.NewFromInt(20)))
}

func TestInsertSale_QueuesBehindPendingEntries(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.gw.FailNext(pos.NewDeliveryError("send sale", 503, errors.New("unavailable")))

	first, out, err := f.engine.InsertSale(ctx, newSale("Ravi", pos.Sold, 40, 1))
	require.NoError(t, err)
	require.Equal(t, StatusQueued, out.Status)

	second, out, err := f.engine.InsertSale(ctx, newSale("Asha", pos.Sold, 40, 2))
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, out.Status)
	assert.NoError(t, out.Err)
	assert.Len(t, f.gw.Calls(), 1)

	_, err = f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first.Ref, second.Ref}, f.gw.Delivered())

	// Empty queue again: back to direct delivery
	_, out, err = f.engine.InsertSale(ctx, newSale("Ravi", pos.Sold, 40, 3))
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, out.Status)
}

func TestSetPriceSheet_NonPositivePriceHeld(t *testing.T) {
	tests := []struct {
		name   string
		online bool
	}{
		{"online", true},
		{"offline", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.online)
			ctx := context.Background()

			out, err := f.engine.SetPriceSheet(ctx, pos.ZeroPriceSheet("2024-01-01"))
			require.NoError(t, err, "the sheet is stored locally")
			assert.Equal(t, StatusHeld, out.Status)
			assert.True(t, pos.IsValidationError(out.Err))
			assert.Zero(t, out.EntryID)

			assert.Empty(t, f.gw.Calls())
			assert.Empty(t, f.pending(t), "nothing the remote would reject is queued")

			ok, err := f.store.HasPriceSheet(ctx, "2024-01-01")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestWrite_ValidationRejectsBeforeAnything(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, _, err := f.engine.InsertSale(ctx, newSale("", pos.Sold, 40, 10))
	require.Error(t, err)
	assert.True(t, pos.IsValidationError(err))

	bad := newSheet("2024-01-01", -5)
	_, err = f.engine.SetPriceSheet(ctx, bad)
	require.Error(t, err)
	assert.True(t, pos.IsValidationError(err))

	assert.Empty(t, f.gw.Calls())
	assert.Empty(t, f.pending(t))
	sales, err := f.store.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

// enqueueFailingStore fails every queue append.
type enqueueFailingStore struct {
	*store.Store
	err error
}

func (s enqueueFailingStore) EnqueuePendingSync(context.Context, pos.PendingSyncEntry) (pos.PendingSyncEntry, error) {
	return pos.PendingSyncEntry{}, s.err
}

func TestWrite_EnqueueFailureReportedNotReturned(t *testing.T) {
	s := setupTestStore(t)
	diskFull := pos.NewStorageError("enqueue pending sync", errors.New("disk full"))
	e := New(enqueueFailingStore{Store: s, err: diskFull}, testutil.NewScriptedGateway(),
		connectivity.NewOracle(false, nil), WithLogger(zaptest.NewLogger(t)))

	sale, out, err := e.InsertSale(context.Background(), newSale("Ravi", pos.Sold, 40, 10))
	require.NoError(t, err)
	assert.Equal(t, StatusUnsynced, out.Status)
	assert.ErrorIs(t, out.Err, diskFull)

	// The sale itself is committed
	_, err = s.GetSale(context.Background(), sale.ID)
	assert.NoError(t, err)
}

func TestInsertSale_CancelledContextStillQueues(t *testing.T) {
	f := newFixture(t, true)
	f.gw.FailNext(context.Canceled)

	_, out, err := f.engine.InsertSale(context.Background(), newSale("Ravi", pos.Sold, 40, 10))
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, out.Status)
	assert.Len(t, f.pending(t), 1)
}

func TestDefaultRate(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, ok, err := f.engine.DefaultRate(ctx, "2024-01-01", pos.ItemCorns)
	require.NoError(t, err)
	assert.False(t, ok, "no sheet on file")

	_, err = f.engine.SetPriceSheet(ctx, newSheet("2024-01-01", 42))
	require.NoError(t, err)

	rate, ok, err := f.engine.DefaultRate(ctx, "2024-01-01", pos.ItemCorns)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromInt(42)))
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "delivered", StatusDelivered.String())
	assert.Equal(t, "queued", StatusQueued.String())
	assert.Equal(t, "unsynced", StatusUnsynced.String())
	assert.Equal(t, "held", StatusHeld.String())
	assert.Equal(t, "Status(0)", Status(0).String())
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	gen := NewFixedGenerator("a")
	assert.Equal(t, "a", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
