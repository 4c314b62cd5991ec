// Package authority is a reference remote authority for posync clients.
//
// It accepts price sheets on POST /prices and sales on POST /sync, keeping
// them in an in-memory ledger. Sales are de-duplicated by ref, so clients
// that replay their pending queue after an unobserved success do not record
// a sale twice.
package authority

import (
	"errors"
	"sort"
	"sync"

	"github.com/roach88/posync/internal/pos"
)

// ErrEmptyRef is returned when a sale without a ref is recorded.
var ErrEmptyRef = errors.New("empty sale ref")

// Ledger is the authority's storage layer.
type Ledger interface {
	SavePrices(sheet pos.PriceSheet) error
	// RecordSale stores sale and reports whether it was new.
	// A sale whose ref is already recorded is accepted and ignored.
	RecordSale(sale pos.SaleRecord) (bool, error)
}

// MemoryLedger provides an in-memory Ledger.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryLedger struct {
	mu     sync.RWMutex
	prices map[pos.CalendarDate]pos.PriceSheet
	sales  map[string]pos.SaleRecord
	order  []string // Refs in first-recorded order
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		prices: map[pos.CalendarDate]pos.PriceSheet{},
		sales:  map[string]pos.SaleRecord{},
	}
}

// SavePrices replaces the sheet for sheet.Date.
func (l *MemoryLedger) SavePrices(sheet pos.PriceSheet) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prices[sheet.Date] = sheet
	return nil
}

// RecordSale stores sale unless its ref is already known.
func (l *MemoryLedger) RecordSale(sale pos.SaleRecord) (bool, error) {
	if sale.Ref == "" {
		return false, ErrEmptyRef
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sales[sale.Ref]; ok {
		return false, nil
	}
	l.sales[sale.Ref] = sale
	l.order = append(l.order, sale.Ref)
	return true, nil
}

// Prices returns the sheet stored for date.
func (l *MemoryLedger) Prices(date pos.CalendarDate) (pos.PriceSheet, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sheet, ok := l.prices[date]
	return sheet, ok
}

// Dates returns every date with a stored sheet, ascending.
func (l *MemoryLedger) Dates() []pos.CalendarDate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	dates := make([]pos.CalendarDate, 0, len(l.prices))
	for date := range l.prices {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	return dates
}

// Sales returns every recorded sale in first-recorded order.
func (l *MemoryLedger) Sales() []pos.SaleRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sales := make([]pos.SaleRecord, 0, len(l.order))
	for _, ref := range l.order {
		sales = append(sales, l.sales[ref])
	}
	return sales
}
