package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the storage and wire layout of a CalendarDate.
const DateLayout = "2006-01-02"

// KilosPerMun is the weight of one mun.
const KilosPerMun = 50

// CalendarDate is a day-granularity date in YYYY-MM-DD form.
// It is the key of price sheets and the grouping key of sales.
type CalendarDate string

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) CalendarDate {
	return CalendarDate(t.Format(DateLayout))
}

// String returns the date as stored.
func (d CalendarDate) String() string {
	return string(d)
}

// ItemKind names a good the shop trades.
type ItemKind string

const (
	ItemCorns ItemKind = "corns"
	ItemMaize ItemKind = "maize"
	ItemFlour ItemKind = "flour"
)

// Items lists every known ItemKind in display order.
var Items = []ItemKind{ItemCorns, ItemMaize, ItemFlour}

// Valid reports whether k is a known item.
func (k ItemKind) Valid() bool {
	for _, item := range Items {
		if item == k {
			return true
		}
	}
	return false
}

// TransactionType distinguishes purchases from sales.
type TransactionType string

const (
	Bought TransactionType = "bought"
	Sold   TransactionType = "sold"
)

// Valid reports whether t is bought or sold.
func (t TransactionType) Valid() bool {
	return t == Bought || t == Sold
}

// PriceSheet holds the per-kilo price of each item for one day.
// There is at most one sheet per date; writing a date replaces it.
type PriceSheet struct {
	Date   CalendarDate                 `json:"date"`
	Prices map[ItemKind]decimal.Decimal `json:"prices"`
}

// ZeroPriceSheet returns the sheet reported for a date with no stored prices.
func ZeroPriceSheet(date CalendarDate) PriceSheet {
	prices := make(map[ItemKind]decimal.Decimal, len(Items))
	for _, item := range Items {
		prices[item] = decimal.Zero
	}
	return PriceSheet{Date: date, Prices: prices}
}

// Price returns the price of item, or zero if the sheet has none.
func (p PriceSheet) Price(item ItemKind) decimal.Decimal {
	if v, ok := p.Prices[item]; ok {
		return v
	}
	return decimal.Zero
}

// SaleRecord is one bought or sold transaction.
// Immutable once written.
type SaleRecord struct {
	ID              int64           `json:"id"`  // Assigned by the store on insert
	Ref             string          `json:"ref"` // Idempotency key, stable across replays
	Date            CalendarDate    `json:"date"`
	Timestamp       time.Time       `json:"timestamp"`
	CustomerName    string          `json:"customer_name"`
	Item            ItemKind        `json:"item"`
	Rate            decimal.Decimal `json:"rate"`  // Price per kilo, > 0
	Kilos           decimal.Decimal `json:"kilos"` // > 0
	Total           decimal.Decimal `json:"total"` // rate × kilos, fixed at write time
	TransactionType TransactionType `json:"transaction_type"`
}

// PayloadKind identifies what a pending sync entry carries.
type PayloadKind string

const (
	PayloadPrices PayloadKind = "prices"
	PayloadSale   PayloadKind = "sale"
)

// PendingSyncEntry is a payload awaiting confirmed remote delivery.
// Exactly one of Prices and Sale is set, matching Kind.
type PendingSyncEntry struct {
	ID         int64       `json:"id"` // Local queue namespace, unrelated to sale ids
	Kind       PayloadKind `json:"payload_kind"`
	Prices     *PriceSheet `json:"prices,omitempty"`
	Sale       *SaleRecord `json:"sale,omitempty"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	Attempts   int         `json:"attempts"`
	LastError  string      `json:"last_error,omitempty"`
}

// NewPricesEntry wraps a price sheet for the pending queue.
func NewPricesEntry(sheet PriceSheet, at time.Time) PendingSyncEntry {
	return PendingSyncEntry{Kind: PayloadPrices, Prices: &sheet, EnqueuedAt: at}
}

// NewSaleEntry wraps a sale for the pending queue.
func NewSaleEntry(sale SaleRecord, at time.Time) PendingSyncEntry {
	return PendingSyncEntry{Kind: PayloadSale, Sale: &sale, EnqueuedAt: at}
}

// IdempotencyKey returns the key the remote authority uses to de-duplicate
// replays of this entry's payload.
func (e PendingSyncEntry) IdempotencyKey() string {
	switch {
	case e.Kind == PayloadSale && e.Sale != nil:
		return e.Sale.Ref
	case e.Kind == PayloadPrices && e.Prices != nil:
		return "prices:" + e.Prices.Date.String()
	}
	return ""
}

// KilosFromMun converts a weight given in mun and kilos to kilos.
func KilosFromMun(mun, kilos decimal.Decimal) decimal.Decimal {
	return mun.Mul(decimal.NewFromInt(KilosPerMun)).Add(kilos)
}
