package pos

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// ParseDate validates s as a YYYY-MM-DD calendar date.
func ParseDate(s string) (CalendarDate, error) {
	if strings.TrimSpace(s) == "" {
		return "", NewValidationError("date", "date is required")
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", NewValidationError("date", fmt.Sprintf("invalid date %q: want YYYY-MM-DD", s))
	}
	return DateOf(t), nil
}

// ParseAmount parses a decimal amount from user input.
// NaN and infinities are rejected by the decimal parser.
func ParseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, NewValidationError(field, fmt.Sprintf("%q is not a number", s))
	}
	return d, nil
}

// NormalizeName trims and NFC-normalizes a customer name so that visually
// identical names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ValidatePriceSheet checks a sheet before it is stored locally.
// Every price must be a known item and >= 0.
func ValidatePriceSheet(sheet PriceSheet) error {
	if _, err := ParseDate(sheet.Date.String()); err != nil {
		return err
	}
	if sheet.Prices == nil {
		return NewValidationError("prices", "prices are required")
	}
	for item, price := range sheet.Prices {
		if !item.Valid() {
			return NewValidationError("prices", fmt.Sprintf("unknown item %q", item))
		}
		if price.IsNegative() {
			return NewValidationError("prices."+string(item), "price must be >= 0")
		}
	}
	return nil
}

// ValidatePricesForSync checks that a stored sheet is one the remote
// authority accepts: at least one price, and every price > 0.
func ValidatePricesForSync(sheet PriceSheet) error {
	if len(sheet.Prices) == 0 {
		return NewValidationError("prices", "prices are required")
	}
	for _, item := range Items {
		price, ok := sheet.Prices[item]
		if ok && !price.IsPositive() {
			return NewValidationError("prices."+string(item), "price must be > 0 to sync")
		}
	}
	return nil
}

// ValidateSale checks every required field of a sale.
// A non-zero Total must equal Rate × Kilos.
func ValidateSale(sale SaleRecord) error {
	if _, err := ParseDate(sale.Date.String()); err != nil {
		return err
	}
	if sale.Timestamp.IsZero() {
		return NewValidationError("timestamp", "timestamp is required")
	}
	if NormalizeName(sale.CustomerName) == "" {
		return NewValidationError("customer_name", "customer name is required")
	}
	if !sale.Item.Valid() {
		return NewValidationError("item", fmt.Sprintf("unknown item %q", sale.Item))
	}
	if !sale.TransactionType.Valid() {
		return NewValidationError("transaction_type", fmt.Sprintf("must be %q or %q", Bought, Sold))
	}
	if !sale.Rate.IsPositive() {
		return NewValidationError("rate", "rate must be > 0")
	}
	if !sale.Kilos.IsPositive() {
		return NewValidationError("kilos", "kilos must be > 0")
	}
	if !sale.Total.IsZero() && !sale.Total.Equal(sale.Rate.Mul(sale.Kilos)) {
		return NewValidationError("total", "total must equal rate × kilos")
	}
	return nil
}

// PrepareSale normalizes the customer name and fixes the total for storage.
// The returned record is validated.
func PrepareSale(sale SaleRecord) (SaleRecord, error) {
	sale.CustomerName = NormalizeName(sale.CustomerName)
	if err := ValidateSale(sale); err != nil {
		return SaleRecord{}, err
	}
	sale.Total = sale.Rate.Mul(sale.Kilos)
	return sale, nil
}
