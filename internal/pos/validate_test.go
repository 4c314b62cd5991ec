package pos

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSale() SaleRecord {
	return SaleRecord{
		Date:            "2024-01-01",
		Timestamp:       time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
		CustomerName:    "Ravi",
		Item:            ItemCorns,
		Rate:            decimal.RequireFromString("12.5"),
		Kilos:           decimal.RequireFromString("40"),
		TransactionType: Sold,
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"valid", "2024-01-01", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"wrong layout", "01/02/2024", true},
		{"not padded", "2024-1-1", true},
		{"impossible day", "2024-02-31", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDate(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, CalendarDate(tt.in), d)
		})
	}
}

func TestValidatePriceSheet_RejectsNegative(t *testing.T) {
	sheet := PriceSheet{
		Date: "2024-01-01",
		Prices: map[ItemKind]decimal.Decimal{
			ItemCorns: decimal.NewFromInt(-1),
			ItemMaize: decimal.NewFromInt(5),
			ItemFlour: decimal.NewFromInt(5),
		},
	}

	err := ValidatePriceSheet(sheet)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "prices.corns")
}

func TestValidatePriceSheet_AllowsZero(t *testing.T) {
	require.NoError(t, ValidatePriceSheet(ZeroPriceSheet("2024-01-01")))
}

func TestValidatePriceSheet_UnknownItem(t *testing.T) {
	sheet := PriceSheet{
		Date:   "2024-01-01",
		Prices: map[ItemKind]decimal.Decimal{"rice": decimal.NewFromInt(3)},
	}
	err := ValidatePriceSheet(sheet)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestValidatePricesForSync(t *testing.T) {
	tests := []struct {
		name   string
		prices map[ItemKind]decimal.Decimal
		field  string
	}{
		{"all positive", map[ItemKind]decimal.Decimal{
			ItemCorns: decimal.NewFromInt(40), ItemMaize: decimal.NewFromInt(28), ItemFlour: decimal.NewFromInt(55),
		}, ""},
		{"subset positive", map[ItemKind]decimal.Decimal{ItemCorns: decimal.NewFromInt(40)}, ""},
		{"zero", map[ItemKind]decimal.Decimal{
			ItemCorns: decimal.NewFromInt(40), ItemMaize: decimal.Zero,
		}, "prices.maize"},
		{"empty", map[ItemKind]decimal.Decimal{}, "prices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePricesForSync(PriceSheet{Date: "2024-01-01", Prices: tt.prices})
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.field, perr.Field)
		})
	}

	assert.Error(t, ValidatePricesForSync(ZeroPriceSheet("2024-01-01")), "the default sheet is never sent")
}

func TestValidateSale(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SaleRecord)
		field  string
	}{
		{"missing date", func(s *SaleRecord) { s.Date = "" }, "date"},
		{"missing timestamp", func(s *SaleRecord) { s.Timestamp = time.Time{} }, "timestamp"},
		{"blank name", func(s *SaleRecord) { s.CustomerName = "  " }, "customer_name"},
		{"unknown item", func(s *SaleRecord) { s.Item = "rice" }, "item"},
		{"unknown type", func(s *SaleRecord) { s.TransactionType = "gifted" }, "transaction_type"},
		{"zero rate", func(s *SaleRecord) { s.Rate = decimal.Zero }, "rate"},
		{"negative kilos", func(s *SaleRecord) { s.Kilos = decimal.NewFromInt(-2) }, "kilos"},
		{"inconsistent total", func(s *SaleRecord) { s.Total = decimal.NewFromInt(1) }, "total"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sale := validSale()
			tt.mutate(&sale)

			err := ValidateSale(sale)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), "field="+tt.field)
		})
	}
}

func TestPrepareSale_ComputesTotal(t *testing.T) {
	sale := validSale()
	sale.CustomerName = "  Ravi  "

	got, err := PrepareSale(sale)
	require.NoError(t, err)
	assert.Equal(t, "Ravi", got.CustomerName)
	assert.Equal(t, "500", got.Total.String())
}

func TestNormalizeName_NFC(t *testing.T) {
	decomposed := "Jose\u0301"
	composed := "Jos\u00e9"
	assert.Equal(t, composed, NormalizeName(decomposed))
}

func TestKilosFromMun(t *testing.T) {
	got := KilosFromMun(decimal.NewFromInt(2), decimal.RequireFromString("7.5"))
	assert.Equal(t, "107.5", got.String())
}

func TestZeroPriceSheet_CoversEveryItem(t *testing.T) {
	sheet := ZeroPriceSheet("2024-03-01")
	require.Len(t, sheet.Prices, len(Items))
	for _, item := range Items {
		assert.True(t, sheet.Price(item).IsZero())
	}
}

func TestIdempotencyKey(t *testing.T) {
	sale := validSale()
	sale.Ref = "0190-abc"
	assert.Equal(t, "0190-abc", NewSaleEntry(sale, time.Now()).IdempotencyKey())
	assert.Equal(t, "prices:2024-01-01", NewPricesEntry(ZeroPriceSheet("2024-01-01"), time.Now()).IdempotencyKey())
}
