package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roach88/posync/internal/pos"
)

const saleColumns = `id, ref, date, timestamp, customer_name, item, rate, kilos, total, transaction_type`

// ErrSaleNotFound is returned by GetSale for an unknown id.
var ErrSaleNotFound = errors.New("sale not found")

// InsertSale validates sale, fixes its total to rate × kilos, assigns a new
// id, and persists it. Returns the stored record.
//
// If sale.Ref is empty a UUIDv7 ref is assigned; this is the store's own
// default for callers that bypass the engine, which always supplies a ref.
// Refs are unique; inserting a second sale with an existing ref is a
// validation error.
func (s *Store) InsertSale(ctx context.Context, sale pos.SaleRecord) (pos.SaleRecord, error) {
	sale, err := pos.PrepareSale(sale)
	if err != nil {
		return pos.SaleRecord{}, err
	}
	if sale.Ref == "" {
		ref, err := uuid.NewV7()
		if err != nil {
			return pos.SaleRecord{}, pos.NewStorageError("insert sale", fmt.Errorf("generate ref: %w", err))
		}
		sale.Ref = ref.String()
	}

	err = s.withTx(ctx, "insert sale", func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales WHERE ref = ?`, sale.Ref).Scan(&exists); err != nil {
			return pos.NewStorageError("insert sale", fmt.Errorf("check ref: %w", err))
		}
		if exists > 0 {
			return pos.NewValidationError("ref", fmt.Sprintf("sale %s already recorded", sale.Ref))
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO sales
			(ref, date, timestamp, customer_name, item, rate, kilos, total, transaction_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sale.Ref,
			string(sale.Date),
			formatTime(sale.Timestamp),
			sale.CustomerName,
			string(sale.Item),
			sale.Rate.String(),
			sale.Kilos.String(),
			sale.Total.String(),
			string(sale.TransactionType),
		)
		if err != nil {
			return pos.NewStorageError("insert sale", err)
		}

		sale.ID, err = result.LastInsertId()
		if err != nil {
			return pos.NewStorageError("insert sale", fmt.Errorf("last insert id: %w", err))
		}
		return nil
	})
	if err != nil {
		return pos.SaleRecord{}, err
	}

	return sale, nil
}

// GetSale retrieves a single sale by id.
// Returns ErrSaleNotFound if no such sale exists.
func (s *Store) GetSale(ctx context.Context, id int64) (pos.SaleRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pos.SaleRecord{}, ErrSaleNotFound
	}
	if err != nil {
		return pos.SaleRecord{}, pos.NewStorageError("get sale", err)
	}
	return sale, nil
}

// ListSales returns every sale in id order.
// Presentation order (typically timestamp descending) is the caller's job.
func (s *Store) ListSales(ctx context.Context) ([]pos.SaleRecord, error) {
	return s.querySales(ctx, "list sales", `SELECT `+saleColumns+` FROM sales ORDER BY id ASC`)
}

// ListSalesByDate returns the sales recorded on date, using idx_sales_by_date.
func (s *Store) ListSalesByDate(ctx context.Context, date pos.CalendarDate) ([]pos.SaleRecord, error) {
	return s.querySales(ctx, "list sales by date",
		`SELECT `+saleColumns+` FROM sales INDEXED BY idx_sales_by_date WHERE date = ? ORDER BY id ASC`,
		string(date))
}

// ListSalesByType returns the bought or sold records, using idx_sales_by_type.
func (s *Store) ListSalesByType(ctx context.Context, typ pos.TransactionType) ([]pos.SaleRecord, error) {
	return s.querySales(ctx, "list sales by type",
		`SELECT `+saleColumns+` FROM sales INDEXED BY idx_sales_by_type WHERE transaction_type = ? ORDER BY id ASC`,
		string(typ))
}

func (s *Store) querySales(ctx context.Context, op, query string, args ...any) ([]pos.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pos.NewStorageError(op, err)
	}
	defer rows.Close()

	sales := []pos.SaleRecord{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, pos.NewStorageError(op, err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, pos.NewStorageError(op, fmt.Errorf("iterate sales: %w", err))
	}
	return sales, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (pos.SaleRecord, error) {
	var (
		sale                     pos.SaleRecord
		date, ts, item, typ      string
		rateStr, kilosStr, total string
	)
	if err := row.Scan(&sale.ID, &sale.Ref, &date, &ts, &sale.CustomerName, &item, &rateStr, &kilosStr, &total, &typ); err != nil {
		return pos.SaleRecord{}, err
	}

	timestamp, err := parseTime(ts)
	if err != nil {
		return pos.SaleRecord{}, err
	}

	sale.Date = pos.CalendarDate(date)
	sale.Timestamp = timestamp
	sale.Item = pos.ItemKind(item)
	sale.TransactionType = pos.TransactionType(typ)

	if sale.Rate, err = decimal.NewFromString(rateStr); err != nil {
		return pos.SaleRecord{}, fmt.Errorf("scan rate of sale %d: %w", sale.ID, err)
	}
	if sale.Kilos, err = decimal.NewFromString(kilosStr); err != nil {
		return pos.SaleRecord{}, fmt.Errorf("scan kilos of sale %d: %w", sale.ID, err)
	}
	if sale.Total, err = decimal.NewFromString(total); err != nil {
		return pos.SaleRecord{}, fmt.Errorf("scan total of sale %d: %w", sale.ID, err)
	}
	return sale, nil
}
