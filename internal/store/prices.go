package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/posync/internal/pos"
)

// GetPriceSheet returns the sheet stored for date.
// If no sheet exists, an all-zero sheet over every known item is returned;
// a missing key is never an error.
func (s *Store) GetPriceSheet(ctx context.Context, date pos.CalendarDate) (pos.PriceSheet, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT prices FROM price_sheets WHERE date = ?
	`, string(date)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return pos.ZeroPriceSheet(date), nil
	}
	if err != nil {
		return pos.PriceSheet{}, pos.NewStorageError("get price sheet", err)
	}

	prices, err := unmarshalPrices(data)
	if err != nil {
		return pos.PriceSheet{}, pos.NewStorageError("get price sheet", err)
	}
	return pos.PriceSheet{Date: date, Prices: prices}, nil
}

// HasPriceSheet reports whether a sheet has been stored for date.
func (s *Store) HasPriceSheet(ctx context.Context, date pos.CalendarDate) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM price_sheets WHERE date = ?
	`, string(date)).Scan(&count)
	if err != nil {
		return false, pos.NewStorageError("check price sheet", err)
	}
	return count > 0, nil
}

// SetPriceSheet validates and upserts the sheet for sheet.Date.
// Writing a date twice leaves exactly one sheet holding the latest prices.
func (s *Store) SetPriceSheet(ctx context.Context, sheet pos.PriceSheet) error {
	if err := pos.ValidatePriceSheet(sheet); err != nil {
		return err
	}

	pricesJSON, err := marshalPrices(sheet.Prices)
	if err != nil {
		return pos.NewStorageError("set price sheet", err)
	}

	return s.withTx(ctx, "set price sheet", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO price_sheets (date, prices, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(date) DO UPDATE SET
				prices = excluded.prices,
				updated_at = excluded.updated_at
		`, string(sheet.Date), pricesJSON, formatTime(s.now()))
		if err != nil {
			return pos.NewStorageError("set price sheet", fmt.Errorf("upsert %s: %w", sheet.Date, err))
		}
		return nil
	})
}

// CountPriceSheets returns the number of stored sheets.
func (s *Store) CountPriceSheets(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_sheets`).Scan(&count); err != nil {
		return 0, pos.NewStorageError("count price sheets", err)
	}
	return count, nil
}
