package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/posync/internal/pos"
)

// timeLayout stores instants as sortable UTC text.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// marshalPrices converts a price map to JSON TEXT for storage.
// Decimals are encoded as strings so no precision is lost.
func marshalPrices(prices map[pos.ItemKind]decimal.Decimal) (string, error) {
	data, err := json.Marshal(prices)
	if err != nil {
		return "", fmt.Errorf("marshal prices: %w", err)
	}
	return string(data), nil
}

// unmarshalPrices parses JSON TEXT to a price map.
func unmarshalPrices(data string) (map[pos.ItemKind]decimal.Decimal, error) {
	prices := map[pos.ItemKind]decimal.Decimal{}
	if data == "" || data == "{}" {
		return prices, nil
	}
	if err := json.Unmarshal([]byte(data), &prices); err != nil {
		return nil, fmt.Errorf("unmarshal prices: %w", err)
	}
	return prices, nil
}

// marshalPayload serializes the payload of a pending entry.
func marshalPayload(entry pos.PendingSyncEntry) (string, error) {
	var v any
	switch entry.Kind {
	case pos.PayloadPrices:
		if entry.Prices == nil {
			return "", pos.NewValidationError("prices", "prices payload is missing")
		}
		v = entry.Prices
	case pos.PayloadSale:
		if entry.Sale == nil {
			return "", pos.NewValidationError("sale", "sale payload is missing")
		}
		v = entry.Sale
	default:
		return "", pos.NewValidationError("payload_kind", fmt.Sprintf("unknown payload kind %q", entry.Kind))
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", entry.Kind, err)
	}
	return string(data), nil
}

// unmarshalPayload restores the payload of a pending entry in place.
func unmarshalPayload(entry *pos.PendingSyncEntry, data string) error {
	switch entry.Kind {
	case pos.PayloadPrices:
		var sheet pos.PriceSheet
		if err := json.Unmarshal([]byte(data), &sheet); err != nil {
			return fmt.Errorf("unmarshal prices payload: %w", err)
		}
		entry.Prices = &sheet
	case pos.PayloadSale:
		var sale pos.SaleRecord
		if err := json.Unmarshal([]byte(data), &sale); err != nil {
			return fmt.Errorf("unmarshal sale payload: %w", err)
		}
		entry.Sale = &sale
	default:
		return fmt.Errorf("unknown payload kind %q", entry.Kind)
	}
	return nil
}
