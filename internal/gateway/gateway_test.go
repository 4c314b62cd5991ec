package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/posync/internal/pos"
)

func testSale() pos.SaleRecord {
	return pos.SaleRecord{
		ID:              7,
		Ref:             "sale-ref-1",
		Date:            "2024-01-01",
		Timestamp:       time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		CustomerName:    "Ravi",
		Item:            pos.ItemMaize,
		Rate:            decimal.NewFromInt(20),
		Kilos:           decimal.NewFromInt(3),
		Total:           decimal.NewFromInt(60),
		TransactionType: pos.Sold,
	}
}

func TestSendSale_PostsToSync(t *testing.T) {
	var got pos.SaleRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sync", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "sale-ref-1", r.Header.Get(IdempotencyHeader))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	g := New(srv.URL, time.Second, zaptest.NewLogger(t))
	require.NoError(t, g.SendSale(context.Background(), testSale()))

	assert.Equal(t, "sale-ref-1", got.Ref)
	assert.Equal(t, pos.ItemMaize, got.Item)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(60)))
	assert.True(t, got.Timestamp.Equal(testSale().Timestamp))
}

func TestSendPrices_PostsToPrices(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prices", r.URL.Path)
		assert.Equal(t, "prices:2024-01-01", r.Header.Get(IdempotencyHeader))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"message":"Prices saved successfully"}`))
	}))
	defer srv.Close()

	sheet := pos.PriceSheet{
		Date: "2024-01-01",
		Prices: map[pos.ItemKind]decimal.Decimal{
			pos.ItemCorns: decimal.RequireFromString("42.5"),
		},
	}
	g := &HTTPGateway{BaseURL: srv.URL + "/", Client: srv.Client()}
	require.NoError(t, g.SendPrices(context.Background(), sheet))

	assert.Equal(t, "2024-01-01", body["date"])
	assert.Equal(t, map[string]any{"corns": "42.5"}, body["prices"])
}

func TestSend_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantRejected bool
		wantMessage  string
	}{
		{"bad request", http.StatusBadRequest, `{"error":"Invalid price for corns"}`, true, "Invalid price for corns"},
		{"conflict", http.StatusConflict, ``, true, "Conflict"},
		{"server error", http.StatusInternalServerError, `{"error":"db down"}`, false, "db down"},
		{"bad gateway", http.StatusBadGateway, `upstream gone`, false, "upstream gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			g := &HTTPGateway{BaseURL: srv.URL, Client: srv.Client()}
			err := g.SendSale(context.Background(), testSale())
			require.Error(t, err)

			assert.True(t, pos.IsDeliveryError(err))
			assert.Equal(t, tt.wantRejected, pos.IsRejected(err))
			assert.Equal(t, !tt.wantRejected, pos.IsTransient(err))
			assert.Contains(t, err.Error(), tt.wantMessage)

			var pe *pos.Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.status, pe.StatusCode)
		})
	}
}

func TestSend_TransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := New(url, time.Second, nil)
	err := g.SendSale(context.Background(), testSale())
	require.Error(t, err)
	assert.True(t, pos.IsTransient(err))
	assert.False(t, pos.IsRejected(err))
}

func TestSend_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	g := New(srv.URL, 20*time.Millisecond, nil)
	err := g.SendSale(context.Background(), testSale())
	require.Error(t, err)
	assert.True(t, pos.IsTransient(err))
}
