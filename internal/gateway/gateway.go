// Package gateway delivers price sheets and sales to the remote authority.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/posync/internal/pos"
)

// IdempotencyHeader carries the key the authority de-duplicates replays by.
const IdempotencyHeader = "Idempotency-Key"

// DefaultTimeout bounds a single delivery attempt when no client is given.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is read into the message.
const maxErrorBody = 4 << 10

// HTTPGateway posts payloads to the remote authority over HTTP.
//
// Responses are classified for the engine:
//   - 2xx: delivered
//   - 4xx: pos delivery error with Rejected=true
//   - 5xx or transport failure: pos delivery error with Rejected=false
type HTTPGateway struct {
	BaseURL string
	Client  *http.Client
	Logger  *zap.Logger
}

// New creates a gateway for baseURL whose requests time out after timeout.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPGateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPGateway{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

// SendPrices posts a price sheet to /prices.
func (g *HTTPGateway) SendPrices(ctx context.Context, sheet pos.PriceSheet) error {
	key := "prices:" + sheet.Date.String()
	return g.post(ctx, "send prices", "/prices", key, sheet)
}

// SendSale posts a sale record to /sync.
func (g *HTTPGateway) SendSale(ctx context.Context, sale pos.SaleRecord) error {
	return g.post(ctx, "send sale", "/sync", sale.Ref, sale)
}

func (g *HTTPGateway) post(ctx context.Context, op, path, key string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	url := strings.TrimRight(g.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return pos.NewDeliveryError(op, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}

	resp, err := g.client().Do(req)
	if err != nil {
		return pos.NewDeliveryError(op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		g.logger().Debug("delivered",
			zap.String("op", op),
			zap.String("key", key),
			zap.Int("status", resp.StatusCode))
		return nil
	}

	return pos.NewDeliveryError(op, resp.StatusCode, errors.New(readError(resp)))
}

// readError extracts the authority's {"error": "..."} message, falling back
// to the status text.
func readError(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func (g *HTTPGateway) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return http.DefaultClient
}

func (g *HTTPGateway) logger() *zap.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return zap.NewNop()
}
