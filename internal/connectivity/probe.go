package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Prober checks whether the remote is reachable right now.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) error

// Probe calls f(ctx).
func (f ProberFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

// HTTPProber probes GET {BaseURL}/health. Any 2xx response means online.
type HTTPProber struct {
	BaseURL string
	Client  *http.Client // Defaults to http.DefaultClient
}

// Probe performs one health request.
func (p *HTTPProber) Probe(ctx context.Context) error {
	url := strings.TrimRight(p.BaseURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("probe: build request: %w", err)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Check probes once and records the result on the oracle.
// Returns the new online state.
func Check(ctx context.Context, oracle *Oracle, prober Prober) bool {
	err := prober.Probe(ctx)
	if err != nil && ctx.Err() != nil {
		// Cancelled probes say nothing about the remote
		return oracle.IsOnline()
	}
	if err != nil {
		oracle.logger.Debug("probe failed", zap.Error(err))
	}
	oracle.Set(err == nil)
	return err == nil
}

// Poll probes immediately and then every interval until ctx is cancelled.
// Returns ctx.Err().
func Poll(ctx context.Context, oracle *Oracle, prober Prober, interval time.Duration) error {
	Check(ctx, oracle, prober)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			Check(ctx, oracle, prober)
		}
	}
}
