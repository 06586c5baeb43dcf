// Package health probes dev server endpoints.
//
// A dev server counts as healthy when it answers with any well-formed
// HTTP response. Status codes are deliberately ignored: a bundler that
// returns 404 for "/" is still up and able to serve modules. Only
// transport failures (connection refused, timeout) mean "not ready".
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	// DefaultInterval is the poll interval for readiness waits.
	DefaultInterval = 500 * time.Millisecond

	// DefaultTimeout bounds a single probe request.
	DefaultTimeout = 2 * time.Second
)

// Probe checks dev server endpoints over HTTP.
type Probe struct {
	// Interval is the poll interval used by WaitReady.
	Interval time.Duration

	// client issues probe requests with a bounded timeout.
	client *http.Client
}

// New creates a probe with default interval and per-request timeout.
//
// Returns:
//   - *Probe: A ready-to-use probe
func New() *Probe {
	return NewWithTimeout(DefaultInterval, DefaultTimeout)
}

// NewWithTimeout creates a probe with explicit timings.
//
// Parameters:
//   - interval: Poll interval for WaitReady
//   - timeout: Per-request timeout
//
// Returns:
//   - *Probe: A ready-to-use probe
func NewWithTimeout(interval, timeout time.Duration) *Probe {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Probe{
		Interval: interval,
		client:   &http.Client{Timeout: timeout},
	}
}

// Check performs a single health probe against a base URL.
//
// Parameters:
//   - ctx: Bounds the request
//   - baseURL: The dev server base URL, e.g. "http://127.0.0.1:5173"
//
// Returns:
//   - bool: True if the server produced any HTTP response
func (p *Probe) Check(ctx context.Context, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/", nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	// Any response, including 404, means the server is up.
	return true
}

// WaitReady polls the base URL until it answers, the timeout elapses, or
// ctx is cancelled.
//
// Parameters:
//   - ctx: Cancels the wait
//   - baseURL: The dev server base URL
//   - timeout: Overall deadline for readiness
//
// Returns:
//   - error: nil once healthy; a timeout or context error otherwise
func (p *Probe) WaitReady(ctx context.Context, baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	// Probe immediately before settling into the ticker.
	if p.Check(ctx, baseURL) {
		return nil
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if p.Check(ctx, baseURL) {
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("dev server at %s not ready after %s", baseURL, timeout)
			}
		}
	}
}
