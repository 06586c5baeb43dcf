package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors for the two ways an upstream dev server can fail a
// forwarded request. They map to different HTTP statuses because they call
// for different fixes: a refused connection usually means the dev server is
// restarting or gone, while a timeout suggests it is hung.
var (
	// ErrUpstreamUnavailable is a connection-level failure (refused, reset,
	// no route). Expected during bundler restarts; maps to 503.
	ErrUpstreamUnavailable = errors.New("dev server unavailable")

	// ErrUpstreamTimeout is a connect or read deadline exceeded. Maps to 502.
	ErrUpstreamTimeout = errors.New("dev server timed out")
)

// classifyUpstream wraps a transport error with the matching sentinel so
// callers can pick a status with errors.Is.
func classifyUpstream(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}

// StatusFor maps a classified upstream error to the client-facing HTTP
// status: 502 for timeouts, 503 for everything else.
func StatusFor(err error) int {
	if errors.Is(err, ErrUpstreamTimeout) {
		return http.StatusBadGateway
	}
	return http.StatusServiceUnavailable
}
