package proxy

import (
	"net"
	"net/http"
	"time"
)

// Default timeouts for upstream traffic. Connect is short because the dev
// server runs on loopback; read is generous because a cold Vite start can
// spend seconds optimizing dependencies before answering the first request.
const (
	DefaultConnectTimeout = 2 * time.Second
	DefaultReadTimeout    = 30 * time.Second
)

// Options configures the HTTP and WebSocket forwarders.
type Options struct {
	// ConnectTimeout bounds upstream dials and WebSocket handshakes.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait for upstream response headers.
	ReadTimeout time.Duration

	// HMRSubprotocols are the WebSocket subprotocol names that select the
	// HMR channel when the discovery record advertises a separate one.
	HMRSubprotocols []string

	// Sessions tracks in-flight proxy operations. Shared between the HTTP
	// and WebSocket forwarders so diagnostics see both.
	Sessions *Registry

	// StatusHint, when set, supplies extra context for 503 bodies, such
	// as "dev server crashed (exit status 1)". May return "".
	StatusHint func() string
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout > 0 {
		return o.ConnectTimeout
	}
	return DefaultConnectTimeout
}

func (o Options) readTimeout() time.Duration {
	if o.ReadTimeout > 0 {
		return o.ReadTimeout
	}
	return DefaultReadTimeout
}

func (o Options) sessions() *Registry {
	if o.Sessions != nil {
		return o.Sessions
	}
	return NewRegistry()
}

func (o Options) statusHint() func() string {
	if o.StatusHint != nil {
		return o.StatusHint
	}
	return func() string { return "" }
}

func (o Options) hmrSubprotocols() []string {
	if len(o.HMRSubprotocols) > 0 {
		return o.HMRSubprotocols
	}
	return []string{"vite-hmr", "vite-ping"}
}

// newTransport builds the shared upstream transport. Compression stays
// enabled: when the transport negotiates gzip itself it also transparently
// decompresses and marks the response Uncompressed, which the forwarder
// relies on to drop the then-stale length and encoding headers.
func newTransport(connectTimeout, readTimeout time.Duration) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
}
