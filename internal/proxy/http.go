// Package proxy implements the browser-facing half of the bridge: an
// ordered path classifier that decides which requests belong to the
// bundler's dev server, a streaming HTTP forwarder, and a WebSocket relay
// for the HMR channel.
//
// Both forwarders resolve the upstream target through a TargetFunc on
// every request instead of caching it, so a bundler restart on a new
// ephemeral port is picked up as soon as the new discovery record lands.
package proxy

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/devrelay/cli/internal/discovery"
)

// TargetFunc resolves the current upstream target. It returns (nil, nil)
// when no dev server has published an address; callers treat that as
// "proxy unavailable", not as an error.
type TargetFunc func() (*discovery.Target, error)

// Forwarder streams HTTP requests to the dev server and relays the
// responses back. It implements http.Handler for paths the Classifier has
// already claimed.
type Forwarder struct {
	resolve    TargetFunc
	client     *http.Client
	sessions   *Registry
	statusHint func() string
	tracer     trace.Tracer
}

// NewForwarder builds a forwarder that resolves its target per request.
func NewForwarder(resolve TargetFunc, opts Options) *Forwarder {
	return &Forwarder{
		resolve: resolve,
		client: &http.Client{
			Transport: newTransport(opts.connectTimeout(), opts.readTimeout()),
			// Redirects belong to the client, not the proxy.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		sessions:   opts.sessions(),
		statusHint: opts.statusHint(),
		tracer:     otel.Tracer("github.com/devrelay/cli/internal/proxy"),
	}
}

// Sessions returns the registry tracking in-flight operations.
func (f *Forwarder) Sessions() *Registry {
	return f.sessions
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := f.tracer.Start(r.Context(), "proxy.forward",
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
		))
	defer span.End()

	target, err := f.resolve()
	if err != nil {
		log.Warn("Discovery record unreadable", "error", err)
		span.SetStatus(codes.Error, "discovery record unreadable")
		http.Error(w, "devrelay: dev server discovery record is unreadable; try restarting with 'devrelay serve'", http.StatusServiceUnavailable)
		return
	}
	if target == nil {
		// Normal state while the dev server is down; not an error.
		log.Debug("No dev server target", "path", r.URL.Path)
		span.SetStatus(codes.Error, "no dev server target")
		f.unavailable(w)
		return
	}
	span.SetAttributes(attribute.String("upstream.url", target.HTTPBaseURL))

	base, err := url.Parse(target.HTTPBaseURL)
	if err != nil {
		log.Error("Discovery record has invalid URL", "url", target.HTTPBaseURL, "error", err)
		span.SetStatus(codes.Error, "invalid upstream url")
		http.Error(w, "devrelay: discovery record contains an invalid dev server URL", http.StatusBadGateway)
		return
	}

	sess := f.sessions.add(SessionHTTP, r.RemoteAddr, target.HTTPBaseURL)
	defer f.sessions.remove(sess.ID)

	upReq, err := http.NewRequestWithContext(ctx, r.Method, joinUpstreamURL(base, r.URL), r.Body)
	if err != nil {
		span.SetStatus(codes.Error, "build upstream request")
		http.Error(w, "devrelay: failed to build upstream request", http.StatusInternalServerError)
		return
	}
	upReq.ContentLength = r.ContentLength
	copyRequestHeaders(upReq.Header, r.Header)
	setForwardedHeaders(upReq, r)

	resp, err := f.client.Do(upReq)
	if err != nil {
		f.failUpstream(w, r, span, err)
		return
	}
	defer resp.Body.Close()

	copyResponseHeaders(w.Header(), resp)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		f.streamEvents(w, r, resp)
		return
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		if r.Context().Err() != nil {
			// Client went away mid-transfer; nothing left to answer.
			return
		}
		log.Warn("Upstream body aborted mid-stream", "path", r.URL.Path, "error", err)
		span.SetStatus(codes.Error, "upstream body aborted")
		// Headers are already on the wire, so the only honest signal left
		// is killing the connection. Never a second response.
		panic(http.ErrAbortHandler)
	}
}

// streamEvents relays a server-sent-event response, flushing per chunk so
// reload notifications are not held in a buffer.
func (f *Forwarder) streamEvents(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
		return
	}
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(resp.StatusCode)
	flusher.Flush()

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF && r.Context().Err() == nil {
				log.Debug("Event stream ended", "path", r.URL.Path, "error", err)
			}
			return
		}
	}
}

// failUpstream answers a request whose upstream round trip failed. The
// full failure response is decided here, before any upstream response body
// exists, so upstream cleanup can never race a half-written reply.
func (f *Forwarder) failUpstream(w http.ResponseWriter, r *http.Request, span trace.Span, err error) {
	cerr := classifyUpstream(err)
	span.RecordError(cerr)
	if errors.Is(cerr, ErrUpstreamTimeout) {
		log.Warn("Dev server timed out", "path", r.URL.Path, "error", err)
		span.SetStatus(codes.Error, "upstream timeout")
		http.Error(w, "devrelay: dev server timed out; the bundler may be hung or still optimizing dependencies", http.StatusBadGateway)
		return
	}
	// Refused connections are routine while the bundler restarts.
	log.Debug("Dev server unreachable", "path", r.URL.Path, "error", err)
	span.SetStatus(codes.Error, "upstream unavailable")
	body := "devrelay: dev server is not reachable (connection refused); it may be restarting"
	if hint := f.statusHint(); hint != "" {
		body += ". " + hint
	}
	http.Error(w, body, http.StatusServiceUnavailable)
}

func (f *Forwarder) unavailable(w http.ResponseWriter) {
	body := "devrelay: dev server is not running (no discovery record); start it with 'devrelay serve'"
	if hint := f.statusHint(); hint != "" {
		body += ". " + hint
	}
	http.Error(w, body, http.StatusServiceUnavailable)
}

// joinUpstreamURL rewrites only scheme, host, and base path; method, query,
// and the path's original encoding pass through untouched.
func joinUpstreamURL(base *url.URL, req *url.URL) string {
	out := *base
	out.Path = singleJoiningSlash(base.Path, req.Path)
	if req.RawPath != "" {
		out.RawPath = singleJoiningSlash(base.EscapedPath(), req.RawPath)
	}
	out.RawQuery = req.RawQuery
	return out.String()
}

func singleJoiningSlash(a, b string) string {
	aSlash := strings.HasSuffix(a, "/")
	bSlash := strings.HasPrefix(b, "/")
	switch {
	case aSlash && bSlash:
		return a + b[1:]
	case !aSlash && !bSlash:
		return a + "/" + b
	}
	return a + b
}

// Hop-by-hop headers are scoped to one connection leg and must never cross
// the proxy boundary in either direction.
var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

func isHopByHop(name string) bool {
	return hopByHopHeaders[strings.ToLower(name)]
}

func copyRequestHeaders(dst, src http.Header) {
	for key, values := range src {
		if isHopByHop(key) {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// copyResponseHeaders relays upstream response headers minus hop-by-hop
// ones. When the transport transparently decompressed the body, the
// recorded length and encoding describe bytes that no longer exist; a
// stale content-length against a decompressed body is silently truncated
// by most clients, so both headers are dropped.
func copyResponseHeaders(dst http.Header, resp *http.Response) {
	for key, values := range resp.Header {
		if isHopByHop(key) {
			continue
		}
		if resp.Uncompressed && (key == "Content-Length" || key == "Content-Encoding") {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func setForwardedHeaders(upReq *http.Request, r *http.Request) {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		upReq.Header.Set("X-Forwarded-For", host)
	}
	upReq.Header.Set("X-Forwarded-Host", r.Host)
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	upReq.Header.Set("X-Forwarded-Proto", proto)
}
