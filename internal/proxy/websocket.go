package proxy

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/devrelay/cli/internal/discovery"
)

// closeGracePeriod bounds the write of a propagated close frame.
const closeGracePeriod = time.Second

// WSForwarder relays WebSocket sessions, including the HMR control
// channel, between the browser and the dev server. The client's requested
// subprotocol decides which upstream channel the session connects to:
// HMR subprotocols go to the dedicated HMR endpoint when the discovery
// record advertises one, everything else to the main channel.
type WSForwarder struct {
	resolve    TargetFunc
	upgrader   websocket.Upgrader
	dialer     *websocket.Dialer
	hmr        map[string]bool
	sessions   *Registry
	statusHint func() string
	tracer     trace.Tracer
}

// NewWSForwarder builds a WebSocket forwarder that resolves its target per
// upgrade.
func NewWSForwarder(resolve TargetFunc, opts Options) *WSForwarder {
	hmr := make(map[string]bool)
	for _, name := range opts.hmrSubprotocols() {
		hmr[name] = true
	}
	return &WSForwarder{
		resolve: resolve,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The bridge serves localhost browsers during development;
			// origin policy stays with the backend's own routes.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.connectTimeout(),
		},
		hmr:        hmr,
		sessions:   opts.sessions(),
		statusHint: opts.statusHint(),
		tracer:     otel.Tracer("github.com/devrelay/cli/internal/proxy"),
	}
}

func (p *WSForwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := p.tracer.Start(r.Context(), "proxy.upgrade",
		trace.WithAttributes(attribute.String("url.path", r.URL.Path)))
	defer span.End()

	target, err := p.resolve()
	if err != nil {
		log.Warn("Discovery record unreadable", "error", err)
		span.SetStatus(codes.Error, "discovery record unreadable")
		http.Error(w, "devrelay: dev server discovery record is unreadable", http.StatusServiceUnavailable)
		return
	}
	if target == nil {
		log.Debug("No dev server target for upgrade", "path", r.URL.Path)
		span.SetStatus(codes.Error, "no dev server target")
		body := "devrelay: dev server is not running (no discovery record); start it with 'devrelay serve'"
		if hint := p.statusHint(); hint != "" {
			body += ". " + hint
		}
		http.Error(w, body, http.StatusServiceUnavailable)
		return
	}

	requested := websocket.Subprotocols(r)
	base, channel := p.selectChannel(target, requested)
	span.SetAttributes(
		attribute.String("ws.channel", channel),
		attribute.String("upstream.url", base),
	)

	upstream, err := upgradeURL(base, r.URL)
	if err != nil {
		log.Error("Discovery record has invalid URL", "url", base, "error", err)
		span.SetStatus(codes.Error, "invalid upstream url")
		http.Error(w, "devrelay: discovery record contains an invalid dev server URL", http.StatusBadGateway)
		return
	}

	dialer := *p.dialer
	dialer.Subprotocols = requested

	// The upstream dial happens before the client upgrade so a refused
	// upstream still gets a plain HTTP error instead of a hung handshake.
	upConn, upResp, err := dialer.DialContext(ctx, upstream, upgradeRequestHeaders(r.Header))
	if err != nil {
		if upResp != nil {
			upResp.Body.Close()
		}
		cerr := classifyUpstream(err)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, "upstream upgrade refused")
		log.Debug("Upstream refused WebSocket upgrade", "url", upstream, "error", err)
		http.Error(w, "devrelay: dev server refused the WebSocket upgrade; it may be restarting", StatusFor(cerr))
		return
	}
	defer upConn.Close()

	var respHeader http.Header
	if sp := upConn.Subprotocol(); sp != "" {
		respHeader = http.Header{"Sec-WebSocket-Protocol": {sp}}
	}
	clientConn, err := p.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Debug("Client upgrade failed", "path", r.URL.Path, "error", err)
		span.SetStatus(codes.Error, "client upgrade failed")
		return
	}
	defer clientConn.Close()

	sess := p.sessions.add(SessionWebSocket, r.RemoteAddr, base)
	defer p.sessions.remove(sess.ID)
	log.Debug("WebSocket session open", "id", sess.ID, "channel", channel, "path", r.URL.Path)

	// Each direction relays independently; the first failure propagates a
	// close frame to the opposite side, and the deferred Closes unblock
	// the surviving goroutine.
	errc := make(chan error, 2)
	go relayFrames(upConn, clientConn, errc)
	go relayFrames(clientConn, upConn, errc)
	err = <-errc

	if err != nil && !websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		log.Debug("WebSocket session ended", "id", sess.ID, "error", err)
		return
	}
	log.Debug("WebSocket session closed", "id", sess.ID)
}

// selectChannel picks the upstream base URL for an upgrade. The dedicated
// HMR channel is used only when an HMR subprotocol was requested and the
// record advertises a distinct endpoint for it.
func (p *WSForwarder) selectChannel(target *discovery.Target, requested []string) (string, string) {
	for _, name := range requested {
		if p.hmr[name] {
			if target.HMRBaseURL != "" && target.HMRBaseURL != target.HTTPBaseURL {
				return target.HMRBaseURL, "hmr"
			}
			return target.HTTPBaseURL, "main"
		}
	}
	return target.HTTPBaseURL, "main"
}

// relayFrames copies messages from src to dst until a read or write fails,
// then hands dst a best-effort close frame so neither side is left
// half-open. Message order within the direction is preserved because this
// is the only goroutine writing data frames to dst.
func relayFrames(dst, src *websocket.Conn, errc chan<- error) {
	for {
		msgType, msg, err := src.ReadMessage()
		if err != nil {
			deadline := time.Now().Add(closeGracePeriod)
			_ = dst.WriteControl(websocket.CloseMessage, closeFrameFor(err), deadline)
			errc <- err
			return
		}
		if err := dst.WriteMessage(msgType, msg); err != nil {
			errc <- err
			return
		}
	}
}

// closeFrameFor maps a read error to the close frame relayed to the peer.
// Received close codes pass through as-is; abnormal errors become 1001
// (going away) because 1006 must never appear on the wire.
func closeFrameFor(err error) []byte {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		// FormatCloseMessage returns an empty frame for CloseNoStatusReceived.
		return websocket.FormatCloseMessage(ce.Code, ce.Text)
	}
	return websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
}

// upgradeURL rewrites the discovery base URL to its WebSocket scheme and
// joins the client's path and query onto it.
func upgradeURL(base string, req *url.URL) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = singleJoiningSlash(u.Path, req.Path)
	if req.RawPath != "" {
		u.RawPath = singleJoiningSlash(u.EscapedPath(), req.RawPath)
	}
	u.RawQuery = req.RawQuery
	return u.String(), nil
}

// upgradeRequestHeaders carries the client's headers to the upstream
// handshake, minus hop-by-hop headers and the Sec-WebSocket-* family the
// dialer writes itself.
func upgradeRequestHeaders(src http.Header) http.Header {
	dst := http.Header{}
	for key, values := range src {
		if isHopByHop(key) || strings.HasPrefix(strings.ToLower(key), "sec-websocket-") {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
	return dst
}
