// Package devrelay embeds the dev server bridge in a Go backend.
//
// During development the backend mounts the bridge's handler in front of
// its own routes: bundler-owned paths (module loader URLs, source files,
// the HMR websocket) are reverse proxied to a supervised frontend dev
// server, and everything else falls through to the application.
//
// Example usage:
//
//	bridge, err := devrelay.New(devrelay.WithWorkDir("./webapp"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := bridge.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer bridge.Stop()
//
//	mux := http.NewServeMux()
//	mux.Handle("/", bridge.Handler(appRoutes))
package devrelay

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/bridge/providers"
	"github.com/devrelay/cli/internal/config"
	"github.com/devrelay/cli/internal/discovery"
	"github.com/devrelay/cli/internal/health"
	"github.com/devrelay/cli/internal/ports"
	"github.com/devrelay/cli/internal/proxy"
	"github.com/devrelay/cli/internal/status"
)

// Bridge supervises a frontend dev server and proxies its traffic.
type Bridge struct {
	cfg           *config.ProjectConfig
	workDir       string
	root          string
	serverDir     string
	discoveryPath string

	provider   bridge.Provider
	classifier *proxy.Classifier
	httpFwd    *proxy.Forwarder
	wsFwd      *proxy.WSForwarder
	sessions   *proxy.Registry

	probe    *health.Probe
	onLog    func(message string)
	onOutput func(line string, stderr bool)

	mu      sync.Mutex
	manager *bridge.Manager
}

// Option configures a Bridge.
type Option func(*Bridge) error

// WithWorkDir sets the directory to resolve the project from. The bridge
// searches upward for .devrelay/config.yaml, then for package.json.
func WithWorkDir(dir string) Option {
	return func(b *Bridge) error {
		b.workDir = dir
		return nil
	}
}

// WithConfig sets the project configuration directly, skipping the
// .devrelay/config.yaml lookup.
func WithConfig(cfg *config.ProjectConfig) Option {
	return func(b *Bridge) error {
		b.cfg = cfg
		return nil
	}
}

// WithReadyProbe overrides the health probe timings used while waiting
// for the dev server to come up.
func WithReadyProbe(interval, timeout time.Duration) Option {
	return func(b *Bridge) error {
		b.probe = health.NewWithTimeout(interval, timeout)
		return nil
	}
}

// WithLog sets a callback for human-readable supervision messages.
func WithLog(callback func(message string)) Option {
	return func(b *Bridge) error {
		b.onLog = callback
		return nil
	}
}

// WithOutput sets a callback for dev server process output lines.
func WithOutput(callback func(line string, stderr bool)) Option {
	return func(b *Bridge) error {
		b.onOutput = callback
		return nil
	}
}

// New creates a bridge for the project in the working directory.
//
// The project root, configuration, and dev server family are resolved
// eagerly so misconfiguration surfaces here rather than at Start.
//
// Parameters:
//   - opts: Configuration options
//
// Returns:
//   - *Bridge: A new bridge instance
//   - error: Any error that occurred during resolution
func New(opts ...Option) (*Bridge, error) {
	b := &Bridge{}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	if b.workDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		b.workDir = cwd
	}

	// The embedder's directory is authoritative when no marker exists.
	root, err := config.FindProjectRoot(b.workDir)
	if err != nil {
		root = b.workDir
	}
	b.root = root

	if b.cfg == nil {
		cfg, err := config.LoadProjectConfig(config.ConfigPath(root))
		if err != nil {
			cfg = &config.ProjectConfig{}
		}
		b.cfg = cfg
	}
	if err := b.cfg.Server.Validate(); err != nil {
		return nil, err
	}

	b.serverDir = root
	if b.cfg.Server.Dir != "" {
		b.serverDir = filepath.Join(root, b.cfg.Server.Dir)
	}
	b.discoveryPath = config.DiscoveryPath(root, b.cfg)

	provider, err := bridge.DefaultRegistry().Select(b.cfg.Server.Family, b.serverDir)
	if err != nil {
		return nil, err
	}
	b.provider = provider

	b.classifier = proxy.NewClassifier(b.routingRules()...)
	b.sessions = proxy.NewRegistry()

	proxyOpts := proxy.Options{
		ConnectTimeout:  b.cfg.Proxy.ConnectTimeout(),
		ReadTimeout:     b.cfg.Proxy.ReadTimeout(),
		HMRSubprotocols: b.cfg.Proxy.Subprotocols(),
		Sessions:        b.sessions,
		StatusHint:      b.statusHint,
	}
	b.httpFwd = proxy.NewForwarder(b.resolveTarget, proxyOpts)
	b.wsFwd = proxy.NewWSForwarder(b.resolveTarget, proxyOpts)

	return b, nil
}

// routingRules assembles the classifier rule set: built-in family rules,
// detected source directories, then configured extras.
func (b *Bridge) routingRules() []proxy.Rule {
	rules := proxy.DefaultRules(b.provider.Name(), providers.SourceDirs(b.serverDir))
	rules = append(rules, proxy.PrefixRules(b.cfg.Proxy.Prefixes)...)
	rules = append(rules, proxy.ExactRules(b.cfg.Proxy.Exact)...)
	return rules
}

// resolveTarget reads the discovery record for the forwarders. The record
// is the single source of truth for where the dev server listens, so an
// embedded bridge and an external `devrelay serve` behave identically.
func (b *Bridge) resolveTarget() (*discovery.Target, error) {
	rec, err := discovery.Read(b.discoveryPath)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	target := rec.Target()
	return &target, nil
}

// statusHint supplies supervision context for proxy error bodies.
func (b *Bridge) statusHint() string {
	if m := b.currentManager(); m != nil {
		return m.StatusHint()
	}
	return ""
}

func (b *Bridge) currentManager() *bridge.Manager {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.manager
}

// Start launches the dev server and blocks until it answers health
// probes, per the configured ready timeout.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: Any error from port negotiation, spawn, or readiness
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.manager != nil && status.IsActive(string(b.manager.State())) {
		b.mu.Unlock()
		return fmt.Errorf("bridge already started")
	}
	b.mu.Unlock()

	httpPort, hmrPort, err := b.negotiatePorts()
	if err != nil {
		return err
	}

	server, err := b.provider.NewDevServer(&b.cfg.Server, b.serverDir, httpPort, hmrPort)
	if err != nil {
		return err
	}

	manager := bridge.NewManager(server, bridge.Options{
		DiscoveryPath: b.discoveryPath,
		ReadyTimeout:  b.cfg.Server.ReadyTimeout(),
		GraceWindow:   b.cfg.Server.GraceWindow(),
		Probe:         b.probe,
	})
	if b.onLog != nil {
		manager.SetLogCallback(b.onLog)
	}
	if b.onOutput != nil {
		manager.SetOutputCallback(func(out bridge.DevServerOutput) {
			b.onOutput(out.Line, out.Stream == bridge.DevServerOutputStderr)
		})
	}

	b.mu.Lock()
	b.manager = manager
	b.mu.Unlock()

	if _, err := manager.Start(ctx); err != nil {
		return err
	}
	return nil
}

// negotiatePorts reserves the dev server's port(s) before spawn so the
// launch command can pin them with strict-port semantics.
func (b *Bridge) negotiatePorts() (int, int, error) {
	if b.cfg.Server.SeparateHMR {
		return ports.ReservePair(b.cfg.Server.Port, b.cfg.Server.HMRPort)
	}
	port, err := ports.Reserve(b.cfg.Server.Port)
	return port, 0, err
}

// Stop shuts the dev server down and removes the discovery record.
// Safe to call multiple times and before Start.
func (b *Bridge) Stop() {
	if m := b.currentManager(); m != nil {
		m.Stop()
	}
}

// Restart stops the dev server and starts it again.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: Any error from the new launch
func (b *Bridge) Restart(ctx context.Context) error {
	m := b.currentManager()
	if m == nil {
		return fmt.Errorf("bridge not started")
	}
	_, err := m.Restart(ctx)
	return err
}

// Handler returns the development handler: bundler-owned paths are
// proxied to the dev server, everything else goes to next. A nil next
// yields 404 for non-bundler paths.
//
// The handler is safe to mount before Start; bundler paths answer 503
// until the dev server is up.
//
// Parameters:
//   - next: The application's own handler for fallthrough
//
// Returns:
//   - http.Handler: The combined development handler
func (b *Bridge) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !b.classifier.Matches(r.URL.EscapedPath()) {
			if next != nil {
				next.ServeHTTP(w, r)
				return
			}
			http.NotFound(w, r)
			return
		}
		if websocket.IsWebSocketUpgrade(r) {
			b.wsFwd.ServeHTTP(w, r)
			return
		}
		b.httpFwd.ServeHTTP(w, r)
	})
}

// Status is a point-in-time snapshot of the bridge.
type Status struct {
	// State is the dev server state ("ready", "crashed", ...). "stopped"
	// when Start has not run.
	State string
	// PID is the dev server process ID, 0 when not running.
	PID int
	// HTTPBaseURL is the dev server's main address when active.
	HTTPBaseURL string
	// HMRBaseURL is the separate HMR address, empty for a shared channel.
	HMRBaseURL string
	// Sessions is the number of in-flight proxy operations.
	Sessions int
}

// Status reports the current bridge state.
//
// Returns:
//   - Status: The snapshot
func (b *Bridge) Status() Status {
	s := Status{
		State:    string(status.StatusStopped),
		Sessions: b.sessions.Count(),
	}

	m := b.currentManager()
	if m == nil {
		return s
	}

	s.State = string(m.State())
	if handle := m.Handle(); handle != nil {
		s.PID = handle.PID()
	}
	if status.IsActive(s.State) {
		target := m.Target()
		s.HTTPBaseURL = target.HTTPBaseURL
		s.HMRBaseURL = target.HMRBaseURL
	}
	return s
}
