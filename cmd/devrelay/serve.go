// Package main provides the serve command for the devrelay CLI.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/bridge/providers"
	"github.com/devrelay/cli/internal/discovery"
	"github.com/devrelay/cli/internal/ports"
	"github.com/devrelay/cli/internal/proxy"
	"github.com/devrelay/cli/internal/trace"
	"github.com/devrelay/cli/internal/tui"
	"github.com/devrelay/cli/internal/ui"
)

var (
	serveDir           string
	serveListen        string
	servePort          int
	serveHMRPort       int
	serveBackend       string
	serveNoWaitReady   bool
	servePlain         bool
	serveOpen          bool
	serveTraceEndpoint string
)

// serveCmd starts the dev server behind the bridge proxy.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dev server behind the bridge proxy",
	Long: `Start the frontend dev server and serve it behind one stable origin.

devrelay negotiates a free port, spawns the bundler's dev server on it,
waits for it to answer health probes, and reverse-proxies HTTP and HMR
WebSocket traffic from the listen address. The dev server can restart or
crash without the browser-facing origin ever changing.

In an interactive terminal this runs the hub: a live status header over
the bundler's output, with keys to restart the dev server or open the
browser. Use --plain (or pipe the output) for plain line-by-line logs.

By default every request is forwarded to the dev server. With --backend,
only bundler-owned paths (/@vite/, /node_modules/, source files, HMR)
are; everything else goes to your backend, so API routes and server-side
pages share the origin with hot-reloaded assets.

EXAMPLES:
  devrelay serve
  devrelay serve --listen :9000 --open
  devrelay serve --backend http://127.0.0.1:3000
  devrelay serve --plain 2>&1 | tee dev.log`,
	RunE: runServe,
}

func init() {
	registerProjectFlag(serveCmd.Flags(), &serveDir)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Bridge listen address (default: proxy.listen from config, 127.0.0.1:8000)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Preferred dev server port (0 negotiates a free one)")
	serveCmd.Flags().IntVar(&serveHMRPort, "hmr-port", 0, "Preferred HMR port when server.separate_hmr is set")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "", "Forward non-bundler paths to this origin (default: everything goes to the dev server)")
	serveCmd.Flags().BoolVar(&serveNoWaitReady, "no-wait-ready", false, "Do not block startup on the dev server health probe")
	serveCmd.Flags().BoolVar(&servePlain, "plain", false, "Plain line-by-line output instead of the interactive hub")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "Open the bridge URL in your browser once ready")
	serveCmd.Flags().StringVar(&serveTraceEndpoint, "trace-endpoint", "", "OTLP HTTP endpoint for request traces (overrides "+trace.EndpointEnvVar+")")
}

// runServe wires the supervisor, the proxy listener, and the chosen
// front end (hub or plain logs) together for one serve session.
func runServe(cmd *cobra.Command, args []string) error {
	proj, err := loadProject(serveDir)
	if err != nil {
		return err
	}
	cfg := proj.Config

	// Flags override the config file only when actually set.
	if cmd.Flags().Changed("listen") {
		cfg.Proxy.Listen = serveListen
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("hmr-port") {
		cfg.Server.HMRPort = serveHMRPort
	}
	if err := cfg.Server.Validate(); err != nil {
		return err
	}
	openBrowser := serveOpen || cfg.Defaults.OpenBrowser

	provider, err := bridge.DefaultRegistry().Select(cfg.Server.Family, proj.ServerDir)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	var interrupted int32

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	stopSignalHandler := make(chan struct{})
	defer close(stopSignalHandler)

	go func() {
		interruptCount := 0
		for {
			select {
			case <-stopSignalHandler:
				return
			case <-sigChan:
				interruptCount++
				if interruptCount == 1 {
					atomic.StoreInt32(&interrupted, 1)
					ui.Println()
					ui.PrintInfo("Stopping bridge...")
					cancel()
					continue
				}
				ui.Println()
				ui.PrintWarning("Force exiting...")
				os.Exit(130)
			}
		}
	}()

	isUserCanceled := func(err error) bool {
		return atomic.LoadInt32(&interrupted) == 1 && isContextCanceledError(err)
	}

	if endpoint := trace.Endpoint(serveTraceEndpoint); endpoint != "" {
		shutdown, err := trace.Setup(ctx, endpoint, "devrelay")
		if err != nil {
			ui.PrintWarning("Tracing disabled: %v", err)
		} else {
			defer func() {
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelShutdown()
				_ = shutdown(shutdownCtx)
			}()
			log.Debug("Tracing enabled", "endpoint", endpoint)
		}
	}

	httpPort, hmrPort, err := negotiateServePorts(cfg.Server.SeparateHMR, cfg.Server.Port, cfg.Server.HMRPort)
	if err != nil {
		return err
	}

	server, err := provider.NewDevServer(&cfg.Server, proj.ServerDir, httpPort, hmrPort)
	if err != nil {
		return err
	}

	hub := tui.ShouldRunHub(jsonEnabled(cmd, false), servePlain)

	manager := bridge.NewManager(server, bridge.Options{
		DiscoveryPath: proj.DiscoveryPath,
		ReadyTimeout:  cfg.Server.ReadyTimeout(),
		GraceWindow:   cfg.Server.GraceWindow(),
		SkipReadyWait: serveNoWaitReady,
	})
	debugEnabled, _ := cmd.Flags().GetBool("debug")
	manager.SetDebugMode(debugEnabled)
	defer manager.Stop()

	// The listener comes up before the dev server so a busy listen
	// address fails fast, before anything is spawned.
	ln, err := net.Listen("tcp", cfg.Proxy.ListenAddr())
	if err != nil {
		return fmt.Errorf("cannot listen on %s (already serving? check 'devrelay status'): %w", cfg.Proxy.ListenAddr(), err)
	}
	bridgeURL := listenURL(ln.Addr().String())

	handler, sessions, err := buildServeHandler(provider.Name(), proj, manager)
	if err != nil {
		ln.Close()
		return err
	}

	httpServer := &http.Server{Handler: handler}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if hub {
		return runServeHub(ctx, cancel, manager, sessions, proj, bridgeURL)
	}
	return runServePlain(ctx, manager, proj, provider.Name(), bridgeURL, openBrowser, serveErr, isUserCanceled)
}

// negotiateServePorts reserves the dev server port(s) up front so the
// spawn recipe can pin them.
func negotiateServePorts(separateHMR bool, preferredMain, preferredHMR int) (int, int, error) {
	if separateHMR {
		return ports.ReservePair(preferredMain, preferredHMR)
	}
	httpPort, err := ports.Reserve(preferredMain)
	return httpPort, 0, err
}

// buildServeHandler assembles the classifier and both forwarders into
// the browser-facing handler.
func buildServeHandler(family string, proj *projectContext, manager *bridge.Manager) (http.Handler, *proxy.Registry, error) {
	cfg := proj.Config
	discoveryPath := proj.DiscoveryPath

	rules := proxy.DefaultRules(family, providers.SourceDirs(proj.ServerDir))
	rules = append(rules, proxy.PrefixRules(cfg.Proxy.Prefixes)...)
	rules = append(rules, proxy.ExactRules(cfg.Proxy.Exact)...)
	classifier := proxy.NewClassifier(rules...)

	sessions := proxy.NewRegistry()
	opts := proxy.Options{
		ConnectTimeout:  cfg.Proxy.ConnectTimeout(),
		ReadTimeout:     cfg.Proxy.ReadTimeout(),
		HMRSubprotocols: cfg.Proxy.Subprotocols(),
		Sessions:        sessions,
		StatusHint:      manager.StatusHint,
	}

	resolveDevServer := func() (*discovery.Target, error) {
		rec, err := discovery.Read(discoveryPath)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
		target := rec.Target()
		return &target, nil
	}
	httpFwd := proxy.NewForwarder(resolveDevServer, opts)
	wsFwd := proxy.NewWSForwarder(resolveDevServer, opts)

	// Without a backend the dev server owns the whole origin, including
	// SPA fallback routes the classifier knows nothing about.
	var backendHTTP *proxy.Forwarder
	var backendWS *proxy.WSForwarder
	if serveBackend != "" {
		backendURL := strings.TrimRight(serveBackend, "/")
		if !strings.Contains(backendURL, "://") {
			backendURL = "http://" + backendURL
		}
		parsed, err := url.Parse(backendURL)
		if err != nil || parsed.Host == "" {
			return nil, nil, fmt.Errorf("invalid --backend address %q", serveBackend)
		}
		resolveBackend := func() (*discovery.Target, error) {
			return &discovery.Target{HTTPBaseURL: backendURL, HMRBaseURL: backendURL}, nil
		}
		backendHTTP = proxy.NewForwarder(resolveBackend, opts)
		backendWS = proxy.NewWSForwarder(resolveBackend, opts)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if backendHTTP != nil && !classifier.Matches(r.URL.EscapedPath()) {
			if websocket.IsWebSocketUpgrade(r) {
				backendWS.ServeHTTP(w, r)
				return
			}
			backendHTTP.ServeHTTP(w, r)
			return
		}
		if websocket.IsWebSocketUpgrade(r) {
			wsFwd.ServeHTTP(w, r)
			return
		}
		httpFwd.ServeHTTP(w, r)
	})

	return handler, sessions, nil
}

// hubSupervisor adapts *bridge.Manager to tui.Supervisor, whose Restart
// reports only the error.
type hubSupervisor struct{ *bridge.Manager }

func (s hubSupervisor) Restart(ctx context.Context) error {
	_, err := s.Manager.Restart(ctx)
	return err
}

// runServeHub drives the interactive hub front end. The dev server
// starts in the background so the hub renders the startup live.
func runServeHub(ctx context.Context, cancel context.CancelFunc, manager *bridge.Manager, sessions *proxy.Registry, proj *projectContext, bridgeURL string) error {
	startErr := make(chan error, 1)
	go func() {
		_, err := manager.Start(ctx)
		startErr <- err
	}()

	err := tui.RunHub(tui.Options{
		Version:      version,
		ProjectName:  proj.projectName(),
		OpenURL:      bridgeURL,
		Supervisor:   hubSupervisor{manager},
		SessionCount: sessions.Count,
		Subscribe: func(sink func(line string, stderr bool)) {
			manager.SetLogCallback(func(msg string) {
				sink(msg, true)
			})
			manager.SetOutputCallback(func(out bridge.DevServerOutput) {
				line := strings.TrimSpace(out.Line)
				if line == "" {
					return
				}
				sink(line, out.Stream == bridge.DevServerOutputStderr)
			})
		},
	})

	// Quitting the hub ends the session; the deferred cleanup in
	// runServe stops the listener and the dev server. A cancellation
	// from that quit is not an error worth reporting.
	cancel()
	if startupErr := <-startErr; startupErr != nil && !isContextCanceledError(startupErr) && err == nil {
		return startupErr
	}
	return err
}

// runServePlain drives the plain log front end, used for non-TTY
// output, --plain, and --json.
func runServePlain(ctx context.Context, manager *bridge.Manager, proj *projectContext, family, bridgeURL string, openBrowser bool, serveErr chan error, isUserCanceled func(error) bool) error {
	manager.SetLogCallback(func(msg string) {
		ui.PrintDim("  %s", msg)
	})
	manager.SetOutputCallback(func(out bridge.DevServerOutput) {
		line := strings.TrimSpace(out.Line)
		if line == "" {
			return
		}
		if out.Stream == bridge.DevServerOutputStderr {
			ui.PrintWarning("[%s][stderr] %s", family, line)
			return
		}
		ui.PrintDim("  [%s] %s", family, line)
	})

	ui.PrintInfo("Starting %s dev server...", manager.Name())
	handle, err := manager.Start(ctx)
	if err != nil {
		if isUserCanceled(err) {
			return nil
		}
		return fmt.Errorf("failed to start dev server: %w", err)
	}

	target := manager.Target()
	ui.Println()
	ui.PrintBridgeSummary(string(handle.State()), bridgeURL, target.HTTPBaseURL, humanizeDuration(handle.Uptime()))
	ui.PrintDim("  Press Ctrl+C to stop")
	ui.Println()

	// The record directory exists once Start has published, so the
	// watcher can log external record changes from here on.
	if err := discovery.Watch(ctx, proj.DiscoveryPath, func(rec *discovery.Record) {
		if rec == nil {
			ui.PrintDim("  bridge target cleared")
			return
		}
		ui.PrintDim("  bridge target %s (pid %d)", rec.HTTPBaseURL, rec.PID)
	}); err != nil {
		log.Debug("Discovery watch unavailable", "error", err)
	}

	if openBrowser {
		if err := ui.OpenBrowser(bridgeURL); err != nil {
			ui.PrintWarning("Could not open browser: %v", err)
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("bridge listener failed: %w", err)
		}
		return nil
	}
}
