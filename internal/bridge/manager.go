package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/devrelay/cli/internal/discovery"
	"github.com/devrelay/cli/internal/health"
	"github.com/devrelay/cli/internal/status"
)

// Options configures a Manager.
type Options struct {
	// DiscoveryPath is where the discovery record is published. Required.
	DiscoveryPath string

	// ReadyTimeout bounds the wait for the dev server to answer health
	// probes after spawn. 0 means 60s.
	ReadyTimeout time.Duration

	// GraceWindow is how long Start keeps watching for an early exit when
	// SkipReadyWait is set. 0 means 3s.
	GraceWindow time.Duration

	// SkipReadyWait makes Start return after the grace window instead of
	// blocking until the health probe succeeds. The record is published
	// up front and readiness is confirmed in the background.
	SkipReadyWait bool

	// OutputRingSize overrides the captured-output ring capacity.
	// 0 means DefaultOutputRingSize.
	OutputRingSize int

	// Probe overrides the health probe timings, mainly for tests.
	Probe *health.Probe
}

func (o Options) readyTimeout() time.Duration {
	if o.ReadyTimeout > 0 {
		return o.ReadyTimeout
	}
	return 60 * time.Second
}

func (o Options) graceWindow() time.Duration {
	if o.GraceWindow > 0 {
		return o.GraceWindow
	}
	return 3 * time.Second
}

func (o Options) probe() *health.Probe {
	if o.Probe != nil {
		return o.Probe
	}
	return health.New()
}

// Manager supervises one dev server process end to end.
//
// One Manager exists per serve invocation. It is constructed with the
// DevServer to supervise and injected wherever the state is needed (the
// proxy's status hints, the hub, the MCP tools), so tests can hand it a
// fake server.
type Manager struct {
	// server is the dev server under supervision.
	server DevServer

	// opts holds the supervision parameters.
	opts Options

	// probe confirms readiness over HTTP.
	probe *health.Probe

	// onLog is called with human-readable progress messages for the UI.
	onLog func(message string)

	// onOutput is called for streamed dev server process output.
	onOutput DevServerOutputCallback

	// debugMode enables provider-specific debug startup behavior.
	debugMode bool

	// mu protects handle and lastErr.
	mu sync.Mutex

	// handle is the current (or most recent) supervised process.
	handle *Handle

	// lastErr records the most recent startup failure or crash.
	lastErr error
}

// NewManager creates a manager for the given dev server.
//
// Parameters:
//   - server: The dev server to supervise
//   - opts: Supervision parameters; DiscoveryPath is required
//
// Returns:
//   - *Manager: A new manager instance
func NewManager(server DevServer, opts Options) *Manager {
	return &Manager{
		server: server,
		opts:   opts,
		probe:  opts.probe(),
	}
}

// SetLogCallback sets the callback for progress messages.
//
// Parameters:
//   - callback: Function to call with log messages
func (m *Manager) SetLogCallback(callback func(message string)) {
	m.onLog = callback
}

// SetOutputCallback sets a callback for dev server process output lines.
// Output always lands in the handle's ring; this additionally streams it.
//
// Parameters:
//   - callback: Function to call with stdout/stderr output lines
func (m *Manager) SetOutputCallback(callback DevServerOutputCallback) {
	m.onOutput = callback
}

// SetDebugMode configures provider-specific debug startup behavior.
func (m *Manager) SetDebugMode(enabled bool) {
	m.debugMode = enabled
}

// log sends a message to the log callback if set.
func (m *Manager) log(format string, args ...interface{}) {
	if m.onLog != nil {
		m.onLog(fmt.Sprintf(format, args...))
	}
}

// Start spawns the dev server and brings it to a usable state.
//
// The sequence:
//  1. Attach output capture so no early lines are lost
//  2. Spawn the process and start the exit watcher
//  3. Wait for the health probe to confirm readiness (or, with
//     SkipReadyWait, only watch the grace window for an early death)
//  4. Publish the discovery record so the proxy can find the server
//
// An exit before readiness returns a *StartupError with the captured
// output tail and exit code, and cleans up the process and any record.
//
// Parameters:
//   - ctx: Cancelling it aborts the wait and terminates the process
//
// Returns:
//   - *Handle: The supervised process handle
//   - error: Any error that occurred
func (m *Manager) Start(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(ctx)
}

func (m *Manager) startLocked(ctx context.Context) (*Handle, error) {
	if m.handle != nil && status.IsActive(string(m.handle.State())) {
		return nil, fmt.Errorf("dev server is already running (pid %d)", m.handle.PID())
	}
	m.lastErr = nil

	target := m.server.Target()

	// Output goes into the ring and, when configured, to the UI callback.
	// Attached before Start so the first lines are not lost.
	ring := NewOutputRing(m.opts.OutputRingSize)
	if emitter, ok := m.server.(DevServerOutputEmitter); ok {
		onOutput := m.onOutput
		emitter.SetOutputCallback(func(output DevServerOutput) {
			ring.Append(output)
			if onOutput != nil {
				onOutput(output)
			}
		})
	}
	if debuggable, ok := m.server.(DevServerDebugConfigurable); ok {
		debuggable.SetDebugMode(m.debugMode)
	}

	m.log("Starting %s dev server...", m.server.Name())
	if err := m.server.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start dev server: %w", err)
	}

	handle := newHandle(m.server.PID(), ring)
	m.handle = handle
	log.Debug("Dev server process spawned",
		"name", m.server.Name(), "pid", handle.PID(), "target", target.HTTPBaseURL)

	go m.watchExit(handle)

	if m.opts.SkipReadyWait {
		if err := m.awaitGraceWindow(ctx, handle); err != nil {
			m.lastErr = err
			m.cleanupFailedStart(handle)
			return nil, err
		}
		if err := m.publish(handle, target); err != nil {
			m.lastErr = err
			m.cleanupFailedStart(handle)
			return nil, fmt.Errorf("failed to publish discovery record: %w", err)
		}
		go m.confirmReady(handle, target)
		m.log("%s dev server starting at %s (not waiting for ready)", m.server.Name(), target.HTTPBaseURL)
		return handle, nil
	}

	if err := m.awaitReady(ctx, handle, target); err != nil {
		m.lastErr = err
		m.cleanupFailedStart(handle)
		return nil, err
	}
	if err := m.publish(handle, target); err != nil {
		m.lastErr = err
		m.cleanupFailedStart(handle)
		return nil, fmt.Errorf("failed to publish discovery record: %w", err)
	}
	if !handle.markReady() {
		// The process died between the last probe and now.
		err := m.startupError(handle)
		m.lastErr = err
		m.cleanupFailedStart(handle)
		return nil, err
	}

	m.log("%s dev server ready at %s", m.server.Name(), target.HTTPBaseURL)
	return handle, nil
}

// cleanupFailedStart stops a process left over from a failed start and
// removes any discovery record, so nothing lingers after Start returns
// an error. Called with m.mu held.
func (m *Manager) cleanupFailedStart(handle *Handle) {
	if handle.beginStop() {
		if err := m.server.Stop(); err != nil {
			log.Warn("Dev server stop reported an error", "error", err)
		}
		handle.setState(status.StatusStopped)
	} else {
		// Already exited or already stopped; reap anything left anyway.
		_ = m.server.Stop()
	}
	m.clearRecord()
}

// Stop shuts the dev server down and removes the discovery record.
//
// The record is cleared on every path, including force-kill and
// already-exited, so a stale record never points at a dead process.
// Safe to call multiple times.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.handle == nil {
		// Nothing supervised, but an earlier run may have left a record.
		m.clearRecord()
		return
	}

	if m.handle.beginStop() {
		m.log("Stopping %s dev server...", m.server.Name())
		if err := m.server.Stop(); err != nil {
			log.Warn("Dev server stop reported an error", "error", err)
		}
		m.handle.setState(status.StatusStopped)
		m.log("Dev server stopped")
	} else {
		// Already exited or already stopped; reap anything left anyway.
		_ = m.server.Stop()
	}

	m.clearRecord()
}

// Restart stops the current dev server and starts a fresh one.
//
// Parameters:
//   - ctx: Cancelling it aborts the new start
//
// Returns:
//   - *Handle: The new process handle
//   - error: Any error from the restart
func (m *Manager) Restart(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	return m.startLocked(ctx)
}

// Handle returns the current process handle, or nil before the first Start.
func (m *Manager) Handle() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// State returns the current lifecycle state, StatusStopped when nothing
// has been started.
func (m *Manager) State() status.ServerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return status.StatusStopped
	}
	return m.handle.State()
}

// IsRunning reports whether a dev server process is currently alive.
func (m *Manager) IsRunning() bool {
	return status.IsActive(string(m.State()))
}

// Target returns the address(es) the supervised server serves on.
func (m *Manager) Target() discovery.Target {
	return m.server.Target()
}

// Name returns the supervised server's human-readable name.
func (m *Manager) Name() string {
	return m.server.Name()
}

// LastError returns the most recent *StartupError or *CrashError, or nil.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// StatusHint returns a short operator-facing explanation of the current
// state, used to enrich proxy unavailability responses. Empty when the
// server is serving normally.
func (m *Manager) StatusHint() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return ""
	}
	switch m.handle.State() {
	case status.StatusStarting:
		return "The dev server is still starting up"
	case status.StatusCrashed:
		return fmt.Sprintf("The dev server crashed (exit code %d); restart it with 'devrelay serve'", m.handle.ExitCode())
	case status.StatusStopping, status.StatusStopped:
		return "The dev server was stopped"
	}
	return ""
}

// watchExit observes the process exit and resolves what it meant. Runs
// once per started process.
func (m *Manager) watchExit(handle *Handle) {
	err := m.server.Wait()
	exitCode := exitCodeFrom(err)
	prev := handle.recordExit(exitCode)
	tail := handle.Output().Tail(errorTailLines)

	switch prev {
	case status.StatusStarting:
		// Exited before readiness was ever confirmed. A waiting Start
		// notices the Crashed state and reports this itself; record it
		// here too for the SkipReadyWait path.
		m.mu.Lock()
		m.lastErr = &StartupError{ExitCode: exitCode, Output: tail}
		m.mu.Unlock()
		log.Debug("Dev server exited during startup", "pid", handle.PID(), "exit_code", exitCode)
		m.clearRecord()
	case status.StatusReady:
		m.mu.Lock()
		m.lastErr = &CrashError{ExitCode: exitCode, Output: tail}
		m.mu.Unlock()
		log.Warn("Dev server exited unexpectedly", "pid", handle.PID(), "exit_code", exitCode)
		m.clearRecord()
		m.log("Dev server crashed (exit code %d)", exitCode)
	case status.StatusStopping:
		log.Debug("Dev server exited after stop request", "pid", handle.PID(), "exit_code", exitCode)
	}
}

// awaitReady blocks until the server answers a health probe, the process
// dies, the ready timeout elapses, or ctx is cancelled.
func (m *Manager) awaitReady(ctx context.Context, handle *Handle, target discovery.Target) error {
	deadline := time.Now().Add(m.opts.readyTimeout())

	if m.probe.Check(ctx, target.HTTPBaseURL) {
		return nil
	}

	ticker := time.NewTicker(m.probe.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if handle.State() == status.StatusCrashed {
				return m.startupError(handle)
			}
			if m.probe.Check(ctx, target.HTTPBaseURL) {
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("dev server at %s not ready after %s", target.HTTPBaseURL, m.opts.readyTimeout())
			}
		}
	}
}

// awaitGraceWindow watches for an early exit for the configured window,
// without requiring a health response.
func (m *Manager) awaitGraceWindow(ctx context.Context, handle *Handle) error {
	timer := time.NewTimer(m.opts.graceWindow())
	defer timer.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-ticker.C:
			if handle.State() == status.StatusCrashed {
				return m.startupError(handle)
			}
		}
	}
}

// confirmReady upgrades a SkipReadyWait start to Ready once the server
// actually answers.
func (m *Manager) confirmReady(handle *Handle, target discovery.Target) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.readyTimeout())
	defer cancel()

	if err := m.probe.WaitReady(ctx, target.HTTPBaseURL, m.opts.readyTimeout()); err != nil {
		return
	}
	if handle.markReady() {
		m.log("%s dev server ready at %s", m.server.Name(), target.HTTPBaseURL)
	}
}

// publish writes the discovery record for a confirmed server.
func (m *Manager) publish(handle *Handle, target discovery.Target) error {
	hmr := target.HMRBaseURL
	if hmr == target.HTTPBaseURL {
		hmr = ""
	}
	rec := discovery.NewRecord(target.HTTPBaseURL, hmr, handle.PID())
	return discovery.Write(m.opts.DiscoveryPath, rec)
}

func (m *Manager) clearRecord() {
	if err := discovery.Clear(m.opts.DiscoveryPath); err != nil {
		log.Warn("Failed to clear discovery record", "error", err)
	}
}

func (m *Manager) startupError(handle *Handle) *StartupError {
	return &StartupError{
		ExitCode: handle.ExitCode(),
		Output:   handle.Output().Tail(errorTailLines),
	}
}

// exitCoder matches exec.ExitError and test doubles.
type exitCoder interface {
	ExitCode() int
}

// exitCodeFrom extracts the process exit code from a Wait error.
// Returns 0 for a clean exit and -1 when no code is available.
func exitCodeFrom(err error) int {
	if err == nil {
		return 0
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}
