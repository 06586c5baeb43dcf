package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/discovery"
	"github.com/devrelay/cli/internal/health"
	"github.com/devrelay/cli/internal/status"
)

// fakeDevServer is a minimal in-memory dev server for driving a real
// bridge manager through the tools.
type fakeDevServer struct {
	target discovery.Target

	mu       sync.Mutex
	done     chan struct{}
	waitErr  error
	callback bridge.DevServerOutputCallback
}

func (f *fakeDevServer) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitErr = nil
	f.done = make(chan struct{})
	return nil
}

func (f *fakeDevServer) Wait() error {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	<-done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func (f *fakeDevServer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
	default:
		close(f.done)
	}
	return nil
}

func (f *fakeDevServer) PID() int                 { return 4242 }
func (f *fakeDevServer) Target() discovery.Target { return f.target }
func (f *fakeDevServer) Name() string             { return "Fake" }

func (f *fakeDevServer) SetOutputCallback(callback bridge.DevServerOutputCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = callback
}

func (f *fakeDevServer) emit(line string) {
	f.mu.Lock()
	callback := f.callback
	f.mu.Unlock()
	callback(bridge.DevServerOutput{Stream: bridge.DevServerOutputStdout, Line: line})
}

func fastProbe() *health.Probe {
	return health.NewWithTimeout(20*time.Millisecond, 250*time.Millisecond)
}

func testServer(t *testing.T, supervisor Supervisor, discoveryPath string) *Server {
	t.Helper()
	s, err := NewServer("test", Options{
		Supervisor:    supervisor,
		DiscoveryPath: discoveryPath,
		Probe:         fastProbe(),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return s
}

// managerSupervisor adapts *bridge.Manager to Supervisor, whose Restart
// reports only the error.
type managerSupervisor struct{ *bridge.Manager }

func (s managerSupervisor) Restart(ctx context.Context) error {
	_, err := s.Manager.Restart(ctx)
	return err
}

// startedManager runs a real bridge manager against a healthy fake
// upstream and returns it ready.
func startedManager(t *testing.T, discoveryPath string) (*bridge.Manager, *fakeDevServer) {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(upstream.Close)

	server := &fakeDevServer{target: discovery.Target{
		HTTPBaseURL: upstream.URL,
		HMRBaseURL:  upstream.URL,
	}}
	manager := bridge.NewManager(server, bridge.Options{
		DiscoveryPath: discoveryPath,
		ReadyTimeout:  2 * time.Second,
		Probe:         fastProbe(),
	})
	if _, err := manager.Start(context.Background()); err != nil {
		t.Fatalf("manager.Start failed: %v", err)
	}
	t.Cleanup(func() { manager.Stop() })

	return manager, server
}

func TestStatusToolWithoutRecord(t *testing.T) {
	s := testServer(t, nil, filepath.Join(t.TempDir(), "dev-server.json"))

	_, out, err := s.handleStatus(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatalf("handleStatus failed: %v", err)
	}
	if out.Running {
		t.Error("Running = true with no record")
	}
	if out.State != string(status.StatusStopped) {
		t.Errorf("State = %q, want %q", out.State, status.StatusStopped)
	}
	if !strings.Contains(out.Hint, "devrelay serve") {
		t.Errorf("Hint = %q, should point at devrelay serve", out.Hint)
	}
}

func TestStatusToolFromHealthyRecord(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(upstream.Close)

	path := filepath.Join(t.TempDir(), "dev-server.json")
	if err := discovery.Write(path, discovery.NewRecord(upstream.URL, "", 1234)); err != nil {
		t.Fatalf("discovery.Write failed: %v", err)
	}

	s := testServer(t, nil, path)
	_, out, err := s.handleStatus(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatalf("handleStatus failed: %v", err)
	}
	if !out.Running {
		t.Error("Running = false for a healthy recorded server")
	}
	if out.State != string(status.StatusReady) {
		t.Errorf("State = %q, want %q", out.State, status.StatusReady)
	}
	if out.HTTPBaseURL != upstream.URL {
		t.Errorf("HTTPBaseURL = %q, want %q", out.HTTPBaseURL, upstream.URL)
	}
	if out.PID != 1234 {
		t.Errorf("PID = %d, want 1234", out.PID)
	}
	if out.Supervised {
		t.Error("Supervised = true without a supervisor")
	}
}

func TestStatusToolFromStaleRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev-server.json")
	// Nothing listens on port 1
	if err := discovery.Write(path, discovery.NewRecord("http://127.0.0.1:1", "", 1234)); err != nil {
		t.Fatalf("discovery.Write failed: %v", err)
	}

	s := testServer(t, nil, path)
	_, out, err := s.handleStatus(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatalf("handleStatus failed: %v", err)
	}
	if out.Running {
		t.Error("Running = true for an unresponsive server")
	}
	if out.State != "unknown" {
		t.Errorf("State = %q, want unknown", out.State)
	}
	if !strings.Contains(out.Hint, "not answering") {
		t.Errorf("Hint = %q, should explain the stale record", out.Hint)
	}
}

func TestStatusToolWithSupervisor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev-server.json")
	manager, _ := startedManager(t, path)

	s := testServer(t, managerSupervisor{manager}, path)
	_, out, err := s.handleStatus(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatalf("handleStatus failed: %v", err)
	}
	if !out.Supervised {
		t.Error("Supervised = false with an in-process manager")
	}
	if out.State != string(status.StatusReady) {
		t.Errorf("State = %q, want %q", out.State, status.StatusReady)
	}
	if !out.Running {
		t.Error("Running = false for a ready server")
	}
	if out.PID != 4242 {
		t.Errorf("PID = %d, want 4242", out.PID)
	}
	if out.ServerName != "Fake" {
		t.Errorf("ServerName = %q, want Fake", out.ServerName)
	}
	if out.HTTPBaseURL == "" {
		t.Error("HTTPBaseURL empty for a running server")
	}
}

func TestLogsToolRequiresSupervisor(t *testing.T) {
	s := testServer(t, nil, filepath.Join(t.TempDir(), "dev-server.json"))

	_, out, err := s.handleLogs(context.Background(), nil, LogsInput{})
	if err != nil {
		t.Fatalf("handleLogs failed: %v", err)
	}
	if out.Error == "" || !strings.Contains(out.Error, "devrelay serve") {
		t.Errorf("Error = %q, should explain the supervisor requirement", out.Error)
	}
}

func TestLogsToolTailsOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev-server.json")
	manager, server := startedManager(t, path)

	server.emit("VITE v5.0.0 ready")
	server.emit("Local: http://127.0.0.1:5173/")

	s := testServer(t, managerSupervisor{manager}, path)
	_, out, err := s.handleLogs(context.Background(), nil, LogsInput{Lines: 10})
	if err != nil {
		t.Fatalf("handleLogs failed: %v", err)
	}
	if out.Count != 2 {
		t.Fatalf("Count = %d, want 2 (lines: %v)", out.Count, out.Lines)
	}
	if out.Lines[0] != "VITE v5.0.0 ready" {
		t.Errorf("Lines[0] = %q", out.Lines[0])
	}
}

func TestRestartToolRequiresSupervisor(t *testing.T) {
	s := testServer(t, nil, filepath.Join(t.TempDir(), "dev-server.json"))

	_, out, err := s.handleRestart(context.Background(), nil, RestartInput{})
	if err != nil {
		t.Fatalf("handleRestart failed: %v", err)
	}
	if out.Success {
		t.Error("Success = true without a supervisor")
	}
}

func TestRestartToolRestartsServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev-server.json")
	manager, _ := startedManager(t, path)

	s := testServer(t, managerSupervisor{manager}, path)
	_, out, err := s.handleRestart(context.Background(), nil, RestartInput{})
	if err != nil {
		t.Fatalf("handleRestart failed: %v", err)
	}
	if !out.Success {
		t.Fatalf("restart failed: %s", out.Error)
	}
	if out.State != string(status.StatusReady) {
		t.Errorf("State = %q, want %q", out.State, status.StatusReady)
	}
	if out.HTTPBaseURL == "" {
		t.Error("HTTPBaseURL empty after restart")
	}
}

func TestCheckHealthTool(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound) // any response counts as alive
	}))
	t.Cleanup(upstream.Close)

	s := testServer(t, nil, filepath.Join(t.TempDir(), "dev-server.json"))

	_, out, err := s.handleCheckHealth(context.Background(), nil, CheckHealthInput{URL: upstream.URL})
	if err != nil {
		t.Fatalf("handleCheckHealth failed: %v", err)
	}
	if !out.Healthy {
		t.Error("Healthy = false for a responding server")
	}

	_, out, err = s.handleCheckHealth(context.Background(), nil, CheckHealthInput{URL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("handleCheckHealth failed: %v", err)
	}
	if out.Healthy {
		t.Error("Healthy = true for a dead port")
	}

	_, out, err = s.handleCheckHealth(context.Background(), nil, CheckHealthInput{})
	if err != nil {
		t.Fatalf("handleCheckHealth failed: %v", err)
	}
	if out.Healthy || out.Error == "" {
		t.Errorf("expected an explanatory error with no address known, got %+v", out)
	}
}

func TestCheckHealthToolDefaultsToRecord(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(upstream.Close)

	path := filepath.Join(t.TempDir(), "dev-server.json")
	if err := discovery.Write(path, discovery.NewRecord(upstream.URL, "", 1234)); err != nil {
		t.Fatalf("discovery.Write failed: %v", err)
	}

	s := testServer(t, nil, path)
	_, out, err := s.handleCheckHealth(context.Background(), nil, CheckHealthInput{})
	if err != nil {
		t.Fatalf("handleCheckHealth failed: %v", err)
	}
	if !out.Healthy {
		t.Error("Healthy = false for the recorded address")
	}
	if out.URL != upstream.URL {
		t.Errorf("URL = %q, want %q", out.URL, upstream.URL)
	}
}
