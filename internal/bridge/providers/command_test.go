package providers

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/config"
)

// outputCollector records relayed output lines for assertions.
type outputCollector struct {
	mu    sync.Mutex
	lines []bridge.DevServerOutput
}

func (c *outputCollector) callback(out bridge.DevServerOutput) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, out)
}

func (c *outputCollector) snapshot() []bridge.DevServerOutput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bridge.DevServerOutput(nil), c.lines...)
}

// waitForLine polls until a line with the given text arrives. Output is
// relayed on separate goroutines, so it can trail Wait slightly.
func (c *outputCollector) waitForLine(t *testing.T, line string, timeout time.Duration) bridge.DevServerOutput {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, out := range c.snapshot() {
			if out.Line == line {
				return out
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("line %q never arrived; got %v", line, c.snapshot())
	return bridge.DevServerOutput{}
}

func shServer(t *testing.T, script string) *CommandDevServer {
	t.Helper()
	return &CommandDevServer{
		Argv:    []string{"/bin/sh", "-c", script},
		WorkDir: t.TempDir(),
	}
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func containsEnvEntry(env []string, entry string) bool {
	return containsString(env, entry)
}

func TestCommandProviderRequiresCommand(t *testing.T) {
	provider := &CommandProvider{}

	_, err := provider.NewDevServer(&config.ServerConfig{Family: "command"}, t.TempDir(), 5199, 0)
	if err == nil {
		t.Fatal("NewDevServer with empty command should fail")
	}
}

func TestCommandProviderSplitsCommand(t *testing.T) {
	provider := &CommandProvider{}

	srv, err := provider.NewDevServer(&config.ServerConfig{Command: "npm run dev"}, t.TempDir(), 5199, 0)
	if err != nil {
		t.Fatalf("NewDevServer failed: %v", err)
	}

	cmdServer, ok := srv.(*CommandDevServer)
	if !ok {
		t.Fatalf("NewDevServer returned %T, want *CommandDevServer", srv)
	}
	want := []string{"npm", "run", "dev"}
	if len(cmdServer.Argv) != len(want) {
		t.Fatalf("Argv = %v, want %v", cmdServer.Argv, want)
	}
	for i := range want {
		if cmdServer.Argv[i] != want[i] {
			t.Fatalf("Argv = %v, want %v", cmdServer.Argv, want)
		}
	}
}

func TestCommandProviderNeverDetects(t *testing.T) {
	provider := &CommandProvider{}

	result, err := provider.Detect(t.TempDir())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if result != nil {
		t.Fatalf("Detect = %+v, want nil", result)
	}
}

func TestCommandEnvironmentInjectsPorts(t *testing.T) {
	srv := &CommandDevServer{
		HTTPPort: 5199,
		HMRPort:  24678,
		Env:      map[string]string{"FOO": "bar"},
	}

	env := srv.environment()
	for _, entry := range []string{"DEVRELAY_PORT=5199", "DEVRELAY_HMR_PORT=24678", "FOO=bar"} {
		if !containsEnvEntry(env, entry) {
			t.Errorf("environment missing %q", entry)
		}
	}
}

func TestCommandEnvironmentSharedHMROmitsHMRPort(t *testing.T) {
	srv := &CommandDevServer{HTTPPort: 5199}

	env := srv.environment()
	if !containsEnvEntry(env, "DEVRELAY_PORT=5199") {
		t.Error("environment missing DEVRELAY_PORT")
	}
	for _, entry := range env {
		if entry == "DEVRELAY_HMR_PORT=0" || entry == "DEVRELAY_HMR_PORT=5199" {
			t.Errorf("environment should not contain %q for shared HMR", entry)
		}
	}
}

func TestCommandTarget(t *testing.T) {
	shared := &CommandDevServer{HTTPPort: 5199}
	if got := shared.Target(); got.HMRBaseURL != got.HTTPBaseURL {
		t.Errorf("shared HMR target = %q, want %q", got.HMRBaseURL, got.HTTPBaseURL)
	}

	separate := &CommandDevServer{HTTPPort: 5199, HMRPort: 24678}
	got := separate.Target()
	if got.HTTPBaseURL != "http://127.0.0.1:5199" {
		t.Errorf("HTTPBaseURL = %q", got.HTTPBaseURL)
	}
	if got.HMRBaseURL != "http://127.0.0.1:24678" {
		t.Errorf("HMRBaseURL = %q", got.HMRBaseURL)
	}
}

func TestCommandNameDefaults(t *testing.T) {
	if got := (&CommandDevServer{}).Name(); got != "Command" {
		t.Errorf("Name() = %q, want %q", got, "Command")
	}
	if got := (&CommandDevServer{DisplayName: "Vite"}).Name(); got != "Vite" {
		t.Errorf("Name() = %q, want %q", got, "Vite")
	}
}

func TestCommandStartStreamsOutput(t *testing.T) {
	srv := shServer(t, "echo hello; echo 'padded   '; echo oops >&2")
	collector := &outputCollector{}
	srv.SetOutputCallback(collector.callback)

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	if out := collector.waitForLine(t, "hello", 2*time.Second); out.Stream != bridge.DevServerOutputStdout {
		t.Errorf("hello arrived on %q, want stdout", out.Stream)
	}
	collector.waitForLine(t, "padded", 2*time.Second)
	if out := collector.waitForLine(t, "oops", 2*time.Second); out.Stream != bridge.DevServerOutputStderr {
		t.Errorf("oops arrived on %q, want stderr", out.Stream)
	}
}

func TestCommandOutputStripsANSI(t *testing.T) {
	srv := shServer(t, "printf '\\033[32mready in 120 ms\\033[0m\\n'")
	collector := &outputCollector{}
	srv.SetOutputCallback(collector.callback)

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer srv.Stop()

	collector.waitForLine(t, "ready in 120 ms", 2*time.Second)
}

func TestCommandEnvironmentReachesProcess(t *testing.T) {
	srv := shServer(t, "echo \"$DEVRELAY_PORT\"")
	srv.HTTPPort = 5199
	collector := &outputCollector{}
	srv.SetOutputCallback(collector.callback)

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer srv.Stop()

	collector.waitForLine(t, "5199", 2*time.Second)
}

func TestCommandWaitReturnsExitError(t *testing.T) {
	srv := shServer(t, "exit 3")

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err := srv.Wait()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Wait() = %v, want *exec.ExitError", err)
	}
	if exitErr.ExitCode() != 3 {
		t.Errorf("ExitCode() = %d, want 3", exitErr.ExitCode())
	}
}

func TestCommandWaitSupportsMultipleCallers(t *testing.T) {
	srv := shServer(t, "exit 0")

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- srv.Wait() }()
	}
	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if err != nil {
				t.Errorf("Wait() = %v, want nil", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Wait caller never returned")
		}
	}
}

func TestCommandStartWhileRunningFails(t *testing.T) {
	srv := shServer(t, "sleep 5")
	t.Cleanup(func() { srv.Stop() })

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail while running")
	}
}

func TestCommandStopTerminatesProcess(t *testing.T) {
	srv := shServer(t, "sleep 30")

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	pid := srv.PID()
	if pid == 0 {
		t.Fatal("PID() = 0 after Start")
	}

	done := make(chan error, 1)
	go func() { done <- srv.Wait() }()

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process still running after Stop")
	}

	if got := srv.PID(); got != pid {
		t.Errorf("PID() = %d after Stop, want %d", got, pid)
	}
}

func TestCommandStopIsIdempotent(t *testing.T) {
	srv := shServer(t, "sleep 30")

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestCommandStopBeforeStartIsSafe(t *testing.T) {
	srv := &CommandDevServer{Argv: []string{"/bin/sh", "-c", "true"}}
	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop before Start failed: %v", err)
	}
}

func TestCommandRestartAfterStop(t *testing.T) {
	srv := shServer(t, "exit 0")

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Fatalf("second Wait failed: %v", err)
	}
}

func TestCommandMissingBinary(t *testing.T) {
	srv := &CommandDevServer{
		Argv:        []string{"definitely-not-a-real-command-xyz"},
		InstallHint: "Install Node.js: https://nodejs.org/",
	}

	err := srv.Start(context.Background())
	if err == nil {
		t.Fatal("Start with missing binary should fail")
	}
	if got := err.Error(); !strings.Contains(got, "Install Node.js") {
		t.Errorf("error %q should carry the install hint", got)
	}
}
