// Package providers contains the dev server implementations for the
// supported bundler families. Each provider knows how to detect its
// bundler in a project directory, spawn it on negotiated ports, and
// tear it down without leaving orphans.
package providers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/config"
	"github.com/devrelay/cli/internal/discovery"
	"github.com/devrelay/cli/internal/util"
)

func init() {
	bridge.RegisterProvider(&CommandProvider{})
}

// CommandProvider runs an arbitrary user-configured command as the dev
// server. It is the explicit fallback for bundlers without a dedicated
// provider and is never auto-detected.
type CommandProvider struct{}

// Name returns the family identifier used in configuration.
func (p *CommandProvider) Name() string {
	return "command"
}

// DisplayName returns the human-readable name.
func (p *CommandProvider) DisplayName() string {
	return "Command"
}

// Detect always reports no match; the command family must be selected
// explicitly via server.family.
func (p *CommandProvider) Detect(dir string) (*bridge.DetectionResult, error) {
	return nil, nil
}

// DefaultConfig returns the baseline configuration for the family.
func (p *CommandProvider) DefaultConfig() *config.ServerConfig {
	return &config.ServerConfig{Family: "command"}
}

// NewDevServer builds a dev server from the configured command line.
// The command is split on whitespace and executed directly, not through
// a shell.
func (p *CommandProvider) NewDevServer(cfg *config.ServerConfig, workDir string, httpPort, hmrPort int) (bridge.DevServer, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("server.command is required for the command family")
	}
	return &CommandDevServer{
		Argv:     strings.Fields(cfg.Command),
		WorkDir:  workDir,
		Env:      cfg.Env,
		HTTPPort: httpPort,
		HMRPort:  hmrPort,
	}, nil
}

// procRun holds the lifetime state of one spawned process. waitErr is
// written exactly once, before done is closed, so readers that block on
// done may read it without a lock.
type procRun struct {
	done    chan struct{}
	waitErr error
}

// CommandDevServer spawns a configured command in its own process group
// and relays its output. It implements bridge.DevServer and is the
// process engine the family-specific servers build on.
type CommandDevServer struct {
	// Argv is the command and its arguments, already split. The child
	// is executed directly; no shell is involved.
	Argv []string

	// WorkDir is the working directory for the child process.
	WorkDir string

	// Env holds extra environment variables layered over the inherited
	// environment and the negotiated port variables.
	Env map[string]string

	// HTTPPort is the negotiated port the dev server must bind.
	HTTPPort int

	// HMRPort is the negotiated HMR port when the bundler serves HMR on
	// a separate listener. Zero or equal to HTTPPort means shared.
	HMRPort int

	// DisplayName is used in errors and logs. Defaults to "Command".
	DisplayName string

	// InstallHint is appended to the error when the command is not on
	// PATH, typically a download link.
	InstallHint string

	mu             sync.Mutex
	cmd            *exec.Cmd
	pid            int
	cancel         context.CancelFunc
	run            *procRun
	outputCallback bridge.DevServerOutputCallback
}

// Start spawns the process on the configured ports. It returns once the
// process is running; readiness is the caller's concern.
//
// Parameters:
//   - ctx: Context whose cancellation terminates the process
//
// Returns:
//   - error: Spawn failures, including a missing command on PATH
func (s *CommandDevServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return fmt.Errorf("%s dev server already started", s.Name())
	}
	if len(s.Argv) == 0 {
		return fmt.Errorf("no dev server command configured")
	}

	// Step 1: Verify the command exists before spawning
	if _, err := exec.LookPath(s.Argv[0]); err != nil {
		if s.InstallHint != "" {
			return fmt.Errorf("%s not found on PATH. %s", s.Argv[0], s.InstallHint)
		}
		return fmt.Errorf("%s not found on PATH", s.Argv[0])
	}

	// Step 2: Build the command in its own process group so the whole
	// tree can be signaled together
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, s.Argv[0], s.Argv[1:]...)
	cmd.Dir = s.WorkDir
	cmd.Env = s.environment()
	setSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to capture stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to capture stderr: %w", err)
	}

	// Step 3: Spawn
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start %s dev server: %w", s.Name(), err)
	}

	run := &procRun{done: make(chan struct{})}
	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.cancel = cancel
	s.run = run

	// Step 4: Relay output and reap the process
	go s.streamOutput(stdout, bridge.DevServerOutputStdout)
	go s.streamOutput(stderr, bridge.DevServerOutputStderr)
	go func() {
		run.waitErr = cmd.Wait()
		close(run.done)
	}()

	return nil
}

// Wait blocks until the process exits and returns its exit error. It is
// safe to call from multiple goroutines and after Stop.
func (s *CommandDevServer) Wait() error {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()

	if run == nil {
		return fmt.Errorf("%s dev server not started", s.Name())
	}
	<-run.done
	return run.waitErr
}

// Stop terminates the process tree: graceful signal first, then a force
// kill after a short wait. The final port sweep catches grandchildren
// that escaped the process group. Safe to call multiple times.
func (s *CommandDevServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	run := s.run

	// Step 1: Ask the process group to exit
	killProcessGroup(s.cmd.Process.Pid)

	// Step 2: Wait briefly, then force kill
	select {
	case <-run.done:
	case <-time.After(2 * time.Second):
		forceKillProcessGroup(s.cmd.Process.Pid)
		select {
		case <-run.done:
		case <-time.After(500 * time.Millisecond):
		}
	}

	// Step 3: Sweep the negotiated ports for stragglers
	killProcessOnPort(s.HTTPPort)
	if s.HMRPort != 0 && s.HMRPort != s.HTTPPort {
		killProcessOnPort(s.HMRPort)
	}

	s.cmd = nil
	return nil
}

// PID returns the process ID of the most recently started process, or
// zero before the first Start.
func (s *CommandDevServer) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

// Target returns the addresses the dev server binds. They are known up
// front because the ports are negotiated before spawning.
func (s *CommandDevServer) Target() discovery.Target {
	target := discovery.Target{
		HTTPBaseURL: fmt.Sprintf("http://127.0.0.1:%d", s.HTTPPort),
	}
	target.HMRBaseURL = target.HTTPBaseURL
	if s.HMRPort != 0 && s.HMRPort != s.HTTPPort {
		target.HMRBaseURL = fmt.Sprintf("http://127.0.0.1:%d", s.HMRPort)
	}
	return target
}

// Name returns the display name of the dev server.
func (s *CommandDevServer) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return "Command"
}

// SetOutputCallback registers a callback for process output lines.
func (s *CommandDevServer) SetOutputCallback(callback bridge.DevServerOutputCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputCallback = callback
}

// environment builds the child environment: the inherited one, then the
// negotiated ports, then configured extras.
func (s *CommandDevServer) environment() []string {
	env := append(os.Environ(), fmt.Sprintf("DEVRELAY_PORT=%d", s.HTTPPort))
	if s.HMRPort != 0 && s.HMRPort != s.HTTPPort {
		env = append(env, fmt.Sprintf("DEVRELAY_HMR_PORT=%d", s.HMRPort))
	}
	for key, value := range s.Env {
		env = append(env, key+"="+value)
	}
	return env
}

// streamOutput relays one process stream line by line with terminal
// escapes stripped. Blank spacer lines are dropped.
func (s *CommandDevServer) streamOutput(r io.Reader, stream bridge.DevServerOutputStream) {
	scanner := bufio.NewScanner(r)
	// Dependency pre-bundling logs can exceed the default buffer
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		line := strings.TrimRight(util.StripANSI(scanner.Text()), " \t")
		if line == "" {
			continue
		}
		s.emitOutput(stream, line)
	}
}

func (s *CommandDevServer) emitOutput(stream bridge.DevServerOutputStream, line string) {
	s.mu.Lock()
	callback := s.outputCallback
	s.mu.Unlock()

	if callback != nil {
		callback(bridge.DevServerOutput{Stream: stream, Line: line})
	}
}
