package bridge

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devrelay/cli/internal/status"
)

const (
	// DefaultOutputRingSize is how many recent output lines a handle keeps.
	DefaultOutputRingSize = 200

	// errorTailLines is how many trailing lines startup and crash errors carry.
	errorTailLines = 20
)

// Handle represents one supervised dev server process.
//
// A Manager holds at most one live handle. The handle tracks the process
// identity, its lifecycle state, and a bounded ring of recent output for
// diagnostics. State transitions happen on the Manager's control path and
// in its exit watcher; everything here is safe for concurrent use.
type Handle struct {
	pid       int
	startedAt time.Time
	output    *OutputRing

	mu       sync.Mutex
	state    status.ServerStatus
	exitCode int
}

func newHandle(pid int, output *OutputRing) *Handle {
	return &Handle{
		pid:       pid,
		startedAt: time.Now(),
		output:    output,
		state:     status.StatusStarting,
		exitCode:  -1,
	}
}

// PID returns the dev server process ID.
func (h *Handle) PID() int {
	return h.pid
}

// StartedAt returns when the process was spawned.
func (h *Handle) StartedAt() time.Time {
	return h.startedAt
}

// Uptime returns how long the process has been running.
func (h *Handle) Uptime() time.Duration {
	return time.Since(h.startedAt)
}

// Output returns the ring of recent process output lines.
func (h *Handle) Output() *OutputRing {
	return h.output
}

// State returns the current lifecycle state.
func (h *Handle) State() status.ServerStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// ExitCode returns the recorded exit code, or -1 while the process runs.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// setState moves the handle to a new state.
func (h *Handle) setState(s status.ServerStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = s
}

// markReady transitions Starting to Ready. Returns false when the handle
// left Starting in the meantime, e.g. because the process died.
func (h *Handle) markReady() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != status.StatusStarting {
		return false
	}
	h.state = status.StatusReady
	return true
}

// beginStop transitions a live handle to Stopping. Returns false when the
// process already ended, so a deliberate stop never masks a crash.
func (h *Handle) beginStop() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case status.StatusStarting, status.StatusReady:
		h.state = status.StatusStopping
		return true
	}
	return false
}

// recordExit stores the exit code and resolves the post-exit state.
// An exit during Starting or Ready was not asked for and becomes Crashed;
// an exit during Stopping is the shutdown completing. The prior state is
// returned so the caller can tell the two apart.
func (h *Handle) recordExit(exitCode int) status.ServerStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.state
	h.exitCode = exitCode

	switch prev {
	case status.StatusStarting, status.StatusReady:
		h.state = status.StatusCrashed
	case status.StatusStopping:
		h.state = status.StatusStopped
	}

	return prev
}

// OutputRing is a bounded, concurrency-safe ring buffer of dev server
// output lines. When full, new lines evict the oldest.
type OutputRing struct {
	mu    sync.Mutex
	lines []DevServerOutput
	next  int
	full  bool
}

// NewOutputRing creates a ring holding up to size lines.
//
// Parameters:
//   - size: Capacity in lines; values below 1 use DefaultOutputRingSize
//
// Returns:
//   - *OutputRing: An empty ring
func NewOutputRing(size int) *OutputRing {
	if size < 1 {
		size = DefaultOutputRingSize
	}
	return &OutputRing{lines: make([]DevServerOutput, size)}
}

// Append adds a line, evicting the oldest when the ring is full.
func (r *OutputRing) Append(output DevServerOutput) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines[r.next] = output
	r.next++
	if r.next == len(r.lines) {
		r.next = 0
		r.full = true
	}
}

// Lines returns all captured lines, oldest first.
func (r *OutputRing) Lines() []DevServerOutput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Tail returns up to n of the most recent lines, oldest first.
func (r *OutputRing) Tail(n int) []DevServerOutput {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.snapshot()
	if n < len(all) {
		return all[len(all)-n:]
	}
	return all
}

// Len returns how many lines the ring currently holds.
func (r *OutputRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.lines)
	}
	return r.next
}

// snapshot copies the ring contents oldest first. Callers hold r.mu.
func (r *OutputRing) snapshot() []DevServerOutput {
	if !r.full {
		out := make([]DevServerOutput, r.next)
		copy(out, r.lines[:r.next])
		return out
	}

	out := make([]DevServerOutput, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	out = append(out, r.lines[:r.next]...)
	return out
}

// StartupError reports a dev server that exited before becoming ready.
// It carries the captured output tail and exit code so the operator sees
// what the bundler printed instead of a bare "exited".
type StartupError struct {
	// ExitCode is the process exit code, -1 if it could not be determined.
	ExitCode int

	// Output is the tail of captured process output.
	Output []DevServerOutput
}

// Error formats the failure with the captured output tail.
func (e *StartupError) Error() string {
	msg := fmt.Sprintf("dev server exited during startup (exit code %d)", e.ExitCode)
	if tail := formatOutputTail(e.Output); tail != "" {
		msg += "\n\nLast output:\n" + tail
	}
	return msg
}

// CrashError reports a dev server that exited unexpectedly after it had
// become ready. Surfaced on the next status or proxy interaction; the
// Manager does not retry automatically.
type CrashError struct {
	// ExitCode is the process exit code, -1 if it could not be determined.
	ExitCode int

	// Output is the tail of captured process output.
	Output []DevServerOutput
}

// Error formats the crash with the captured output tail.
func (e *CrashError) Error() string {
	msg := fmt.Sprintf("dev server exited unexpectedly (exit code %d)", e.ExitCode)
	if tail := formatOutputTail(e.Output); tail != "" {
		msg += "\n\nLast output:\n" + tail
	}
	return msg
}

func formatOutputTail(lines []DevServerOutput) string {
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("  ")
		b.WriteString(line.Line)
	}
	return b.String()
}
