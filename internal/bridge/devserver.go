// Package bridge supervises a frontend dev server process and publishes
// its address for the proxy.
//
// The Manager owns the lifecycle end to end: it spawns the bundler through
// a DevServer implementation, captures its output into a bounded ring,
// waits for a health probe to confirm readiness, publishes the discovery
// record, and watches for unexpected exits. A crash after readiness is
// recorded and surfaced; the Manager never respawns on its own, because a
// silent respawn would mask configuration errors as flakiness.
//
// This package supports multiple bundler families through the DevServer
// interface; the providers subpackage contains the implementations.
package bridge

import (
	"context"

	"github.com/devrelay/cli/internal/discovery"
)

// DevServer is a launchable frontend dev server process.
//
// Implementations own the OS process: spawning it, relaying its output,
// and killing its process tree on Stop. Readiness is deliberately not
// part of this interface; the Manager decides readiness with a health
// probe against Target, so a provider never has to parse bundler output.
//
// Current implementations:
//   - providers.ViteDevServer: npx vite with injected ports
//   - providers.CommandDevServer: an arbitrary user-configured command
type DevServer interface {
	// Start spawns the process and returns once it is running.
	// It does not wait for the server to accept connections.
	//
	// Parameters:
	//   - ctx: Cancelling it terminates the process
	//
	// Returns:
	//   - error: nil if the process was spawned, otherwise the error
	Start(ctx context.Context) error

	// Wait blocks until the process exits and returns its exit error,
	// nil for a zero exit. Safe to call from multiple goroutines and
	// after the process has already exited.
	Wait() error

	// Stop terminates the process tree, gracefully first and forcefully
	// after a bounded wait. Calling Stop more than once is not an error.
	Stop() error

	// PID returns the process ID, or 0 before Start.
	PID() int

	// Target returns the address(es) the server will serve on once ready.
	// Known up front because the ports are negotiated before launch.
	Target() discovery.Target

	// Name returns the human-readable bundler name for logs and the UI.
	Name() string
}

// DevServerOutputStream identifies which stream an output line came from.
type DevServerOutputStream string

const (
	// DevServerOutputStdout marks lines read from the process stdout.
	DevServerOutputStdout DevServerOutputStream = "stdout"

	// DevServerOutputStderr marks lines read from the process stderr.
	DevServerOutputStderr DevServerOutputStream = "stderr"
)

// DevServerOutput is one captured line of dev server process output.
type DevServerOutput struct {
	// Stream is the source stream.
	Stream DevServerOutputStream

	// Line is the output line with terminal escapes already stripped.
	Line string
}

// DevServerOutputCallback receives streamed dev server output lines.
type DevServerOutputCallback func(output DevServerOutput)

// DevServerOutputEmitter is implemented by dev servers that can stream
// process output. The Manager attaches its ring buffer through this.
type DevServerOutputEmitter interface {
	SetOutputCallback(callback DevServerOutputCallback)
}

// DevServerDebugConfigurable is implemented by dev servers that support a
// more verbose debug startup mode.
type DevServerDebugConfigurable interface {
	SetDebugMode(enabled bool)
}
