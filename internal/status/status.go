// Package status provides shared status constants and helpers for the dev
// server lifecycle.
//
// This package centralizes all status-related logic so the serve hub, the
// status command, and the MCP tools render process state the same way.
package status

import "strings"

// ServerStatus represents the lifecycle state of a supervised dev server.
type ServerStatus string

const (
	// StatusStarting indicates the process is spawned but not yet confirmed healthy.
	StatusStarting ServerStatus = "starting"

	// StatusReady indicates the dev server answered a health probe and the
	// proxy may forward traffic to it.
	StatusReady ServerStatus = "ready"

	// StatusStopping indicates a deliberate shutdown is in progress.
	StatusStopping ServerStatus = "stopping"

	// StatusStopped indicates a deliberate shutdown has completed.
	StatusStopped ServerStatus = "stopped"

	// StatusCrashed indicates the process exited on its own.
	StatusCrashed ServerStatus = "crashed"
)

// terminalStatuses contains all statuses that indicate the process has ended.
var terminalStatuses = map[string]bool{
	string(StatusStopped): true,
	string(StatusCrashed): true,
	"exited":              true, // Legacy status value from older records
}

// activeStatuses contains all statuses that indicate the process is alive.
var activeStatuses = map[string]bool{
	string(StatusStarting): true,
	string(StatusReady):    true,
	string(StatusStopping): true,
}

// IsTerminal checks if a status string indicates the dev server has ended.
//
// Parameters:
//   - status: The status string to check (case-insensitive)
//
// Returns:
//   - bool: True if the status is terminal (stopped, crashed, exited)
func IsTerminal(status string) bool {
	return terminalStatuses[strings.ToLower(status)]
}

// IsActive checks if a status string indicates the dev server process is alive.
//
// Parameters:
//   - status: The status string to check (case-insensitive)
//
// Returns:
//   - bool: True if the status is active (starting, ready, stopping)
func IsActive(status string) bool {
	return activeStatuses[strings.ToLower(status)]
}

// IsServing reports whether traffic can be forwarded for the given status.
// Only a ready server is considered servable; a starting one may still
// refuse connections.
func IsServing(status string) bool {
	return strings.ToLower(status) == string(StatusReady)
}

// StatusIcon returns the appropriate icon for a status.
//
// Icons:
//   - starting: ⏳ (hourglass)
//   - ready: ✓ (checkmark)
//   - stopping: ▶ (play)
//   - stopped: ⊘ (circle with slash)
//   - crashed: ✗ (x mark)
//   - unknown: ● (bullet)
//
// Parameters:
//   - status: The status string
//
// Returns:
//   - string: The icon character for the status
func StatusIcon(status string) string {
	switch strings.ToLower(status) {
	case string(StatusStarting):
		return "⏳"
	case string(StatusReady):
		return "✓"
	case string(StatusStopping):
		return "▶"
	case string(StatusStopped):
		return "⊘"
	case string(StatusCrashed), "exited":
		return "✗"
	default:
		return "●"
	}
}

// StatusCategory returns the category of a status for styling purposes.
//
// Categories:
//   - "dim": stopped, unknown
//   - "info": starting, stopping
//   - "success": ready
//   - "error": crashed
//
// Parameters:
//   - status: The status string
//
// Returns:
//   - string: The category name for styling
func StatusCategory(status string) string {
	switch strings.ToLower(status) {
	case string(StatusStarting), string(StatusStopping):
		return "info"
	case string(StatusReady):
		return "success"
	case string(StatusCrashed), "exited":
		return "error"
	case string(StatusStopped):
		return "dim"
	default:
		return "dim"
	}
}
