// Package ui provides result rendering components.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// PrintCheckResult prints a formatted diagnostic check result.
//
// Parameters:
//   - name: Check name
//   - state: "pass", "warn", or "fail"
//   - detail: Supporting detail (optional)
func PrintCheckResult(name, state, detail string) {
	var stateStyle lipgloss.Style
	var stateIcon string

	switch state {
	case "pass":
		stateStyle = StatusReadyStyle
		stateIcon = "✓"
	case "warn":
		stateStyle = WarningStyle
		stateIcon = "⚠"
	case "fail":
		stateStyle = StatusCrashedStyle
		stateIcon = "✗"
	default:
		stateStyle = DimStyle
		stateIcon = "?"
	}

	fmt.Println(stateStyle.Render(fmt.Sprintf("%s %s", stateIcon, name)))

	if detail != "" {
		fmt.Printf("  %s\n", DimStyle.Render(detail))
	}
}

// PrintBridgeSummary prints a boxed summary of a running bridge.
//
// Parameters:
//   - state: Dev server status string ("ready", "crashed", ...)
//   - listenURL: The proxy's public URL
//   - upstreamURL: The dev server's URL
//   - uptime: Uptime string (optional)
func PrintBridgeSummary(state, listenURL, upstreamURL, uptime string) {
	var boxStyle lipgloss.Style
	var icon string

	switch state {
	case "ready":
		boxStyle = ResultBoxReadyStyle
		icon = "✓"
	case "crashed":
		boxStyle = ResultBoxFailedStyle
		icon = "✗"
	default:
		boxStyle = BoxStyle
		icon = "•"
	}

	titleLine := fmt.Sprintf("%s Dev server %s", icon, state)
	if uptime != "" {
		titleLine += fmt.Sprintf("  %s", DimStyle.Render(uptime))
	}

	content := titleLine + "\n"
	content += fmt.Sprintf("App:      %s\n", LinkStyle.Render(listenURL))
	content += fmt.Sprintf("Upstream: %s", DimStyle.Render(upstreamURL))

	fmt.Println(boxStyle.Render(content))
}
