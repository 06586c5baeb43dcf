// Package ui provides the ASCII banner for the devrelay CLI.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Banner is the ASCII art logo for devrelay.
const banner = `
  ██████╗ ███████╗██╗   ██╗██████╗ ███████╗██╗      █████╗ ██╗   ██╗
  ██╔══██╗██╔════╝██║   ██║██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝
  ██║  ██║█████╗  ██║   ██║██████╔╝█████╗  ██║     ███████║ ╚████╔╝
  ██║  ██║██╔══╝  ╚██╗ ██╔╝██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝
  ██████╔╝███████╗ ╚████╔╝ ██║  ██║███████╗███████╗██║  ██║   ██║
  ╚═════╝ ╚══════╝  ╚═══╝  ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝   `

// tagline is the product tagline.
const tagline = "One Origin for Backend and Bundler"

// PrintBanner prints the devrelay banner with version info.
//
// Parameters:
//   - version: The CLI version string to display
func PrintBanner(version string) {
	if quietMode {
		return
	}

	// Style the banner with indigo color
	styledBanner := lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true).
		Render(banner)

	fmt.Println(styledBanner)
	fmt.Println()

	// Tagline
	taglineStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		PaddingLeft(2)
	fmt.Println(taglineStyle.Render(tagline))
	fmt.Println()

	// Version and info
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		PaddingLeft(2)

	fmt.Println(infoStyle.Render(fmt.Sprintf("Version: %s", version)))
	fmt.Println(infoStyle.Render("Docs:    https://devrelay.dev/docs"))
	fmt.Println()
}

// GetCondensedHelp returns a compact cheat-sheet for the 80/20 user journey.
// Shown when the user runs `devrelay` with no arguments. No ASCII banner,
// no Cobra auto-generated command list -- just the essentials.
func GetCondensedHelp() string {
	indigo := lipgloss.NewStyle().Foreground(Indigo).Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	hint := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)

	return fmt.Sprintf(`%s

%s
  %s            Detect your bundler and write project config
  %s           Start the dev server behind the proxy
  %s          Show bridge and dev server status

%s
  %s          Diagnose setup and connectivity problems
  %s            Open the proxied app in your browser
  %s            Stop an orphaned dev server

%s
  %s       Start MCP server for AI integration

%s  https://devrelay.dev/docs
%s  support@devrelay.dev

%s
`,
		indigo.Render("devrelay")+" - "+dim.Render(tagline),
		indigo.Render("Getting Started:"),
		indigo.Render("devrelay init"),
		indigo.Render("devrelay serve"),
		indigo.Render("devrelay status"),
		indigo.Render("Manage:"),
		indigo.Render("devrelay doctor"),
		indigo.Render("devrelay open"),
		indigo.Render("devrelay stop"),
		indigo.Render("AI/Tooling:"),
		indigo.Render("devrelay mcp serve"),
		indigo.Render("Docs: "),
		indigo.Render("Help: "),
		hint.Render(`Use "devrelay --help" for a full list of commands.`),
	)
}

// GetHelpText returns the verbose help text for the CLI, used by `devrelay --help`.
// Contains the full curated command reference without the ASCII banner.
func GetHelpText() string {
	indigo := lipgloss.NewStyle().Foreground(Indigo).Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	return fmt.Sprintf(`%s

%s
  %s                 Detect your bundler and write project config
  %s                Start the dev server behind the proxy
  %s   Proxy on a specific address
  %s               Show bridge and dev server status

%s
  %s               Diagnose setup and connectivity problems
  %s                 Open the proxied app in your browser
  %s                 Stop an orphaned dev server
  %s        Show status as JSON

%s
  %s            Start MCP server for AI agent integration

%s  https://devrelay.dev/docs
%s  support@devrelay.dev`,
		dim.Render(tagline+". Your browser talks to one port; devrelay does the rest."),
		indigo.Render("Quick Start:"),
		indigo.Render("devrelay init"),
		indigo.Render("devrelay serve"),
		indigo.Render("devrelay serve --listen :9000"),
		indigo.Render("devrelay status"),
		indigo.Render("More:"),
		indigo.Render("devrelay doctor"),
		indigo.Render("devrelay open"),
		indigo.Render("devrelay stop"),
		indigo.Render("devrelay status --json"),
		indigo.Render("AI/LLM:"),
		indigo.Render("devrelay mcp serve"),
		indigo.Render("Docs: "),
		indigo.Render("Help: "),
	)
}
