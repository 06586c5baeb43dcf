// Package main provides the open command for the devrelay CLI.
package main

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/devrelay/cli/internal/discovery"
	"github.com/devrelay/cli/internal/ui"
)

var (
	openDir      string
	openUpstream bool
)

// openCmd opens the proxied app in the browser.
var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the proxied app in your browser",
	Long: `Open the bridge origin in your default browser.

The bridge origin is the stable address 'devrelay serve' listens on.
With --upstream the dev server's own address from the discovery record
is opened instead, bypassing the proxy.

The URL is also copied to the clipboard.`,
	RunE: runOpen,
}

func init() {
	registerProjectFlag(openCmd.Flags(), &openDir)
	openCmd.Flags().BoolVar(&openUpstream, "upstream", false, "Open the dev server directly instead of the bridge origin")
}

// runOpen executes the open command.
func runOpen(cmd *cobra.Command, args []string) error {
	proj, err := loadProject(openDir)
	if err != nil {
		return err
	}

	url := listenURL(proj.Config.Proxy.ListenAddr())
	if openUpstream {
		rec, err := discovery.Read(proj.DiscoveryPath)
		if err != nil {
			return fmt.Errorf("failed to read discovery record: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("no dev server running (start one with 'devrelay serve')")
		}
		url = rec.HTTPBaseURL
	}

	ui.PrintInfo("Opening %s", url)
	if err := ui.OpenBrowser(url); err != nil {
		ui.PrintWarning("Could not open browser automatically")
		ui.PrintLink("App", url)
	}

	// Clipboard failures are expected on headless machines; the URL was
	// already shown either way.
	if clipboard.WriteAll(url) == nil {
		ui.PrintDim("  URL copied to clipboard")
	}
	return nil
}
