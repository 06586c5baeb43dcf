// Package main provides the entry point for the devrelay CLI.
//
// devrelay is a development-time bridge that supervises a frontend
// bundler's dev server and reverse-proxies HTTP and WebSocket traffic
// to it, so browser, backend, and bundler share a single origin.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	_ "github.com/devrelay/cli/internal/bridge/providers" // Register providers
	"github.com/devrelay/cli/internal/ui"
)

// Version information set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "devrelay",
	Short: "One origin for backend and bundler during development",
	Long:  ui.GetHelpText(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		if debug {
			log.SetLevel(log.DebugLevel)
			log.Debug("Debug logging enabled")
		}

		// Set quiet mode from global flag
		quiet, _ := cmd.Flags().GetBool("quiet")
		ui.SetQuietMode(quiet)
	},
	Run: func(cmd *cobra.Command, args []string) {
		// Bare `devrelay` shows the condensed cheat-sheet, not the full help.
		fmt.Print(ui.GetCondensedHelp())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON (where supported)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(mcpCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		ui.PrintBanner(version)
		ui.PrintInfo("Version: %s", version)
		ui.PrintInfo("Commit: %s", commit)
		ui.PrintInfo("Built: %s", date)
	},
}

// docsCmd opens the documentation in the browser.
var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Open devrelay documentation in your browser",
	Run: func(cmd *cobra.Command, args []string) {
		url := "https://devrelay.dev/docs"
		ui.PrintInfo("Opening documentation...")
		if err := ui.OpenBrowser(url); err != nil {
			ui.PrintWarning("Could not open browser automatically")
			ui.PrintLink("Documentation", url)
		}
	},
}

func main() {
	Execute()
}
