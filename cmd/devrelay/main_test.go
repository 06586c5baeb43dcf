// Package main provides sanity tests for the devrelay CLI command initialization.
package main

import (
	"testing"
)

// TestRootCommandInitialization verifies that the root command exists and has all expected subcommands.
//
// This test ensures that all CLI commands are properly registered during initialization,
// catching any issues with command registration early in the development cycle.
func TestRootCommandInitialization(t *testing.T) {
	// Verify root command exists
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	// List of all expected root subcommands
	expectedCommands := []string{
		"version", "init", "serve", "status", "doctor",
		"open", "stop", "docs", "mcp",
	}

	// Check each expected command is registered
	for _, name := range expectedCommands {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected command %q not found", name)
		}
	}
}

// TestGlobalFlagsExist verifies that all expected global flags are registered on the root command.
//
// Global flags should be available to all subcommands and are critical for
// consistent CLI behavior (debug mode, JSON output, quiet mode).
func TestGlobalFlagsExist(t *testing.T) {
	// List of all expected global flags
	flags := []string{"debug", "json", "quiet"}

	// Check each expected flag is registered
	for _, name := range flags {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected global flag %q not found", name)
		}
	}
}

// TestRootCommandHasUse verifies the root command has the correct Use field.
func TestRootCommandHasUse(t *testing.T) {
	if rootCmd.Use != "devrelay" {
		t.Errorf("expected root command Use to be 'devrelay', got %q", rootCmd.Use)
	}
}

// TestSubcommandsHaveShortDescription verifies all subcommands have a Short description.
//
// Short descriptions are displayed in help output and are important for usability.
func TestSubcommandsHaveShortDescription(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Short == "" {
			t.Errorf("command %q is missing Short description", cmd.Name())
		}
	}
}

// TestMCPHasServeSubcommand verifies the mcp command exposes serve.
func TestMCPHasServeSubcommand(t *testing.T) {
	for _, cmd := range mcpCmd.Commands() {
		if cmd.Name() == "serve" {
			return
		}
	}
	t.Error("mcp command is missing the serve subcommand")
}
