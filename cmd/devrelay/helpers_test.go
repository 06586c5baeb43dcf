// Package main provides tests for the shared helper functions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/devrelay/cli/internal/config"
)

// TestListenURL tests the listen address to browser URL conversion.
func TestListenURL(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		expected string
	}{
		{
			name:     "loopback with port",
			addr:     "127.0.0.1:8000",
			expected: "http://127.0.0.1:8000",
		},
		{
			name:     "wildcard IPv4 host",
			addr:     "0.0.0.0:8000",
			expected: "http://127.0.0.1:8000",
		},
		{
			name:     "empty host",
			addr:     ":9000",
			expected: "http://127.0.0.1:9000",
		},
		{
			name:     "wildcard IPv6 host",
			addr:     "[::]:8000",
			expected: "http://127.0.0.1:8000",
		},
		{
			name:     "named host",
			addr:     "localhost:3000",
			expected: "http://localhost:3000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := listenURL(tt.addr)
			if result != tt.expected {
				t.Errorf("listenURL(%q) = %q, want %q", tt.addr, result, tt.expected)
			}
		})
	}
}

// TestHumanizeDuration tests the human-readable duration rendering.
func TestHumanizeDuration(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected string
	}{
		{name: "seconds", d: 45 * time.Second, expected: "just now"},
		{name: "minutes", d: 5 * time.Minute, expected: "5m"},
		{name: "just under an hour", d: 59 * time.Minute, expected: "59m"},
		{name: "hours", d: 3 * time.Hour, expected: "3h"},
		{name: "days", d: 49 * time.Hour, expected: "2d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := humanizeDuration(tt.d)
			if result != tt.expected {
				t.Errorf("humanizeDuration(%v) = %q, want %q", tt.d, result, tt.expected)
			}
		})
	}
}

// TestIsContextCanceledError tests cancellation detection, including
// errors flattened into strings by intermediate layers.
func TestIsContextCanceledError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "context.Canceled", err: context.Canceled, expected: true},
		{name: "wrapped cancellation", err: fmt.Errorf("start failed: %w", context.Canceled), expected: true},
		{name: "stringified cancellation", err: errors.New("upstream said: context canceled"), expected: true},
		{name: "unrelated error", err: errors.New("connection refused"), expected: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isContextCanceledError(tt.err)
			if result != tt.expected {
				t.Errorf("isContextCanceledError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

// TestJSONEnabled tests local and global JSON flag resolution.
func TestJSONEnabled(t *testing.T) {
	newTree := func() (*cobra.Command, *cobra.Command) {
		root := &cobra.Command{Use: "root"}
		root.PersistentFlags().Bool("json", false, "")
		child := &cobra.Command{Use: "child"}
		root.AddCommand(child)
		return root, child
	}

	t.Run("neither flag set", func(t *testing.T) {
		_, child := newTree()
		if jsonEnabled(child, false) {
			t.Error("jsonEnabled = true, want false")
		}
	})

	t.Run("local flag wins", func(t *testing.T) {
		_, child := newTree()
		if !jsonEnabled(child, true) {
			t.Error("jsonEnabled = false, want true")
		}
	})

	t.Run("global flag propagates", func(t *testing.T) {
		root, child := newTree()
		if err := root.PersistentFlags().Set("json", "true"); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if !jsonEnabled(child, false) {
			t.Error("jsonEnabled = false, want true")
		}
	})
}

// TestLoadProjectBarePackageJSON verifies that a project without a
// config file resolves with defaults.
func TestLoadProjectBarePackageJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name": "shop"}`)

	proj, err := loadProject(root)
	if err != nil {
		t.Fatalf("loadProject: %v", err)
	}

	if proj.HasConfig {
		t.Error("HasConfig = true, want false")
	}
	if proj.Root != root {
		t.Errorf("Root = %q, want %q", proj.Root, root)
	}
	if proj.ServerDir != root {
		t.Errorf("ServerDir = %q, want %q", proj.ServerDir, root)
	}
	if got := proj.Config.Proxy.ListenAddr(); got != "127.0.0.1:8000" {
		t.Errorf("ListenAddr = %q, want default", got)
	}
	wantDiscovery := filepath.Join(root, ".devrelay", "dev-server.json")
	if proj.DiscoveryPath != wantDiscovery {
		t.Errorf("DiscoveryPath = %q, want %q", proj.DiscoveryPath, wantDiscovery)
	}
}

// TestLoadProjectWithConfig verifies config loading and server.dir
// resolution.
func TestLoadProjectWithConfig(t *testing.T) {
	root := t.TempDir()
	cfg := &config.ProjectConfig{
		Project: config.Project{Name: "shop"},
		Server:  config.ServerConfig{Family: "vite", Dir: "web"},
	}
	if err := config.WriteProjectConfig(config.ConfigPath(root), cfg); err != nil {
		t.Fatalf("WriteProjectConfig: %v", err)
	}

	proj, err := loadProject(root)
	if err != nil {
		t.Fatalf("loadProject: %v", err)
	}

	if !proj.HasConfig {
		t.Error("HasConfig = false, want true")
	}
	if proj.projectName() != "shop" {
		t.Errorf("projectName = %q, want shop", proj.projectName())
	}
	if want := filepath.Join(root, "web"); proj.ServerDir != want {
		t.Errorf("ServerDir = %q, want %q", proj.ServerDir, want)
	}
}

// TestLoadProjectClimbsToRoot verifies upward resolution from a subdirectory.
func TestLoadProjectClimbsToRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name": "shop"}`)
	sub := filepath.Join(root, "src", "components")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	proj, err := loadProject(sub)
	if err != nil {
		t.Fatalf("loadProject: %v", err)
	}
	if proj.Root != root {
		t.Errorf("Root = %q, want %q", proj.Root, root)
	}
}

// TestLoadProjectMalformedConfig verifies that a broken config file is
// an error rather than silently ignored.
func TestLoadProjectMalformedConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".devrelay", "config.yaml"), "server: [not: a: mapping")

	if _, err := loadProject(root); err == nil {
		t.Fatal("loadProject succeeded on malformed config, want error")
	}
}

// writeFile creates a file with parent directories for test fixtures.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}
