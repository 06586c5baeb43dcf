// Package main provides shared helper functions for CLI commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/devrelay/cli/internal/config"
)

// projectContext bundles everything a command needs to know about the
// project it operates on.
type projectContext struct {
	// Root is the resolved project root directory.
	Root string

	// Config is the loaded project configuration. Defaults when no
	// config file exists yet.
	Config *config.ProjectConfig

	// HasConfig reports whether .devrelay/config.yaml exists.
	HasConfig bool

	// ServerDir is the dev server working directory (Root plus the
	// configured server.dir).
	ServerDir string

	// DiscoveryPath is where the dev server record lives.
	DiscoveryPath string
}

// loadProject resolves the project root from dir (or the working
// directory) and loads its configuration.
//
// A missing config file is not an error: detection-based commands work
// against bare package.json projects. A malformed config file is.
//
// Parameters:
//   - dir: Directory to resolve from, empty for the working directory
//
// Returns:
//   - *projectContext: The resolved project
//   - error: Root resolution or config parse failure
func loadProject(dir string) (*projectContext, error) {
	root, err := config.FindProjectRoot(dir)
	if err != nil {
		return nil, err
	}

	cfg := &config.ProjectConfig{}
	hasConfig := false
	if _, statErr := os.Stat(config.ConfigPath(root)); statErr == nil {
		cfg, err = config.LoadProjectConfig(config.ConfigPath(root))
		if err != nil {
			return nil, err
		}
		hasConfig = true
	}

	serverDir := root
	if cfg.Server.Dir != "" {
		serverDir = filepath.Join(root, cfg.Server.Dir)
	}

	return &projectContext{
		Root:          root,
		Config:        cfg,
		HasConfig:     hasConfig,
		ServerDir:     serverDir,
		DiscoveryPath: config.DiscoveryPath(root, cfg),
	}, nil
}

// projectName returns a display name for the project, preferring the
// configured name over the root directory basename.
func (p *projectContext) projectName() string {
	if p.Config.Project.Name != "" {
		return p.Config.Project.Name
	}
	return filepath.Base(p.Root)
}

// registerProjectFlag adds the shared --dir flag commands use to operate
// on a project other than the working directory.
func registerProjectFlag(flags *pflag.FlagSet, dir *string) {
	flags.StringVarP(dir, "dir", "d", "", "Project directory (default: search upward from cwd)")
}

// jsonEnabled reports whether JSON output was requested, by the
// command's own --json flag or the global one.
func jsonEnabled(cmd *cobra.Command, local bool) bool {
	if local {
		return true
	}
	global, err := cmd.Root().PersistentFlags().GetBool("json")
	return err == nil && global
}

// listenURL turns a listen address into a browser-openable URL.
// Wildcard hosts map to loopback, which is where the listener is
// reachable from the developer's own browser.
func listenURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// isContextCanceledError reports whether err is a context cancellation,
// including ones flattened into strings by intermediate layers.
func isContextCanceledError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "context canceled")
}

// humanizeDuration renders a duration the way a person would say it.
func humanizeDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
