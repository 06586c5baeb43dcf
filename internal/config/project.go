// Package config provides project configuration management.
//
// This package handles reading and writing .devrelay/config.yaml files,
// which describe how to launch a project's frontend dev server and how
// the proxy in front of it behaves.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigDirName is the per-project configuration directory.
	ConfigDirName = ".devrelay"

	// ConfigFileName is the config file inside ConfigDirName.
	ConfigFileName = "config.yaml"

	// DiscoveryFileName is the dev server discovery record inside ConfigDirName.
	DiscoveryFileName = "dev-server.json"
)

// ProjectConfig represents the .devrelay/config.yaml file.
type ProjectConfig struct {
	// Project contains project identification.
	Project Project `yaml:"project"`

	// Server contains dev server launch configuration.
	Server ServerConfig `yaml:"server"`

	// Proxy contains reverse proxy configuration.
	Proxy ProxyConfig `yaml:"proxy,omitempty"`

	// Discovery contains discovery record configuration.
	Discovery DiscoveryConfig `yaml:"discovery,omitempty"`

	// Defaults contains default settings.
	Defaults Defaults `yaml:"defaults,omitempty"`
}

// Project contains project identification.
type Project struct {
	// Name is the project name.
	Name string `yaml:"name"`
}

// ServerConfig describes how to launch and supervise the frontend dev server.
//
// The family selects a launch provider. "vite" knows how to start a Vite
// server with injected ports; "command" runs an arbitrary command and relies
// on health probing alone.
type ServerConfig struct {
	// Family is the dev server family ("vite" or "command").
	// If empty, the family is auto-detected from the project.
	Family string `yaml:"family,omitempty"`

	// Command overrides the launch command. Required for the "command" family.
	Command string `yaml:"command,omitempty"`

	// Dir is the working directory for the dev server, relative to the
	// project root. Empty means the project root itself.
	Dir string `yaml:"dir,omitempty"`

	// Env contains extra environment variables for the dev server process.
	Env map[string]string `yaml:"env,omitempty"`

	// Port is the preferred main port. 0 means pick a free port.
	Port int `yaml:"port,omitempty"`

	// HMRPort is the preferred HMR websocket port when SeparateHMR is set.
	// 0 means pick a free port.
	HMRPort int `yaml:"hmr_port,omitempty"`

	// SeparateHMR runs the HMR websocket endpoint on its own port.
	SeparateHMR bool `yaml:"separate_hmr,omitempty"`

	// ReadyTimeoutSecs bounds how long to wait for the dev server to become
	// healthy after launch. 0 means the default (60s).
	ReadyTimeoutSecs int `yaml:"ready_timeout,omitempty"`

	// GraceWindowSecs is the window after spawn in which an exit is reported
	// as a startup failure rather than a crash. 0 means the default (3s).
	GraceWindowSecs int `yaml:"grace_window,omitempty"`
}

// ReadyTimeout returns the configured ready timeout, with default.
func (s *ServerConfig) ReadyTimeout() time.Duration {
	if s.ReadyTimeoutSecs > 0 {
		return time.Duration(s.ReadyTimeoutSecs) * time.Second
	}
	return 60 * time.Second
}

// GraceWindow returns the configured startup grace window, with default.
func (s *ServerConfig) GraceWindow() time.Duration {
	if s.GraceWindowSecs > 0 {
		return time.Duration(s.GraceWindowSecs) * time.Second
	}
	return 3 * time.Second
}

// Validate checks that the server configuration is usable.
//
// Returns:
//   - error: Validation error or nil if valid
func (s *ServerConfig) Validate() error {
	switch s.Family {
	case "", "vite":
		// Command is optional; the vite provider supplies one.
	case "command":
		if s.Command == "" {
			return fmt.Errorf("server.command is required for the command family")
		}
	default:
		return fmt.Errorf("unknown server family: %s (supported: vite, command)", s.Family)
	}

	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", s.Port)
	}
	if s.HMRPort < 0 || s.HMRPort > 65535 {
		return fmt.Errorf("server.hmr_port %d is out of range", s.HMRPort)
	}

	return nil
}

// ProxyConfig describes the proxy listener and routing behavior.
type ProxyConfig struct {
	// Listen is the address the proxy binds. Empty means 127.0.0.1:8000.
	Listen string `yaml:"listen,omitempty"`

	// Prefixes are extra path prefixes routed to the dev server, on top of
	// the built-in bundler paths.
	Prefixes []string `yaml:"prefixes,omitempty"`

	// Exact are extra exact paths routed to the dev server.
	Exact []string `yaml:"exact,omitempty"`

	// HMRSubprotocols are websocket subprotocols that select the HMR
	// endpoint. Empty means the Vite defaults.
	HMRSubprotocols []string `yaml:"hmr_subprotocols,omitempty"`

	// ConnectTimeoutSecs bounds dialing the dev server. 0 means 2s.
	ConnectTimeoutSecs int `yaml:"connect_timeout,omitempty"`

	// ReadTimeoutSecs bounds waiting for upstream response headers. 0 means 30s.
	ReadTimeoutSecs int `yaml:"read_timeout,omitempty"`
}

// ListenAddr returns the configured listen address, with default.
func (p *ProxyConfig) ListenAddr() string {
	if p.Listen != "" {
		return p.Listen
	}
	return "127.0.0.1:8000"
}

// Subprotocols returns the HMR subprotocol list, with Vite defaults.
func (p *ProxyConfig) Subprotocols() []string {
	if len(p.HMRSubprotocols) > 0 {
		return p.HMRSubprotocols
	}
	return []string{"vite-hmr", "vite-ping"}
}

// ConnectTimeout returns the upstream dial timeout, with default.
func (p *ProxyConfig) ConnectTimeout() time.Duration {
	if p.ConnectTimeoutSecs > 0 {
		return time.Duration(p.ConnectTimeoutSecs) * time.Second
	}
	return 2 * time.Second
}

// ReadTimeout returns the upstream response header timeout, with default.
func (p *ProxyConfig) ReadTimeout() time.Duration {
	if p.ReadTimeoutSecs > 0 {
		return time.Duration(p.ReadTimeoutSecs) * time.Second
	}
	return 30 * time.Second
}

// DiscoveryConfig describes where the discovery record lives.
type DiscoveryConfig struct {
	// Path overrides the discovery record location. Empty means
	// .devrelay/dev-server.json under the project root.
	Path string `yaml:"path,omitempty"`
}

// Defaults contains default settings.
type Defaults struct {
	// OpenBrowser controls whether serve opens the browser once ready.
	OpenBrowser bool `yaml:"open_browser"`
}

// ConfigPath returns the config file path under a project root.
//
// Parameters:
//   - root: The project root directory
//
// Returns:
//   - string: Path to .devrelay/config.yaml
func ConfigPath(root string) string {
	return filepath.Join(root, ConfigDirName, ConfigFileName)
}

// DiscoveryPath returns the discovery record path for a project.
// An explicit discovery.path in the config wins; relative overrides are
// resolved against the project root.
//
// Parameters:
//   - root: The project root directory
//   - cfg: The loaded project config (may be nil)
//
// Returns:
//   - string: Path to the discovery record file
func DiscoveryPath(root string, cfg *ProjectConfig) string {
	if cfg != nil && cfg.Discovery.Path != "" {
		if filepath.IsAbs(cfg.Discovery.Path) {
			return cfg.Discovery.Path
		}
		return filepath.Join(root, cfg.Discovery.Path)
	}
	return filepath.Join(root, ConfigDirName, DiscoveryFileName)
}

// FindProjectRoot searches upward from dir for a directory containing
// .devrelay/config.yaml, falling back to the nearest package.json.
//
// Parameters:
//   - dir: The directory to start from (empty means the working directory)
//
// Returns:
//   - string: The project root
//   - error: Error if no project marker was found
func FindProjectRoot(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
		dir = wd
	}

	// First pass: an initialized devrelay project wins.
	for d := dir; ; {
		if _, err := os.Stat(ConfigPath(d)); err == nil {
			return d, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}

	// Second pass: fall back to the nearest package.json.
	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, "package.json")); err == nil {
			return d, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}

	return "", fmt.Errorf("no .devrelay/config.yaml or package.json found from %s upward (run 'devrelay init')", dir)
}

// LoadProjectConfig loads a project configuration from a file.
//
// Parameters:
//   - path: Path to the config.yaml file
//
// Returns:
//   - *ProjectConfig: The loaded configuration
//   - error: Any error that occurred during loading
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Guarantee maps are never nil so callers don't need defensive checks
	if cfg.Server.Env == nil {
		cfg.Server.Env = make(map[string]string)
	}

	return &cfg, nil
}

// WriteProjectConfig writes a project configuration to a file, creating
// the .devrelay directory if needed.
//
// Parameters:
//   - path: Path to write the config.yaml file
//   - cfg: The configuration to write
//
// Returns:
//   - error: Any error that occurred during writing
func WriteProjectConfig(path string, cfg *ProjectConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Add header comment
	header := "# devrelay Configuration\n# Generated by: devrelay init\n\n"
	content := header + string(data)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
