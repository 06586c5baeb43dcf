package providers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/config"
)

func init() {
	bridge.RegisterProvider(&ViteProvider{})
}

// ViteDevServer runs a Vite dev server on the negotiated ports. It
// reuses the command engine for process lifecycle and adds the Vite
// launch recipe on top.
type ViteDevServer struct {
	*CommandDevServer

	debug           bool
	commandOverride string
	extraEnv        map[string]string
}

// NewViteDevServer creates a Vite dev server for the given project.
//
// Parameters:
//   - cfg: Server configuration; Command overrides the default launch
//     command and Env adds environment variables
//   - workDir: The project directory containing package.json
//   - httpPort: The negotiated HTTP port
//   - hmrPort: The negotiated HMR port, or zero when shared
//
// Returns:
//   - *ViteDevServer: The configured dev server, not yet started
func NewViteDevServer(cfg *config.ServerConfig, workDir string, httpPort, hmrPort int) *ViteDevServer {
	v := &ViteDevServer{
		commandOverride: cfg.Command,
		extraEnv:        cfg.Env,
	}
	v.CommandDevServer = &CommandDevServer{
		WorkDir:     workDir,
		HTTPPort:    httpPort,
		HMRPort:     hmrPort,
		DisplayName: "Vite",
		InstallHint: "Install Node.js: https://nodejs.org/",
	}
	v.Argv = v.viteArgs()
	v.Env = v.viteEnvironment()
	return v
}

// SetDebugMode switches Vite to verbose startup logging. Must be called
// before Start.
func (v *ViteDevServer) SetDebugMode(enabled bool) {
	v.debug = enabled
	v.Argv = v.viteArgs()
}

// viteArgs builds the launch command. The negotiated port is pinned
// with --strictPort: a silent fallback to another port would desync the
// published address from the actual listener.
func (v *ViteDevServer) viteArgs() []string {
	if v.commandOverride != "" {
		return strings.Fields(v.commandOverride)
	}
	args := []string{
		"npx", "vite",
		"--port", strconv.Itoa(v.HTTPPort),
		"--strictPort",
		"--host", "127.0.0.1",
	}
	if v.debug {
		args = append(args, "--debug")
	}
	return args
}

// viteEnvironment returns the Vite-specific environment extras. The
// separate HMR port still reaches Vite through DEVRELAY_HMR_PORT, which
// vite.config feeds into server.hmr.port.
func (v *ViteDevServer) viteEnvironment() map[string]string {
	env := map[string]string{
		// Vite must not race the proxy to open a browser tab
		"BROWSER": "none",
	}
	for key, value := range v.extraEnv {
		env[key] = value
	}
	return env
}

// ViteProvider detects and runs Vite projects.
type ViteProvider struct{}

// Name returns the family identifier used in configuration.
func (p *ViteProvider) Name() string {
	return "vite"
}

// DisplayName returns the human-readable name.
func (p *ViteProvider) DisplayName() string {
	return "Vite"
}

// Detect looks for Vite markers in the project directory.
//
// Confidence levels:
//   - 0.9: vite in dependencies or devDependencies
//   - 0.8: a vite.config file is present
//   - 0.7: a package.json script runs vite
//
// Returns:
//   - *bridge.DetectionResult: nil when the directory shows no Vite
//     markers
//   - error: Always nil; unreadable files count as no match
func (p *ViteProvider) Detect(dir string) (*bridge.DetectionResult, error) {
	var indicators []string
	confidence := 0.0

	if name := viteConfigFile(dir); name != "" {
		indicators = append(indicators, name)
		confidence = 0.8
	}

	if pkg, ok := readPackageJSON(dir); ok {
		if hasPackageDependency(pkg, "vite") {
			indicators = append(indicators, "vite in package.json")
			confidence = 0.9
		} else if name, _, ok := scriptInvoking(pkg, "vite"); ok {
			indicators = append(indicators, fmt.Sprintf("%q script runs vite", name))
			if confidence < 0.7 {
				confidence = 0.7
			}
		}
	}

	if confidence == 0 {
		return nil, nil
	}
	return &bridge.DetectionResult{
		Provider:   p.Name(),
		Confidence: confidence,
		Indicators: indicators,
	}, nil
}

// DefaultConfig returns the baseline configuration for Vite projects.
func (p *ViteProvider) DefaultConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Family: "vite",
		Port:   5173,
	}
}

// NewDevServer builds a Vite dev server for the project.
func (p *ViteProvider) NewDevServer(cfg *config.ServerConfig, workDir string, httpPort, hmrPort int) (bridge.DevServer, error) {
	return NewViteDevServer(cfg, workDir, httpPort, hmrPort), nil
}

var viteConfigNames = []string{
	"vite.config.ts",
	"vite.config.js",
	"vite.config.mts",
	"vite.config.mjs",
}

// viteConfigFile returns the name of the vite config file present in
// dir, or "" when none exists.
func viteConfigFile(dir string) string {
	for _, name := range viteConfigNames {
		if fileExists(dir, name) {
			return name
		}
	}
	return ""
}
