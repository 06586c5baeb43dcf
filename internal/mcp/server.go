// Package mcp exposes the dev server bridge to editor agents over the
// Model Context Protocol.
//
// The server speaks MCP over stdio and offers dev-loop tools: dev
// server status, captured output, restart, and health checks. Tools
// that need the supervising process (restart, output capture) degrade
// to explanatory errors when the server runs detached from it.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/config"
	"github.com/devrelay/cli/internal/discovery"
	"github.com/devrelay/cli/internal/health"
	"github.com/devrelay/cli/internal/status"
)

// Supervisor is the slice of the bridge manager the tools drive when
// the MCP server runs inside the supervising process.
type Supervisor interface {
	State() status.ServerStatus
	Name() string
	Target() discovery.Target
	Handle() *bridge.Handle
	LastError() error
	StatusHint() string
	Restart(ctx context.Context) error
}

// Server wraps the MCP server with the devrelay dev-loop tools.
type Server struct {
	mcpServer     *mcp.Server
	supervisor    Supervisor
	discoveryPath string
	probe         *health.Probe
	version       string
}

// Options configures the MCP server wiring.
type Options struct {
	// Supervisor is the in-process bridge manager. Nil when the MCP
	// server runs standalone (plain `devrelay mcp`).
	Supervisor Supervisor

	// DiscoveryPath locates the discovery record. Empty resolves it
	// from the nearest project root.
	DiscoveryPath string

	// Probe overrides the health probe, mainly for tests.
	Probe *health.Probe
}

// NewServer creates an MCP server with the dev-loop tools registered.
//
// Parameters:
//   - version: The CLI version string
//   - opts: Wiring options
//
// Returns:
//   - *Server: A new server instance
//   - error: Project root resolution failure when no discovery path
//     was given
func NewServer(version string, opts Options) (*Server, error) {
	discoveryPath := opts.DiscoveryPath
	if discoveryPath == "" {
		root, err := config.FindProjectRoot("")
		if err != nil {
			return nil, err
		}
		cfg, _ := config.LoadProjectConfig(config.ConfigPath(root))
		discoveryPath = config.DiscoveryPath(root, cfg)
	}

	probe := opts.Probe
	if probe == nil {
		probe = health.New()
	}

	s := &Server{
		supervisor:    opts.Supervisor,
		discoveryPath: discoveryPath,
		probe:         probe,
		version:       version,
	}

	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{
			Name:    "devrelay",
			Version: version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: Any error that occurred during execution
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func boolPtr(b bool) *bool { return &b }

// registerTools registers the dev-loop tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "dev_server_status",
		Description: "Report the dev server's lifecycle state, address, PID, and uptime. Uses the live supervisor when available, otherwise the discovery record plus a health probe.",
		Annotations: &mcp.ToolAnnotations{
			Title:        "Dev Server Status",
			ReadOnlyHint: true,
		},
	}, s.handleStatus)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "dev_server_logs",
		Description: "Return the trailing captured output of the supervised dev server. Only available when the MCP server runs inside 'devrelay serve'.",
		Annotations: &mcp.ToolAnnotations{
			Title:        "Dev Server Logs",
			ReadOnlyHint: true,
		},
	}, s.handleLogs)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "restart_dev_server",
		Description: "Stop and relaunch the supervised dev server, returning its new state and address. Only available when the MCP server runs inside 'devrelay serve'.",
		Annotations: &mcp.ToolAnnotations{
			Title: "Restart Dev Server",
		},
	}, s.handleRestart)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "check_health",
		Description: "Probe a dev server base URL for responsiveness. Defaults to the discovered dev server address.",
		Annotations: &mcp.ToolAnnotations{
			Title:         "Check Health",
			ReadOnlyHint:  true,
			OpenWorldHint: boolPtr(true),
		},
	}, s.handleCheckHealth)
}
