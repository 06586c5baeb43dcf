// Package main provides the MCP command for the devrelay CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/devrelay/cli/internal/mcp"
	"github.com/devrelay/cli/internal/ui"
)

var mcpServeDir string

// mcpCmd is the parent command for MCP operations.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long: `MCP (Model Context Protocol) server commands.

The MCP server lets AI agents inspect and drive the dev server bridge
through the Model Context Protocol, so an agent can check what the
bundler is doing, read its output, and restart it after config edits.

Commands:
  serve  - Start the MCP server over stdio`,
}

// mcpServeCmd starts the MCP server.
var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server over stdio",
	Long: `Start the devrelay MCP server over stdio.

This command starts an MCP server that communicates via JSON-RPC
over stdin/stdout. It's designed to be launched by AI hosts like
Cursor or Claude Desktop.

The server exposes the following tools:
  - dev_server_status: Report dev server state, address, PID, uptime
  - dev_server_logs: Tail the supervised dev server's output
  - restart_dev_server: Stop and relaunch the dev server
  - check_health: Probe a dev server base URL

Tools that need the live supervisor (logs, restart) answer fully only
when the agent connects to the MCP server inside 'devrelay serve';
standalone, status and health fall back to the discovery record.

Example Cursor configuration:
  {
    "mcpServers": {
      "devrelay": {
        "command": "devrelay",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	registerProjectFlag(mcpServeCmd.Flags(), &mcpServeDir)
	mcpCmd.AddCommand(mcpServeCmd)
}

// runMCPServe starts the MCP server.
func runMCPServe(cmd *cobra.Command, args []string) error {
	opts := mcp.Options{}
	if mcpServeDir != "" {
		proj, err := loadProject(mcpServeDir)
		if err != nil {
			return err
		}
		opts.DiscoveryPath = proj.DiscoveryPath
	}

	server, err := mcp.NewServer(version, opts)
	if err != nil {
		ui.PrintError("Failed to create MCP server: %v", err)
		return err
	}

	// Run the server (blocks until client disconnects)
	return server.Run(cmd.Context())
}
