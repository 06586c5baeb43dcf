package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/discovery"
	"github.com/devrelay/cli/internal/status"
)

// StatusInput defines the input for the dev_server_status tool.
type StatusInput struct{}

// StatusOutput defines the output for the dev_server_status tool.
type StatusOutput struct {
	Running     bool   `json:"running"`
	State       string `json:"state"`
	ServerName  string `json:"server_name,omitempty"`
	HTTPBaseURL string `json:"http_base_url,omitempty"`
	HMRBaseURL  string `json:"hmr_base_url,omitempty"`
	PID         int    `json:"pid,omitempty"`
	Uptime      string `json:"uptime,omitempty"`
	ExitCode    int    `json:"exit_code,omitempty"`
	Supervised  bool   `json:"supervised"`
	Hint        string `json:"hint,omitempty"`
}

// handleStatus handles the dev_server_status tool call.
func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	if s.supervisor != nil {
		return nil, s.supervisedStatus(), nil
	}
	return nil, s.recordStatus(ctx), nil
}

// supervisedStatus reports state straight from the in-process manager.
func (s *Server) supervisedStatus() StatusOutput {
	state := string(s.supervisor.State())
	out := StatusOutput{
		Running:    status.IsActive(state),
		State:      state,
		ServerName: s.supervisor.Name(),
		Supervised: true,
		Hint:       s.supervisor.StatusHint(),
	}

	if handle := s.supervisor.Handle(); handle != nil {
		out.PID = handle.PID()
		if status.IsActive(state) {
			out.Uptime = handle.Uptime().Round(time.Second).String()
		}
		if state == string(status.StatusCrashed) {
			out.ExitCode = handle.ExitCode()
		}
	}

	if status.IsActive(state) {
		target := s.supervisor.Target()
		out.HTTPBaseURL = target.HTTPBaseURL
		out.HMRBaseURL = target.HMRBaseURL
	}

	return out
}

// recordStatus reconstructs state from the discovery record when no
// supervisor runs in this process.
func (s *Server) recordStatus(ctx context.Context) StatusOutput {
	rec, err := discovery.Read(s.discoveryPath)
	if err != nil {
		return StatusOutput{State: "unknown", Hint: err.Error()}
	}
	if rec == nil {
		return StatusOutput{
			State: string(status.StatusStopped),
			Hint:  "No dev server is running for this project. Start one with 'devrelay serve'.",
		}
	}

	out := StatusOutput{
		HTTPBaseURL: rec.HTTPBaseURL,
		HMRBaseURL:  rec.Target().HMRBaseURL,
		PID:         rec.PID,
		Uptime:      rec.Uptime().Round(time.Second).String(),
	}
	if s.probe.Check(ctx, rec.HTTPBaseURL) {
		out.Running = true
		out.State = string(status.StatusReady)
	} else {
		out.State = "unknown"
		out.Hint = "A discovery record exists but the dev server is not answering; it may have died. Restart it with 'devrelay serve'."
	}
	return out
}

// LogsInput defines the input for the dev_server_logs tool.
type LogsInput struct {
	Lines int `json:"lines,omitempty" jsonschema:"Number of trailing output lines to return (default 50)."`
}

// LogsOutput defines the output for the dev_server_logs tool.
type LogsOutput struct {
	Lines []string `json:"lines"`
	Count int      `json:"count"`
	Error string   `json:"error,omitempty"`
}

// handleLogs handles the dev_server_logs tool call.
func (s *Server) handleLogs(ctx context.Context, req *mcp.CallToolRequest, input LogsInput) (*mcp.CallToolResult, LogsOutput, error) {
	if s.supervisor == nil {
		return nil, LogsOutput{
			Lines: []string{},
			Error: "output capture lives in the supervising process; start the MCP server from 'devrelay serve'",
		}, nil
	}
	handle := s.supervisor.Handle()
	if handle == nil {
		return nil, LogsOutput{
			Lines: []string{},
			Error: "no dev server has been started in this session",
		}, nil
	}

	n := input.Lines
	if n <= 0 {
		n = 50
	}
	if n > bridge.DefaultOutputRingSize {
		n = bridge.DefaultOutputRingSize
	}

	lines := []string{}
	for _, out := range handle.Output().Tail(n) {
		if out.Stream == bridge.DevServerOutputStderr {
			lines = append(lines, "[stderr] "+out.Line)
		} else {
			lines = append(lines, out.Line)
		}
	}
	return nil, LogsOutput{Lines: lines, Count: len(lines)}, nil
}

// RestartInput defines the input for the restart_dev_server tool.
type RestartInput struct{}

// RestartOutput defines the output for the restart_dev_server tool.
type RestartOutput struct {
	Success     bool   `json:"success"`
	State       string `json:"state,omitempty"`
	HTTPBaseURL string `json:"http_base_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

// handleRestart handles the restart_dev_server tool call.
func (s *Server) handleRestart(ctx context.Context, req *mcp.CallToolRequest, input RestartInput) (*mcp.CallToolResult, RestartOutput, error) {
	if s.supervisor == nil {
		return nil, RestartOutput{
			Success: false,
			Error:   "restart needs the supervising process; run this tool against the MCP server started by 'devrelay serve'",
		}, nil
	}

	if err := s.supervisor.Restart(ctx); err != nil {
		return nil, RestartOutput{
			Success: false,
			State:   string(s.supervisor.State()),
			Error:   err.Error(),
		}, nil
	}

	target := s.supervisor.Target()
	return nil, RestartOutput{
		Success:     true,
		State:       string(s.supervisor.State()),
		HTTPBaseURL: target.HTTPBaseURL,
	}, nil
}

// CheckHealthInput defines the input for the check_health tool.
type CheckHealthInput struct {
	URL string `json:"url,omitempty" jsonschema:"Base URL to probe. Defaults to the discovered dev server address."`
}

// CheckHealthOutput defines the output for the check_health tool.
type CheckHealthOutput struct {
	Healthy bool   `json:"healthy"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleCheckHealth handles the check_health tool call.
func (s *Server) handleCheckHealth(ctx context.Context, req *mcp.CallToolRequest, input CheckHealthInput) (*mcp.CallToolResult, CheckHealthOutput, error) {
	url := strings.TrimSpace(input.URL)
	if url == "" {
		if s.supervisor != nil && status.IsActive(string(s.supervisor.State())) {
			url = s.supervisor.Target().HTTPBaseURL
		} else if rec, err := discovery.Read(s.discoveryPath); err == nil && rec != nil {
			url = rec.HTTPBaseURL
		}
	}
	if url == "" {
		return nil, CheckHealthOutput{
			Healthy: false,
			Error:   "no dev server address known; pass url or start one with 'devrelay serve'",
		}, nil
	}

	return nil, CheckHealthOutput{
		Healthy: s.probe.Check(ctx, url),
		URL:     url,
	}, nil
}
