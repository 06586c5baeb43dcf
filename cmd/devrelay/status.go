// Package main provides the status command for the devrelay CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devrelay/cli/internal/discovery"
	"github.com/devrelay/cli/internal/health"
	"github.com/devrelay/cli/internal/status"
	"github.com/devrelay/cli/internal/ui"
)

var (
	statusDir   string
	statusJSON  bool
	statusWatch bool
)

// statusCmd reports bridge and dev server state without side effects.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bridge and dev server status",
	Long: `Show the current state of the dev server bridge.

Reads the discovery record, checks whether the recorded process is
still running, and probes the dev server once over HTTP. Nothing is
started, stopped, or modified.

EXAMPLES:
  devrelay status
  devrelay status --json
  devrelay status --watch`,
	RunE: runStatus,
}

func init() {
	registerProjectFlag(statusCmd.Flags(), &statusDir)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Keep watching and update the status line live")
}

// statusReport is the machine-readable status shape.
type statusReport struct {
	Project       string `json:"project"`
	State         string `json:"state"`
	Hint          string `json:"hint,omitempty"`
	RecordPath    string `json:"record_path"`
	HTTPBaseURL   string `json:"http_base_url,omitempty"`
	HMRBaseURL    string `json:"hmr_base_url,omitempty"`
	PID           int    `json:"pid,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	Healthy       bool   `json:"healthy"`
	Listen        string `json:"listen"`
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, args []string) error {
	proj, err := loadProject(statusDir)
	if err != nil {
		return err
	}

	jsonOutput := jsonEnabled(cmd, statusJSON)
	if jsonOutput && statusWatch {
		return fmt.Errorf("--watch is interactive and cannot be combined with --json")
	}

	if statusWatch {
		return watchStatus(cmd.Context(), proj)
	}

	report, err := collectStatus(cmd.Context(), proj)
	if err != nil {
		return err
	}

	if jsonOutput {
		ui.SetQuietMode(true)
		defer ui.SetQuietMode(false)
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printStatusHuman(report)
	return nil
}

// collectStatus derives the bridge state from the record, the recorded
// process, and one health probe.
func collectStatus(ctx context.Context, proj *projectContext) (*statusReport, error) {
	report := &statusReport{
		Project:    proj.projectName(),
		RecordPath: proj.DiscoveryPath,
		Listen:     proj.Config.Proxy.ListenAddr(),
	}

	rec, err := discovery.Read(proj.DiscoveryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read discovery record: %w", err)
	}
	if rec == nil {
		report.State = string(status.StatusStopped)
		report.Hint = "no dev server running (start one with 'devrelay serve')"
		return report, nil
	}

	report.HTTPBaseURL = rec.HTTPBaseURL
	report.HMRBaseURL = rec.HMRBaseURL
	report.PID = rec.PID
	report.UptimeSeconds = int64(rec.Uptime().Seconds())

	if !isProcessAlive(rec.PID) {
		report.State = string(status.StatusCrashed)
		report.Hint = fmt.Sprintf("recorded pid %d is not running ('devrelay stop' clears the stale record)", rec.PID)
		return report, nil
	}

	report.Healthy = health.New().Check(ctx, rec.HTTPBaseURL)
	if report.Healthy {
		report.State = string(status.StatusReady)
	} else {
		report.State = string(status.StatusStarting)
		report.Hint = "process is running but not answering health probes yet"
	}
	return report, nil
}

// printStatusHuman renders the report for a person.
func printStatusHuman(report *statusReport) {
	ui.Println()
	ui.PrintKeyValue("Project", report.Project)
	ui.PrintKeyValue("State", fmt.Sprintf("%s %s", status.StatusIcon(report.State), report.State))
	ui.PrintKeyValue("Bridge", listenURL(report.Listen))

	if report.HTTPBaseURL != "" {
		ui.PrintKeyValue("Dev server", report.HTTPBaseURL)
		if report.HMRBaseURL != "" && report.HMRBaseURL != report.HTTPBaseURL {
			ui.PrintKeyValue("HMR channel", report.HMRBaseURL)
		}
		ui.PrintKeyValue("PID", strconv.Itoa(report.PID))
		ui.PrintKeyValue("Uptime", humanizeDuration(time.Duration(report.UptimeSeconds)*time.Second))
	}

	if report.Hint != "" {
		ui.Println()
		ui.PrintDim("  %s", report.Hint)
	}
	ui.Println()
}

// watchStatus keeps one status line current until interrupted, redrawing
// on record changes and on a fixed re-probe interval.
func watchStatus(ctx context.Context, proj *projectContext) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	redraw := func() {
		report, err := collectStatus(ctx, proj)
		if err != nil {
			ui.PrintStatusLine(string(status.StatusCrashed), err.Error())
			return
		}
		detail := report.HTTPBaseURL
		if report.Hint != "" {
			detail = report.Hint
		}
		ui.PrintStatusLine(report.State, detail)
	}

	redraw()
	changed := make(chan struct{}, 1)
	if err := discovery.Watch(ctx, proj.DiscoveryPath, func(*discovery.Record) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}); err != nil {
		// No record directory yet; the ticker alone keeps the line fresh.
		changed = nil
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sigChan:
			ui.Println()
			return nil
		case <-changed:
			redraw()
		case <-ticker.C:
			redraw()
		}
	}
}
