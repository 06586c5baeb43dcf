// Package main provides the doctor command for bridge diagnostics.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/config"
	"github.com/devrelay/cli/internal/discovery"
	"github.com/devrelay/cli/internal/health"
	"github.com/devrelay/cli/internal/ports"
	"github.com/devrelay/cli/internal/ui"
)

// DoctorCheck represents a single diagnostic check result.
type DoctorCheck struct {
	// Name is the check name (e.g., "Node.js", "Bundler").
	Name string `json:"name"`

	// Status is the check status: "ok", "warning", "error".
	Status string `json:"status"`

	// Message is the human-readable result message.
	Message string `json:"message"`

	// Details contains additional information (optional).
	Details string `json:"details,omitempty"`
}

// DoctorResult contains all diagnostic check results.
type DoctorResult struct {
	// Checks contains all individual check results.
	Checks []DoctorCheck `json:"checks"`

	// Issues is the count of checks with status "error" or "warning".
	Issues int `json:"issues"`

	// Healthy is true if no errors were found.
	Healthy bool `json:"healthy"`
}

var (
	doctorDir  string
	doctorJSON bool
)

// doctorCmd runs diagnostic checks on the bridge setup.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check bridge health and project setup",
	Long: `Run diagnostic checks on the devrelay installation and the current project.

CHECKS PERFORMED:
  - Node.js runtime (node and npx available on PATH?)
  - Project configuration (.devrelay/config.yaml loads and validates?)
  - Bundler detection (which dev server family would 'serve' launch?)
  - Dev server record (is a bridge running here, or is the record stale?)
  - Bridge port (is proxy.listen free, or held by the running bridge?)
  - Health (does the recorded dev server answer probes?)

Nothing is started, stopped, or modified. The command exits non-zero
when any check reports an error.

OUTPUT:
  Human-readable by default, JSON with --json flag.

EXAMPLES:
  devrelay doctor              # Run all checks
  devrelay doctor --json       # Output as JSON for scripting
  devrelay doctor --dir ../app # Check a different project`,
	RunE: runDoctor,
}

func init() {
	registerProjectFlag(doctorCmd.Flags(), &doctorDir)
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Output results as JSON")
}

// runDoctor executes all diagnostic checks.
//
// Parameters:
//   - cmd: The cobra command being executed
//   - args: Command line arguments (unused)
//
// Returns:
//   - error: Any error that occurred
func runDoctor(cmd *cobra.Command, args []string) error {
	jsonOutput := jsonEnabled(cmd, doctorJSON)

	result := DoctorResult{
		Checks:  make([]DoctorCheck, 0),
		Healthy: true,
	}

	if !jsonOutput {
		ui.PrintBanner(version)
		ui.PrintInfo("Running diagnostic checks...")
		ui.Println()
	}

	// Check 1: Node.js runtime
	nodeCheck := checkNodeRuntime()
	result.Checks = append(result.Checks, nodeCheck)
	if nodeCheck.Status == "error" {
		result.Healthy = false
		result.Issues++
	} else if nodeCheck.Status == "warning" {
		result.Issues++
	}

	// Check 2: Project configuration. The remaining checks need the
	// resolved project, so this one also hands it back.
	cfgCheck, proj := checkProjectConfig(doctorDir)
	result.Checks = append(result.Checks, cfgCheck)
	if cfgCheck.Status == "error" {
		result.Healthy = false
		result.Issues++
	} else if cfgCheck.Status == "warning" {
		result.Issues++
	}

	if proj != nil {
		// Check 3: Bundler detection
		bundlerCheck := checkBundler(proj)
		result.Checks = append(result.Checks, bundlerCheck)
		if bundlerCheck.Status == "warning" {
			result.Issues++
		}

		// Check 4: Dev server record
		recCheck, rec := checkRecord(proj)
		result.Checks = append(result.Checks, recCheck)
		if recCheck.Status == "warning" {
			result.Issues++
		}

		// Check 5: Bridge listen port
		portCheck := checkListenPort(proj, rec)
		result.Checks = append(result.Checks, portCheck)
		if portCheck.Status == "error" {
			result.Healthy = false
			result.Issues++
		} else if portCheck.Status == "warning" {
			result.Issues++
		}

		// Check 6: Upstream health, only meaningful with a live record
		if rec != nil && isProcessAlive(rec.PID) {
			healthCheck := checkUpstreamHealth(cmd.Context(), rec)
			result.Checks = append(result.Checks, healthCheck)
			if healthCheck.Status == "warning" {
				result.Issues++
			}
		}
	}

	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printDoctorResults(result)
	}

	if !result.Healthy {
		return fmt.Errorf("health check failed")
	}
	return nil
}

// checkNodeRuntime checks that Node.js tooling is on PATH.
//
// Returns:
//   - DoctorCheck: The check result
func checkNodeRuntime() DoctorCheck {
	check := DoctorCheck{
		Name:   "Node.js",
		Status: "ok",
	}

	nodePath, err := exec.LookPath("node")
	if err != nil {
		check.Status = "error"
		check.Message = "Not found in PATH"
		check.Details = "Dev server providers need Node.js, see https://nodejs.org"
		return check
	}

	check.Message = nodePath
	if out, err := exec.Command("node", "--version").Output(); err == nil {
		check.Message = fmt.Sprintf("%s at %s", strings.TrimSpace(string(out)), nodePath)
	}

	// Providers launch through npx unless a custom command is set.
	if _, err := exec.LookPath("npx"); err != nil {
		check.Status = "warning"
		check.Details = "npx not found, set server.command to launch the bundler directly"
	}

	return check
}

// checkProjectConfig resolves the project and validates its config.
// The resolved project is returned for the checks that follow; nil
// means no project was found or the config did not load.
//
// Parameters:
//   - dir: Directory to resolve the project from ("" for cwd)
//
// Returns:
//   - DoctorCheck: The check result
//   - *projectContext: The resolved project, nil on failure
func checkProjectConfig(dir string) (DoctorCheck, *projectContext) {
	check := DoctorCheck{
		Name:   "Config",
		Status: "ok",
	}

	if _, err := config.FindProjectRoot(dir); err != nil {
		check.Status = "warning"
		check.Message = "No project found"
		check.Details = "Run 'devrelay init' in your project root"
		return check, nil
	}

	proj, err := loadProject(dir)
	if err != nil {
		check.Status = "error"
		check.Message = "Configuration did not load"
		check.Details = err.Error()
		return check, nil
	}

	if !proj.HasConfig {
		check.Status = "warning"
		check.Message = "No .devrelay/config.yaml, defaults apply"
		check.Details = "Run 'devrelay init' to generate one"
		return check, proj
	}

	if err := proj.Config.Server.Validate(); err != nil {
		check.Status = "error"
		check.Message = "Invalid configuration"
		check.Details = err.Error()
		return check, nil
	}

	check.Message = fmt.Sprintf("Found at %s", config.ConfigPath(proj.Root))

	var details []string
	if proj.Config.Server.Family != "" {
		details = append(details, fmt.Sprintf("Family: %s", proj.Config.Server.Family))
	}
	details = append(details, fmt.Sprintf("Listen: %s", proj.Config.Proxy.ListenAddr()))
	check.Details = strings.Join(details, ", ")

	return check, proj
}

// checkBundler checks which dev server family detection would pick.
//
// Parameters:
//   - proj: The resolved project
//
// Returns:
//   - DoctorCheck: The check result
func checkBundler(proj *projectContext) DoctorCheck {
	check := DoctorCheck{
		Name:   "Bundler",
		Status: "ok",
	}

	if _, err := os.Stat(filepath.Join(proj.ServerDir, "package.json")); err != nil {
		check.Status = "warning"
		check.Message = fmt.Sprintf("No package.json in %s", proj.ServerDir)
		check.Details = "Set server.dir in .devrelay/config.yaml if the frontend lives elsewhere"
		return check
	}

	detections := bridge.DefaultRegistry().DetectAll(proj.ServerDir)
	if len(detections) == 0 {
		check.Status = "warning"
		check.Message = "No known dev server detected"
		check.Details = "Set server.family in .devrelay/config.yaml to pick one explicitly"
		return check
	}

	best := detections[0]
	check.Message = fmt.Sprintf("Detected %s (confidence %.0f%%)", best.Detection.Provider, best.Detection.Confidence*100)
	if len(best.Detection.Indicators) > 0 {
		check.Details = strings.Join(best.Detection.Indicators, ", ")
	}

	return check
}

// checkRecord inspects the discovery record for a running dev server.
// The record is returned for the checks that follow.
//
// Parameters:
//   - proj: The resolved project
//
// Returns:
//   - DoctorCheck: The check result
//   - *discovery.Record: The record, nil when absent or unreadable
func checkRecord(proj *projectContext) (DoctorCheck, *discovery.Record) {
	check := DoctorCheck{
		Name:   "Dev server",
		Status: "ok",
	}

	rec, err := discovery.Read(proj.DiscoveryPath)
	if err != nil {
		check.Status = "warning"
		check.Message = "Discovery record unreadable"
		check.Details = err.Error()
		return check, nil
	}

	if rec == nil {
		check.Message = "Not running"
		return check, nil
	}

	if !isProcessAlive(rec.PID) {
		check.Status = "warning"
		check.Message = fmt.Sprintf("Stale record, pid %d is not running", rec.PID)
		check.Details = "Run 'devrelay stop' to clear it"
		return check, rec
	}

	check.Message = fmt.Sprintf("Running (pid %d, up %s)", rec.PID, humanizeDuration(rec.Uptime()))
	check.Details = rec.HTTPBaseURL

	return check, rec
}

// checkListenPort checks whether the bridge listen address is usable.
//
// Parameters:
//   - proj: The resolved project
//   - rec: The discovery record, nil when no dev server is recorded
//
// Returns:
//   - DoctorCheck: The check result
func checkListenPort(proj *projectContext, rec *discovery.Record) DoctorCheck {
	check := DoctorCheck{
		Name:   "Bridge port",
		Status: "ok",
	}

	addr := proj.Config.Proxy.ListenAddr()
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		check.Status = "error"
		check.Message = "Invalid listen address"
		check.Details = fmt.Sprintf("proxy.listen %q: %v", addr, err)
		return check
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		check.Status = "error"
		check.Message = "Invalid listen address"
		check.Details = fmt.Sprintf("proxy.listen %q: port is not a number", addr)
		return check
	}

	if ports.IsAvailable(port) {
		check.Message = fmt.Sprintf("%s is free", addr)
		return check
	}

	// A live record means a bridge is serving here, which is the
	// expected holder of the listen address.
	if rec != nil && isProcessAlive(rec.PID) {
		check.Message = fmt.Sprintf("%s is in use, likely by the running bridge", addr)
		return check
	}

	check.Status = "warning"
	check.Message = fmt.Sprintf("%s is already in use", addr)
	check.Details = "Stop the other process or change proxy.listen in .devrelay/config.yaml"

	return check
}

// checkUpstreamHealth probes the recorded dev server.
//
// Parameters:
//   - ctx: Context for cancellation
//   - rec: The discovery record of a live dev server
//
// Returns:
//   - DoctorCheck: The check result
func checkUpstreamHealth(ctx context.Context, rec *discovery.Record) DoctorCheck {
	check := DoctorCheck{
		Name:   "Health",
		Status: "ok",
	}

	if health.New().Check(ctx, rec.HTTPBaseURL) {
		check.Message = fmt.Sprintf("Dev server answering at %s", rec.HTTPBaseURL)
		return check
	}

	check.Status = "warning"
	check.Message = fmt.Sprintf("Pid %d is running but %s is not answering", rec.PID, rec.HTTPBaseURL)
	check.Details = "Watch 'devrelay serve --plain' output for startup errors"

	return check
}

// printDoctorResults prints the doctor results in human-readable format.
//
// Parameters:
//   - result: The doctor result to print
func printDoctorResults(result DoctorResult) {
	for _, check := range result.Checks {
		var icon string
		switch check.Status {
		case "ok":
			icon = ui.SuccessStyle.Render("✓")
		case "warning":
			icon = ui.WarningStyle.Render("⚠")
		case "error":
			icon = ui.ErrorStyle.Render("✗")
		}

		// Print check name and message
		fmt.Printf("  %s %-16s %s\n", icon, check.Name+":", check.Message)

		// Print details if present
		if check.Details != "" {
			fmt.Printf("    %s\n", ui.DimStyle.Render(check.Details))
		}
	}

	ui.Println()

	if result.Issues > 0 {
		ui.PrintWarning("%d issue(s) found", result.Issues)
	} else {
		ui.PrintSuccess("All checks passed")
	}

	// Print context-aware next steps based on check results
	var steps []ui.NextStep
	for _, check := range result.Checks {
		switch {
		case check.Name == "Node.js" && check.Status == "error":
			steps = append(steps, ui.NextStep{Label: "Install Node.js:", Command: "https://nodejs.org"})
		case check.Name == "Config" && check.Status == "warning":
			steps = append(steps, ui.NextStep{Label: "Initialize project:", Command: "devrelay init"})
		case check.Name == "Dev server" && check.Status == "warning":
			steps = append(steps, ui.NextStep{Label: "Clear stale record:", Command: "devrelay stop"})
		case check.Name == "Health" && check.Status == "warning":
			steps = append(steps, ui.NextStep{Label: "Watch startup output:", Command: "devrelay serve --plain"})
		}
	}

	// If all healthy, suggest starting the bridge
	if result.Healthy && len(steps) == 0 {
		steps = append(steps, ui.NextStep{Label: "Start the bridge:", Command: "devrelay serve"})
	}

	ui.PrintNextSteps(steps)
}
