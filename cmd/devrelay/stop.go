// Package main provides the stop command for the devrelay CLI.
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devrelay/cli/internal/discovery"
	"github.com/devrelay/cli/internal/ui"
)

var (
	stopDir   string
	stopForce bool
)

// stopGraceTimeout is how long stop waits for a graceful exit before
// escalating to a kill.
const stopGraceTimeout = 5 * time.Second

// stopCmd cleans up a dev server that outlived its serve session.
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop an orphaned dev server",
	Long: `Stop a dev server left behind by a previous serve session.

'devrelay serve' normally stops its dev server on exit. If the serve
process was killed outright, the dev server keeps running and its
discovery record keeps pointing at it. This command reads the record,
signals the recorded process group (graceful first, then forced), and
removes the record.

Safe to run when nothing is running — a missing record is a no-op, and
a stale record whose PID was recycled by an unrelated process is
removed without signaling anything.`,
	RunE: runStop,
}

func init() {
	registerProjectFlag(stopCmd.Flags(), &stopDir)
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "Kill immediately instead of asking for a graceful exit first")
}

// runStop executes the stop command.
func runStop(cmd *cobra.Command, args []string) error {
	proj, err := loadProject(stopDir)
	if err != nil {
		return err
	}

	rec, err := discovery.Read(proj.DiscoveryPath)
	if err != nil {
		return fmt.Errorf("failed to read discovery record: %w", err)
	}
	if rec == nil {
		ui.PrintInfo("No dev server record found, nothing to stop")
		return nil
	}

	if !isProcessAlive(rec.PID) {
		if err := discovery.Clear(proj.DiscoveryPath); err != nil {
			return err
		}
		ui.PrintSuccess("Removed stale record (pid %d was not running)", rec.PID)
		return nil
	}

	if !isDevServerProcess(rec.PID) {
		if err := discovery.Clear(proj.DiscoveryPath); err != nil {
			return err
		}
		ui.PrintWarning("Pid %d is no longer a dev server process, removed the record without signaling it", rec.PID)
		return nil
	}

	if stopForce {
		if err := forceKillProcessGroup(rec.PID); err != nil {
			return fmt.Errorf("failed to kill dev server (pid %d): %w", rec.PID, err)
		}
	} else {
		ui.PrintInfo("Stopping dev server (pid %d)...", rec.PID)
		if err := terminateProcessGroup(rec.PID); err != nil {
			return fmt.Errorf("failed to signal dev server (pid %d): %w", rec.PID, err)
		}
		if !awaitProcessExit(rec.PID, stopGraceTimeout) {
			ui.PrintWarning("Dev server did not exit in %s, killing it", stopGraceTimeout)
			if err := forceKillProcessGroup(rec.PID); err != nil {
				return fmt.Errorf("failed to kill dev server (pid %d): %w", rec.PID, err)
			}
		}
	}

	if err := discovery.Clear(proj.DiscoveryPath); err != nil {
		return err
	}
	ui.PrintSuccess("Stopped dev server (pid %d)", rec.PID)
	return nil
}

// awaitProcessExit polls until the process is gone or the timeout
// elapses. Returns true when the process exited.
func awaitProcessExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !isProcessAlive(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return !isProcessAlive(pid)
}
