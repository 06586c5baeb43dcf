//go:build windows

package main

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// isProcessAlive checks whether the recorded PID is still running.
// Windows has no signal 0, so this asks tasklist.
func isProcessAlive(pid int) bool {
	out, err := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/NH").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), strconv.Itoa(pid))
}

// terminateProcessGroup asks the dev server's process tree to exit.
// taskkill /T approximates Unix process group semantics.
func terminateProcessGroup(pid int) error {
	if err := exec.Command("taskkill", "/T", "/PID", strconv.Itoa(pid)).Run(); err != nil {
		return fmt.Errorf("taskkill failed for pid %d: %w", pid, err)
	}
	return nil
}

// forceKillProcessGroup kills the dev server's process tree outright.
func forceKillProcessGroup(pid int) error {
	if err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run(); err != nil {
		return fmt.Errorf("taskkill failed for pid %d: %w", pid, err)
	}
	return nil
}

// isDevServerProcess checks whether a PID still belongs to a bundler
// dev server, to avoid killing an unrelated process behind a stale
// record. tasklist reports the image name in the first column.
func isDevServerProcess(pid int) bool {
	out, err := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/NH").Output()
	if err != nil {
		return false
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "node.exe", "npm.cmd", "npx.cmd", "cmd.exe":
		return true
	}
	return false
}
