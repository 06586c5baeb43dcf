//go:build !windows

package main

import (
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// isProcessAlive checks whether the recorded PID is still running.
func isProcessAlive(pid int) bool {
	return syscall.Kill(pid, syscall.Signal(0)) == nil
}

// terminateProcessGroup asks the dev server's process group to exit.
// Providers spawn with Setpgid, so the recorded PID leads its group.
func terminateProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

// forceKillProcessGroup kills the dev server's process group outright.
func forceKillProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// isDevServerProcess checks whether a PID still belongs to a bundler
// dev server. This prevents killing an unrelated process when the
// record is stale and the OS has recycled the PID.
func isDevServerProcess(pid int) bool {
	out, err := exec.Command("ps", "-o", "comm=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return false
	}
	comm := strings.TrimSpace(string(out))
	if idx := strings.LastIndex(comm, "/"); idx != -1 {
		comm = comm[idx+1:]
	}
	switch comm {
	case "node", "npm", "npx", "vite", "sh", "bash":
		return true
	}
	return false
}
