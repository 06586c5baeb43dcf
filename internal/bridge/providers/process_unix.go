//go:build !windows

package providers

import (
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// setSysProcAttr places the child in its own process group so the whole
// bundler tree (npx, node, esbuild workers) can be signaled at once.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGTERM to the entire process group.
func killProcessGroup(pid int) {
	syscall.Kill(-pid, syscall.SIGTERM)
}

// forceKillProcessGroup sends SIGKILL to the entire process group.
func forceKillProcessGroup(pid int) {
	syscall.Kill(-pid, syscall.SIGKILL)
}

// forceKillProcess sends SIGKILL to a single process.
func forceKillProcess(pid int) {
	syscall.Kill(pid, syscall.SIGKILL)
}

// killProcessOnPort force-kills whatever still listens on port. Used as
// a final sweep for children that left the process group. A missing
// lsof makes this a no-op.
func killProcessOnPort(port int) {
	output, err := exec.Command("lsof", "-ti", ":"+strconv.Itoa(port)).Output()
	if err != nil {
		return
	}
	for _, field := range strings.Fields(string(output)) {
		if pid, err := strconv.Atoi(field); err == nil {
			forceKillProcess(pid)
		}
	}
}
