//go:build windows

package providers

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// setSysProcAttr is a no-op on Windows; taskkill /T handles the tree.
func setSysProcAttr(cmd *exec.Cmd) {}

// killProcessGroup terminates the process tree via taskkill.
func killProcessGroup(pid int) {
	exec.Command("taskkill", "/T", "/PID", strconv.Itoa(pid)).Run()
}

// forceKillProcessGroup forcefully terminates the process tree.
func forceKillProcessGroup(pid int) {
	exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}

// forceKillProcess forcefully terminates a single process.
func forceKillProcess(pid int) {
	p, err := os.FindProcess(pid)
	if err == nil {
		p.Kill()
	}
}

// killProcessOnPort force-kills whatever still listens on port.
func killProcessOnPort(port int) {
	script := fmt.Sprintf("for /f \"tokens=5\" %%a in ('netstat -ano ^| findstr :%d') do taskkill /F /PID %%a", port)
	exec.Command("cmd", "/C", script).Run()
}
