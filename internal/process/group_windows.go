//go:build windows

package process

import (
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

// SendGraceful delivers CTRL_BREAK to the child's console process group.
func (h *childHandle) SendGraceful() error {
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(h.pid))
}

// SendForceful kills the child's whole tree with taskkill.
func (h *childHandle) SendForceful() error {
	if err := exec.Command("taskkill", "/PID", strconv.Itoa(h.pid), "/T", "/F").Run(); err != nil {
		if h.exited() {
			return nil
		}
		return h.cmd.Process.Kill()
	}
	return nil
}

// Alive reports whether the child has not been reaped yet.
func (h *childHandle) Alive() bool {
	return !h.exited()
}
