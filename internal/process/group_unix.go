//go:build unix

package process

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// SendGraceful sends SIGTERM to the child's process group.
func (h *childHandle) SendGraceful() error {
	return h.signalGroup(unix.SIGTERM)
}

// SendForceful sends SIGKILL to the child's process group.
func (h *childHandle) SendForceful() error {
	return h.signalGroup(unix.SIGKILL)
}

// Alive reports whether the leader or any member of its group remains.
func (h *childHandle) Alive() bool {
	if !h.exited() {
		return true
	}
	return groupAlive(h.pid)
}

func (h *childHandle) signalGroup(sig unix.Signal) error {
	err := unix.Kill(-h.pid, sig)
	if err == nil || !errors.Is(err, unix.ESRCH) {
		return err
	}
	if h.exited() {
		return nil
	}
	// Group not found while the leader lives: signal the leader alone.
	return h.cmd.Process.Signal(sig)
}
