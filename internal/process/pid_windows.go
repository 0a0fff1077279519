//go:build windows

package process

import (
	"fmt"
	"os/exec"
	"strconv"

	"golang.org/x/sys/windows"
)

const stillActive = 259

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}

// signalPID uses taskkill; without /F it posts WM_CLOSE, with /F it terminates.
func signalPID(pid int, force bool) error {
	args := []string{"/PID", strconv.Itoa(pid), "/T"}
	if force {
		args = append(args, "/F")
	}
	if err := exec.Command("taskkill", args...).Run(); err != nil && pidAlive(pid) {
		return fmt.Errorf("taskkill %d: %w", pid, err)
	}
	return nil
}
