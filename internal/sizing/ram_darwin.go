//go:build darwin

package sizing

import (
	"context"
	"os/exec"

	"golang.org/x/sys/unix"
)

func ramProbes() []ramProbe {
	return []ramProbe{
		{name: "sysctl", fn: sysctlRAM},
		{name: "sysctl-cmd", fn: sysctlCmdRAM},
	}
}

func sysctlRAM(context.Context) (float64, error) {
	n, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0, err
	}
	return float64(n) / bytesPerGB, nil
}

func sysctlCmdRAM(ctx context.Context) (float64, error) {
	out, err := exec.CommandContext(ctx, "sysctl", "-n", "hw.memsize").Output()
	if err != nil {
		return 0, err
	}
	return parseByteCount(string(out))
}
