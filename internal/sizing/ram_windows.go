//go:build windows

package sizing

import (
	"context"
	"os/exec"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

func ramProbes() []ramProbe {
	return []ramProbe{
		{name: "GlobalMemoryStatusEx", fn: globalMemoryRAM},
		{name: "wmic", fn: wmicRAM},
	}
}

func globalMemoryRAM(context.Context) (float64, error) {
	var ms windows.MemoryStatusEx
	ms.Length = uint32(unsafe.Sizeof(ms))
	if err := windows.GlobalMemoryStatusEx(&ms); err != nil {
		return 0, err
	}
	return float64(ms.TotalPhys) / bytesPerGB, nil
}

func wmicRAM(ctx context.Context) (float64, error) {
	out, err := exec.CommandContext(ctx, "wmic", "computersystem", "get", "TotalPhysicalMemory").Output()
	if err != nil {
		return 0, err
	}
	// Header line first, value second.
	return parseByteCount(strings.TrimPrefix(strings.TrimSpace(string(out)), "TotalPhysicalMemory"))
}
