//go:build windows

package sizing

import (
	"runtime"

	"golang.org/x/sys/windows"
)

// logicalCPUs counts active processors across all processor groups.
func logicalCPUs() int {
	n := int(windows.GetActiveProcessorCount(windows.ALL_PROCESSOR_GROUPS))
	return max(n, runtime.NumCPU())
}
