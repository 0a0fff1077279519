//go:build linux

package sizing

import (
	"runtime"

	"github.com/prometheus/procfs"
)

// logicalCPUs counts every online CPU listed in /proc/cpuinfo. The runtime
// count only covers the runner's own affinity mask.
func logicalCPUs() int {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return runtime.NumCPU()
	}
	info, err := fs.CPUInfo()
	if err != nil || len(info) == 0 {
		return runtime.NumCPU()
	}
	return max(len(info), runtime.NumCPU())
}
