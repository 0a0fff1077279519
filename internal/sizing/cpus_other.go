//go:build !linux && !windows

package sizing

import "runtime"

func logicalCPUs() int {
	return runtime.NumCPU()
}
