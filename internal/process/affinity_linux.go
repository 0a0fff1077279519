//go:build linux

package process

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ApplyAffinity pins pid to the given CPUs.
func ApplyAffinity(pid int, cpus []int) error {
	if len(cpus) == 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	for _, c := range cpus {
		set.Set(c)
	}
	if err := unix.SchedSetaffinity(pid, &set); err != nil {
		return fmt.Errorf("sched_setaffinity pid %d: %w", pid, err)
	}
	return nil
}
