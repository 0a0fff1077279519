//go:build !linux

package process

// ApplyAffinity pins pid to the given CPUs. Not supported on this platform.
func ApplyAffinity(_ int, cpus []int) error {
	if len(cpus) == 0 {
		return nil
	}
	return ErrAffinityUnsupported
}
