//go:build !linux

package process

// ReadUsage is not available on this platform.
func ReadUsage(int) (Usage, error) {
	return Usage{}, ErrUsageUnavailable
}
