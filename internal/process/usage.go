package process

import "errors"

var (
	// ErrAffinityUnsupported is returned where CPU pinning is unavailable.
	ErrAffinityUnsupported = errors.New("cpu affinity not supported on this platform")
	// ErrUsageUnavailable is returned where per-process usage cannot be read.
	ErrUsageUnavailable = errors.New("process usage not available on this platform")
)

// Usage is a point-in-time resource reading for one process.
type Usage struct {
	CPUPercent float64 // average since process start
	RSSBytes   uint64
}
