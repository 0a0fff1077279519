// Package sizing decides how many render workers to run and which CPUs
// each one is hinted to use.
package sizing

import "math"

const (
	// DefaultMaxWorkers caps auto-sized concurrency when no cap is configured.
	DefaultMaxWorkers = 24
	// DefaultRAMPerWorkerGB is the per-worker RAM budget when none is configured.
	DefaultRAMPerWorkerGB = 32.0

	usableRAMFraction  = 0.80
	fallbackWorkers    = 4
	threadsPerWorker   = 16
	threadsPerWorkerST = 8
)

// Inputs holds everything the concurrency planner looks at.
type Inputs struct {
	Requested      int // 0 = auto
	MaxWorkers     int
	LogicalCPUs    int
	RAMGB          float64 // 0 = unknown
	RAMPerWorkerGB float64
	ThreadHint     int
	MFRDisabled    bool
	TotalFrames    int
}

// Decision is the planned worker count plus the bounds that produced it.
type Decision struct {
	Workers          int
	Auto             bool
	UsableRAMGB      float64
	MaxByRAM         int
	ThreadsPerWorker int
	MaxByThreads     int
}

// Plan returns the number of render workers to launch, always >= 1.
// A run of one frame (or none) is never split.
func Plan(in Inputs) Decision {
	maxWorkers := in.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}

	var d Decision
	switch {
	case in.Requested > 0:
		d.Workers = in.Requested
	case in.LogicalCPUs <= 0:
		d.Auto = true
		d.Workers = max(1, min(fallbackWorkers, maxWorkers))
	default:
		d = auto(in, maxWorkers)
	}

	if in.TotalFrames <= 1 {
		d.Workers = 1
	}
	return d
}

func auto(in Inputs, maxWorkers int) Decision {
	perWorker := in.RAMPerWorkerGB
	if perWorker <= 0 {
		perWorker = DefaultRAMPerWorkerGB
	}

	d := Decision{Auto: true, MaxByRAM: in.LogicalCPUs}
	if in.RAMGB > 0 {
		d.UsableRAMGB = in.RAMGB * usableRAMFraction
		d.MaxByRAM = int(math.Floor(d.UsableRAMGB / perWorker))
	}

	floor := threadsPerWorker
	if in.MFRDisabled {
		floor = threadsPerWorkerST
	}
	d.ThreadsPerWorker = max(floor, in.ThreadHint)
	d.MaxByThreads = max(1, in.LogicalCPUs/d.ThreadsPerWorker)

	d.Workers = max(1, min(maxWorkers, d.MaxByRAM, d.MaxByThreads, in.LogicalCPUs))
	return d
}
