// Package metrics provides Prometheus metrics for render runs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/rendernode/internal/events"
)

const namespace = "rendernode"

var (
	jobsLaunched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "launched_total",
		Help:      "Render child processes launched",
	})

	jobsExited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "exited_total",
		Help:      "Render child processes exited, by final state",
	}, []string{"state"})

	jobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "running",
		Help:      "Render child processes currently running",
	})

	jobRuntime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "runtime_seconds",
		Help:      "Wall time of render child processes",
		Buckets:   prometheus.ExponentialBuckets(5, 2, 12),
	}, []string{"state"})

	jobStalls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "stall_warnings_total",
		Help:      "Warnings for children that stopped producing output",
	})

	outputLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "output_lines_total",
		Help:      "Lines read from child output, by stream",
	}, []string{"stream"})

	offloadedFiles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "offload",
		Name:      "files_total",
		Help:      "Files copied from scratch to the final output directory",
	})

	offloadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "offload",
		Name:      "bytes_total",
		Help:      "Bytes copied from scratch to the final output directory",
	})

	stitchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stitch",
		Name:      "attempts_total",
		Help:      "ffmpeg concat attempts, by strategy and result",
	}, []string{"strategy", "result"})

	runWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "run",
		Name:      "workers",
		Help:      "Planned number of render workers",
	})

	runDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "run",
		Name:      "duration_seconds",
		Help:      "Wall time of the last finished run",
	})

	runExitCode = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "run",
		Name:      "exit_code",
		Help:      "Exit code of the last finished run",
	})

	runFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "run",
		Name:      "failures",
		Help:      "Failed jobs in the last finished run",
	})

	// Local summary for end-of-run logging.
	summary   RunSummary
	summaryMu sync.RWMutex
)

// RunSummary holds totals observed since the process started.
type RunSummary struct {
	Launched       int
	Exited         map[string]int
	Stalls         int
	OffloadedFiles int
	OffloadedBytes int64
	StitchAttempts int
}

// SetWorkers records the planned worker count.
func SetWorkers(n int) {
	runWorkers.Set(float64(n))
}

// ObserveLine counts one line of child output.
func ObserveLine(stream string) {
	outputLines.WithLabelValues(stream).Inc()
}

// ObserveRun sets the run gauges. It is idempotent.
func ObserveRun(e events.RunFinishedEvent) {
	runDuration.Set(e.Duration.Round(time.Millisecond).Seconds())
	runExitCode.Set(float64(e.ExitCode))
	runFailures.Set(float64(e.Failures))
}

// GetSummary returns a copy of the totals.
func GetSummary() RunSummary {
	summaryMu.RLock()
	defer summaryMu.RUnlock()
	out := summary
	out.Exited = make(map[string]int, len(summary.Exited))
	for k, v := range summary.Exited {
		out.Exited[k] = v
	}
	return out
}

func updateSummary(fn func(*RunSummary)) {
	summaryMu.Lock()
	defer summaryMu.Unlock()
	if summary.Exited == nil {
		summary.Exited = make(map[string]int)
	}
	fn(&summary)
}

// Subscribe feeds bus events into the collectors and returns a function
// that removes every subscription.
func Subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(events.JobLaunchedEvent) {
			jobsLaunched.Inc()
			jobsRunning.Inc()
			updateSummary(func(s *RunSummary) { s.Launched++ })
		}),
		bus.Subscribe(func(e events.JobExitedEvent) {
			jobsExited.WithLabelValues(e.State).Inc()
			jobRuntime.WithLabelValues(e.State).Observe(e.Runtime.Seconds())
			if e.PID > 0 {
				jobsRunning.Dec()
			}
			updateSummary(func(s *RunSummary) { s.Exited[e.State]++ })
		}),
		bus.Subscribe(func(events.JobStalledEvent) {
			jobStalls.Inc()
			updateSummary(func(s *RunSummary) { s.Stalls++ })
		}),
		bus.Subscribe(func(e events.FileOffloadedEvent) {
			offloadedFiles.Inc()
			offloadedBytes.Add(float64(e.Size))
			updateSummary(func(s *RunSummary) {
				s.OffloadedFiles++
				s.OffloadedBytes += e.Size
			})
		}),
		bus.Subscribe(func(e events.StitchAttemptEvent) {
			result := "failed"
			if e.OK {
				result = "ok"
			}
			stitchAttempts.WithLabelValues(e.Strategy, result).Inc()
			updateSummary(func(s *RunSummary) { s.StitchAttempts++ })
		}),
		bus.Subscribe(ObserveRun),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
