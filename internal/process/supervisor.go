package process

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/smazurov/rendernode/internal/events"
)

const (
	idleSleep    = 150 * time.Millisecond
	drainTimeout = time.Second
	lineBuffer   = 1024
)

// Options configures a Supervisor.
type Options struct {
	// Env is the complete environment for children. Nil inherits ours.
	Env []string
	// SpawnDelay separates consecutive launches.
	SpawnDelay time.Duration
	// StallGrace is the silence after which a stall warning is logged. 0 disables.
	StallGrace time.Duration
	// KillOnFail stops every job once one fails.
	KillOnFail bool
	// ShutdownGrace is the grace window for Shutdown callers that pass 0.
	ShutdownGrace time.Duration
	// FailureGrace is used when KillOnFail triggers and OnFailure is nil.
	FailureGrace time.Duration
	// OnFailure replaces the built-in KillOnFail escalation.
	OnFailure func()
	// OnLine observes every output line after it is logged.
	OnLine func(Line)
	// ApplyAffinity pins each job to its Spec.Affinity.
	ApplyAffinity bool

	// OutputLogger receives child output. Defaults to the supervisor logger.
	OutputLogger *slog.Logger
	// LogParser extracts a level from child output lines.
	LogParser LogParser
	// Bus receives job lifecycle events. May be nil.
	Bus *events.Bus
}

// Result summarizes a finished run.
type Result struct {
	Jobs     []*Job
	Failures int
	Stopped  bool
}

// Supervisor launches render jobs, drains their output and records how
// they exit. All job state is mutated by the monitor loop only.
type Supervisor struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	jobs    []*Job
	byIndex map[int]*Job

	lines     chan Line
	readers   sync.WaitGroup
	spawnDone chan struct{}

	stopped      atomic.Bool
	stopCh       chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
	escalated    bool
	failures     int
}

// NewSupervisor creates a supervisor.
func NewSupervisor(opts Options, logger *slog.Logger) *Supervisor {
	if opts.OutputLogger == nil {
		opts.OutputLogger = logger
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 5 * time.Second
	}
	if opts.FailureGrace <= 0 {
		opts.FailureGrace = 2 * time.Second
	}
	return &Supervisor{
		opts:      opts,
		logger:    logger,
		byIndex:   make(map[int]*Job),
		lines:     make(chan Line, lineBuffer),
		spawnDone: make(chan struct{}),
		stopCh:    make(chan struct{}),
	}
}

// Run launches specs in order and monitors them until every job has exited.
func (s *Supervisor) Run(ctx context.Context, specs []Spec) Result {
	go s.Spawn(ctx, specs)
	return s.Monitor(ctx)
}

// Stopped reports whether shutdown has begun.
func (s *Supervisor) Stopped() bool {
	return s.stopped.Load()
}

// Jobs returns the jobs launched so far.
func (s *Supervisor) Jobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// Spawn launches specs sequentially with the configured delay between
// launches, stopping early once shutdown begins or ctx is cancelled. It
// must be called exactly once.
func (s *Supervisor) Spawn(ctx context.Context, specs []Spec) {
	defer close(s.spawnDone)

	for i, spec := range specs {
		if i > 0 && s.opts.SpawnDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-time.After(s.opts.SpawnDelay):
			}
		}
		if ctx.Err() != nil || !s.launch(spec) {
			return
		}
	}
}

// launch starts one job. It returns false once shutdown has begun.
func (s *Supervisor) launch(spec Spec) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.Load() {
		return false
	}

	now := time.Now()
	job := &Job{
		Index:        spec.Index,
		Range:        spec.Range,
		Output:       spec.Output,
		Affinity:     spec.Affinity,
		State:        StateRunning,
		StartedAt:    now,
		LastOutputAt: now,
	}

	if len(spec.Args) == 0 {
		s.recordStartFailure(job, fmt.Errorf("empty command"))
		return true
	}

	cmd := exec.Command(spec.Args[0], spec.Args[1:]...)
	cmd.Env = s.opts.Env

	s.logger.Info(fmt.Sprintf("Launching child[%d] frames=%s", spec.Index, spec.Range), "job", spec.Index)
	h, err := startChild(cmd)
	if err != nil {
		s.recordStartFailure(job, err)
		return true
	}

	job.handle = h
	job.PID = h.pid
	s.jobs = append(s.jobs, job)
	s.byIndex[job.Index] = job

	// Emit a pid-bearing line so external tools can map ranges to pids.
	s.logger.Info(fmt.Sprintf("Launched child[%d] pid=%d frames=%s", spec.Index, h.pid, spec.Range),
		"job", spec.Index, "pid", h.pid, "start", spec.Range.Start, "end", spec.Range.End)

	if s.opts.ApplyAffinity && len(spec.Affinity) > 0 {
		if err := ApplyAffinity(h.pid, spec.Affinity); err != nil {
			s.logger.Debug("Affinity not applied", "job", spec.Index, "pid", h.pid, "error", err)
		} else {
			s.logger.Info("Applied CPU affinity", "job", spec.Index, "pid", h.pid, "cpus", spec.Affinity)
		}
	}

	for i, r := range h.readers {
		stream := Stdout
		if i == 1 {
			stream = Stderr
		}
		s.readers.Add(1)
		go func() {
			defer s.readers.Done()
			if err := readLines(r, h.pid, job.Index, stream, s.lines); err != nil {
				s.logger.Warn("Error reading output", "job", job.Index, "stream", stream, "error", err)
			}
		}()
	}

	s.opts.Bus.Publish(events.JobLaunchedEvent{
		Index:     job.Index,
		PID:       job.PID,
		Start:     job.Range.Start,
		End:       job.Range.End,
		Output:    job.Output,
		Timestamp: now,
	})
	return true
}

// recordStartFailure registers a job whose process never started; the
// monitor records it as failed. The caller holds s.mu.
func (s *Supervisor) recordStartFailure(job *Job, err error) {
	s.jobs = append(s.jobs, job)
	s.byIndex[job.Index] = job
	s.logger.Error("Failed to start child", "job", job.Index,
		"start", job.Range.Start, "end", job.Range.End, "error", err)
}

// Monitor drains output, warns about stalled jobs and records exits until
// spawning has finished and every job has exited. Cancelling ctx starts
// a shutdown.
func (s *Supervisor) Monitor(ctx context.Context) Result {
	spawnDone := s.spawnDone
	ctxDone := ctx.Done()

	for {
		drained := s.drain()

		select {
		case <-ctxDone:
			ctxDone = nil
			go s.Shutdown(context.Background(), 0)
		default:
		}

		// Observe spawn completion before checking so the snapshot in
		// check includes every launched job.
		select {
		case <-spawnDone:
			spawnDone = nil
		default:
		}
		running := s.check(time.Now())
		if spawnDone == nil && running == 0 {
			break
		}

		if !drained {
			time.Sleep(idleSleep)
		}
	}

	s.finishReaders()
	return Result{Jobs: s.Jobs(), Failures: s.failures, Stopped: s.stopped.Load()}
}

// drain handles every queued line and reports whether there were any.
func (s *Supervisor) drain() bool {
	drained := false
	for {
		select {
		case line := <-s.lines:
			s.handleLine(line)
			drained = true
		default:
			return drained
		}
	}
}

func (s *Supervisor) handleLine(line Line) {
	s.mu.Lock()
	job := s.byIndex[line.JobIndex]
	s.mu.Unlock()
	if job != nil {
		job.LastOutputAt = time.Now()
	}

	level, msg := slog.LevelInfo, line.Text
	if s.opts.LogParser != nil {
		level, msg = s.opts.LogParser(line.Text)
	}
	s.opts.OutputLogger.Log(context.Background(), level, msg,
		"pid", line.PID, "job", line.JobIndex, "stream", line.Stream)

	if s.opts.OnLine != nil {
		s.opts.OnLine(line)
	}
}

// check records exits and stall warnings and returns how many jobs are
// still running.
func (s *Supervisor) check(now time.Time) int {
	running := 0
	for _, job := range s.Jobs() {
		if job.Done() {
			continue
		}
		if job.handle == nil {
			s.recordExit(job, -1)
			continue
		}
		if job.handle.exited() {
			s.recordExit(job, job.handle.exitCode())
			continue
		}
		running++

		if s.opts.StallGrace > 0 && now.Sub(job.LastOutputAt) > s.opts.StallGrace {
			s.warnStall(job, now)
		}
	}
	return running
}

func (s *Supervisor) recordExit(job *Job, code int) {
	job.ExitCode = &code
	job.ExitedAt = time.Now()

	switch {
	case code == 0:
		job.State = StateExited
		s.logger.Info("Child finished", "job", job.Index, "pid", job.PID,
			"start", job.Range.Start, "end", job.Range.End, "runtime", job.ExitedAt.Sub(job.StartedAt).Round(time.Second))
	case s.stopped.Load():
		job.State = StateKilled
		s.logger.Warn("Child stopped", "job", job.Index, "pid", job.PID, "exit_code", code)
	default:
		job.State = StateFailed
		s.failures++
		s.logger.Error(fmt.Sprintf("Child pid=%d failed with rc=%d", job.PID, code),
			"job", job.Index, "pid", job.PID, "exit_code", code,
			"start", job.Range.Start, "end", job.Range.End)
	}

	s.opts.Bus.Publish(events.JobExitedEvent{
		Index:     job.Index,
		PID:       job.PID,
		ExitCode:  code,
		State:     string(job.State),
		Runtime:   job.ExitedAt.Sub(job.StartedAt),
		Timestamp: job.ExitedAt,
	})

	if job.State == StateFailed && s.opts.KillOnFail && !s.escalated {
		s.escalated = true
		s.logger.Error("kill-on-fail enabled, terminating remaining children")
		s.markStopped()
		if s.opts.OnFailure != nil {
			go s.opts.OnFailure()
		} else {
			go s.Shutdown(context.Background(), s.opts.FailureGrace)
		}
	}
}

func (s *Supervisor) warnStall(job *Job, now time.Time) {
	silence := now.Sub(job.LastOutputAt)
	job.LastOutputAt = now

	attrs := []any{"job", job.Index, "pid", job.PID, "silence", silence.Round(time.Second)}
	usage, err := ReadUsage(job.PID)
	if err == nil {
		attrs = append(attrs, "cpu", fmt.Sprintf("%.1f%%", usage.CPUPercent), "rss", humanize.IBytes(usage.RSSBytes))
	} else {
		attrs = append(attrs, "cpu", "n/a", "rss", "n/a")
	}
	s.logger.Warn(fmt.Sprintf("Child pid=%d produced no output for %s", job.PID, s.opts.StallGrace), attrs...)

	s.opts.Bus.Publish(events.JobStalledEvent{
		Index:      job.Index,
		PID:        job.PID,
		Silence:    silence,
		CPUPercent: usage.CPUPercent,
		RSSBytes:   usage.RSSBytes,
		Timestamp:  now,
	})
}

// finishReaders drains output still in flight after the last exit. Pipes
// held open by orphaned helpers are closed after drainTimeout.
func (s *Supervisor) finishReaders() {
	done := make(chan struct{})
	go func() {
		s.readers.Wait()
		close(done)
	}()

	timeout := time.After(drainTimeout)
	for {
		select {
		case line := <-s.lines:
			s.handleLine(line)
		case <-timeout:
			for _, job := range s.Jobs() {
				if job.handle != nil {
					job.handle.closeReaders()
				}
			}
			timeout = nil
		case <-done:
			s.drain()
			for _, job := range s.Jobs() {
				if job.handle != nil {
					job.handle.closeReaders()
				}
			}
			return
		}
	}
}

func (s *Supervisor) markStopped() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped.Store(true)
		s.mu.Unlock()
		close(s.stopCh)
	})
}

// Shutdown stops further launches and terminates every live job
// concurrently. Only the first call does work; grace <= 0 uses the
// configured shutdown grace.
func (s *Supervisor) Shutdown(ctx context.Context, grace time.Duration) {
	s.markStopped()
	s.shutdownOnce.Do(func() {
		if grace <= 0 {
			grace = s.opts.ShutdownGrace
		}
		jobs := s.Jobs()

		var wg sync.WaitGroup
		for _, job := range jobs {
			if job.handle == nil {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcome := Terminate(ctx, job.handle, grace, s.logger)
				s.logger.Debug("Terminated child", "job", job.Index, "pid", job.PID, "outcome", outcome.String())
			}()
		}
		wg.Wait()
	})
}

var (
	_ Handle = (*childHandle)(nil)
	_ Handle = (*PIDHandle)(nil)
)
