// Package render runs one orchestrated render: plan the ranges, spawn
// and supervise one aerender per range, offload finished files, stitch
// segments and clean up.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/smazurov/rendernode/internal/config"
	"github.com/smazurov/rendernode/internal/events"
	"github.com/smazurov/rendernode/internal/ffmpeg"
	"github.com/smazurov/rendernode/internal/fsutil"
	"github.com/smazurov/rendernode/internal/logging"
	"github.com/smazurov/rendernode/internal/metrics"
	"github.com/smazurov/rendernode/internal/metrics/exporters"
	"github.com/smazurov/rendernode/internal/offload"
	"github.com/smazurov/rendernode/internal/output"
	"github.com/smazurov/rendernode/internal/process"
	"github.com/smazurov/rendernode/internal/renderer"
	"github.com/smazurov/rendernode/internal/runstate"
	"github.com/smazurov/rendernode/internal/staging"
	"github.com/smazurov/rendernode/internal/stitch"
)

// Exit codes returned by Run.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitStitch      = 2
	ExitInterrupted = 130
)

// Orchestrator runs a render described by config.Options.
type Orchestrator struct {
	opts      config.Options
	env       Env
	newRunner func(path string) ffmpeg.Runner
	bus       *events.Bus
	logger    *slog.Logger
}

// New creates an orchestrator for opts against the real host.
func New(opts config.Options, bus *events.Bus, logger *slog.Logger) *Orchestrator {
	if bus == nil {
		bus = events.New()
	}
	return &Orchestrator{
		opts:      opts,
		env:       DefaultEnv(),
		newRunner: func(path string) ffmpeg.Runner { return ffmpeg.ExecRunner{Path: path} },
		bus:       bus,
		logger:    logger,
	}
}

// Run executes the render and returns the process exit code. Cancelling
// ctx is treated as an interrupt.
func (o *Orchestrator) Run(ctx context.Context) int {
	started := time.Now()
	o.logger.Info(fmt.Sprintf("Runner pid=%d", os.Getpid()), "pid", os.Getpid())

	plan, err := BuildPlan(ctx, o.opts, o.env, o.logger)
	if err != nil {
		o.logger.Error("Cannot start render", "error", err)
		return ExitFailure
	}
	plan.Log(o.logger)

	if o.opts.DryRun {
		for _, spec := range plan.Specs() {
			o.logger.Info(fmt.Sprintf("DRY RUN child[%d]: %s", spec.Index, strings.Join(spec.Args, " ")))
		}
		return ExitOK
	}

	unsubscribe := metrics.Subscribe(o.bus)
	defer unsubscribe()
	metrics.SetWorkers(plan.Workers)

	if o.opts.MetricsAddr != "" {
		metricsCtx, stopMetrics := context.WithCancel(context.WithoutCancel(ctx))
		defer stopMetrics()
		go func() {
			if err := exporters.Serve(metricsCtx, o.opts.MetricsAddr, o.logger); err != nil {
				o.logger.Warn("Metrics server failed", "addr", o.opts.MetricsAddr, "error", err)
			}
		}()
	}

	code, failures := o.execute(ctx, plan)

	finished := events.RunFinishedEvent{
		RunID:     plan.RunID,
		ExitCode:  code,
		Failures:  failures,
		Duration:  time.Since(started),
		Timestamp: time.Now(),
	}
	o.bus.Publish(finished)
	metrics.ObserveRun(finished)

	if o.opts.MetricsTextfile != "" {
		if err := exporters.WriteTextfile(o.opts.MetricsTextfile); err != nil {
			o.logger.Warn("Failed to write metrics textfile", "path", o.opts.MetricsTextfile, "error", err)
		}
	}

	summary := metrics.GetSummary()
	o.logger.Info(fmt.Sprintf("Run complete rc=%d", code),
		"run_id", plan.RunID,
		"failures", failures,
		"duration", finished.Duration.Round(time.Second),
		"offloaded", summary.OffloadedFiles,
		"offloaded_bytes", humanize.IBytes(uint64(summary.OffloadedBytes)))
	return code
}

// execute performs a non-dry run and returns the exit code and the
// number of failed jobs.
func (o *Orchestrator) execute(ctx context.Context, plan *Plan) (int, int) {
	if err := os.MkdirAll(plan.FinalDir, 0o755); err != nil {
		o.logger.Error("Cannot create output directory", "dir", plan.FinalDir, "error", err)
		return ExitFailure, 0
	}

	release, err := o.recordRunState()
	if err != nil {
		o.logger.Error("Cannot record run state", "error", err)
		return ExitFailure, 0
	}
	defer release()

	if plan.UseScratch {
		if err := plan.Workspace.Create(); err != nil {
			o.logger.Error("Cannot create scratch workspace", "error", err)
			return ExitFailure, 0
		}
		o.logger.Info("Scratch enabled", "dir", plan.Workspace.Dir)
		o.stageProject(ctx, plan)
	}

	if plan.Segmented {
		if err := prepareSegments(plan, o.logger); err != nil {
			o.logger.Error("Cannot prepare segment directory", "dir", plan.SegmentDir, "error", err)
			plan.Workspace.Remove(o.logger)
			return ExitFailure, 0
		}
	}

	childEnv := o.childEnv()

	var sc *ShutdownContext
	sup := process.NewSupervisor(process.Options{
		Env:           childEnv,
		SpawnDelay:    o.opts.SpawnDelay,
		StallGrace:    o.opts.ChildGrace,
		KillOnFail:    o.opts.KillOnFail,
		ShutdownGrace: o.opts.KillGrace,
		FailureGrace:  o.opts.FailureGrace,
		OnFailure:     func() { sc.Shutdown("kill-on-fail", false) },
		OnLine:        func(l process.Line) { metrics.ObserveLine(l.Stream) },
		ApplyAffinity: len(plan.Affinity) > 0,
		OutputLogger:  logging.GetLogger("renderer"),
		LogParser:     renderer.ParseLogLevel,
		Bus:           o.bus,
	}, logging.GetLogger("supervisor"))
	sc = NewShutdownContext(o.logger, o.opts.KillGrace, o.opts.FailureGrace, sup, plan.Workspace)

	if plan.UseScratch {
		o.startOffloader(ctx, plan, sc)
	}

	runDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			sc.Shutdown("interrupted", true)
		case <-runDone:
		}
	}()
	defer close(runDone)

	res := sup.Run(context.WithoutCancel(ctx), plan.Specs())
	if sc.Requested() {
		<-sc.Done()
	}

	switch {
	case res.Failures > 0:
		o.logger.Error("Render failed", "failures", res.Failures, "jobs", len(res.Jobs))
		sc.StopOffloader()
		plan.Workspace.Remove(o.logger)
		return ExitFailure, res.Failures
	case sc.Interrupted() || res.Stopped:
		return ExitInterrupted, 0
	}

	if plan.Segmented {
		if code := o.stitch(ctx, plan); code != ExitOK {
			sc.StopOffloader()
			return code, 0
		}
	}

	sc.StopOffloader()
	if plan.UseScratch && !plan.Sequence {
		o.copyFinal(plan)
	}
	plan.Workspace.Remove(o.logger)
	return ExitOK, 0
}

// recordRunState acquires the runner pid file and opens the children
// pid file when configured. The returned func releases both.
func (o *Orchestrator) recordRunState() (func(), error) {
	if o.opts.PIDFile == "" && o.opts.ChildPIDsFile == "" {
		return func() {}, nil
	}

	var pidFile *runstate.PIDFile
	if o.opts.PIDFile != "" {
		var err error
		pidFile, err = runstate.AcquirePIDFile(o.opts.PIDFile)
		if err != nil {
			return nil, err
		}
	}

	childPath := o.opts.ChildPIDsFile
	if childPath == "" {
		childPath = runstate.DefaultChildrenPath(o.opts.PIDFile)
	}
	recorder, err := runstate.NewChildRecorder(childPath, o.logger)
	if err != nil {
		o.logger.Warn("Children pid file unavailable", "path", childPath, "error", err)
	}

	var unsubscribe func()
	if recorder != nil {
		unsubscribe = recorder.Subscribe(o.bus)
	}

	return func() {
		if unsubscribe != nil {
			unsubscribe()
			_ = recorder.Close()
		}
		if pidFile != nil {
			if err := pidFile.Release(); err != nil {
				o.logger.Warn("Failed to release pid file", "path", pidFile.Path(), "error", err)
			}
		}
	}, nil
}

func (o *Orchestrator) stageProject(ctx context.Context, plan *Plan) {
	mode, _ := staging.ParseMode(o.opts.StageProject)
	if !staging.ShouldStage(mode, plan.Command.Project) {
		return
	}
	staged, err := staging.Stage(ctx, plan.Command.Project, plan.Workspace, o.logger)
	if err != nil {
		o.logger.Warn("Project staging failed, rendering from the original location",
			"project", plan.Command.Project, "error", err)
	}
	plan.Command.Project = staged
}

// prepareSegments creates the segment directory and removes segment
// files left over from an earlier run.
func prepareSegments(plan *Plan, logger *slog.Logger) error {
	if err := os.MkdirAll(plan.SegmentDir, 0o755); err != nil {
		return err
	}
	for _, seg := range plan.Segments {
		if err := os.Remove(seg); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Could not remove existing segment", "path", seg, "error", err)
		}
	}
	logger.Info("Segment render mode", "segments", len(plan.Segments), "dir", plan.SegmentDir)
	return nil
}

// childEnv is our environment with the env file overrides applied.
func (o *Orchestrator) childEnv() []string {
	env := os.Environ()
	if o.opts.EnvFile == "" {
		return env
	}
	overrides, err := config.LoadEnvOverrides(o.opts.EnvFile)
	if err != nil {
		o.logger.Warn("Ignoring env overrides", "path", o.opts.EnvFile, "error", err)
		return env
	}
	// exec keeps the last value of a duplicated key.
	for _, k := range slices.Sorted(maps.Keys(overrides)) {
		env = append(env, k+"="+overrides[k])
	}
	o.logger.Debug("Applied env overrides", "path", o.opts.EnvFile, "count", len(overrides))
	return env
}

func (o *Orchestrator) startOffloader(ctx context.Context, plan *Plan, sc *ShutdownContext) {
	off := offload.New(plan.Workspace.Dir, plan.FinalDir, output.NewMatcher(plan.FinalOutput),
		logging.GetLogger("offload"),
		offload.WithOnCopy(func(name string, size int64) {
			o.bus.Publish(events.FileOffloadedEvent{Name: name, Size: size, Timestamp: time.Now()})
		}))

	offloadCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		off.Run(offloadCtx)
	}()
	sc.SetOffloader(stop, done)
}

// stitch joins the segments into the local output. Segments and the
// workspace are kept when it fails.
func (o *Orchestrator) stitch(ctx context.Context, plan *Plan) int {
	logger := logging.GetLogger("stitch")

	engine := stitch.NewEngine(o.newRunner(plan.FFmpegPath), plan.SegmentDir, logger)
	engine.OnAttempt = func(s ffmpeg.Strategy, err error) {
		o.bus.Publish(events.StitchAttemptEvent{Strategy: s.String(), OK: err == nil, Timestamp: time.Now()})
	}

	logger.Info("Stitching segments", "count", len(plan.Segments), "target", plan.LocalOutput)
	err := engine.Stitch(ctx, plan.Segments, plan.LocalOutput)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		logger.Warn("Stitch interrupted", "error", err)
		return ExitInterrupted
	case errors.Is(err, stitch.ErrMissingSegments):
		logger.Error("Segments missing, leaving scratch intact for debugging", "error", err, "dir", plan.SegmentDir)
		return ExitStitch
	default:
		logger.Error("Stitch failed, leaving segments for debugging", "error", err, "dir", plan.SegmentDir)
		return ExitStitch
	}

	if err := os.RemoveAll(plan.SegmentDir); err != nil {
		logger.Debug("Failed to remove segment directory", "dir", plan.SegmentDir, "error", err)
	}
	return ExitOK
}

// copyFinal copies a single-file output from scratch to its final path.
func (o *Orchestrator) copyFinal(plan *Plan) {
	if _, err := os.Stat(plan.LocalOutput); err != nil {
		o.logger.Warn("No output to copy", "path", plan.LocalOutput, "error", err)
		return
	}
	n, err := fsutil.CopyFile(plan.LocalOutput, plan.FinalOutput)
	if err != nil {
		o.logger.Warn("Final single-file copy failed", "from", plan.LocalOutput, "to", plan.FinalOutput, "error", err)
		return
	}
	o.logger.Info("Copied output", "to", plan.FinalOutput, "size", humanize.IBytes(uint64(n)))
}
