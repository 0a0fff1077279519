package render

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/smazurov/rendernode/internal/config"
	"github.com/smazurov/rendernode/internal/ffmpeg"
	"github.com/smazurov/rendernode/internal/frames"
	"github.com/smazurov/rendernode/internal/output"
	"github.com/smazurov/rendernode/internal/process"
	"github.com/smazurov/rendernode/internal/renderer"
	"github.com/smazurov/rendernode/internal/sizing"
	"github.com/smazurov/rendernode/internal/staging"
)

// placeholderExecutable stands in for aerender in dry runs on hosts
// where it is not installed.
const placeholderExecutable = "aerender"

// Env holds the host lookups a plan depends on.
type Env struct {
	LocateRenderer func(explicit, afterEffectsDir string, logger *slog.Logger) (string, error)
	LocateFFmpeg   func() (string, error)
	Detect         func(ctx context.Context, logger *slog.Logger) sizing.Snapshot
}

// DefaultEnv looks at the real host.
func DefaultEnv() Env {
	return Env{
		LocateRenderer: renderer.Locate,
		LocateFFmpeg:   ffmpeg.Locate,
		Detect:         sizing.Detect,
	}
}

// Plan is everything decided before the first child is spawned.
type Plan struct {
	RunID    string
	Range    frames.Range
	Decision sizing.Decision
	Workers  int
	Ranges   []frames.Range

	FinalOutput string
	FinalDir    string
	Sequence    bool

	// Segmented is set when a single-file output is rendered as one
	// segment per range and stitched afterwards.
	Segmented  bool
	FFmpegPath string
	SegmentDir string
	Segments   []string

	UseScratch  bool
	Workspace   *staging.Workspace
	LocalOutput string

	Affinity []sizing.CPUBlock
	Command  renderer.Command
}

// BuildPlan validates opts and decides workers, ranges, outputs and
// affinity. It has no side effects on disk.
func BuildPlan(ctx context.Context, opts config.Options, env Env, logger *slog.Logger) (*Plan, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	r, err := opts.Range()
	if err != nil {
		return nil, err
	}

	exe, err := env.LocateRenderer(opts.AerenderPath, opts.AfterEffectsDir, logger)
	if err != nil {
		if !opts.DryRun {
			return nil, err
		}
		logger.Warn("aerender not found, dry run uses a placeholder", "error", err)
		exe = placeholderExecutable
	}

	var extra []string
	if strings.TrimSpace(opts.ExtraArgs) != "" {
		extra, err = process.ParseCommand(opts.ExtraArgs)
		if err != nil {
			return nil, fmt.Errorf("%w: extra args: %w", config.ErrInvalidConfig, err)
		}
	}

	finalOutput, err := filepath.Abs(opts.Output)
	if err != nil {
		finalOutput = opts.Output
	}

	p := &Plan{
		RunID:       staging.NewRunID(),
		Range:       r,
		FinalOutput: finalOutput,
		FinalDir:    filepath.Dir(finalOutput),
		Sequence:    opts.OutputIsPattern || output.IsSequence(finalOutput),
		UseScratch:  !opts.NoScratch,
		Command: renderer.Command{
			Executable: exe,
			Project:    opts.Project,
			Comp:       opts.Comp,
			RQIndex:    opts.RQIndex,
			Sound:      opts.Sound,
			RSTemplate: opts.RSTemplate,
			OMTemplate: opts.OMTemplate,
			DisableMFR: opts.DisableMFR,
			MFRPercent: opts.MFRPercent,
			Extra:      extra,
		},
	}

	p.Decision = decide(ctx, opts, r.Len(), env, logger)
	p.Workers = p.Decision.Workers

	if r.Len() > 1 && !p.Sequence && p.Workers > 1 {
		ff, err := env.LocateFFmpeg()
		if err != nil {
			logger.Warn("Single-file output needs ffmpeg to stitch segments, falling back to one worker",
				"output", finalOutput, "workers", p.Workers, "error", err)
			p.Workers = 1
		} else {
			p.Segmented = true
			p.FFmpegPath = ff
		}
	}

	p.Ranges = frames.Split(r.Start, r.End, p.Workers)
	p.Workers = len(p.Ranges)

	p.LocalOutput = finalOutput
	if p.UseScratch {
		p.Workspace = staging.At(opts.ScratchRoot, p.RunID)
		p.LocalOutput = p.Workspace.OutputPath(finalOutput)
	}

	if p.Segmented {
		if p.UseScratch {
			p.SegmentDir = p.Workspace.SegmentDir()
		} else {
			p.SegmentDir = filepath.Join(p.FinalDir, ".rendernode_segments_"+p.RunID)
		}
		p.Segments = SegmentPaths(p.SegmentDir, finalOutput, p.Ranges)
	}

	if !opts.DisableAffinity && opts.NUMAMap != "" {
		pools := sizing.PoolsFromMap(config.LoadNUMAMap(opts.NUMAMap, logger))
		p.Affinity = sizing.BuildAffinity(p.Workers, pools)
	}

	return p, nil
}

func decide(ctx context.Context, opts config.Options, total int, env Env, logger *slog.Logger) sizing.Decision {
	in := sizing.Inputs{
		Requested:      opts.Concurrency,
		MaxWorkers:     opts.MaxConcurrency,
		RAMPerWorkerGB: opts.RAMPerProcessGB,
		ThreadHint:     opts.MFRThreads,
		MFRDisabled:    opts.DisableMFR,
		TotalFrames:    total,
	}
	if in.Requested <= 0 && total > 1 {
		snap := env.Detect(ctx, logger)
		in.LogicalCPUs = snap.LogicalCPUs
		in.RAMGB = snap.TotalRAMGB
	}
	return sizing.Plan(in)
}

// SegmentPaths names one segment per range after the final output:
// <stem>__part_<NNN>_<start>-<end><ext>, numbered from 1.
func SegmentPaths(dir, finalOutput string, ranges []frames.Range) []string {
	ext := filepath.Ext(finalOutput)
	stem := strings.TrimSuffix(filepath.Base(finalOutput), ext)
	if stem == "" {
		stem = "render"
	}
	paths := make([]string, len(ranges))
	for i, r := range ranges {
		paths[i] = filepath.Join(dir, fmt.Sprintf("%s__part_%03d_%d-%d%s", stem, i+1, r.Start, r.End, ext))
	}
	return paths
}

// OutputFor returns the path child i renders into.
func (p *Plan) OutputFor(i int) string {
	if p.Segmented {
		return p.Segments[i]
	}
	return p.LocalOutput
}

// Specs returns one process spec per range, in range order.
func (p *Plan) Specs() []process.Spec {
	specs := make([]process.Spec, len(p.Ranges))
	for i, r := range p.Ranges {
		out := p.OutputFor(i)
		specs[i] = process.Spec{
			Index:  i,
			Range:  r,
			Output: out,
			Args:   p.Command.Args(r, out),
		}
		if i < len(p.Affinity) {
			specs[i].Affinity = p.Affinity[i]
		}
	}
	return specs
}

// Log writes the sizing decision and frame ranges.
func (p *Plan) Log(logger *slog.Logger) {
	d := p.Decision
	if d.Auto {
		logger.Info("Auto concurrency",
			"workers", d.Workers,
			"usable_ram_gb", fmt.Sprintf("%.1f", d.UsableRAMGB),
			"max_by_ram", d.MaxByRAM,
			"threads_per_worker", d.ThreadsPerWorker,
			"max_by_threads", d.MaxByThreads)
	}
	if p.Segmented {
		logger.Info("Single-file output, rendering segments and stitching with ffmpeg",
			"output", p.FinalOutput, "segments", len(p.Segments), "ffmpeg", p.FFmpegPath)
	}

	ranges := make([]string, len(p.Ranges))
	for i, r := range p.Ranges {
		ranges[i] = r.String()
	}
	logger.Info("Frame ranges", "run_id", p.RunID, "workers", p.Workers, "ranges", strings.Join(ranges, " "))
}
