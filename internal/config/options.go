// Package config loads run configuration from CLI flags, RENDERNODE_
// environment variables and a TOML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/rendernode/internal/frames"
	"github.com/smazurov/rendernode/internal/staging"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Options is the complete configuration of one render run. It is built
// once before spawning and passed by value afterwards.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"rendernode.toml"`

	// Render target
	Project         string `help:"Path to .aep/.aepx project" toml:"render.project" env:"PROJECT"`
	Comp            string `help:"Composition name" toml:"render.comp" env:"COMP"`
	RQIndex         int    `flag:"rqindex" help:"Render queue index (-1 = unset)" default:"-1" toml:"render.rqindex" env:"RQINDEX"`
	Output          string `help:"Final output path (pattern or single file)" short:"o" toml:"render.output" env:"OUTPUT"`
	OutputIsPattern bool   `help:"Treat output as an image-sequence pattern" toml:"render.output_is_pattern" env:"OUTPUT_IS_PATTERN"`
	Sound           string `help:"aerender audio, ON or OFF" default:"ON" toml:"render.sound" env:"SOUND"`
	RSTemplate      string `flag:"rs-template" help:"Render settings template" toml:"render.rs_template" env:"RS_TEMPLATE"`
	OMTemplate      string `flag:"om-template" help:"Output module template" toml:"render.om_template" env:"OM_TEMPLATE"`
	ExtraArgs       string `help:"Extra arguments appended to every aerender command" toml:"render.extra_args" env:"EXTRA_ARGS"`

	// Frames
	Start     string `help:"Start frame (inclusive)" toml:"frames.start" env:"START"`
	End       string `help:"End frame (inclusive)" toml:"frames.end" env:"END"`
	Frames    string `help:"Frame spec such as 1-300 or 1-100,150-200" toml:"frames.spec" env:"FRAMES"`
	ChunkSize int    `help:"Select one chunk of --frames of this size" toml:"frames.chunk_size" env:"CHUNK_SIZE"`
	Index     int    `help:"0-based chunk index used with --chunk-size" default:"-1" toml:"frames.index" env:"INDEX"`

	// Concurrency
	Concurrency     int     `help:"Child process count, 0 = auto" toml:"concurrency.workers" env:"CONCURRENCY"`
	MaxConcurrency  int     `help:"Upper bound for auto concurrency" default:"24" toml:"concurrency.max" env:"MAX_CONCURRENCY"`
	RAMPerProcessGB float64 `help:"RAM budget per child for auto concurrency" default:"32" toml:"concurrency.ram_per_process_gb" env:"RAM_PER_PROCESS_GB"`
	MFRThreads      int     `help:"Thread hint for auto concurrency" toml:"concurrency.mfr_threads" env:"MFR_THREADS"`
	DisableMFR      bool    `help:"Force aerender -mfr OFF" toml:"concurrency.disable_mfr" env:"DISABLE_MFR"`
	MFRPercent      int     `help:"Maximum CPU percentage for multi-frame rendering" default:"100" toml:"concurrency.mfr_percent" env:"MFR_PERCENT"`

	// Renderer discovery
	AerenderPath    string `help:"Path to aerender (auto-discovered when empty)" toml:"renderer.aerender_path" env:"AERENDER_PATH"`
	AfterEffectsDir string `help:"After Effects install folder" toml:"renderer.after_effects_dir" env:"AFTER_EFFECTS_DIR"`

	// Scratch
	ScratchRoot  string `help:"Scratch root folder (default: OS temp + /rendernode)" toml:"scratch.root" env:"SCRATCH_ROOT"`
	NoScratch    bool   `help:"Render directly to the final output path" toml:"scratch.disabled" env:"NO_SCRATCH"`
	StageProject string `help:"Stage the project to scratch: auto, always, never" default:"auto" toml:"scratch.stage_project" env:"STAGE_PROJECT"`

	// Supervision
	SpawnDelay    time.Duration `help:"Delay between child launches" default:"2s" toml:"supervisor.spawn_delay" env:"SPAWN_DELAY"`
	ChildGrace    time.Duration `help:"Silence before warning about a child" default:"10s" toml:"supervisor.child_grace" env:"CHILD_GRACE"`
	KillGrace     time.Duration `help:"Grace window before force-killing a child on interrupt" default:"5s" toml:"supervisor.kill_grace" env:"KILL_GRACE"`
	FailureGrace  time.Duration `help:"Grace window before force-killing a child after a failure" default:"2s" toml:"supervisor.failure_grace" env:"FAILURE_GRACE"`
	KillOnFail    bool          `help:"Terminate remaining children when one fails" toml:"supervisor.kill_on_fail" env:"KILL_ON_FAIL"`
	EnvFile       string        `help:"JSON object of environment overrides for children" toml:"supervisor.env_file" env:"ENV_FILE"`
	PIDFile       string        `help:"Write this runner's pid to the given path" toml:"supervisor.pid_file" env:"PID_FILE"`
	ChildPIDsFile string        `flag:"child-pids-file" help:"Children pid file (default: next to --pid-file)" toml:"supervisor.child_pids_file" env:"CHILD_PIDS_FILE"`

	// Affinity
	DisableAffinity bool   `help:"Disable CPU affinity" toml:"affinity.disabled" env:"DISABLE_AFFINITY"`
	NUMAMap         string `flag:"numa-map" help:"NUMA map JSON: {\"node0\": [0,1,...]}" toml:"affinity.numa_map" env:"NUMA_MAP"`

	// Run
	DryRun bool `help:"Print ranges and commands without rendering" toml:"run.dry_run" env:"DRY_RUN"`

	// Metrics
	MetricsAddr     string `help:"Serve Prometheus metrics on this address" toml:"metrics.addr" env:"METRICS_ADDR"`
	MetricsTextfile string `help:"Write Prometheus metrics to this file at exit" toml:"metrics.textfile" env:"METRICS_TEXTFILE"`

	// Logging settings
	LogFile           string `help:"Also write logs to this file" toml:"logging.file" env:"LOG_FILE"`
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingRenderer   string `help:"Child output logging level" toml:"logging.renderer" env:"LOGGING_RENDERER"`
	LoggingSupervisor string `help:"Supervisor logging level" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingOffload    string `help:"Offloader logging level" toml:"logging.offload" env:"LOGGING_OFFLOAD"`
	LoggingStitch     string `help:"Stitch logging level" toml:"logging.stitch" env:"LOGGING_STITCH"`
}

// Range resolves the frame interval to render. Explicit start/end win
// over a frame spec.
func (o Options) Range() (frames.Range, error) {
	start, end := strings.TrimSpace(o.Start), strings.TrimSpace(o.End)
	if start == "" || end == "" {
		if strings.TrimSpace(o.Frames) == "" {
			return frames.Range{}, fmt.Errorf("%w: provide --start and --end, or --frames", ErrInvalidConfig)
		}
		r, err := frames.SelectRange(o.Frames, o.ChunkSize, o.Index)
		if err != nil {
			return frames.Range{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		return r, nil
	}

	s, err := strconv.Atoi(start)
	if err != nil {
		return frames.Range{}, fmt.Errorf("%w: start frame %q", ErrInvalidConfig, o.Start)
	}
	e, err := strconv.Atoi(end)
	if err != nil {
		return frames.Range{}, fmt.Errorf("%w: end frame %q", ErrInvalidConfig, o.End)
	}
	if e < s {
		return frames.Range{}, fmt.Errorf("%w: end frame %d before start frame %d", ErrInvalidConfig, e, s)
	}
	return frames.Range{Start: s, End: e}, nil
}

// Validate checks everything that must hold before any child is spawned.
func (o Options) Validate() error {
	var errs []error
	if strings.TrimSpace(o.Project) == "" {
		errs = append(errs, errors.New("--project is required"))
	}
	if strings.TrimSpace(o.Output) == "" {
		errs = append(errs, errors.New("--output is required"))
	}
	if _, err := o.Range(); err != nil {
		errs = append(errs, err)
	}
	if o.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("--concurrency must be >= 0, got %d", o.Concurrency))
	}
	if _, err := staging.ParseMode(o.StageProject); err != nil {
		errs = append(errs, err)
	}
	if o.SpawnDelay < 0 || o.ChildGrace < 0 || o.KillGrace < 0 || o.FailureGrace < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ModuleLevels returns the per-module logging overrides that are set.
func (o Options) ModuleLevels() map[string]string {
	levels := make(map[string]string)
	for module, level := range map[string]string{
		"renderer":   o.LoggingRenderer,
		"supervisor": o.LoggingSupervisor,
		"offload":    o.LoggingOffload,
		"stitch":     o.LoggingStitch,
	} {
		if level != "" {
			levels[module] = level
		}
	}
	return levels
}
