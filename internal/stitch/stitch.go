// Package stitch joins per-range segment files into a single output.
package stitch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/rendernode/internal/ffmpeg"
)

var (
	// ErrStitchFailed is returned when every concat strategy failed.
	ErrStitchFailed = errors.New("stitch failed")
	// ErrMissingSegments is returned when expected segment files are absent.
	ErrMissingSegments = errors.New("missing segments")
)

const listFileName = "concat_list.txt"

// Engine runs concat strategies until one succeeds.
type Engine struct {
	runner  ffmpeg.Runner
	workDir string
	logger  *slog.Logger
	// OnAttempt, when set, is called after each strategy with its result.
	OnAttempt func(s ffmpeg.Strategy, err error)
}

// NewEngine creates an engine that writes its manifest into workDir.
func NewEngine(runner ffmpeg.Runner, workDir string, logger *slog.Logger) *Engine {
	return &Engine{runner: runner, workDir: workDir, logger: logger}
}

// MissingSegments returns the segments that do not exist on disk.
func MissingSegments(segments []string) []string {
	var missing []string
	for _, seg := range segments {
		if _, err := os.Stat(seg); err != nil {
			missing = append(missing, seg)
		}
	}
	return missing
}

// Stitch joins segments, in order, into target.
func (e *Engine) Stitch(ctx context.Context, segments []string, target string) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: no segments given", ErrMissingSegments)
	}
	if missing := MissingSegments(segments); len(missing) > 0 {
		return fmt.Errorf("%w: %d/%d absent, first %s", ErrMissingSegments, len(missing), len(segments), missing[0])
	}

	listFile, err := e.writeList(segments)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStitchFailed, err)
	}

	var lastErr error
	for _, strategy := range ffmpeg.Strategies {
		if err := ctx.Err(); err != nil {
			return err
		}

		args := ffmpeg.BuildConcatArgs(listFile, target, strategy)
		e.logger.Info("ffmpeg concat", "strategy", strategy.String(), "args", strings.Join(args, " "))

		out, err := e.runner.Run(ctx, e.workDir, args)
		e.logOutput(out, err != nil)
		if e.OnAttempt != nil {
			e.OnAttempt(strategy, err)
		}
		if err == nil {
			e.logger.Info("Stitched segments", "count", len(segments), "target", target, "strategy", strategy.String())
			return nil
		}

		lastErr = err
		e.logger.Warn("ffmpeg concat failed", "strategy", strategy.String(), "error", err)
	}

	return fmt.Errorf("%w after %d strategies: %w", ErrStitchFailed, len(ffmpeg.Strategies), lastErr)
}

// writeList writes the ffconcat manifest and returns its path.
func (e *Engine) writeList(segments []string) (string, error) {
	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(e.workDir, listFileName)

	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, seg := range segments {
		b.WriteString("file '" + escapePath(seg) + "'\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	return path, nil
}

// escapePath quotes a path for the concat demuxer's single-quoted syntax.
func escapePath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

// logOutput replays captured ffmpeg output. Failed runs log at warn or
// above so the reason is visible without debug logging.
func (e *Engine) logOutput(out string, failed bool) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		level, msg := ffmpeg.ParseLogLevel(scanner.Text())
		switch {
		case level >= slog.LevelWarn:
		case failed:
			level = slog.LevelWarn
		default:
			level = slog.LevelDebug
		}
		e.logger.Log(context.Background(), level, msg, "source", "ffmpeg")
	}
}
