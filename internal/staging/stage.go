package staging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/smazurov/rendernode/internal/fsutil"
)

// Mode selects when the project is staged.
type Mode string

// Staging modes.
const (
	ModeAuto   Mode = "auto"   // stage only from UNC or network filesystems
	ModeAlways Mode = "always" // stage whenever scratch is in use
	ModeNever  Mode = "never"
)

// ParseMode parses a mode string, defaulting to ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeAlways, ModeNever:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid stage mode %q (want auto, always or never)", s)
	}
}

const stageAttempts = 3

// retryBackoff is multiplied by the attempt number between tries.
var retryBackoff = 500 * time.Millisecond

// ShouldStage applies mode to path.
func ShouldStage(mode Mode, path string) bool {
	switch mode {
	case ModeAlways:
		return true
	case ModeNever:
		return false
	default:
		return NeedsStaging(path)
	}
}

// Stage copies src into the workspace project directory and returns the
// staged path. On any failure it returns src together with the error so
// the caller can continue with the original location.
func Stage(ctx context.Context, src string, ws *Workspace, logger *slog.Logger) (string, error) {
	if _, err := os.Stat(src); err != nil {
		return src, fmt.Errorf("stage project: %w", err)
	}

	dir := ws.ProjectDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return src, fmt.Errorf("stage project: %w", err)
	}
	dst := filepath.Join(dir, filepath.Base(src))

	if fsutil.SameFile(src, dst) {
		return src, nil
	}

	var lastErr error
	for attempt := 1; attempt <= stageAttempts; attempt++ {
		n, err := fsutil.CopyFile(src, dst)
		if err == nil {
			logger.Info("Staged project locally", "from", src, "to", dst, "size", humanize.IBytes(uint64(n)))
			return dst, nil
		}
		lastErr = err
		logger.Warn("Project staging attempt failed", "attempt", attempt, "of", stageAttempts, "error", err)

		if attempt == stageAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return src, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return src, fmt.Errorf("stage project after %d attempts: %w", stageAttempts, lastErr)
}
