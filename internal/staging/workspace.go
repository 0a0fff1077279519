// Package staging manages the per-run scratch workspace and copies
// projects off slow storage before rendering.
package staging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	projectDirName = "_project"
	segmentDirName = "_segments"
)

// Workspace is a run-scoped directory under the scratch root.
type Workspace struct {
	Root  string
	RunID string
	Dir   string
}

// NewRunID returns a short random identifier for one orchestrator run.
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// DefaultRoot is the scratch root used when none is configured.
func DefaultRoot() string {
	return filepath.Join(os.TempDir(), "rendernode")
}

// At returns the workspace <root>/job_<runID> without touching disk.
// An empty root uses DefaultRoot.
func At(root, runID string) *Workspace {
	if root == "" {
		root = DefaultRoot()
	}
	return &Workspace{
		Root:  root,
		RunID: runID,
		Dir:   filepath.Join(root, "job_"+runID),
	}
}

// Create makes <root>/job_<runID>.
func Create(root, runID string) (*Workspace, error) {
	ws := At(root, runID)
	if err := ws.Create(); err != nil {
		return nil, err
	}
	return ws, nil
}

// Create makes the workspace directory.
func (w *Workspace) Create() error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	return nil
}

// ProjectDir is where staged projects are copied.
func (w *Workspace) ProjectDir() string {
	return filepath.Join(w.Dir, projectDirName)
}

// SegmentDir holds per-range segment files. It is a subfolder so the
// offloader, which only lists Dir, never picks up partial segments.
func (w *Workspace) SegmentDir() string {
	return filepath.Join(w.Dir, segmentDirName)
}

// OutputPath is the scratch location of a final output file name.
func (w *Workspace) OutputPath(finalPath string) string {
	return filepath.Join(w.Dir, filepath.Base(finalPath))
}

// Remove deletes the workspace directory. Failures are logged only.
func (w *Workspace) Remove(logger *slog.Logger) {
	if w == nil {
		return
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		logger.Warn("Failed to remove workspace", "dir", w.Dir, "error", err)
		return
	}
	logger.Debug("Removed workspace", "dir", w.Dir)
}
