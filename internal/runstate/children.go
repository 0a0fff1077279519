package runstate

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/smazurov/rendernode/internal/events"
)

// ChildRecorder appends one "pid=<n> index=<i> frames=<s>-<e>" line per
// launched child.
type ChildRecorder struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
	f  *os.File
}

// NewChildRecorder truncates path and returns a recorder writing to it.
func NewChildRecorder(path string, logger *slog.Logger) (*ChildRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open children pid file: %w", err)
	}
	return &ChildRecorder{path: path, logger: logger, f: f}, nil
}

// Path returns the file being written.
func (r *ChildRecorder) Path() string { return r.path }

// Record appends the launch to the file.
func (r *ChildRecorder) Record(e events.JobLaunchedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return os.ErrClosed
	}
	_, err := fmt.Fprintf(r.f, "pid=%d index=%d frames=%d-%d\n", e.PID, e.Index, e.Start, e.End)
	return err
}

// Subscribe records every JobLaunchedEvent published on bus.
func (r *ChildRecorder) Subscribe(bus *events.Bus) func() {
	return bus.Subscribe(func(e events.JobLaunchedEvent) {
		if err := r.Record(e); err != nil {
			r.logger.Warn("Failed to record child pid", "pid", e.PID, "error", err)
		}
	})
}

// Close closes the file. The file itself is left for the stop tool.
func (r *ChildRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
