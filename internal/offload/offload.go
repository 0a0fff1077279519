// Package offload copies finished render outputs from local scratch to
// their final directory while the render is still running.
package offload

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"

	"github.com/smazurov/rendernode/internal/fsutil"
)

// Matcher decides which file names are render outputs.
type Matcher interface {
	Match(name string) bool
}

// Offloader mirrors matching files from a local directory to a destination.
type Offloader struct {
	localDir string
	destDir  string
	matcher  Matcher
	foldCase bool
	poll     time.Duration
	debounce time.Duration
	onCopy   func(name string, size int64)
	logger   *slog.Logger

	mu     sync.Mutex
	copied map[string]struct{}
}

// Option configures an Offloader.
type Option func(*Offloader)

// WithPollInterval sets the pass interval. Default is 750ms.
func WithPollInterval(d time.Duration) Option {
	return func(o *Offloader) {
		o.poll = d
	}
}

// WithDebounce sets how long filesystem events are coalesced before an
// early pass. Default is 250ms.
func WithDebounce(d time.Duration) Option {
	return func(o *Offloader) {
		o.debounce = d
	}
}

// WithFoldCase overrides case-insensitive name tracking, which otherwise
// follows the host filesystem.
func WithFoldCase(fold bool) Option {
	return func(o *Offloader) {
		o.foldCase = fold
	}
}

// WithOnCopy registers a callback invoked after each successful copy.
func WithOnCopy(fn func(name string, size int64)) Option {
	return func(o *Offloader) {
		o.onCopy = fn
	}
}

// New creates an offloader from localDir to destDir.
func New(localDir, destDir string, matcher Matcher, logger *slog.Logger, opts ...Option) *Offloader {
	o := &Offloader{
		localDir: localDir,
		destDir:  destDir,
		matcher:  matcher,
		foldCase: fsutil.CaseInsensitiveFS(),
		poll:     750 * time.Millisecond,
		debounce: 250 * time.Millisecond,
		logger:   logger,
		copied:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Copied returns the number of files offloaded so far.
func (o *Offloader) Copied() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.copied)
}

// Pass copies every matching file not yet offloaded and returns how many
// were copied. Failed copies are left for the next pass.
func (o *Offloader) Pass() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries, err := os.ReadDir(o.localDir)
	if err != nil {
		o.logger.Debug("Offload listing failed", "dir", o.localDir, "error", err)
		return 0
	}
	if err := os.MkdirAll(o.destDir, 0o755); err != nil {
		o.logger.Debug("Offload destination unavailable", "dir", o.destDir, "error", err)
		return 0
	}

	count := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !o.matcher.Match(name) {
			continue
		}
		key := o.key(name)
		if _, done := o.copied[key]; done {
			continue
		}

		n, err := fsutil.CopyFile(filepath.Join(o.localDir, name), filepath.Join(o.destDir, name))
		if err != nil {
			o.logger.Debug("Offload copy failed", "file", name, "error", err)
			continue
		}
		o.copied[key] = struct{}{}
		count++
		o.logger.Debug("Offloaded", "file", name, "size", humanize.IBytes(uint64(n)))
		if o.onCopy != nil {
			o.onCopy(name, n)
		}
	}
	return count
}

// Run passes on every tick, or sooner when files appear in the local
// directory, until ctx is cancelled. One final pass runs before return.
func (o *Offloader) Run(ctx context.Context) {
	o.logger.Info("Offloader started", "from", o.localDir, "to", o.destDir)
	defer o.logger.Info("Offloader stopped", "copied", o.Copied())

	var events <-chan fsnotify.Event
	var errs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := watcher.Add(o.localDir); addErr != nil {
			o.logger.Debug("Offload watch unavailable, polling only", "error", addErr)
		} else {
			events, errs = watcher.Events, watcher.Errors
		}
		defer watcher.Close()
	} else {
		o.logger.Debug("Offload watcher unavailable, polling only", "error", err)
	}

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			o.Pass()
			return

		case <-ticker.C:
			o.Pass()

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(o.debounce)
			timerC = timer.C

		case <-timerC:
			o.Pass()
			timerC = nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			o.logger.Debug("Offload watcher error", "error", err)
		}
	}
}

func (o *Offloader) key(name string) string {
	if o.foldCase {
		return strings.ToLower(name)
	}
	return name
}
