// Package runstate persists the identifiers an external stop tool needs:
// the runner pid file and the per-child pid file.
package runstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

const (
	childrenFileName = "children_pids.txt"
	stopLogName      = "stop.log"
)

// ErrAlreadyRunning is returned when another runner holds the pid file lock.
var ErrAlreadyRunning = errors.New("another runner holds the pid file")

// PIDFile is a runner pid file guarded by an exclusive lock on a sibling
// "<path>.lock" file.
type PIDFile struct {
	path string
	lock *flock.Flock
}

// AcquirePIDFile locks path and writes the current pid into it.
func AcquirePIDFile(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create pid file dir: %w", err)
	}

	lock := flock.New(lockPath(path))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return &PIDFile{path: path, lock: lock}, nil
}

// Path returns the pid file path.
func (p *PIDFile) Path() string { return p.path }

// Release removes the pid file and drops the lock.
func (p *PIDFile) Release() error {
	var errs []error
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := p.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	_ = os.Remove(lockPath(p.path))
	return errors.Join(errs...)
}

// Locked reports whether a live runner currently holds the lock for path.
func Locked(path string) bool {
	lock := flock.New(lockPath(path))
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
	}
	return !ok
}

// ReadPID parses the trimmed integer stored at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}

// DefaultChildrenPath returns the children pid file next to pidFile.
func DefaultChildrenPath(pidFile string) string {
	return filepath.Join(filepath.Dir(pidFile), childrenFileName)
}

// DefaultStopLogPath returns the stop log next to pidFile.
func DefaultStopLogPath(pidFile string) string {
	return filepath.Join(filepath.Dir(pidFile), stopLogName)
}

func lockPath(path string) string {
	return path + ".lock"
}
