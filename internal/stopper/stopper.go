// Package stopper terminates a running render and all of its children
// from another process, using the pid file, children pid file and log
// left behind by the runner.
package stopper

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/rendernode/internal/process"
	"github.com/smazurov/rendernode/internal/runstate"
)

// DefaultGrace is the per-tree grace window before a forced kill.
const DefaultGrace = 2 * time.Second

var (
	pidPattern      = regexp.MustCompile(`(?i)pid\s*=\s*(\d+)`)
	launchedPattern = regexp.MustCompile(`Launched child\[\d+\]\s+pid=(\d+)`)
)

// Options configures Stop.
type Options struct {
	PIDFile string
	// ChildPIDsFile defaults to children_pids.txt next to PIDFile.
	ChildPIDsFile string
	// LogFile is the runner's log; optional.
	LogFile string
	// StopLog defaults to stop.log next to PIDFile.
	StopLog string
	Grace   time.Duration
	Logger  *slog.Logger
}

// Termination records how one target tree was stopped.
type Termination struct {
	PID     int
	Tree    []int
	Outcome process.Outcome
}

// Report describes what Stop found and did.
type Report struct {
	RunnerPID    int // 0 when unknown
	RunnerLocked bool
	Targets      []int
	Terminated   []Termination
}

// Stop terminates every gathered pid with its live descendants, children
// in ascending pid order first and the runner last. Missing files are
// tolerated. The children pid file is removed afterwards.
func Stop(ctx context.Context, opts Options) (Report, error) {
	if opts.PIDFile == "" {
		return Report{}, errors.New("pid file is required")
	}
	if opts.ChildPIDsFile == "" {
		opts.ChildPIDsFile = runstate.DefaultChildrenPath(opts.PIDFile)
	}
	if opts.StopLog == "" {
		opts.StopLog = runstate.DefaultStopLogPath(opts.PIDFile)
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var report Report
	pids := make(map[int]bool)

	if pid, err := runstate.ReadPID(opts.PIDFile); err == nil && pid > 1 {
		report.RunnerPID = pid
		pids[pid] = true
	} else if err != nil && !os.IsNotExist(err) {
		logger.Warn("Ignoring unreadable pid file", "path", opts.PIDFile, "error", err)
	}
	report.RunnerLocked = runstate.Locked(opts.PIDFile)

	for _, pid := range pidsFromChildFile(opts.ChildPIDsFile) {
		pids[pid] = true
	}
	if opts.LogFile != "" {
		for _, pid := range pidsFromLog(opts.LogFile) {
			pids[pid] = true
		}
	}
	delete(pids, os.Getpid())

	for pid := range pids {
		report.Targets = append(report.Targets, pid)
	}
	slices.Sort(report.Targets)

	targets := "(none)"
	if len(report.Targets) > 0 {
		strs := make([]string, len(report.Targets))
		for i, pid := range report.Targets {
			strs[i] = strconv.Itoa(pid)
		}
		targets = strings.Join(strs, ", ")
	}
	appendStopLog(opts.StopLog, "Stop requested. Target PIDs: "+targets, logger)
	logger.Info("Stopping render", "targets", report.Targets, "runner", report.RunnerPID, "runner_locked", report.RunnerLocked)

	order := slices.DeleteFunc(slices.Clone(report.Targets), func(pid int) bool { return pid == report.RunnerPID })
	if report.RunnerPID > 1 && pids[report.RunnerPID] {
		order = append(order, report.RunnerPID)
	}

	for _, pid := range order {
		h := process.NewPIDHandle(pid)
		outcome := process.Terminate(ctx, h, opts.Grace, logger)
		report.Terminated = append(report.Terminated, Termination{PID: pid, Tree: h.Tree(), Outcome: outcome})
		appendStopLog(opts.StopLog, fmt.Sprintf("pid=%d tree=%v outcome=%s", pid, h.Tree(), outcome), logger)
	}

	if err := os.Remove(opts.ChildPIDsFile); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove children pid file", "path", opts.ChildPIDsFile, "error", err)
	}
	return report, nil
}

// pidsFromChildFile reads pid=<n> tokens and bare numeric lines.
func pidsFromChildFile(path string) []int {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	pids := matchPIDs(pidPattern, data)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if pid, err := strconv.Atoi(strings.TrimSpace(sc.Text())); err == nil && pid > 1 {
			pids = append(pids, pid)
		}
	}
	return pids
}

// pidsFromLog reads "Launched child[i] pid=<n>" lines and any pid=<n>.
func pidsFromLog(path string) []int {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return append(matchPIDs(launchedPattern, data), matchPIDs(pidPattern, data)...)
}

func matchPIDs(rx *regexp.Regexp, data []byte) []int {
	var pids []int
	for _, m := range rx.FindAllSubmatch(data, -1) {
		if pid, err := strconv.Atoi(string(m[1])); err == nil && pid > 1 {
			pids = append(pids, pid)
		}
	}
	return pids
}

func appendStopLog(path, msg string, logger *slog.Logger) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Debug("Cannot create stop log dir", "path", path, "error", err)
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Debug("Cannot open stop log", "path", path, "error", err)
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "[%s] %s\n", time.Now().Format(time.DateTime), msg)
}
