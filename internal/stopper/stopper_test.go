//go:build unix

package stopper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/rendernode/internal/process"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startSleeper starts a sleep process reaped in the background and
// returns its pid plus a channel closed once it has exited.
func startSleeper(t *testing.T) (int, <-chan struct{}) {
	t.Helper()
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		<-done
	})
	return cmd.Process.Pid, done
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStopKillsChildrenBeforeRunner(t *testing.T) {
	dir := t.TempDir()
	runner, runnerDone := startSleeper(t)
	childA, doneA := startSleeper(t)
	childB, doneB := startSleeper(t)
	childC, doneC := startSleeper(t)

	pidFile := filepath.Join(dir, "runner.pid")
	logFile := filepath.Join(dir, "render.log")
	writeFile(t, pidFile, fmt.Sprintf("%d\n", runner))
	writeFile(t, filepath.Join(dir, "children_pids.txt"),
		fmt.Sprintf("pid=%d index=0 frames=1-10\n%d\n", childB, childA))
	writeFile(t, logFile,
		fmt.Sprintf("level=INFO msg=\"Launched child[2] pid=%d frames=21-30\"\nnot a pid line\npid=1\n", childC))

	report, err := Stop(context.Background(), Options{
		PIDFile: pidFile,
		LogFile: logFile,
		Grace:   time.Second,
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	children := []int{childA, childB, childC}
	slices.Sort(children)
	wantOrder := append(slices.Clone(children), runner)

	var gotOrder []int
	for _, term := range report.Terminated {
		gotOrder = append(gotOrder, term.PID)
		if term.Outcome == process.AlreadyExited {
			t.Errorf("pid %d reported already exited", term.PID)
		}
	}
	if !reflect.DeepEqual(gotOrder, wantOrder) {
		t.Errorf("kill order = %v, want %v", gotOrder, wantOrder)
	}
	if report.RunnerPID != runner {
		t.Errorf("RunnerPID = %d, want %d", report.RunnerPID, runner)
	}
	if slices.Contains(report.Targets, 1) {
		t.Errorf("pid 1 targeted: %v", report.Targets)
	}

	for _, done := range []<-chan struct{}{runnerDone, doneA, doneB, doneC} {
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("process survived Stop")
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "children_pids.txt")); !os.IsNotExist(err) {
		t.Error("children pid file not removed")
	}
	stopLog, err := os.ReadFile(filepath.Join(dir, "stop.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(stopLog), "Stop requested. Target PIDs: ") {
		t.Errorf("stop log = %q", stopLog)
	}
	if !strings.HasPrefix(string(stopLog), "[") {
		t.Errorf("stop log lines not timestamped: %q", stopLog)
	}
}

func TestStopToleratesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	report, err := Stop(context.Background(), Options{
		PIDFile: filepath.Join(dir, "runner.pid"),
		LogFile: filepath.Join(dir, "missing.log"),
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Targets) != 0 || len(report.Terminated) != 0 {
		t.Errorf("unexpected report %+v", report)
	}
	data, err := os.ReadFile(filepath.Join(dir, "stop.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Target PIDs: (none)") {
		t.Errorf("stop log = %q", data)
	}
}

func TestStopRequiresPIDFile(t *testing.T) {
	if _, err := Stop(context.Background(), Options{}); err == nil {
		t.Error("expected error without pid file")
	}
}

func TestPIDsFromChildFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "children.txt")
	writeFile(t, path, "pid=100 index=0 frames=1-5\n  200  \nPID = 300\n1\nabc\n")

	got := pidsFromChildFile(path)
	slices.Sort(got)
	if want := []int{100, 200, 300}; !reflect.DeepEqual(got, want) {
		t.Errorf("pidsFromChildFile = %v, want %v", got, want)
	}
}

func TestPIDsFromLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.log")
	writeFile(t, path, "Launched child[0] pid=4000 frames=1-5\nChild pid=4001 failed with rc=1\nnothing\n")

	got := slices.Compact(slices.Sorted(slices.Values(pidsFromLog(path))))
	if want := []int{4000, 4001}; !reflect.DeepEqual(got, want) {
		t.Errorf("pidsFromLog = %v, want %v", got, want)
	}
}
