package runstate

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/rendernode/internal/events"
)

func TestAcquirePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "runner.pid")

	p, err := AcquirePIDFile(path)
	if err != nil {
		t.Fatal(err)
	}
	pid, err := ReadPID(path)
	if err != nil {
		t.Fatal(err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	if !Locked(path) {
		t.Error("expected lock to be held")
	}

	if _, err := AcquirePIDFile(path); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second acquire error = %v, want ErrAlreadyRunning", err)
	}

	if err := p.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("pid file not removed")
	}
	if Locked(path) {
		t.Error("lock still held after release")
	}
}

func TestReadPIDInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.pid")
	if err := os.WriteFile(path, []byte("not a pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPID(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestDefaultPaths(t *testing.T) {
	pidFile := filepath.Join("var", "run", "runner.pid")
	if got := DefaultChildrenPath(pidFile); got != filepath.Join("var", "run", "children_pids.txt") {
		t.Errorf("DefaultChildrenPath = %s", got)
	}
	if got := DefaultStopLogPath(pidFile); got != filepath.Join("var", "run", "stop.log") {
		t.Errorf("DefaultStopLogPath = %s", got)
	}
}

func TestChildRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "children_pids.txt")
	if err := os.WriteFile(path, []byte("pid=1 stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := NewChildRecorder(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	bus := events.New()
	defer r.Subscribe(bus)()

	bus.Publish(events.JobLaunchedEvent{Index: 0, PID: 4242, Start: 1, End: 34})

	want := "pid=4242 index=0 frames=1-34\n"
	deadline := time.Now().Add(2 * time.Second)
	var got string
	for time.Now().Before(deadline) {
		data, _ := os.ReadFile(path)
		if got = string(data); got == want {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got != want {
		t.Errorf("children file = %q, want %q", got, want)
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Record(events.JobLaunchedEvent{PID: 5}); err == nil {
		t.Error("expected error after Close")
	}
	if data, _ := os.ReadFile(path); strings.Contains(string(data), "stale") {
		t.Error("stale content not truncated")
	}
}
