//go:build unix

package process

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"reflect"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func init() {
	pollInterval = 20 * time.Millisecond
}

// startTestChild starts a shell command in its own process group.
func startTestChild(t *testing.T, script string) *childHandle {
	t.Helper()
	h, err := startChild(exec.Command("sh", "-c", script))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		_ = h.SendForceful()
		h.closeReaders()
	})
	return h
}

// waitDone waits for the child to be reaped, fails test on timeout.
func waitDone(t *testing.T, h *childHandle, timeout time.Duration) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
	}
}

func TestTerminateGraceful(t *testing.T) {
	// Process that handles SIGTERM
	h := startTestChild(t, "trap 'exit 0' TERM; while :; do sleep 0.1; done")
	time.Sleep(100 * time.Millisecond)

	if got := Terminate(context.Background(), h, 2*time.Second, testLogger()); got != Graceful {
		t.Errorf("Terminate() = %v, want %v", got, Graceful)
	}
	waitDone(t, h, time.Second)
	if h.exitCode() != 0 {
		t.Errorf("expected exit code 0, got %d", h.exitCode())
	}
}

func TestTerminateForcedAfterGrace(t *testing.T) {
	// Process group that ignores SIGTERM
	h := startTestChild(t, "trap '' TERM; sleep 10")
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	if got := Terminate(context.Background(), h, 200*time.Millisecond, testLogger()); got != Forced {
		t.Errorf("Terminate() = %v, want %v", got, Forced)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("forceful phase ran before grace elapsed: %v", elapsed)
	}
	waitDone(t, h, time.Second)
	if h.exitCode() == 0 {
		t.Error("expected non-zero exit after SIGKILL")
	}
}

func TestTerminateKillsGroupHelpers(t *testing.T) {
	// The helper sleep outlives its parent shell unless the group is signaled.
	h := startTestChild(t, "trap '' TERM; sleep 30 & wait")
	time.Sleep(100 * time.Millisecond)

	Terminate(context.Background(), h, 100*time.Millisecond, testLogger())
	waitDone(t, h, time.Second)

	deadline := time.Now().Add(time.Second)
	for h.Alive() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if h.Alive() {
		t.Error("process group still has members after Terminate")
	}
}

func TestTerminateAlreadyExited(t *testing.T) {
	h := startTestChild(t, "true")
	waitDone(t, h, time.Second)

	deadline := time.Now().Add(time.Second)
	for h.Alive() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := Terminate(context.Background(), h, time.Second, testLogger()); got != AlreadyExited {
		t.Errorf("Terminate() = %v, want %v", got, AlreadyExited)
	}
}

type fakeHandle struct {
	alive        bool
	gracefulErr  error
	forcefulSent bool
	dieOnSignal  bool
}

func (f *fakeHandle) PID() int    { return 99999 }
func (f *fakeHandle) Alive() bool { return f.alive }
func (f *fakeHandle) SendGraceful() error {
	if f.gracefulErr != nil {
		return f.gracefulErr
	}
	if f.dieOnSignal {
		f.alive = false
	}
	return nil
}
func (f *fakeHandle) SendForceful() error {
	f.forcefulSent = true
	f.alive = false
	return nil
}

func TestTerminateForcefulAfterGracefulError(t *testing.T) {
	h := &fakeHandle{alive: true, gracefulErr: errors.New("permission denied")}
	if got := Terminate(context.Background(), h, time.Hour, testLogger()); got != Forced {
		t.Errorf("Terminate() = %v, want %v", got, Forced)
	}
	if !h.forcefulSent {
		t.Error("forceful phase skipped after graceful error")
	}
}

func TestTerminateContextCancelEscalates(t *testing.T) {
	h := &fakeHandle{alive: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := Terminate(ctx, h, time.Hour, testLogger()); got != Forced {
		t.Errorf("Terminate() = %v, want %v", got, Forced)
	}
	if !h.forcefulSent {
		t.Error("forceful phase skipped after cancel")
	}
}

func TestTerminateGracefulFake(t *testing.T) {
	h := &fakeHandle{alive: true, dieOnSignal: true}
	if got := Terminate(context.Background(), h, time.Second, testLogger()); got != Graceful {
		t.Errorf("Terminate() = %v, want %v", got, Graceful)
	}
	if h.forcefulSent {
		t.Error("forceful sent to a process that exited gracefully")
	}
}

func TestExitCodeFromError(t *testing.T) {
	h := startTestChild(t, "exit 42")
	waitDone(t, h, time.Second)
	if got := h.exitCode(); got != 42 {
		t.Errorf("expected exit code 42, got %d", got)
	}
	if got := exitCodeFromError(nil); got != 0 {
		t.Errorf("exitCodeFromError(nil) = %d", got)
	}
	if got := exitCodeFromError(errors.New("boom")); got != 1 {
		t.Errorf("exitCodeFromError(other) = %d", got)
	}
}

func TestStartChildNonExistent(t *testing.T) {
	if _, err := startChild(exec.Command("/nonexistent/command/that/does/not/exist")); err == nil {
		t.Fatal("expected start error")
	}
}

func TestReadLines(t *testing.T) {
	out := make(chan Line, 8)
	input := "first\r\nsecond\n" + strings.Repeat("x", 200*1024) + "\n"
	if err := readLines(strings.NewReader(input), 7, 2, Stderr, out); err != nil {
		t.Fatal(err)
	}
	close(out)

	var got []Line
	for l := range out {
		got = append(got, l)
	}
	if len(got) != 3 {
		t.Fatalf("got %d lines", len(got))
	}
	if got[0] != (Line{PID: 7, JobIndex: 2, Stream: Stderr, Text: "first"}) {
		t.Errorf("first line = %+v", got[0])
	}
	if len(got[2].Text) != 200*1024 {
		t.Errorf("long line truncated to %d", len(got[2].Text))
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{`echo hello\ world`, []string{"echo", "hello world"}, false},
		{`-mem_usage 50 "some value"`, []string{"-mem_usage", "50", "some value"}, false},
		{`'it"s'`, []string{`it"s`}, false},
		{"", nil, false},
		{`echo "unclosed`, nil, true},
	}

	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseCommand(%q) error = %v", tt.in, err)
		}
		if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWalkTree(t *testing.T) {
	children := map[int][]int{
		1: {2, 3},
		2: {4},
		4: {5},
		9: {10},
	}
	got := walkTree(1, children)
	want := []int{2, 3, 4, 5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("walkTree = %v, want %v", got, want)
	}
}
