package staging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateWorkspace(t *testing.T) {
	root := t.TempDir()
	ws, err := Create(root, "abcd1234")
	if err != nil {
		t.Fatal(err)
	}
	if ws.Dir != filepath.Join(root, "job_abcd1234") {
		t.Errorf("Dir = %q", ws.Dir)
	}
	if _, err := os.Stat(ws.Dir); err != nil {
		t.Fatalf("workspace not created: %v", err)
	}

	ws.Remove(testLogger())
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Errorf("workspace still present: %v", err)
	}
}

func TestAtDoesNotCreate(t *testing.T) {
	root := filepath.Join(t.TempDir(), "scratch")
	ws := At(root, "0badcafe")
	if ws.Dir != filepath.Join(root, "job_0badcafe") {
		t.Errorf("Dir = %q", ws.Dir)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("At touched disk: %v", err)
	}
	if got := At("", "x").Root; got != DefaultRoot() {
		t.Errorf("empty root = %q, want %q", got, DefaultRoot())
	}
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	if !regexp.MustCompile(`^[0-9a-f]{8}$`).MatchString(id) {
		t.Errorf("NewRunID() = %q", id)
	}
	if NewRunID() == id {
		t.Error("expected distinct run ids")
	}
}

func TestStageCopiesProject(t *testing.T) {
	src := filepath.Join(t.TempDir(), "shot.aep")
	if err := os.WriteFile(src, []byte("aep"), 0o644); err != nil {
		t.Fatal(err)
	}
	ws, err := Create(t.TempDir(), "run00001")
	if err != nil {
		t.Fatal(err)
	}

	got, err := Stage(context.Background(), src, ws, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(ws.ProjectDir(), "shot.aep")
	if got != want {
		t.Errorf("Stage() = %q, want %q", got, want)
	}
	if data, err := os.ReadFile(got); err != nil || string(data) != "aep" {
		t.Errorf("staged content = %q, %v", data, err)
	}
}

func TestStageAlreadyStaged(t *testing.T) {
	ws, err := Create(t.TempDir(), "run00002")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(ws.ProjectDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(ws.ProjectDir(), "shot.aep")
	if err := os.WriteFile(src, []byte("aep"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Stage(context.Background(), src, ws, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if got != src {
		t.Errorf("Stage() = %q, want original %q", got, src)
	}
}

func TestStageMissingSourceReturnsOriginal(t *testing.T) {
	ws, err := Create(t.TempDir(), "run00003")
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(t.TempDir(), "missing.aep")

	got, err := Stage(context.Background(), src, ws, testLogger())
	if err == nil {
		t.Fatal("expected error")
	}
	if got != src {
		t.Errorf("Stage() = %q, want original path", got)
	}
}

func TestStageRetriesThenFallsBack(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	old := retryBackoff
	retryBackoff = time.Millisecond
	t.Cleanup(func() { retryBackoff = old })

	src := filepath.Join(t.TempDir(), "shot.aep")
	if err := os.WriteFile(src, []byte("aep"), 0o644); err != nil {
		t.Fatal(err)
	}
	ws, err := Create(t.TempDir(), "run00004")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(ws.ProjectDir(), 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(ws.ProjectDir(), 0o755) })

	got, err := Stage(context.Background(), src, ws, testLogger())
	if err == nil {
		t.Fatal("expected error from read-only project dir")
	}
	if got != src {
		t.Errorf("Stage() = %q, want original path", got)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"always", ModeAlways, false},
		{"never", ModeNever, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestShouldStage(t *testing.T) {
	local := t.TempDir()
	if ShouldStage(ModeNever, `\\nas\share\shot.aep`) {
		t.Error("never mode must not stage")
	}
	if !ShouldStage(ModeAlways, local) {
		t.Error("always mode must stage")
	}
	if !ShouldStage(ModeAuto, `\\nas\share\shot.aep`) {
		t.Error("auto mode must stage UNC paths")
	}
	if !ShouldStage(ModeAuto, "//nas/share/shot.aep") {
		t.Error("auto mode must stage forward-slash UNC paths")
	}
}
