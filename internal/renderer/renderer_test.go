package renderer

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/smazurov/rendernode/internal/frames"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCommandArgsMinimal(t *testing.T) {
	c := Command{Executable: "aerender", Project: "/p/shot.aep", RQIndex: -1}
	got := c.Args(frames.Range{Start: 1, End: 34}, "/out/shot.mov")
	want := []string{
		"aerender",
		"-project", "/p/shot.aep",
		"-output", "/out/shot.mov",
		"-sound", "ON",
		"-s", "1",
		"-e", "34",
		"-mfr", "ON", "100",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v\nwant %v", got, want)
	}
}

func TestCommandArgsFull(t *testing.T) {
	c := Command{
		Executable: "aerender",
		Project:    "shot.aep",
		Comp:       "Main Comp",
		RQIndex:    2,
		Sound:      "off",
		RSTemplate: "Best Settings",
		OMTemplate: "Lossless",
		DisableMFR: true,
		MFRPercent: 50,
		Extra:      []string{"-v", "ERRORS"},
	}
	got := c.Args(frames.Range{Start: 35, End: 67}, "out_[####].png")
	want := []string{
		"aerender",
		"-project", "shot.aep",
		"-output", "out_[####].png",
		"-sound", "OFF",
		"-s", "35",
		"-e", "67",
		"-comp", "Main Comp",
		"-rqindex", "2",
		"-RStemplate", "Best Settings",
		"-OMtemplate", "Lossless",
		"-mfr", "OFF", "50",
		"-v", "ERRORS",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v\nwant %v", got, want)
	}
}

func TestNormalizeSound(t *testing.T) {
	tests := map[string]string{"": "ON", "on": "ON", "OFF": "OFF", " off ": "OFF", "maybe": "ON"}
	for in, want := range tests {
		if got := NormalizeSound(in); got != want {
			t.Errorf("NormalizeSound(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line  string
		level slog.Level
	}{
		{"aerender ERROR: No comp was found with the given name.", slog.LevelError},
		{"ERROR: After Effects error: file not found", slog.LevelError},
		{"WARNING: font missing", slog.LevelWarn},
		{"PROGRESS:  0:00:00:12 (13): 2 Seconds", slog.LevelDebug},
		{"PROGRESS: Total Time Elapsed: 2 Min", slog.LevelDebug},
		{"Starting composition Main.", slog.LevelInfo},
	}
	for _, tt := range tests {
		if level, _ := ParseLogLevel(tt.line); level != tt.level {
			t.Errorf("ParseLogLevel(%q) level = %v, want %v", tt.line, level, tt.level)
		}
	}
}

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestLocateExplicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aerender")
	writeExecutable(t, path)

	got, err := Locate(path, "", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Errorf("Locate() = %s, want %s", got, path)
	}
}

func TestLocateFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin", "aerender")
	writeExecutable(t, path)
	t.Setenv("AERENDER_PATH", path)
	t.Setenv("PATH", t.TempDir())

	got, err := Locate("NONE", "", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Errorf("Locate() = %s, want %s", got, path)
	}
}

func TestLocateInstallRoot(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Support Files", "aerender")
	writeExecutable(t, path)
	t.Setenv("AERENDER_PATH", "")
	t.Setenv("AE_AERENDER_PATH", "")
	t.Setenv("PATH", t.TempDir())

	got, err := Locate("", root, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Errorf("Locate() = %s, want %s", got, path)
	}
}

func TestLocateNotFound(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("default install locations may exist on this host")
	}
	t.Setenv("AERENDER_PATH", "")
	t.Setenv("AE_AERENDER_PATH", "")
	t.Setenv("PATH", t.TempDir())

	_, err := Locate(filepath.Join(t.TempDir(), "missing"), "", testLogger())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Locate() error = %v, want ErrNotFound", err)
	}
}

func TestDedupeExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aerender")
	writeExecutable(t, path)

	got := dedupeExisting([]string{path, path + "/../aerender", filepath.Join(dir, "nope"), ""})
	if len(got) != 1 || got[0] != path {
		t.Errorf("dedupeExisting = %v", got)
	}
}
