package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrNotFound is returned when no ffmpeg executable can be located.
var ErrNotFound = errors.New("ffmpeg not found")

// Locate returns the ffmpeg executable from $FFMPEG, then PATH.
func Locate() (string, error) {
	if p := os.Getenv("FFMPEG"); p != "" {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("%w: set $FFMPEG or add it to PATH", ErrNotFound)
	}
	return p, nil
}

// Runner executes ffmpeg and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir string, args []string) (string, error)
}

// ExecRunner runs a real ffmpeg binary.
type ExecRunner struct {
	Path string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}
