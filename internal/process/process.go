package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Stream names used in Line.Stream.
const (
	Stdout = "stdout"
	Stderr = "stderr"
)

// maxLineSize bounds a single output line; renderers print long paths.
const maxLineSize = 1024 * 1024

// Line is one line of child output tagged with its source.
type Line struct {
	PID      int
	JobIndex int
	Stream   string
	Text     string
}

// LogParser maps one line of child output to a log level and message.
type LogParser func(line string) (slog.Level, string)

// childHandle is a spawned process leading its own process group.
type childHandle struct {
	cmd     *exec.Cmd
	pid     int
	done    chan struct{}
	waitErr error
	readers []*os.File
}

// startChild starts cmd in its own process group with stdout and stderr
// on pipes. Wait is called in the background; done closes when it returns.
func startChild(cmd *exec.Cmd) (*childHandle, error) {
	setProcessGroup(cmd)

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	startErr := cmd.Start()
	// The child holds its own copies of the write ends.
	outW.Close()
	errW.Close()
	if startErr != nil {
		outR.Close()
		errR.Close()
		return nil, startErr
	}

	h := &childHandle{
		cmd:     cmd,
		pid:     cmd.Process.Pid,
		done:    make(chan struct{}),
		readers: []*os.File{outR, errR},
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

func (h *childHandle) PID() int { return h.pid }

func (h *childHandle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// exitCode is only meaningful after done is closed.
func (h *childHandle) exitCode() int {
	return exitCodeFromError(h.waitErr)
}

// closeReaders unblocks any reader still waiting on the pipes, which
// happens when a helper process inherited them and outlived the child.
func (h *childHandle) closeReaders() {
	for _, r := range h.readers {
		_ = r.Close()
	}
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// readLines sends every line from r to out until r is exhausted or closed.
func readLines(r io.Reader, pid, job int, stream string, out chan<- Line) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		out <- Line{PID: pid, JobIndex: job, Stream: stream, Text: strings.TrimRight(scanner.Text(), "\r")}
	}
	err := scanner.Err()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

// ParseCommand splits a command string into arguments.
// Handles quoted strings and basic escaping.
func ParseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	runes := []rune(strings.TrimSpace(command))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case (r == ' ' || r == '\t') && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	return args, nil
}
