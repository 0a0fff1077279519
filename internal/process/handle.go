package process

import (
	"context"
	"log/slog"
	"time"
)

// Handle is a live process, or process tree, that can be stopped.
type Handle interface {
	PID() int
	// SendGraceful asks the process and its helpers to exit.
	SendGraceful() error
	// SendForceful kills the process and its helpers.
	SendForceful() error
	Alive() bool
}

// Outcome reports how Terminate ended.
type Outcome int

// Termination outcomes.
const (
	AlreadyExited Outcome = iota
	Graceful
	Forced
)

func (o Outcome) String() string {
	switch o {
	case AlreadyExited:
		return "already-exited"
	case Graceful:
		return "graceful"
	case Forced:
		return "forced"
	default:
		return "unknown"
	}
}

// pollInterval is how often Terminate checks for exit during the grace window.
var pollInterval = 200 * time.Millisecond

// Terminate asks h to exit, waits up to grace, then kills it. The forceful
// phase always runs if the process is still alive when the window closes,
// when ctx is cancelled, or when the graceful request could not be sent.
func Terminate(ctx context.Context, h Handle, grace time.Duration, logger *slog.Logger) Outcome {
	if !h.Alive() {
		return AlreadyExited
	}

	pid := h.PID()
	if err := h.SendGraceful(); err != nil {
		logger.Warn("Failed to send graceful termination", "pid", pid, "error", err)
	} else {
		logger.Info("Sent graceful termination", "pid", pid, "grace", grace)
		if waitExit(ctx, h, grace) {
			return Graceful
		}
	}

	if err := h.SendForceful(); err != nil {
		logger.Error("Failed to kill process", "pid", pid, "error", err)
	} else {
		logger.Warn("Killed process after grace window", "pid", pid, "grace", grace)
	}
	return Forced
}

// waitExit polls h until it exits or grace elapses.
func waitExit(ctx context.Context, h Handle, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for {
		if !h.Alive() {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		select {
		case <-ctx.Done():
			return !h.Alive()
		case <-time.After(min(pollInterval, remaining)):
		}
	}
}
