package render

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/rendernode/internal/process"
	"github.com/smazurov/rendernode/internal/staging"
)

// offloadStopTimeout bounds how long a stop waits for the offloader's
// final pass.
const offloadStopTimeout = 5 * time.Second

// ShutdownContext owns everything a stop has to tear down: the
// supervisor, the offloader and the scratch workspace. The signal path
// and kill-on-fail both go through Shutdown, which runs once.
type ShutdownContext struct {
	logger         *slog.Logger
	interruptGrace time.Duration
	failureGrace   time.Duration

	supervisor  *process.Supervisor
	workspace   *staging.Workspace
	stopOffload context.CancelFunc
	offloadDone <-chan struct{}

	once        sync.Once
	done        chan struct{}
	requested   atomic.Bool
	interrupted atomic.Bool
}

// NewShutdownContext creates a shutdown context. Children get
// interruptGrace to exit after a signal and failureGrace after a failed
// job. Nil parts are skipped.
func NewShutdownContext(logger *slog.Logger, interruptGrace, failureGrace time.Duration, sup *process.Supervisor, ws *staging.Workspace) *ShutdownContext {
	return &ShutdownContext{
		logger:         logger,
		interruptGrace: interruptGrace,
		failureGrace:   failureGrace,
		supervisor:     sup,
		workspace:      ws,
		done:           make(chan struct{}),
	}
}

// SetOffloader registers a running offloader: stop cancels it and done
// is closed once its final pass has finished.
func (c *ShutdownContext) SetOffloader(stop context.CancelFunc, done <-chan struct{}) {
	c.stopOffload = stop
	c.offloadDone = done
}

// Requested reports whether Shutdown has been called.
func (c *ShutdownContext) Requested() bool {
	return c.requested.Load()
}

// Interrupted reports whether the shutdown came from a signal.
func (c *ShutdownContext) Interrupted() bool {
	return c.interrupted.Load()
}

// Done is closed once a shutdown has finished tearing down.
func (c *ShutdownContext) Done() <-chan struct{} {
	return c.done
}

// Shutdown stops spawning, terminates every live child, stops the
// offloader and removes the workspace. Later calls return immediately.
func (c *ShutdownContext) Shutdown(reason string, interrupted bool) {
	c.requested.Store(true)
	if interrupted {
		c.interrupted.Store(true)
	}
	c.once.Do(func() {
		defer close(c.done)
		grace := c.graceFor(interrupted)
		c.logger.Warn("Shutting down", "reason", reason, "grace", grace)

		if c.supervisor != nil {
			c.supervisor.Shutdown(context.Background(), grace)
		}
		c.StopOffloader()
		if c.workspace != nil {
			c.workspace.Remove(c.logger)
		}
	})
}

func (c *ShutdownContext) graceFor(interrupted bool) time.Duration {
	if interrupted {
		return c.interruptGrace
	}
	return c.failureGrace
}

// StopOffloader cancels the offloader and waits for its final pass.
// Safe to call more than once.
func (c *ShutdownContext) StopOffloader() {
	if c.stopOffload == nil {
		return
	}
	c.stopOffload()
	select {
	case <-c.offloadDone:
	case <-time.After(offloadStopTimeout):
		c.logger.Warn("Offloader did not stop in time")
	}
}
