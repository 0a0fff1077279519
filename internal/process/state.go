package process

import (
	"time"

	"github.com/smazurov/rendernode/internal/frames"
)

// State represents the current state of a render job.
type State string

// Job states.
const (
	StateRunning State = "running" // Active
	StateExited  State = "exited"  // Exited with code 0
	StateFailed  State = "failed"  // Non-zero exit or failed to start
	StateKilled  State = "killed"  // Exited after shutdown began
)

// Spec describes one render process to launch.
type Spec struct {
	Index    int
	Range    frames.Range
	Output   string
	Args     []string // Args[0] is the executable
	Affinity []int
}

// Job is a launched render process. Fields are owned by the monitor loop;
// read them only after Run returns.
type Job struct {
	Index        int
	Range        frames.Range
	Output       string
	Affinity     []int
	PID          int
	State        State
	ExitCode     *int
	StartedAt    time.Time
	LastOutputAt time.Time
	ExitedAt     time.Time

	handle *childHandle
}

// Done reports whether an exit code has been recorded.
func (j *Job) Done() bool {
	return j.ExitCode != nil
}
