package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeJobLaunched uint32 = iota + 1
	TypeJobStalled
	TypeJobExited
	TypeFileOffloaded
	TypeStitchAttempt
	TypeRunFinished
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// JobLaunchedEvent is published once a render process has started.
type JobLaunchedEvent struct {
	Index     int       `json:"index"`
	PID       int       `json:"pid"`
	Start     int       `json:"start"`
	End       int       `json:"end"`
	Output    string    `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for JobLaunchedEvent.
func (e JobLaunchedEvent) Type() uint32 { return TypeJobLaunched }

// JobStalledEvent is published when a running job has been silent longer
// than the stall grace. CPUPercent and RSSBytes are zero when unknown.
type JobStalledEvent struct {
	Index      int           `json:"index"`
	PID        int           `json:"pid"`
	Silence    time.Duration `json:"silence"`
	CPUPercent float64       `json:"cpu_percent"`
	RSSBytes   uint64        `json:"rss_bytes"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Type returns the event type identifier for JobStalledEvent.
func (e JobStalledEvent) Type() uint32 { return TypeJobStalled }

// JobExitedEvent is published once per job when its exit code is recorded.
type JobExitedEvent struct {
	Index     int           `json:"index"`
	PID       int           `json:"pid"`
	ExitCode  int           `json:"exit_code"`
	State     string        `json:"state"`
	Runtime   time.Duration `json:"runtime"`
	Timestamp time.Time     `json:"timestamp"`
}

// Type returns the event type identifier for JobExitedEvent.
func (e JobExitedEvent) Type() uint32 { return TypeJobExited }

// FileOffloadedEvent is published for every file copied out of scratch.
type FileOffloadedEvent struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for FileOffloadedEvent.
func (e FileOffloadedEvent) Type() uint32 { return TypeFileOffloaded }

// StitchAttemptEvent is published after each concat strategy.
type StitchAttemptEvent struct {
	Strategy  string    `json:"strategy"`
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for StitchAttemptEvent.
func (e StitchAttemptEvent) Type() uint32 { return TypeStitchAttempt }

// RunFinishedEvent is published when the orchestrator has its exit code.
type RunFinishedEvent struct {
	RunID     string        `json:"run_id"`
	ExitCode  int           `json:"exit_code"`
	Failures  int           `json:"failures"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Type returns the event type identifier for RunFinishedEvent.
func (e RunFinishedEvent) Type() uint32 { return TypeRunFinished }
