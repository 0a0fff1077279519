package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/smazurov/rendernode/internal/events"
)

// eventually polls cond until it holds or the deadline passes; bus
// delivery is asynchronous.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSubscribeCountsJobs(t *testing.T) {
	bus := events.New()
	unsub := Subscribe(bus)
	defer unsub()

	launched := testutil.ToFloat64(jobsLaunched)
	failed := testutil.ToFloat64(jobsExited.WithLabelValues("failed"))
	before := GetSummary()

	bus.Publish(events.JobLaunchedEvent{Index: 0, PID: 100, Start: 1, End: 10})
	bus.Publish(events.JobExitedEvent{Index: 0, PID: 100, ExitCode: 1, State: "failed", Runtime: 3 * time.Second})

	eventually(t, func() bool {
		return testutil.ToFloat64(jobsLaunched) == launched+1 &&
			testutil.ToFloat64(jobsExited.WithLabelValues("failed")) == failed+1
	})

	after := GetSummary()
	if after.Launched != before.Launched+1 {
		t.Errorf("summary Launched = %d, want %d", after.Launched, before.Launched+1)
	}
	if after.Exited["failed"] != before.Exited["failed"]+1 {
		t.Errorf("summary failed = %d", after.Exited["failed"])
	}
}

func TestSubscribeOffloadAndStitch(t *testing.T) {
	bus := events.New()
	defer Subscribe(bus)()

	bytesBefore := testutil.ToFloat64(offloadedBytes)
	okBefore := testutil.ToFloat64(stitchAttempts.WithLabelValues("copy", "ok"))

	bus.Publish(events.FileOffloadedEvent{Name: "shot_0001.png", Size: 2048})
	bus.Publish(events.StitchAttemptEvent{Strategy: "copy", OK: true})

	eventually(t, func() bool {
		return testutil.ToFloat64(offloadedBytes) == bytesBefore+2048 &&
			testutil.ToFloat64(stitchAttempts.WithLabelValues("copy", "ok")) == okBefore+1
	})
}

func TestSubscribeRunFinished(t *testing.T) {
	bus := events.New()
	defer Subscribe(bus)()

	bus.Publish(events.RunFinishedEvent{RunID: "abcd1234", ExitCode: 2, Failures: 1, Duration: 90 * time.Second})

	eventually(t, func() bool {
		return testutil.ToFloat64(runExitCode) == 2 && testutil.ToFloat64(runDuration) == 90
	})
	if got := testutil.ToFloat64(runFailures); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
}

func TestSetWorkers(t *testing.T) {
	SetWorkers(6)
	if got := testutil.ToFloat64(runWorkers); got != 6 {
		t.Errorf("workers = %v, want 6", got)
	}
}

func TestGetSummaryReturnsCopy(t *testing.T) {
	updateSummary(func(s *RunSummary) { s.Exited["exited"]++ })
	s := GetSummary()
	s.Exited["exited"] = 999
	if GetSummary().Exited["exited"] == 999 {
		t.Error("summary map shared with caller")
	}
}
