// Package process launches and supervises render child processes.
//
// Supervisor starts each job in its own process group, streams stdout and
// stderr line by line into a single monitor loop, warns about jobs that
// stop producing output and records how every job exits. Shutdown stops
// further launches and terminates live jobs concurrently.
//
// Termination is expressed through Handle. Terminate sends a graceful
// signal, waits up to a grace window and escalates to a forceful kill of
// the whole tree when the process is still alive:
//
//	outcome := process.Terminate(ctx, process.NewPIDHandle(pid), 2*time.Second, logger)
//
// On Unix the graceful signal is SIGTERM to the process group and the
// forceful one SIGKILL. On Windows jobs receive CTRL_BREAK and are then
// removed with taskkill /T /F.
package process
