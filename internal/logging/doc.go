// Package logging wires log/slog for rendernode.
//
// Every subsystem asks for its own logger with GetLogger("supervisor"),
// GetLogger("offload") and so on. Each module logger carries a module
// attribute and its own level, so one noisy area can be turned up
// without flooding the rest:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		File:    "render.log",
//		Modules: map[string]string{"supervisor": "debug", "renderer": "warn"},
//	})
//
// Records fan out to every sink that is present: stdout (text on a
// terminal, JSON otherwise unless Format says so), the systemd journal
// and the optional log file, which always gets text. Journal records
// use the identifier "rendernode" and carry attributes as upper-case
// fields, so a single child can be followed with
//
//	journalctl -t rendernode MODULE=supervisor JOB=3
//
// In TOML the same settings live under [logging]; any key other than
// level, format and file is read as a module override.
package logging
