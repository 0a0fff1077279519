package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Config selects levels and sinks.
type Config struct {
	Level string `toml:"level"`
	// Format is text or json. Empty picks text on a terminal and json
	// otherwise.
	Format string `toml:"format"`
	// File receives a plain-text copy of every record when set.
	File    string            `toml:"file"`
	Modules map[string]string `toml:"modules"`
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var (
	mu          sync.RWMutex
	current     Config
	initialized bool
	modules     = map[string]*moduleLogger{}
	rootLevel   = &slog.LevelVar{}
	logFile     *os.File
	stdout      io.Writer = os.Stdout
)

// Initialize applies config to the root logger and to every module logger
// handed out so far. Loggers obtained before Initialize stay valid and pick
// up the new levels and sinks. The only error is an unopenable log file;
// stdout and the journal are set up regardless.
func Initialize(config Config) error {
	mu.Lock()
	defer mu.Unlock()

	current = config
	initialized = true

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	var fileErr error
	if config.File != "" {
		logFile, fileErr = os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if fileErr != nil {
			logFile = nil
			fileErr = fmt.Errorf("open log file: %w", fileErr)
		}
	}

	rootLevel.Set(levelFor(""))
	for name, m := range modules {
		m.level.Set(levelFor(name))
		m.logger = slog.New(createHandler(config.Format, m.level)).With("module", name)
	}
	slog.SetDefault(slog.New(createHandler(config.Format, rootLevel)))
	return fileErr
}

// Close closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	m, ok := modules[module]
	mu.RUnlock()
	if ok {
		return m.logger
	}

	mu.Lock()
	defer mu.Unlock()
	if m, ok := modules[module]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	level.Set(levelFor(module))
	format := "text"
	if initialized {
		format = current.Format
	}
	m = &moduleLogger{
		logger: slog.New(createHandler(format, level)).With("module", module),
		level:  level,
	}
	modules[module] = m
	return m.logger
}

// levelFor resolves the level of module: its override, else the global
// level, else info. The caller holds mu.
func levelFor(module string) slog.Level {
	if !initialized {
		return slog.LevelInfo
	}
	if module != "" {
		if l, ok := parseLevel(current.Modules[module]); ok {
			return l
		}
	}
	if l, ok := parseLevel(current.Level); ok {
		return l
	}
	return slog.LevelInfo
}

// createHandler fans records out to stdout, the journal and the log file,
// whichever are present. The caller holds mu.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	if resolveFormat(format) == "json" {
		console = slog.NewJSONHandler(stdout, opts)
	} else {
		console = slog.NewTextHandler(stdout, opts)
	}

	var journalSink, fileSink slog.Handler
	if IsJournalAvailable() {
		journalSink = NewJournalHandler(level)
	}
	if logFile != nil {
		fileSink = slog.NewTextHandler(logFile, opts)
	}
	if !stdoutWritable() && (journalSink != nil || fileSink != nil) {
		console = nil
	}

	multi := NewMultiHandler(console, journalSink, fileSink)
	if len(multi.handlers) == 1 {
		return multi.handlers[0]
	}
	return multi
}

func resolveFormat(format string) string {
	switch f := strings.ToLower(format); f {
	case "json", "text":
		return f
	}
	f, ok := stdout.(*os.File)
	if !ok || isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return "text"
	}
	return "json"
}

// stdoutWritable reports whether stdout leads anywhere: a terminal, pipe,
// socket or regular file. /dev/null is a device and does not count.
func stdoutWritable() bool {
	f, ok := stdout.(*os.File)
	if !ok {
		return true
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode.IsRegular() || mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
