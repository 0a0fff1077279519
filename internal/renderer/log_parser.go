package renderer

import (
	"log/slog"
	"strings"
)

// ParseLogLevel maps an aerender output line to a log level. aerender has
// no structured levels; errors and warnings are recognized by their
// prefixes and progress lines are demoted to debug.
func ParseLogLevel(line string) (slog.Level, string) {
	trimmed := strings.TrimSpace(line)
	upper := strings.ToUpper(trimmed)

	switch {
	case strings.HasPrefix(upper, "AERENDER ERROR"),
		strings.HasPrefix(upper, "ERROR"),
		strings.Contains(upper, "UNABLE TO RENDER"):
		return slog.LevelError, trimmed
	case strings.HasPrefix(upper, "WARNING"),
		strings.HasPrefix(upper, "AERENDER WARNING"):
		return slog.LevelWarn, trimmed
	case strings.HasPrefix(upper, "PROGRESS:"):
		return slog.LevelDebug, trimmed
	}
	return slog.LevelInfo, trimmed
}
