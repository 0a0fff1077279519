package ffmpeg

import (
	"log/slog"
	"strings"
)

// levelTags maps ffmpeg's "-loglevel level+..." tags to slog levels.
var levelTags = map[string]slog.Level{
	"panic":   slog.LevelError,
	"fatal":   slog.LevelError,
	"error":   slog.LevelError,
	"warning": slog.LevelWarn,
	"info":    slog.LevelInfo,
	"verbose": slog.LevelDebug,
	"debug":   slog.LevelDebug,
	"trace":   slog.LevelDebug,
}

// ParseLogLevel reads the level tag of one ffmpeg output line. Both
// "[error] msg" and "[concat @ 0x55d1] [warning] msg" are understood; the
// tag is dropped from the message and a component prefix is kept. Untagged
// lines are info.
func ParseLogLevel(line string) (slog.Level, string) {
	if level, rest, ok := cutLevelTag(line); ok {
		return level, rest
	}

	// [component @ 0x...] [level] message
	if strings.HasPrefix(line, "[") {
		if end := strings.Index(line, "] "); end != -1 {
			component, rest := line[:end+2], line[end+2:]
			if level, msg, ok := cutLevelTag(rest); ok {
				return level, component + msg
			}
		}
	}
	return slog.LevelInfo, line
}

func cutLevelTag(s string) (slog.Level, string, bool) {
	inner, ok := strings.CutPrefix(s, "[")
	if !ok {
		return 0, s, false
	}
	tag, rest, ok := strings.Cut(inner, "] ")
	if !ok {
		return 0, s, false
	}
	level, known := levelTags[tag]
	if !known {
		return 0, s, false
	}
	return level, rest, true
}
