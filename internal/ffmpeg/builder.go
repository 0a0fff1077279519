package ffmpeg

import (
	"path/filepath"
	"strings"
)

// Strategy is one way of joining segments.
type Strategy int

// Concat strategies, tried in order.
const (
	StreamCopy    Strategy = iota // -c copy
	ReencodeVideo                 // re-encode video, copy audio
	ReencodeAll                   // re-encode video and audio
)

// Strategies lists every concat strategy in fallback order.
var Strategies = []Strategy{StreamCopy, ReencodeVideo, ReencodeAll}

func (s Strategy) String() string {
	switch s {
	case StreamCopy:
		return "stream-copy"
	case ReencodeVideo:
		return "re-encode"
	case ReencodeAll:
		return "re-encode v+a"
	default:
		return "unknown"
	}
}

// Profile holds the encoder arguments used when stream copy fails.
type Profile struct {
	Video         []string
	AudioFallback []string
}

var (
	proresProfile = Profile{
		Video:         []string{"-c:v", "prores_ks", "-profile:v", "3", "-pix_fmt", "yuv422p10le"},
		AudioFallback: []string{"-c:a", "pcm_s16le"},
	}
	x264Profile = Profile{
		Video:         []string{"-c:v", "libx264", "-crf", "18", "-preset", "slow", "-pix_fmt", "yuv420p"},
		AudioFallback: []string{"-c:a", "aac", "-b:a", "320k"},
	}
)

// ProfileFor picks the re-encode profile for an output path by extension.
// .mov gets ProRes HQ, everything else H.264.
func ProfileFor(output string) Profile {
	if strings.EqualFold(filepath.Ext(output), ".mov") {
		return proresProfile
	}
	return x264Profile
}

// Base returns the flags every invocation starts with.
func Base() []string {
	return []string{"-hide_banner", "-y"}
}

// BuildConcatArgs builds ffmpeg arguments that join the segments listed in
// listFile into output using strategy s.
func BuildConcatArgs(listFile, output string, s Strategy) []string {
	args := Base()
	args = append(args, "-f", "concat", "-safe", "0", "-i", listFile, "-map", "0")

	profile := ProfileFor(output)
	switch s {
	case StreamCopy:
		args = append(args, "-c", "copy")
	case ReencodeVideo:
		args = append(args, profile.Video...)
		args = append(args, "-c:a", "copy")
	case ReencodeAll:
		args = append(args, profile.Video...)
		args = append(args, profile.AudioFallback...)
	}

	if needsFaststart(output) {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, output)
}

func needsFaststart(output string) bool {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".mov", ".mp4":
		return true
	}
	return false
}
