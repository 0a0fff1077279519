package ffmpeg

import (
	"log/slog"
	"slices"
	"strings"
	"testing"
)

func TestBuildConcatArgs(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		strategy Strategy
		want     string
	}{
		{
			name:     "stream copy mov",
			output:   "out.mov",
			strategy: StreamCopy,
			want:     "-hide_banner -y -f concat -safe 0 -i list.txt -map 0 -c copy -movflags +faststart out.mov",
		},
		{
			name:     "re-encode mov keeps audio",
			output:   "out.mov",
			strategy: ReencodeVideo,
			want:     "-hide_banner -y -f concat -safe 0 -i list.txt -map 0 -c:v prores_ks -profile:v 3 -pix_fmt yuv422p10le -c:a copy -movflags +faststart out.mov",
		},
		{
			name:     "re-encode all mp4",
			output:   "out.MP4",
			strategy: ReencodeAll,
			want:     "-hide_banner -y -f concat -safe 0 -i list.txt -map 0 -c:v libx264 -crf 18 -preset slow -pix_fmt yuv420p -c:a aac -b:a 320k -movflags +faststart out.MP4",
		},
		{
			name:     "other container no faststart",
			output:   "out.mkv",
			strategy: ReencodeAll,
			want:     "-hide_banner -y -f concat -safe 0 -i list.txt -map 0 -c:v libx264 -crf 18 -preset slow -pix_fmt yuv420p -c:a aac -b:a 320k out.mkv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(BuildConcatArgs("list.txt", tt.output, tt.strategy), " ")
			if got != tt.want {
				t.Errorf("BuildConcatArgs()\n got: %s\nwant: %s", got, tt.want)
			}
		})
	}
}

func TestProfileFor(t *testing.T) {
	if !slices.Contains(ProfileFor("a.MOV").Video, "prores_ks") {
		t.Error(".MOV should use ProRes")
	}
	if !slices.Contains(ProfileFor("a.avi").Video, "libx264") {
		t.Error("unknown extension should use H.264")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel slog.Level
		wantMsg   string
	}{
		{"[error] boom", slog.LevelError, "boom"},
		{"[fatal] cannot open", slog.LevelError, "cannot open"},
		{"[mov @ 0x55] [warning] odd atom", slog.LevelWarn, "[mov @ 0x55] odd atom"},
		{"[verbose] probing", slog.LevelDebug, "probing"},
		{"frame=  100 fps=25", slog.LevelInfo, "frame=  100 fps=25"},
		{"[concat @ 0x1] no level", slog.LevelInfo, "[concat @ 0x1] no level"},
		{"[", slog.LevelInfo, "["},
	}

	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = %v, %q", tt.line, level, msg)
		}
	}
}
