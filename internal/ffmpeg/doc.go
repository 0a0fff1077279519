// Package ffmpeg builds and runs the ffmpeg invocations used to join
// rendered segments, and parses ffmpeg log output.
package ffmpeg
