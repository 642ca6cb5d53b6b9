// Package ffprobe wraps the ffprobe binary for media inspection: duration,
// size, bitrate, and per-stream sample rate and channel layout.
package ffprobe
