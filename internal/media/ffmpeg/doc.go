// Package ffmpeg wraps the ffmpeg binary for the pipeline's demux needs:
// full audio extraction, fixed-duration segment splitting, and single-frame
// capture. All invocations accept a command-runner override for tests.
package ffmpeg
