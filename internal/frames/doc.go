// Package frames samples still frames from a video for downstream OCR.
// Sampling is planned from the probed duration and configured bounds, then
// executed strictly sequentially so a long video never fans out into a burst
// of ffmpeg processes.
package frames
