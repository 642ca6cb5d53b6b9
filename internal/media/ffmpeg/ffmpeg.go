package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandRunner abstracts ffmpeg invocation so tests can intercept it.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service wraps the ffmpeg binary for audio extraction, segment splitting,
// and frame extraction.
type Service struct {
	binary string
	runner CommandRunner
}

// NewService creates an ffmpeg service. An empty binary falls back to "ffmpeg".
func NewService(binary string) *Service {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Service{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.runner = runner
}

func (s *Service) run(ctx context.Context, args ...string) error {
	if s.runner != nil {
		return s.runner(ctx, s.binary, args...)
	}
	cmd := exec.CommandContext(ctx, s.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// ExtractAudio demuxes the full audio track from source into a mono 16kHz WAV
// file suitable for speech recognition.
func (s *Service) ExtractAudio(ctx context.Context, source, dest string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("extract audio: source path required")
	}
	if err := ensureParent(dest); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	if err := s.run(ctx, args...); err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	return nil
}

// ExtractSegment extracts a time-range slice of audio from source.
// startSec is the slice start in seconds, durationSec its length.
func (s *Service) ExtractSegment(ctx context.Context, source string, startSec, durationSec float64, dest string) error {
	if durationSec <= 0 {
		return fmt.Errorf("extract segment: invalid duration %v", durationSec)
	}
	if err := ensureParent(dest); err != nil {
		return fmt.Errorf("extract segment: %w", err)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(startSec),
		"-t", formatSeconds(durationSec),
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	if err := s.run(ctx, args...); err != nil {
		return fmt.Errorf("ffmpeg extract segment: %w", err)
	}
	return nil
}

// ExtractFrame captures a single video frame at the given timestamp as JPEG.
func (s *Service) ExtractFrame(ctx context.Context, source string, timestampSec float64, dest string) error {
	if timestampSec < 0 {
		return fmt.Errorf("extract frame: invalid timestamp %v", timestampSec)
	}
	if err := ensureParent(dest); err != nil {
		return fmt.Errorf("extract frame: %w", err)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(timestampSec),
		"-i", source,
		"-frames:v", "1",
		"-q:v", "2",
		dest,
	}
	if err := s.run(ctx, args...); err != nil {
		return fmt.Errorf("ffmpeg extract frame: %w", err)
	}
	return nil
}

func ensureParent(dest string) error {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return fmt.Errorf("destination path required")
	}
	return os.MkdirAll(filepath.Dir(dest), 0o755)
}

func formatSeconds(value float64) string {
	return fmt.Sprintf("%.3f", value)
}
