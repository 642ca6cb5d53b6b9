package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot work with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Transcription.Provider {
	case "auto", "google", "openai":
	default:
		problems = append(problems, fmt.Sprintf("transcription.provider: unsupported value %q", c.Transcription.Provider))
	}

	if c.Transcription.DiarizationMinSpeakers > c.Transcription.DiarizationMaxSpeakers {
		problems = append(problems, "transcription: diarization_min_speakers exceeds diarization_max_speakers")
	}

	if c.Frames.MaxFrames <= 0 {
		problems = append(problems, "frames.max_frames: must be positive")
	}
	if c.Frames.MinIntervalSeconds <= 0 {
		problems = append(problems, "frames.min_interval_seconds: must be positive")
	}
	if c.Frames.EndSeconds != 0 && c.Frames.EndSeconds <= c.Frames.StartSeconds {
		problems = append(problems, "frames: end_seconds must be after start_seconds")
	}

	if c.OCR.ConfidenceThreshold < 0 || c.OCR.ConfidenceThreshold > 1 {
		problems = append(problems, "ocr.confidence_threshold: must be within [0, 1]")
	}
	if c.OCR.MinTextLength < 0 {
		problems = append(problems, "ocr.min_text_length: must not be negative")
	}

	if c.Speakers.MatchThreshold < 0 || c.Speakers.MatchThreshold > 1 {
		problems = append(problems, "speakers.match_threshold: must be within [0, 1]")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
