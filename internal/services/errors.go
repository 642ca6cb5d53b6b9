package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks missing or invalid credentials and settings.
	// Fatal for the whole request; never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks provider-side failures (5xx, rate limits) that either
	// trigger a defined fallback transition or propagate when none exists.
	ErrTransient = errors.New("transient provider failure")
	// ErrUnsupportedInput marks corrupt, truncated, or unrecognized media.
	// Aborts only the stage that hit it; sibling stages continue.
	ErrUnsupportedInput = errors.New("unsupported input")
	// ErrChunking marks a chunked conversion where every chunk failed.
	ErrChunking = errors.New("chunking failed")
	// ErrTimeout marks an exhausted polling budget.
	ErrTimeout = errors.New("timeout")
	// ErrExternalTool marks ffmpeg/ffprobe invocation failures.
	ErrExternalTool = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether the error should abort the whole analysis rather than
// degrade to a warning on the report.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrChunking)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
