// Package logging constructs the slog loggers used across the pipeline and
// defines the standardized attribute keys that keep structured output
// consistent between components.
package logging
