package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and durable-state locations.
type Paths struct {
	StagingDir       string `toml:"staging_dir"`
	LogDir           string `toml:"log_dir"`
	SpeakerStorePath string `toml:"speaker_store_path"`
	HistoryDBPath    string `toml:"history_db_path"`
}

// Transcription contains speech provider selection and request options.
type Transcription struct {
	// Provider chooses the speech back-end: "auto", "google", or "openai".
	Provider string `toml:"provider"`
	// Language is the BCP-47 language code sent to providers.
	Language string `toml:"language"`
	// ChunkSeconds is the nominal chunk duration for chunked transcription.
	ChunkSeconds int `toml:"chunk_seconds"`
	// Punctuation requests automatic punctuation from the Google back-end.
	Punctuation bool `toml:"punctuation"`
	// DiarizationMinSpeakers / DiarizationMaxSpeakers bound the speaker count
	// hint passed to the Google back-end.
	DiarizationMinSpeakers int `toml:"diarization_min_speakers"`
	DiarizationMaxSpeakers int `toml:"diarization_max_speakers"`
	// EnhancedModel requests the enhanced Google recognition model.
	EnhancedModel bool `toml:"enhanced_model"`
	// WhisperModel is the OpenAI transcription model name.
	WhisperModel string `toml:"whisper_model"`
}

// Google contains connection settings for the Google-like speech back-end.
type Google struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Vision contains connection settings for the vision/OCR back-end.
type Vision struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Frames contains frame sampling cadence settings.
type Frames struct {
	MaxFrames          int     `toml:"max_frames"`
	MinIntervalSeconds float64 `toml:"min_interval_seconds"`
	StartSeconds       float64 `toml:"start_seconds"`
	EndSeconds         float64 `toml:"end_seconds"`
}

// OCR contains caption-track filtering thresholds.
type OCR struct {
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	MinTextLength       int     `toml:"min_text_length"`
}

// Speakers contains speaker matching settings.
type Speakers struct {
	// MatchThreshold is the minimum similarity for resolving to an existing
	// speaker identity.
	MatchThreshold float64 `toml:"match_threshold"`
}

// Download contains settings for fetching remote media.
type Download struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mediascribe.
//
// Configuration sections by subsystem:
//   - Paths: staging/log directories and durable state locations
//   - Transcription: provider selection, chunking, diarization options
//   - Google / Vision: external service connection settings
//   - Frames: video frame sampling cadence
//   - OCR: caption filtering thresholds
//   - Speakers: identity matching threshold
//   - Download: remote fetch timeout
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Google        Google        `toml:"google"`
	Vision        Vision        `toml:"vision"`
	Frames        Frames        `toml:"frames"`
	OCR           OCR           `toml:"ocr"`
	Speakers      Speakers      `toml:"speakers"`
	Download      Download      `toml:"download"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediascribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediascribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.StagingDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.SpeakerStorePath),
		filepath.Dir(c.Paths.HistoryDBPath),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for demux and frame
// extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
