package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeEndpoints()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	expansions := []struct {
		name  string
		value *string
	}{
		{"staging_dir", &c.Paths.StagingDir},
		{"log_dir", &c.Paths.LogDir},
		{"speaker_store_path", &c.Paths.SpeakerStorePath},
		{"history_db_path", &c.Paths.HistoryDBPath},
	}
	for _, item := range expansions {
		expanded, err := expandPath(*item.value)
		if err != nil {
			return fmt.Errorf("expand %s: %w", item.name, err)
		}
		*item.value = expanded
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Provider = strings.ToLower(strings.TrimSpace(c.Transcription.Provider))
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = defaultProvider
	}
	c.Transcription.Language = strings.TrimSpace(c.Transcription.Language)
	if c.Transcription.Language == "" {
		c.Transcription.Language = defaultLanguage
	}
	if c.Transcription.ChunkSeconds <= 0 {
		c.Transcription.ChunkSeconds = defaultChunkSeconds
	}
	if c.Transcription.DiarizationMinSpeakers <= 0 {
		c.Transcription.DiarizationMinSpeakers = defaultDiarizationMinSpeakers
	}
	if c.Transcription.DiarizationMaxSpeakers <= 0 {
		c.Transcription.DiarizationMaxSpeakers = defaultDiarizationMaxSpeakers
	}
	c.Transcription.WhisperModel = strings.TrimSpace(c.Transcription.WhisperModel)
	if c.Transcription.WhisperModel == "" {
		c.Transcription.WhisperModel = defaultWhisperModel
	}
}

func (c *Config) normalizeEndpoints() {
	c.Google.BaseURL = strings.TrimRight(strings.TrimSpace(c.Google.BaseURL), "/")
	if c.Google.BaseURL == "" {
		c.Google.BaseURL = defaultGoogleBaseURL
	}
	if c.Google.TimeoutSeconds <= 0 {
		c.Google.TimeoutSeconds = defaultGoogleTimeoutSeconds
	}
	c.Vision.BaseURL = strings.TrimRight(strings.TrimSpace(c.Vision.BaseURL), "/")
	if c.Vision.BaseURL == "" {
		c.Vision.BaseURL = defaultVisionBaseURL
	}
	if c.Vision.TimeoutSeconds <= 0 {
		c.Vision.TimeoutSeconds = defaultVisionTimeoutSeconds
	}
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = defaultDownloadTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
