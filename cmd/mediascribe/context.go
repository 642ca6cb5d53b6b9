package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mediascribe/internal/analysis"
	"mediascribe/internal/chunk"
	"mediascribe/internal/config"
	"mediascribe/internal/download"
	"mediascribe/internal/frames"
	"mediascribe/internal/history"
	"mediascribe/internal/logging"
	"mediascribe/internal/media/ffmpeg"
	"mediascribe/internal/ocr"
	"mediascribe/internal/services/google"
	"mediascribe/internal/services/vision"
	"mediascribe/internal/services/whisper"
	"mediascribe/internal/speakers"
	"mediascribe/internal/transcribe"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromSettings(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
}

// openSpeakerStore opens the configured speaker store; callers own Close.
func (c *commandContext) openSpeakerStore(logger *slog.Logger) (*speakers.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return speakers.NewStore(cfg.Paths.SpeakerStorePath, logger)
}

// openHistory opens the configured run history; callers own Close.
func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.Paths.HistoryDBPath)
}

// buildAnalyzer wires the full pipeline from configuration and environment
// credentials. The returned cleanup releases the stores.
func (c *commandContext) buildAnalyzer(logger *slog.Logger, providerOverride string) (*analysis.Analyzer, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, nil, fmt.Errorf("load credentials: %w", err)
	}

	provider := cfg.Transcription.Provider
	if providerOverride != "" {
		provider = providerOverride
	}

	ffmpegSvc := ffmpeg.NewService(cfg.FFmpegBinary())

	googleClient := google.NewClient(google.Config{
		APIKey:         creds.GoogleSpeechAPIKey,
		BaseURL:        cfg.Google.BaseURL,
		TimeoutSeconds: cfg.Google.TimeoutSeconds,
	})
	whisperClient := whisper.NewClient(creds.OpenAIAPIKey, cfg.Transcription.WhisperModel)
	router := transcribe.NewRouter(googleClient, whisperClient, chunk.NewSplitter(ffmpegSvc, logger), transcribe.RouterConfig{
		Provider:               provider,
		Language:               cfg.Transcription.Language,
		Punctuation:            cfg.Transcription.Punctuation,
		DiarizationMinSpeakers: cfg.Transcription.DiarizationMinSpeakers,
		DiarizationMaxSpeakers: cfg.Transcription.DiarizationMaxSpeakers,
		EnhancedModel:          cfg.Transcription.EnhancedModel,
		ChunkSeconds:           float64(cfg.Transcription.ChunkSeconds),
	}, logger)

	var (
		annotator vision.Annotator
		captions  *ocr.Builder
	)
	if creds.VisionAPIKey != "" {
		visionClient := vision.NewClient(vision.Config{
			APIKey:         creds.VisionAPIKey,
			BaseURL:        cfg.Vision.BaseURL,
			TimeoutSeconds: cfg.Vision.TimeoutSeconds,
		})
		annotator = visionClient
		captions = ocr.NewBuilder(visionClient, ocr.Options{
			ConfidenceThreshold: cfg.OCR.ConfidenceThreshold,
			MinTextLength:       cfg.OCR.MinTextLength,
		}, logger)
	}

	store, err := c.openSpeakerStore(logger)
	if err != nil {
		return nil, nil, err
	}
	runs, err := c.openHistory()
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	analyzer := analysis.New(cfg, analysis.Deps{
		FFmpeg:    ffmpegSvc,
		Fetcher:   download.NewFetcher(time.Duration(cfg.Download.TimeoutSeconds)*time.Second, logger),
		Router:    router,
		Sampler:   frames.NewSampler(ffmpegSvc, logger),
		Captions:  captions,
		Annotator: annotator,
		Speakers:  store,
		History:   runs,
	}, logger)

	cleanup := func() {
		store.Close()
		runs.Close()
	}
	return analyzer, cleanup, nil
}
