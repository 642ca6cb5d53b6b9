package config

const (
	defaultStagingDir       = "~/.local/share/mediascribe/staging"
	defaultLogDir           = "~/.local/share/mediascribe/logs"
	defaultSpeakerStorePath = "~/.local/share/mediascribe/speakers.json"
	defaultHistoryDBPath    = "~/.local/share/mediascribe/history.db"

	defaultProvider               = "auto"
	defaultLanguage               = "en-US"
	defaultChunkSeconds           = 120
	defaultDiarizationMinSpeakers = 1
	defaultDiarizationMaxSpeakers = 6
	defaultWhisperModel           = "whisper-1"

	defaultGoogleBaseURL        = "https://speech.googleapis.com/v1"
	defaultGoogleTimeoutSeconds = 60
	defaultVisionBaseURL        = "https://vision.googleapis.com/v1"
	defaultVisionTimeoutSeconds = 30

	defaultMaxFrames               = 30
	defaultMinFrameIntervalSeconds = 1.0

	defaultOCRConfidenceThreshold = 0.5
	defaultOCRMinTextLength       = 0

	defaultMatchThreshold = 0.75

	defaultDownloadTimeoutSeconds = 30

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:       defaultStagingDir,
			LogDir:           defaultLogDir,
			SpeakerStorePath: defaultSpeakerStorePath,
			HistoryDBPath:    defaultHistoryDBPath,
		},
		Transcription: Transcription{
			Provider:               defaultProvider,
			Language:               defaultLanguage,
			ChunkSeconds:           defaultChunkSeconds,
			Punctuation:            true,
			DiarizationMinSpeakers: defaultDiarizationMinSpeakers,
			DiarizationMaxSpeakers: defaultDiarizationMaxSpeakers,
			EnhancedModel:          true,
			WhisperModel:           defaultWhisperModel,
		},
		Google: Google{
			BaseURL:        defaultGoogleBaseURL,
			TimeoutSeconds: defaultGoogleTimeoutSeconds,
		},
		Vision: Vision{
			BaseURL:        defaultVisionBaseURL,
			TimeoutSeconds: defaultVisionTimeoutSeconds,
		},
		Frames: Frames{
			MaxFrames:          defaultMaxFrames,
			MinIntervalSeconds: defaultMinFrameIntervalSeconds,
		},
		OCR: OCR{
			ConfidenceThreshold: defaultOCRConfidenceThreshold,
			MinTextLength:       defaultOCRMinTextLength,
		},
		Speakers: Speakers{
			MatchThreshold: defaultMatchThreshold,
		},
		Download: Download{
			TimeoutSeconds: defaultDownloadTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
