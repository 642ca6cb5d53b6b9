package whisper

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"mediascribe/internal/services"
)

// Word is a transcribed word with start/end timestamps in seconds.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Transcription is the result of one Whisper transcription call. Whisper
// offers no diarization, so there are no speaker tags.
type Transcription struct {
	Text  string
	Words []Word
}

// Transcriber is the subset of the Whisper back-end the router depends on.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Transcription, error)
}

// Client wraps the OpenAI audio transcription API.
type Client struct {
	api   *openai.Client
	model string
}

// Option customizes the client.
type Option func(*openai.ClientConfig)

// WithBaseURL points the client at an alternate endpoint (for testing).
func WithBaseURL(baseURL string) Option {
	return func(cfg *openai.ClientConfig) {
		if strings.TrimSpace(baseURL) != "" {
			cfg.BaseURL = baseURL
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *openai.ClientConfig) {
		if client != nil {
			cfg.HTTPClient = client
		}
	}
}

// NewClient constructs a Whisper client. Model defaults to whisper-1.
func NewClient(apiKey, model string, opts ...Option) *Client {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	for _, opt := range opts {
		opt(&cfg)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = openai.Whisper1
	}
	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// Transcribe sends the audio file for transcription with word-level
// timestamp granularity.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (Transcription, error) {
	if strings.TrimSpace(audioPath) == "" {
		return Transcription{}, services.Wrap(services.ErrUnsupportedInput, "whisper", "transcribe", "empty audio path", nil)
	}

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return Transcription{}, classifyError(err)
	}

	words := make([]Word, 0, len(resp.Words))
	for _, w := range resp.Words {
		words = append(words, Word{Text: w.Word, Start: w.Start, End: w.End})
	}
	return Transcription{
		Text:  strings.TrimSpace(resp.Text),
		Words: words,
	}, nil
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized:
			return services.Wrap(services.ErrConfiguration, "whisper", "auth", "invalid OPENAI_API_KEY", err)
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500:
			return services.Wrap(services.ErrTransient, "whisper", "transcribe", "provider unavailable", err)
		case apiErr.HTTPStatusCode == http.StatusBadRequest || apiErr.HTTPStatusCode == http.StatusUnsupportedMediaType:
			return services.Wrap(services.ErrUnsupportedInput, "whisper", "transcribe", "rejected audio payload", err)
		}
	}
	return services.Wrap(services.ErrTransient, "whisper", "transcribe", "request failed", err)
}
