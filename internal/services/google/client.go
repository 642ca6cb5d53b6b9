package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mediascribe/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// ErrAudioTooLong signals that the synchronous endpoint refused the request
// because the audio exceeds its duration ceiling. The router reacts by
// switching to the long-running path.
var ErrAudioTooLong = errors.New("google: audio too long for synchronous recognition")

// ErrInlineLimit signals that the long-running endpoint refused inline audio
// because of its payload size ceiling. The router reacts by falling back to
// the Whisper path.
var ErrInlineLimit = errors.New("google: inline audio exceeds long-running size limit")

// Config captures the runtime settings required to talk to the speech API.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// RecognitionConfig mirrors the request options the speech back-end exposes.
type RecognitionConfig struct {
	LanguageCode               string
	EnableWordTimeOffsets      bool
	EnableAutomaticPunctuation bool
	DiarizationMinSpeakers     int
	DiarizationMaxSpeakers     int
	UseEnhanced                bool
}

// Word is a recognized word with optional timing and speaker attribution.
type Word struct {
	Word       string
	StartTime  float64
	EndTime    float64
	SpeakerTag int
}

// Alternative is one recognition hypothesis.
type Alternative struct {
	Transcript string
	Confidence float64
	Words      []Word
}

// Result is one utterance-level recognition result.
type Result struct {
	Alternatives []Alternative
}

// Operation is the state of a long-running recognition job.
type Operation struct {
	Name    string
	Done    bool
	Results []Result
	Err     error
}

// Client wraps the speech recognition REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a speech client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://speech.googleapis.com/v1"
	}
	return client
}

type wireWord struct {
	StartTime  string `json:"startTime,omitempty"`
	EndTime    string `json:"endTime,omitempty"`
	Word       string `json:"word"`
	SpeakerTag int    `json:"speakerTag,omitempty"`
}

type wireAlternative struct {
	Transcript string     `json:"transcript"`
	Confidence float64    `json:"confidence,omitempty"`
	Words      []wireWord `json:"words,omitempty"`
}

type wireResult struct {
	Alternatives []wireAlternative `json:"alternatives"`
}

type wireConfig struct {
	LanguageCode               string           `json:"languageCode"`
	EnableWordTimeOffsets      bool             `json:"enableWordTimeOffsets,omitempty"`
	EnableAutomaticPunctuation bool             `json:"enableAutomaticPunctuation,omitempty"`
	DiarizationConfig          *wireDiarization `json:"diarizationConfig,omitempty"`
	UseEnhanced                bool             `json:"useEnhanced,omitempty"`
}

type wireDiarization struct {
	EnableSpeakerDiarization bool `json:"enableSpeakerDiarization"`
	MinSpeakerCount          int  `json:"minSpeakerCount,omitempty"`
	MaxSpeakerCount          int  `json:"maxSpeakerCount,omitempty"`
}

type recognizeRequest struct {
	Config wireConfig `json:"config"`
	Audio  struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type recognizeResponse struct {
	Results []wireResult `json:"results"`
}

type operationResponse struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response *struct {
		Results []wireResult `json:"results"`
	} `json:"response,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Recognize performs synchronous recognition on inline audio bytes.
func (c *Client) Recognize(ctx context.Context, audio []byte, cfg RecognitionConfig) ([]Result, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "google", "recognize", "missing GOOGLE_SPEECH_API_KEY", nil)
	}
	var resp recognizeResponse
	if err := c.post(ctx, "/speech:recognize", buildRequest(audio, cfg), &resp); err != nil {
		return nil, err
	}
	return convertResults(resp.Results), nil
}

// StartLongRunning begins an asynchronous recognition job and returns its
// operation name.
func (c *Client) StartLongRunning(ctx context.Context, audio []byte, cfg RecognitionConfig) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "google", "longrunningrecognize", "missing GOOGLE_SPEECH_API_KEY", nil)
	}
	var resp operationResponse
	if err := c.post(ctx, "/speech:longrunningrecognize", buildRequest(audio, cfg), &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Name) == "" {
		return "", services.Wrap(services.ErrTransient, "google", "longrunningrecognize", "operation name missing from response", nil)
	}
	return resp.Name, nil
}

// PollOperation fetches the current state of a long-running job.
func (c *Client) PollOperation(ctx context.Context, name string) (Operation, error) {
	var resp operationResponse
	if err := c.get(ctx, "/operations/"+name, &resp); err != nil {
		return Operation{}, err
	}
	op := Operation{Name: resp.Name, Done: resp.Done}
	if resp.Error != nil {
		op.Err = classifyOperationError(resp.Error.Code, resp.Error.Message)
	}
	if resp.Response != nil {
		op.Results = convertResults(resp.Response.Results)
	}
	return op, nil
}

// CancelOperation asks the remote side to abandon a long-running job.
// Best effort: callers treat failures as advisory.
func (c *Client) CancelOperation(ctx context.Context, name string) error {
	return c.post(ctx, "/operations/"+name+":cancel", struct{}{}, &struct{}{})
}

func buildRequest(audio []byte, cfg RecognitionConfig) recognizeRequest {
	req := recognizeRequest{
		Config: wireConfig{
			LanguageCode:               cfg.LanguageCode,
			EnableWordTimeOffsets:      cfg.EnableWordTimeOffsets,
			EnableAutomaticPunctuation: cfg.EnableAutomaticPunctuation,
			UseEnhanced:                cfg.UseEnhanced,
		},
	}
	if cfg.DiarizationMaxSpeakers > 0 {
		req.Config.DiarizationConfig = &wireDiarization{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          cfg.DiarizationMinSpeakers,
			MaxSpeakerCount:          cfg.DiarizationMaxSpeakers,
		}
	}
	req.Audio.Content = base64.StdEncoding.EncodeToString(audio)
	return req
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("google: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("google: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return fmt.Errorf("google: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) url(path string) string {
	return c.cfg.BaseURL + path + "?key=" + c.cfg.APIKey
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "google", "request", req.URL.Path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return services.Wrap(services.ErrTransient, "google", "read response", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyHTTPError(resp.StatusCode, payload)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("google: decode response: %w", err)
	}
	return nil
}

func classifyHTTPError(status int, payload []byte) error {
	message := extractErrorMessage(payload)
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "too long"):
		return fmt.Errorf("%w: %s", ErrAudioTooLong, message)
	case strings.Contains(lower, "inline audio") || strings.Contains(lower, "payload size"):
		return fmt.Errorf("%w: %s", ErrInlineLimit, message)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "google", "auth", message, nil)
	case status == http.StatusTooManyRequests || status >= 500:
		return services.Wrap(services.ErrTransient, "google", "http "+strconv.Itoa(status), message, nil)
	default:
		return services.Wrap(services.ErrUnsupportedInput, "google", "http "+strconv.Itoa(status), message, nil)
	}
}

func classifyOperationError(code int, message string) error {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "inline audio") || strings.Contains(lower, "payload size") {
		return fmt.Errorf("%w: %s", ErrInlineLimit, message)
	}
	return services.Wrap(services.ErrTransient, "google", "operation error "+strconv.Itoa(code), message, nil)
}

func extractErrorMessage(payload []byte) string {
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &wrapped); err == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return strings.TrimSpace(string(payload))
}

func convertResults(wire []wireResult) []Result {
	results := make([]Result, 0, len(wire))
	for _, wr := range wire {
		alternatives := make([]Alternative, 0, len(wr.Alternatives))
		for _, wa := range wr.Alternatives {
			words := make([]Word, 0, len(wa.Words))
			for _, ww := range wa.Words {
				words = append(words, Word{
					Word:       ww.Word,
					StartTime:  ParseDuration(ww.StartTime),
					EndTime:    ParseDuration(ww.EndTime),
					SpeakerTag: ww.SpeakerTag,
				})
			}
			alternatives = append(alternatives, Alternative{
				Transcript: wa.Transcript,
				Confidence: wa.Confidence,
				Words:      words,
			})
		}
		results = append(results, Result{Alternatives: alternatives})
	}
	return results
}

// ParseDuration converts the API's "12.340s" duration strings into seconds.
// Malformed values yield 0.
func ParseDuration(value string) float64 {
	trimmed := strings.TrimSuffix(strings.TrimSpace(value), "s")
	if trimmed == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}
