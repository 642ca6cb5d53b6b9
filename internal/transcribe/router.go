package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mediascribe/internal/chunk"
	"mediascribe/internal/logging"
	"mediascribe/internal/services"
	"mediascribe/internal/services/google"
	"mediascribe/internal/services/whisper"
)

// Routing thresholds. Google's synchronous endpoint degrades past short
// clips; Whisper uploads are capped by the API's request size limit.
const (
	googleSyncMaxSeconds = 30.0
	googleSyncMaxBytes   = 5_000_000
	whisperMaxSeconds    = 600.0
	whisperMaxBytes      = 25 * 1024 * 1024

	defaultPollInterval    = 5 * time.Second
	defaultMaxPollAttempts = 60

	fallbackWarning  = "fallback used, no diarization"
	noResultsWarning = "provider returned no transcription results"
)

// GoogleBackend is the slice of the Google speech client the router drives.
type GoogleBackend interface {
	Recognize(ctx context.Context, audio []byte, cfg google.RecognitionConfig) ([]google.Result, error)
	StartLongRunning(ctx context.Context, audio []byte, cfg google.RecognitionConfig) (string, error)
	PollOperation(ctx context.Context, name string) (google.Operation, error)
	CancelOperation(ctx context.Context, name string) error
}

// RouterConfig carries the per-run knobs the router consults when choosing
// and invoking a back-end.
type RouterConfig struct {
	Provider               string
	Language               string
	Punctuation            bool
	DiarizationMinSpeakers int
	DiarizationMaxSpeakers int
	EnhancedModel          bool
	ChunkSeconds           float64
	PollInterval           time.Duration
	MaxPollAttempts        int
}

// Input describes one audio asset ready for transcription.
type Input struct {
	AudioPath       string
	SizeBytes       int64
	DurationSeconds float64
	WorkDir         string
}

// Router walks the provider state machine: it picks a back-end from the
// requested provider plus the asset's size and duration, then follows the
// defined fallback transitions until a transcript or a terminal error.
type Router struct {
	google   GoogleBackend
	whisper  whisper.Transcriber
	splitter *chunk.Splitter
	cfg      RouterConfig
	logger   *slog.Logger
}

// routeOutcome is the tagged result of a Google attempt. Exactly one of the
// fields is meaningful: a result, a fallback reason, or a terminal error.
type routeOutcome struct {
	result         *Result
	fallbackReason string
	err            error
}

// machine records one call's walk through the fallback states. Every
// transition is logged so a run's route can be reconstructed from debug logs.
type machine struct {
	logger  *slog.Logger
	current State
}

func newMachine(logger *slog.Logger) *machine {
	return &machine{logger: logger, current: StateIdle}
}

func (m *machine) to(next State) {
	m.logger.Debug("router state",
		logging.String("from", string(m.current)),
		logging.String("to", string(next)))
	m.current = next
}

func NewRouter(g GoogleBackend, w whisper.Transcriber, splitter *chunk.Splitter, cfg RouterConfig, logger *slog.Logger) *Router {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = defaultMaxPollAttempts
	}
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = 120
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{google: g, whisper: w, splitter: splitter, cfg: cfg, logger: logger}
}

// Transcribe produces exactly one Result or a terminal error.
func (r *Router) Transcribe(ctx context.Context, in Input) (*Result, error) {
	m := newMachine(r.logger)
	m.to(StateRouting)
	r.logger.Debug("routing transcription",
		logging.String("provider", r.cfg.Provider),
		logging.Int64("size_bytes", in.SizeBytes),
		logging.Float64("duration_seconds", in.DurationSeconds))

	switch r.cfg.Provider {
	case "openai":
		return r.runWhisper(ctx, m, in, nil)
	case "google", "auto", "":
		if in.DurationSeconds > googleSyncMaxSeconds || in.SizeBytes > googleSyncMaxBytes {
			// Past the sync ceiling there is no point attempting Google;
			// route straight to Whisper without a fallback warning since no
			// attempt was made.
			return r.runWhisper(ctx, m, in, nil)
		}
		outcome := r.runGoogle(ctx, m, in)
		switch {
		case outcome.err != nil:
			m.to(StateFailed)
			return nil, outcome.err
		case outcome.fallbackReason != "":
			r.logger.Warn("falling back to whisper",
				logging.String("reason", outcome.fallbackReason))
			return r.runWhisper(ctx, m, in, []string{fallbackWarning})
		default:
			m.to(StateDone)
			return outcome.result, nil
		}
	default:
		m.to(StateFailed)
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "route",
			fmt.Sprintf("unknown provider %q", r.cfg.Provider), nil)
	}
}

func (r *Router) recognitionConfig() google.RecognitionConfig {
	return google.RecognitionConfig{
		LanguageCode:               r.cfg.Language,
		EnableWordTimeOffsets:      true,
		EnableAutomaticPunctuation: r.cfg.Punctuation,
		DiarizationMinSpeakers:     r.cfg.DiarizationMinSpeakers,
		DiarizationMaxSpeakers:     r.cfg.DiarizationMaxSpeakers,
		UseEnhanced:                r.cfg.EnhancedModel,
	}
}

func (r *Router) runGoogle(ctx context.Context, m *machine, in Input) routeOutcome {
	audio, err := os.ReadFile(in.AudioPath)
	if err != nil {
		return routeOutcome{err: services.Wrap(services.ErrUnsupportedInput, "transcribe", "read_audio", "reading audio for recognition", err)}
	}
	cfg := r.recognitionConfig()

	m.to(StateGoogleSync)
	results, err := r.google.Recognize(ctx, audio, cfg)
	switch {
	case err == nil:
		return r.googleOutcome(results, ProviderGoogleSync)
	case errors.Is(err, google.ErrAudioTooLong):
		return r.runGoogleLongRunning(ctx, m, audio, cfg)
	case errors.Is(err, google.ErrInlineLimit):
		return routeOutcome{fallbackReason: "google inline audio limit exceeded"}
	default:
		return routeOutcome{err: err}
	}
}

func (r *Router) runGoogleLongRunning(ctx context.Context, m *machine, audio []byte, cfg google.RecognitionConfig) routeOutcome {
	m.to(StateGoogleLongRun)
	name, err := r.google.StartLongRunning(ctx, audio, cfg)
	if err != nil {
		if errors.Is(err, google.ErrInlineLimit) {
			return routeOutcome{fallbackReason: "google inline audio limit exceeded"}
		}
		return routeOutcome{err: err}
	}
	r.logger.Debug("long running recognition started", logging.String("operation", name))

	results, err := r.pollUntilDone(ctx, name)
	if err != nil {
		if errors.Is(err, google.ErrInlineLimit) {
			return routeOutcome{fallbackReason: "google inline audio limit exceeded"}
		}
		return routeOutcome{err: err}
	}
	return r.googleOutcome(results, ProviderGoogleLongRunning)
}

// errOperationPending marks a poll that found the operation still running.
var errOperationPending = errors.New("operation pending")

func (r *Router) pollUntilDone(ctx context.Context, name string) ([]google.Result, error) {
	var results []google.Result
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.cfg.PollInterval), uint64(r.cfg.MaxPollAttempts-1)),
		ctx)
	err := backoff.Retry(func() error {
		op, err := r.google.PollOperation(ctx, name)
		if err != nil {
			if errors.Is(err, services.ErrTransient) {
				return err
			}
			return backoff.Permanent(err)
		}
		if op.Err != nil {
			return backoff.Permanent(op.Err)
		}
		if !op.Done {
			return errOperationPending
		}
		results = op.Results
		return nil
	}, policy)
	if err != nil {
		if ctx.Err() != nil {
			r.cancelOperation(name)
			return nil, services.Wrap(services.ErrTransient, "transcribe", "poll_operation", "polling cancelled", ctx.Err())
		}
		if errors.Is(err, errOperationPending) || errors.Is(err, services.ErrTransient) {
			return nil, services.Wrap(services.ErrTimeout, "transcribe", "poll_operation",
				fmt.Sprintf("operation %s did not complete within %d polls", name, r.cfg.MaxPollAttempts), nil)
		}
		return nil, err
	}
	return results, nil
}

// cancelOperation makes a best-effort attempt to stop a remote operation the
// caller no longer wants. Failures are logged, never surfaced.
func (r *Router) cancelOperation(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.google.CancelOperation(ctx, name); err != nil {
		r.logger.Warn("cancel long running operation", logging.String("operation", name), logging.Error(err))
	}
}

func (r *Router) googleOutcome(results []google.Result, provider Provider) routeOutcome {
	fullText, words := StitchGoogleResults(results)
	res := &Result{
		FullText:        fullText,
		Words:           words,
		SpeakerSegments: SegmentBySpeaker(words),
		Provider:        provider,
	}
	if len(results) == 0 {
		res.Warnings = append(res.Warnings, noResultsWarning)
	}
	return routeOutcome{result: res}
}

func (r *Router) runWhisper(ctx context.Context, m *machine, in Input, warnings []string) (*Result, error) {
	if in.SizeBytes > whisperMaxBytes || in.DurationSeconds > whisperMaxSeconds {
		return r.runWhisperChunked(ctx, m, in, warnings)
	}
	m.to(StateWhisperDirect)
	trans, err := r.whisper.Transcribe(ctx, in.AudioPath)
	if err != nil {
		m.to(StateFailed)
		return nil, err
	}
	res := &Result{
		FullText: trans.Text,
		Words:    whisperWords(trans.Words),
		Provider: ProviderWhisperDirect,
		Warnings: warnings,
	}
	if trans.Text == "" && len(trans.Words) == 0 {
		res.Warnings = append(res.Warnings, noResultsWarning)
	}
	m.to(StateDone)
	return res, nil
}

func (r *Router) runWhisperChunked(ctx context.Context, m *machine, in Input, warnings []string) (*Result, error) {
	m.to(StateWhisperChunked)
	chunks, err := r.splitter.Split(ctx, in.AudioPath, in.WorkDir, in.DurationSeconds, r.cfg.ChunkSeconds)
	if err != nil {
		m.to(StateFailed)
		return nil, err
	}
	defer chunk.Cleanup(chunks, in.AudioPath)

	slots := make([]*ChunkTranscription, len(chunks))
	transcribed := 0
	for i, c := range chunks {
		if c == nil {
			warnings = append(warnings, fmt.Sprintf("chunk %d dropped during conversion", i))
			continue
		}
		if err := ctx.Err(); err != nil {
			m.to(StateFailed)
			return nil, services.Wrap(services.ErrTransient, "transcribe", "chunked", "transcription cancelled", err)
		}
		trans, err := r.whisper.Transcribe(ctx, c.Path)
		if err != nil {
			if services.Fatal(err) {
				m.to(StateFailed)
				return nil, err
			}
			r.logger.Warn("chunk transcription failed",
				logging.Int("chunk_index", c.Index), logging.Error(err))
			warnings = append(warnings, fmt.Sprintf("chunk %d dropped during transcription", c.Index))
			continue
		}
		slots[c.Index] = &ChunkTranscription{
			Index: c.Index,
			Text:  trans.Text,
			Words: whisperWords(trans.Words),
		}
		transcribed++
	}
	if transcribed == 0 {
		m.to(StateFailed)
		return nil, services.Wrap(services.ErrChunking, "transcribe", "chunked", "all chunks failed transcription", nil)
	}

	fullText, words := StitchChunks(slots, r.cfg.ChunkSeconds)
	res := &Result{
		FullText: fullText,
		Words:    words,
		Provider: ProviderWhisperChunked,
		Warnings: warnings,
	}
	m.to(StateDone)
	return res, nil
}

func whisperWords(in []whisper.Word) []Word {
	if len(in) == 0 {
		return nil
	}
	words := make([]Word, 0, len(in))
	for _, w := range in {
		words = append(words, Word{Text: w.Text, Start: w.Start, End: w.End})
	}
	return words
}
