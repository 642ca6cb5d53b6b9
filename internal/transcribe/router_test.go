package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediascribe/internal/chunk"
	"mediascribe/internal/logging"
	"mediascribe/internal/media/ffmpeg"
	"mediascribe/internal/services"
	"mediascribe/internal/services/google"
	"mediascribe/internal/services/whisper"
)

type fakeGoogle struct {
	recognizeRes   []google.Result
	recognizeErr   error
	recognizeCalls int

	startName  string
	startErr   error
	startCalls int

	pollOps   []google.Operation
	pollFn    func(calls int) (google.Operation, error)
	pollCalls int

	cancelCalls int
}

func (f *fakeGoogle) Recognize(ctx context.Context, audio []byte, cfg google.RecognitionConfig) ([]google.Result, error) {
	f.recognizeCalls++
	return f.recognizeRes, f.recognizeErr
}

func (f *fakeGoogle) StartLongRunning(ctx context.Context, audio []byte, cfg google.RecognitionConfig) (string, error) {
	f.startCalls++
	return f.startName, f.startErr
}

func (f *fakeGoogle) PollOperation(ctx context.Context, name string) (google.Operation, error) {
	calls := f.pollCalls
	f.pollCalls++
	if f.pollFn != nil {
		return f.pollFn(calls)
	}
	if calls >= len(f.pollOps) {
		calls = len(f.pollOps) - 1
	}
	return f.pollOps[calls], nil
}

func (f *fakeGoogle) CancelOperation(ctx context.Context, name string) error {
	f.cancelCalls++
	return nil
}

type fakeWhisper struct {
	paths []string
	fn    func(path string) (whisper.Transcription, error)
}

func (f *fakeWhisper) Transcribe(ctx context.Context, path string) (whisper.Transcription, error) {
	f.paths = append(f.paths, path)
	if f.fn != nil {
		return f.fn(path)
	}
	return whisper.Transcription{Text: "some words"}, nil
}

func newTestRouter(g GoogleBackend, w whisper.Transcriber, cfg RouterConfig) *Router {
	svc := ffmpeg.NewService("ffmpeg")
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return nil
	})
	splitter := chunk.NewSplitter(svc, logging.NewNop())
	return NewRouter(g, w, splitter, cfg, logging.NewNop())
}

func writeAudioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF fake audio"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestRouterLargeInputNeverCallsGoogleSync(t *testing.T) {
	g := &fakeGoogle{}
	w := &fakeWhisper{}
	router := newTestRouter(g, w, RouterConfig{Provider: "google"})

	res, err := router.Transcribe(context.Background(), Input{
		AudioPath:       writeAudioFixture(t),
		SizeBytes:       30_000_000,
		DurationSeconds: 10,
		WorkDir:         t.TempDir(),
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if g.recognizeCalls != 0 || g.startCalls != 0 {
		t.Fatalf("google endpoints called: recognize=%d start=%d", g.recognizeCalls, g.startCalls)
	}
	if res.Provider != ProviderWhisperChunked && res.Provider != ProviderWhisperDirect {
		t.Fatalf("expected a whisper provider, got %s", res.Provider)
	}
	for _, warning := range res.Warnings {
		if warning == fallbackWarning {
			t.Fatal("fallback warning recorded without a google attempt")
		}
	}
}

func TestRouterGoogleSyncDiarizedResult(t *testing.T) {
	g := &fakeGoogle{
		recognizeRes: []google.Result{{Alternatives: []google.Alternative{{
			Transcript: "hello world",
			Confidence: 0.95,
			Words: []google.Word{
				{Word: "hello", StartTime: 0, EndTime: 0.4, SpeakerTag: 1},
				{Word: "world", StartTime: 0.4, EndTime: 0.9, SpeakerTag: 1},
			},
		}}}},
	}
	w := &fakeWhisper{}
	router := newTestRouter(g, w, RouterConfig{Provider: "auto"})

	res, err := router.Transcribe(context.Background(), Input{
		AudioPath:       writeAudioFixture(t),
		SizeBytes:       200_000,
		DurationSeconds: 12,
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Provider != ProviderGoogleSync {
		t.Fatalf("expected google sync, got %s", res.Provider)
	}
	if len(w.paths) != 0 {
		t.Fatalf("whisper called on the google path: %v", w.paths)
	}
	if res.FullText != "hello world" {
		t.Fatalf("unexpected transcript: %q", res.FullText)
	}
	if !res.Diarized() || res.SpeakerSegments[0].SpeakerTag != 1 {
		t.Fatalf("expected a diarized result: %+v", res.SpeakerSegments)
	}
}

func TestRouterAudioTooLongEscalatesToLongRunning(t *testing.T) {
	g := &fakeGoogle{
		recognizeErr: google.ErrAudioTooLong,
		startName:    "operations/op-1",
		pollOps: []google.Operation{
			{Name: "operations/op-1"},
			{Name: "operations/op-1", Done: true, Results: []google.Result{{Alternatives: []google.Alternative{{Transcript: "long form"}}}}},
		},
	}
	router := newTestRouter(g, &fakeWhisper{}, RouterConfig{
		Provider:     "google",
		PollInterval: time.Millisecond,
	})

	res, err := router.Transcribe(context.Background(), Input{
		AudioPath:       writeAudioFixture(t),
		SizeBytes:       100_000,
		DurationSeconds: 20,
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Provider != ProviderGoogleLongRunning {
		t.Fatalf("expected long running provider, got %s", res.Provider)
	}
	if g.pollCalls != 2 {
		t.Fatalf("expected 2 polls, got %d", g.pollCalls)
	}
	if res.FullText != "long form" {
		t.Fatalf("unexpected transcript: %q", res.FullText)
	}
}

func TestRouterInlineLimitFallsBackWithWarning(t *testing.T) {
	g := &fakeGoogle{
		recognizeErr: google.ErrAudioTooLong,
		startErr:     google.ErrInlineLimit,
	}
	w := &fakeWhisper{fn: func(path string) (whisper.Transcription, error) {
		return whisper.Transcription{Text: "whisper transcript"}, nil
	}}
	router := newTestRouter(g, w, RouterConfig{Provider: "google", PollInterval: time.Millisecond})

	res, err := router.Transcribe(context.Background(), Input{
		AudioPath:       writeAudioFixture(t),
		SizeBytes:       100_000,
		DurationSeconds: 20,
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Provider != ProviderWhisperDirect {
		t.Fatalf("expected whisper direct, got %s", res.Provider)
	}
	found := false
	for _, warning := range res.Warnings {
		if warning == fallbackWarning {
			found = true
		}
	}
	if !found {
		t.Fatalf("fallback warning missing: %v", res.Warnings)
	}
}

func TestRouterPollBudgetExceededIsTimeout(t *testing.T) {
	g := &fakeGoogle{
		recognizeErr: google.ErrAudioTooLong,
		startName:    "operations/slow",
		pollOps:      []google.Operation{{Name: "operations/slow"}},
	}
	router := newTestRouter(g, &fakeWhisper{}, RouterConfig{
		Provider:        "google",
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 3,
	})

	_, err := router.Transcribe(context.Background(), Input{
		AudioPath:       writeAudioFixture(t),
		SizeBytes:       100_000,
		DurationSeconds: 20,
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if g.pollCalls != 3 {
		t.Fatalf("expected 3 polls, got %d", g.pollCalls)
	}
}

func TestRouterCancellationCancelsRemoteOperation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := &fakeGoogle{
		recognizeErr: google.ErrAudioTooLong,
		startName:    "operations/cancelled",
	}
	g.pollFn = func(calls int) (google.Operation, error) {
		cancel()
		return google.Operation{Name: "operations/cancelled"}, nil
	}
	router := newTestRouter(g, &fakeWhisper{}, RouterConfig{
		Provider:     "google",
		PollInterval: time.Millisecond,
	})

	_, err := router.Transcribe(ctx, Input{
		AudioPath:       writeAudioFixture(t),
		SizeBytes:       100_000,
		DurationSeconds: 20,
	})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if g.cancelCalls != 1 {
		t.Fatalf("expected one remote cancel, got %d", g.cancelCalls)
	}
}

func TestRouterAutoRoutesLongAudioToChunkedWhisper(t *testing.T) {
	w := &fakeWhisper{fn: func(path string) (whisper.Transcription, error) {
		return whisper.Transcription{
			Text:  "chunk words",
			Words: []whisper.Word{{Text: "chunk", Start: 0, End: 1}, {Text: "words", Start: 90, End: 100}},
		}, nil
	}}
	g := &fakeGoogle{}
	router := newTestRouter(g, w, RouterConfig{Provider: "auto", ChunkSeconds: 120})

	res, err := router.Transcribe(context.Background(), Input{
		AudioPath:       writeAudioFixture(t),
		SizeBytes:       40_000_000,
		DurationSeconds: 2400,
		WorkDir:         t.TempDir(),
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if g.recognizeCalls != 0 {
		t.Fatal("google called for long audio in auto mode")
	}
	if res.Provider != ProviderWhisperChunked {
		t.Fatalf("expected chunked whisper, got %s", res.Provider)
	}
	if len(w.paths) != 20 {
		t.Fatalf("expected 20 chunk transcriptions, got %d", len(w.paths))
	}
	last := res.Words[len(res.Words)-1]
	if last.End <= 2400-120 || last.End > 2400 {
		t.Fatalf("final word end %.1f not within one chunk of the total duration", last.End)
	}
}

func TestRouterChunkFailureDropsChunkAndShiftsOffsets(t *testing.T) {
	w := &fakeWhisper{fn: func(path string) (whisper.Transcription, error) {
		if strings.Contains(path, "chunk_000") {
			return whisper.Transcription{}, fmt.Errorf("%w: decode failed", services.ErrTransient)
		}
		return whisper.Transcription{
			Text:  "surviving chunk",
			Words: []whisper.Word{{Text: "surviving", Start: 2, End: 3}},
		}, nil
	}}
	router := newTestRouter(&fakeGoogle{}, w, RouterConfig{Provider: "openai", ChunkSeconds: 120})

	res, err := router.Transcribe(context.Background(), Input{
		AudioPath:       writeAudioFixture(t),
		SizeBytes:       1_000_000,
		DurationSeconds: 240,
		WorkDir:         t.TempDir(),
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "chunk 0") {
		t.Fatalf("expected a dropped-chunk warning, got %v", res.Warnings)
	}
	if res.FullText != "surviving chunk" {
		t.Fatalf("unexpected transcript: %q", res.FullText)
	}
	// Offsets still advance past the dropped first chunk.
	if res.Words[0].Start != 122 || res.Words[0].End != 123 {
		t.Fatalf("word not shifted past dropped chunk: %+v", res.Words[0])
	}
}

func TestRouterAllChunksFailedIsTerminal(t *testing.T) {
	w := &fakeWhisper{fn: func(path string) (whisper.Transcription, error) {
		return whisper.Transcription{}, fmt.Errorf("%w: decode failed", services.ErrTransient)
	}}
	router := newTestRouter(&fakeGoogle{}, w, RouterConfig{Provider: "openai", ChunkSeconds: 120})

	_, err := router.Transcribe(context.Background(), Input{
		AudioPath:       writeAudioFixture(t),
		SizeBytes:       1_000_000,
		DurationSeconds: 240,
		WorkDir:         t.TempDir(),
	})
	if !errors.Is(err, services.ErrChunking) {
		t.Fatalf("expected chunking error, got %v", err)
	}
}

func TestRouterZeroResultsSurfacesWarning(t *testing.T) {
	g := &fakeGoogle{}
	router := newTestRouter(g, &fakeWhisper{}, RouterConfig{Provider: "google"})

	res, err := router.Transcribe(context.Background(), Input{
		AudioPath:       writeAudioFixture(t),
		SizeBytes:       100_000,
		DurationSeconds: 5,
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != noResultsWarning {
		t.Fatalf("expected zero-result warning, got %v", res.Warnings)
	}
}

func TestRouterLogsStateTransitionsOnFallbackPath(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := ffmpeg.NewService("ffmpeg")
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return nil
	})
	splitter := chunk.NewSplitter(svc, logging.NewNop())
	g := &fakeGoogle{recognizeErr: google.ErrInlineLimit}
	router := NewRouter(g, &fakeWhisper{}, splitter, RouterConfig{Provider: "google"}, logger)

	if _, err := router.Transcribe(context.Background(), Input{
		AudioPath:       writeAudioFixture(t),
		SizeBytes:       100_000,
		DurationSeconds: 5,
	}); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	logged := buf.String()
	for _, state := range []State{StateRouting, StateGoogleSync, StateWhisperDirect, StateDone} {
		if !strings.Contains(logged, "to="+string(state)) {
			t.Fatalf("missing %s transition in logs:\n%s", state, logged)
		}
	}
}

func TestRouterUnknownProviderIsConfigurationError(t *testing.T) {
	router := newTestRouter(&fakeGoogle{}, &fakeWhisper{}, RouterConfig{Provider: "bogus"})
	_, err := router.Transcribe(context.Background(), Input{AudioPath: "unused"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
