package analysis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediascribe/internal/chunk"
	"mediascribe/internal/config"
	"mediascribe/internal/download"
	"mediascribe/internal/frames"
	"mediascribe/internal/history"
	"mediascribe/internal/logging"
	"mediascribe/internal/media/ffmpeg"
	"mediascribe/internal/media/ffprobe"
	"mediascribe/internal/ocr"
	"mediascribe/internal/services"
	"mediascribe/internal/services/vision"
	"mediascribe/internal/services/whisper"
	"mediascribe/internal/speakers"
	"mediascribe/internal/transcribe"
)

type scriptedWhisper struct {
	transcription whisper.Transcription
	err           error
	calls         int
	ctxRunID      string
	ctxStage      string
}

func (s *scriptedWhisper) Transcribe(ctx context.Context, path string) (whisper.Transcription, error) {
	s.calls++
	s.ctxRunID, _ = services.RunIDFromContext(ctx)
	s.ctxStage, _ = services.StageFromContext(ctx)
	return s.transcription, s.err
}

type scriptedAnnotator struct {
	text    vision.TextResult
	objects []vision.Object
	labels  []vision.Label
}

func (s *scriptedAnnotator) TextDetection(ctx context.Context, imagePath string) (vision.TextResult, error) {
	return s.text, nil
}

func (s *scriptedAnnotator) ObjectLocalization(ctx context.Context, imagePath string) ([]vision.Object, error) {
	return s.objects, nil
}

func (s *scriptedAnnotator) LabelDetection(ctx context.Context, imagePath string) ([]vision.Label, error) {
	return s.labels, nil
}

func audioProbe(duration string) ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{Index: 0, CodecType: "audio", SampleRate: "44100", Channels: 1}},
		Format:  ffprobe.Format{Duration: duration, BitRate: "128000"},
	}
}

func videoProbe(duration string) ffprobe.Result {
	probe := audioProbe(duration)
	probe.Streams = append(probe.Streams, ffprobe.Stream{Index: 1, CodecType: "video", Width: 1280, Height: 720})
	return probe
}

func imageProbe() ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{Index: 0, CodecName: "png", CodecType: "video", Width: 800, Height: 600}},
		Format:  ffprobe.Format{FormatName: "png_pipe"},
	}
}

// touchRunner simulates ffmpeg by creating the destination file.
func touchRunner(ctx context.Context, name string, args ...string) error {
	return os.WriteFile(args[len(args)-1], []byte("fake media"), 0o644)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.StagingDir = t.TempDir()
	return &cfg
}

func newTestAnalyzer(t *testing.T, cfg *config.Config, probe ffprobe.Result, w whisper.Transcriber, annotator vision.Annotator) (*Analyzer, *history.Store) {
	t.Helper()
	svc := ffmpeg.NewService("ffmpeg")
	svc.WithCommandRunner(touchRunner)

	store, err := speakers.NewStore(filepath.Join(t.TempDir(), "speakers.json"), nil)
	if err != nil {
		t.Fatalf("open speaker store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	runs, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { runs.Close() })

	router := transcribe.NewRouter(nil, w, chunk.NewSplitter(svc, logging.NewNop()), transcribe.RouterConfig{
		Provider: "openai",
	}, logging.NewNop())

	var builder *ocr.Builder
	if annotator != nil {
		builder = ocr.NewBuilder(annotator, ocr.Options{}, logging.NewNop())
	}

	analyzer := New(cfg, Deps{
		Probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return probe, nil
		},
		FFmpeg:    svc,
		Fetcher:   download.NewFetcher(time.Second, logging.NewNop()),
		Router:    router,
		Sampler:   frames.NewSampler(svc, logging.NewNop()),
		Captions:  builder,
		Annotator: annotator,
		Speakers:  store,
		History:   runs,
	}, logging.NewNop())
	return analyzer, runs
}

func writeMedia(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("media bytes"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	return path
}

func TestAnalyzeAudioTranscribesAndIdentifiesSpeaker(t *testing.T) {
	cfg := testConfig(t)
	w := &scriptedWhisper{transcription: whisper.Transcription{
		Text: "hello from the narrator",
		Words: []whisper.Word{
			{Text: "hello", Start: 0, End: 0.5},
			{Text: "from", Start: 0.5, End: 0.8},
			{Text: "the", Start: 0.8, End: 1.0},
			{Text: "narrator", Start: 1.0, End: 1.6},
		},
	}}
	analyzer, _ := newTestAnalyzer(t, cfg, audioProbe("12.0"), w, nil)

	report, err := analyzer.Analyze(context.Background(), Request{Source: writeMedia(t, "talk.wav")})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.MediaType != "audio" {
		t.Fatalf("media type = %s, want audio", report.MediaType)
	}
	if report.Transcript == nil || report.Transcript.FullText != "hello from the narrator" {
		t.Fatalf("unexpected transcript: %+v", report.Transcript)
	}
	// Without diarization the whole file maps to a single speaker identity.
	if len(report.Speakers) != 1 || !report.Speakers[0].NewSpeaker {
		t.Fatalf("unexpected speakers: %+v", report.Speakers)
	}
	if report.RunID == "" {
		t.Fatal("run not recorded")
	}
	// Downstream stages see the run and stage annotations on the context.
	if w.ctxRunID != report.RunID || w.ctxStage != "speech" {
		t.Fatalf("context annotations missing: run=%q stage=%q", w.ctxRunID, w.ctxStage)
	}
}

func TestAnalyzeVideoRunsVisualStages(t *testing.T) {
	cfg := testConfig(t)
	w := &scriptedWhisper{transcription: whisper.Transcription{Text: "narration"}}
	annotator := &scriptedAnnotator{
		text:    vision.TextResult{FullText: "on-screen caption"},
		objects: []vision.Object{{Name: "Person", Confidence: 0.9}},
		labels:  []vision.Label{{Description: "Presentation", Confidence: 0.8}},
	}
	analyzer, _ := newTestAnalyzer(t, cfg, videoProbe("60.0"), w, annotator)

	report, err := analyzer.Analyze(context.Background(), Request{Source: writeMedia(t, "clip.mp4")})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.MediaType != "video" {
		t.Fatalf("media type = %s, want video", report.MediaType)
	}
	if report.Transcript == nil || report.Transcript.FullText != "narration" {
		t.Fatalf("unexpected transcript: %+v", report.Transcript)
	}
	if report.Captions == nil || len(report.Captions.Entries) == 0 {
		t.Fatalf("captions missing: %+v", report.Captions)
	}
	if len(report.Objects) != 1 || len(report.Labels) != 1 {
		t.Fatalf("annotations missing: objects=%v labels=%v", report.Objects, report.Labels)
	}
}

func TestAnalyzeImageAnnotatesWithoutTranscription(t *testing.T) {
	cfg := testConfig(t)
	w := &scriptedWhisper{}
	annotator := &scriptedAnnotator{
		text:    vision.TextResult{Detections: []vision.Detection{{Text: "GRAND OPENING", Confidence: 0.9}}},
		objects: []vision.Object{{Name: "Sign", Confidence: 0.85}},
		labels:  []vision.Label{{Description: "Storefront", Confidence: 0.7}},
	}
	analyzer, _ := newTestAnalyzer(t, cfg, imageProbe(), w, annotator)

	source := writeMedia(t, "poster.png")
	report, err := analyzer.Analyze(context.Background(), Request{Source: source})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.MediaType != "image" {
		t.Fatalf("media type = %s, want image", report.MediaType)
	}
	if w.calls != 0 {
		t.Fatalf("transcriber called %d times for an image", w.calls)
	}
	if report.Transcript != nil || len(report.Speakers) != 0 {
		t.Fatalf("unexpected speech output for image: %+v", report)
	}
	if report.Captions == nil || report.Captions.AllText != "GRAND OPENING" {
		t.Fatalf("unexpected captions: %+v", report.Captions)
	}
	if len(report.Objects) != 1 || len(report.Labels) != 1 {
		t.Fatalf("annotations missing: objects=%v labels=%v", report.Objects, report.Labels)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source image deleted: %v", err)
	}
}

func TestAnalyzeTranscriptionFailureKeepsVisualResults(t *testing.T) {
	cfg := testConfig(t)
	w := &scriptedWhisper{err: services.Wrap(services.ErrTransient, "whisper", "transcribe", "upstream down", nil)}
	annotator := &scriptedAnnotator{text: vision.TextResult{FullText: "still visible"}}
	analyzer, _ := newTestAnalyzer(t, cfg, videoProbe("60.0"), w, annotator)

	report, err := analyzer.Analyze(context.Background(), Request{Source: writeMedia(t, "clip.mp4")})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.Transcript != nil {
		t.Fatalf("expected no transcript, got %+v", report.Transcript)
	}
	found := false
	for _, warning := range report.Warnings {
		if strings.Contains(warning, "transcription failed") {
			found = true
		}
	}
	if !found {
		t.Fatalf("transcription warning missing: %v", report.Warnings)
	}
	if report.Captions == nil || report.Captions.AllText == "" {
		t.Fatal("visual results lost after transcription failure")
	}
}

func TestAnalyzeRejectsStreamlessFile(t *testing.T) {
	cfg := testConfig(t)
	analyzer, runs := newTestAnalyzer(t, cfg, ffprobe.Result{}, &scriptedWhisper{}, nil)

	_, err := analyzer.Analyze(context.Background(), Request{Source: writeMedia(t, "empty.bin")})
	if !errors.Is(err, services.ErrUnsupportedInput) {
		t.Fatalf("expected unsupported input, got %v", err)
	}

	// The refused source is still journaled as a failed run.
	recorded, err := runs.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(recorded) != 1 || recorded[0].Status != history.StatusFailed {
		t.Fatalf("unexpected runs: %+v", recorded)
	}
	if recorded[0].ErrorMessage == "" {
		t.Fatal("failed run missing error message")
	}
}

func TestAnalyzeStagesRemoteSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte("remote media"))
	}))
	defer server.Close()

	cfg := testConfig(t)
	w := &scriptedWhisper{transcription: whisper.Transcription{Text: "remote narration"}}
	analyzer, _ := newTestAnalyzer(t, cfg, audioProbe("8.0"), w, nil)

	report, err := analyzer.Analyze(context.Background(), Request{Source: server.URL + "/remote.wav"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.Transcript == nil || report.Transcript.FullText != "remote narration" {
		t.Fatalf("unexpected transcript: %+v", report.Transcript)
	}
	// The staged copy lives under the staging directory.
	if _, err := os.Stat(filepath.Join(cfg.Paths.StagingDir, "remote.wav")); err != nil {
		t.Fatalf("staged file missing: %v", err)
	}
}
