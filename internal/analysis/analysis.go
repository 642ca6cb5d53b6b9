package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

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
	"mediascribe/internal/speakers"
	"mediascribe/internal/transcribe"
	"mediascribe/internal/voiceprint"
)

// Request names one media asset to analyze, by local path or URL.
type Request struct {
	Source string
}

// SpeakerIdentity links one diarized speaker to a persisted identity.
type SpeakerIdentity struct {
	SpeakerTag  int                    `json:"speaker_tag"`
	SpeakerID   string                 `json:"speaker_id"`
	Similarity  float64                `json:"similarity"`
	NewSpeaker  bool                   `json:"new_speaker"`
	Fingerprint voiceprint.Fingerprint `json:"fingerprint"`
}

// Report is the aggregate product of one analysis. Stages that failed leave
// their section empty and add a warning; the report is returned regardless.
type Report struct {
	RunID      string             `json:"run_id,omitempty"`
	Source     string             `json:"source"`
	MediaType  string             `json:"media_type"`
	Duration   float64            `json:"duration_seconds"`
	Transcript *transcribe.Result `json:"transcript,omitempty"`
	Speakers   []SpeakerIdentity  `json:"speakers,omitempty"`
	Captions   *ocr.Track         `json:"captions,omitempty"`
	Objects    []vision.Object    `json:"objects,omitempty"`
	Labels     []vision.Label     `json:"labels,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// Prober inspects a media file; injected so tests run without ffprobe.
type Prober func(ctx context.Context, path string) (ffprobe.Result, error)

// Deps are the collaborators an Analyzer drives. Annotator and History may
// be nil; their stages are skipped.
type Deps struct {
	Probe     Prober
	FFmpeg    *ffmpeg.Service
	Fetcher   *download.Fetcher
	Router    *transcribe.Router
	Sampler   *frames.Sampler
	Captions  *ocr.Builder
	Annotator vision.Annotator
	Speakers  *speakers.Store
	History   *history.Store
}

// Analyzer runs the whole pipeline for one asset: staging, probing,
// transcription, speaker identification, and the visual stages.
type Analyzer struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
}

func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Probe == nil {
		binary := cfg.FFprobeBinary()
		deps.Probe = func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, binary, path)
		}
	}
	return &Analyzer{cfg: cfg, deps: deps, logger: logging.NewComponentLogger(logger, "analysis")}
}

// Analyze produces a report for one asset. Stage failures degrade to
// warnings; only conditions that leave nothing to analyze, an unreachable
// source or a file with no streams, are returned as errors.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Report, error) {
	source := req.Source
	if download.IsURL(source) {
		local, err := a.deps.Fetcher.Fetch(ctx, source, a.cfg.Paths.StagingDir)
		if err != nil {
			a.recordFailure(ctx, req.Source, "", err)
			return nil, err
		}
		source = local
	}

	probe, err := a.deps.Probe(ctx, source)
	if err != nil {
		wrapped := services.Wrap(services.ErrUnsupportedInput, "analysis", "probe", source, err)
		a.recordFailure(ctx, req.Source, "", wrapped)
		return nil, wrapped
	}

	report := &Report{Source: req.Source, Duration: probe.DurationSeconds()}
	switch {
	case probe.IsImage():
		report.MediaType = "image"
	case probe.HasVideo():
		report.MediaType = "video"
	case probe.HasAudio():
		report.MediaType = "audio"
	default:
		wrapped := services.Wrap(services.ErrUnsupportedInput, "analysis", "probe",
			fmt.Sprintf("%s has no audio or video streams", source), nil)
		a.recordFailure(ctx, req.Source, "", wrapped)
		return nil, wrapped
	}

	run := a.startRun(ctx, req.Source, report.MediaType)
	if run != nil {
		report.RunID = run.ID
		ctx = services.WithRunID(ctx, run.ID)
	}

	workDir := filepath.Join(a.cfg.Paths.StagingDir, "run-"+runID(run))
	defer os.RemoveAll(workDir)

	var wg sync.WaitGroup
	var visual visualResult
	switch report.MediaType {
	case "video":
		wg.Add(1)
		go func() {
			defer wg.Done()
			visual = a.runVisual(ctx, source, probe, filepath.Join(workDir, "frames"))
		}()
		a.runSpeech(ctx, source, probe, report, workDir)
	case "image":
		visual = a.runImage(ctx, source)
	default:
		a.runSpeech(ctx, source, probe, report, workDir)
	}
	wg.Wait()

	report.Captions = visual.captions
	report.Objects = visual.objects
	report.Labels = visual.labels
	report.Warnings = append(report.Warnings, visual.warnings...)

	a.finishRun(ctx, run, report)
	return report, nil
}

// runSpeech extracts audio when needed, transcribes it, and resolves
// speaker identities. All failures become report warnings.
func (a *Analyzer) runSpeech(ctx context.Context, source string, probe ffprobe.Result, report *Report, workDir string) {
	ctx = services.WithStage(ctx, "speech")
	logger := logging.WithContext(ctx, a.logger)

	audioPath := source
	if report.MediaType == "video" {
		audioPath = filepath.Join(workDir, "audio.wav")
		if err := a.deps.FFmpeg.ExtractAudio(ctx, source, audioPath); err != nil {
			logger.Warn("audio extraction failed", logging.Error(err))
			report.Warnings = append(report.Warnings, stageWarning("audio extraction", err))
			return
		}
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		report.Warnings = append(report.Warnings, stageWarning("audio stat", err))
		return
	}

	result, err := a.deps.Router.Transcribe(ctx, transcribe.Input{
		AudioPath:       audioPath,
		SizeBytes:       info.Size(),
		DurationSeconds: probe.DurationSeconds(),
		WorkDir:         filepath.Join(workDir, "chunks"),
	})
	if err != nil {
		logger.Warn("transcription failed", logging.Error(err))
		report.Warnings = append(report.Warnings, stageWarning("transcription", err))
		return
	}
	report.Transcript = result
	report.Warnings = append(report.Warnings, result.Warnings...)

	a.identifySpeakers(probe, result, report, logger)
}

// identifySpeakers derives one fingerprint per diarized speaker, or one for
// the whole file when the provider performed no diarization, and resolves
// each against the store.
func (a *Analyzer) identifySpeakers(probe ffprobe.Result, result *transcribe.Result, report *Report, logger *slog.Logger) {
	if a.deps.Speakers == nil || len(result.Words) == 0 {
		return
	}
	profile := voiceprint.ProfileFromProbe(probe)
	threshold := a.cfg.Speakers.MatchThreshold

	for _, tag := range speakerTags(result) {
		var tagged []transcribe.Word
		for _, word := range result.Words {
			if word.SpeakerTag == tag {
				tagged = append(tagged, word)
			}
		}
		fp := voiceprint.Derive(profile, tagged)
		record, score, created := a.deps.Speakers.Identify(fp, speakers.Profile{SourcePath: report.Source}, threshold)
		report.Speakers = append(report.Speakers, SpeakerIdentity{
			SpeakerTag:  tag,
			SpeakerID:   record.ID,
			Similarity:  score,
			NewSpeaker:  created,
			Fingerprint: fp,
		})
		logger.Info("speaker resolved",
			logging.String(logging.FieldSpeakerID, record.ID),
			logging.Int("speaker_tag", tag),
			logging.Float64("similarity", score),
			logging.Bool("new_speaker", created))
	}
}

// speakerTags lists distinct tags in first-appearance order; an undiarized
// transcript yields the single pseudo-tag 0 covering every word.
func speakerTags(result *transcribe.Result) []int {
	var tags []int
	seen := make(map[int]bool)
	for _, word := range result.Words {
		if !seen[word.SpeakerTag] {
			seen[word.SpeakerTag] = true
			tags = append(tags, word.SpeakerTag)
		}
	}
	return tags
}

type visualResult struct {
	captions *ocr.Track
	objects  []vision.Object
	labels   []vision.Label
	warnings []string
}

// runVisual samples frames, annotates a representative frame for objects
// and labels, then builds the caption track (which consumes the frames).
func (a *Analyzer) runVisual(ctx context.Context, source string, probe ffprobe.Result, frameDir string) visualResult {
	ctx = services.WithStage(ctx, "visual")

	var out visualResult
	if a.deps.Annotator == nil && a.deps.Captions == nil {
		a.logger.Debug("no vision collaborators configured, skipping visual stages")
		return out
	}

	plan, err := frames.BuildPlan(probe.DurationSeconds(), frames.Options{
		MaxFrames:          a.cfg.Frames.MaxFrames,
		MinIntervalSeconds: a.cfg.Frames.MinIntervalSeconds,
		StartSeconds:       a.cfg.Frames.StartSeconds,
		EndSeconds:         a.cfg.Frames.EndSeconds,
	})
	if err != nil {
		out.warnings = append(out.warnings, stageWarning("frame planning", err))
		return out
	}
	sampled, err := a.deps.Sampler.Sample(ctx, source, frameDir, plan)
	if err != nil {
		frames.Cleanup(sampled, frameDir)
		out.warnings = append(out.warnings, stageWarning("frame sampling", err))
		return out
	}
	if len(sampled) == 0 {
		out.warnings = append(out.warnings, "frame sampling: no frames extracted")
		return out
	}

	a.annotate(ctx, sampled[0].Path, &out)

	if a.deps.Captions != nil {
		track := a.deps.Captions.Build(ctx, sampled, frameDir)
		out.captions = &track
	} else {
		frames.Cleanup(sampled, frameDir)
	}
	return out
}

// runImage annotates a still image in place. There is nothing to sample and
// the source file is never deleted.
func (a *Analyzer) runImage(ctx context.Context, source string) visualResult {
	ctx = services.WithStage(ctx, "visual")

	var out visualResult
	a.annotate(ctx, source, &out)
	if a.deps.Captions != nil {
		track, err := a.deps.Captions.BuildStill(ctx, source)
		if err != nil {
			logging.WithContext(ctx, a.logger).Warn("text detection failed", logging.Error(err))
			out.warnings = append(out.warnings, stageWarning("text detection", err))
		} else if len(track.Entries) > 0 {
			out.captions = &track
		}
	}
	return out
}

// annotate runs object and label detection against one image path.
func (a *Analyzer) annotate(ctx context.Context, imagePath string, out *visualResult) {
	if a.deps.Annotator == nil {
		return
	}
	logger := logging.WithContext(ctx, a.logger)
	objects, err := a.deps.Annotator.ObjectLocalization(ctx, imagePath)
	if err != nil {
		logger.Warn("object detection failed", logging.Error(err))
		out.warnings = append(out.warnings, stageWarning("object detection", err))
	} else {
		out.objects = objects
	}
	labels, err := a.deps.Annotator.LabelDetection(ctx, imagePath)
	if err != nil {
		logger.Warn("label detection failed", logging.Error(err))
		out.warnings = append(out.warnings, stageWarning("label detection", err))
	} else {
		out.labels = labels
	}
}

func (a *Analyzer) startRun(ctx context.Context, source, mediaType string) *history.Run {
	if a.deps.History == nil {
		return nil
	}
	run, err := a.deps.History.Create(ctx, source, mediaType)
	if err != nil {
		a.logger.Warn("recording run failed", logging.Error(err))
		return nil
	}
	if err := a.deps.History.MarkRunning(ctx, run.ID); err != nil {
		a.logger.Warn("updating run failed", logging.Error(err))
	}
	return run
}

// recordFailure journals an analysis that terminated before producing a
// report, so failed sources are visible in the run history.
func (a *Analyzer) recordFailure(ctx context.Context, source, mediaType string, failure error) {
	if a.deps.History == nil {
		return
	}
	run, err := a.deps.History.Create(ctx, source, mediaType)
	if err != nil {
		a.logger.Warn("recording run failed", logging.Error(err))
		return
	}
	if err := a.deps.History.MarkFailed(ctx, run.ID, failure.Error()); err != nil {
		a.logger.Warn("updating run failed", logging.Error(err))
	}
}

func (a *Analyzer) finishRun(ctx context.Context, run *history.Run, report *Report) {
	if a.deps.History == nil || run == nil {
		return
	}
	provider := ""
	if report.Transcript != nil {
		provider = string(report.Transcript.Provider)
	}
	if err := a.deps.History.MarkCompleted(ctx, run.ID, provider, report.Warnings); err != nil {
		a.logger.Warn("completing run failed", logging.Error(err))
	}
}

func runID(run *history.Run) string {
	if run == nil {
		return "local"
	}
	return run.ID
}

func stageWarning(stage string, err error) string {
	return fmt.Sprintf("%s failed: %v", stage, err)
}
