package ocr

import (
	"context"
	"log/slog"
	"strings"

	"mediascribe/internal/frames"
	"mediascribe/internal/logging"
	"mediascribe/internal/services/vision"
)

// CaptionEntry is the text detected on one sampled frame. Detections holds
// the individual detections that survived filtering; Confidence is the
// highest confidence among them, or zero when the provider returned only an
// aggregate string.
type CaptionEntry struct {
	FrameIndex int                `json:"frame_index"`
	Timestamp  float64            `json:"timestamp"`
	Text       string             `json:"text"`
	Detections []vision.Detection `json:"detections,omitempty"`
	Confidence float64            `json:"confidence"`
}

// Track is the time-indexed caption output for one video.
type Track struct {
	Entries []CaptionEntry `json:"entries"`
	AllText string         `json:"all_text"`
}

// TextDetector is the slice of the vision client the builder needs.
type TextDetector interface {
	TextDetection(ctx context.Context, imagePath string) (vision.TextResult, error)
}

// Options filter raw detections before they join the caption track.
type Options struct {
	ConfidenceThreshold float64
	MinTextLength       int
}

// Builder turns sampled frames into a caption track.
type Builder struct {
	detector TextDetector
	opts     Options
	logger   *slog.Logger
}

func NewBuilder(detector TextDetector, opts Options, logger *slog.Logger) *Builder {
	return &Builder{
		detector: detector,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "ocr"),
	}
}

// Build runs text detection over the frames in order. A frame whose
// detection fails is logged and skipped; frames with no surviving text are
// dropped. Consumed frame files are always deleted, and the frame directory
// is removed once empty.
func (b *Builder) Build(ctx context.Context, sampled []frames.Frame, workDir string) Track {
	defer frames.Cleanup(sampled, workDir)

	var track Track
	var parts []string
	for _, frame := range sampled {
		if ctx.Err() != nil {
			break
		}
		result, err := b.detector.TextDetection(ctx, frame.Path)
		if err != nil {
			b.logger.Warn("frame text detection failed",
				logging.Int(logging.FieldFrameIndex, frame.Index),
				logging.Error(err))
			continue
		}
		entry, ok := b.caption(result)
		if !ok {
			continue
		}
		entry.FrameIndex = frame.Index
		entry.Timestamp = frame.Timestamp
		track.Entries = append(track.Entries, entry)
		parts = append(parts, entry.Text)
	}
	track.AllText = strings.Join(parts, " ")
	return track
}

// BuildStill runs text detection on a single still image. Unlike Build it
// never deletes the source file.
func (b *Builder) BuildStill(ctx context.Context, imagePath string) (Track, error) {
	result, err := b.detector.TextDetection(ctx, imagePath)
	if err != nil {
		return Track{}, err
	}
	var track Track
	entry, ok := b.caption(result)
	if !ok {
		return track, nil
	}
	track.Entries = append(track.Entries, entry)
	track.AllText = entry.Text
	return track, nil
}

// caption assembles one entry from the detections that survive filtering, so
// filtered text never leaks in through the provider's aggregate string. The
// aggregate is used only when the provider returned no individual detections
// to filter against.
func (b *Builder) caption(result vision.TextResult) (CaptionEntry, bool) {
	if len(result.Detections) > 0 {
		kept := b.filter(result.Detections)
		joined := make([]string, 0, len(kept))
		confidence := 0.0
		for _, d := range kept {
			joined = append(joined, strings.TrimSpace(d.Text))
			if d.Confidence > confidence {
				confidence = d.Confidence
			}
		}
		text := strings.Join(joined, " ")
		if text == "" {
			return CaptionEntry{}, false
		}
		return CaptionEntry{Text: text, Detections: kept, Confidence: confidence}, true
	}
	text := strings.TrimSpace(result.FullText)
	if text == "" || (b.opts.MinTextLength > 0 && len(text) < b.opts.MinTextLength) {
		return CaptionEntry{}, false
	}
	return CaptionEntry{Text: text}, true
}

func (b *Builder) filter(detections []vision.Detection) []vision.Detection {
	var kept []vision.Detection
	for _, d := range detections {
		if d.Confidence < b.opts.ConfidenceThreshold {
			continue
		}
		if b.opts.MinTextLength > 0 && len(strings.TrimSpace(d.Text)) < b.opts.MinTextLength {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}
