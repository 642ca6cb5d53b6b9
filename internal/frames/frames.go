package frames

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"mediascribe/internal/logging"
	"mediascribe/internal/media/ffmpeg"
	"mediascribe/internal/services"
)

// Frame is one sampled video frame on disk.
type Frame struct {
	Index     int
	Timestamp float64
	Path      string
}

// Plan describes how a video's sampling window is covered.
type Plan struct {
	Start      float64
	End        float64
	Interval   float64
	FrameCount int
}

// Options bound frame sampling. EndSeconds of zero means the probed
// duration.
type Options struct {
	MaxFrames          int
	MinIntervalSeconds float64
	StartSeconds       float64
	EndSeconds         float64
}

// BuildPlan computes the sampling plan for a video of the given duration.
// The frame count is capped both by MaxFrames and by how many
// MinIntervalSeconds slots fit in the window.
func BuildPlan(durationSeconds float64, opts Options) (Plan, error) {
	start := opts.StartSeconds
	end := opts.EndSeconds
	if end <= 0 || end > durationSeconds {
		end = durationSeconds
	}
	window := end - start
	if window <= 0 {
		return Plan{}, services.Wrap(services.ErrUnsupportedInput, "frames", "plan",
			fmt.Sprintf("empty sampling window [%.1f, %.1f]", start, end), nil)
	}

	minInterval := opts.MinIntervalSeconds
	if minInterval <= 0 {
		minInterval = 1
	}
	maxFrames := opts.MaxFrames
	if maxFrames <= 0 {
		maxFrames = 1
	}
	count := int(math.Floor(window / minInterval))
	if count > maxFrames {
		count = maxFrames
	}
	if count < 1 {
		count = 1
	}
	return Plan{
		Start:      start,
		End:        end,
		Interval:   window / float64(count),
		FrameCount: count,
	}, nil
}

// Timestamps returns the sample points of the plan, one per frame, each in
// the middle of its interval.
func (p Plan) Timestamps() []float64 {
	stamps := make([]float64, 0, p.FrameCount)
	for i := 0; i < p.FrameCount; i++ {
		stamps = append(stamps, p.Start+(float64(i)+0.5)*p.Interval)
	}
	return stamps
}

// Sampler extracts frames from a video one at a time.
type Sampler struct {
	ffmpeg *ffmpeg.Service
	logger *slog.Logger
}

func NewSampler(svc *ffmpeg.Service, logger *slog.Logger) *Sampler {
	return &Sampler{
		ffmpeg: svc,
		logger: logging.NewComponentLogger(logger, "frames"),
	}
}

// Sample extracts one frame per plan timestamp into workDir, sequentially to
// bound peak ffmpeg load. A failed extraction is logged and skipped; the
// returned frames are ordered by index.
func (s *Sampler) Sample(ctx context.Context, source, workDir string, plan Plan) ([]Frame, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrUnsupportedInput, "frames", "workdir", workDir, err)
	}
	var frames []Frame
	for i, ts := range plan.Timestamps() {
		if err := ctx.Err(); err != nil {
			return frames, services.Wrap(services.ErrTransient, "frames", "sample", "sampling cancelled", err)
		}
		dest := filepath.Join(workDir, fmt.Sprintf("frame_%03d.jpg", i))
		if err := s.ffmpeg.ExtractFrame(ctx, source, ts, dest); err != nil {
			s.logger.Warn("frame extraction failed",
				logging.Int(logging.FieldFrameIndex, i),
				logging.Float64("timestamp", ts),
				logging.Error(err))
			continue
		}
		frames = append(frames, Frame{Index: i, Timestamp: ts, Path: dest})
	}
	return frames, nil
}

// Cleanup removes consumed frame files and the directory if it is empty.
func Cleanup(frames []Frame, workDir string) {
	for _, frame := range frames {
		_ = os.Remove(frame.Path)
	}
	if workDir != "" {
		_ = os.Remove(workDir)
	}
}
