package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"mediascribe/internal/logging"
	"mediascribe/internal/media/ffmpeg"
	"mediascribe/internal/services"
)

// Chunk describes one fixed-duration slice of a longer audio asset.
type Chunk struct {
	// Index is the zero-based position of the chunk in the source audio.
	Index int
	// Path is the extracted segment file, empty until conversion succeeds.
	Path string
	// StartOffset is the chunk's start position in the source, in seconds.
	StartOffset float64
	// Duration is the chunk's nominal length in seconds; the final chunk may
	// be shorter than the target.
	Duration float64
}

// Plan returns ordered chunk descriptors covering totalSeconds. When the
// source fits inside a single target duration the plan is one chunk spanning
// the whole file.
func Plan(totalSeconds, targetSeconds float64) []Chunk {
	if totalSeconds <= 0 || targetSeconds <= 0 {
		return nil
	}
	if totalSeconds <= targetSeconds {
		return []Chunk{{Index: 0, StartOffset: 0, Duration: totalSeconds}}
	}
	count := int(totalSeconds / targetSeconds)
	if totalSeconds > float64(count)*targetSeconds {
		count++
	}
	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * targetSeconds
		duration := targetSeconds
		if start+duration > totalSeconds {
			duration = totalSeconds - start
		}
		chunks = append(chunks, Chunk{Index: i, StartOffset: start, Duration: duration})
	}
	return chunks
}

// Splitter converts a long audio file into ordered segment files.
type Splitter struct {
	ffmpeg *ffmpeg.Service
	logger *slog.Logger
}

// NewSplitter creates a splitter backed by the given ffmpeg service.
func NewSplitter(svc *ffmpeg.Service, logger *slog.Logger) *Splitter {
	return &Splitter{
		ffmpeg: svc,
		logger: logging.NewComponentLogger(logger, "chunker"),
	}
}

// Split plans chunks for the source and extracts each segment. Conversions
// run concurrently but every goroutine writes only its own pre-allocated
// slot, so the returned slice is always in index order regardless of
// completion order. A failed conversion leaves a nil slot (logged); when
// every slot is nil the whole split fails with services.ErrChunking.
//
// When the plan is a single chunk the original file is used directly and no
// conversion happens.
func (s *Splitter) Split(ctx context.Context, source, workDir string, totalSeconds, targetSeconds float64) ([]*Chunk, error) {
	plan := Plan(totalSeconds, targetSeconds)
	if len(plan) == 0 {
		return nil, services.Wrap(services.ErrUnsupportedInput, "chunking", "plan", fmt.Sprintf("no chunks for duration %.1fs", totalSeconds), nil)
	}

	if len(plan) == 1 {
		only := plan[0]
		only.Path = source
		return []*Chunk{&only}, nil
	}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrChunking, "chunking", "workdir", workDir, err)
	}

	// Slots are indexed by chunk position; the WaitGroup is the barrier
	// between concurrent conversion and ordered consumption.
	slots := make([]*Chunk, len(plan))
	var wg sync.WaitGroup
	for i := range plan {
		wg.Add(1)
		go func(c Chunk) {
			defer wg.Done()
			dest := filepath.Join(workDir, fmt.Sprintf("chunk_%03d.wav", c.Index))
			if err := s.ffmpeg.ExtractSegment(ctx, source, c.StartOffset, c.Duration, dest); err != nil {
				s.logger.Warn("chunk conversion failed",
					logging.Int(logging.FieldChunkIndex, c.Index),
					logging.Error(err))
				return
			}
			c.Path = dest
			slots[c.Index] = &c
		}(plan[i])
	}
	wg.Wait()

	succeeded := 0
	for _, slot := range slots {
		if slot != nil {
			succeeded++
		}
	}
	if succeeded == 0 {
		return nil, services.Wrap(services.ErrChunking, "chunking", "convert", fmt.Sprintf("all %d chunks failed", len(plan)), nil)
	}
	if succeeded < len(plan) {
		s.logger.Warn("some chunks failed to convert",
			logging.Int("failed", len(plan)-succeeded),
			logging.Int("total", len(plan)))
	}
	return slots, nil
}

// Cleanup removes extracted chunk files, skipping the source path so a
// single-chunk plan never deletes the caller's input.
func Cleanup(chunks []*Chunk, source string) {
	for _, c := range chunks {
		if c == nil || c.Path == "" || c.Path == source {
			continue
		}
		_ = os.Remove(c.Path)
	}
}
