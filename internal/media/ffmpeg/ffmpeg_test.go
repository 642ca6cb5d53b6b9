package ffmpeg

import (
	"context"
	"path/filepath"
	"testing"
)

func TestExtractSegmentBuildsExpectedArgs(t *testing.T) {
	svc := NewService("ffmpeg")
	var got []string
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		got = append([]string{name}, args...)
		return nil
	})

	dest := filepath.Join(t.TempDir(), "seg.wav")
	if err := svc.ExtractSegment(context.Background(), "in.mp3", 240, 120, dest); err != nil {
		t.Fatalf("ExtractSegment: %v", err)
	}

	want := map[string]string{"-ss": "240.000", "-t": "120.000", "-ar": "16000", "-ac": "1"}
	for flag, value := range want {
		if !containsPair(got, flag, value) {
			t.Fatalf("missing %s %s in args %v", flag, value, got)
		}
	}
}

func TestExtractSegmentRejectsBadDuration(t *testing.T) {
	svc := NewService("")
	if err := svc.ExtractSegment(context.Background(), "in.mp3", 0, 0, "out.wav"); err == nil {
		t.Fatal("expected error for non-positive duration")
	}
}

func TestExtractFrameBuildsExpectedArgs(t *testing.T) {
	svc := NewService("")
	var got []string
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		got = append([]string{name}, args...)
		return nil
	})

	dest := filepath.Join(t.TempDir(), "frame.jpg")
	if err := svc.ExtractFrame(context.Background(), "in.mp4", 12.5, dest); err != nil {
		t.Fatalf("ExtractFrame: %v", err)
	}
	if !containsPair(got, "-ss", "12.500") {
		t.Fatalf("missing seek arg in %v", got)
	}
	if !containsPair(got, "-frames:v", "1") {
		t.Fatalf("missing single frame arg in %v", got)
	}
}

func containsPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
