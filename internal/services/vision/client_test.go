package vision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"mediascribe/internal/services"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.jpg")
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF}, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
}

func TestTextDetectionSplitsFullTextFromRegions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responses": [{"textAnnotations": [
			{"description": "BREAKING NEWS\nLIVE"},
			{"description": "BREAKING", "score": 0.98},
			{"description": "NEWS", "score": 0.97},
			{"description": "LIVE", "score": 0.42}
		]}]}`))
	})

	result, err := client.TextDetection(context.Background(), writeTestImage(t))
	if err != nil {
		t.Fatalf("TextDetection: %v", err)
	}
	if result.FullText != "BREAKING NEWS\nLIVE" {
		t.Fatalf("unexpected full text %q", result.FullText)
	}
	if len(result.Detections) != 3 {
		t.Fatalf("unexpected detections: %+v", result.Detections)
	}
	if result.Detections[0].Text != "BREAKING" || result.Detections[0].Confidence != 0.98 {
		t.Fatalf("unexpected first detection: %+v", result.Detections[0])
	}
}

func TestObjectAndLabelDetection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responses": [{
			"localizedObjectAnnotations": [{"name": "Person", "score": 0.9}],
			"labelAnnotations": [{"description": "Outdoors", "score": 0.8}]
		}]}`))
	})

	image := writeTestImage(t)
	objects, err := client.ObjectLocalization(context.Background(), image)
	if err != nil {
		t.Fatalf("ObjectLocalization: %v", err)
	}
	if len(objects) != 1 || objects[0].Name != "Person" {
		t.Fatalf("unexpected objects: %+v", objects)
	}

	labels, err := client.LabelDetection(context.Background(), image)
	if err != nil {
		t.Fatalf("LabelDetection: %v", err)
	}
	if len(labels) != 1 || labels[0].Description != "Outdoors" {
		t.Fatalf("unexpected labels: %+v", labels)
	}
}

func TestAnnotateErrorPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responses": [{"error": {"code": 3, "message": "image decode failed"}}]}`))
	})

	_, err := client.TextDetection(context.Background(), writeTestImage(t))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestMissingAPIKeyIsConfigurationError(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.TextDetection(context.Background(), writeTestImage(t))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestMissingImageIsUnsupportedInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := client.TextDetection(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	if !errors.Is(err, services.ErrUnsupportedInput) {
		t.Fatalf("expected unsupported input error, got %v", err)
	}
}
