package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediascribe/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
}

func TestRecognizeParsesWords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech:recognize" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"results": [{"alternatives": [{
				"transcript": "hello world",
				"confidence": 0.91,
				"words": [
					{"word": "hello", "startTime": "0s", "endTime": "0.500s", "speakerTag": 1},
					{"word": "world", "startTime": "0.500s", "endTime": "1.100s", "speakerTag": 1}
				]
			}]}]
		}`))
	})

	results, err := client.Recognize(context.Background(), []byte("pcm"), RecognitionConfig{LanguageCode: "en-US"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(results) != 1 || len(results[0].Alternatives) != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
	alt := results[0].Alternatives[0]
	if alt.Transcript != "hello world" {
		t.Fatalf("unexpected transcript %q", alt.Transcript)
	}
	if len(alt.Words) != 2 || alt.Words[1].EndTime != 1.1 {
		t.Fatalf("unexpected words: %+v", alt.Words)
	}
}

func TestRecognizeClassifiesTooLong(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "Sync input too long. For audio longer than 1 min use LongRunningRecognize."}}`))
	})

	_, err := client.Recognize(context.Background(), []byte("pcm"), RecognitionConfig{})
	if !errors.Is(err, ErrAudioTooLong) {
		t.Fatalf("expected ErrAudioTooLong, got %v", err)
	}
}

func TestStartLongRunningReturnsOperationName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "operations/abc123"}`))
	})

	name, err := client.StartLongRunning(context.Background(), []byte("pcm"), RecognitionConfig{})
	if err != nil {
		t.Fatalf("StartLongRunning: %v", err)
	}
	if name != "operations/abc123" {
		t.Fatalf("unexpected operation name %q", name)
	}
}

func TestStartLongRunningInlineLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "Inline audio exceeds duration limit. Please use a GCS URI."}}`))
	})

	_, err := client.StartLongRunning(context.Background(), []byte("pcm"), RecognitionConfig{})
	if !errors.Is(err, ErrInlineLimit) {
		t.Fatalf("expected ErrInlineLimit, got %v", err)
	}
}

func TestPollOperation(t *testing.T) {
	done := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !done {
			done = true
			_, _ = w.Write([]byte(`{"name": "op1", "done": false}`))
			return
		}
		_, _ = w.Write([]byte(`{"name": "op1", "done": true, "response": {"results": [{"alternatives": [{"transcript": "finished"}]}]}}`))
	})

	op, err := client.PollOperation(context.Background(), "op1")
	if err != nil {
		t.Fatalf("PollOperation: %v", err)
	}
	if op.Done {
		t.Fatal("expected pending operation")
	}

	op, err = client.PollOperation(context.Background(), "op1")
	if err != nil {
		t.Fatalf("PollOperation: %v", err)
	}
	if !op.Done || len(op.Results) != 1 {
		t.Fatalf("unexpected operation state: %+v", op)
	}
}

func TestTransientServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "backend unavailable"}}`))
	})

	_, err := client.Recognize(context.Background(), []byte("pcm"), RecognitionConfig{})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestMissingAPIKeyIsConfigurationError(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Recognize(context.Background(), []byte("pcm"), RecognitionConfig{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"0s", 0},
		{"1.100s", 1.1},
		{" 12.340s ", 12.34},
		{"", 0},
		{"garbage", 0},
	}
	for _, tc := range cases {
		if got := ParseDuration(tc.in); got != tc.want {
			t.Fatalf("ParseDuration(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
