package speakers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"mediascribe/internal/voiceprint"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speakers.json")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIdentifyMintsAndThenMatches(t *testing.T) {
	store := newTestStore(t)
	fp := baseFingerprint()

	first, _, created := store.Identify(fp, Profile{SourcePath: "a.mp4"}, DefaultMatchThreshold)
	if !created {
		t.Fatal("first encounter should mint a new identity")
	}
	if first.EncounterCount != 1 {
		t.Fatalf("encounter count = %d, want 1", first.EncounterCount)
	}

	second, score, created := store.Identify(fp, Profile{SourcePath: "b.mp4"}, DefaultMatchThreshold)
	if created {
		t.Fatal("identical fingerprint should reuse the identity")
	}
	if second.ID != first.ID {
		t.Fatalf("identity changed: %s vs %s", second.ID, first.ID)
	}
	if score < DefaultMatchThreshold {
		t.Fatalf("match score %.4f below threshold", score)
	}
	if second.EncounterCount != 2 {
		t.Fatalf("encounter count = %d, want 2", second.EncounterCount)
	}
	if len(second.Observations) != 2 {
		t.Fatalf("observations = %d, want 2", len(second.Observations))
	}
	if !second.FirstSeen.Equal(first.FirstSeen) {
		t.Fatalf("first seen moved on rematch: %s vs %s", second.FirstSeen, first.FirstSeen)
	}
	if second.LastSeen.Before(first.LastSeen) {
		t.Fatalf("last seen went backwards: %s vs %s", second.LastSeen, first.LastSeen)
	}
	if store.Count() != 1 {
		t.Fatalf("store has %d speakers, want 1", store.Count())
	}
}

func TestIdentifyDistinctVoicesCreateSeparateRecords(t *testing.T) {
	store := newTestStore(t)

	slow := baseFingerprint()
	slow.WordsPerMinute = 90
	slow.Pitch = voiceprint.PitchLow

	fast := baseFingerprint()
	fast.WordsPerMinute = 200
	fast.Pitch = voiceprint.PitchHigh

	a, _, _ := store.Identify(slow, Profile{}, DefaultMatchThreshold)
	b, _, created := store.Identify(fast, Profile{}, DefaultMatchThreshold)
	if !created {
		t.Fatal("dissimilar fingerprint matched an existing identity")
	}
	if a.ID == b.ID {
		t.Fatal("distinct voices share an identity")
	}
	if store.Count() != 2 {
		t.Fatalf("store has %d speakers, want 2", store.Count())
	}
}

func TestStoreSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speakers.json")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	record := store.Upsert("speaker-1", baseFingerprint(), Profile{DisplayName: "Narrator"})
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	got, ok := reopened.Get("speaker-1")
	if !ok {
		t.Fatal("record lost across reload")
	}
	if got.DisplayName != "Narrator" || got.EncounterCount != record.EncounterCount {
		t.Fatalf("record mismatch: %+v", got)
	}
}

func TestStoreDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speakers.json")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	store.Upsert("speaker-1", baseFingerprint(), Profile{})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}
	var doc struct {
		Speakers map[string]json.RawMessage `json:"speakers"`
		Metadata struct {
			TotalSpeakers int    `json:"totalSpeakers"`
			Version       string `json:"version"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse store file: %v", err)
	}
	if len(doc.Speakers) != 1 || doc.Metadata.TotalSpeakers != 1 {
		t.Fatalf("unexpected document: %s", data)
	}
	if doc.Metadata.Version == "" {
		t.Fatal("missing store version")
	}
}

func TestStoreRejectsSecondWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speakers.json")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if _, err := NewStore(path, nil); err == nil {
		t.Fatal("second writer acquired the store lock")
	}
}

func TestMemoryOnlyStore(t *testing.T) {
	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	record, _, created := store.Identify(baseFingerprint(), Profile{}, DefaultMatchThreshold)
	if !created || record.ID == "" {
		t.Fatalf("unexpected identity: %+v created=%v", record, created)
	}
	if store.Count() != 1 {
		t.Fatalf("store has %d speakers, want 1", store.Count())
	}
}

func TestForget(t *testing.T) {
	store := newTestStore(t)
	store.Upsert("speaker-1", baseFingerprint(), Profile{})

	if err := store.Forget("speaker-1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if store.Count() != 0 {
		t.Fatal("record still present after forget")
	}
	if err := store.Forget("speaker-1"); err == nil {
		t.Fatal("forgetting an unknown speaker should fail")
	}
}
