package speakers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"mediascribe/internal/logging"
	"mediascribe/internal/services"
	"mediascribe/internal/voiceprint"
)

const storeVersion = "1"

// Profile carries the caller-supplied context for one speaker encounter.
type Profile struct {
	DisplayName string `json:"display_name,omitempty"`
	SourcePath  string `json:"source_path,omitempty"`
}

// Observation records one encounter with a speaker.
type Observation struct {
	SourcePath  string                 `json:"source_path,omitempty"`
	Fingerprint voiceprint.Fingerprint `json:"fingerprint"`
	ObservedAt  time.Time              `json:"observed_at"`
}

// Record is one known speaker identity.
type Record struct {
	ID             string                 `json:"id"`
	DisplayName    string                 `json:"display_name,omitempty"`
	Fingerprint    voiceprint.Fingerprint `json:"fingerprint"`
	Observations   []Observation          `json:"observations,omitempty"`
	EncounterCount int                    `json:"encounter_count"`
	FirstSeen      time.Time              `json:"first_seen"`
	LastSeen       time.Time              `json:"last_seen"`
}

type metadata struct {
	TotalSpeakers int       `json:"totalSpeakers"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Version       string    `json:"version"`
}

type document struct {
	Speakers map[string]Record `json:"speakers"`
	Metadata metadata          `json:"metadata"`
}

// Store keeps known speakers in memory and mirrors every write to a JSON
// document on disk. It is the single writer for its store file; a file lock
// rejects a second process opening the same path. In-memory state stays
// authoritative when persistence fails.
type Store struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
	clock  func() time.Time

	mu       sync.RWMutex
	speakers map[string]Record
}

// NewStore opens the speaker store at path, creating an empty one when no
// file exists. An empty path yields a memory-only store.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Store{
		path:     path,
		logger:   logging.NewComponentLogger(logger, "speakers"),
		clock:    time.Now,
		speakers: make(map[string]Record),
	}
	if path == "" {
		return s, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "speakers", "open", "creating store directory", err)
	}
	s.lock = flock.New(path + ".lock")
	held, err := s.lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "speakers", "open", "acquiring store lock", err)
	}
	if !held {
		return nil, services.Wrap(services.ErrConfiguration, "speakers", "open",
			fmt.Sprintf("speaker store %s is locked by another process", path), nil)
	}
	if err := s.load(); err != nil {
		_ = s.lock.Unlock()
		return nil, err
	}
	return s, nil
}

// Close releases the store's file lock.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

// Match returns the best-scoring known speaker at or above threshold.
func (s *Store) Match(fp voiceprint.Fingerprint, threshold float64) (Record, float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best      Record
		bestScore float64
		found     bool
	)
	for _, record := range s.speakers {
		score := Similarity(fp, record.Fingerprint)
		if score > bestScore || (!found && score == bestScore) {
			best = record
			bestScore = score
			found = true
		}
	}
	if !found || bestScore < threshold {
		return Record{}, bestScore, false
	}
	return best, bestScore, true
}

// Identify resolves a fingerprint to a speaker identity: the best match at
// or above threshold, or a freshly minted one. The chosen record is upserted
// either way.
func (s *Store) Identify(fp voiceprint.Fingerprint, profile Profile, threshold float64) (Record, float64, bool) {
	match, score, ok := s.Match(fp, threshold)
	if ok {
		return s.Upsert(match.ID, fp, profile), score, false
	}
	return s.Upsert(uuid.NewString(), fp, profile), score, true
}

// Upsert creates or updates a speaker record and synchronously rewrites the
// store file. Persistence failure is logged and the in-memory record is
// still returned.
func (s *Store) Upsert(id string, fp voiceprint.Fingerprint, profile Profile) Record {
	now := s.clock()
	observation := Observation{
		SourcePath:  profile.SourcePath,
		Fingerprint: fp,
		ObservedAt:  now,
	}

	s.mu.Lock()
	record, exists := s.speakers[id]
	if exists {
		record.EncounterCount++
		record.LastSeen = now
		record.Fingerprint = fp
		record.Observations = append(record.Observations, observation)
		if profile.DisplayName != "" {
			record.DisplayName = profile.DisplayName
		}
	} else {
		record = Record{
			ID:             id,
			DisplayName:    profile.DisplayName,
			Fingerprint:    fp,
			Observations:   []Observation{observation},
			EncounterCount: 1,
			FirstSeen:      now,
			LastSeen:       now,
		}
	}
	s.speakers[id] = record
	err := s.save()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("persisting speaker store failed",
			logging.String(logging.FieldSpeakerID, id),
			logging.Error(err))
	}
	return record
}

// Get returns one speaker record by ID.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.speakers[id]
	return record, ok
}

// List returns all known speakers, most recently seen first.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.speakers))
	for _, record := range s.speakers {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].LastSeen.Equal(records[j].LastSeen) {
			return records[i].ID < records[j].ID
		}
		return records[i].LastSeen.After(records[j].LastSeen)
	})
	return records
}

// Forget removes a speaker identity and persists the change.
func (s *Store) Forget(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.speakers[id]; !ok {
		return fmt.Errorf("speaker %q not found", id)
	}
	delete(s.speakers, id)
	if err := s.save(); err != nil {
		return fmt.Errorf("persist speaker store: %w", err)
	}
	return nil
}

// Count returns the number of known speakers.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.speakers)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return services.Wrap(services.ErrConfiguration, "speakers", "load", "reading store file", err)
	}
	if len(data) == 0 {
		return nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return services.Wrap(services.ErrConfiguration, "speakers", "load", "parsing store file", err)
	}
	s.speakers = make(map[string]Record, len(doc.Speakers))
	for id, record := range doc.Speakers {
		if id == "" {
			continue
		}
		record.ID = id
		s.speakers[id] = record
	}
	s.logger.Debug("loaded speaker store",
		logging.Int("speaker_count", len(s.speakers)),
		logging.String("path", s.path))
	return nil
}

// save writes the whole document atomically. Callers hold s.mu.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	doc := document{
		Speakers: s.speakers,
		Metadata: metadata{
			TotalSpeakers: len(s.speakers),
			LastUpdated:   s.clock(),
			Version:       storeVersion,
		},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal speaker store: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
