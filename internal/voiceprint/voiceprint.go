package voiceprint

import (
	"fmt"
	"hash/fnv"
	"strings"

	"mediascribe/internal/media/ffprobe"
	"mediascribe/internal/textutil"
	"mediascribe/internal/transcribe"
)

// Categorical bucket values. Matching compares these for exact equality, so
// the bucket vocabulary is part of the persisted store format.
const (
	PitchLow    = "low"
	PitchMedium = "medium"
	PitchHigh   = "high"

	TempoSlow   = "slow"
	TempoMedium = "medium"
	TempoFast   = "fast"

	ClarityMuffled  = "muffled"
	ClarityModerate = "moderate"
	ClarityClear    = "clear"

	VolumeSoft     = "soft"
	VolumeModerate = "moderate"
	VolumeStrong   = "strong"

	FormalityCasual  = "casual"
	FormalityNeutral = "neutral"
	FormalityFormal  = "formal"

	PaceMeasured       = "measured"
	PaceConversational = "conversational"
	PaceRapid          = "rapid"
)

// AudioProfile is the coarse audio signal available from probing. It is the
// only audio-side input; no waveform analysis happens here.
type AudioProfile struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	BitRate         int64   `json:"bit_rate"`
}

// ProfileFromProbe extracts the audio profile from an ffprobe result.
func ProfileFromProbe(probe ffprobe.Result) AudioProfile {
	return AudioProfile{
		DurationSeconds: probe.DurationSeconds(),
		SampleRate:      probe.SampleRate(),
		Channels:        probe.AudioChannels(),
		BitRate:         probe.BitRate(),
	}
}

// Fingerprint characterizes one speaker's voice and speaking style. Derived
// deterministically, so the same audio profile and words always produce the
// same fingerprint.
type Fingerprint struct {
	Pitch   string `json:"pitch"`
	Tempo   string `json:"tempo"`
	Clarity string `json:"clarity"`
	Volume  string `json:"volume"`

	WordsPerMinute      float64 `json:"words_per_minute"`
	AvgWordLength       float64 `json:"avg_word_length"`
	VocabularyDiversity float64 `json:"vocabulary_diversity"`

	Formality string `json:"formality"`
	Pace      string `json:"pace"`

	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`

	// Hash is informational only, a stable digest for logs and display.
	Hash string `json:"hash"`
}

// Derive builds a fingerprint for one speaker from the probed audio profile
// and that speaker's transcribed words.
func Derive(profile AudioProfile, words []transcribe.Word) Fingerprint {
	text := joinWords(words)
	stats := textutil.WordStats(text)
	wpm := wordsPerMinute(stats.WordCount, speakingSeconds(profile, words))

	fp := Fingerprint{
		Pitch:               pitchBucket(profile),
		Clarity:             clarityBucket(profile),
		Volume:              volumeBucket(profile),
		Tempo:               tempoBucket(wpm),
		WordsPerMinute:      wpm,
		AvgWordLength:       stats.AvgWordLength,
		VocabularyDiversity: stats.TypeTokenRatio,
		Formality:           formalityBucket(stats),
		Pace:                paceBucket(wpm),
		DurationSeconds:     profile.DurationSeconds,
		SampleRate:          profile.SampleRate,
		Channels:            profile.Channels,
	}
	fp.Hash = digest(fp)
	return fp
}

func joinWords(words []transcribe.Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

// speakingSeconds is the span covered by word timings, falling back to the
// probed duration when the provider supplied no timing.
func speakingSeconds(profile AudioProfile, words []transcribe.Word) float64 {
	if len(words) > 0 {
		span := words[len(words)-1].End - words[0].Start
		if span > 0 {
			return span
		}
	}
	return profile.DurationSeconds
}

func wordsPerMinute(wordCount int, seconds float64) float64 {
	if wordCount == 0 || seconds <= 0 {
		return 0
	}
	return float64(wordCount) / (seconds / 60)
}

// pitchBucket is a coarse proxy from the recording's sample rate; no
// frequency analysis is available at probe time.
func pitchBucket(profile AudioProfile) string {
	switch {
	case profile.SampleRate >= 44100:
		return PitchHigh
	case profile.SampleRate >= 22050:
		return PitchMedium
	default:
		return PitchLow
	}
}

func clarityBucket(profile AudioProfile) string {
	channels := profile.Channels
	if channels <= 0 {
		channels = 1
	}
	perChannel := profile.BitRate / int64(channels)
	switch {
	case perChannel >= 96_000:
		return ClarityClear
	case perChannel >= 48_000:
		return ClarityModerate
	default:
		return ClarityMuffled
	}
}

func volumeBucket(profile AudioProfile) string {
	switch {
	case profile.BitRate >= 192_000:
		return VolumeStrong
	case profile.BitRate >= 96_000:
		return VolumeModerate
	default:
		return VolumeSoft
	}
}

func tempoBucket(wpm float64) string {
	switch {
	case wpm <= 0:
		return TempoMedium
	case wpm < 110:
		return TempoSlow
	case wpm <= 160:
		return TempoMedium
	default:
		return TempoFast
	}
}

func paceBucket(wpm float64) string {
	switch {
	case wpm <= 0:
		return PaceConversational
	case wpm < 120:
		return PaceMeasured
	case wpm <= 170:
		return PaceConversational
	default:
		return PaceRapid
	}
}

func formalityBucket(stats textutil.Stats) string {
	switch {
	case stats.AvgWordLength >= 5.5 || stats.TypeTokenRatio >= 0.8:
		return FormalityFormal
	case stats.AvgWordLength >= 4.2:
		return FormalityNeutral
	default:
		return FormalityCasual
	}
}

func digest(fp Fingerprint) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%s|%.2f|%.2f|%.3f|%s|%s",
		fp.Pitch, fp.Tempo, fp.Clarity, fp.Volume,
		fp.WordsPerMinute, fp.AvgWordLength, fp.VocabularyDiversity,
		fp.Formality, fp.Pace)
	return fmt.Sprintf("%016x", h.Sum64())
}
