package speakers

import (
	"math"

	"mediascribe/internal/voiceprint"
)

// DefaultMatchThreshold is the minimum similarity for reusing a known
// speaker identity.
const DefaultMatchThreshold = 0.75

// Feature weights, summing to 1.0. Categorical features score their full
// weight on exact bucket equality; continuous features degrade linearly to
// zero across their tolerance.
const (
	weightPitch     = 0.20
	weightTempo     = 0.15
	weightClarity   = 0.15
	weightVolume    = 0.10
	weightWPM       = 0.15
	weightWordLen   = 0.10
	weightDiversity = 0.10
	weightFormality = 0.05
	weightPace      = 0.05

	toleranceWPM       = 50.0
	toleranceWordLen   = 2.0
	toleranceDiversity = 0.3
)

// Similarity scores two fingerprints in [0, 1]. Every feature is always
// compared; the final division by the compared weight sum keeps the score
// well defined if a feature is ever skipped.
func Similarity(a, b voiceprint.Fingerprint) float64 {
	var score, compared float64

	score += categorical(a.Pitch, b.Pitch, weightPitch)
	compared += weightPitch
	score += categorical(a.Tempo, b.Tempo, weightTempo)
	compared += weightTempo
	score += categorical(a.Clarity, b.Clarity, weightClarity)
	compared += weightClarity
	score += categorical(a.Volume, b.Volume, weightVolume)
	compared += weightVolume

	score += proximity(a.WordsPerMinute, b.WordsPerMinute, toleranceWPM, weightWPM)
	compared += weightWPM
	score += proximity(a.AvgWordLength, b.AvgWordLength, toleranceWordLen, weightWordLen)
	compared += weightWordLen
	score += proximity(a.VocabularyDiversity, b.VocabularyDiversity, toleranceDiversity, weightDiversity)
	compared += weightDiversity

	score += categorical(a.Formality, b.Formality, weightFormality)
	compared += weightFormality
	score += categorical(a.Pace, b.Pace, weightPace)
	compared += weightPace

	if compared == 0 {
		return 0
	}
	return score / compared
}

func categorical(a, b string, weight float64) float64 {
	if a == b {
		return weight
	}
	return 0
}

func proximity(a, b, tolerance, weight float64) float64 {
	delta := math.Abs(a - b)
	if delta >= tolerance {
		return 0
	}
	return (1 - delta/tolerance) * weight
}
