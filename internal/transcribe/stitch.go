package transcribe

import (
	"strings"

	"mediascribe/internal/services/google"
)

// ChunkTranscription carries one chunk's transcription, positioned by index.
type ChunkTranscription struct {
	Index int
	Text  string
	Words []Word
}

// StitchChunks reassembles per-chunk transcriptions into a single transcript.
//
// The slot slice is indexed by chunk position; nil slots are chunks that were
// dropped during conversion or transcription. Word times are shifted by a
// cumulative offset that advances by the nominal chunk duration for every
// index, dropped or not, so a gap in coverage never pulls later words earlier.
func StitchChunks(slots []*ChunkTranscription, chunkDuration float64) (string, []Word) {
	var (
		parts  []string
		words  []Word
		offset float64
	)
	for _, slot := range slots {
		if slot != nil {
			text := strings.TrimSpace(slot.Text)
			if text != "" {
				parts = append(parts, text)
			}
			for _, word := range slot.Words {
				word.Start += offset
				word.End += offset
				words = append(words, word)
			}
		}
		offset += chunkDuration
	}
	return strings.Join(parts, " "), words
}

// StitchGoogleResults flattens a Google recognize response into transcript
// text and words. Alternatives are newline-joined in API order; words are
// taken from each result's first alternative, which is where the API attaches
// timing and speaker tags.
func StitchGoogleResults(results []google.Result) (string, []Word) {
	var (
		parts []string
		words []Word
	)
	for _, result := range results {
		for i, alt := range result.Alternatives {
			text := strings.TrimSpace(alt.Transcript)
			if text != "" {
				parts = append(parts, text)
			}
			if i != 0 {
				continue
			}
			for _, w := range alt.Words {
				words = append(words, Word{
					Text:       w.Word,
					Start:      w.StartTime,
					End:        w.EndTime,
					Confidence: alt.Confidence,
					SpeakerTag: w.SpeakerTag,
				})
			}
		}
	}
	return strings.Join(parts, "\n"), words
}
