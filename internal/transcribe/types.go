package transcribe

// Provider identifies which speech back-end path produced a result.
type Provider string

const (
	ProviderGoogleSync        Provider = "google_sync"
	ProviderGoogleLongRunning Provider = "google_long_running"
	ProviderWhisperDirect     Provider = "whisper_direct"
	ProviderWhisperChunked    Provider = "whisper_chunked"
)

// State is a stop on the router's fallback state machine.
type State string

const (
	StateIdle           State = "idle"
	StateRouting        State = "routing"
	StateGoogleSync     State = "google_sync"
	StateGoogleLongRun  State = "google_long_running"
	StateWhisperDirect  State = "whisper_direct"
	StateWhisperChunked State = "whisper_chunked"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Word is one transcribed word. Start/End are seconds from the beginning of
// the source audio; zero values mean the provider offered no timing.
// SpeakerTag is 0 when the provider performed no diarization.
type Word struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start,omitempty"`
	End        float64 `json:"end,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	SpeakerTag int     `json:"speaker_tag,omitempty"`
}

// SpeakerSegment is a run of consecutive words attributed to one speaker.
type SpeakerSegment struct {
	SpeakerTag int     `json:"speaker_tag"`
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	WordCount  int     `json:"word_count"`
}

// Result is the single transcript produced for one audio asset.
//
// FullText is concatenated in chunk index order, not timestamp order; for
// unchunked paths the two coincide.
type Result struct {
	FullText        string           `json:"full_text"`
	Words           []Word           `json:"words,omitempty"`
	SpeakerSegments []SpeakerSegment `json:"speaker_segments,omitempty"`
	Provider        Provider         `json:"provider"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// Diarized reports whether the result carries speaker attribution.
func (r *Result) Diarized() bool {
	return len(r.SpeakerSegments) > 0
}

// SegmentBySpeaker groups consecutive same-speaker words into segments.
// Words without speaker tags produce no segments.
func SegmentBySpeaker(words []Word) []SpeakerSegment {
	var segments []SpeakerSegment
	for _, word := range words {
		if word.SpeakerTag == 0 {
			continue
		}
		if len(segments) == 0 || segments[len(segments)-1].SpeakerTag != word.SpeakerTag {
			segments = append(segments, SpeakerSegment{
				SpeakerTag: word.SpeakerTag,
				Start:      word.Start,
			})
		}
		seg := &segments[len(segments)-1]
		if seg.Text != "" {
			seg.Text += " "
		}
		seg.Text += word.Text
		seg.End = word.End
		seg.WordCount++
	}
	return segments
}
