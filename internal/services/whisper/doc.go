// Package whisper implements the client for the Whisper-style speech
// back-end via the OpenAI audio transcription API. Word-level timestamps are
// requested; diarization is not available on this path.
package whisper
