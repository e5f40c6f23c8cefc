package voice

import (
	"context"
	"errors"
)

// Sentinel conditions surfaced by the transcriber and synthesizer. The
// session controller decides how each is handled: a fresh stream for an
// interrupted transcription, a re-prompt for silence, a text-only fallback
// for failed synthesis.
var (
	ErrStreamInterrupted = errors.New("transcription stream interrupted")
	ErrNoSpeech          = errors.New("no speech detected")
	ErrSynthesisFailed   = errors.New("speech synthesis failed")
)

type TranscriptEventType string

const (
	TranscriptPartial TranscriptEventType = "partial"
	TranscriptFinal   TranscriptEventType = "final"
	TranscriptError   TranscriptEventType = "error"
)

// TranscriptEvent is one recognition result. Only final events are
// committed user utterances; partials may be revised by the provider.
type TranscriptEvent struct {
	Type       TranscriptEventType
	Text       string
	Confidence float64
	Code       string
	Detail     string
	Retryable  bool
	Timestamp  int64
}

// STTStream accepts mono 16-bit PCM frames for one utterance session.
// A commit send forces the provider to finalize the pending utterance.
type STTStream interface {
	SendFrame(ctx context.Context, pcm []byte, commit bool) error
	Close() error
}

type STTProvider interface {
	StartSession(ctx context.Context, language string) (STTStream, <-chan TranscriptEvent, error)
}

type SynthesisEventType string

const (
	SynthesisAudio SynthesisEventType = "audio"
	SynthesisFinal SynthesisEventType = "final"
	SynthesisError SynthesisEventType = "error"
)

type SynthesisEvent struct {
	Type      SynthesisEventType
	Audio     []byte
	Format    string
	Code      string
	Detail    string
	Retryable bool
}

// TTSStream emits playback-ready audio incrementally as text arrives.
// Streams are single-use; replaying text requires a new stream.
type TTSStream interface {
	SendText(ctx context.Context, text string) error
	CloseInput(ctx context.Context) error
	Events() <-chan SynthesisEvent
	Close() error
}

type TTSProvider interface {
	StartStream(ctx context.Context, voiceID, modelID string) (TTSStream, error)
}
