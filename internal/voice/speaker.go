package voice

import (
	"context"
	"fmt"

	"github.com/audiotutor/audiotutor/internal/audio"
)

// Speaker plays synthesized tutor lines through an audio sink, starting
// on the first frame rather than waiting for the full synthesis.
type Speaker struct {
	synth *Synthesizer
	sink  audio.Sink
}

func NewSpeaker(synth *Synthesizer, sink audio.Sink) *Speaker {
	return &Speaker{synth: synth, sink: sink}
}

func (s *Speaker) Speak(ctx context.Context, language, text string) error {
	syn, err := s.synth.Synthesize(ctx, text, VoiceForLanguage(language))
	if err != nil {
		return err
	}
	for frame := range syn.Frames() {
		if err := s.sink.WriteFrame(frame); err != nil {
			return fmt.Errorf("play frame: %w", err)
		}
	}
	if err := syn.Err(); err != nil {
		return err
	}
	return s.sink.EndUtterance()
}
