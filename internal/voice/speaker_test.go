package voice

import (
	"context"
	"errors"
	"testing"
)

type captureSink struct {
	frames     [][]byte
	utterances int
}

func (s *captureSink) WriteFrame(frame []byte) error {
	s.frames = append(s.frames, frame)
	return nil
}

func (s *captureSink) EndUtterance() error {
	s.utterances++
	return nil
}

func TestSpeakerPlaysOneUtterance(t *testing.T) {
	sink := &captureSink{}
	sp := NewSpeaker(NewSynthesizer(NewMockProvider(), "mock_model"), sink)

	if err := sp.Speak(context.Background(), "French", "Bonjour !"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(sink.frames) == 0 {
		t.Fatal("no frames reached the sink")
	}
	if sink.utterances != 1 {
		t.Fatalf("want 1 utterance boundary, got %d", sink.utterances)
	}
}

func TestSpeakerSurfacesSynthesisFailure(t *testing.T) {
	p := NewMockProvider()
	p.FailSynthesis()
	sp := NewSpeaker(NewSynthesizer(p, "mock_model"), &captureSink{})

	err := sp.Speak(context.Background(), "English", "hello")
	if !errors.Is(err, ErrSynthesisFailed) {
		t.Fatalf("want ErrSynthesisFailed, got %v", err)
	}
}
