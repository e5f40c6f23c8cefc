package voice

import (
	"context"
	"fmt"
	"sync"
)

// Synthesizer converts reply text into an ordered frame sequence. Frames
// begin flowing before the provider finishes the full synthesis, so a
// caller can start playback on the first frame.
type Synthesizer struct {
	provider TTSProvider
	modelID  string
}

func NewSynthesizer(provider TTSProvider, modelID string) *Synthesizer {
	return &Synthesizer{provider: provider, modelID: modelID}
}

// Synthesis is a single non-restartable synthesis run. Frames() closes when
// the provider signals end of audio or on failure; Err() is meaningful only
// after Frames() is exhausted.
type Synthesis struct {
	frames chan []byte
	mu     sync.Mutex
	err    error
	format string
}

func (s *Synthesis) Frames() <-chan []byte { return s.frames }

func (s *Synthesis) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Format reports the audio container of the emitted frames.
func (s *Synthesis) Format() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *Synthesis) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceID string) (*Synthesis, error) {
	stream, err := s.provider.StartStream(ctx, voiceID, s.modelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	if err := stream.SendText(ctx, text); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	if err := stream.CloseInput(ctx); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	out := &Synthesis{frames: make(chan []byte, 32)}
	go func() {
		defer close(out.frames)
		defer stream.Close()
		for {
			select {
			case <-ctx.Done():
				out.fail(ctx.Err())
				return
			case evt, ok := <-stream.Events():
				if !ok {
					return
				}
				switch evt.Type {
				case SynthesisAudio:
					if len(evt.Audio) == 0 {
						continue
					}
					out.mu.Lock()
					if out.format == "" && evt.Format != "" {
						out.format = evt.Format
					}
					out.mu.Unlock()
					select {
					case out.frames <- evt.Audio:
					case <-ctx.Done():
						out.fail(ctx.Err())
						return
					}
				case SynthesisFinal:
					return
				case SynthesisError:
					out.fail(fmt.Errorf("%w: %s %s", ErrSynthesisFailed, evt.Code, evt.Detail))
					return
				}
			}
		}
	}()
	return out, nil
}
