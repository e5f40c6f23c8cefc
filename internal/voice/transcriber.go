package voice

import (
	"context"
	"fmt"
	"time"
)

const commitGrace = 2 * time.Second

// Transcriber turns a continuous microphone frame stream into committed
// utterances. Each Listen call opens a fresh provider session, so a caller
// recovering from ErrStreamInterrupted simply calls Listen again.
type Transcriber struct {
	provider STTProvider
	language string
	silence  time.Duration
}

func NewTranscriber(provider STTProvider, language string, silence time.Duration) *Transcriber {
	if silence <= 0 {
		silence = 8 * time.Second
	}
	return &Transcriber{provider: provider, language: language, silence: silence}
}

// Listen forwards frames until the provider finalizes one utterance.
// It returns ErrNoSpeech when the silence window elapses with nothing
// heard, and ErrStreamInterrupted when the provider stream drops; any
// uncommitted partial is lost in that case, which is the documented
// contract for a mid-stream transport failure.
func (t *Transcriber) Listen(ctx context.Context, frames <-chan []byte) (string, error) {
	stream, events, err := t.provider.StartSession(ctx, STTLanguageCode(t.language))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
	}
	defer stream.Close()

	silence := time.NewTimer(t.silence)
	defer silence.Stop()

	var (
		lastPartial string
		heard       bool
		committing  bool
		commitFail  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case frame, ok := <-frames:
			if !ok {
				// Capture ended; force the provider to finalize what it has.
				frames = nil
				if !committing {
					committing = true
					commitFail = time.After(commitGrace)
					if err := stream.SendFrame(ctx, nil, true); err != nil {
						return "", fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
					}
				}
				continue
			}
			if committing || len(frame) == 0 {
				continue
			}
			if err := stream.SendFrame(ctx, frame, false); err != nil {
				return "", fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
			}

		case evt, ok := <-events:
			if !ok {
				if committing && lastPartial != "" {
					return lastPartial, nil
				}
				return "", fmt.Errorf("%w: event stream closed", ErrStreamInterrupted)
			}
			switch evt.Type {
			case TranscriptPartial:
				if evt.Text != "" {
					lastPartial = evt.Text
					heard = true
					resetTimer(silence, t.silence)
				}
			case TranscriptFinal:
				if evt.Text == "" {
					if lastPartial != "" {
						return lastPartial, nil
					}
					return "", ErrNoSpeech
				}
				return evt.Text, nil
			case TranscriptError:
				if evt.Retryable {
					return "", fmt.Errorf("%w: %s %s", ErrStreamInterrupted, evt.Code, evt.Detail)
				}
				return "", fmt.Errorf("stt provider error: %s %s", evt.Code, evt.Detail)
			}

		case <-silence.C:
			if !heard {
				return "", ErrNoSpeech
			}
			if !committing {
				committing = true
				commitFail = time.After(commitGrace)
				if err := stream.SendFrame(ctx, nil, true); err != nil {
					return "", fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
				}
			}

		case <-commitFail:
			// The provider never acknowledged the commit; fall back to the
			// best partial rather than stalling the turn.
			if lastPartial != "" {
				return lastPartial, nil
			}
			return "", ErrNoSpeech
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
