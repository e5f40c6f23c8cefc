package voice

import (
	"context"
	"sync"
	"time"
)

// MockProvider is a deterministic STT/TTS provider used when no realtime
// provider is configured, and by the test suite. Transcript scripts are
// consumed one per session in order.
type MockProvider struct {
	mu       sync.Mutex
	scripted bool
	scripts  [][]TranscriptEvent
	failTTS  bool
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

// ScriptUtterance enqueues a partial followed by a final for one session.
func (p *MockProvider) ScriptUtterance(text string) {
	p.ScriptEvents(
		TranscriptEvent{Type: TranscriptPartial, Text: text, Confidence: 0.5},
		TranscriptEvent{Type: TranscriptFinal, Text: text, Confidence: 0.9},
	)
}

// ScriptEvents enqueues a raw event sequence for one session.
func (p *MockProvider) ScriptEvents(events ...TranscriptEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripted = true
	p.scripts = append(p.scripts, events)
}

// FailSynthesis makes every TTS stream abort with a mid-stream error.
func (p *MockProvider) FailSynthesis() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failTTS = true
}

func (p *MockProvider) StartSession(_ context.Context, _ string) (STTStream, <-chan TranscriptEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := make(chan TranscriptEvent, 64)
	s := &mockSTTStream{events: events}
	if !p.scripted {
		s.canned = true
		return s, events, nil
	}
	if len(p.scripts) > 0 {
		script := p.scripts[0]
		p.scripts = p.scripts[1:]
		for _, evt := range script {
			if evt.Timestamp == 0 {
				evt.Timestamp = time.Now().UnixMilli()
			}
			events <- evt
		}
	}
	// An exhausted or empty script stays silent so the silence window fires.
	return s, events, nil
}

func (p *MockProvider) StartStream(_ context.Context, _, _ string) (TTSStream, error) {
	p.mu.Lock()
	fail := p.failTTS
	p.mu.Unlock()
	return &mockTTSStream{events: make(chan SynthesisEvent, 128), fail: fail}, nil
}

type mockSTTStream struct {
	mu     sync.Mutex
	events chan TranscriptEvent
	canned bool
	chunks int
	closed bool
}

func (s *mockSTTStream) SendFrame(_ context.Context, pcm []byte, commit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.canned {
		return nil
	}
	if len(pcm) > 0 {
		s.chunks++
		s.events <- TranscriptEvent{Type: TranscriptPartial, Text: "...", Confidence: 0.5, Timestamp: time.Now().UnixMilli()}
	}
	if commit || (s.chunks > 0 && s.chunks%8 == 0) {
		text := ""
		if s.chunks > 0 {
			text = "simulated voice input"
		}
		s.events <- TranscriptEvent{Type: TranscriptFinal, Text: text, Confidence: 0.7, Timestamp: time.Now().UnixMilli()}
	}
	return nil
}

func (s *mockSTTStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

type mockTTSStream struct {
	mu     sync.Mutex
	events chan SynthesisEvent
	fail   bool
	closed bool
}

func (s *mockTTSStream) SendText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || text == "" {
		return nil
	}
	if s.fail {
		s.events <- SynthesisEvent{Type: SynthesisError, Code: "mock_failure", Detail: "scripted synthesis failure"}
		return nil
	}
	s.events <- SynthesisEvent{Type: SynthesisAudio, Audio: []byte(text), Format: "mock_text_bytes"}
	return nil
}

func (s *mockTTSStream) CloseInput(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.fail {
		return nil
	}
	s.events <- SynthesisEvent{Type: SynthesisFinal}
	return nil
}

func (s *mockTTSStream) Events() <-chan SynthesisEvent { return s.events }

func (s *mockTTSStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}
