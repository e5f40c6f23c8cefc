package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Sink consumes playback-ready PCM frames in order. EndUtterance marks
// the boundary between spoken lines.
type Sink interface {
	WriteFrame(frame []byte) error
	EndUtterance() error
}

// DiscardSink drops all frames. Used when the process has no playback
// device, e.g. in tests or a headless deployment.
type DiscardSink struct{}

func (DiscardSink) WriteFrame([]byte) error { return nil }
func (DiscardSink) EndUtterance() error     { return nil }

// SpoolSink accumulates each utterance and writes it to the spool
// directory as a numbered WAV file, so the playback device (or a human
// debugging a session) can pick it up.
type SpoolSink struct {
	dir        string
	sampleRate int

	mu  sync.Mutex
	buf []byte
	seq int
}

func NewSpoolSink(dir string, sampleRate int) (*SpoolSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &SpoolSink{dir: dir, sampleRate: sampleRate}, nil
}

func (s *SpoolSink) WriteFrame(frame []byte) error {
	s.mu.Lock()
	s.buf = append(s.buf, frame...)
	s.mu.Unlock()
	return nil
}

func (s *SpoolSink) EndUtterance() error {
	s.mu.Lock()
	pcm := s.buf
	s.buf = nil
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if len(pcm) == 0 {
		return nil
	}

	path := filepath.Join(s.dir, fmt.Sprintf("utterance-%04d.wav", seq))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create spool file: %w", err)
	}
	defer f.Close()

	if err := WriteWAV(f, pcm, s.sampleRate); err != nil {
		return fmt.Errorf("write spool file: %w", err)
	}
	return nil
}
