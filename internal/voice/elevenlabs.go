package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/audiotutor/audiotutor/internal/reliability"
)

type ElevenLabsConfig struct {
	APIKey       string
	WSBaseURL    string
	STTModelID   string
	OutputFormat string
	SampleRate   int
}

// ElevenLabsProvider implements both STTProvider and TTSProvider over the
// ElevenLabs realtime websocket endpoints.
type ElevenLabsProvider struct {
	cfg ElevenLabsConfig
}

func NewElevenLabsProvider(cfg ElevenLabsConfig) *ElevenLabsProvider {
	if cfg.WSBaseURL == "" {
		cfg.WSBaseURL = "wss://api.elevenlabs.io"
	}
	if cfg.STTModelID == "" {
		cfg.STTModelID = "scribe_v2_realtime"
	}
	if cfg.OutputFormat == "" {
		// Low-latency PCM for incremental playback.
		cfg.OutputFormat = "pcm_16000"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &ElevenLabsProvider{cfg: cfg}
}

func (p *ElevenLabsProvider) StartSession(ctx context.Context, languageCode string) (STTStream, <-chan TranscriptEvent, error) {
	u, err := url.Parse(p.cfg.WSBaseURL + "/v1/speech-to-text/realtime")
	if err != nil {
		return nil, nil, err
	}
	q := u.Query()
	q.Set("model_id", p.cfg.STTModelID)
	q.Set("language_code", languageCode)
	// The transcriber drives commits from its own silence window.
	q.Set("commit_strategy", "manual")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", p.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, nil, fmt.Errorf("dial stt websocket: %w", err)
	}

	events := make(chan TranscriptEvent, 256)
	s := &elevenSTTStream{conn: conn, events: events, done: make(chan struct{}), sampleRate: p.cfg.SampleRate}
	go s.readLoop()
	return s, events, nil
}

func (p *ElevenLabsProvider) StartStream(ctx context.Context, voiceID, modelID string) (TTSStream, error) {
	if voiceID == "" {
		return nil, fmt.Errorf("voice_id is required")
	}
	if modelID == "" {
		modelID = "eleven_flash_v2_5"
	}

	u, err := url.Parse(p.cfg.WSBaseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("model_id", modelID)
	q.Set("output_format", p.cfg.OutputFormat)
	q.Set("auto_mode", "true")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", p.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("dial tts websocket: %w", err)
	}

	s := &elevenTTSStream{conn: conn, events: make(chan SynthesisEvent, 512), done: make(chan struct{}), format: p.cfg.OutputFormat}
	go s.readLoop()
	// Prime the stream as documented for TTS websocket flows.
	_ = s.writeJSON(map[string]any{"text": " "})
	return s, nil
}

type elevenSTTStream struct {
	conn       *websocket.Conn
	writeMu    sync.Mutex
	closeOnce  sync.Once
	done       chan struct{}
	events     chan TranscriptEvent
	sampleRate int
}

func (s *elevenSTTStream) SendFrame(_ context.Context, pcm []byte, commit bool) error {
	payload := map[string]any{
		"message_type":  "input_audio_chunk",
		"audio_base_64": base64.StdEncoding.EncodeToString(pcm),
		"commit":        commit,
		"sample_rate":   s.sampleRate,
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(payload)
}

// emit forwards an event unless the stream was closed; the consumer may
// have stopped reading after a final transcript, so a plain send could
// block forever on a full buffer.
func (s *elevenSTTStream) emit(evt TranscriptEvent) bool {
	select {
	case s.events <- evt:
		return true
	case <-s.done:
		return false
	}
}

// readLoop is the only sender on events and the only closer of it.
func (s *elevenSTTStream) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}
		messageType := asString(raw["message_type"])
		switch messageType {
		case "partial_transcript":
			if !s.emit(TranscriptEvent{Type: TranscriptPartial, Text: asString(raw["text"]), Timestamp: time.Now().UnixMilli()}) {
				return
			}
		case "committed_transcript", "committed_transcript_with_timestamps":
			if !s.emit(TranscriptEvent{Type: TranscriptFinal, Text: asString(raw["text"]), Timestamp: time.Now().UnixMilli()}) {
				return
			}
		case "session_started":
			// control event
		case "", "input_audio_chunk":
			// ignore
		default:
			ok := s.emit(TranscriptEvent{
				Type:      TranscriptError,
				Code:      messageType,
				Detail:    asString(raw["error"]),
				Retryable: reliability.IsRetryableProviderCode(messageType),
				Timestamp: time.Now().UnixMilli(),
			})
			if !ok {
				return
			}
		}
	}
}

func (s *elevenSTTStream) Close() error {
	var retErr error
	s.closeOnce.Do(func() {
		close(s.done)
		retErr = s.conn.Close()
	})
	return retErr
}

type elevenTTSStream struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	events    chan SynthesisEvent
	format    string
}

func (s *elevenTTSStream) SendText(_ context.Context, text string) error {
	return s.writeJSON(map[string]any{
		"text":                   text,
		"try_trigger_generation": true,
	})
}

func (s *elevenTTSStream) CloseInput(_ context.Context) error {
	return s.writeJSON(map[string]any{"text": ""})
}

func (s *elevenTTSStream) Events() <-chan SynthesisEvent { return s.events }

func (s *elevenTTSStream) Close() error {
	var retErr error
	s.closeOnce.Do(func() {
		close(s.done)
		retErr = s.conn.Close()
	})
	return retErr
}

func (s *elevenTTSStream) writeJSON(payload map[string]any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(payload)
}

// emit forwards an event unless the stream was closed; the synthesis
// consumer stops reading once it sees the final marker, so trailing
// provider messages must not block or race the close.
func (s *elevenTTSStream) emit(evt SynthesisEvent) bool {
	select {
	case s.events <- evt:
		return true
	case <-s.done:
		return false
	}
}

// readLoop is the only sender on events and the only closer of it.
func (s *elevenTTSStream) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}

		if audio := asString(raw["audio"]); audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(audio)
			if err == nil && len(chunk) > 0 {
				if !s.emit(SynthesisEvent{Type: SynthesisAudio, Audio: chunk, Format: s.format}) {
					return
				}
			}
		}
		if asBool(raw["isFinal"]) || asBool(raw["is_final"]) {
			if !s.emit(SynthesisEvent{Type: SynthesisFinal}) {
				return
			}
		}
		if errMsg := asString(raw["error"]); errMsg != "" {
			code := asString(raw["message_type"])
			if !s.emit(SynthesisEvent{Type: SynthesisError, Code: code, Detail: errMsg, Retryable: reliability.IsRetryableProviderCode(code)}) {
				return
			}
		}
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func asBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
