package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteWAVHeader(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	var buf bytes.Buffer
	if err := WriteWAV(&buf, pcm, 16000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	out := buf.Bytes()
	if string(out[:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatalf("bad container header: %q", out[:12])
	}
	dataSize := binary.LittleEndian.Uint32(out[40:44])
	if dataSize != uint32(len(pcm)) {
		t.Fatalf("data size = %d, want %d", dataSize, len(pcm))
	}
	if !bytes.Equal(out[44:], pcm) {
		t.Fatal("payload mismatch")
	}
}

func TestSpoolSinkWritesUtterances(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSpoolSink(dir, 16000)
	if err != nil {
		t.Fatalf("NewSpoolSink: %v", err)
	}

	if err := sink.WriteFrame([]byte{1, 2}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := sink.WriteFrame([]byte{3, 4}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := sink.EndUtterance(); err != nil {
		t.Fatalf("EndUtterance: %v", err)
	}

	// An empty utterance produces no file.
	if err := sink.EndUtterance(); err != nil {
		t.Fatalf("empty EndUtterance: %v", err)
	}

	if err := sink.WriteFrame([]byte{5, 6}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := sink.EndUtterance(); err != nil {
		t.Fatalf("EndUtterance: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("want 2 spool files, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data[:4]) != "RIFF" {
		t.Fatal("spool file is not a WAV container")
	}
}
