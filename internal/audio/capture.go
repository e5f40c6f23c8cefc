package audio

import (
	"context"
	"io"
)

// StreamPCM reads fixed-size PCM frames from r and forwards them on the
// returned channel until EOF or cancellation. The channel is closed when
// capture ends, which tells the transcriber to finalize the utterance.
func StreamPCM(ctx context.Context, r io.Reader, frameBytes int) <-chan []byte {
	if frameBytes <= 0 {
		frameBytes = 3200
	}
	out := make(chan []byte, 8)
	go func() {
		defer close(out)
		for {
			frame := make([]byte, frameBytes)
			n, err := io.ReadFull(r, frame)
			if n > 0 {
				select {
				case out <- frame[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}
