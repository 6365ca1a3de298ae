package transcriber

import "context"

// Transcriber converts raw PCM audio into text.
type Transcriber interface {
	// Transcribe blocks until the service produces a transcript for the
	// given little-endian 16-bit PCM payload, or until ctx is done.
	Transcribe(ctx context.Context, pcm []byte) (string, error)

	// Close releases resources.
	Close() error
}
