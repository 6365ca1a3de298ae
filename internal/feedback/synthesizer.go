package feedback

import "context"

// Synthesizer turns a short confirmation phrase into playable PCM. The
// actual text-to-speech engine lives outside this module; the voice core
// only needs the boundary.
type Synthesizer interface {
	// Synthesize renders text as s16le PCM at the transport's sample rate.
	// A nil result with a nil error means the backend chose to stay silent.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Null is a Synthesizer that produces no audio. Used when no TTS backend is
// configured; commands still execute, the bot just doesn't talk back.
type Null struct{}

// Synthesize implements Synthesizer.
func (Null) Synthesize(context.Context, string) ([]byte, error) { return nil, nil }
