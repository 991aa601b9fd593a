package speech

import "context"

// Audio is a synthesized (or captured) audio payload.
type Audio struct {
	Data []byte
	MIME string
}

// Transcriber turns a recorded audio payload into text. An empty transcript
// is a valid result, not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mime string) (string, error)
}

// Synthesizer turns reply text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
	Engine() string
}
