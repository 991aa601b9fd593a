//go:build !portaudio

package recording

import (
	"context"
	"fmt"
)

// MicSource stub when portaudio is not compiled in. Remote-feed mode (the
// browser streams chunks over the websocket) is unaffected.
type MicSource struct{}

func NewMicSource(int, int) *MicSource { return &MicSource{} }

func (m *MicSource) Open(context.Context) error {
	return fmt.Errorf("microphone capture not available: rebuild with -tags portaudio")
}

func (m *MicSource) Read(context.Context) ([]byte, error) {
	return nil, fmt.Errorf("microphone capture not available")
}

func (m *MicSource) Close() error { return nil }
