//go:build portaudio

package recording

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/audio"
)

// MicSource captures mono PCM16 audio from the default input device.
// Used in kiosk deployments where the service itself owns the microphone.
type MicSource struct {
	sampleRate      int
	framesPerBuffer int

	mu        sync.Mutex
	stream    *portaudio.Stream
	buf       []int16
	closeOnce sync.Once
}

func NewMicSource(sampleRate, framesPerBuffer int) *MicSource {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = 512
	}
	return &MicSource{sampleRate: sampleRate, framesPerBuffer: framesPerBuffer}
}

func (m *MicSource) Open(_ context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	m.buf = make([]int16, m.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.framesPerBuffer, m.buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	m.mu.Lock()
	m.stream = stream
	m.mu.Unlock()
	return nil
}

func (m *MicSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	stream := m.stream
	m.mu.Unlock()
	if stream == nil {
		return nil, fmt.Errorf("microphone not open")
	}

	if err := stream.Read(); err != nil {
		return nil, fmt.Errorf("read input stream: %w", err)
	}
	return audio.BytesFromInt16(m.buf), nil
}

func (m *MicSource) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		stream := m.stream
		m.stream = nil
		m.mu.Unlock()
		if stream != nil {
			_ = stream.Stop()
			err = stream.Close()
		}
		portaudio.Terminate()
	})
	return err
}
