package recording

import (
	"context"
	"fmt"
	"sync"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/audio"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/fault"
)

// Payload is one finalized recording, ready for transcription.
type Payload struct {
	Data       []byte
	MIME       string
	SampleRate int
}

// Source is an exclusively-held audio capture device. Open acquires it,
// Read delivers the next PCM16LE chunk, Close releases it. Read must honor
// context cancellation.
type Source interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// CompleteFunc receives the finalized payload after a recording stops.
type CompleteFunc func(Payload)

// Controller manages one microphone capture lifecycle at a time. When source
// is nil the controller runs in remote-feed mode: chunks arrive through
// AppendChunk (the browser page streams them over the websocket) instead of
// from a local device.
type Controller struct {
	source     Source
	sampleRate int
	onComplete CompleteFunc

	mu        sync.Mutex
	recording bool
	chunks    [][]byte
	cancel    context.CancelFunc
	readDone  chan struct{}
	closeOnce *sync.Once
}

func NewController(source Source, sampleRate int, onComplete CompleteFunc) *Controller {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Controller{
		source:     source,
		sampleRate: sampleRate,
		onComplete: onComplete,
	}
}

// Start acquires the capture device and begins buffering chunks. Device
// acquisition failure leaves the controller not recording.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		return fmt.Errorf("recording already in progress")
	}
	readCtx, cancel := context.WithCancel(ctx)
	c.recording = true
	c.chunks = nil
	c.cancel = cancel
	c.readDone = make(chan struct{})
	c.closeOnce = &sync.Once{}
	c.mu.Unlock()

	if c.source == nil {
		close(c.readDone)
		return nil
	}

	if err := c.source.Open(readCtx); err != nil {
		c.mu.Lock()
		c.recording = false
		c.mu.Unlock()
		cancel()
		close(c.readDone)
		return fault.Wrap(fault.KindMicrophone, err)
	}

	go c.readLoop(readCtx)
	return nil
}

func (c *Controller) readLoop(ctx context.Context) {
	defer close(c.readDone)
	for {
		chunk, err := c.source.Read(ctx)
		if err != nil {
			return
		}
		c.AppendChunk(chunk)
	}
}

// AppendChunk buffers one audio chunk. Chunks arriving while not recording
// are dropped.
func (c *Controller) AppendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.recording {
		return
	}
	buffered := make([]byte, len(chunk))
	copy(buffered, chunk)
	c.chunks = append(c.chunks, buffered)
}

// IsRecording reports whether a capture is active.
func (c *Controller) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Stop finalizes the buffered chunks into a single payload, releases the
// device, and invokes the completion callback. Calling Stop when not
// recording is a no-op, so the device is released exactly once per
// recording session.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return nil
	}
	c.recording = false
	cancel := c.cancel
	closeOnce := c.closeOnce
	readDone := c.readDone
	c.mu.Unlock()

	cancel()
	<-readDone

	c.mu.Lock()
	chunks := c.chunks
	c.chunks = nil
	c.mu.Unlock()

	var closeErr error
	if c.source != nil {
		closeOnce.Do(func() {
			closeErr = c.source.Close()
		})
	}

	if len(chunks) > 0 && c.onComplete != nil {
		total := 0
		for _, chunk := range chunks {
			total += len(chunk)
		}
		pcm := make([]byte, 0, total)
		for _, chunk := range chunks {
			pcm = append(pcm, chunk...)
		}

		wav, err := audio.EncodeWAVPCM16LE(pcm, c.sampleRate)
		if err != nil {
			return fmt.Errorf("finalize recording: %w", err)
		}
		c.onComplete(Payload{Data: wav, MIME: "audio/wav", SampleRate: c.sampleRate})
	}

	return closeErr
}
