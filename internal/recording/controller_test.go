package recording

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/fault"
)

// fakeSource feeds a fixed chunk sequence and tracks open/close counts.
type fakeSource struct {
	mu      sync.Mutex
	chunks  [][]byte
	openErr error
	opens   int
	closes  int
	readCh  chan []byte
}

func newFakeSource(chunks ...[]byte) *fakeSource {
	s := &fakeSource{readCh: make(chan []byte, len(chunks)+1)}
	for _, c := range chunks {
		s.readCh <- c
	}
	return s
}

func (s *fakeSource) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.opens++
	return nil
}

func (s *fakeSource) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case chunk, ok := <-s.readCh:
		if !ok {
			return nil, errors.New("source drained")
		}
		return chunk, nil
	}
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	close(s.readCh)
	return nil
}

func (s *fakeSource) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func waitForChunks(t *testing.T, c *Controller, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		got := len(c.chunks)
		c.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d buffered chunks", n)
}

func TestDeniedMicrophoneLeavesStateUnchanged(t *testing.T) {
	source := newFakeSource()
	source.openErr = errors.New("permission denied")

	c := NewController(source, 16000, nil)
	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("Start with denied mic should fail")
	}
	if fault.KindOf(err) != fault.KindMicrophone {
		t.Errorf("fault kind = %q, want %q", fault.KindOf(err), fault.KindMicrophone)
	}
	if c.IsRecording() {
		t.Error("controller should not be recording after denial")
	}
}

func TestStopReleasesDeviceExactlyOnce(t *testing.T) {
	source := newFakeSource([]byte{1, 2}, []byte{3, 4})
	var payloads []Payload
	c := NewController(source, 16000, func(p Payload) { payloads = append(payloads, p) })

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	if !c.IsRecording() {
		t.Fatal("controller should be recording after Start")
	}
	waitForChunks(t, c, 2)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop error = %v", err)
	}
	// Repeated stops are no-ops.
	if err := c.Stop(); err != nil {
		t.Fatalf("second Stop error = %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("third Stop error = %v", err)
	}

	if got := source.closeCount(); got != 1 {
		t.Errorf("device released %d times, want exactly 1", got)
	}
	if len(payloads) != 1 {
		t.Fatalf("completion callback fired %d times, want 1", len(payloads))
	}
	if payloads[0].MIME != "audio/wav" {
		t.Errorf("payload MIME = %q, want audio/wav", payloads[0].MIME)
	}
	if len(payloads[0].Data) <= 44 {
		t.Errorf("payload has no audio data beyond the WAV header: %d bytes", len(payloads[0].Data))
	}
}

func TestStartWhileRecordingRejected(t *testing.T) {
	c := NewController(nil, 16000, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail while recording")
	}
	_ = c.Stop()
}

func TestRemoteFeedMode(t *testing.T) {
	var payload Payload
	fired := 0
	c := NewController(nil, 16000, func(p Payload) {
		payload = p
		fired++
	})

	// Chunks before Start are dropped.
	c.AppendChunk([]byte{9, 9})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	c.AppendChunk([]byte{1, 0})
	c.AppendChunk([]byte{2, 0})

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop error = %v", err)
	}
	if fired != 1 {
		t.Fatalf("callback fired %d times, want 1", fired)
	}
	// 44-byte WAV header plus the two buffered chunks only.
	if want := 44 + 4; len(payload.Data) != want {
		t.Errorf("payload size = %d, want %d", len(payload.Data), want)
	}
}

func TestStopWithoutChunksSkipsCallback(t *testing.T) {
	fired := 0
	c := NewController(nil, 16000, func(Payload) { fired++ })

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop error = %v", err)
	}
	if fired != 0 {
		t.Errorf("callback fired %d times for an empty recording, want 0", fired)
	}
}
