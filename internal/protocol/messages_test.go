package protocol

import (
	"errors"
	"testing"
)

func TestParseClientControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","session_id":"s-1","action":"start_recording"}`)
	parsed, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage error = %v", err)
	}
	msg, ok := parsed.(ClientControl)
	if !ok {
		t.Fatalf("parsed type = %T, want ClientControl", parsed)
	}
	if msg.SessionID != "s-1" || msg.Action != ActionStartRecording {
		t.Errorf("msg = %+v", msg)
	}
}

func TestParseAcceptsAllControlActions(t *testing.T) {
	for _, action := range []string{ActionStartRecording, ActionStopRecording, ActionPlaybackDone, ActionClearCache} {
		raw := []byte(`{"type":"client_control","session_id":"s-1","action":"` + action + `"}`)
		if _, err := ParseClientMessage(raw); err != nil {
			t.Errorf("action %q rejected: %v", action, err)
		}
	}
}

func TestParseNormalizesLegacyClearCache(t *testing.T) {
	raw := []byte(`{"type":"client_control","session_id":"s-1","action":"CLEAR_CACHE"}`)
	parsed, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage error = %v", err)
	}
	if msg := parsed.(ClientControl); msg.Action != ActionClearCache {
		t.Errorf("action = %q, want %q", msg.Action, ActionClearCache)
	}
}

func TestParseClientAudioChunk(t *testing.T) {
	raw := []byte(`{"type":"client_audio_chunk","session_id":"s-1","seq":3,"pcm16_base64":"AAA=","sample_rate":16000}`)
	parsed, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage error = %v", err)
	}
	msg, ok := parsed.(ClientAudioChunk)
	if !ok {
		t.Fatalf("parsed type = %T, want ClientAudioChunk", parsed)
	}
	if msg.Seq != 3 || msg.SampleRate != 16000 {
		t.Errorf("msg = %+v", msg)
	}
}

func TestParseRejectsInvalidMessages(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"unknown type", `{"type":"mystery"}`},
		{"control missing session", `{"type":"client_control","action":"start_recording"}`},
		{"control unknown action", `{"type":"client_control","session_id":"s","action":"reboot"}`},
		{"chunk missing audio", `{"type":"client_audio_chunk","session_id":"s","sample_rate":16000}`},
		{"chunk bad sample rate", `{"type":"client_audio_chunk","session_id":"s","pcm16_base64":"AA==","sample_rate":0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseClientMessage([]byte(tc.raw)); err == nil {
				t.Errorf("ParseClientMessage accepted %s", tc.raw)
			}
		})
	}
}

func TestUnsupportedTypeSentinel(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"subtitle_update"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("err = %v, want ErrUnsupportedType", err)
	}
}
