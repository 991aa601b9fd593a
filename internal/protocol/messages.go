package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientControl    MessageType = "client_control"
	TypeClientAudioChunk MessageType = "client_audio_chunk"
	TypeSubtitleUpdate   MessageType = "subtitle_update"
	TypeStateUpdate      MessageType = "state_update"
	TypeChatTurn         MessageType = "chat_turn"
	TypeToast            MessageType = "toast"
	TypeAssistantAudio   MessageType = "assistant_audio"
	TypeCacheCleared     MessageType = "cache_cleared"
	TypeErrorEvent       MessageType = "error_event"
)

// Control actions accepted from the page.
const (
	ActionStartRecording = "start_recording"
	ActionStopRecording  = "stop_recording"
	ActionPlaybackDone   = "playback_done"
	ActionClearCache     = "clear_cache"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
}

// SubtitleUpdate carries the status line shown under the microphone button.
type SubtitleUpdate struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

// StateUpdate mirrors the voice interaction state at every transition.
type StateUpdate struct {
	Type         MessageType `json:"type"`
	SessionID    string      `json:"session_id"`
	Stage        string      `json:"stage"`
	IsRecording  bool        `json:"is_recording"`
	IsProcessing bool        `json:"is_processing"`
	IsSpeaking   bool        `json:"is_speaking"`
}

type ChatTurn struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	IsUser    bool        `json:"isUser"`
	TSMs      int64       `json:"ts_ms"`
}

// Toast is a transient failure notification for the page.
type Toast struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Kind      string      `json:"kind"`
	Message   string      `json:"message"`
	Detail    string      `json:"detail,omitempty"`
}

type AssistantAudio struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	TurnID      string      `json:"turn_id"`
	MIME        string      `json:"mime"`
	AudioBase64 string      `json:"audio_base64"`
}

// CacheCleared acknowledges a clear-cache control, broadcast to all
// connected clients.
type CacheCleared struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		switch msg.Action {
		case ActionStartRecording, ActionStopRecording, ActionPlaybackDone, ActionClearCache:
		case "CLEAR_CACHE":
			// Historical clients send the uppercase form.
			msg.Action = ActionClearCache
		default:
			return nil, fmt.Errorf("unknown control action %q", msg.Action)
		}
		return msg, nil
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
