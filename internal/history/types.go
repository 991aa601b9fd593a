package history

import (
	"context"
	"time"
)

// Turn is one utterance in a conversation: the elder's or the assistant's.
type Turn struct {
	ID        string    `json:"id"`
	ElderID   string    `json:"elder_id"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	CreatedAt time.Time `json:"timestamp"`
}

// Store persists and retrieves conversation turns.
type Store interface {
	SaveTurn(ctx context.Context, turn Turn) error
	RecentTurns(ctx context.Context, elderID string, limit int) ([]Turn, error)
	Close() error
}
