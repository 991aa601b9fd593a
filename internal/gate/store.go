package gate

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("token record not found")

// TokenRecord is one caregiver-provisioned access token row.
type TokenRecord struct {
	ID             string    `json:"id"`
	GeneratedToken string    `json:"generated_token"`
	ElderID        string    `json:"elder_id"`
	IsActive       bool      `json:"is_active"`
	Description    string    `json:"description"`
	DateCreated    time.Time `json:"date_created"`
}

// Store persists token records and per-elder preferences.
type Store interface {
	// LookupToken returns the single active record matching token and elder
	// id exactly, or ErrNotFound.
	LookupToken(ctx context.Context, token, elderID string) (TokenRecord, error)
	SaveToken(ctx context.Context, record TokenRecord) error

	EnginePreference(ctx context.Context, elderID string) (string, error)
	SaveEnginePreference(ctx context.Context, elderID, engine string) error

	Close() error
}

// NewStore creates a postgres-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
