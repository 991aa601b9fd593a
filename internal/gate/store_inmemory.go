package gate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process token store for local/dev use.
type InMemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]TokenRecord
	prefs  map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tokens: make(map[string]TokenRecord),
		prefs:  make(map[string]string),
	}
}

func tokenKey(token, elderID string) string {
	return token + "\x00" + elderID
}

func (s *InMemoryStore) LookupToken(_ context.Context, token, elderID string) (TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.tokens[tokenKey(token, elderID)]
	if !ok || !record.IsActive {
		return TokenRecord{}, ErrNotFound
	}
	return record, nil
}

func (s *InMemoryStore) SaveToken(_ context.Context, record TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.DateCreated.IsZero() {
		record.DateCreated = time.Now().UTC()
	}
	s.tokens[tokenKey(record.GeneratedToken, record.ElderID)] = record
	return nil
}

func (s *InMemoryStore) EnginePreference(_ context.Context, elderID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs[elderID], nil
}

func (s *InMemoryStore) SaveEnginePreference(_ context.Context, elderID, engine string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[elderID] = engine
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
