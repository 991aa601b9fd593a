package session

import (
	"errors"
	"testing"
	"time"
)

func TestCreateAndGet(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("elder-1", "token")
	if s.ID == "" {
		t.Fatal("session id should be generated")
	}
	if s.Status != StatusActive {
		t.Errorf("Status = %q, want active", s.Status)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if got.ElderID != "elder-1" || got.GateSource != "token" {
		t.Errorf("got = %+v", got)
	}

	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("elder-1", "bypass")
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount = %d, want 1", m.ActiveCount())
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Errorf("Status = %q, want ended", ended.Status)
	}
	if m.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", m.ActiveCount())
	}
}

func TestExpireInactive(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	var expired []string
	m.SetExpireHook(func(s *Session) { expired = append(expired, s.ID) })

	s := m.Create("elder-1", "cookie")
	time.Sleep(20 * time.Millisecond)
	m.expireInactive()

	if len(expired) != 1 || expired[0] != s.ID {
		t.Errorf("expired = %v, want [%s]", expired, s.ID)
	}
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Errorf("Status = %q, want ended", got.Status)
	}
}

func TestTouchKeepsSessionAlive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create("elder-1", "cookie")

	time.Sleep(20 * time.Millisecond)
	if err := m.Touch(s.ID); err != nil {
		t.Fatalf("Touch error = %v", err)
	}
	m.expireInactive()

	got, _ := m.Get(s.ID)
	if got.Status != StatusActive {
		t.Errorf("Status = %q, want active after touch", got.Status)
	}
}
