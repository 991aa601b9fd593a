package gate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/env"
)

var (
	prodPolicy = env.Policy{RequireToken: true}
	devPolicy  = env.Policy{RequireToken: false, AllowEngineOverride: true}
)

// countingStore records lookups so tests can assert the cookie path skips
// the store entirely.
type countingStore struct {
	Store
	lookups int
}

func (s *countingStore) LookupToken(ctx context.Context, token, elderID string) (TokenRecord, error) {
	s.lookups++
	return s.Store.LookupToken(ctx, token, elderID)
}

func seedToken(t *testing.T, store Store, token, elderID string, active bool) {
	t.Helper()
	err := store.SaveToken(context.Background(), TokenRecord{
		GeneratedToken: token,
		ElderID:        elderID,
		IsActive:       active,
		Description:    "test link",
	})
	if err != nil {
		t.Fatalf("seed token: %v", err)
	}
}

func sessionCookieFor(t *testing.T, name, userID string) *http.Cookie {
	t.Helper()
	payload, err := json.Marshal(SessionCookie{UserID: userID, Token: "tok", Timestamp: time.Now().UnixMilli()})
	if err != nil {
		t.Fatalf("marshal cookie: %v", err)
	}
	return &http.Cookie{Name: name, Value: base64.URLEncoding.EncodeToString(payload)}
}

func TestCookieShortCircuitsValidation(t *testing.T) {
	store := &countingStore{Store: NewInMemoryStore()}
	g := New(store, prodPolicy, "elder_session", 7*24*time.Hour)

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(sessionCookieFor(t, "elder_session", "elder-7"))

	d := g.Authorize(context.Background(), r)
	if d.Status != StatusValid {
		t.Fatalf("Status = %q, want valid", d.Status)
	}
	if d.ElderID != "elder-7" {
		t.Errorf("ElderID = %q, want elder-7", d.ElderID)
	}
	if d.Source != "cookie" {
		t.Errorf("Source = %q, want cookie", d.Source)
	}
	if store.lookups != 0 {
		t.Errorf("store lookups = %d, want 0", store.lookups)
	}
}

func TestProdRequiresToken(t *testing.T) {
	store := NewInMemoryStore()
	g := New(store, prodPolicy, "elder_session", 7*24*time.Hour)

	cases := []struct {
		name string
		url  string
	}{
		{"no params", "/"},
		{"missing userId", "/?token=abc"},
		{"missing token", "/?userId=elder-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tc.url, nil)
			d := g.Authorize(context.Background(), r)
			if d.Status != StatusInvalid {
				t.Fatalf("Status = %q, want invalid", d.Status)
			}
			if d.Reason == "" {
				t.Error("invalid decision should carry a user-facing reason")
			}
		})
	}
}

func TestProdValidTokenIssuesCookie(t *testing.T) {
	store := NewInMemoryStore()
	seedToken(t, store, "tok-123", "elder-1", true)
	g := New(store, prodPolicy, "elder_session", 7*24*time.Hour)

	r := httptest.NewRequest("GET", "/?token=tok-123&userId=elder-1", nil)
	d := g.Authorize(context.Background(), r)
	if d.Status != StatusValid {
		t.Fatalf("Status = %q, want valid (reason %q)", d.Status, d.Reason)
	}
	if d.Source != "token" {
		t.Errorf("Source = %q, want token", d.Source)
	}
	if d.SetCookie == nil {
		t.Fatal("valid token decision should set a session cookie")
	}
	if d.SetCookie.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Errorf("cookie MaxAge = %d, want 7 days", d.SetCookie.MaxAge)
	}
	if !d.SetCookie.Secure || d.SetCookie.SameSite != http.SameSiteStrictMode {
		t.Error("session cookie must be secure with strict same-site")
	}
}

func TestProdRejectsUnknownOrInactiveToken(t *testing.T) {
	store := NewInMemoryStore()
	seedToken(t, store, "tok-off", "elder-1", false)
	g := New(store, prodPolicy, "elder_session", 7*24*time.Hour)

	for _, url := range []string{
		"/?token=tok-unknown&userId=elder-1",
		"/?token=tok-off&userId=elder-1",
		"/?token=tok-off&userId=elder-2",
	} {
		r := httptest.NewRequest("GET", url, nil)
		d := g.Authorize(context.Background(), r)
		if d.Status != StatusInvalid {
			t.Errorf("Authorize(%s) = %q, want invalid", url, d.Status)
		}
	}
}

func TestNonProdAlwaysValid(t *testing.T) {
	store := &countingStore{Store: NewInMemoryStore()}
	g := New(store, devPolicy, "elder_session", 7*24*time.Hour)

	r := httptest.NewRequest("GET", "/", nil)
	d := g.Authorize(context.Background(), r)
	if d.Status != StatusValid {
		t.Fatalf("Status = %q, want valid", d.Status)
	}
	if d.Source != "bypass" {
		t.Errorf("Source = %q, want bypass", d.Source)
	}
	if store.lookups != 0 {
		t.Errorf("store lookups = %d, want 0", store.lookups)
	}

	r = httptest.NewRequest("GET", "/?userId=elder-9", nil)
	d = g.Authorize(context.Background(), r)
	if d.ElderID != "elder-9" {
		t.Errorf("ElderID = %q, want elder-9 from query", d.ElderID)
	}
}

type failingStore struct{ Store }

func (failingStore) LookupToken(context.Context, string, string) (TokenRecord, error) {
	return TokenRecord{}, errors.New("connection reset")
}

func TestLookupErrorIsInvalid(t *testing.T) {
	g := New(failingStore{NewInMemoryStore()}, prodPolicy, "elder_session", 7*24*time.Hour)

	r := httptest.NewRequest("GET", "/?token=tok&userId=elder-1", nil)
	d := g.Authorize(context.Background(), r)
	if d.Status != StatusInvalid {
		t.Fatalf("Status = %q, want invalid", d.Status)
	}
	if d.Reason == "" {
		t.Error("lookup error should surface a reason")
	}
}
