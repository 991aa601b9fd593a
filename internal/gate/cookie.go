package gate

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SessionCookie is the JSON payload held in the access cookie. Expiry is
// enforced by the cookie lifetime itself, not re-checked from Timestamp.
type SessionCookie struct {
	UserID    string `json:"userId"`
	Token     string `json:"token"`
	Timestamp int64  `json:"timestamp"`
}

// EncodeCookie builds the session cookie for a validated elder.
// Base64 keeps the JSON value inside the cookie-octet grammar.
func EncodeCookie(name, userID, token string, lifetime time.Duration) (*http.Cookie, error) {
	payload, err := json.Marshal(SessionCookie{
		UserID:    userID,
		Token:     token,
		Timestamp: time.Now().UTC().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal session cookie: %w", err)
	}
	return &http.Cookie{
		Name:     name,
		Value:    base64.URLEncoding.EncodeToString(payload),
		Path:     "/",
		MaxAge:   int(lifetime / time.Second),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}, nil
}

// DecodeCookie parses the session cookie from a request. A cookie that is
// missing, unreadable, or lacks a user id yields ok=false; the caller then
// falls through to token validation.
func DecodeCookie(r *http.Request, name string) (SessionCookie, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return SessionCookie{}, false
	}

	raw, err := base64.URLEncoding.DecodeString(c.Value)
	if err != nil {
		// Older clients stored bare JSON; accept it for continuity.
		raw = []byte(c.Value)
	}

	var session SessionCookie
	if err := json.Unmarshal(raw, &session); err != nil {
		return SessionCookie{}, false
	}
	if strings.TrimSpace(session.UserID) == "" {
		return SessionCookie{}, false
	}
	return session, true
}

// ExpireCookie returns a cookie that clears the session on the client.
func ExpireCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
