package gate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/env"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/fault"
)

type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
)

// Decision is the terminal outcome of gating one page load.
type Decision struct {
	Status  Status
	ElderID string
	// Source records how access was granted: cookie, token, or bypass.
	Source string
	// SetCookie is non-nil when a fresh session cookie should be written.
	SetCookie *http.Cookie
	// Reason carries the user-facing message when Status is invalid.
	Reason string
}

// Gate authorizes access to the voice UI per caregiver-issued link or an
// existing session cookie.
type Gate struct {
	store          Store
	policy         env.Policy
	cookieName     string
	cookieLifetime time.Duration
}

func New(store Store, policy env.Policy, cookieName string, cookieLifetime time.Duration) *Gate {
	if cookieName == "" {
		cookieName = "elder_session"
	}
	if cookieLifetime <= 0 {
		cookieLifetime = 7 * 24 * time.Hour
	}
	return &Gate{
		store:          store,
		policy:         policy,
		cookieName:     cookieName,
		cookieLifetime: cookieLifetime,
	}
}

func (g *Gate) CookieName() string { return g.cookieName }

// Authorize decides access for one request. A parseable session cookie wins
// without touching the store; otherwise token validation applies only where
// the environment policy requires it.
func (g *Gate) Authorize(ctx context.Context, r *http.Request) Decision {
	if session, ok := DecodeCookie(r, g.cookieName); ok {
		return Decision{Status: StatusValid, ElderID: session.UserID, Source: "cookie"}
	}

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	elderID := strings.TrimSpace(r.URL.Query().Get("userId"))

	if !g.policy.RequireToken {
		if elderID == "" {
			elderID = "dev"
		}
		return Decision{Status: StatusValid, ElderID: elderID, Source: "bypass"}
	}

	if token == "" || elderID == "" {
		return Decision{
			Status: StatusInvalid,
			Reason: "Enlace de acceso incompleto. Pide a tu familiar un nuevo enlace.",
		}
	}

	_, err := g.store.LookupToken(ctx, token, elderID)
	if errors.Is(err, ErrNotFound) {
		return Decision{
			Status: StatusInvalid,
			Reason: "El enlace de acceso no es válido o fue desactivado.",
		}
	}
	if err != nil {
		return Decision{
			Status: StatusInvalid,
			Reason: fault.Wrap(fault.KindAuth, err).Detail,
		}
	}

	cookie, err := EncodeCookie(g.cookieName, elderID, token, g.cookieLifetime)
	if err != nil {
		return Decision{
			Status: StatusInvalid,
			Reason: fault.Wrap(fault.KindAuth, err).Detail,
		}
	}

	return Decision{
		Status:    StatusValid,
		ElderID:   elderID,
		Source:    "token",
		SetCookie: cookie,
	}
}
