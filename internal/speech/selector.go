package speech

import (
	"context"
	"strings"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/env"
)

// PreferenceReader reports an elder's stored synthesis engine preference
// ("remote", "local", or "" when unset).
type PreferenceReader interface {
	EnginePreference(ctx context.Context, elderID string) (string, error)
}

// Selector picks the synthesis engine per turn. Environments that disallow
// an override always get the remote engine; otherwise the elder's stored
// preference applies, defaulting to the local/offline engine.
type Selector struct {
	remote Synthesizer
	local  Synthesizer
	prefs  PreferenceReader
	policy env.Policy
}

func NewSelector(remote, local Synthesizer, prefs PreferenceReader, policy env.Policy) *Selector {
	return &Selector{remote: remote, local: local, prefs: prefs, policy: policy}
}

// Pick resolves the synthesizer for one elder. A missing local engine falls
// back to remote and the other way around, so a half-configured deployment
// still speaks.
func (s *Selector) Pick(ctx context.Context, elderID string) Synthesizer {
	if !s.policy.AllowEngineOverride {
		if s.remote != nil {
			return s.remote
		}
		return s.local
	}

	preference := ""
	if s.prefs != nil {
		if p, err := s.prefs.EnginePreference(ctx, elderID); err == nil {
			preference = strings.ToLower(strings.TrimSpace(p))
		}
	}

	switch preference {
	case "remote":
		if s.remote != nil {
			return s.remote
		}
		return s.local
	default:
		if s.local != nil {
			return s.local
		}
		return s.remote
	}
}
