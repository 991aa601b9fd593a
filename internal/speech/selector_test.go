package speech

import (
	"context"
	"testing"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/env"
)

type staticSynth struct{ engine string }

func (s staticSynth) Synthesize(context.Context, string) (Audio, error) {
	return Audio{Data: []byte(s.engine), MIME: "audio/wav"}, nil
}
func (s staticSynth) Engine() string { return s.engine }

type staticPrefs map[string]string

func (p staticPrefs) EnginePreference(_ context.Context, elderID string) (string, error) {
	return p[elderID], nil
}

func TestSelectorForcesRemoteWhenOverrideDisallowed(t *testing.T) {
	remote := staticSynth{"remote"}
	local := staticSynth{"local"}
	sel := NewSelector(remote, local, staticPrefs{"elder-1": "local"}, env.Policy{AllowEngineOverride: false})

	if got := sel.Pick(context.Background(), "elder-1"); got.Engine() != "remote" {
		t.Errorf("engine = %q, want remote despite stored local preference", got.Engine())
	}
}

func TestSelectorHonorsPreferenceElsewhere(t *testing.T) {
	remote := staticSynth{"remote"}
	local := staticSynth{"local"}
	prefs := staticPrefs{"elder-remote": "remote", "elder-local": "local"}
	sel := NewSelector(remote, local, prefs, env.Policy{AllowEngineOverride: true})

	if got := sel.Pick(context.Background(), "elder-remote"); got.Engine() != "remote" {
		t.Errorf("engine = %q, want remote per preference", got.Engine())
	}
	if got := sel.Pick(context.Background(), "elder-local"); got.Engine() != "local" {
		t.Errorf("engine = %q, want local per preference", got.Engine())
	}
	// Unset preference defaults to local/offline.
	if got := sel.Pick(context.Background(), "elder-unset"); got.Engine() != "local" {
		t.Errorf("engine = %q, want local default", got.Engine())
	}
}

func TestSelectorFallsBackWhenEngineMissing(t *testing.T) {
	remote := staticSynth{"remote"}
	sel := NewSelector(remote, nil, nil, env.Policy{AllowEngineOverride: true})
	if got := sel.Pick(context.Background(), "elder-1"); got.Engine() != "remote" {
		t.Errorf("engine = %q, want remote when local is unavailable", got.Engine())
	}

	local := staticSynth{"local"}
	sel = NewSelector(nil, local, nil, env.Policy{AllowEngineOverride: false})
	if got := sel.Pick(context.Background(), "elder-1"); got.Engine() != "local" {
		t.Errorf("engine = %q, want local when remote is unavailable", got.Engine())
	}
}
