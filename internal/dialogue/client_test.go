package dialogue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/fault"
)

func TestGetReplyPostsQueryAndElderID(t *testing.T) {
	var got Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q, want application/json", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{"output": "Son las 3 de la tarde"})
	}))
	defer ts.Close()

	reply, err := NewClient(ts.URL).GetReply(context.Background(), "¿Qué hora es?", "elder-1", "")
	if err != nil {
		t.Fatalf("GetReply error = %v", err)
	}
	if reply != "Son las 3 de la tarde" {
		t.Errorf("reply = %q, want webhook output", reply)
	}
	if got.Query != "¿Qué hora es?" || got.ElderID != "elder-1" {
		t.Errorf("posted = %+v, want query and elderId", got)
	}
}

func TestGetReplyOverrideURLWins(t *testing.T) {
	defaultHit, overrideHit := 0, 0
	def := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		defaultHit++
		_ = json.NewEncoder(w).Encode(map[string]string{"output": "from default"})
	}))
	defer def.Close()
	override := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		overrideHit++
		_ = json.NewEncoder(w).Encode(map[string]string{"output": "from override"})
	}))
	defer override.Close()

	reply, err := NewClient(def.URL).GetReply(context.Background(), "hola", "elder-1", override.URL)
	if err != nil {
		t.Fatalf("GetReply error = %v", err)
	}
	if reply != "from override" {
		t.Errorf("reply = %q, want override endpoint response", reply)
	}
	if defaultHit != 0 || overrideHit != 1 {
		t.Errorf("hits = default %d / override %d, want 0/1", defaultHit, overrideHit)
	}
}

func TestGetReplyMissingOutputYieldsFallback(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"empty output", `{"output":""}`},
		{"not json", `hello`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			reply, err := NewClient(ts.URL).GetReply(context.Background(), "hola", "elder-1", "")
			if err != nil {
				t.Fatalf("2xx without output should not error, got %v", err)
			}
			if reply != FallbackReply {
				t.Errorf("reply = %q, want fallback", reply)
			}
		})
	}
}

func TestGetReplyNon2xxFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "workflow crashed", http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).GetReply(context.Background(), "hola", "elder-1", "")
	if err == nil {
		t.Fatal("GetReply should fail on non-2xx")
	}
	if fault.KindOf(err) != fault.KindDialogue {
		t.Errorf("kind = %q, want dialogue_failed", fault.KindOf(err))
	}
	if fault.DetailOf(err) == "" {
		t.Error("failure should carry the response detail")
	}
}

func TestGetReplyNoURLConfigured(t *testing.T) {
	if _, err := NewClient("").GetReply(context.Background(), "hola", "elder-1", ""); err == nil {
		t.Fatal("GetReply without any URL should fail")
	}
}
