package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/assetcache"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/config"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/env"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/gate"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/history"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/observability"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/protocol"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/session"
)

// Orchestrator drives one websocket connection worth of conversation.
type Orchestrator interface {
	RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error
}

// Preferences persists per-elder settings the page can change.
type Preferences interface {
	EnginePreference(ctx context.Context, elderID string) (string, error)
	SaveEnginePreference(ctx context.Context, elderID, engine string) error
}

type Server struct {
	cfg          config.Config
	envcfg       env.Config
	gate         *gate.Gate
	prefs        Preferences
	sessions     *session.Manager
	orchestrator Orchestrator
	cache        *assetcache.Worker
	history      history.Store
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
}

func New(
	cfg config.Config,
	envcfg env.Config,
	accessGate *gate.Gate,
	prefs Preferences,
	sessions *session.Manager,
	orchestrator Orchestrator,
	cache *assetcache.Worker,
	historyStore history.Store,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:          cfg,
		envcfg:       envcfg,
		gate:         accessGate,
		prefs:        prefs,
		sessions:     sessions,
		orchestrator: orchestrator,
		cache:        cache,
		history:      historyStore,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin pages may drive a mic session unless
				// explicitly opened up for development.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// NewFetcher exposes the embedded UI as a cache source for wiring in main.
func NewFetcher() (assetcache.Fetcher, error) {
	return newFSFetcher()
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleEntry)
	for _, p := range Manifest() {
		if p == "/" {
			continue
		}
		r.Get(p, s.handleAsset)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/voice/ws", s.handleVoiceWS)
	r.Get("/v1/history", s.handleHistory)
	r.Get("/v1/preferences/engine", s.handleGetEnginePreference)
	r.Put("/v1/preferences/engine", s.handleSetEnginePreference)

	return r
}

// handleEntry gates the access link and serves the voice page. The outcome
// of one page load is terminal: either the page with a session cookie set,
// or a denial with the reason.
func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	decision := s.gate.Authorize(r.Context(), r)
	s.metrics.GateDecisions.WithLabelValues(string(decision.Status), decision.Source).Inc()

	if decision.Status != gate.StatusValid {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		_ = deniedPage.Execute(w, map[string]string{"Reason": decision.Reason})
		return
	}
	if decision.SetCookie != nil {
		http.SetCookie(w, decision.SetCookie)
	}
	s.serveFromCache(w, r, "/")
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	s.serveFromCache(w, r, r.URL.Path)
}

func (s *Server) serveFromCache(w http.ResponseWriter, r *http.Request, path string) {
	data, contentType, err := s.cache.Serve(r.Context(), path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"environment": string(s.envcfg.Environment),
		"store_mode":  s.storeMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.cache.Cached("/") {
		respondError(w, http.StatusServiceUnavailable, "cache_not_primed", "asset cache install has not completed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"cache_version": s.cache.Version(),
	})
}

// handleHistory returns recent conversation turns for the gated elder so
// the page can restore the chat on reload.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	decision := s.gate.Authorize(r.Context(), r)
	if decision.Status != gate.StatusValid {
		respondError(w, http.StatusUnauthorized, "not_authorized", decision.Reason)
		return
	}
	turns, err := s.history.RecentTurns(r.Context(), decision.ElderID, 50)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
		return
	}
	if turns == nil {
		turns = []history.Turn{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

// Engine preference handlers back the voice settings toggle. The choice
// only takes effect where the environment policy allows overrides.
func (s *Server) handleGetEnginePreference(w http.ResponseWriter, r *http.Request) {
	decision := s.gate.Authorize(r.Context(), r)
	if decision.Status != gate.StatusValid {
		respondError(w, http.StatusUnauthorized, "not_authorized", decision.Reason)
		return
	}
	engine, err := s.prefs.EnginePreference(r.Context(), decision.ElderID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "preference_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"engine": engine})
}

func (s *Server) handleSetEnginePreference(w http.ResponseWriter, r *http.Request) {
	decision := s.gate.Authorize(r.Context(), r)
	if decision.Status != gate.StatusValid {
		respondError(w, http.StatusUnauthorized, "not_authorized", decision.Reason)
		return
	}
	var req struct {
		Engine string `json:"engine"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	engine := strings.ToLower(strings.TrimSpace(req.Engine))
	switch engine {
	case "remote", "local":
	default:
		respondError(w, http.StatusBadRequest, "invalid_engine", "engine must be remote or local")
		return
	}
	if err := s.prefs.SaveEnginePreference(r.Context(), decision.ElderID, engine); err != nil {
		respondError(w, http.StatusInternalServerError, "preference_not_saved", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"engine": engine})
}

func (s *Server) handleVoiceWS(w http.ResponseWriter, r *http.Request) {
	decision := s.gate.Authorize(r.Context(), r)
	if decision.Status != gate.StatusValid {
		respondError(w, http.StatusUnauthorized, "not_authorized", decision.Reason)
		return
	}
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sess := s.sessions.Create(decision.ElderID, decision.Source)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	defer func() {
		_, _ = s.sessions.End(sess.ID)
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
		s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		_ = s.orchestrator.RunConnection(ctx, sess, inbound, outbound)
	}()

	// Clear-cache acknowledgements are broadcast to every open page, not
	// just the one that asked.
	cleared := s.cache.Subscribe()
	defer s.cache.Unsubscribe(cleared)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			var msg any
			select {
			case <-ctx.Done():
				return
			case ack := <-cleared:
				msg = ack
			case m, ok := <-outbound:
				if !ok {
					return
				}
				msg = m
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				return
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err := s.sessions.Touch(sess.ID); err != nil {
			break
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sess.ID,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				// Writes stay single-threaded; drop when saturated.
			}
			continue
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) storeMode() string {
	if s.cfg.DatabaseURL != "" {
		return "postgres"
	}
	return "in-memory"
}
