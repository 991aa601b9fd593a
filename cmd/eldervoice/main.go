package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/assetcache"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/config"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/dialogue"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/env"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/gate"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/history"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/httpapi"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/observability"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/orchestrator"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/recording"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/session"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/speech"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	envcfg, err := env.Resolve(cfg.PublicHostname, cfg.EndpointsFile)
	if err != nil {
		log.Fatalf("environment resolution failed: %v", err)
	}
	log.Printf("environment: %s (token required: %v)", envcfg.Environment, envcfg.Policy.RequireToken)

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	tokens, err := gate.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("token store init failed: %v", err)
	}
	defer tokens.Close()

	turns, err := history.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("history store init failed: %v", err)
	}
	defer turns.Close()

	accessGate := gate.New(tokens, envcfg.Policy, cfg.SessionCookieName, cfg.SessionCookieLifetime)

	if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
		log.Fatalf("ELEVENLABS_API_KEY is required for speech-to-text")
	}
	elevenlabs := speech.NewElevenLabsClient(speech.ElevenLabsConfig{
		APIKey:          cfg.ElevenLabsAPIKey,
		BaseURL:         cfg.ElevenLabsBaseURL,
		STTModelID:      cfg.ElevenLabsSTTModel,
		TTSModelID:      cfg.ElevenLabsTTSModel,
		TTSVoiceID:      cfg.ElevenLabsTTSVoice,
		Stability:       cfg.TTSStability,
		SimilarityBoost: cfg.TTSSimilarityBoost,
	})

	var local speech.Synthesizer
	if l, err := speech.NewLocalSynthesizer(speech.LocalConfig{
		CLI:        cfg.LocalSynthCLI,
		Voice:      cfg.LocalSynthVoice,
		SampleRate: cfg.LocalSynthSampleRate,
	}); err != nil {
		log.Printf("local synthesizer unavailable: %v", err)
	} else {
		local = l
	}

	synths := speech.NewSelector(elevenlabs, local, tokens, envcfg.Policy)

	dialogueClient := dialogue.NewClient(envcfg.Endpoints.WebhookURL)

	fetcher, err := httpapi.NewFetcher()
	if err != nil {
		log.Fatalf("embedded assets unavailable: %v", err)
	}
	cache := assetcache.New(cfg.AssetCacheVersion, httpapi.Manifest(), fetcher, metrics)
	if err := cache.Install(ctx); err != nil {
		log.Fatalf("asset cache install failed: %v", err)
	}
	if purged := cache.Activate(); len(purged) > 0 {
		log.Printf("purged stale asset caches: %v", purged)
	}

	var newSource orchestrator.SourceFactory
	if cfg.LocalCapture {
		newSource = func() recording.Source {
			return recording.NewMicSource(cfg.MicSampleRate, cfg.MicFramesPerBuffer)
		}
		log.Printf("capture: device microphone (%d Hz)", cfg.MicSampleRate)
	} else {
		log.Printf("capture: browser audio over websocket")
	}

	sessions := session.NewManager(10 * time.Minute)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	conductor := orchestrator.New(
		elevenlabs,
		dialogueClient,
		synths,
		turns,
		cache,
		metrics,
		newSource,
		cfg.MicSampleRate,
		cfg.TurnTimeout,
		cfg.WebhookURL,
	)

	api := httpapi.New(cfg, envcfg, accessGate, tokens, sessions, conductor, cache, turns, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
