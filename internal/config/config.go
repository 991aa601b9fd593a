package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the elder voice service.
type Config struct {
	BindAddr         string
	PublicHostname   string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	EndpointsFile string
	WebhookURL    string

	ElevenLabsAPIKey      string
	ElevenLabsBaseURL     string
	ElevenLabsSTTModel    string
	ElevenLabsTTSModel    string
	ElevenLabsTTSVoice    string
	TTSStability          float64
	TTSSimilarityBoost    float64
	SynthesisEngine       string
	LocalSynthCLI         string
	LocalSynthVoice       string
	LocalSynthSampleRate  int
	MicSampleRate         int
	MicFramesPerBuffer    int
	LocalCapture          bool
	TurnTimeout           time.Duration
	SessionCookieName     string
	SessionCookieLifetime time.Duration

	AssetCacheVersion string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		PublicHostname:   trimmedEnv("APP_PUBLIC_HOSTNAME"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "eldervoice"),
		AllowAnyOrigin:   false,
		EndpointsFile:    trimmedEnv("APP_ENDPOINTS_FILE"),
		WebhookURL:       trimmedEnv("DIALOGUE_WEBHOOK_URL"),

		ElevenLabsAPIKey:  trimmedEnv("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		// Batch STT endpoint; the realtime scribe models need a websocket flow
		// this service does not use.
		ElevenLabsSTTModel: envOrDefault("ELEVENLABS_STT_MODEL_ID", "scribe_v1"),
		ElevenLabsTTSModel: envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_multilingual_v2"),
		ElevenLabsTTSVoice: envOrDefault("ELEVENLABS_TTS_VOICE_ID", "4ClPfGRNxnfy7Zzp4OId"),
		TTSStability:       0.5,
		TTSSimilarityBoost: 0.5,

		SynthesisEngine:      envOrDefault("SYNTHESIS_ENGINE", "auto"),
		LocalSynthCLI:        envOrDefault("LOCAL_SYNTH_CLI", "espeak-ng"),
		LocalSynthVoice:      envOrDefault("LOCAL_SYNTH_VOICE", "es"),
		LocalSynthSampleRate: 22050,
		MicSampleRate:        16000,
		MicFramesPerBuffer:   512,
		LocalCapture:         false,

		SessionCookieName:     envOrDefault("SESSION_COOKIE_NAME", "elder_session"),
		SessionCookieLifetime: 7 * 24 * time.Hour,
		TurnTimeout:           60 * time.Second,
		ShutdownTimeout:       15 * time.Second,

		AssetCacheVersion: envOrDefault("ASSET_CACHE_VERSION", "elder-voice-link-v3"),

		DatabaseURL: trimmedEnv("DATABASE_URL"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnTimeout, err = durationFromEnv("APP_TURN_TIMEOUT", cfg.TurnTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionCookieLifetime, err = durationFromEnv("SESSION_COOKIE_LIFETIME", cfg.SessionCookieLifetime)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSStability, err = floatFromEnv("ELEVENLABS_TTS_STABILITY", cfg.TTSStability)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSSimilarityBoost, err = floatFromEnv("ELEVENLABS_TTS_SIMILARITY_BOOST", cfg.TTSSimilarityBoost)
	if err != nil {
		return Config{}, err
	}
	cfg.LocalSynthSampleRate, err = intFromEnv("LOCAL_SYNTH_SAMPLE_RATE", cfg.LocalSynthSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.MicSampleRate, err = intFromEnv("MIC_SAMPLE_RATE", cfg.MicSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.MicFramesPerBuffer, err = intFromEnv("MIC_FRAMES_PER_BUFFER", cfg.MicFramesPerBuffer)
	if err != nil {
		return Config{}, err
	}
	// Kiosk deployments capture from the device microphone instead of the
	// browser; requires a binary built with -tags portaudio.
	cfg.LocalCapture, err = boolFromEnv("APP_LOCAL_CAPTURE", cfg.LocalCapture)
	if err != nil {
		return Config{}, err
	}

	if cfg.TurnTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_TURN_TIMEOUT must be at least 5s")
	}
	if cfg.SessionCookieLifetime < time.Hour {
		return Config{}, fmt.Errorf("SESSION_COOKIE_LIFETIME must be at least 1h")
	}
	if cfg.TTSStability < 0 || cfg.TTSStability > 1 {
		return Config{}, fmt.Errorf("ELEVENLABS_TTS_STABILITY must be in [0,1]")
	}
	if cfg.TTSSimilarityBoost < 0 || cfg.TTSSimilarityBoost > 1 {
		return Config{}, fmt.Errorf("ELEVENLABS_TTS_SIMILARITY_BOOST must be in [0,1]")
	}
	if cfg.LocalSynthSampleRate <= 0 {
		return Config{}, fmt.Errorf("LOCAL_SYNTH_SAMPLE_RATE must be positive")
	}
	if cfg.MicSampleRate <= 0 {
		return Config{}, fmt.Errorf("MIC_SAMPLE_RATE must be positive")
	}
	if cfg.MicFramesPerBuffer <= 0 {
		return Config{}, fmt.Errorf("MIC_FRAMES_PER_BUFFER must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
