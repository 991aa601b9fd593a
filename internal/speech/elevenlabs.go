package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/fault"
)

// ElevenLabsConfig configures the remote speech provider.
type ElevenLabsConfig struct {
	APIKey          string
	BaseURL         string
	STTModelID      string
	TTSModelID      string
	TTSVoiceID      string
	Stability       float64
	SimilarityBoost float64
}

// ElevenLabsClient calls the ElevenLabs REST endpoints for batch
// speech-to-text and text-to-speech.
type ElevenLabsClient struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.STTModelID) == "" {
		cfg.STTModelID = "scribe_v1"
	}
	if strings.TrimSpace(cfg.TTSModelID) == "" {
		cfg.TTSModelID = "eleven_multilingual_v2"
	}
	if cfg.Stability <= 0 {
		cfg.Stability = 0.5
	}
	if cfg.SimilarityBoost <= 0 {
		cfg.SimilarityBoost = 0.5
	}
	return &ElevenLabsClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *ElevenLabsClient) Engine() string { return "remote" }

// Transcribe posts the recording as a multipart form and returns the
// recognized text. Empty recognized text is a valid result.
func (c *ElevenLabsClient) Transcribe(ctx context.Context, data []byte, mime string) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	filename := "recording.wav"
	if strings.Contains(mime, "webm") {
		filename = "recording.webm"
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write audio to form: %w", err)
	}
	if err := form.WriteField("model_id", c.cfg.STTModelID); err != nil {
		return "", fmt.Errorf("write model_id field: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/speech-to-text", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	res, err := c.client.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.KindTranscription, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fault.New(fault.KindTranscription, providerDetail(res)).
			WithRetryable(fault.IsRetryableHTTPStatus(res.StatusCode))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fault.Wrap(fault.KindTranscription, fmt.Errorf("decode response: %w", err))
	}
	return parsed.Text, nil
}

// Synthesize posts reply text and returns the binary audio body. URLs in
// the text are rewritten to the spoken placeholder before sending.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string) (Audio, error) {
	payload, err := json.Marshal(map[string]any{
		"text":     PrepareForSpeech(text),
		"model_id": c.cfg.TTSModelID,
		"voice_settings": map[string]any{
			"stability":        c.cfg.Stability,
			"similarity_boost": c.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return Audio{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/text-to-speech/"+url.PathEscape(c.cfg.TTSVoiceID),
		bytes.NewReader(payload))
	if err != nil {
		return Audio{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	res, err := c.client.Do(req)
	if err != nil {
		return Audio{}, fault.Wrap(fault.KindSynthesis, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Audio{}, fault.New(fault.KindSynthesis, providerDetail(res)).
			WithRetryable(fault.IsRetryableHTTPStatus(res.StatusCode))
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return Audio{}, fault.Wrap(fault.KindSynthesis, fmt.Errorf("read audio body: %w", err))
	}

	mime := res.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	return Audio{Data: audio, MIME: mime}, nil
}

// providerDetail extracts the provider's detail message from an error
// response, falling back to the HTTP status text.
func providerDetail(res *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))

	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Detail) > 0 {
		var s string
		if err := json.Unmarshal(parsed.Detail, &s); err == nil && s != "" {
			return s
		}
		return string(parsed.Detail)
	}
	return res.Status
}
