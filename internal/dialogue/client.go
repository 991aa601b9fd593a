package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/fault"
)

// FallbackReply is returned when the webhook answers 2xx without the
// expected output field. An unhelpful reply is still a reply.
const FallbackReply = "Sorry, I couldn't process your request."

// Request is the payload posted to the workflow webhook.
type Request struct {
	Query   string `json:"query"`
	ElderID string `json:"elderId"`
}

// Client forwards recognized text to the workflow-automation webhook and
// returns the reply string.
type Client struct {
	defaultURL string
	client     *http.Client
}

func NewClient(defaultURL string) *Client {
	return &Client{
		defaultURL: strings.TrimSpace(defaultURL),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// GetReply posts the query. An explicit overrideURL takes precedence over
// the environment default.
func (c *Client) GetReply(ctx context.Context, query, elderID, overrideURL string) (string, error) {
	url := c.defaultURL
	if strings.TrimSpace(overrideURL) != "" {
		url = strings.TrimSpace(overrideURL)
	}
	if url == "" {
		return "", fault.New(fault.KindDialogue, "no webhook URL configured")
	}

	payload, err := json.Marshal(Request{Query: query, ElderID: elderID})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.KindDialogue, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		detail := strings.TrimSpace(string(body))
		if detail == "" {
			detail = res.Status
		}
		return "", fault.New(fault.KindDialogue, detail).
			WithRetryable(fault.IsRetryableHTTPStatus(res.StatusCode))
	}

	var parsed struct {
		Output string `json:"output"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return FallbackReply, nil
	}
	if strings.TrimSpace(parsed.Output) == "" {
		return FallbackReply, nil
	}
	return parsed.Output, nil
}
