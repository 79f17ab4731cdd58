package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBaseURL = "https://api.telnyx.com/v2/calls"

	// Outbound commands must never hold a webhook response hostage;
	// a slow provider means the command fails and the handler degrades.
	defaultTimeout = 5 * time.Second

	defaultVoice    = "female"
	defaultLanguage = "en-US"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client issues Call Control commands over HTTP.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ CommandClient = (*Client)(nil)

// NewClient creates a call-control client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CommandError reports a command the provider rejected.
type CommandError struct {
	Action     string
	StatusCode int
	Body       string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("call control %s failed: status %d: %s", e.Action, e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, callID, action string, payload map[string]any, state *ClientState) error {
	if state != nil {
		token, err := EncodeClientState(*state)
		if err != nil {
			return fmt.Errorf("encode client state: %w", err)
		}
		payload["client_state"] = token
	}
	payload["command_id"] = uuid.New().String()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", action, err)
	}

	url := fmt.Sprintf("%s/%s/actions/%s", c.baseURL, callID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", action, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &CommandError{Action: action, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// Answer answers an incoming call.
func (c *Client) Answer(ctx context.Context, callID string, state *ClientState) error {
	return c.do(ctx, callID, "answer", map[string]any{}, state)
}

// Speak plays text-to-speech on the call.
func (c *Client) Speak(ctx context.Context, callID string, req SpeakRequest, state *ClientState) error {
	payload := map[string]any{
		"payload":      req.Text,
		"payload_type": "text",
		"voice":        orDefault(req.Voice, defaultVoice),
		"language":     orDefault(req.Language, defaultLanguage),
	}
	return c.do(ctx, callID, "speak", payload, state)
}

// GatherSpeak plays a spoken prompt and gathers DTMF digits.
func (c *Client) GatherSpeak(ctx context.Context, callID string, req GatherSpeakRequest, state *ClientState) error {
	payload := map[string]any{
		"payload":           req.Text,
		"payload_type":      "text",
		"voice":             orDefault(req.Voice, defaultVoice),
		"language":          orDefault(req.Language, defaultLanguage),
		"valid_digits":      req.ValidDigits,
		"max":               req.MaxDigits,
		"timeout_millis":    req.Timeout.Milliseconds(),
		"terminating_digit": "#",
	}
	return c.do(ctx, callID, "gather_using_speak", payload, state)
}

// GatherAudio plays an audio file and gathers DTMF digits.
func (c *Client) GatherAudio(ctx context.Context, callID string, req GatherAudioRequest, state *ClientState) error {
	payload := map[string]any{
		"audio_url":         req.AudioURL,
		"valid_digits":      req.ValidDigits,
		"max":               req.MaxDigits,
		"timeout_millis":    req.Timeout.Milliseconds(),
		"terminating_digit": "#",
	}
	return c.do(ctx, callID, "gather_using_audio", payload, state)
}

// Transfer hands the call to another number.
func (c *Client) Transfer(ctx context.Context, callID string, req TransferRequest, state *ClientState) error {
	payload := map[string]any{
		"to":   req.To,
		"from": req.From,
	}
	return c.do(ctx, callID, "transfer", payload, state)
}

// Hangup terminates the call.
func (c *Client) Hangup(ctx context.Context, callID string, state *ClientState) error {
	return c.do(ctx, callID, "hangup", map[string]any{}, state)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
