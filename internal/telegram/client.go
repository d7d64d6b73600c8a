package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the production Telegram Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// pollSlack is added on top of the long-poll window so the server can close
// an empty window and respond before the client-side timeout fires.
const pollSlack = 10 * time.Second

// NewHTTPClient returns an http.Client sized for long polling. getUpdates
// asks the server to hold the connection open for pollTimeout, so the
// client-side timeout must outlive the whole window; a client shared with
// shorter-lived requests would kill every idle poll midway.
func NewHTTPClient(pollTimeout time.Duration) *http.Client {
	return &http.Client{Timeout: pollTimeout + pollSlack}
}

// Client is a minimal Telegram Bot API client covering what the bot needs:
// sending messages and long-polling for updates.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for the given bot token. baseURL is DefaultBaseURL in
// production and an httptest server in tests.
func New(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Update is one incoming event from getUpdates. Only message updates are used.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      Chat   `json:"chat"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	Parameters  *responseParams `json:"parameters"`
}

type responseParams struct {
	RetryAfter int `json:"retry_after"`
}

// SendMessage delivers a text message to the given chat. A 429 response is
// retried once after the server-indicated delay (same handling as any webhook
// sink that rate limits).
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}

	resp, retryAfter, err := c.post(ctx, "sendMessage", payload)
	if err != nil {
		return err
	}
	if resp.OK {
		return nil
	}

	if retryAfter > 0 {
		c.logger.Warn("telegram rate limited, retrying",
			"chat_id", chatID,
			"retry_after", retryAfter,
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("send to %d: %w", chatID, ctx.Err())
		case <-time.After(retryAfter):
		}

		resp, _, err = c.post(ctx, "sendMessage", payload)
		if err != nil {
			return fmt.Errorf("send to %d (retry): %w", chatID, err)
		}
		if resp.OK {
			return nil
		}
	}

	return fmt.Errorf("send to %d: telegram: %s", chatID, resp.Description)
}

// GetUpdates long-polls for incoming updates after the given offset. timeout
// is the server-side long-poll window.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := map[string]any{
		"offset":  offset,
		"timeout": int(timeout.Seconds()),
	}

	resp, _, err := c.post(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("getUpdates: telegram: %s", resp.Description)
	}

	var updates []Update
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("getUpdates: decode result: %w", err)
	}
	return updates, nil
}

func (c *Client) post(ctx context.Context, method string, payload map[string]any) (*apiResponse, time.Duration, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("telegram %s: marshal payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("telegram %s: %w", method, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var resp apiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, 0, fmt.Errorf("telegram %s: HTTP %d: decode response: %w", method, httpResp.StatusCode, err)
	}

	var retryAfter time.Duration
	if resp.Parameters != nil && resp.Parameters.RetryAfter > 0 {
		retryAfter = time.Duration(resp.Parameters.RetryAfter) * time.Second
	}
	return &resp, retryAfter, nil
}
