package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client posts human-readable messages to the chat bridge. Delivery is best
// effort: coordination state never depends on a notification landing.
type Client struct {
	baseURL    string
	channel    string
	httpClient *http.Client
}

func NewClient(baseURL, channel string) *Client {
	return &Client{
		baseURL: baseURL,
		channel: channel,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// Send posts one message to the bridge's /send_message endpoint.
func (c *Client) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		Channel: c.channel,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send_message", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}
	return nil
}
