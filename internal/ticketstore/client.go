package ticketstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spectrum-hq/spectrum/pkg/cerr"
)

// Remote is a ticket as the external tracker sees it. The registry mirrors
// only the coordination fields; title and body live here.
type Remote struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// Client provides read and status-update access to the external tracker.
type Client interface {
	GetTicket(ctx context.Context, id string) (*Remote, error)
	ListTickets(ctx context.Context) ([]*Remote, error)
	SetStatus(ctx context.Context, id, status string) error
}

// HTTPClient talks to the tracker's JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetTicket fetches one ticket.
func (c *HTTPClient) GetTicket(ctx context.Context, id string) (*Remote, error) {
	var remote Remote
	if err := c.do(ctx, http.MethodGet, "/tickets/"+id, nil, &remote); err != nil {
		return nil, err
	}
	return &remote, nil
}

// ListTickets fetches every ticket visible to the token.
func (c *HTTPClient) ListTickets(ctx context.Context) ([]*Remote, error) {
	var resp struct {
		Tickets []*Remote `json:"tickets"`
	}
	if err := c.do(ctx, http.MethodGet, "/tickets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tickets, nil
}

// SetStatus pushes a status change back to the tracker.
func (c *HTTPClient) SetStatus(ctx context.Context, id, status string) error {
	body := map[string]string{"status": status}
	return c.do(ctx, http.MethodPatch, "/tickets/"+id, body, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tracker request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("tracker has no ticket at %s", path), nil)
	case resp.StatusCode >= http.StatusBadRequest:
		return cerr.NewError(cerr.Internal, fmt.Sprintf("tracker returned status %d for %s %s", resp.StatusCode, method, path), nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode tracker response: %w", err)
		}
	}
	return nil
}
