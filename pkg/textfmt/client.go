// Package textfmt is the client for the external text-formatting service.
// The service is best-effort: callers keep their prior text when a call fails.
package textfmt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client calls the hosted formatting endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a client with a bounded timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type formatRequest struct {
	Text string `json:"text"`
}

type formatResponse struct {
	Text string `json:"text"`
}

// Format sends free text and returns the reformatted version.
func (c *Client) Format(ctx context.Context, text string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("formatter not configured")
	}
	body, err := json.Marshal(formatRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("marshal format request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/format", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build format request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call formatter: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("formatter: unexpected status %d", resp.StatusCode)
	}
	var out formatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode formatter response: %w", err)
	}
	return out.Text, nil
}
