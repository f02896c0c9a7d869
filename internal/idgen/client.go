package idgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client asks a remote id-service for ids.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	url := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		url:  url + "/new-id",
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) NextID(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build id request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call ID service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ID service returned non-200 status: %s", resp.Status)
	}
	var data struct {
		ID uint64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("failed to decode ID service response: %w", err)
	}
	if data.ID == 0 {
		return 0, fmt.Errorf("ID service returned an empty id")
	}
	return data.ID, nil
}
