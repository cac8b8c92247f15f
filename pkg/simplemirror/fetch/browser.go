package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultBrowserTimeout bounds a single render request
const DefaultBrowserTimeout = 60 * time.Second

// Renderer downloads a URL through a real browser and returns the payload as
// base64 text.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
}

// RemoteBrowser calls a headless browser service over HTTP.
// Request:  POST {endpoint} {"url": "..."}
// Response: 200 {"data": "<base64>"}
type RemoteBrowser struct {
	endpoint string
	client   *http.Client
	maxBytes int64
}

var _ Renderer = (*RemoteBrowser)(nil)

// NewRemoteBrowser creates a renderer for endpoint
func NewRemoteBrowser(endpoint string, timeout time.Duration) *RemoteBrowser {
	if timeout <= 0 {
		timeout = DefaultBrowserTimeout
	}
	return &RemoteBrowser{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		maxBytes: DefaultMaxBytes * 2,
	}
}

type renderRequest struct {
	URL string `json:"url"`
}

type renderResponse struct {
	Data  string `json:"data"`
	Error string `json:"error,omitempty"`
}

func (b *RemoteBrowser) Render(ctx context.Context, rawURL string) (string, error) {
	payload, err := json.Marshal(renderRequest{URL: rawURL})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("browser render: %w", err)
	}
	defer resp.Body.Close()

	body, err := ReadAllWithLimit(resp.Body, b.maxBytes)
	if err != nil {
		return "", fmt.Errorf("browser render: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("browser render: unexpected status %d", resp.StatusCode)
	}

	var out renderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("browser render: decode response: %w", err)
	}
	if out.Error != "" {
		return "", errors.New("browser render: " + out.Error)
	}
	return out.Data, nil
}
