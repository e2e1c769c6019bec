package removal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultURL = "https://api.remove.bg/v1.0/removebg"

// placeholderKey is what sample .env files ship with; treat it as unset.
const placeholderKey = "YOUR_API_KEY_HERE"

var ErrNoCredentials = errors.New("no API key configured for background removal")

// Remover takes encoded image bytes and returns encoded image bytes with the
// background made transparent.
type Remover interface {
	Remove(ctx context.Context, image []byte) ([]byte, error)
}

var (
	_ Remover = (*Client)(nil)
	_ Remover = Passthrough{}
)

// APIError is a non-2xx answer from the removal service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("background removal API returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to a remove.bg compatible endpoint.
type Client struct {
	APIKey     string
	URL        string
	HTTPClient *http.Client
}

func NewClient(apiKey, url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		APIKey: apiKey,
		URL:    url,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether the client has a usable API key.
func (c *Client) Configured() bool {
	apiKey := strings.TrimSpace(c.APIKey)
	return apiKey != "" && apiKey != placeholderKey
}

func (c *Client) Remove(ctx context.Context, image []byte) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNoCredentials
	}
	apiKey := strings.TrimSpace(c.APIKey)

	requestBody, err := json.Marshal(map[string]string{
		"image_file_b64": base64.StdEncoding.EncodeToString(image),
		"size":           "auto",
		"format":         "png",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", apiKey)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("background removal API returned an empty image")
	}

	return body, nil
}

// Passthrough leaves images untouched. Useful when the backdrop is already clean.
type Passthrough struct{}

func (Passthrough) Remove(_ context.Context, image []byte) ([]byte, error) {
	return image, nil
}
