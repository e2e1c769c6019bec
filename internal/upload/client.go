package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/productphoto/internal/models"
)

var (
	ErrUpload   = errors.New("upload failed")
	ErrNotFound = errors.New("file not found")
)

// Error is a failed call to the upload server.
// StatusCode is zero when the request never got an answer.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upload failed: %v", e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("upload failed: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upload failed: HTTP %d", e.StatusCode)
}

func (e *Error) Is(target error) bool {
	return target == ErrUpload
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client calls the product upload API served by `productphoto serve`.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Put satisfies the pipeline sink: it uploads data under filename and
// returns the public location.
func (c *Client) Put(ctx context.Context, filename string, data []byte) (string, error) {
	return c.Upload(ctx, data, filename)
}

// Upload posts the image as multipart form data and returns its url, or its path
// when the server did not report a url.
func (c *Client) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.WriteField("filename", filename); err != nil {
		return "", fmt.Errorf("failed to write filename field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/upload", body)
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result models.UploadResult
	if err := c.do(req, &result); err != nil {
		return "", err
	}

	if result.URL != "" {
		return result.URL, nil
	}
	return result.Path, nil
}

// List returns every stored product image.
func (c *Client) List(ctx context.Context) (*models.FileList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/upload/list", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}

	var result models.FileList
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Info returns metadata for a single stored image.
func (c *Client) Info(ctx context.Context, filename string) (*models.FileDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/upload/"+url.PathEscape(filename), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}

	var result models.FileDetail
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes a stored image.
func (c *Client) Delete(ctx context.Context, filename string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/api/upload/"+url.PathEscape(filename), nil)
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		var errResp models.ErrorResponse
		message := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			message = errResp.Error
		}
		uploadErr := &Error{StatusCode: resp.StatusCode, Message: message}
		if resp.StatusCode == http.StatusNotFound {
			uploadErr.Err = ErrNotFound
		}
		return uploadErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response body: %w", err)}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
