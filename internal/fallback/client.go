// Package fallback calls the out-of-process detection service used when every
// in-process strategy has been exhausted.
package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrUnavailable means the service could not be reached or timed out.
	// This is infrastructure degradation, distinct from an ordinary miss.
	ErrUnavailable = errors.New("fallback service unavailable")

	// ErrNoCode means the service answered and found nothing.
	ErrNoCode = errors.New("fallback service found no code")
)

// Client is the capability interface for remote last-resort decoding, so the
// network client and test stubs are interchangeable.
type Client interface {
	TryDecode(ctx context.Context, image []byte, filename string) (string, error)
}

// HTTPClient posts the original compressed image as multipart form data to
// the detection endpoint and parses its JSON (or plain text) answer.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type fallbackResponse struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// TryDecode sends the image and returns decoded content, ErrNoCode, or
// ErrUnavailable. The client timeout bounds the whole round trip.
func (c *HTTPClient) TryDecode(ctx context.Context, image []byte, filename string) (string, error) {
	if filename == "" {
		filename = "scan.jpg"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(image)); err != nil {
		return "", fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	var parsed fallbackResponse
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Content != "" {
			return parsed.Content, nil
		}
		if parsed.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrNoCode, parsed.Error)
		}
		return "", ErrNoCode
	}

	// The service historically answered some requests with the bare content.
	text := strings.TrimSpace(string(raw))
	if text != "" && !strings.Contains(strings.ToLower(text), "error") {
		return text, nil
	}
	return "", ErrNoCode
}
