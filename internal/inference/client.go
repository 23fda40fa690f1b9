package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrNotConfigured is returned when no inference base URL was provided.
// Handlers map it to a 500 so the misconfiguration is visible to the caller.
var ErrNotConfigured = errors.New("inference: base URL not configured")

// UpstreamError carries the inference service's non-2xx status and raw body.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("inference: upstream returned %d: %s", e.Status, e.Body)
}

// Client wraps HTTP calls to the Python inference service. The service does
// its own retrieval and generation, so calls can run long: no client timeout
// is set and cancellation is driven by the request context.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
	}
}

// Configured reports whether a base URL was supplied at startup.
func (c *Client) Configured() bool {
	return c.BaseURL != ""
}

// Chat relays a user message for asynchronous processing. The inference
// service persists both the user and assistant chat rows itself.
func (c *Client) Chat(ctx context.Context, message, sessionID, teamID string) error {
	payload := map[string]string{
		"message":   message,
		"sessionId": sessionID,
		"teamId":    teamID,
	}
	return c.do(ctx, http.MethodPost, "/chat", payload)
}

// Vectorize asks the inference service to index an uploaded file.
func (c *Client) Vectorize(ctx context.Context, fileID, objectName, teamID string) error {
	payload := map[string]string{
		"fileId":   fileID,
		"filePath": objectName,
		"teamId":   teamID,
	}
	return c.do(ctx, http.MethodPost, "/uploadFile", payload)
}

// DeleteFile removes a file's vectors from the inference service's index.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	payload := map[string]string{
		"fileId": fileID,
	}
	return c.do(ctx, http.MethodDelete, "/deleteFile", payload)
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference: calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	return nil
}
