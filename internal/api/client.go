// Package api is the typed HTTP client for the IFC analysis backend.
// All endpoints live under a /api prefix and report failures as a non-2xx
// status with a JSON body carrying a "detail" message.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client performs requests against one backend base URL. Requests carry no
// client-side timeout; cancellation comes from the caller's context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for baseURL (scheme://host[:port], no /api suffix).
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestError is a non-2xx response. Detail is the server's human-readable
// failure message when the body carried one.
type RequestError struct {
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/api" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// getJSON issues a GET and decodes the 2xx body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	raw, err := c.getRaw(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// getRaw issues a GET and returns the undecoded 2xx body, for endpoints
// whose payload is schema-checked before being trusted.
func (c *Client) getRaw(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req)
}

// postJSON issues a POST with a JSON body and decodes the 2xx body into out.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	bs, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// uploadFile posts filePath as a multipart "file" field and decodes the 2xx
// body into out. The file is streamed, not buffered; model files run large.
func (c *Client) uploadFile(ctx context.Context, path string, query url.Values, filePath string, out any) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open upload file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			c.logger.Warn("api.upload.file_close_error", "path", filePath, "error", cerr)
		}
	}()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, query), pr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends the request, logs it, and maps non-2xx responses to RequestError.
func (c *Client) do(req *http.Request) ([]byte, error) {
	reqID := uuid.New().String()
	start := time.Now()

	c.logger.Info("api.request",
		"req_id", reqID,
		"method", req.Method,
		"url", req.URL.String(),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("api.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.logger.Warn("api.response_body_close_error", "req_id", reqID, "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	c.logger.Info("api.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, decodeError(resp.StatusCode, raw)
	}
	return raw, nil
}

// decodeError extracts the backend's {"detail": "..."} payload when present,
// otherwise keeps a short body snippet for diagnostics.
func decodeError(status int, raw []byte) error {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		return &RequestError{StatusCode: status, Detail: payload.Detail}
	}
	detail := strings.TrimSpace(string(raw))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return &RequestError{StatusCode: status, Detail: detail}
}
