// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jeranaias/openchat-tui/internal/model"
)

// Configuration constants for the OpenRouter API.
const (
	// DefaultBaseURL is the base URL for the OpenRouter API.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout bounds non-streaming requests and stream connection setup.
	DefaultTimeout = 60 * time.Second

	// DefaultSiteURL and DefaultSiteName identify the app to OpenRouter.
	DefaultSiteURL  = "https://github.com/jeranaias/openchat-tui"
	DefaultSiteName = "OpenChat"

	// MaxErrorBodySize caps how much of an error response is read.
	MaxErrorBodySize = 64 * 1024

	userAgent = "openchat/0.1.0"
)

// sharedStreamingClient is used for streaming requests. It has no overall
// timeout; the request context controls its lifetime.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: DefaultTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// Error variables for common OpenRouter errors.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("OpenRouter API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or revoked key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account has insufficient credits.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidRequest indicates the request was rejected before sending.
	ErrInvalidRequest = errors.New("invalid request")
)

// APIError is a non-2xx response from the completions API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error: %d", e.Status)
}

// Unwrap maps well-known statuses to the package sentinels so callers can
// use errors.Is(err, ErrAuthFailed) and still read the status.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusPaymentRequired:
		return ErrInsufficientCredits
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// Message is a single chat message in the wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a chat completions call.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Stream    bool      `json:"stream"`
}

// RequestFromTurn converts a chat turn into the request body.
func RequestFromTurn(t model.Turn) ChatRequest {
	msgs := make([]Message, 0, len(t.History))
	for _, m := range t.History {
		msgs = append(msgs, Message{Role: string(m.Role), Content: m.Content})
	}
	return ChatRequest{
		Model:     t.Model,
		Messages:  msgs,
		MaxTokens: t.MaxTokens,
	}
}

// Client talks to an OpenAI-compatible chat completions endpoint,
// OpenRouter by default.
type Client struct {
	apiKey       string
	baseURL      string
	siteURL      string
	siteName     string
	timeout      time.Duration
	maxFrameSize int
	httpClient   *http.Client
	log          *slog.Logger
}

// NewClient creates a client for apiKey. An empty key is allowed; requests
// then fail with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		siteURL:    DefaultSiteURL,
		siteName:   DefaultSiteName,
		timeout:    DefaultTimeout,
		httpClient: sharedStreamingClient,
		log:        slog.Default(),
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	if url = strings.TrimSpace(url); url != "" {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
	return c
}

// WithTimeout sets the timeout for non-streaming calls.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the HTTP client (tests use httptest clients).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithSiteURL sets the HTTP-Referer attribution header.
func (c *Client) WithSiteURL(url string) *Client {
	c.siteURL = url
	return c
}

// WithSiteName sets the X-Title attribution header.
func (c *Client) WithSiteName(name string) *Client {
	c.siteName = name
	return c
}

// WithMaxFrameSize sets the longest stream line accepted.
func (c *Client) WithMaxFrameSize(n int) *Client {
	c.maxFrameSize = n
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l != nil {
		c.log = l
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsConfigured returns true if the client has an API key.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// APIKeyMasked returns a display form of the key that exposes no part of it.
func (c *Client) APIKeyMasked() string {
	return MaskKey(c.apiKey)
}

// MaskKey renders key as its length and fingerprint.
func MaskKey(key string) string {
	if key == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(key), Fingerprint(key))
}

// Fingerprint returns a short SHA-256 based identifier for key, safe to log.
func Fingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

// validateRequest checks preconditions that make a request pointless to send.
func validateRequest(req ChatRequest) error {
	if strings.TrimSpace(req.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidRequest)
	}
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: at least one message is required", ErrInvalidRequest)
	}
	return nil
}

// newStreamRequest builds the streaming POST for req.
func (c *Client) newStreamRequest(ctx context.Context, req ChatRequest) (*http.Request, error) {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	return httpReq, nil
}

// handleErrorResponse converts a non-2xx response into an *APIError.
func handleErrorResponse(status int, body []byte) error {
	apiErr := &APIError{Status: status}

	if gjson.ValidBytes(body) {
		e := gjson.GetBytes(body, "error")
		apiErr.Message = e.Get("message").String()
		apiErr.Code = e.Get("code").String()
		if apiErr.Message == "" && e.Type == gjson.String {
			apiErr.Message = e.String()
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if len(apiErr.Message) > 200 {
			apiErr.Message = apiErr.Message[:200] + "..."
		}
	}
	return apiErr
}

// readErrorBody reads at most MaxErrorBodySize bytes of an error response.
func readErrorBody(r io.Reader) []byte {
	body, _ := io.ReadAll(io.LimitReader(r, MaxErrorBodySize))
	return body
}
