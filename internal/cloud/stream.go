// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/jeranaias/openchat-tui/internal/model"
	"github.com/jeranaias/openchat-tui/internal/stream"
)

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamError is a transport or provider failure that ended a stream,
// preserving any partial content received before the error.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// Result describes how a stream ended.
type Result struct {
	ID    string
	State stream.State
	Text  string
	Stats stream.Stats
	Err   *StreamError
}

// MessageStats converts the transcript statistics for a chat message.
func (r Result) MessageStats() model.Stats {
	return model.Stats{
		Deltas:       r.Stats.Deltas,
		TTFT:         r.Stats.FirstDeltaTime,
		Duration:     r.Stats.TotalTime,
		FinishReason: r.Stats.FinishReason,
	}
}

// Callbacks receive stream events. All of them run on the stream's own
// goroutine and must not block on the handle (Wait would deadlock).
//
// OnDone fires for completed and cancelled streams; OnError fires only for
// failures. Exactly one of the two is called per stream.
type Callbacks struct {
	OnDelta func(d stream.Delta, transcript string)
	OnDone  func(r Result)
	OnError func(err *StreamError)
}

// =============================================================================
// STREAM HANDLE
// =============================================================================

// StreamHandle owns one in-flight completion request.
type StreamHandle struct {
	id      string
	acc     *stream.Accumulator
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time

	mu     sync.Mutex
	result Result
}

// ID returns the handle's unique id.
func (h *StreamHandle) ID() string {
	return h.id
}

// Cancel stops the stream. The transcript is frozen immediately; the
// connection is released by the stream goroutine. Safe to call repeatedly
// and after the stream has ended.
func (h *StreamHandle) Cancel() {
	h.acc.Cancel()
	h.cancel()
}

// Done is closed after the final callback has returned.
func (h *StreamHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the stream ends and returns its result.
func (h *StreamHandle) Wait() Result {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Transcript returns the text accumulated so far.
func (h *StreamHandle) Transcript() string {
	return h.acc.Text()
}

// State returns the current transcript state.
func (h *StreamHandle) State() stream.State {
	return h.acc.State()
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// StartStream sends req as a streaming completion and returns immediately.
//
// Deltas are delivered through cb.OnDelta in arrival order. Cancelling ctx
// or calling Cancel on the handle ends the stream as cancelled, never as an
// error. Precondition failures (no API key, empty model or messages) are
// returned directly and no goroutine is started.
func (c *Client) StartStream(ctx context.Context, req ChatRequest, cb Callbacks) (*StreamHandle, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	httpReq, err := c.newStreamRequest(streamCtx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	h := &StreamHandle{
		id:      uuid.NewString(),
		acc:     stream.NewAccumulator(),
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}

	c.log.Info("stream start",
		"stream_id", h.id,
		"model", req.Model,
		"messages", len(req.Messages),
		"max_tokens", req.MaxTokens,
		"key", Fingerprint(c.apiKey),
	)

	go c.run(streamCtx, h, httpReq, cb)
	return h, nil
}

func (c *Client) run(ctx context.Context, h *StreamHandle, httpReq *http.Request, cb Callbacks) {
	defer close(h.done)
	defer h.cancel()

	err := c.receive(ctx, h, httpReq, cb.OnDelta)
	if err != nil && !h.acc.State().Terminal() {
		if errors.Is(ctx.Err(), context.Canceled) {
			h.acc.Cancel()
		} else {
			h.acc.Fail(err)
		}
	}

	res := Result{
		ID:    h.id,
		State: h.acc.State(),
		Text:  h.acc.Text(),
		Stats: h.acc.Stats(),
	}
	if res.State == stream.StateFailed {
		res.Err = &StreamError{Partial: res.Text, Err: h.acc.Err()}
	}

	h.mu.Lock()
	h.result = res
	h.mu.Unlock()

	c.log.Info("stream end",
		"stream_id", h.id,
		"state", res.State.String(),
		"deltas", res.Stats.Deltas,
		"ttft", res.Stats.FirstDeltaTime,
		"duration", time.Since(h.started),
	)

	if res.Err != nil {
		c.log.Warn("stream failed", "stream_id", h.id, "error", res.Err.Err)
		if cb.OnError != nil {
			cb.OnError(res.Err)
		}
		return
	}
	if cb.OnDone != nil {
		cb.OnDone(res)
	}
}

// receive performs the HTTP exchange and runs the read loop.
func (c *Client) receive(ctx context.Context, h *StreamHandle, httpReq *http.Request, onDelta stream.DeltaFunc) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := readErrorBody(resp.Body)
		resp.Body.Close()
		return handleErrorResponse(resp.StatusCode, body)
	}

	body := decodeCharset(resp, c)
	opts := []stream.Option{stream.WithLogger(c.log.With("stream_id", h.id))}
	if c.maxFrameSize > 0 {
		opts = append(opts, stream.WithMaxFrameSize(c.maxFrameSize))
	}
	return stream.Assemble(ctx, body, h.acc, onDelta, opts...)
}

// =============================================================================
// CHARSET HANDLING
// =============================================================================

type readCloser struct {
	io.Reader
	io.Closer
}

// decodeCharset wraps the response body in a UTF-8 transcoder when the
// server declares another charset.
func decodeCharset(resp *http.Response, c *Client) io.ReadCloser {
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return resp.Body
	}
	cs := strings.ToLower(strings.TrimSpace(params["charset"]))
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return resp.Body
	}

	enc, err := htmlindex.Get(cs)
	if err != nil {
		c.log.Warn("unknown response charset, reading as UTF-8", "charset", cs)
		return resp.Body
	}
	return readCloser{
		Reader: transform.NewReader(resp.Body, enc.NewDecoder()),
		Closer: resp.Body,
	}
}

// =============================================================================
// BLOCKING HELPER
// =============================================================================

// Complete streams req and blocks until it ends, returning the transcript.
// A failure returns the partial transcript alongside a *StreamError.
func (c *Client) Complete(ctx context.Context, req ChatRequest, onDelta stream.DeltaFunc) (Result, error) {
	h, err := c.StartStream(ctx, req, Callbacks{OnDelta: onDelta})
	if err != nil {
		return Result{}, err
	}
	res := h.Wait()
	if res.Err != nil {
		return res, res.Err
	}
	return res, nil
}
