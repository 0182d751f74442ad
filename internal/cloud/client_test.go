// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/openchat-tui/internal/model"
	"github.com/jeranaias/openchat-tui/internal/stream"
)

const testKey = "sk-or-test-abcdefghijklmnopqrstuvwxyz0123456789"

func sseServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
}

func testRequest() ChatRequest {
	return ChatRequest{
		Model:     "deepseek-ai/deepseek-llm-r1-chat",
		Messages:  []Message{{Role: "user", Content: "hi"}},
		MaxTokens: 2048,
	}
}

// =============================================================================
// REQUEST TESTS
// =============================================================================

func TestStartStream_RequestShape(t *testing.T) {
	var got struct {
		Model     string    `json:"model"`
		Messages  []Message `json:"messages"`
		MaxTokens int       `json:"max_tokens"`
		Stream    bool      `json:"stream"`
	}
	var auth, accept, path string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		accept = r.Header.Get("Accept")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte("data: [DONE]\n"))
	}))
	defer server.Close()

	client := NewClient(testKey).WithBaseURL(server.URL + "/")
	req := testRequest()
	req.Messages = append([]Message{{Role: "system", Content: "be brief"}}, req.Messages...)

	res, err := client.Complete(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.State != stream.StateCompleted {
		t.Errorf("state = %v, want completed", res.State)
	}
	if path != "/chat/completions" {
		t.Errorf("path = %q", path)
	}
	if auth != "Bearer "+testKey {
		t.Errorf("Authorization = %q", auth)
	}
	if accept != "text/event-stream" {
		t.Errorf("Accept = %q", accept)
	}
	if !got.Stream {
		t.Error("stream flag not set")
	}
	if got.MaxTokens != 2048 || got.Model != req.Model {
		t.Errorf("body = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestStartStream_NotConfigured(t *testing.T) {
	_, err := NewClient("  ").StartStream(context.Background(), testRequest(), Callbacks{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestStartStream_InvalidRequest(t *testing.T) {
	client := NewClient(testKey)
	req := testRequest()
	req.Model = ""
	if _, err := client.StartStream(context.Background(), req, Callbacks{}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty model: err = %v", err)
	}
	req = testRequest()
	req.Messages = nil
	if _, err := client.StartStream(context.Background(), req, Callbacks{}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("no messages: err = %v", err)
	}
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestStartStream_DeliversDeltas(t *testing.T) {
	server := sseServer(t,
		": OPENROUTER PROCESSING",
		`data: {"model":"m","choices":[{"delta":{"role":"assistant","content":""}}]}`,
		`data: {"choices":[{"delta":{"content":"H"}}]}`,
		`data: {broken`,
		`data: {"choices":[{"delta":{"content":"i"},"finish_reason":"stop"}]}`,
		"data: [DONE]",
	)
	defer server.Close()

	var mu sync.Mutex
	var transcripts []string
	var done Result
	errCalled := false

	h, err := NewClient(testKey).WithBaseURL(server.URL).StartStream(context.Background(), testRequest(), Callbacks{
		OnDelta: func(d stream.Delta, text string) {
			mu.Lock()
			transcripts = append(transcripts, text)
			mu.Unlock()
		},
		OnDone:  func(r Result) { done = r },
		OnError: func(*StreamError) { errCalled = true },
	})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if h.ID() == "" {
		t.Error("handle has no id")
	}

	res := h.Wait()
	if res.Text != "Hi" || res.State != stream.StateCompleted {
		t.Errorf("result = %q/%v, want Hi/completed", res.Text, res.State)
	}
	if done.ID != h.ID() {
		t.Error("OnDone not called with the handle's result")
	}
	if errCalled {
		t.Error("OnError called for a successful stream")
	}
	if strings.Join(transcripts, ",") != "H,Hi" {
		t.Errorf("transcripts = %v", transcripts)
	}
	if res.Stats.Model != "m" || res.Stats.FinishReason != "stop" {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestStartStream_HTTPErrorStatus(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		sentinel error
	}{
		{http.StatusUnauthorized, `{"error":{"code":401,"message":"No auth credentials found"}}`, ErrAuthFailed},
		{http.StatusPaymentRequired, `{"error":{"message":"Insufficient credits"}}`, ErrInsufficientCredits},
		{http.StatusNotFound, `not json`, ErrModelNotFound},
		{http.StatusTooManyRequests, ``, ErrRateLimited},
		{http.StatusBadGateway, `{"error":{"message":"upstream"}}`, nil},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var got *StreamError
			h, err := NewClient(testKey).WithBaseURL(server.URL).StartStream(context.Background(), testRequest(), Callbacks{
				OnError: func(e *StreamError) { got = e },
			})
			if err != nil {
				t.Fatalf("StartStream: %v", err)
			}
			res := h.Wait()

			if res.State != stream.StateFailed {
				t.Fatalf("state = %v, want failed", res.State)
			}
			if got == nil {
				t.Fatal("OnError not called")
			}
			var apiErr *APIError
			if !errors.As(got, &apiErr) || apiErr.Status != tt.status {
				t.Fatalf("err = %v, want APIError %d", got, tt.status)
			}
			if tt.sentinel != nil && !errors.Is(got, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", got, tt.sentinel)
			}
			if !strings.HasPrefix(apiErr.Error(), fmt.Sprintf("API error: %d", tt.status)) {
				t.Errorf("message = %q", apiErr.Error())
			}
		})
	}
}

func TestStartStream_MidStreamFailureKeepsPartial(t *testing.T) {
	server := sseServer(t,
		`data: {"choices":[{"delta":{"content":"partial "}}]}`,
		`data: {"error":{"code":"server_error","message":"model crashed"}}`,
	)
	defer server.Close()

	var got *StreamError
	h, _ := NewClient(testKey).WithBaseURL(server.URL).StartStream(context.Background(), testRequest(), Callbacks{
		OnError: func(e *StreamError) { got = e },
		OnDone:  func(Result) { t.Error("OnDone called for failed stream") },
	})
	h.Wait()

	if got == nil || got.Partial != "partial " {
		t.Fatalf("StreamError = %+v", got)
	}
	var perr *stream.ProviderError
	if !errors.As(got, &perr) || perr.Message != "model crashed" {
		t.Errorf("underlying err = %v", got.Err)
	}
}

func TestStartStream_Cancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"Hel"}}]}`+"\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	first := make(chan struct{}, 1)
	var done Result
	h, err := NewClient(testKey).WithBaseURL(server.URL).StartStream(context.Background(), testRequest(), Callbacks{
		OnDelta: func(stream.Delta, string) { first <- struct{}{} },
		OnDone:  func(r Result) { done = r },
		OnError: func(e *StreamError) { t.Errorf("OnError called on cancel: %v", e) },
	})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}

	<-first
	h.Cancel()
	h.Cancel()

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish after Cancel")
	}

	if done.State != stream.StateCancelled {
		t.Errorf("state = %v, want cancelled", done.State)
	}
	if done.Text != "Hel" {
		t.Errorf("text = %q, want partial content kept", done.Text)
	}
}

func TestStartStream_CharsetTranscoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=iso-8859-1")
		// "café" with é as the single Latin-1 byte 0xE9
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"caf\xe9\"}}]}\n"))
	}))
	defer server.Close()

	res, err := NewClient(testKey).WithBaseURL(server.URL).Complete(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Text != "café" {
		t.Errorf("text = %q, want café", res.Text)
	}
}

// =============================================================================
// KEY HANDLING TESTS
// =============================================================================

func TestAPIKeyMasked(t *testing.T) {
	masked := NewClient(testKey).APIKeyMasked()
	if strings.Contains(masked, "sk-or") || strings.Contains(masked, "abcdef") {
		t.Errorf("masked key leaks key material: %q", masked)
	}
	if !strings.Contains(masked, Fingerprint(testKey)) {
		t.Errorf("masked key missing fingerprint: %q", masked)
	}
	if NewClient("").APIKeyMasked() != "[not set]" {
		t.Error("empty key should report [not set]")
	}
}

// =============================================================================
// MODEL LISTING TESTS
// =============================================================================

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[
			{"id":"openai/gpt-4o","object":"model","created":1,"owned_by":"openai"},
			{"id":"deepseek/deepseek-r1","object":"model","created":2,"owned_by":"deepseek"},
			{"id":"deepseek/deepseek-chat","object":"model","created":3,"owned_by":"deepseek"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(testKey).WithBaseURL(server.URL)
	models, err := client.ListModels(context.Background(), "DeepSeek")
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if models[0].ID != "deepseek/deepseek-chat" || models[1].ID != "deepseek/deepseek-r1" {
		t.Errorf("models not sorted: %+v", models)
	}

	if _, err := NewClient("").ListModels(context.Background(), ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestListModels_APIError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"provider message", http.StatusUnauthorized, `{"error":{"message":"No auth credentials found","code":"unauthorized"}}`, "No auth credentials found"},
		{"status text fallback", http.StatusServiceUnavailable, `{"error":{}}`, "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(testKey).WithBaseURL(server.URL).ListModels(context.Background(), "")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.message {
				t.Errorf("got %d %q, want %d %q", apiErr.Status, apiErr.Message, tt.status, tt.message)
			}
		})
	}
}

func TestRequestFromTurn(t *testing.T) {
	st := model.NewState(model.DefaultSettings().SetAPIKey(testKey).SetSystemPrompt("Be terse."))
	_, turn, ok := model.Submit(st, "  hello  ")
	if !ok {
		t.Fatal("Submit refused")
	}

	req := RequestFromTurn(turn)
	if req.Model != model.DefaultModel || req.MaxTokens != model.DefaultMaxTokens {
		t.Errorf("model/max_tokens = %q/%d", req.Model, req.MaxTokens)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(req.Messages))
	}
	if req.Messages[0] != (Message{Role: "system", Content: "Be terse."}) {
		t.Errorf("first message = %+v", req.Messages[0])
	}
	if req.Messages[1] != (Message{Role: "user", Content: "hello"}) {
		t.Errorf("second message = %+v", req.Messages[1])
	}
}

func TestResult_MessageStats(t *testing.T) {
	r := Result{Stats: stream.Stats{
		Deltas:         4,
		FirstDeltaTime: 120 * time.Millisecond,
		TotalTime:      time.Second,
		FinishReason:   "length",
	}}
	got := r.MessageStats()
	want := model.Stats{Deltas: 4, TTFT: 120 * time.Millisecond, Duration: time.Second, FinishReason: "length"}
	if got != want {
		t.Errorf("MessageStats = %+v, want %+v", got, want)
	}
}
