// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud is the OpenRouter chat completions client.
//
// OpenRouter exposes many hosted models behind one OpenAI-compatible API.
// This package sends streaming completion requests with a bearer token and
// hands the response body to package stream for parsing.
//
// # Key Types
//
//   - Client: request building, headers and error mapping
//   - StreamHandle: one in-flight request with Cancel, Wait and Done
//   - StreamError: a failure that keeps the partial transcript
//   - APIError: a non-2xx response, unwrapping to ErrAuthFailed and friends
//
// # Usage
//
//	client := cloud.NewClient(apiKey)
//	h, err := client.StartStream(ctx, cloud.ChatRequest{
//	    Model:     "deepseek-ai/deepseek-llm-r1-chat",
//	    Messages:  []cloud.Message{{Role: "user", Content: "Hello"}},
//	    MaxTokens: 2048,
//	}, cloud.Callbacks{
//	    OnDelta: func(d stream.Delta, text string) { render(text) },
//	})
//
// # Security
//
// API keys are never logged; log lines carry a SHA-256 fingerprint instead.
// All requests use TLS 1.2+.
package cloud
