// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model holds the chat application state and the pure functions
// that update it.
//
// # Key Types
//
//   - State: settings, messages and the in-flight turn
//   - Settings: API key, model list, selected model, system prompt, max tokens
//   - Message: one conversation entry with role, content and stream stats
//   - Turn: the outgoing request produced by Submit
//
// # Usage
//
// Every transition takes a State and returns a new one:
//
//	st := model.NewState(settings)
//	st, turn, ok := model.Submit(st, "Hello!")
//	st = model.ApplyDelta(st, turn.AssistantID, "Hi")
//	st = model.Complete(st, turn.AssistantID, "Hi there", stats)
package model
