// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the interactive chat screen.
//
// The screen is a Bubble Tea model. Conversation state is a model.State
// value updated only through the model package's pure functions; this
// package turns key presses and stream events into those calls and renders
// the result.
//
// # Streaming
//
// A submitted turn starts a cloud.StreamHandle. Its callbacks run on the
// stream goroutine and reach the model through tea.Program.Send as
// StreamDeltaMsg, StreamDoneMsg and StreamErrorMsg. Markdown re-rendering
// during a stream is rate limited and always flushed when it ends.
//
// # Usage
//
//	state, err := chat.Run(ctx, chat.Options{
//	    Config:     cfg,
//	    Store:      store,
//	    Settings:   settings,
//	    ConfigPath: path,
//	})
package chat
