// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/openchat-tui/internal/cloud"
	"github.com/jeranaias/openchat-tui/internal/config"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// These arrive from the stream goroutine through tea.Program.Send. MessageID
// is the assistant placeholder the stream writes into; messages for any id
// other than the pending one are stale and dropped.

// StreamDeltaMsg carries the transcript after a new delta.
type StreamDeltaMsg struct {
	MessageID  string
	Transcript string
}

// StreamDoneMsg reports a completed or cancelled stream.
type StreamDoneMsg struct {
	MessageID string
	Result    cloud.Result
}

// StreamErrorMsg reports a failed stream with its partial transcript.
type StreamErrorMsg struct {
	MessageID string
	Err       *cloud.StreamError
}

// renderTickMsg fires when a throttled markdown refresh is due.
type renderTickMsg struct{}

// =============================================================================
// SETTINGS AND CONFIG MESSAGES
// =============================================================================

// SettingsSavedMsg reports the outcome of writing settings to the store.
type SettingsSavedMsg struct {
	Err error
	// Quiet suppresses the "saved" notice for automatic saves.
	Quiet bool
}

// ConfigChangedMsg delivers a reloaded config file.
type ConfigChangedMsg struct {
	Config *config.Config
	Err    error
}

// =============================================================================
// CLIPBOARD AND EXPORT MESSAGES
// =============================================================================

// CopiedMsg reports a clipboard copy.
type CopiedMsg struct {
	Err error
}

// ExportedMsg reports an export to disk.
type ExportedMsg struct {
	Path string
	Err  error
}

// =============================================================================
// STATUS MESSAGES
// =============================================================================

// statusTimeout is how long a status notice stays visible.
const statusTimeout = 4 * time.Second

// clearStatusMsg clears the status notice if it is still the one with seq.
type clearStatusMsg struct {
	seq int
}
