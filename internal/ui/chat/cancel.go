// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/openchat-tui/internal/cloud"
)

// =============================================================================
// ACTIVE STREAM MANAGEMENT (THREAD-SAFE)
// =============================================================================

// streamManager holds the in-flight stream handle. It must be used as a
// pointer in Model so Bubble Tea's value copies share one mutex.
type streamManager struct {
	mu        sync.Mutex
	handle    *cloud.StreamHandle
	messageID string
}

func newStreamManager() *streamManager {
	return &streamManager{}
}

// set records h as the stream writing into messageID.
func (sm *streamManager) set(messageID string, h *cloud.StreamHandle) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.handle = h
	sm.messageID = messageID
}

// cancel stops the active stream and returns its frozen transcript. The
// second result is false when nothing was running.
func (sm *streamManager) cancel() (string, bool) {
	sm.mu.Lock()
	h := sm.handle
	sm.handle = nil
	sm.messageID = ""
	sm.mu.Unlock()

	if h == nil {
		return "", false
	}
	h.Cancel()
	return h.Transcript(), true
}

// release forgets the handle for messageID once its stream has ended.
func (sm *streamManager) release(messageID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.messageID == messageID {
		sm.handle = nil
		sm.messageID = ""
	}
}

// active reports whether a stream is registered.
func (sm *streamManager) active() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.handle != nil
}

// =============================================================================
// PROGRAM SENDER
// =============================================================================

// sender forwards stream callbacks into the running program. It is bound
// after tea.NewProgram returns, so it is shared by pointer.
type sender struct {
	mu sync.RWMutex
	fn func(tea.Msg)
}

func (s *sender) bind(fn func(tea.Msg)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
}

func (s *sender) send(msg tea.Msg) {
	s.mu.RLock()
	fn := s.fn
	s.mu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}
