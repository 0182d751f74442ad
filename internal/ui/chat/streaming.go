// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"golang.org/x/time/rate"
)

// DefaultRenderFPS caps markdown refreshes while a reply streams in.
const DefaultRenderFPS = 20

// =============================================================================
// RENDER THROTTLE
// =============================================================================

// renderThrottle limits how often the message list is re-rendered during
// streaming. A refresh that is refused schedules one renderTickMsg so the
// last delta is never left unrendered.
type renderThrottle struct {
	limiter   *rate.Limiter
	scheduled bool
}

func newRenderThrottle(fps int) *renderThrottle {
	if fps <= 0 {
		fps = DefaultRenderFPS
	}
	return &renderThrottle{limiter: rate.NewLimiter(rate.Limit(fps), 1)}
}

// request reports whether a refresh may run now. When it may not, the
// returned command (nil if one is already pending) delivers a tick once
// the next refresh is allowed.
func (t *renderThrottle) request() (bool, tea.Cmd) {
	if t.limiter.Allow() {
		return true, nil
	}
	if t.scheduled {
		return false, nil
	}
	t.scheduled = true
	return false, tea.Tick(t.interval(), func(time.Time) tea.Msg {
		return renderTickMsg{}
	})
}

// ticked clears the pending tick.
func (t *renderThrottle) ticked() {
	t.scheduled = false
}

func (t *renderThrottle) interval() time.Duration {
	return time.Duration(float64(time.Second) / float64(t.limiter.Limit()))
}

func (t *renderThrottle) setFPS(fps int) {
	if fps > 0 {
		t.limiter.SetLimit(rate.Limit(fps))
	}
}

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

type renderedEntry struct {
	content string
	out     string
}

// markdownRenderer renders assistant messages with glamour and caches the
// output per message until its content or the wrap width changes.
type markdownRenderer struct {
	style string
	width int
	tr    *glamour.TermRenderer
	cache map[string]renderedEntry
}

func newMarkdownRenderer(style string, width int) *markdownRenderer {
	mr := &markdownRenderer{style: style, cache: make(map[string]renderedEntry)}
	mr.configure(style, width)
	return mr
}

// configure rebuilds the glamour renderer if style or width changed.
func (mr *markdownRenderer) configure(style string, width int) {
	if width < 20 {
		width = 20
	}
	if mr.tr != nil && style == mr.style && width == mr.width {
		return
	}
	mr.style = style
	mr.width = width
	mr.cache = make(map[string]renderedEntry)

	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		mr.tr = nil
		return
	}
	mr.tr = tr
}

// render returns content rendered as markdown. Rendering errors fall back
// to the raw text.
func (mr *markdownRenderer) render(id, content string) string {
	if e, ok := mr.cache[id]; ok && e.content == content {
		return e.out
	}
	out := content
	if mr.tr != nil {
		if r, err := mr.tr.Render(content); err == nil {
			out = strings.Trim(r, "\n")
		}
	}
	mr.cache[id] = renderedEntry{content: content, out: out}
	return out
}

// forget drops cached output, for cleared conversations.
func (mr *markdownRenderer) forget() {
	mr.cache = make(map[string]renderedEntry)
}
