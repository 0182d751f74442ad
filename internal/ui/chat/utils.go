// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/openchat-tui/internal/model"
)

// =============================================================================
// FORMATTING UTILITIES
// =============================================================================

// formatTimestamp formats a message time: just the time today, day and
// time this week, date and time otherwise.
func formatTimestamp(t, now time.Time) string {
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	if now.Sub(t) < 7*24*time.Hour {
		return t.Format("Mon 15:04")
	}
	return t.Format("Jan 2 15:04")
}

// formatDuration formats short durations in ms and longer ones in seconds.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// statsLine summarizes a finished reply, e.g. "42 chunks in 3.1s (13.5/s), first after 420ms".
func statsLine(m model.Message) string {
	if m.Stats == nil || m.Stats.Deltas == 0 {
		return ""
	}
	s := m.Stats
	parts := []string{fmt.Sprintf("%d chunks", s.Deltas)}
	if s.Duration > 0 {
		parts[0] += " in " + formatDuration(s.Duration)
		if rate := s.DeltasPerSec(); rate > 0 {
			parts[0] += fmt.Sprintf(" (%.1f/s)", rate)
		}
	}
	if s.TTFT > 0 {
		parts = append(parts, "first after "+formatDuration(s.TTFT))
	}
	if s.FinishReason != "" && s.FinishReason != "stop" {
		parts = append(parts, "finish: "+s.FinishReason)
	}
	return strings.Join(parts, ", ")
}

// contentWidth is the usable width inside the message list.
func contentWidth(total int) int {
	const margin = 4
	if total-margin < 20 {
		return 20
	}
	return total - margin
}
