// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a chat conversation to disk or the clipboard.
//
// # Supported Formats
//
//   - Markdown: YAML frontmatter, one heading per message
//   - JSON: the full snapshot, including per-reply statistics
//   - HTML: standalone page with chroma-highlighted code blocks
//
// # Usage
//
//	path, err := export.ExportState(state, export.FormatMarkdown, export.DefaultOptions())
//
// Copy the last reply:
//
//	if msg, ok := model.LastReply(state); ok {
//	    err := export.CopyToClipboard(msg.Content)
//	}
package export
