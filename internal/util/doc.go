// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across openchat.
//
//   - AtomicWriteFile: crash-safe file writes (config, exports)
//   - TruncateWidth, StringWidth, PadRight: terminal-width aware text
//   - TruncateRunes, Preview: rune-safe shortening for titles and lists
package util
