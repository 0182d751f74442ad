// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the openchat command line.
//
// Running openchat with no arguments opens the chat screen. The other
// commands cover scripting and settings management:
//
//	openchat chat [--plain]            chat screen, or a line-edited REPL
//	openchat ask [question...]         one-shot streamed answer
//	openchat models list|add|remove|select|remote
//	openchat settings show|set-key|system|max-tokens|reset
//	openchat config show|path|init|get|set
//	openchat version
//
// Global flags: --config, --store, --model, --verbose.
package cli
