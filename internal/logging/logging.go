// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging sets up the process-wide slog logger.
//
// The chat screen owns the terminal, so logs go to a file rather than
// stderr. The plain CLI commands use the same file so a session can be
// reconstructed afterwards.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileName is the log file created inside the openchat directory.
const DefaultFileName = "openchat.log"

// Options selects where and how much to log.
type Options struct {
	// Path is the log file. Empty selects ~/.openchat/openchat.log.
	Path string
	// Level is debug, info, warn or error.
	Level string
	// Verbose forces debug regardless of Level.
	Verbose bool
	// JSON switches the handler to slog's JSON format.
	JSON bool
}

// ParseLevel maps a config level name to a slog level. Unknown names map
// to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultPath returns ~/.openchat/openchat.log.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".openchat", DefaultFileName), nil
}

// New builds a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	ho := &slog.HandlerOptions{Level: level}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, ho))
	}
	return slog.New(slog.NewTextHandler(w, ho))
}

// Setup opens the log file, installs the logger as slog's default and
// returns a closer for the file. If the file cannot be opened, logging is
// discarded and the error is returned alongside a no-op closer.
func Setup(opts Options) (func() error, error) {
	path := opts.Path
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			slog.SetDefault(New(io.Discard, opts))
			return func() error { return nil }, err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		slog.SetDefault(New(io.Discard, opts))
		return func() error { return nil }, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		slog.SetDefault(New(io.Discard, opts))
		return func() error { return nil }, fmt.Errorf("failed to open log file: %w", err)
	}

	slog.SetDefault(New(f, opts))
	return f.Close, nil
}
