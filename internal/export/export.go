// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jeranaias/openchat-tui/internal/model"
	"github.com/jeranaias/openchat-tui/internal/util"
)

// =============================================================================
// CONVERSATION SNAPSHOT
// =============================================================================

// Conversation is the exportable snapshot of a chat.
type Conversation struct {
	Title        string          `json:"title"`
	Model        string          `json:"model"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	MaxTokens    int             `json:"max_tokens"`
	CreatedAt    time.Time       `json:"created_at"`
	ExportedAt   time.Time       `json:"exported_at"`
	Messages     []model.Message `json:"messages"`
}

// FromState snapshots the current conversation. A message still being
// generated is exported with whatever text it has so far.
func FromState(s model.State) *Conversation {
	msgs := make([]model.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Role == model.RoleAssistant && m.Content == "" {
			continue
		}
		msgs = append(msgs, m)
	}

	conv := &Conversation{
		Model:        s.Settings.SelectedModel,
		SystemPrompt: s.Settings.SystemPrompt,
		MaxTokens:    s.Settings.MaxTokens,
		ExportedAt:   time.Now(),
		Messages:     msgs,
	}
	if len(msgs) > 0 {
		conv.CreatedAt = msgs[0].Timestamp
	} else {
		conv.CreatedAt = conv.ExportedAt
	}
	conv.Title = titleFor(msgs)
	return conv
}

// titleFor uses the first user message as the title.
func titleFor(msgs []model.Message) string {
	for _, m := range msgs {
		if m.Role == model.RoleUser {
			if t := util.Preview(m.Content, 60); t != "" {
				return t
			}
		}
	}
	return "Conversation"
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a conversation in one output format.
type Exporter interface {
	Export(conv *Conversation) ([]byte, error)

	// FileExtension returns the file extension, including the dot.
	FileExtension() string

	MimeType() string
}

// Format names an output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
)

// ParseFormat accepts the format names and common file extensions.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are written. Default: current directory.
	OutputDir string

	// OpenAfterExport opens the file in the default application.
	OpenAfterExport bool

	// IncludeMetadata adds the header block and per-reply statistics.
	IncludeMetadata bool

	IncludeTimestamps bool

	// Theme for HTML export ("light" or "dark").
	Theme string

	// CodeStyle is the chroma style used for code blocks in HTML.
	CodeStyle string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Theme:             "dark",
		CodeStyle:         "monokai",
	}
}

// New returns the exporter for f.
func New(f Format, opts *Options) (Exporter, error) {
	switch f {
	case FormatMarkdown:
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	case FormatHTML:
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", f)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile renders conv with exporter and writes it into
// opts.OutputDir. Returns the output file path.
func ExportToFile(conv *Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("openchat_%s_%s%s",
		sanitizeFilename(conv.Title),
		conv.ExportedAt.Format("20060102_150405"),
		exporter.FileExtension(),
	)

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	outputPath := filepath.Join(dir, filename)
	if err := util.AtomicWriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	if opts.OpenAfterExport {
		// Non-fatal: the file exists either way.
		_ = openFile(outputPath)
	}

	return outputPath, nil
}

// ExportState snapshots s and writes it in format f.
func ExportState(s model.State, f Format, opts *Options) (string, error) {
	conv := FromState(s)
	if len(conv.Messages) == 0 {
		return "", fmt.Errorf("conversation has no messages")
	}
	exporter, err := New(f, opts)
	if err != nil {
		return "", err
	}
	return ExportToFile(conv, exporter, opts)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 40
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			result = append(result, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			result = append(result, '_')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

// openFile opens a file in the default application for the OS.
func openFile(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, path)
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := d.Seconds()
	if seconds < 60 {
		return fmt.Sprintf("%.2fs", seconds)
	}
	return fmt.Sprintf("%dm %ds", int(seconds/60), int(seconds)%60)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}

// statParts lists the statistics shown under an assistant reply.
func statParts(m model.Message) []string {
	if m.Stats == nil {
		return nil
	}
	var parts []string
	if m.Model != "" {
		parts = append(parts, "Model: "+m.Model)
	}
	if m.Stats.Deltas > 0 {
		parts = append(parts, fmt.Sprintf("Chunks: %d", m.Stats.Deltas))
	}
	if m.Stats.Duration > 0 {
		parts = append(parts, "Duration: "+formatDuration(m.Stats.Duration))
	}
	if m.Stats.TTFT > 0 {
		parts = append(parts, "TTFT: "+formatDuration(m.Stats.TTFT))
	}
	if rate := m.Stats.DeltasPerSec(); rate > 0 {
		parts = append(parts, fmt.Sprintf("Speed: %.1f chunks/s", rate))
	}
	if m.Stats.FinishReason != "" {
		parts = append(parts, "Finish: "+m.Stats.FinishReason)
	}
	return parts
}
