// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atotto/clipboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/openchat-tui/internal/model"
)

func sampleState() model.State {
	s := model.DefaultSettings().SetAPIKey("sk-or-test").SetSystemPrompt("Be brief.")
	st := model.NewState(s)

	user := model.NewMessage(model.RoleUser, "How do I print in Go? <b>")
	user.Timestamp = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	reply := model.NewMessage(model.RoleAssistant, "Use `fmt`:\n\n```go\nfmt.Println(\"hi\")\n```\n\nDone.")
	reply.Model = "openai/gpt-4o"
	reply.Stats = &model.Stats{Deltas: 12, Duration: 2 * time.Second, TTFT: 300 * time.Millisecond, FinishReason: "stop"}

	placeholder := model.NewMessage(model.RoleAssistant, "")
	errMsg := model.NewErrorMessage(errors.New("API error: 429"))

	st.Messages = []model.Message{user, reply, placeholder, errMsg}
	return st
}

func TestFromState(t *testing.T) {
	conv := FromState(sampleState())

	assert.Equal(t, "How do I print in Go? <b>", conv.Title)
	assert.Equal(t, "Be brief.", conv.SystemPrompt)
	require.Len(t, conv.Messages, 3, "empty assistant placeholder dropped")
	assert.Equal(t, model.RoleError, conv.Messages[2].Role)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), conv.CreatedAt)
}

func TestFromState_Empty(t *testing.T) {
	conv := FromState(model.NewState(model.DefaultSettings()))
	assert.Equal(t, "Conversation", conv.Title)
	assert.Empty(t, conv.Messages)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"md": FormatMarkdown, ".HTML": FormatHTML, "json": FormatJSON, "": FormatMarkdown} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestMarkdownExporter(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(FromState(sampleState()))
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\n"))
	assert.Contains(t, md, "model: "+model.DefaultModel)
	assert.Contains(t, md, "> Be brief.")
	assert.Contains(t, md, "### You <sub>10:00:00</sub>")
	assert.Contains(t, md, "```go\nfmt.Println(\"hi\")\n```")
	assert.Contains(t, md, "Chunks: 12")
	assert.Contains(t, md, "Finish: stop")
	assert.Contains(t, md, "### Error")
}

func TestMarkdownExporter_NoMessages(t *testing.T) {
	_, err := NewMarkdownExporter(nil).Export(&Conversation{})
	assert.Error(t, err)
}

func TestHTMLExporter_EscapesAndHighlights(t *testing.T) {
	out, err := NewHTMLExporter(nil).Export(FromState(sampleState()))
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, "&lt;b&gt;")
	assert.NotContains(t, page, "<b>\n")
	assert.Contains(t, page, `<div class="code-lang">go</div>`)
	assert.Contains(t, page, `<code class="inline-code">fmt</code>`)
	assert.Contains(t, page, "Println")
	assert.Contains(t, page, "error-message")
}

func TestSplitFences(t *testing.T) {
	segs := splitFences("intro\n```py\nx = 1\n```\nafter\n```\nopen")
	require.Len(t, segs, 4)
	assert.False(t, segs[0].code)
	assert.True(t, segs[1].code)
	assert.Equal(t, "py", segs[1].lang)
	assert.Equal(t, "x = 1\n", segs[1].text)
	assert.Equal(t, "after\n", segs[2].text)
	assert.True(t, segs[3].code, "unterminated fence runs to end")
	assert.Equal(t, "open", segs[3].text)
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(FromState(sampleState()))
	require.NoError(t, err)

	var conv Conversation
	require.NoError(t, json.Unmarshal(out, &conv))
	assert.Equal(t, "openai/gpt-4o", conv.Messages[1].Model)
	require.NotNil(t, conv.Messages[1].Stats)
	assert.Equal(t, 12, conv.Messages[1].Stats.Deltas)
}

func TestExportState_WritesFile(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = filepath.Join(t.TempDir(), "exports")

	path, err := ExportState(sampleState(), FormatHTML, opts)
	require.NoError(t, err)
	assert.Equal(t, ".html", filepath.Ext(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "openchat_How_do_I_print_in_Go-_-b-_"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<!DOCTYPE html>")
}

func TestExportState_EmptyConversation(t *testing.T) {
	_, err := ExportState(model.NewState(model.DefaultSettings()), FormatJSON, nil)
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a-b-c_d", sanitizeFilename("a/b:c d"))
	assert.Equal(t, "conversation", sanitizeFilename(""))
	assert.Len(t, []rune(sanitizeFilename(strings.Repeat("x", 100))), 40)
}

func TestCopyToClipboard(t *testing.T) {
	if clipboard.Unsupported {
		assert.ErrorIs(t, CopyToClipboard("x"), ErrClipboardUnavailable)
		return
	}

	var got string
	prev := writeClipboard
	writeClipboard = func(text string) error { got = text; return nil }
	t.Cleanup(func() { writeClipboard = prev })

	require.NoError(t, CopyToClipboard("copied"))
	assert.Equal(t, "copied", got)

	writeClipboard = func(string) error { return errors.New("no display") }
	assert.Error(t, CopyToClipboard("x"))
}
