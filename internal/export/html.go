// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/openchat-tui/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page with
// embedded CSS and syntax-highlighted code blocks.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a conversation to HTML.
func (e *HTMLExporter) Export(conv *Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if len(conv.Messages) == 0 {
		return nil, fmt.Errorf("conversation has no messages")
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(conv.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"openchat\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", conv.CreatedAt.Format(time.RFC3339))
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(conv))
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range conv.Messages {
		sb.WriteString(e.renderMessage(msg))
	}
	sb.WriteString("        </main>\n")

	fmt.Fprintf(&sb, "        <footer class=\"footer\">Exported from <strong>openchat</strong> on %s</footer>\n",
		conv.ExportedAt.Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("    </div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

func (e *HTMLExporter) FileExtension() string { return ".html" }

func (e *HTMLExporter) MimeType() string { return "text/html" }

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(conv *Conversation) string {
	var sb strings.Builder
	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", html.EscapeString(conv.Title))
	sb.WriteString("            <div class=\"metadata\">\n")
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Model:</strong> %s</span>\n", html.EscapeString(conv.Model))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(conv.CreatedAt))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(conv.Messages))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Max tokens:</strong> %d</span>\n", conv.MaxTokens)
	sb.WriteString("            </div>\n")
	if conv.SystemPrompt != "" {
		fmt.Fprintf(&sb, "            <div class=\"system-prompt\"><strong>System prompt:</strong> %s</div>\n",
			html.EscapeString(conv.SystemPrompt))
	}
	sb.WriteString("        </header>\n")
	return sb.String()
}

func (e *HTMLExporter) renderMessage(msg model.Message) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "            <div class=\"message %s-message\">\n", html.EscapeString(strings.ToLower(string(msg.Role))))
	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(&sb, "                    <span class=\"role-label\">%s</span>\n", html.EscapeString(roleLabel(msg.Role)))
	if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
		fmt.Fprintf(&sb, "                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.Timestamp))
	}
	sb.WriteString("                </div>\n")

	sb.WriteString("                <div class=\"message-content\">\n")
	if msg.Role == model.RoleUser {
		// User text is shown verbatim.
		fmt.Fprintf(&sb, "<p class=\"verbatim\">%s</p>\n", html.EscapeString(msg.Content))
	} else {
		sb.WriteString(e.formatContent(msg.Content))
	}
	sb.WriteString("                </div>\n")

	if msg.Role == model.RoleAssistant && e.options.IncludeMetadata {
		if parts := statParts(msg); len(parts) > 0 {
			sb.WriteString("                <div class=\"message-stats\">\n")
			for _, p := range parts {
				fmt.Fprintf(&sb, "                    <span class=\"stat\">%s</span>\n", html.EscapeString(p))
			}
			sb.WriteString("                </div>\n")
		}
	}

	sb.WriteString("            </div>\n")
	return sb.String()
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

// segment is either prose or a fenced code block.
type segment struct {
	code bool
	lang string
	text string
}

// splitFences separates ``` fenced blocks from the surrounding prose. An
// unterminated fence runs to the end of the content.
func splitFences(content string) []segment {
	var (
		segs   []segment
		buf    strings.Builder
		inCode bool
		lang   string
	)
	flush := func(code bool) {
		if buf.Len() > 0 || code {
			segs = append(segs, segment{code: code, lang: lang, text: buf.String()})
		}
		buf.Reset()
	}

	for _, line := range strings.SplitAfter(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				flush(true)
				inCode, lang = false, ""
			} else {
				flush(false)
				inCode, lang = true, strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			}
			continue
		}
		buf.WriteString(line)
	}
	flush(inCode)
	return segs
}

var inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")

// formatContent renders markdown-ish text: fenced code is highlighted,
// inline code is wrapped, and blank lines separate paragraphs.
func (e *HTMLExporter) formatContent(content string) string {
	var sb strings.Builder
	for _, seg := range splitFences(content) {
		if seg.code {
			sb.WriteString(e.highlightCode(seg.lang, seg.text))
			continue
		}
		for _, para := range strings.Split(strings.TrimSpace(seg.text), "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			escaped := html.EscapeString(para)
			escaped = inlineCodeRegex.ReplaceAllString(escaped, "<code class=\"inline-code\">$1</code>")
			escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
			fmt.Fprintf(&sb, "<p>%s</p>\n", escaped)
		}
	}
	return sb.String()
}

// highlightCode renders a code block with chroma, falling back to an
// escaped <pre> when highlighting fails.
func (e *HTMLExporter) highlightCode(lang, code string) string {
	code = strings.TrimRight(code, "\n")

	var label string
	if lang != "" {
		label = fmt.Sprintf("<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(e.options.CodeStyle)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4))

	iterator, err := lexer.Tokenise(nil, code)
	if err == nil {
		var buf strings.Builder
		if err = formatter.Format(&buf, style, iterator); err == nil {
			return fmt.Sprintf("<div class=\"code-block\">%s%s</div>\n", label, buf.String())
		}
	}

	return fmt.Sprintf("<div class=\"code-block\">%s<pre><code>%s</code></pre></div>\n", label, html.EscapeString(code))
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const pageCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            --font-mono: "SF Mono", "Fira Code", "Source Code Pro", monospace;
        }
        body { font-family: var(--font-sans); line-height: 1.6; padding: 20px; }
        .dark-theme { background: #1e1e2e; color: #cdd6f4; }
        .light-theme { background: #eff1f5; color: #4c4f69; }
        .container { max-width: 900px; margin: 0 auto; }
        .header, .footer { padding: 16px 0; }
        .header h1 { font-size: 1.6em; margin-bottom: 8px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 0.9em; opacity: 0.8; }
        .system-prompt { margin-top: 8px; font-size: 0.9em; font-style: italic; }
        .message { border-radius: 8px; padding: 16px; margin: 12px 0; page-break-inside: avoid; }
        .dark-theme .message { background: #313244; }
        .light-theme .message { background: #ffffff; }
        .user-message { border-left: 4px solid #89b4fa; }
        .assistant-message { border-left: 4px solid #a6e3a1; }
        .error-message { border-left: 4px solid #f38ba8; }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 8px; font-weight: 600; }
        .timestamp { font-weight: normal; opacity: 0.6; font-size: 0.85em; }
        .message-content p { margin: 8px 0; }
        .verbatim { white-space: pre-wrap; }
        .code-block { margin: 8px 0; border-radius: 6px; overflow: hidden; }
        .code-block pre { padding: 12px; overflow-x: auto; font-family: var(--font-mono); font-size: 0.9em; }
        .code-lang { font-size: 0.75em; padding: 4px 12px; opacity: 0.7; font-family: var(--font-mono); }
        .inline-code { font-family: var(--font-mono); padding: 1px 4px; border-radius: 3px; background: rgba(127,127,127,0.2); }
        .message-stats { margin-top: 8px; font-size: 0.8em; opacity: 0.6; display: flex; flex-wrap: wrap; gap: 12px; }
        .footer { text-align: center; font-size: 0.85em; opacity: 0.6; }
    </style>
`
