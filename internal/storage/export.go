// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/jeranaias/codecraft-tui/internal/model"
	"github.com/jeranaias/codecraft-tui/internal/util"
)

// =============================================================================
// SESSION EXPORT
// =============================================================================

// ExportMarkdown renders a session as Markdown: a title heading, the
// creation time and every message under its role label.
func ExportMarkdown(sess *model.Session) string {
	var sb strings.Builder
	sb.WriteString("# " + sess.Title + "\n\n")
	sb.WriteString("Session " + sess.ID + " · model " + sess.Model + "\n\n")
	sb.WriteString("Created: " + sess.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range sess.Messages {
		label := "**" + msg.Role.DisplayName() + "**"
		if !msg.Timestamp.IsZero() {
			label += " (" + msg.Timestamp.Format("15:04") + ")"
		}
		sb.WriteString(label + ":\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 860px; margin: 2rem auto; padding: 0 1rem; }
pre { background: #1e1e1e; color: #d4d4d4; padding: 1rem; overflow-x: auto; border-radius: 6px; }
.message { border-bottom: 1px solid #ddd; padding: 1rem 0; }
.role { font-weight: 600; color: #555; }
.notice { color: #b45309; }
</style>
</head>
<body>
`

// ExportHTML renders a session as a standalone HTML page. Message bodies
// go through goldmark, so fenced code becomes <pre><code> blocks.
func ExportHTML(sess *model.Session) (string, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, htmlHead, html.EscapeString(sess.Title))
	fmt.Fprintf(&buf, "<h1>%s</h1>\n", html.EscapeString(sess.Title))
	fmt.Fprintf(&buf, "<p>Model %s · created %s</p>\n",
		html.EscapeString(sess.Model), sess.CreatedAt.Format(time.RFC1123))

	for _, msg := range sess.Messages {
		class := "message " + string(msg.Role)
		fmt.Fprintf(&buf, "<div class=%q>\n<div class=\"role\">%s</div>\n",
			class, html.EscapeString(msg.Role.DisplayName()))
		if err := markdown.Convert([]byte(msg.Content), &buf); err != nil {
			return "", fmt.Errorf("failed to render message: %w", err)
		}
		buf.WriteString("</div>\n")
	}
	buf.WriteString("</body>\n</html>\n")
	return buf.String(), nil
}

// ExportJSON exports a session as pretty-printed JSON.
func ExportJSON(sess *model.Session) ([]byte, error) {
	return json.MarshalIndent(sess, "", "  ")
}

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList formats sessions as a table of index, id, creation
// time, message count and title. current is marked with "*".
func FormatSessionList(sessions []*model.Session, current string) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	var sb strings.Builder
	header := "    " + util.PadWidth("#", 4) + util.PadWidth("ID", 15) +
		util.PadWidth("Created", 18) + util.PadWidth("Msgs", 6) + "Title"
	sb.WriteString(header + "\n")
	sb.WriteString(strings.Repeat("-", 75) + "\n")

	for i, s := range sessions {
		mark := "  "
		if s.ID == current {
			mark = "* "
		}
		sb.WriteString("  " + mark +
			util.PadWidth(strconv.Itoa(i+1), 4) +
			util.PadWidth(s.ID, 15) +
			util.PadWidth(s.CreatedAt.Format("2006-01-02 15:04"), 18) +
			util.PadWidth(strconv.Itoa(s.ConversationLen()), 6) +
			util.TruncateWidth(s.Title, 32) + "\n")
	}
	return sb.String()
}
