// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// CodeRenderer draws one code segment. index is the 1-based position of
// the block among the code blocks of the reply, which is what /copy N and
// /preview N refer to.
type CodeRenderer interface {
	Code(index int, seg Segment) string
}

// Document renders text into a display string: prose through f, code
// through c. Like Parse it is recomputed from scratch for every delta.
func Document(text string, f Formatter, c CodeRenderer) string {
	segments := Parse(text)
	parts := make([]string, 0, len(segments))
	index := 0
	for _, seg := range segments {
		if seg.IsCode() {
			index++
			parts = append(parts, c.Code(index, seg))
			continue
		}
		parts = append(parts, f.Prose(seg.Text))
	}
	return strings.Join(parts, "\n")
}

// =============================================================================
// HTML
// =============================================================================

// HTMLCodeRenderer emits a <div class="code-block"> with a language header.
// Incomplete blocks get the extra class "streaming-code".
type HTMLCodeRenderer struct{}

// Code implements CodeRenderer.
func (HTMLCodeRenderer) Code(index int, seg Segment) string {
	class := "code-block"
	if !seg.Complete {
		class += " streaming-code"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="%s" data-index="%d">`, class, index)
	fmt.Fprintf(&b, `<div class="code-header"><span>%s</span></div>`, html.EscapeString(seg.Language))
	fmt.Fprintf(&b, `<pre><code class="language-%s">%s</code></pre>`,
		html.EscapeString(seg.Language), html.EscapeString(seg.Text))
	b.WriteString("</div>")
	return b.String()
}

// =============================================================================
// TERMINAL
// =============================================================================

// TerminalCodeRenderer draws a bordered, syntax-highlighted block. A block
// that is still streaming gets a dashed border and a "streaming" badge.
type TerminalCodeRenderer struct {
	Width     int
	Highlight bool

	Border      lipgloss.Style
	Header      lipgloss.Style
	Muted       lipgloss.Style
	StreamBadge lipgloss.Style
}

// NewTerminalCodeRenderer returns a renderer that fits width columns.
func NewTerminalCodeRenderer(width int) TerminalCodeRenderer {
	muted := lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	return TerminalCodeRenderer{
		Width:     width,
		Highlight: true,
		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		Header: lipgloss.NewStyle().Bold(true).Foreground(muted),
		Muted:  lipgloss.NewStyle().Foreground(muted),
		StreamBadge: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}),
	}
}

// Code implements CodeRenderer.
func (r TerminalCodeRenderer) Code(index int, seg Segment) string {
	header := r.Header.Render(fmt.Sprintf("[%d] %s", index, Label(seg.Language)))
	switch {
	case !seg.Complete:
		header += " " + r.StreamBadge.Render("streaming...")
	case Previewable(seg.Language):
		header += " " + r.Muted.Render(fmt.Sprintf("/preview %d", index))
	}

	body := seg.Text
	if r.Highlight && body != "" {
		body = Highlight(body, seg.Language)
	}

	border := r.Border
	if !seg.Complete {
		border = border.BorderStyle(lipgloss.Border{
			Top: "╌", Bottom: "╌", Left: "┆", Right: "┆",
			TopLeft: "╭", TopRight: "╮", BottomLeft: "╰", BottomRight: "╯",
		})
	}
	if r.Width > 4 {
		border = border.MaxWidth(r.Width)
	}
	return border.Render(header + "\n" + strings.TrimRight(body, "\n"))
}
