// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"html"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Formatter applies inline formatting (bold, italic, inline code, line
// breaks, links) to a prose segment.
type Formatter interface {
	Prose(text string) string
}

var (
	boldRe   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe = regexp.MustCompile(`\*(.*?)\*`)
	inlineRe = regexp.MustCompile("`([^`]+)`")
	linkRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// =============================================================================
// HTML
// =============================================================================

// HTMLFormatter produces an HTML fragment. The input is escaped before
// any markup is added.
type HTMLFormatter struct{}

// Prose implements Formatter.
func (HTMLFormatter) Prose(text string) string {
	out := html.EscapeString(text)
	out = boldRe.ReplaceAllString(out, "<strong>$1</strong>")
	out = italicRe.ReplaceAllString(out, "<em>$1</em>")
	out = inlineRe.ReplaceAllString(out, `<code class="inline-code">$1</code>`)
	out = strings.ReplaceAll(out, "\n", "<br>")
	out = linkRe.ReplaceAllString(out, `<a href="$2" target="_blank" rel="noopener noreferrer">$1</a>`)
	return out
}

// =============================================================================
// TERMINAL
// =============================================================================

// TerminalFormatter styles prose with lipgloss. Line breaks are kept as
// newlines and links render as "text (url)".
type TerminalFormatter struct {
	Bold   lipgloss.Style
	Italic lipgloss.Style
	Code   lipgloss.Style
	Link   lipgloss.Style
}

// NewTerminalFormatter returns a formatter with the default styles.
func NewTerminalFormatter() TerminalFormatter {
	return TerminalFormatter{
		Bold:   lipgloss.NewStyle().Bold(true),
		Italic: lipgloss.NewStyle().Italic(true),
		Code: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}),
		Link: lipgloss.NewStyle().Underline(true),
	}
}

// Prose implements Formatter.
func (f TerminalFormatter) Prose(text string) string {
	out := replaceFunc(boldRe, text, f.Bold)
	out = replaceFunc(italicRe, out, f.Italic)
	out = replaceFunc(inlineRe, out, f.Code)
	return linkRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := linkRe.FindStringSubmatch(m)
		return f.Link.Render(sub[1]) + " (" + sub[2] + ")"
	})
}

func replaceFunc(re *regexp.Regexp, s string, style lipgloss.Style) string {
	return re.ReplaceAllStringFunc(s, func(m string) string {
		sub := re.FindStringSubmatch(m)
		if sub[1] == "" {
			return m
		}
		return style.Render(sub[1])
	})
}

// PlainFormatter returns prose unchanged.
type PlainFormatter struct{}

// Prose implements Formatter.
func (PlainFormatter) Prose(text string) string { return text }
