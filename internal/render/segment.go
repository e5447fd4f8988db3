// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fence is the code region delimiter.
const Fence = "```"

// DefaultLanguage labels code blocks that name no language.
const DefaultLanguage = "plaintext"

// =============================================================================
// SEGMENTS
// =============================================================================

// Kind tags a segment as prose or code.
type Kind int

const (
	// KindProse is text outside any fence.
	KindProse Kind = iota
	// KindCode is a fenced code region.
	KindCode
)

func (k Kind) String() string {
	if k == KindCode {
		return "code"
	}
	return "prose"
}

// Segment is one region of an assistant reply.
//
// For prose, Text is the raw text between fences. For code, Text is the
// code body without the fence line. Complete is false for a code block
// whose closing fence has not arrived yet; such a block is still growing
// and its Text is kept raw.
type Segment struct {
	Kind     Kind
	Text     string
	Language string
	Complete bool
}

// IsCode reports whether the segment is a code region.
func (s Segment) IsCode() bool { return s.Kind == KindCode }

// =============================================================================
// PARSING
// =============================================================================

// Parse splits accumulated text into prose and code segments. It keeps no
// state between calls: every delta re-parses the whole text, so an open
// fence is recognised purely from the fence count.
func Parse(text string) []Segment {
	if !strings.Contains(text, Fence) {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []Segment{{Kind: KindProse, Text: text}}
	}

	parts := strings.Split(text, Fence)
	segments := make([]Segment, 0, len(parts))

	for i, part := range parts {
		if i%2 == 0 {
			if strings.TrimSpace(part) != "" {
				segments = append(segments, Segment{Kind: KindProse, Text: part})
			}
			continue
		}

		complete := i+1 < len(parts)
		lang, body := splitInfo(part)
		if complete {
			body = strings.TrimSpace(body)
		}
		segments = append(segments, Segment{
			Kind:     KindCode,
			Text:     body,
			Language: NormalizeLanguage(lang),
			Complete: complete,
		})
	}
	return segments
}

// Unterminated reports whether text ends inside an open code block, that
// is whether it holds an odd number of fences.
func Unterminated(text string) bool {
	return strings.Count(text, Fence)%2 == 1
}

// CodeBlocks returns only the code segments of text, in order.
func CodeBlocks(text string) []Segment {
	var out []Segment
	for _, seg := range Parse(text) {
		if seg.IsCode() {
			out = append(out, seg)
		}
	}
	return out
}

// splitInfo separates the info string right after an opening fence from
// the code body. The info token is a run of word characters and dashes
// that ends at whitespace; anything else means the block has no language.
// Trailing blanks on the fence line and its newline are dropped.
func splitInfo(part string) (lang, body string) {
	end := 0
	for end < len(part) && isInfoByte(part[end]) {
		end++
	}
	if end < len(part) && !unicode.IsSpace(rune(part[end])) {
		end = 0
	}
	lang = part[:end]
	body = strings.TrimLeft(part[end:], " \t")
	switch {
	case strings.HasPrefix(body, "\r\n"):
		body = body[2:]
	case strings.HasPrefix(body, "\n"):
		body = body[1:]
	}
	return lang, body
}

func isInfoByte(b byte) bool {
	return b == '-' || b == '_' || b == '+' || b == '#' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// =============================================================================
// LANGUAGES
// =============================================================================

var aliases = map[string]string{
	"js":     "javascript",
	"jsx":    "javascript",
	"mjs":    "javascript",
	"py":     "python",
	"py3":    "python",
	"ts":     "typescript",
	"tsx":    "typescript",
	"sh":     "bash",
	"shell":  "bash",
	"zsh":    "bash",
	"rb":     "ruby",
	"yml":    "yaml",
	"md":     "markdown",
	"golang": "go",
	"rs":     "rust",
	"kt":     "kotlin",
	"cs":     "csharp",
	"c#":     "csharp",
	"c++":    "cpp",
	"htm":    "html",
	"text":   DefaultLanguage,
	"txt":    DefaultLanguage,
	"plain":  DefaultLanguage,
}

// NormalizeLanguage lowercases a fence info token and expands the common
// short aliases. An empty token becomes DefaultLanguage.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return DefaultLanguage
	}
	if full, ok := aliases[lang]; ok {
		return full
	}
	return lang
}

// Previewable reports whether a code block in lang can be opened as a
// live page.
func Previewable(lang string) bool {
	switch NormalizeLanguage(lang) {
	case "html", "css", "javascript":
		return true
	}
	return false
}

var labelOverrides = map[string]string{
	"javascript": "JavaScript",
	"typescript": "TypeScript",
	"html":       "HTML",
	"css":        "CSS",
	"json":       "JSON",
	"sql":        "SQL",
	"yaml":       "YAML",
	"cpp":        "C++",
	"csharp":     "C#",
	"php":        "PHP",
}

// Label returns the display name for a normalized language.
func Label(lang string) string {
	lang = NormalizeLanguage(lang)
	if l, ok := labelOverrides[lang]; ok {
		return l
	}
	return cases.Title(language.English).String(lang)
}
