// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// HighlightStyle is the chroma style used for terminal output.
const HighlightStyle = "monokai"

// Highlight returns code with ANSI 256-color syntax highlighting. Unknown
// languages are guessed from the content; on any failure the code comes
// back unchanged.
func Highlight(code, lang string) string {
	lexer := lexers.Get(NormalizeLanguage(lang))
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(HighlightStyle)
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// DetectLanguage guesses the language of untagged code. It returns
// DefaultLanguage when nothing matches.
func DetectLanguage(code string) string {
	if lexer := lexers.Analyse(code); lexer != nil {
		return NormalizeLanguage(lexer.Config().Name)
	}
	return DefaultLanguage
}
