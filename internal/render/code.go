// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/jeranaias/citechat/internal/ui/styles"
)

// =============================================================================
// CODE INTERPRETER BLOCKS
// =============================================================================

// codeHighlighter holds the chroma style and formatter chosen for the
// terminal. A zero formatter disables highlighting.
type codeHighlighter struct {
	style     *chroma.Style
	formatter chroma.Formatter
}

func newCodeHighlighter(theme *styles.Theme) codeHighlighter {
	if theme.Plain {
		return codeHighlighter{}
	}

	styleName := "github"
	if theme.IsDark {
		styleName = "monokai"
	}
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	var formatterName string
	switch theme.ColorProfile {
	case termenv.TrueColor:
		formatterName = "terminal16m"
	case termenv.ANSI256:
		formatterName = "terminal256"
	default:
		formatterName = "terminal"
	}
	formatter := formatters.Get(formatterName)
	if formatter == nil {
		formatter = formatters.Fallback
	}

	return codeHighlighter{style: style, formatter: formatter}
}

// highlight applies syntax highlighting, returning code unchanged when the
// highlighter is disabled or tokenizing fails.
func (h codeHighlighter) highlight(code, language string) string {
	if h.formatter == nil {
		return code
	}

	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// Code renders source with line numbers inside the tool block style.
func (r *Renderer) Code(code, language string) string {
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return r.theme.ToolBlock.Render(r.theme.Muted.Render("..."))
	}

	lines := strings.Split(r.code.highlight(code, language), "\n")
	// Formatters may leave a trailing reset on its own line.
	if n := len(lines); n > 1 && strings.TrimSpace(ansi.Strip(lines[n-1])) == "" {
		lines = lines[:n-1]
	}

	numbered := make([]string, len(lines))
	for i, line := range lines {
		numbered[i] = r.theme.CodeLineNum.Render(strconv.Itoa(i+1)) + line
	}
	return r.theme.ToolBlock.Render(strings.Join(numbered, "\n"))
}
