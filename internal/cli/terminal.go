// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection for citechat output.
//
// Piped output gets plain text: no colour, no markdown styling, no
// line editing.

package cli

import (
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/jeranaias/citechat/internal/ui/styles"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// isTerminal reports whether v is an *os.File attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// IsTTY returns true if stdin is a terminal.
func IsTTY() bool {
	return isTerminal(os.Stdin)
}

// IsStdoutTTY returns true if stdout is a terminal.
func IsStdoutTTY() bool {
	return isTerminal(os.Stdout)
}

// =============================================================================
// COLOR OUTPUT CONTROL
// =============================================================================

// colorsEnabled reports whether coloured output should go to w.
// NO_COLOR (https://no-color.org/) and CLICOLOR=0 win over FORCE_COLOR,
// which wins over TTY detection.
func colorsEnabled(w io.Writer) bool {
	if termenv.EnvNoColor() {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	return isTerminal(w)
}

// themeFor returns the theme used for line-mode output to w.
func themeFor(w io.Writer, mode string) *styles.Theme {
	if !colorsEnabled(w) {
		return styles.NewPlainTheme()
	}
	theme := styles.NewTheme(mode)
	if f, ok := w.(*os.File); ok {
		if width, height, err := term.GetSize(int(f.Fd())); err == nil {
			theme.SetSize(width, height)
		}
	}
	return theme
}

// TTYRequiredError is returned when an operation requires a terminal but
// none is available.
type TTYRequiredError struct {
	Operation string
}

func (e *TTYRequiredError) Error() string {
	return "stdin is not a terminal; cannot " + e.Operation + " (try 'citechat chat' or 'citechat ask')"
}
