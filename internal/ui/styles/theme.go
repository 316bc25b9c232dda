// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Plain disables colors and borders (non-TTY output).
	Plain bool

	// Layout dimensions
	Width  int
	Height int

	// Header and status bar
	Header       lipgloss.Style
	HeaderTitle  lipgloss.Style
	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// Turn labels
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	ToolLabel      lipgloss.Style
	UserText       lipgloss.Style

	// Tool (code interpreter) blocks
	ToolBlock   lipgloss.Style
	CodeLineNum lipgloss.Style

	// References list
	ReferencesTitle lipgloss.Style
	ReferenceIndex  lipgloss.Style
	ReferenceName   lipgloss.Style
	Link            lipgloss.Style

	// Error banner
	ErrorBanner lipgloss.Style
	ErrorTitle  lipgloss.Style
	ErrorHint   lipgloss.Style

	// Input and loading
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style
	Spinner          lipgloss.Style
	Muted            lipgloss.Style
}

// NewTheme detects terminal capabilities with termenv and builds the styles.
// mode forces the dark or light palette; "auto" (or "") asks the terminal.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
		Plain:        profile == termenv.Ascii,
	}
	t.initStyles()
	return t
}

// NewPlainTheme returns a theme without colors or borders.
func NewPlainTheme() *Theme {
	t := &Theme{ColorProfile: termenv.Ascii, Plain: true}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style name matching the theme.
func (t *Theme) GlamourStyle() string {
	switch {
	case t.Plain:
		return "notty"
	case t.IsDark:
		return "dark"
	default:
		return "light"
	}
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	if t.Plain {
		t.initPlain()
		return
	}

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Turn labels
	t.UserLabel = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.AssistantLabel = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.ToolLabel = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.UserText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	// Tool blocks
	t.ToolBlock = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Emerald).
		BorderLeft(true).
		PaddingLeft(1)

	t.CodeLineNum = lipgloss.NewStyle().
		Foreground(TextMuted).
		Width(4).
		Align(lipgloss.Right).
		MarginRight(1)

	// References
	t.ReferencesTitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	t.ReferenceIndex = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.ReferenceName = lipgloss.NewStyle().
		Foreground(TextPrimary)

	// ACCESSIBILITY: Underline distinguishes links beyond color
	t.Link = lipgloss.NewStyle().
		Foreground(LinkColor).
		Underline(true)

	// Error banner
	t.ErrorBanner = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Background(RoseDeep).
		Padding(0, 1)

	t.ErrorTitle = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.ErrorHint = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Input and loading
	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.Muted = lipgloss.NewStyle().
		Foreground(TextMuted)
}

func (t *Theme) initPlain() {
	plain := lipgloss.NewStyle()

	t.Header = plain
	t.HeaderTitle = plain
	t.StatusBar = plain
	t.ShortcutKey = plain
	t.ShortcutDesc = plain
	t.UserLabel = plain
	t.AssistantLabel = plain
	t.ToolLabel = plain
	t.UserText = plain.PaddingLeft(2)
	t.ToolBlock = plain.PaddingLeft(2)
	t.CodeLineNum = plain.Width(4).Align(lipgloss.Right).MarginRight(1)
	t.ReferencesTitle = plain
	t.ReferenceIndex = plain
	t.ReferenceName = plain
	t.Link = plain
	t.ErrorBanner = plain
	t.ErrorTitle = plain
	t.ErrorHint = plain
	t.InputPrompt = plain
	t.InputPlaceholder = plain
	t.Spinner = plain
	t.Muted = plain
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}
