// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestNewTheme_ForcedModes(t *testing.T) {
	tests := []struct {
		mode     string
		wantDark bool
	}{
		{ModeDark, true},
		{ModeLight, false},
		{"DARK", true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			theme := NewTheme(tt.mode)
			if theme.IsDark != tt.wantDark {
				t.Errorf("NewTheme(%q).IsDark = %v, want %v", tt.mode, theme.IsDark, tt.wantDark)
			}
			if lipgloss.HasDarkBackground() != tt.wantDark {
				t.Errorf("lipgloss.HasDarkBackground() = %v, want %v", lipgloss.HasDarkBackground(), tt.wantDark)
			}
		})
	}
}

func TestGlamourStyle(t *testing.T) {
	tests := []struct {
		name  string
		theme *Theme
		want  string
	}{
		{"plain", NewPlainTheme(), "notty"},
		{"dark", &Theme{IsDark: true, ColorProfile: termenv.TrueColor}, "dark"},
		{"light", &Theme{IsDark: false, ColorProfile: termenv.TrueColor}, "light"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.theme.GlamourStyle(); got != tt.want {
				t.Errorf("GlamourStyle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewPlainTheme_NoEscapes(t *testing.T) {
	theme := NewPlainTheme()

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"UserLabel", theme.UserLabel},
		{"AssistantLabel", theme.AssistantLabel},
		{"ErrorTitle", theme.ErrorTitle},
		{"Link", theme.Link},
		{"ReferenceIndex", theme.ReferenceIndex},
	}

	for _, s := range styles {
		t.Run(s.name, func(t *testing.T) {
			out := s.style.Render("text")
			if strings.Contains(out, "\x1b[") {
				t.Errorf("%s rendered escape codes: %q", s.name, out)
			}
			if !strings.Contains(out, "text") {
				t.Errorf("%s dropped content: %q", s.name, out)
			}
		})
	}
}

func TestSetSize(t *testing.T) {
	theme := NewPlainTheme()
	theme.SetSize(120, 40)
	if theme.Width != 120 || theme.Height != 40 {
		t.Errorf("SetSize = %dx%d, want 120x40", theme.Width, theme.Height)
	}
}
