// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/jeranaias/citechat/internal/session"
)

// shortIDLen is how much of the thread id the header shows.
const shortIDLen = 12

// View renders the chat screen.
func (m Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	if banner := m.bannerView(); banner != "" {
		b.WriteString("\n")
		b.WriteString(banner)
	}
	b.WriteString("\n")
	b.WriteString(m.footerView())
	return b.String()
}

func (m Model) headerView() string {
	title := m.theme.HeaderTitle.Render("citechat")

	var status string
	switch {
	case m.snap.Resetting:
		status = "creating thread..."
	case m.snap.SessionID == "":
		status = "no thread"
	default:
		id := m.snap.SessionID
		if len(id) > shortIDLen {
			id = id[:shortIDLen]
		}
		status = "thread " + id
	}
	return m.theme.Header.Width(max(m.width, 1)).Render(title + "  " + m.theme.Muted.Render(status))
}

// bannerView shows the session error, or a local notice, above the input.
func (m Model) bannerView() string {
	if m.renderer == nil {
		return ""
	}
	if m.snap.LastError != nil {
		return m.renderer.Banner(session.UserMessage(m.snap.LastError), "Esc to dismiss")
	}
	if m.notice != "" {
		return m.theme.ErrorHint.Render(m.notice)
	}
	return ""
}

func (m Model) footerView() string {
	var line string
	switch {
	case m.snap.Loading:
		line = m.spinner.View() + " " + m.theme.Muted.Render("Thinking...")
	case !m.snap.InputEnabled:
		line = m.theme.Muted.Render("> waiting...")
	default:
		line = m.input.View()
	}
	return line + "\n" + m.theme.StatusBar.Width(max(m.width, 1)).Render(renderHelp(m.theme, m.keys.ShortHelp()))
}
