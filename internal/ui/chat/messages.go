// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// SessionChangedMsg signals that the session snapshot changed.
type SessionChangedMsg struct{}

// SessionStartedMsg reports the outcome of creating the first thread.
type SessionStartedMsg struct {
	Err error
}

// ResetDoneMsg reports the outcome of a new-thread request.
type ResetDoneMsg struct {
	Err error
}

// SubmitDoneMsg reports whether a message was accepted for sending.
// Failures of the run itself arrive through the snapshot instead.
type SubmitDoneMsg struct {
	Text string
	Err  error
}

// CatalogReloadedMsg signals that document names changed and the
// transcript should be rendered again.
type CatalogReloadedMsg struct{}

// waitForChange blocks on the subscription channel and turns the next
// notification into a SessionChangedMsg. A closed channel ends the loop.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return SessionChangedMsg{}
	}
}
