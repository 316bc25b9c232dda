// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat screen for citechat.

The view owns no conversation state. It drives a session controller,
re-reads its snapshot whenever the controller signals a change and renders
the transcript, the error banner and the input line.

# Key Types

## Model (model.go)

  - Model: the Bubble Tea model (Init, Update, View)
  - Session: the controller methods the view calls
  - Config: collaborators passed to New

## Messages (messages.go)

  - SessionChangedMsg: the snapshot changed
  - SessionStartedMsg, ResetDoneMsg, SubmitDoneMsg: results of session calls
  - CatalogReloadedMsg: document names changed; re-render

# Keys

	Enter   send the message (ignored while input is disabled)
	C-n     start a new thread
	Esc     dismiss the error banner
	PgUp    scroll the transcript
	C-c     quit

# Usage

	m := chat.New(chat.Config{Session: ctrl, Renderer: r, Theme: theme})
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
*/
package chat
