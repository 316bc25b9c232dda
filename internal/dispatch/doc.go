// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch folds a run's event stream into the transcript.
//
// The Dispatcher is an explicit state machine. Each event kind has one
// handler that edits the transcript through a Sink and returns the next
// state:
//
//	awaiting-first-token -> streaming-text <-> streaming-tool-call
//	    -> awaiting-action <-> streaming-text -> completed
//
// When a run requires action, the pending tool calls are handled
// concurrently, their outputs are submitted, and the continued stream is
// dispatched recursively through the same machine.
//
// A Sink is bound to one session. Once that session is superseded every
// Sink call returns ErrStale and the dispatcher stops without touching the
// transcript again.
//
// # Key Types
//
//   - Dispatcher: runs the state machine for one submission
//   - Submission: the stream opener, action submitter and sink of one run
//   - Sink: fenced access to the session's transcript and flags
//   - ToolHandler: executes tool calls the run asks for
//   - State: state machine states
package dispatch
