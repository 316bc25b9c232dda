// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript holds the ordered list of conversation turns and the
// incremental edits a response stream applies to it.
//
// A Transcript is an immutable value. Every edit returns a new Transcript and
// leaves the receiver untouched, so a snapshot handed to the renderer can
// never change underneath it while a stream is still writing.
//
// # Key Types
//
//   - Transcript: immutable ordered sequence of turns
//   - Turn: one user, assistant or tool-output entry
//   - Annotation: a file citation attached to a text fragment
//   - Linker: formats the link that replaces an annotated span
//
// # Usage
//
//	var t transcript.Transcript
//	t = t.AppendTurn(transcript.RoleUser, "How is sleep affected?")
//	t = t.AppendTurn(transcript.RoleAssistant, "")
//	t = t.AppendToOpenTurn("Sleep is disrupted【4:0†source】")
//	t = t.AnnotateOpenTurn(anns, resolver)
package transcript
