// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export saves a conversation to a file.
//
// Citation markers are resolved before export, so the saved text carries
// the same numbered tokens the terminal shows, with each answer's
// references listed after it.
//
// # Key Types
//
//   - Document: a resolved transcript
//   - Exporter: format interface (MarkdownExporter, JSONExporter)
//
// # Usage
//
//	doc := export.Build(snap.SessionID, snap.Transcript, resolver, time.Now())
//	exporter, _ := export.ForFormat("md")
//	path, err := export.ExportToFile(doc, exporter, dir)
package export
