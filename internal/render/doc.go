// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns transcript turns into terminal text.
//
// Assistant turns have their file links resolved into numbered tokens and
// are rendered as markdown with glamour, followed by a references list.
// Tool turns are highlighted with chroma and numbered. User turns are
// wrapped plain text.
//
// # Key Types
//
//   - Renderer: turn, transcript, references and error banner rendering
//   - Options: theme, resolver, wrap width and reference display settings
//
// # Usage
//
//	r, err := render.New(render.Options{
//	    Theme:          styles.NewTheme(cfg.UI.Theme),
//	    Resolver:       resolver,
//	    WordWrap:       cfg.UI.WordWrap,
//	    ShowReferences: true,
//	})
//	fmt.Println(r.Transcript(snapshot.Transcript))
package render
