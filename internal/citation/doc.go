// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package citation turns file references embedded in assistant answers into
// numbered, deduplicated document references.
//
// Assistant text carries links of the form [label](/api/files/<fileId>). The
// Resolver rewrites each of them into a positional token such as [1] and
// returns the ordered list of referenced documents. Identity is by file id:
// two links to the same file with different labels share one number.
//
// # Key Types
//
//   - Resolver: scans text for file links and produces a Result
//   - Result: rewritten text plus the ordered DocumentReference list
//   - DocumentReference: one cited file with its display name and order
//   - Catalog: concurrency-safe file id to display name mapping
//
// # Usage
//
//	catalog := citation.NewCatalog(cfg.Files.Names)
//	resolver := citation.NewResolver("/api/files", catalog)
//
//	res := resolver.Resolve(turn.Text)
//	for _, ref := range res.References {
//	    fmt.Printf("[%d] %s\n", ref.Order, ref.Name)
//	}
package citation
