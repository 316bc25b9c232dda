// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across citechat.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - SafeFilename: Reduce a server-supplied name to one safe path element
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//   - WriteUniqueFile: Write without replacing, adding " (n)" on collisions
//
// # Usage
//
//	// Write config atomically
//	err := util.AtomicWriteFile(path, data, 0600)
//
//	// Save a downloaded document next to earlier downloads
//	p, err := util.WriteUniqueFile(dir, util.SafeFilename(name, "download"), data, 0644)
package util
