// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the citechat command tree.
//
// Every command loads configuration, builds the logger and wires the relay
// client, citation resolver, dispatcher, session controller and renderer
// before it runs.
//
// # Key Types
//
//   - Streams: standard input and output, substituted in tests
//   - UsageError: invalid arguments, mapped to ExitUsageError
//   - TTYRequiredError: the full-screen chat needs a terminal
//
// # Usage
//
//	os.Exit(cli.Execute(ctx))
//
// # Commands Overview
//
//   - citechat: full-screen chat (default)
//   - chat: line-mode chat with /new, /refs, /get, /save and /quit
//   - ask: one question, answer printed to stdout
//   - files get: download a cited document
//   - config init, config show: write defaults or print the effective config
//
// Global flags: --config, --relay, --verbose.
package cli
