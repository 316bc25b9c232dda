// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant is the HTTP client for the assistant relay.
//
// The relay exposes thread creation, message submission and tool-output
// submission. The last two answer with a live event stream that is decoded
// here into typed Events for the dispatcher. Both server-sent event framing
// and newline-delimited JSON envelopes are accepted.
//
// # Key Types
//
//   - Client: relay client with rate limiting and request ids
//   - Stream: decoded event stream of one submission
//   - Event: one classified stream event
//   - ToolCall, ToolOutput: tool invocations and their results
//   - APIError: non-success response from the relay
//
// # Usage
//
//	client := assistant.NewClient("http://127.0.0.1:3000/api/assistants").
//	    WithFilesURL("/api/files").
//	    WithLogger(logger)
//
//	threadID, err := client.CreateThread(ctx)
//	stream, err := client.SendMessage(ctx, threadID, "How do wildfires affect sleep?")
//	defer stream.Close()
//	for {
//	    ev, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
//
// # Security
//
// API keys are sent as bearer tokens and never logged; only a SHA-256
// fingerprint appears in log output.
package assistant
