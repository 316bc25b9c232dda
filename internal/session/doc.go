// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the conversation: its thread identity, transcript,
// and input, loading and error flags.
//
// A Controller creates a thread when started and again on every reset.
// Each reset bumps a generation counter; every submission is bound to the
// (thread id, generation) pair current when it was made, and its stream
// writes through that binding. Once the pair changes, the binding refuses
// all writes, so events arriving from an abandoned stream leave the new
// conversation untouched.
//
// # Key Types
//
//   - Controller: session lifecycle, submission and change notification
//   - Snapshot: consistent read-only view of the session
//   - Relay: the relay operations the controller needs
//
// # Usage
//
//	ctrl := session.New(session.Config{Relay: client, Dispatcher: d})
//	if err := ctrl.Start(ctx); err != nil {
//	    // the error is also visible in ctrl.Snapshot().LastError
//	}
//
//	updates, unsubscribe := ctrl.Subscribe()
//	defer unsubscribe()
//
//	_ = ctrl.Submit(ctx, "How is sleep disturbance affected by wildfires?")
//	for range updates {
//	    snap := ctrl.Snapshot()
//	    ...
//	}
package session
