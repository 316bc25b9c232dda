// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"errors"

	"github.com/jeranaias/citechat/internal/assistant"
	"github.com/jeranaias/citechat/internal/transcript"
)

var (
	// ErrStale is returned by a Sink whose session has been superseded.
	ErrStale = errors.New("session superseded")

	// ErrStreamEnded indicates the stream closed before the run completed.
	ErrStreamEnded = errors.New("stream ended before the run completed")
)

// State is a state of the per-submission state machine.
type State int

const (
	StateAwaitingFirstToken State = iota
	StateStreamingText
	StateStreamingToolCall
	StateAwaitingAction
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateAwaitingFirstToken: "awaiting-first-token",
	StateStreamingText:      "streaming-text",
	StateStreamingToolCall:  "streaming-tool-call",
	StateAwaitingAction:     "awaiting-action",
	StateCompleted:          "completed",
	StateFailed:             "failed",
}

// String returns the name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Sink is the dispatcher's only way to touch session state. Every method
// returns ErrStale once the session it was bound to is no longer current.
type Sink interface {
	// Update replaces the transcript with fn's result in one step.
	Update(fn func(transcript.Transcript) transcript.Transcript) error
	SetLoading(loading bool) error
	SetInputEnabled(enabled bool) error
	// Fail records err as the user-visible error, adds an error turn and
	// re-enables input.
	Fail(err error) error
}

// EventSource yields decoded stream events. *assistant.Stream implements it.
type EventSource interface {
	Next() (assistant.Event, error)
	Close() error
}

// Opener starts the request that produces an event stream.
type Opener func(ctx context.Context) (EventSource, error)

// Submitter posts tool outputs for a run and returns the continued stream.
type Submitter func(ctx context.Context, runID string, outputs []assistant.ToolOutput) (EventSource, error)

// Submission describes one user message in flight.
type Submission struct {
	ThreadID string
	Open     Opener
	Submit   Submitter
	Sink     Sink
}

// Formatter builds the markers written into assistant text.
// *citation.Resolver implements it.
type Formatter interface {
	transcript.Linker
	ImageEmbed(fileID string) string
}

// ToolHandler executes a tool call and returns its output.
type ToolHandler interface {
	HandleToolCall(ctx context.Context, call assistant.ToolCall) (string, error)
}

// ToolHandlerFunc adapts a function to the ToolHandler interface.
type ToolHandlerFunc func(ctx context.Context, call assistant.ToolCall) (string, error)

// HandleToolCall calls f(ctx, call).
func (f ToolHandlerFunc) HandleToolCall(ctx context.Context, call assistant.ToolCall) (string, error) {
	return f(ctx, call)
}

// NoopToolHandler answers every tool call with an empty output.
var NoopToolHandler ToolHandler = ToolHandlerFunc(func(context.Context, assistant.ToolCall) (string, error) {
	return "", nil
})
