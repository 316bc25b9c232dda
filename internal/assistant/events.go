// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import "github.com/jeranaias/citechat/internal/transcript"

// Kind classifies a stream event.
type Kind int

const (
	// KindUnknown is any event the client does not act on.
	KindUnknown Kind = iota
	// KindTurnStarted opens a new assistant turn.
	KindTurnStarted
	// KindTextFragment carries text and optional annotations.
	KindTextFragment
	// KindImageProduced carries the file id of a generated image.
	KindImageProduced
	// KindToolCallStarted announces a new tool call.
	KindToolCallStarted
	// KindToolCallDelta carries more input for the current tool call.
	KindToolCallDelta
	// KindRequiresAction asks the client to run tool calls.
	KindRequiresAction
	// KindRunCompleted ends the run successfully.
	KindRunCompleted
	// KindRunFailed ends the run with an error.
	KindRunFailed
)

var kindNames = [...]string{
	KindUnknown:         "unknown",
	KindTurnStarted:     "turn-started",
	KindTextFragment:    "text-fragment",
	KindImageProduced:   "image-produced",
	KindToolCallStarted: "tool-call-started",
	KindToolCallDelta:   "tool-call-delta",
	KindRequiresAction:  "requires-action",
	KindRunCompleted:    "run-completed",
	KindRunFailed:       "run-failed",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Wire event names emitted by the Assistants API.
const (
	EventMessageCreated = "thread.message.created"
	EventMessageDelta   = "thread.message.delta"
	EventRunStepDelta   = "thread.run.step.delta"
	EventRequiresAction = "thread.run.requires_action"
	EventRunCompleted   = "thread.run.completed"
	EventRunFailed      = "thread.run.failed"
	EventRunCancelled   = "thread.run.cancelled"
	EventRunExpired     = "thread.run.expired"
	EventError          = "error"
)

// Tool call kinds.
const (
	ToolCodeInterpreter = "code_interpreter"
	ToolFunction        = "function"
	ToolFileSearch      = "file_search"
)

// ToolCall is a tool invocation surfaced by the stream.
type ToolCall struct {
	ID    string
	Index int
	Kind  string
	Name  string
	Input string
}

// ToolOutput is the result of one tool call, matched by id.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// Event is one classified stream event.
type Event struct {
	Kind Kind
	// Name is the wire event name.
	Name  string
	RunID string

	// Text fragments.
	Value       string
	HasValue    bool
	Annotations []transcript.Annotation

	// Produced images.
	FileID string

	// Tool call start and delta.
	ToolCall ToolCall

	// Calls awaiting output.
	ToolCalls []ToolCall

	// Err is the run failure for KindRunFailed, or the decode error for a
	// malformed KindUnknown event.
	Err error
}
