// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/citechat/internal/transcript"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// envelope is the {"event": ..., "data": ...} line a relay forwards.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type messageDeltaPayload struct {
	ID    string `json:"id"`
	Delta struct {
		Content []contentDelta `json:"content"`
	} `json:"delta"`
}

type contentDelta struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
	Text  *struct {
		Value       *string           `json:"value"`
		Annotations []annotationDelta `json:"annotations"`
	} `json:"text"`
	ImageFile *struct {
		FileID string `json:"file_id"`
	} `json:"image_file"`
}

type annotationDelta struct {
	Type         string `json:"type"`
	Text         string `json:"text"`
	StartIndex   int    `json:"start_index"`
	EndIndex     int    `json:"end_index"`
	FileCitation *struct {
		FileID string `json:"file_id"`
	} `json:"file_citation"`
	FilePath *struct {
		FileID string `json:"file_id"`
	} `json:"file_path"`
}

type runStepDeltaPayload struct {
	ID    string `json:"id"`
	RunID string `json:"run_id"`
	Delta struct {
		StepDetails struct {
			Type      string          `json:"type"`
			ToolCalls []toolCallDelta `json:"tool_calls"`
		} `json:"step_details"`
	} `json:"delta"`
}

type toolCallDelta struct {
	Index           int    `json:"index"`
	ID              string `json:"id"`
	Type            string `json:"type"`
	CodeInterpreter *struct {
		Input string `json:"input"`
	} `json:"code_interpreter"`
	Function *struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type runPayload struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	RequiredAction *struct {
		SubmitToolOutputs struct {
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"submit_tool_outputs"`
	} `json:"required_action"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// STREAM
// =============================================================================

var errMissingEventName = errors.New("frame has no event name")

// Stream decodes the event stream of one submission. Events are returned in
// arrival order. A Stream is not safe for concurrent use, but Close may be
// called from another goroutine to abandon it.
type Stream struct {
	body      io.ReadCloser
	frames    *FrameReader
	pending   []Event
	toolCalls map[string]ToolCall
	log       *zap.Logger
	requestID string

	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps a response body. The stream owns body and closes it.
func NewStream(body io.ReadCloser, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		body:      body,
		frames:    NewFrameReader(body),
		toolCalls: make(map[string]ToolCall),
		log:       logger,
	}
}

// RequestID returns the id of the request that opened the stream.
func (s *Stream) RequestID() string {
	return s.requestID
}

// Next returns the next event. It returns io.EOF when the stream ends.
func (s *Stream) Next() (Event, error) {
	for len(s.pending) == 0 {
		frame, err := s.frames.Next()
		if err != nil {
			return Event{}, err
		}
		s.pending = s.decode(frame)
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, nil
}

// Close releases the response body. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// decode turns one frame into zero or more events.
func (s *Stream) decode(frame Frame) []Event {
	name, data := frame.Event, frame.Data
	if name == "" {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			return []Event{s.malformed(name, err)}
		}
		name, data = env.Event, env.Data
	}

	var (
		events []Event
		err    error
	)
	switch name {
	case EventMessageCreated:
		events = []Event{{Kind: KindTurnStarted, Name: name}}
	case EventMessageDelta:
		events, err = decodeMessageDelta(name, data)
	case EventRunStepDelta:
		events, err = s.decodeRunStepDelta(name, data)
	case EventRequiresAction:
		events, err = decodeRequiresAction(name, data)
	case EventRunCompleted:
		// The run id is informational; completion stands without a payload.
		var run runPayload
		_ = json.Unmarshal(data, &run)
		events = []Event{{Kind: KindRunCompleted, Name: name, RunID: run.ID}}
	case EventRunFailed, EventRunCancelled, EventRunExpired:
		events, err = decodeRunFailed(name, data)
	case EventError:
		events = []Event{decodeError(name, data)}
	default:
		return []Event{{Kind: KindUnknown, Name: name}}
	}
	if err != nil {
		return []Event{s.malformed(name, err)}
	}
	return events
}

func (s *Stream) malformed(name string, err error) Event {
	if err == nil {
		err = errMissingEventName
	}
	s.log.Debug("ignoring malformed stream event", zap.String("event", name), zap.Error(err))
	return Event{Kind: KindUnknown, Name: name, Err: err}
}

func decodeMessageDelta(name string, data []byte) ([]Event, error) {
	var p messageDeltaPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	var events []Event
	for _, part := range p.Delta.Content {
		switch {
		case part.Type == "text" && part.Text != nil:
			ev := Event{Kind: KindTextFragment, Name: name}
			if part.Text.Value != nil {
				ev.Value = *part.Text.Value
				ev.HasValue = true
			}
			ev.Annotations = convertAnnotations(part.Text.Annotations)
			events = append(events, ev)
		case part.Type == "image_file" && part.ImageFile != nil && part.ImageFile.FileID != "":
			events = append(events, Event{Kind: KindImageProduced, Name: name, FileID: part.ImageFile.FileID})
		}
	}
	return events, nil
}

func convertAnnotations(in []annotationDelta) []transcript.Annotation {
	if len(in) == 0 {
		return nil
	}
	out := make([]transcript.Annotation, 0, len(in))
	for _, a := range in {
		ann := transcript.Annotation{
			Type:  transcript.AnnotationType(a.Type),
			Text:  a.Text,
			Start: a.StartIndex,
			End:   a.EndIndex,
		}
		switch {
		case a.FileCitation != nil:
			ann.FileID = a.FileCitation.FileID
		case a.FilePath != nil:
			ann.FileID = a.FilePath.FileID
		}
		out = append(out, ann)
	}
	return out
}

// decodeRunStepDelta emits a start event the first time a tool call index
// appears within a step, and delta events for later chunks.
func (s *Stream) decodeRunStepDelta(name string, data []byte) ([]Event, error) {
	var p runStepDeltaPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	var events []Event
	for _, tc := range p.Delta.StepDetails.ToolCalls {
		key := p.ID + "/" + strconv.Itoa(tc.Index)
		call, seen := s.toolCalls[key]
		if !seen {
			call = ToolCall{Index: tc.Index}
		}
		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Type != "" {
			call.Kind = tc.Type
		}

		var input string
		switch {
		case tc.CodeInterpreter != nil:
			input = tc.CodeInterpreter.Input
		case tc.Function != nil:
			if tc.Function.Name != "" {
				call.Name = tc.Function.Name
			}
			input = tc.Function.Arguments
		}
		s.toolCalls[key] = call

		ev := Event{Kind: KindToolCallDelta, Name: name, RunID: p.RunID}
		if !seen {
			ev.Kind = KindToolCallStarted
		}
		ev.ToolCall = call
		ev.ToolCall.Input = input
		events = append(events, ev)
	}
	return events, nil
}

func decodeRequiresAction(name string, data []byte) ([]Event, error) {
	var run runPayload
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	ev := Event{Kind: KindRequiresAction, Name: name, RunID: run.ID}
	if run.RequiredAction != nil {
		for i, tc := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			ev.ToolCalls = append(ev.ToolCalls, ToolCall{
				ID:    tc.ID,
				Index: i,
				Kind:  tc.Type,
				Name:  tc.Function.Name,
				Input: tc.Function.Arguments,
			})
		}
	}
	return []Event{ev}, nil
}

func decodeRunFailed(name string, data []byte) ([]Event, error) {
	var run runPayload
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	runErr := &RunError{RunID: run.ID, Status: run.Status}
	if runErr.Status == "" {
		runErr.Status = statusFromEvent(name)
	}
	if run.LastError != nil {
		runErr.Code = run.LastError.Code
		runErr.Message = run.LastError.Message
	}
	return []Event{{Kind: KindRunFailed, Name: name, RunID: run.ID, Err: runErr}}, nil
}

func decodeError(name string, data []byte) Event {
	runErr := &RunError{Status: "error"}
	var p errorPayload
	if err := json.Unmarshal(data, &p); err == nil {
		runErr.Code = p.Code
		runErr.Message = p.Message
	} else {
		var text string
		if json.Unmarshal(data, &text) == nil {
			runErr.Message = text
		} else {
			runErr.Message = string(data)
		}
	}
	return Event{Kind: KindRunFailed, Name: name, Err: runErr}
}

func statusFromEvent(name string) string {
	switch name {
	case EventRunCancelled:
		return "cancelled"
	case EventRunExpired:
		return "expired"
	default:
		return "failed"
	}
}
