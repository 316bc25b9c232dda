// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/citechat/internal/transcript"
)

// ndjson joins relay envelope lines.
func ndjson(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func collect(t *testing.T, body string) []Event {
	t.Helper()
	s := NewStream(io.NopCloser(strings.NewReader(body)), nil)
	defer s.Close()

	var events []Event
	for {
		ev, err := s.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func kinds(events []Event) []Kind {
	out := make([]Kind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

// =============================================================================
// DECODING TESTS
// =============================================================================

func TestStream_TextWithAnnotations(t *testing.T) {
	body := ndjson(
		`{"event":"thread.message.created","data":{"id":"msg_1","role":"assistant"}}`,
		`{"event":"thread.message.delta","data":{"id":"msg_1","delta":{"content":[{"index":0,"type":"text","text":{"value":"Sleep worsens【4:0†source】","annotations":[{"index":0,"type":"file_citation","text":"【4:0†source】","start_index":13,"end_index":25,"file_citation":{"file_id":"file-ABC"}}]}}]}}}`,
		`{"event":"thread.run.completed","data":{"id":"run_1","status":"completed"}}`,
	)

	events := collect(t, body)

	require.Equal(t, []Kind{KindTurnStarted, KindTextFragment, KindRunCompleted}, kinds(events))
	frag := events[1]
	require.True(t, frag.HasValue)
	require.Equal(t, "Sleep worsens【4:0†source】", frag.Value)
	want := []transcript.Annotation{{
		Type:   transcript.AnnotationFileCitation,
		Text:   "【4:0†source】",
		FileID: "file-ABC",
		Start:  13,
		End:    25,
	}}
	if diff := cmp.Diff(want, frag.Annotations); diff != "" {
		t.Errorf("annotations mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "run_1", events[2].RunID)
}

func TestStream_AnnotationOnlyDelta(t *testing.T) {
	body := ndjson(`{"event":"thread.message.delta","data":{"delta":{"content":[{"index":0,"type":"text","text":{"annotations":[{"type":"file_path","text":"sandbox:/x.csv","file_path":{"file_id":"file-CSV"}}]}}]}}}`)

	events := collect(t, body)

	require.Len(t, events, 1)
	require.False(t, events[0].HasValue)
	require.Equal(t, "file-CSV", events[0].Annotations[0].FileID)
	require.Equal(t, transcript.AnnotationFilePath, events[0].Annotations[0].Type)
}

func TestStream_ImageProduced(t *testing.T) {
	body := ndjson(`{"event":"thread.message.delta","data":{"delta":{"content":[{"index":1,"type":"image_file","image_file":{"file_id":"file-IMG"}}]}}}`)

	events := collect(t, body)

	require.Len(t, events, 1)
	require.Equal(t, KindImageProduced, events[0].Kind)
	require.Equal(t, "file-IMG", events[0].FileID)
}

func TestStream_ToolCallStartThenDeltas(t *testing.T) {
	body := ndjson(
		`{"event":"thread.run.step.delta","data":{"id":"step_1","run_id":"run_1","delta":{"step_details":{"type":"tool_calls","tool_calls":[{"index":0,"id":"call_1","type":"code_interpreter","code_interpreter":{"input":"","outputs":[]}}]}}}}`,
		`{"event":"thread.run.step.delta","data":{"id":"step_1","delta":{"step_details":{"type":"tool_calls","tool_calls":[{"index":0,"type":"code_interpreter","code_interpreter":{"input":"print(1)"}}]}}}}`,
		`{"event":"thread.run.step.delta","data":{"id":"step_1","delta":{"step_details":{"type":"tool_calls","tool_calls":[{"index":0,"type":"code_interpreter","code_interpreter":{"input":"+1"}}]}}}}`,
		`{"event":"thread.run.step.delta","data":{"id":"step_2","delta":{"step_details":{"type":"tool_calls","tool_calls":[{"index":0,"id":"call_2","type":"function","function":{"name":"lookup","arguments":"{\"q\""}}]}}}}`,
	)

	events := collect(t, body)

	require.Equal(t, []Kind{KindToolCallStarted, KindToolCallDelta, KindToolCallDelta, KindToolCallStarted}, kinds(events))
	require.Equal(t, "call_1", events[0].ToolCall.ID)
	require.Equal(t, ToolCodeInterpreter, events[0].ToolCall.Kind)
	require.Equal(t, "call_1", events[1].ToolCall.ID, "later chunks keep the id from the first")
	require.Equal(t, "print(1)", events[1].ToolCall.Input)
	require.Equal(t, "+1", events[2].ToolCall.Input)
	require.Equal(t, ToolFunction, events[3].ToolCall.Kind)
	require.Equal(t, "lookup", events[3].ToolCall.Name)
}

func TestStream_RequiresAction(t *testing.T) {
	body := ndjson(`{"event":"thread.run.requires_action","data":{"id":"run_9","status":"requires_action","required_action":{"type":"submit_tool_outputs","submit_tool_outputs":{"tool_calls":[{"id":"call_a","type":"function","function":{"name":"weather","arguments":"{}"}},{"id":"call_b","type":"function","function":{"name":"time","arguments":"{}"}}]}}}}`)

	events := collect(t, body)

	require.Len(t, events, 1)
	ev := events[0]
	require.Equal(t, KindRequiresAction, ev.Kind)
	require.Equal(t, "run_9", ev.RunID)
	require.Len(t, ev.ToolCalls, 2)
	require.Equal(t, "call_a", ev.ToolCalls[0].ID)
	require.Equal(t, "weather", ev.ToolCalls[0].Name)
	require.Equal(t, "call_b", ev.ToolCalls[1].ID)
}

func TestStream_RunFailures(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantStatus string
		wantMsg    string
	}{
		{
			name:       "failed with last error",
			line:       `{"event":"thread.run.failed","data":{"id":"run_1","status":"failed","last_error":{"code":"server_error","message":"boom"}}}`,
			wantStatus: "failed",
			wantMsg:    "boom",
		},
		{
			name:       "expired without status",
			line:       `{"event":"thread.run.expired","data":{"id":"run_1"}}`,
			wantStatus: "expired",
		},
		{
			name:       "error event",
			line:       `{"event":"error","data":{"message":"upstream unavailable"}}`,
			wantStatus: "error",
			wantMsg:    "upstream unavailable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := collect(t, ndjson(tt.line))
			require.Len(t, events, 1)
			require.Equal(t, KindRunFailed, events[0].Kind)

			var runErr *RunError
			require.ErrorAs(t, events[0].Err, &runErr)
			require.Equal(t, tt.wantStatus, runErr.Status)
			require.Equal(t, tt.wantMsg, runErr.Message)
		})
	}
}

func TestStream_UnknownAndMalformed(t *testing.T) {
	body := ndjson(
		`{"event":"thread.run.step.created","data":{"id":"step_1"}}`,
		`{"event":"thread.message.delta","data":"not an object"}`,
		`{not json`,
		`{"data":{}}`,
	)

	events := collect(t, body)

	require.Len(t, events, 4)
	for i, ev := range events {
		require.Equal(t, KindUnknown, ev.Kind, "event %d", i)
	}
	require.Equal(t, "thread.run.step.created", events[0].Name)
	require.NoError(t, events[0].Err)
	require.Error(t, events[1].Err)
	require.Error(t, events[2].Err)
	require.Error(t, events[3].Err)
}

func TestStream_SSEFraming(t *testing.T) {
	body := "event: thread.message.created\ndata: {}\n\n" +
		"event: thread.message.delta\ndata: {\"delta\":{\"content\":[{\"index\":0,\"type\":\"text\",\"text\":{\"value\":\"hi\"}}]}}\n\n" +
		"event: thread.run.completed\ndata: {\"id\":\"run_1\"}\n\n" +
		"event: done\ndata: [DONE]\n\n"

	events := collect(t, body)

	require.Equal(t, []Kind{KindTurnStarted, KindTextFragment, KindRunCompleted}, kinds(events))
	require.Equal(t, "hi", events[1].Value)
}

func TestStream_EnvelopeInsideSSEData(t *testing.T) {
	body := "data: {\"event\":\"thread.run.completed\",\"data\":{\"id\":\"run_2\"}}\n\n"

	events := collect(t, body)

	require.Len(t, events, 1)
	require.Equal(t, KindRunCompleted, events[0].Kind)
	require.Equal(t, "run_2", events[0].RunID)
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	s := NewStream(io.NopCloser(strings.NewReader("")), nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestKindString(t *testing.T) {
	require.Equal(t, "requires-action", KindRequiresAction.String())
	require.Equal(t, "unknown", Kind(99).String())
}
