// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func readFrames(t *testing.T, input string) []Frame {
	t.Helper()
	r := NewFrameReader(strings.NewReader(input))
	var frames []Frame
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		frames = append(frames, f)
	}
}

func TestFrameReader_SSE(t *testing.T) {
	input := "event: thread.message.created\ndata: {\"id\":\"msg_1\"}\n\n" +
		": keep-alive\n\n" +
		"event: thread.message.delta\r\ndata: {\"a\":1,\r\ndata: \"b\":2}\r\n\r\n"

	frames := readFrames(t, input)

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Event != EventMessageCreated || string(frames[0].Data) != `{"id":"msg_1"}` {
		t.Errorf("frame 0 = %q %q", frames[0].Event, frames[0].Data)
	}
	if frames[1].Event != EventMessageDelta || string(frames[1].Data) != "{\"a\":1,\n\"b\":2}" {
		t.Errorf("frame 1 = %q %q", frames[1].Event, frames[1].Data)
	}
}

func TestFrameReader_NDJSON(t *testing.T) {
	input := `{"event":"thread.message.created","data":{}}` + "\n" +
		`{"event":"thread.run.completed","data":{"id":"run_1"}}` + "\n"

	frames := readFrames(t, input)

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	for i, f := range frames {
		if f.Event != "" {
			t.Errorf("frame %d Event = %q, want empty for JSON lines", i, f.Event)
		}
	}
	if !strings.Contains(string(frames[1].Data), "run_1") {
		t.Errorf("frame 1 Data = %q", frames[1].Data)
	}
}

func TestFrameReader_DoneMarkerEndsStream(t *testing.T) {
	input := "data: {\"event\":\"x\"}\n\ndata: [DONE]\n\ndata: {\"event\":\"late\"}\n\n"

	frames := readFrames(t, input)

	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
}

func TestFrameReader_TrailingEventWithoutBlankLine(t *testing.T) {
	frames := readFrames(t, "event: thread.run.completed\ndata: {}")

	if len(frames) != 1 || frames[0].Event != EventRunCompleted {
		t.Fatalf("frames = %+v", frames)
	}
}

func TestFrameReader_TooLarge(t *testing.T) {
	input := "data: " + strings.Repeat("x", MaxFrameSize+10) + "\n\n"
	r := NewFrameReader(strings.NewReader(input))

	_, err := r.Next()
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("Next() error = %v, want ErrFrameTooLarge", err)
	}
}
