// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"io"
	"sync"

	"github.com/jeranaias/citechat/internal/assistant"
	"github.com/jeranaias/citechat/internal/transcript"
)

// recordingSink is an in-memory Sink that can be marked stale.
type recordingSink struct {
	mu           sync.Mutex
	t            transcript.Transcript
	loading      bool
	inputEnabled bool
	stale        bool
	failures     []error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		t:       transcript.New().AppendTurn(transcript.RoleUser, "question"),
		loading: true,
	}
}

func (s *recordingSink) Update(fn func(transcript.Transcript) transcript.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		return ErrStale
	}
	s.t = fn(s.t)
	return nil
}

func (s *recordingSink) SetLoading(loading bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		return ErrStale
	}
	s.loading = loading
	return nil
}

func (s *recordingSink) SetInputEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		return ErrStale
	}
	s.inputEnabled = enabled
	return nil
}

func (s *recordingSink) Fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		return ErrStale
	}
	s.failures = append(s.failures, err)
	s.t = s.t.AppendTurn(transcript.RoleAssistant, "Error: "+err.Error())
	s.loading = false
	s.inputEnabled = true
	return nil
}

func (s *recordingSink) markStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() (transcript.Transcript, bool, bool, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t, s.loading, s.inputEnabled, append([]error(nil), s.failures...)
}

// sliceSource replays events, then returns end (io.EOF when nil).
type sliceSource struct {
	events []assistant.Event
	end    error
	// after runs once the event at the given index has been returned.
	after map[int]func()

	mu     sync.Mutex
	pos    int
	closed bool
}

func (s *sliceSource) Next() (assistant.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos > 0 {
		if fn := s.after[s.pos-1]; fn != nil {
			delete(s.after, s.pos-1)
			fn()
		}
	}
	if s.pos >= len(s.events) {
		if s.end != nil {
			return assistant.Event{}, s.end
		}
		return assistant.Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *sliceSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *sliceSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// blockingSource delivers events from a channel until closed.
type blockingSource struct {
	events chan assistant.Event
	done   chan struct{}
	once   sync.Once
}

func newBlockingSource() *blockingSource {
	return &blockingSource{events: make(chan assistant.Event), done: make(chan struct{})}
}

func (s *blockingSource) Next() (assistant.Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.done:
		return assistant.Event{}, io.ErrClosedPipe
	}
}

func (s *blockingSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func openSource(src EventSource) Opener {
	return func(context.Context) (EventSource, error) { return src, nil }
}

func noSubmit(context.Context, string, []assistant.ToolOutput) (EventSource, error) {
	panic("unexpected action submission")
}
