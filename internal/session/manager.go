// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/citechat/internal/assistant"
	"github.com/jeranaias/citechat/internal/dispatch"
	"github.com/jeranaias/citechat/internal/transcript"
)

// Error variables for session operations.
var (
	// ErrNoSession indicates no thread exists yet, or its creation failed.
	ErrNoSession = errors.New("no active session")

	// ErrBusy indicates input is disabled while a run or reset is in flight.
	ErrBusy = errors.New("a response is still in progress")

	// ErrClosed indicates the controller has been closed.
	ErrClosed = errors.New("session closed")

	// ErrStale is returned when an operation was superseded by a reset.
	ErrStale = dispatch.ErrStale
)

// Relay is the subset of the relay client the controller uses.
// *assistant.Client implements it.
type Relay interface {
	CreateThread(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, threadID, content string) (*assistant.Stream, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []assistant.ToolOutput) (*assistant.Stream, error)
}

// Config holds the controller's collaborators.
type Config struct {
	Relay      Relay
	Dispatcher *dispatch.Dispatcher
	Logger     *zap.Logger
}

// Snapshot is a consistent view of the session at one point in time.
type Snapshot struct {
	SessionID    string
	Generation   uint64
	Transcript   transcript.Transcript
	InputEnabled bool
	Loading      bool
	Resetting    bool
	LastError    error
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller manages one conversation at a time.
type Controller struct {
	relay      Relay
	dispatcher *dispatch.Dispatcher
	log        *zap.Logger

	mu           sync.Mutex
	sessionID    string
	generation   uint64
	transcript   transcript.Transcript
	inputEnabled bool
	loading      bool
	resetting    bool
	lastError    error
	closed       bool

	// genCtx is cancelled when the generation ends.
	genCtx    context.Context
	genCancel context.CancelFunc

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}

	wg sync.WaitGroup
}

// New creates a controller. Call Start to create the first thread.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		relay:      cfg.Relay,
		dispatcher: cfg.Dispatcher,
		log:        logger.Named("session"),
		subs:       make(map[chan struct{}]struct{}),
	}
}

// Start creates the first thread.
func (c *Controller) Start(ctx context.Context) error {
	return c.recreate(ctx, "start")
}

// Reset abandons the current conversation and creates a fresh thread. The
// transcript and error are cleared immediately and input stays disabled
// until the new thread exists. Streams of the old thread keep running on
// the server but their events are discarded. A reset that is itself
// superseded by a later one returns ErrStale.
func (c *Controller) Reset(ctx context.Context) error {
	return c.recreate(ctx, "reset")
}

func (c *Controller) recreate(ctx context.Context, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.generation++
	gen := c.generation
	if c.genCancel != nil {
		c.genCancel()
		c.genCtx, c.genCancel = nil, nil
	}
	c.sessionID = ""
	c.transcript = transcript.Transcript{}
	c.lastError = nil
	c.inputEnabled = false
	c.loading = false
	c.resetting = true
	c.mu.Unlock()
	c.notify()

	log := c.log.With(zap.String("reason", reason), zap.Uint64("generation", gen))
	log.Debug("creating thread")

	id, err := c.relay.CreateThread(ctx)

	c.mu.Lock()
	if gen != c.generation || c.closed {
		c.mu.Unlock()
		log.Debug("discarding superseded thread", zap.String("thread_id", id))
		return ErrStale
	}
	c.resetting = false
	c.inputEnabled = true
	if err != nil {
		c.lastError = err
		c.transcript = c.transcript.AppendTurn(transcript.RoleAssistant, errorText(err))
	} else {
		c.sessionID = id
		c.genCtx, c.genCancel = context.WithCancel(context.Background())
	}
	c.mu.Unlock()
	c.notify()

	if err != nil {
		log.Warn("thread creation failed", zap.Error(err))
		return err
	}
	log.Info("session ready", zap.String("thread_id", id))
	return nil
}

// Submit appends the user's text to the transcript and streams the
// assistant's response in the background. Whitespace-only text is ignored.
// The response is abandoned when ctx is cancelled or the session resets.
// After a cancelled ctx the partial answer is kept and input is enabled
// again.
func (c *Controller) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.resetting:
		c.mu.Unlock()
		return ErrBusy
	case c.sessionID == "":
		c.mu.Unlock()
		return ErrNoSession
	case !c.inputEnabled:
		c.mu.Unlock()
		return ErrBusy
	}
	c.transcript = c.transcript.AppendTurn(transcript.RoleUser, text)
	c.inputEnabled = false
	c.loading = true
	threadID := c.sessionID
	sink := &binding{c: c, gen: c.generation, sessionID: threadID}

	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.genCtx, cancel)
	c.wg.Add(1)
	c.mu.Unlock()
	c.notify()

	sub := dispatch.Submission{
		ThreadID: threadID,
		Open: func(ctx context.Context) (dispatch.EventSource, error) {
			stream, err := c.relay.SendMessage(ctx, threadID, text)
			if err != nil {
				return nil, err
			}
			return stream, nil
		},
		Submit: func(ctx context.Context, runID string, outputs []assistant.ToolOutput) (dispatch.EventSource, error) {
			stream, err := c.relay.SubmitToolOutputs(ctx, threadID, runID, outputs)
			if err != nil {
				return nil, err
			}
			return stream, nil
		},
		Sink: sink,
	}

	go func() {
		defer c.wg.Done()
		defer cancel()
		defer stop()
		_ = c.dispatcher.Run(runCtx, sub)
		if runCtx.Err() != nil {
			if err := sink.abandon(); err == nil {
				c.log.Debug("response abandoned", zap.String("thread_id", threadID))
			}
		}
	}()
	return nil
}

// DismissError clears the user-visible error.
func (c *Controller) DismissError() {
	c.mu.Lock()
	changed := c.lastError != nil
	c.lastError = nil
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionID:    c.sessionID,
		Generation:   c.generation,
		Transcript:   c.transcript,
		InputEnabled: c.inputEnabled,
		Loading:      c.loading,
		Resetting:    c.resetting,
		LastError:    c.lastError,
	}
}

// Wait blocks until every background stream has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close abandons the current session and waits for its streams to stop.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.generation++
		if c.genCancel != nil {
			c.genCancel()
			c.genCtx, c.genCancel = nil, nil
		}
	}
	c.mu.Unlock()

	c.wg.Wait()

	c.subsMu.Lock()
	for ch := range c.subs {
		close(ch)
		delete(c.subs, ch)
	}
	c.subsMu.Unlock()
}

// =============================================================================
// CHANGE NOTIFICATION
// =============================================================================

// Subscribe returns a channel that receives a value after state changes.
// Notifications coalesce: a slow reader sees one pending value, not one per
// change, and should read Snapshot after each. The returned function
// unsubscribes and closes the channel.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.subsMu.Lock()
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
			c.subsMu.Unlock()
		})
	}
}

// notify must be called without c.mu held.
func (c *Controller) notify() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// =============================================================================
// FENCED SINK
// =============================================================================

// binding is the dispatch.Sink of one submission. It writes only while the
// session it was created for is still current.
type binding struct {
	c         *Controller
	gen       uint64
	sessionID string
}

func (b *binding) apply(fn func(c *Controller)) error {
	c := b.c
	c.mu.Lock()
	if c.generation != b.gen || c.sessionID != b.sessionID {
		c.mu.Unlock()
		return ErrStale
	}
	fn(c)
	c.mu.Unlock()
	c.notify()
	return nil
}

func (b *binding) Update(fn func(transcript.Transcript) transcript.Transcript) error {
	return b.apply(func(c *Controller) {
		c.transcript = fn(c.transcript)
	})
}

func (b *binding) SetLoading(loading bool) error {
	return b.apply(func(c *Controller) {
		c.loading = loading
	})
}

func (b *binding) SetInputEnabled(enabled bool) error {
	return b.apply(func(c *Controller) {
		c.inputEnabled = enabled
	})
}

// abandon ends a cancelled submission without recording an error.
func (b *binding) abandon() error {
	return b.apply(func(c *Controller) {
		c.loading = false
		c.inputEnabled = true
	})
}

func (b *binding) Fail(err error) error {
	return b.apply(func(c *Controller) {
		c.lastError = err
		c.transcript = c.transcript.AppendTurn(transcript.RoleAssistant, errorText(err))
		c.loading = false
		c.inputEnabled = true
	})
}

// errorText is the synthetic assistant turn shown for a failure.
func errorText(err error) string {
	return "Error: " + UserMessage(err)
}

// UserMessage converts an error into a short message for the user.
func UserMessage(err error) string {
	var apiErr *assistant.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, assistant.ErrNotConfigured):
		return "the assistant relay is not configured; set relay.base_url"
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Op + " failed: " + apiErr.Message
	case errors.Is(err, dispatch.ErrStreamEnded):
		return "the response stream ended unexpectedly"
	}
	return err.Error()
}
