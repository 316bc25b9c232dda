// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/citechat/internal/assistant"
	"github.com/jeranaias/citechat/internal/transcript"
)

// Config configures a Dispatcher.
type Config struct {
	// Formatter builds citation links and image embeds. Required.
	Formatter Formatter
	// Tools handles calls the run requires action on. Nil answers every
	// call with an empty output.
	Tools ToolHandler
	// InterpreterKinds are the tool kinds shown as tool turns.
	// Nil means code_interpreter only.
	InterpreterKinds []string
	Logger           *zap.Logger
}

// Dispatcher consumes event streams and applies them to a Sink.
// It holds no per-run state and is safe for concurrent use.
type Dispatcher struct {
	formatter    Formatter
	tools        ToolHandler
	interpreters map[string]bool
	log          *zap.Logger
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		formatter:    cfg.Formatter,
		tools:        cfg.Tools,
		interpreters: make(map[string]bool),
		log:          cfg.Logger,
	}
	if d.tools == nil {
		d.tools = NoopToolHandler
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	kinds := cfg.InterpreterKinds
	if kinds == nil {
		kinds = []string{assistant.ToolCodeInterpreter}
	}
	for _, k := range kinds {
		d.interpreters[k] = true
	}
	return d
}

// Run opens the submission's stream and dispatches it until the run
// completes. Failures are reported through Sink.Fail and returned. A run
// whose session was superseded, or whose context was cancelled, is
// abandoned silently and Run returns nil.
func (d *Dispatcher) Run(ctx context.Context, sub Submission) error {
	log := d.log.With(zap.String("thread_id", sub.ThreadID))

	err := d.run(ctx, sub, sub.Open, StateAwaitingFirstToken, log)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale):
		log.Debug("dropping events of superseded session")
		return nil
	case ctx.Err() != nil:
		log.Debug("submission abandoned", zap.Error(ctx.Err()))
		return nil
	}

	log.Warn("submission failed", zap.Error(err))
	if ferr := sub.Sink.Fail(err); ferr != nil && !errors.Is(ferr, ErrStale) {
		log.Error("failed to record error", zap.Error(ferr))
	}
	return err
}

// run reads one stream to its end. Requires-action events recurse into
// run for the continued stream.
func (d *Dispatcher) run(ctx context.Context, sub Submission, open Opener, initial State, log *zap.Logger) error {
	src, err := open(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	// Next blocks on the network; closing the source unblocks it on cancel.
	stop := context.AfterFunc(ctx, func() { _ = src.Close() })
	defer stop()

	r := &runner{d: d, sub: sub, state: initial, log: log}
	for {
		ev, err := src.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return ErrStreamEnded
			}
			return fmt.Errorf("read stream: %w", err)
		}

		next, err := r.handle(ctx, ev)
		if err != nil {
			return err
		}
		if next != r.state {
			log.Debug("state transition",
				zap.Stringer("from", r.state),
				zap.Stringer("to", next),
				zap.Stringer("event", ev.Kind))
		}
		r.state = next
		if r.state == StateCompleted {
			return nil
		}
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

// handlerFunc handles one event kind and returns the next state.
type handlerFunc func(r *runner, ctx context.Context, ev assistant.Event) (State, error)

// handlers is set in init because requiresAction reaches it again through run.
var handlers map[assistant.Kind]handlerFunc

func init() {
	handlers = map[assistant.Kind]handlerFunc{
		assistant.KindTurnStarted:     (*runner).turnStarted,
		assistant.KindTextFragment:    (*runner).textFragment,
		assistant.KindImageProduced:   (*runner).imageProduced,
		assistant.KindToolCallStarted: (*runner).toolCallStarted,
		assistant.KindToolCallDelta:   (*runner).toolCallDelta,
		assistant.KindRequiresAction:  (*runner).requiresAction,
		assistant.KindRunCompleted:    (*runner).runCompleted,
		assistant.KindRunFailed:       (*runner).runFailed,
	}
}

// runner is the state of one stream being dispatched.
type runner struct {
	d     *Dispatcher
	sub   Submission
	state State
	log   *zap.Logger
}

func (r *runner) handle(ctx context.Context, ev assistant.Event) (State, error) {
	h, ok := handlers[ev.Kind]
	if !ok {
		r.log.Debug("ignoring stream event", zap.String("event", ev.Name), zap.Error(ev.Err))
		return r.state, nil
	}
	return h(r, ctx, ev)
}

func (r *runner) turnStarted(_ context.Context, _ assistant.Event) (State, error) {
	if err := r.sub.Sink.SetLoading(false); err != nil {
		return StateFailed, err
	}
	err := r.sub.Sink.Update(func(t transcript.Transcript) transcript.Transcript {
		return t.AppendTurn(transcript.RoleAssistant, "")
	})
	if err != nil {
		return StateFailed, err
	}
	return StateStreamingText, nil
}

func (r *runner) textFragment(_ context.Context, ev assistant.Event) (State, error) {
	if !ev.HasValue && len(ev.Annotations) == 0 {
		return r.state, nil
	}
	err := r.sub.Sink.Update(func(t transcript.Transcript) transcript.Transcript {
		if ev.HasValue {
			t = t.AppendToOpenTurn(ev.Value)
		}
		if len(ev.Annotations) > 0 {
			t = t.AnnotateOpenTurn(ev.Annotations, r.d.formatter)
		}
		return t
	})
	if err != nil {
		return StateFailed, err
	}
	return StateStreamingText, nil
}

func (r *runner) imageProduced(_ context.Context, ev assistant.Event) (State, error) {
	embed := r.d.formatter.ImageEmbed(ev.FileID)
	err := r.sub.Sink.Update(func(t transcript.Transcript) transcript.Transcript {
		return t.AppendToOpenTurn(embed)
	})
	if err != nil {
		return StateFailed, err
	}
	return r.state, nil
}

func (r *runner) toolCallStarted(_ context.Context, ev assistant.Event) (State, error) {
	if !r.d.interpreters[ev.ToolCall.Kind] {
		return r.state, nil
	}
	r.log.Debug("tool call started",
		zap.String("tool_call_id", ev.ToolCall.ID),
		zap.String("kind", ev.ToolCall.Kind))
	err := r.sub.Sink.Update(func(t transcript.Transcript) transcript.Transcript {
		return t.AppendTurn(transcript.RoleTool, ev.ToolCall.Input)
	})
	if err != nil {
		return StateFailed, err
	}
	return StateStreamingToolCall, nil
}

func (r *runner) toolCallDelta(_ context.Context, ev assistant.Event) (State, error) {
	if !r.d.interpreters[ev.ToolCall.Kind] || ev.ToolCall.Input == "" {
		return r.state, nil
	}
	err := r.sub.Sink.Update(func(t transcript.Transcript) transcript.Transcript {
		return t.AppendToOpenTurn(ev.ToolCall.Input)
	})
	if err != nil {
		return StateFailed, err
	}
	return StateStreamingToolCall, nil
}

// requiresAction runs every pending tool call concurrently, submits the
// outputs and dispatches the continued stream.
func (r *runner) requiresAction(ctx context.Context, ev assistant.Event) (State, error) {
	log := r.log.With(zap.String("run_id", ev.RunID))
	log.Debug("run requires action", zap.Int("tool_calls", len(ev.ToolCalls)))

	outputs := make([]assistant.ToolOutput, len(ev.ToolCalls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range ev.ToolCalls {
		i, call := i, call
		g.Go(func() error {
			out, err := r.d.tools.HandleToolCall(gctx, call)
			if err != nil {
				return fmt.Errorf("%w: tool call %s: %w", assistant.ErrAction, call.ID, err)
			}
			outputs[i] = assistant.ToolOutput{ToolCallID: call.ID, Output: out}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return StateFailed, err
	}

	if err := r.sub.Sink.SetInputEnabled(false); err != nil {
		return StateFailed, err
	}

	runID := ev.RunID
	open := func(ctx context.Context) (EventSource, error) {
		return r.sub.Submit(ctx, runID, outputs)
	}
	if err := r.d.run(ctx, r.sub, open, StateAwaitingAction, log); err != nil {
		return StateFailed, err
	}
	return StateCompleted, nil
}

func (r *runner) runCompleted(_ context.Context, ev assistant.Event) (State, error) {
	r.log.Debug("run completed", zap.String("run_id", ev.RunID))
	if err := r.sub.Sink.SetLoading(false); err != nil {
		return StateFailed, err
	}
	if err := r.sub.Sink.SetInputEnabled(true); err != nil {
		return StateFailed, err
	}
	return StateCompleted, nil
}

func (r *runner) runFailed(_ context.Context, ev assistant.Event) (State, error) {
	if ev.Err != nil {
		return StateFailed, ev.Err
	}
	return StateFailed, &assistant.RunError{RunID: ev.RunID, Status: "failed"}
}
