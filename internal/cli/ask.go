// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command for citechat.
//
// Command: ask
// Short:   Ask a single question and print the answer
//
// Examples:
//   citechat ask "What does the report say about revenue?"
//   citechat ask --raw "Summarise section 2" > answer.md
//   echo "question" | citechat ask -
//
// Piped output is plain text; a terminal gets styled markdown.

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/citechat/internal/citation"
	"github.com/jeranaias/citechat/internal/transcript"
)

// maxQuestionBytes bounds a question read from stdin.
const maxQuestionBytes = 1 << 20

type askOptions struct {
	raw bool
}

func newAskCommand(a *app) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   `ask "question"`,
		Short: "Ask a single question and print the answer",
		Long: `Creates a thread, sends one question and prints the answer with its
references. Use "-" to read the question from stdin.`,
		Example: `  citechat ask "What does the report say about revenue?"
  citechat ask --raw "Summarise section 2" > answer.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := readQuestion(a.streams.In, args)
			if err != nil {
				return err
			}
			return a.runAsk(cmd.Context(), question, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print the answer as markdown with numbered citations, without styling")
	return cmd
}

// readQuestion joins args, or reads stdin when the only argument is "-".
func readQuestion(in io.Reader, args []string) (string, error) {
	question := strings.Join(args, " ")
	if question == "-" {
		data, err := io.ReadAll(io.LimitReader(in, maxQuestionBytes))
		if err != nil {
			return "", fmt.Errorf("read question: %w", err)
		}
		question = string(data)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", newUsageError("ask", "question is empty", `citechat ask "What changed?"`)
	}
	return question, nil
}

// runAsk sends one question and prints the response turns.
func (a *app) runAsk(ctx context.Context, question string, opts askOptions) error {
	theme := themeFor(a.streams.Out, a.cfg.UI.Theme)
	st, err := newStack(a.cfg, theme, a.log)
	if err != nil {
		return err
	}
	defer st.controller.Close()

	if err := st.controller.Start(ctx); err != nil {
		return err
	}
	if err := st.controller.Submit(ctx, question); err != nil {
		return err
	}
	st.controller.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	snap := st.controller.Snapshot()
	turns := snap.Transcript.Turns()
	a.log.Debug("answer received",
		zap.String("thread_id", snap.SessionID),
		zap.Int("turns", len(turns)))

	for _, turn := range turns {
		if turn.Role == transcript.RoleUser {
			continue
		}
		if opts.raw {
			fmt.Fprintln(a.streams.Out, rawTurn(st.resolver, turn))
			continue
		}
		fmt.Fprintln(a.streams.Out, st.renderer.Turn(turn))
	}
	return snap.LastError
}

// rawTurn formats a turn as markdown with citations replaced by tokens and
// a trailing references list.
func rawTurn(resolver *citation.Resolver, turn transcript.Turn) string {
	if turn.Role == transcript.RoleTool {
		return "```python\n" + strings.TrimRight(turn.Text, "\n") + "\n```"
	}
	res := resolver.Resolve(turn.Text)
	var b strings.Builder
	b.WriteString(res.Text)
	if len(res.References) > 0 {
		b.WriteString("\n\n")
		for _, ref := range res.References {
			fmt.Fprintf(&b, "%s %s <%s>\n", ref.Token(), ref.Name, ref.URL)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
