// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat for citechat.
//
// Command: chat
// Short:   Chat in the terminal without the full-screen view
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /new, /n            Start a new thread
//   /refs, /r           List references of the last answer
//   /get <k>            Download reference k
//   /save [md|json]     Save the conversation to the download directory
//   /quit, /q           Exit chat
//   Ctrl+C              Abandon the current response
//   Ctrl+D              Exit chat

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/citechat/internal/citation"
	"github.com/jeranaias/citechat/internal/config"
	"github.com/jeranaias/citechat/internal/export"
	"github.com/jeranaias/citechat/internal/session"
	"github.com/jeranaias/citechat/internal/transcript"
	"github.com/jeranaias/citechat/internal/ui/styles"
)

const historyFileName = "chat_history"

func newChatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal without the full-screen view",
		Long: `Starts an interactive chat that prints each answer as it completes.

Interactive commands:
  /new          start a new thread
  /refs         list references of the last answer
  /get <k>      download reference k to files.download_dir
  /save [fmt]   save the conversation as md (default) or json
  /quit         exit (Ctrl+D also exits)

Ctrl+C abandons the response in progress and starts a new thread.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context())
		},
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of input per prompt. io.EOF ends the chat.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// historyReader provides line editing and persistent history on a terminal.
type historyReader struct {
	line        *liner.State
	historyFile string
}

// newHistoryReader creates a liner-backed reader with history loaded from
// the config directory.
func newHistoryReader() *historyReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &historyReader{line: line, historyFile: filepath.Join(dir, historyFileName)}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// ReadInput reads a line; Ctrl+C at the prompt reads as an empty line.
func (r *historyReader) ReadInput(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (r *historyReader) Close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	_ = r.line.Close()
}

// plainReader reads lines from a non-terminal input such as a pipe.
type plainReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newPlainReader(in io.Reader, out io.Writer) *plainReader {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &plainReader{scanner: s, out: out}
}

func (r *plainReader) ReadInput(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		fmt.Fprintln(r.out)
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *plainReader) Close() {}

// =============================================================================
// CHAT LOOP
// =============================================================================

// runChat runs the line-mode chat until /quit or end of input.
func (a *app) runChat(ctx context.Context) error {
	theme := themeFor(a.streams.Out, a.cfg.UI.Theme)
	st, err := newStack(a.cfg, theme, a.log)
	if err != nil {
		return err
	}
	defer st.controller.Close()

	var lines lineReader
	if isTerminal(a.streams.In) && isTerminal(a.streams.Out) {
		lines = newHistoryReader()
	} else {
		lines = newPlainReader(a.streams.In, a.streams.Out)
	}
	defer lines.Close()

	r := &repl{
		st:          st,
		theme:       theme,
		out:         a.streams.Out,
		downloadDir: a.cfg.Files.DownloadDir,
		log:         a.log,
	}
	return r.run(ctx, lines)
}

// repl is the line-mode conversation over one session controller.
type repl struct {
	st          *stack
	theme       *styles.Theme
	out         io.Writer
	downloadDir string
	log         *zap.Logger

	// answer is the most recent assistant turn that cited documents.
	answer string
}

// references resolves the last answer again so names learned from
// downloads show up.
func (r *repl) references() []citation.DocumentReference {
	if r.answer == "" {
		return nil
	}
	return r.st.resolver.Resolve(r.answer).References
}

func (r *repl) run(ctx context.Context, lines lineReader) error {
	r.printWelcome()

	if err := r.st.controller.Start(ctx); err != nil {
		r.printError(err)
	}

	prompt := "> "
	if !r.theme.Plain {
		prompt = r.theme.InputPrompt.Render(">") + " "
	}

	for {
		input, err := lines.ReadInput(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out, r.theme.Muted.Render("Goodbye."))
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if quit := r.command(ctx, input); quit {
				fmt.Fprintln(r.out, r.theme.Muted.Render("Goodbye."))
				return nil
			}
			continue
		}
		r.send(ctx, input)
	}
}

// command handles a slash command and reports whether to quit.
func (r *repl) command(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/q", "/exit":
		return true
	case "/help", "/h", "/?":
		r.printHelp()
	case "/new", "/n":
		r.reset(ctx)
	case "/refs", "/r":
		refs := r.references()
		if len(refs) == 0 {
			fmt.Fprintln(r.out, r.theme.Muted.Render("No references in the last answer."))
			return false
		}
		fmt.Fprintln(r.out, r.st.renderer.References(refs))
	case "/get":
		if len(fields) != 2 {
			r.printError(newUsageError("/get", "expected one reference number", "/get 1"))
			return false
		}
		r.download(ctx, fields[1])
	case "/save":
		format := ""
		if len(fields) > 1 {
			format = fields[1]
		}
		r.save(format)
	default:
		r.printError(newUsageError(fields[0], "unknown command", "/help"))
	}
	return false
}

// send submits text and prints the turns the response added. Ctrl+C
// abandons the response and starts a new thread.
func (r *repl) send(ctx context.Context, text string) {
	before := r.st.controller.Snapshot().Transcript.Len()

	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := r.st.controller.Submit(sendCtx, text); err != nil {
		r.printError(err)
		return
	}
	r.st.controller.Wait()

	if sendCtx.Err() != nil && ctx.Err() == nil {
		fmt.Fprintln(r.out, r.theme.Muted.Render("Response abandoned."))
		r.reset(ctx)
		return
	}

	snap := r.st.controller.Snapshot()
	r.printTurns(snap.Transcript, before)
	if snap.LastError != nil {
		r.st.controller.DismissError()
	}
}

// printTurns prints the response turns appended after index from.
func (r *repl) printTurns(t transcript.Transcript, from int) {
	for i := from; i < t.Len(); i++ {
		turn := t.Turn(i)
		if turn.Role == transcript.RoleUser {
			continue
		}
		fmt.Fprintln(r.out, r.st.renderer.Turn(turn))
		fmt.Fprintln(r.out)
		if turn.Role == transcript.RoleAssistant {
			if len(r.st.resolver.Resolve(turn.Text).References) > 0 {
				r.answer = turn.Text
			}
		}
	}
}

func (r *repl) reset(ctx context.Context) {
	if err := r.st.controller.Reset(ctx); err != nil {
		r.printError(err)
		return
	}
	r.answer = ""
	fmt.Fprintln(r.out, r.theme.Muted.Render("Started a new thread."))
}

// download saves reference k of the last answer into the download directory.
func (r *repl) download(ctx context.Context, arg string) {
	refs := r.references()
	k, err := strconv.Atoi(arg)
	if err != nil || k < 1 || k > len(refs) {
		r.printError(newUsageError("/get", fmt.Sprintf("no reference %q; the last answer has %d", arg, len(refs)), "/get 1"))
		return
	}
	ref := refs[k-1]
	path, err := saveFile(ctx, r.st, ref.FileID, ref.Name, r.downloadDir)
	if err != nil {
		r.printError(err)
		return
	}
	r.log.Info("reference saved", zap.String("file_id", ref.FileID), zap.String("path", path))
	fmt.Fprintf(r.out, "Saved %s %s\n", ref.Token(), path)
}

// save exports the conversation so far.
func (r *repl) save(format string) {
	exporter, err := export.ForFormat(format)
	if err != nil {
		r.printError(newUsageError("/save", err.Error(), "/save json"))
		return
	}
	snap := r.st.controller.Snapshot()
	doc := export.Build(snap.SessionID, snap.Transcript, r.st.resolver, time.Now())
	path, err := export.ExportToFile(doc, exporter, r.downloadDir)
	if err != nil {
		r.printError(err)
		return
	}
	r.log.Info("conversation saved", zap.String("path", path), zap.String("format", exporter.MimeType()))
	fmt.Fprintf(r.out, "Saved conversation to %s\n", path)
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *repl) printWelcome() {
	fmt.Fprintln(r.out, r.theme.HeaderTitle.Render("citechat")+" "+r.theme.Muted.Render("type /help for commands, Ctrl+D to exit"))
	fmt.Fprintln(r.out)
}

func (r *repl) printHelp() {
	help := []struct{ cmd, desc string }{
		{"/new", "start a new thread"},
		{"/refs", "list references of the last answer"},
		{"/get <k>", "download reference k"},
		{"/save", "save the conversation (md or json)"},
		{"/quit", "exit"},
	}
	for _, h := range help {
		fmt.Fprintf(r.out, "  %s  %s\n", r.theme.ShortcutKey.Render(fmt.Sprintf("%-9s", h.cmd)), r.theme.ShortcutDesc.Render(h.desc))
	}
}

func (r *repl) printError(err error) {
	var usageErr *UsageError
	var msg string
	switch {
	case errors.As(err, &usageErr):
		msg = usageErr.Error()
	case errors.Is(err, session.ErrNoSession):
		msg = "No conversation is open. Use /new to start one."
	default:
		msg = session.UserMessage(err)
	}
	fmt.Fprintln(r.out, r.st.renderer.Banner(msg, ""))
}
