// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jeranaias/citechat/internal/render"
	"github.com/jeranaias/citechat/internal/session"
	"github.com/jeranaias/citechat/internal/ui/styles"
)

// Session is the part of *session.Controller the view drives.
type Session interface {
	Start(ctx context.Context) error
	Submit(ctx context.Context, text string) error
	Reset(ctx context.Context) error
	DismissError()
	Snapshot() session.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Config holds the model's collaborators.
type Config struct {
	Session  Session
	Renderer *render.Renderer
	Theme    *styles.Theme
	Logger   *zap.Logger

	// Context bounds every session call the view makes. Nil means
	// context.Background.
	Context context.Context
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	session  Session
	renderer *render.Renderer
	theme    *styles.Theme
	log      *zap.Logger
	ctx      context.Context
	keys     KeyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	changes     <-chan struct{}
	unsubscribe func()

	snap    session.Snapshot
	notice  string
	content string
	width   int
	height  int
	ready   bool
}

// New creates the chat model and subscribes to session changes. Call
// Close when the program exits.
func New(cfg Config) Model {
	theme := cfg.Theme
	if theme == nil {
		theme = styles.NewPlainTheme()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.Placeholder = "Ask about your documents..."
	ti.CharLimit = 8192
	ti.Focus()

	vp := viewport.New(80, 20)

	// ASCII frames render on every terminal
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	changes, unsubscribe := cfg.Session.Subscribe()

	return Model{
		session:     cfg.Session,
		renderer:    cfg.Renderer,
		theme:       theme,
		log:         logger.Named("tui"),
		ctx:         ctx,
		keys:        DefaultKeyMap(),
		input:       ti,
		viewport:    vp,
		spinner:     sp,
		changes:     changes,
		unsubscribe: unsubscribe,
		snap:        cfg.Session.Snapshot(),
	}
}

// Close releases the session subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Snapshot returns the last session snapshot the view rendered.
func (m Model) Snapshot() session.Snapshot {
	return m.snap
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the first thread and begins listening for session changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForChange(m.changes),
		m.startCmd(),
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.ready = true
		m.layout()
		m.refreshContent()

	case tea.KeyMsg:
		next, cmd, handled := m.handleKey(msg)
		if handled {
			return next, cmd
		}
		m = next

	case SessionChangedMsg:
		m.snap = m.session.Snapshot()
		m.layout()
		m.refreshContent()
		cmds = append(cmds, waitForChange(m.changes))

	case CatalogReloadedMsg:
		m.content = ""
		m.refreshContent()

	case SessionStartedMsg:
		if msg.Err != nil {
			m.log.Warn("thread creation failed", zap.Error(msg.Err))
		}

	case ResetDoneMsg:
		switch {
		case errors.Is(msg.Err, session.ErrStale):
		case msg.Err != nil:
			m.log.Warn("new thread failed", zap.Error(msg.Err))
		default:
			m.notice = ""
		}

	case SubmitDoneMsg:
		switch {
		case errors.Is(msg.Err, session.ErrBusy):
			m.notice = "Still working on the previous message."
		case errors.Is(msg.Err, session.ErrNoSession):
			m.notice = "No conversation is open. Press C-n to start one."
		case msg.Err != nil:
			m.notice = session.UserMessage(msg.Err)
		default:
			m.notice = ""
			// Keep anything typed since Enter.
			if m.input.Value() == msg.Text {
				m.input.Reset()
			}
		}
		m.layout()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes bindings. handled reports whether the key was
// consumed and must not reach the text input.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Submit):
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil, true
		}
		if !m.snap.InputEnabled {
			m.notice = "Input is disabled until the current response finishes."
			m.layout()
			return m, nil, true
		}
		return m, m.submitCmd(text), true

	case key.Matches(msg, m.keys.NewThread):
		m.notice = ""
		return m, m.resetCmd(), true

	case key.Matches(msg, m.keys.DismissError):
		m.session.DismissError()
		m.notice = ""
		m.layout()
		return m, nil, true

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil, true

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil, true

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil, true

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil, true
	}
	return m, nil, false
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) startCmd() tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		return SessionStartedMsg{Err: s.Start(ctx)}
	}
}

func (m Model) resetCmd() tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		return ResetDoneMsg{Err: s.Reset(ctx)}
	}
}

func (m Model) submitCmd(text string) tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		return SubmitDoneMsg{Text: text, Err: s.Submit(ctx, text)}
	}
}

// =============================================================================
// LAYOUT AND CONTENT
// =============================================================================

// layout sizes the viewport to what the header, banner and input leave.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.input.Width = max(m.width-4, 10)
	m.viewport.Width = m.width

	used := lipgloss.Height(m.headerView()) +
		lipgloss.Height(m.footerView())
	if banner := m.bannerView(); banner != "" {
		used += lipgloss.Height(banner)
	}
	m.viewport.Height = max(m.height-used, 1)
}

// refreshContent renders the transcript into the viewport, following the
// bottom when the user has not scrolled away.
func (m *Model) refreshContent() {
	if m.renderer == nil {
		return
	}
	content := m.renderer.Transcript(m.snap.Transcript)
	if content == m.content {
		return
	}
	follow := m.viewport.AtBottom() || m.content == ""
	m.content = content
	m.viewport.SetContent(content)
	if follow {
		m.viewport.GotoBottom()
	}
}
