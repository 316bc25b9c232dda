// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/citechat/internal/citation"
	"github.com/jeranaias/citechat/internal/transcript"
	"github.com/jeranaias/citechat/internal/ui/styles"
)

// DefaultWordWrap is used when Options.WordWrap is zero.
const DefaultWordWrap = 80

// Options configures a Renderer.
type Options struct {
	// Theme supplies colors; nil renders plain text.
	Theme *styles.Theme

	// Resolver turns file links into numbered tokens; nil uses the
	// default files path with no catalog.
	Resolver *citation.Resolver

	WordWrap int

	// LabelWidth is the display width document names are cut to in
	// reference lists. Zero uses citation.DefaultLabelWidth.
	LabelWidth int

	// ShowReferences appends a references list under assistant turns.
	ShowReferences bool
}

// Renderer turns transcript turns into terminal text.
// A Renderer is not safe for concurrent use; glamour renderers keep state.
type Renderer struct {
	theme          *styles.Theme
	resolver       *citation.Resolver
	md             *glamour.TermRenderer
	wrap           int
	labelWidth     int
	showReferences bool
	code           codeHighlighter
}

// New creates a Renderer.
func New(opts Options) (*Renderer, error) {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewPlainTheme()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = citation.NewResolver(citation.DefaultFilesPath, nil)
	}
	wrap := opts.WordWrap
	if wrap <= 0 {
		wrap = DefaultWordWrap
	}
	labelWidth := opts.LabelWidth
	if labelWidth <= 0 {
		labelWidth = citation.DefaultLabelWidth
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(theme.GlamourStyle()),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}

	return &Renderer{
		theme:          theme,
		resolver:       resolver,
		md:             md,
		wrap:           wrap,
		labelWidth:     labelWidth,
		showReferences: opts.ShowReferences,
		code:           newCodeHighlighter(theme),
	}, nil
}

// Transcript renders every turn separated by blank lines.
func (r *Renderer) Transcript(t transcript.Transcript) string {
	turns := t.Turns()
	parts := make([]string, 0, len(turns))
	for _, turn := range turns {
		parts = append(parts, r.Turn(turn))
	}
	return strings.Join(parts, "\n\n")
}

// Turn renders one turn with its role label.
func (r *Renderer) Turn(turn transcript.Turn) string {
	switch turn.Role {
	case transcript.RoleUser:
		return r.theme.UserLabel.Render(turn.Role.DisplayName()) + "\n" +
			r.theme.UserText.Width(r.wrap).Render(turn.Text)

	case transcript.RoleTool:
		return r.theme.ToolLabel.Render(turn.Role.DisplayName()) + "\n" +
			r.Code(turn.Text, "python")

	default:
		body, _ := r.Answer(turn.Text)
		return r.theme.AssistantLabel.Render(turn.Role.DisplayName()) + "\n" + body
	}
}

// Answer resolves citations in an assistant turn and renders it as
// markdown, followed by the references list when enabled. The resolved
// references are returned for callers that offer downloads.
func (r *Renderer) Answer(text string) (string, []citation.DocumentReference) {
	res := r.resolver.Resolve(text)
	body := r.Markdown(res.Text)
	if r.showReferences && len(res.References) > 0 {
		body += "\n" + r.References(res.References)
	}
	return body, res.References
}

// Markdown renders markdown text, returning it unchanged when rendering fails.
func (r *Renderer) Markdown(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// References renders a numbered list of cited documents:
//
//	References
//	[1] Annual Report.pdf  http://host/api/files/file-abc
func (r *Renderer) References(refs []citation.DocumentReference) string {
	if len(refs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(r.theme.ReferencesTitle.Render("References"))
	for _, ref := range refs {
		b.WriteString("\n")
		b.WriteString(r.theme.ReferenceIndex.Render(ref.Token()))
		b.WriteString(" ")
		b.WriteString(r.theme.ReferenceName.Render(citation.ShortName(ref.Name, r.labelWidth)))
		if ref.URL != "" {
			b.WriteString("  ")
			b.WriteString(r.theme.Link.Render(ref.URL))
		}
	}
	return b.String()
}

// Banner renders the dismissible error banner. An empty message renders
// nothing.
func (r *Renderer) Banner(message, hint string) string {
	if message == "" {
		return ""
	}
	content := r.theme.ErrorTitle.Render(styles.StatusIndicators.Error+" Error") + " " + message
	if hint != "" {
		content += "\n" + r.theme.ErrorHint.Render(hint)
	}
	width := r.wrap
	if r.theme.Width > 0 && r.theme.Width-2 < width {
		width = r.theme.Width - 2
	}
	return r.theme.ErrorBanner.Width(width).Render(content)
}
