// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/citechat/internal/transcript"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports documents as Markdown with YAML frontmatter.
type MarkdownExporter struct{}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter() *MarkdownExporter {
	return &MarkdownExporter{}
}

// Export converts a document to Markdown. Each assistant turn is followed
// by its numbered references as links.
func (e *MarkdownExporter) Export(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	var sb strings.Builder

	sb.WriteString("---\n")
	if doc.ThreadID != "" {
		fmt.Fprintf(&sb, "thread: %s\n", escapeYAML(doc.ThreadID))
	}
	fmt.Fprintf(&sb, "exported: %s\n", doc.ExportedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "turns: %d\n", len(doc.Turns))
	sb.WriteString("generator: citechat\n")
	sb.WriteString("---\n\n")

	sb.WriteString("# Conversation\n")

	for _, turn := range doc.Turns {
		fmt.Fprintf(&sb, "\n### %s\n\n", turn.Role.DisplayName())

		text := strings.TrimSpace(turn.Text)
		if turn.Role == transcript.RoleTool {
			text = fence(text, "python")
		}
		sb.WriteString(text)
		sb.WriteString("\n")

		if len(turn.References) > 0 {
			sb.WriteString("\n")
			for _, ref := range turn.References {
				fmt.Fprintf(&sb, "%s [%s](%s)  \n", escapeMarkdown(ref.Token()), escapeMarkdown(ref.Name), ref.URL)
			}
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// fence wraps code in a fence longer than any backtick run inside it.
func fence(code, lang string) string {
	marker := "```"
	for strings.Contains(code, marker) {
		marker += "`"
	}
	return marker + lang + "\n" + code + "\n" + marker
}

// escapeMarkdown escapes characters that would turn plain text into
// formatting or links.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes a value that contains YAML special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return "\"" + s + "\""
	}
	return s
}
