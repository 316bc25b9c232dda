// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/citechat/internal/citation"
	"github.com/jeranaias/citechat/internal/transcript"
	"github.com/jeranaias/citechat/internal/util"
)

// ErrEmpty is returned when there is nothing to export.
var ErrEmpty = errors.New("conversation has no turns")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a document to the target format.
	Export(doc *Document) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type of the exported format.
	MimeType() string
}

// ForFormat returns the exporter for a format name: "md", "markdown" or
// "json". An empty name selects Markdown.
func ForFormat(name string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "md", "markdown":
		return NewMarkdownExporter(), nil
	case "json":
		return NewJSONExporter(), nil
	}
	return nil, fmt.Errorf("unsupported export format %q (use md or json)", name)
}

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is a transcript with citations resolved, ready to export.
type Document struct {
	ThreadID   string    `json:"thread_id"`
	ExportedAt time.Time `json:"exported_at"`
	Turns      []DocTurn `json:"turns"`
}

// DocTurn is one exported turn. Text has citation markers replaced by
// their positional tokens.
type DocTurn struct {
	ID         string                       `json:"id"`
	Role       transcript.Role              `json:"role"`
	Text       string                       `json:"text"`
	References []citation.DocumentReference `json:"references,omitempty"`
}

// Build resolves every assistant turn of t. resolver may be nil, in which
// case text is exported as is.
func Build(threadID string, t transcript.Transcript, resolver *citation.Resolver, now time.Time) *Document {
	doc := &Document{
		ThreadID:   threadID,
		ExportedAt: now,
		Turns:      make([]DocTurn, 0, t.Len()),
	}
	for _, turn := range t.Turns() {
		dt := DocTurn{ID: turn.ID, Role: turn.Role, Text: turn.Text}
		if turn.Role == transcript.RoleAssistant && resolver != nil {
			res := resolver.Resolve(turn.Text)
			dt.Text = res.Text
			dt.References = res.References
		}
		doc.Turns = append(doc.Turns, dt)
	}
	return doc
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile exports doc into dir and returns the written path. An
// existing file is never overwritten.
func ExportToFile(doc *Document, exporter Exporter, dir string) (string, error) {
	if doc == nil || len(doc.Turns) == 0 {
		return "", ErrEmpty
	}

	content, err := exporter.Export(doc)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	return util.WriteUniqueFile(dir, FileName(doc, exporter), content, 0644)
}

// FileName returns the default file name for doc, for example
// "citechat_thread_abc_20250102_150405.md".
func FileName(doc *Document, exporter Exporter) string {
	stem := "citechat"
	if doc.ThreadID != "" {
		stem += "_" + doc.ThreadID
	}
	stem += "_" + doc.ExportedAt.Format("20060102_150405")
	return util.SafeFilename(stem+exporter.FileExtension(), "citechat"+exporter.FileExtension())
}
