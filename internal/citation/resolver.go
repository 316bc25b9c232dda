// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultFilesPath is the reference endpoint file links point at.
const DefaultFilesPath = "/api/files"

// DocumentReference is one cited file within a turn.
type DocumentReference struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
	Order  int    `json:"order"`
	URL    string `json:"url"`
}

// Token returns the positional token the reference is rendered as.
func (r DocumentReference) Token() string {
	return Token(r.Order)
}

// Token formats a positional reference token, e.g. "[3]".
func Token(order int) string {
	return "[" + strconv.Itoa(order) + "]"
}

// Result is the outcome of resolving one block of text.
type Result struct {
	Text       string
	References []DocumentReference
}

// Reference returns the reference with the given order number.
func (r Result) Reference(order int) (DocumentReference, bool) {
	if order < 1 || order > len(r.References) {
		return DocumentReference{}, false
	}
	return r.References[order-1], true
}

// Resolver rewrites file links into positional tokens.
// A Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	filesPath string
	urlBase   string
	pattern   *regexp.Regexp
	catalog   *Catalog
}

// NewResolver creates a resolver for links pointing at filesPath
// (for example "/api/files"). catalog may be nil.
func NewResolver(filesPath string, catalog *Catalog) *Resolver {
	filesPath = strings.TrimSuffix(strings.TrimSpace(filesPath), "/")
	if filesPath == "" {
		filesPath = DefaultFilesPath
	}
	return &Resolver{
		filesPath: filesPath,
		urlBase:   filesPath,
		pattern:   markerPattern(filesPath),
		catalog:   catalog,
	}
}

// WithURLBase sets the base used for DocumentReference.URL, typically the
// absolute download location of the files endpoint.
func (r *Resolver) WithURLBase(base string) *Resolver {
	if base = strings.TrimSuffix(strings.TrimSpace(base), "/"); base != "" {
		r.urlBase = base
	}
	return r
}

// Link formats the marker that points at fileID, labelled with its
// catalog name. It is the inverse of what Resolve consumes.
func (r *Resolver) Link(fileID string) string {
	return "[" + EscapeLabel(r.catalog.Name(fileID)) + "](" + r.filesPath + "/" + fileID + ")"
}

// labelEscaper escapes the characters that would end or nest a link label.
var labelEscaper = strings.NewReplacer(
	`\`, `\\`,
	`[`, `\[`,
	`]`, `\]`,
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
)

// EscapeLabel makes name safe to use as a link label: brackets and
// backslashes are escaped and line breaks become spaces.
func EscapeLabel(name string) string {
	return labelEscaper.Replace(name)
}

// UnescapeLabel reverses EscapeLabel. Backslashes before any other
// character are kept.
func UnescapeLabel(label string) string {
	if !strings.Contains(label, `\`) {
		return label
	}
	var b strings.Builder
	b.Grow(len(label))
	for i := 0; i < len(label); i++ {
		if label[i] == '\\' && i+1 < len(label) && strings.IndexByte(`\[]`, label[i+1]) >= 0 {
			i++
		}
		b.WriteByte(label[i])
	}
	return b.String()
}

// ImageEmbed formats the inline image marker for a produced image file.
// Image embeds are never treated as citations.
func (r *Resolver) ImageEmbed(fileID string) string {
	return "\n![" + fileID + "](" + r.filesPath + "/" + fileID + ")\n"
}

// Resolve replaces every file link in text with its positional token and
// returns the deduplicated references in first-seen order. Text without
// links, including previously resolved text, is returned unchanged.
func (r *Resolver) Resolve(text string) Result {
	matches := r.pattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return Result{Text: text}
	}

	var (
		b      strings.Builder
		refs   []DocumentReference
		orders = make(map[string]int)
		last   int
	)
	b.Grow(len(text))

	for _, m := range matches {
		start, end := m[0], m[1]
		// ![alt](...) is an image, not a citation.
		if start > 0 && text[start-1] == '!' {
			continue
		}
		label := text[m[2]:m[3]]
		fileID := text[m[4]:m[5]]

		order, seen := orders[fileID]
		if !seen {
			order = len(refs) + 1
			orders[fileID] = order
			refs = append(refs, DocumentReference{
				FileID: fileID,
				Name:   r.displayName(fileID, label),
				Order:  order,
				URL:    r.urlBase + "/" + fileID,
			})
		}

		b.WriteString(text[last:start])
		b.WriteString(Token(order))
		last = end
	}

	if len(refs) == 0 {
		return Result{Text: text}
	}
	b.WriteString(text[last:])

	return Result{Text: b.String(), References: refs}
}

// displayName picks the configured name, then the link label, then a name
// derived from the id.
func (r *Resolver) displayName(fileID, label string) string {
	if name, ok := r.catalog.Lookup(fileID); ok {
		return name
	}
	if label = strings.TrimSpace(UnescapeLabel(label)); label != "" {
		return norm.NFC.String(label)
	}
	return DeriveName(fileID)
}

// markerPattern matches [label](<filesPath>/<fileId>). Labels may not span
// lines; a "]" inside a label must be escaped. Unterminated links do not
// match.
func markerPattern(filesPath string) *regexp.Regexp {
	return regexp.MustCompile(`\[((?:\\.|[^\]\\\n])*)\]\(` + regexp.QuoteMeta(filesPath) + `/([A-Za-z0-9_-]+)\)`)
}
