// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"strings"
	"sync"
	"unicode"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"
)

// DefaultLabelWidth is the display width document names are shortened to.
const DefaultLabelWidth = 40

// ellipsis is appended to shortened names.
const ellipsis = "..."

// docPrefix is the decoration some uploads carry in front of their name.
const docPrefix = "📄"

// Catalog maps external file ids to human readable document names.
// It is safe for concurrent use; Replace swaps the whole mapping so a
// config reload never exposes a half-updated table.
type Catalog struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewCatalog creates a catalog seeded with the given mapping.
// The map is copied.
func NewCatalog(names map[string]string) *Catalog {
	c := &Catalog{}
	c.Replace(names)
	return c
}

// Lookup returns the configured name for fileID, if any.
func (c *Catalog) Lookup(fileID string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[fileID]
	return name, ok
}

// Name returns the display name for fileID. Configured names win; otherwise
// the name is derived from the id itself.
func (c *Catalog) Name(fileID string) string {
	if name, ok := c.Lookup(fileID); ok {
		return name
	}
	return DeriveName(fileID)
}

// Replace swaps the mapping for a copy of names.
func (c *Catalog) Replace(names map[string]string) {
	next := make(map[string]string, len(names))
	for id, name := range names {
		id = strings.TrimSpace(id)
		name = strings.TrimSpace(name)
		if id == "" || name == "" {
			continue
		}
		next[id] = norm.NFC.String(name)
	}

	c.mu.Lock()
	c.names = next
	c.mu.Unlock()
}

// Learn records a single name, typically one reported by the file endpoint.
func (c *Catalog) Learn(fileID, name string) {
	if c == nil {
		return
	}
	fileID = strings.TrimSpace(fileID)
	name = strings.TrimSpace(name)
	if fileID == "" || name == "" {
		return
	}

	c.mu.Lock()
	if c.names == nil {
		c.names = make(map[string]string)
	}
	c.names[fileID] = norm.NFC.String(name)
	c.mu.Unlock()
}

// Len returns the number of configured names.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// DeriveName builds a display name from a raw id or label when no mapping
// exists: a leading document emoji is dropped and names without an
// extension are assumed to be PDFs.
func DeriveName(raw string) string {
	name := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(name, docPrefix); ok {
		if trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace); trimmed != rest {
			name = trimmed
		}
	}
	if name == "" {
		return ""
	}
	if !strings.Contains(name, ".") {
		name += ".pdf"
	}
	return norm.NFC.String(name)
}

// ShortName shortens name to at most width display cells, ending in "..."
// when cut. A width <= 0 uses DefaultLabelWidth.
func ShortName(name string, width int) string {
	if width <= 0 {
		width = DefaultLabelWidth
	}
	if runewidth.StringWidth(name) <= width {
		return name
	}
	return runewidth.Truncate(name, width, ellipsis)
}
