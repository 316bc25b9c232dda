// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import "strings"

// Transcript is an ordered, immutable sequence of turns. The zero value is an
// empty transcript. Only the last turn is ever edited; it is the open turn.
type Transcript struct {
	turns []Turn
}

// New creates a transcript from turns. The slice is copied.
func New(turns ...Turn) Transcript {
	if len(turns) == 0 {
		return Transcript{}
	}
	owned := make([]Turn, len(turns))
	copy(owned, turns)
	return Transcript{turns: owned}
}

// Len returns the number of turns.
func (t Transcript) Len() int {
	return len(t.turns)
}

// IsEmpty reports whether the transcript has no turns.
func (t Transcript) IsEmpty() bool {
	return len(t.turns) == 0
}

// Turns returns a copy of the turns.
func (t Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Turn returns the turn at index i. It panics if i is out of range.
func (t Transcript) Turn(i int) Turn {
	return t.turns[i]
}

// Open returns the turn currently receiving text, which is always the last.
func (t Transcript) Open() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// AppendTurn returns a transcript with a new turn at the end. The new turn
// becomes the open turn.
func (t Transcript) AppendTurn(role Role, text string) Transcript {
	// Capacity is clipped so two snapshots never append into shared storage.
	next := append(t.turns[:len(t.turns):len(t.turns)], NewTurn(role, text))
	return Transcript{turns: next}
}

// AppendToOpenTurn returns a transcript with fragment added to the open
// turn's text. On an empty transcript it returns t unchanged.
func (t Transcript) AppendToOpenTurn(fragment string) Transcript {
	open, ok := t.Open()
	if !ok || fragment == "" {
		return t
	}
	open.Text += fragment
	return t.withOpen(open)
}

// AnnotateOpenTurn returns a transcript where, for each annotation in order,
// every literal occurrence of its source span in the open turn is replaced
// by the link for its file. Later annotations see the output of earlier ones.
// When several annotations share a source span, the last one wins.
func (t Transcript) AnnotateOpenTurn(anns []Annotation, linker Linker) Transcript {
	open, ok := t.Open()
	if !ok || len(anns) == 0 || linker == nil {
		return t
	}

	text := open.Text
	for i, ann := range anns {
		if !ann.applies() || shadowed(anns, i) {
			continue
		}
		text = strings.ReplaceAll(text, ann.Text, linker.Link(ann.FileID))
	}
	if text == open.Text {
		return t
	}
	open.Text = text
	return t.withOpen(open)
}

// withOpen returns a copy of t whose last turn is replaced by open.
func (t Transcript) withOpen(open Turn) Transcript {
	next := make([]Turn, len(t.turns))
	copy(next, t.turns)
	next[len(next)-1] = open
	return Transcript{turns: next}
}
