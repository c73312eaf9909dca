// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands implements the slash command core for the palaver TUI.
package commands

// =============================================================================
// SELECTION STATE
// =============================================================================

// Selection tracks which candidate is highlighted in an open palette or
// completion list. It exists for the lifetime of one open palette and is
// discarded on close or confirm.
//
// Invariant: after any sequence of operations the highlighted index is
// either -1 (no candidates) or within [0, len(candidates)).
type Selection struct {
	candidates  []Descriptor
	highlighted int
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{highlighted: -1}
}

// SetCandidates replaces the candidate sequence. If the previously
// highlighted command survives the refilter it stays highlighted at its new
// position; otherwise the first candidate is highlighted, or nothing when
// the list is empty.
func (s *Selection) SetCandidates(candidates []Descriptor) {
	var keepID string
	if s.highlighted >= 0 && s.highlighted < len(s.candidates) {
		keepID = s.candidates[s.highlighted].ID
	}

	s.candidates = candidates

	if len(candidates) == 0 {
		s.highlighted = -1
		return
	}

	s.highlighted = 0
	if keepID == "" {
		return
	}
	for i, d := range candidates {
		if d.ID == keepID {
			s.highlighted = i
			return
		}
	}
}

// MoveUp moves the highlight up one position, wrapping from the first
// candidate to the last. No-op when there are no candidates.
func (s *Selection) MoveUp() {
	if len(s.candidates) == 0 {
		return
	}
	s.highlighted--
	if s.highlighted < 0 {
		s.highlighted = len(s.candidates) - 1
	}
}

// MoveDown moves the highlight down one position, wrapping from the last
// candidate to the first. No-op when there are no candidates.
func (s *Selection) MoveDown() {
	if len(s.candidates) == 0 {
		return
	}
	s.highlighted = (s.highlighted + 1) % len(s.candidates)
}

// Highlight sets the highlighted index directly (tap/pointer selection).
// Out-of-range indexes are ignored.
func (s *Selection) Highlight(index int) {
	if index < 0 || index >= len(s.candidates) {
		return
	}
	s.highlighted = index
}

// Highlighted returns the currently highlighted descriptor, if any.
func (s *Selection) Highlighted() (Descriptor, bool) {
	if s.highlighted < 0 || s.highlighted >= len(s.candidates) {
		return Descriptor{}, false
	}
	return s.candidates[s.highlighted], true
}

// HighlightedIndex returns the highlighted index, or -1 when empty.
func (s *Selection) HighlightedIndex() int {
	return s.highlighted
}

// Candidates returns the current candidate sequence.
func (s *Selection) Candidates() []Descriptor {
	return s.candidates
}

// Len returns the number of candidates.
func (s *Selection) Len() int {
	return len(s.candidates)
}

// Clear discards the candidates and highlight.
func (s *Selection) Clear() {
	s.candidates = nil
	s.highlighted = -1
}
