// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import "testing"

func descs(ids ...string) []Descriptor {
	out := make([]Descriptor, len(ids))
	for i, id := range ids {
		out[i] = Descriptor{ID: id, Trigger: "/" + id, Kind: KindSendMessage}
	}
	return out
}

func TestSelectionEmpty(t *testing.T) {
	s := NewSelection()

	if s.HighlightedIndex() != -1 {
		t.Errorf("HighlightedIndex() = %d, want -1", s.HighlightedIndex())
	}
	if _, ok := s.Highlighted(); ok {
		t.Error("Highlighted() on empty selection returned ok")
	}

	// Navigation on an empty list is a no-op.
	s.MoveUp()
	s.MoveDown()
	if s.HighlightedIndex() != -1 {
		t.Errorf("HighlightedIndex() after moves = %d, want -1", s.HighlightedIndex())
	}
}

func TestSelectionSetCandidates(t *testing.T) {
	s := NewSelection()
	s.SetCandidates(descs("a", "b", "c"))

	if s.HighlightedIndex() != 0 {
		t.Errorf("HighlightedIndex() = %d, want 0", s.HighlightedIndex())
	}
	d, ok := s.Highlighted()
	if !ok || d.ID != "a" {
		t.Errorf("Highlighted() = %+v, %v, want a", d, ok)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestSelectionWraparound(t *testing.T) {
	s := NewSelection()
	s.SetCandidates(descs("a", "b", "c"))

	// Up from the first wraps to the last.
	s.MoveUp()
	if s.HighlightedIndex() != 2 {
		t.Errorf("MoveUp from 0: index = %d, want 2", s.HighlightedIndex())
	}

	// Down from the last wraps to the first.
	s.MoveDown()
	if s.HighlightedIndex() != 0 {
		t.Errorf("MoveDown from 2: index = %d, want 0", s.HighlightedIndex())
	}

	s.MoveDown()
	s.MoveDown()
	if s.HighlightedIndex() != 2 {
		t.Errorf("two MoveDown: index = %d, want 2", s.HighlightedIndex())
	}
}

// The highlighted index stays valid under any interleaving of navigation
// and candidate replacement.
func TestSelectionInvariant(t *testing.T) {
	s := NewSelection()

	check := func(step string) {
		t.Helper()
		idx, n := s.HighlightedIndex(), s.Len()
		if n == 0 {
			if idx != -1 {
				t.Fatalf("%s: index = %d with no candidates, want -1", step, idx)
			}
			return
		}
		if idx < 0 || idx >= n {
			t.Fatalf("%s: index = %d out of range [0,%d)", step, idx, n)
		}
	}

	steps := []struct {
		name string
		op   func()
	}{
		{"set three", func() { s.SetCandidates(descs("a", "b", "c")) }},
		{"move down twice", func() { s.MoveDown(); s.MoveDown() }},
		{"shrink to one", func() { s.SetCandidates(descs("a")) }},
		{"move up", func() { s.MoveUp() }},
		{"empty", func() { s.SetCandidates(nil) }},
		{"move on empty", func() { s.MoveDown() }},
		{"refill", func() { s.SetCandidates(descs("x", "y")) }},
		{"clear", func() { s.Clear() }},
	}
	for _, st := range steps {
		st.op()
		check(st.name)
	}
}

// A refilter keeps the highlighted command highlighted when it survives,
// even if its position in the list changed.
func TestSelectionKeepsHighlightAcrossRefilter(t *testing.T) {
	s := NewSelection()
	s.SetCandidates(descs("model", "clear", "compact"))
	s.MoveDown()
	s.MoveDown() // highlight "compact"

	s.SetCandidates(descs("clear", "compact"))
	d, ok := s.Highlighted()
	if !ok || d.ID != "compact" {
		t.Errorf("Highlighted() after refilter = %+v, want compact", d)
	}
	if s.HighlightedIndex() != 1 {
		t.Errorf("HighlightedIndex() = %d, want 1", s.HighlightedIndex())
	}
}

func TestSelectionResetsWhenHighlightDropped(t *testing.T) {
	s := NewSelection()
	s.SetCandidates(descs("model", "clear"))
	s.MoveDown() // highlight "clear"

	s.SetCandidates(descs("model", "compact"))
	d, ok := s.Highlighted()
	if !ok || d.ID != "model" {
		t.Errorf("Highlighted() = %+v, want first candidate model", d)
	}
}

func TestSelectionHighlightDirect(t *testing.T) {
	s := NewSelection()
	s.SetCandidates(descs("a", "b", "c"))

	s.Highlight(2)
	if s.HighlightedIndex() != 2 {
		t.Errorf("Highlight(2): index = %d, want 2", s.HighlightedIndex())
	}

	// Out-of-range taps are ignored.
	s.Highlight(5)
	s.Highlight(-1)
	if s.HighlightedIndex() != 2 {
		t.Errorf("out-of-range Highlight changed index to %d", s.HighlightedIndex())
	}
}

func TestSelectionClear(t *testing.T) {
	s := NewSelection()
	s.SetCandidates(descs("a", "b"))
	s.Clear()

	if s.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", s.Len())
	}
	if s.HighlightedIndex() != -1 {
		t.Errorf("HighlightedIndex() after Clear = %d, want -1", s.HighlightedIndex())
	}
}
