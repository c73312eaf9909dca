// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands implements the slash command core for the palaver TUI.
package commands

import "strings"

// =============================================================================
// CANDIDATE FILTER
// =============================================================================

// Filter produces ordered candidate lists from a registry. All filtering is
// pure and stable: the same input always yields the same ordered result, and
// matches keep their registry order (no relevance re-ranking).
type Filter struct {
	registry *Registry
}

// NewFilter creates a filter over the given registry.
func NewFilter(registry *Registry) *Filter {
	return &Filter{registry: registry}
}

// Candidates returns the inline autocomplete candidates for the given raw
// input text.
//
//   - A lone "/" (the command-open character) yields the entire registry in
//     its declared order.
//   - "/" followed by more text yields every descriptor whose trigger starts
//     with the trimmed input, in registry order.
//   - Anything else (empty, whitespace, not "/"-prefixed) yields nil and the
//     command UI stays hidden.
func (f *Filter) Candidates(input string) []Descriptor {
	if f.registry == nil {
		return nil
	}

	trimmed := strings.TrimSpace(input)
	if trimmed == "" || !strings.HasPrefix(trimmed, "/") {
		return nil
	}

	if trimmed == "/" {
		return f.registry.All()
	}

	var out []Descriptor
	for _, d := range f.registry.descriptors {
		if strings.HasPrefix(d.Trigger, trimmed) {
			out = append(out, d)
		}
	}
	return out
}

// Search returns the palette search results for a free-text query: every
// descriptor where the query is a case-insensitive substring of the name,
// trigger, or description. An empty query matches everything, so an empty
// search field shows the full palette. Matches keep registry order.
func (f *Filter) Search(query string) []Descriptor {
	if f.registry == nil {
		return nil
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return f.registry.All()
	}

	var out []Descriptor
	for _, d := range f.registry.descriptors {
		if strings.Contains(strings.ToLower(d.Name), q) ||
			strings.Contains(strings.ToLower(d.Trigger), q) ||
			strings.Contains(strings.ToLower(d.Description), q) {
			out = append(out, d)
		}
	}
	return out
}
