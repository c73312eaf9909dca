// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands implements the slash command core for the palaver TUI.
package commands

import "strings"

// =============================================================================
// TRIGGER DETECTION
// =============================================================================

// Detect reports whether the input text activates the given trigger.
//
// Activation requires the input, after stripping leading and trailing
// whitespace, to equal the trigger byte-for-byte. The comparison is
// case-sensitive: "/Model" does not activate "/model". Internal whitespace
// is significant, so "/model extra" never activates "/model".
func Detect(text, trigger string) bool {
	if trigger == "" {
		// Disallowed by the registry; an empty trigger never activates.
		return false
	}
	return strings.TrimSpace(text) == trigger
}

// Clear returns the input text with the command token removed. The command
// token is the entire input by definition (Detect only fires on an exact
// match), so the cleared text is always empty.
func Clear() string {
	return ""
}

// IsCommandInput reports whether the input looks like the start of a command,
// i.e. its trimmed form begins with the command-open character. This is the
// gate for showing any command UI at all.
func IsCommandInput(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}
