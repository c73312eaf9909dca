// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the palaver TUI.
//
// The chat model owns the input line, the transcript viewport, and the
// command surfaces: inline completion while typing a "/" prefix, the
// Ctrl+P command palette, and the model selector. Confirmed commands go
// through the dispatcher; one dispatch may be in flight at a time and
// stale results are dropped by sequence number.
package chat
