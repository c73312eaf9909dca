// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the palaver TUI.
//
// This file defines the Bubble Tea message types used by the chat view:
//   - Dispatch: results of slash command execution
//   - Send: results of ordinary message sends
//   - History: recent command IDs for the palette markers
package chat

import (
	"github.com/palaverhq/palaver-tui/internal/commands"
)

// =============================================================================
// DISPATCH MESSAGES
// =============================================================================

// DispatchResultMsg delivers the outcome of one command dispatch.
//
// Seq identifies which dispatch produced this result. The model only acts on
// the result whose sequence number matches its current in-flight dispatch;
// anything else is stale and dropped.
type DispatchResultMsg struct {
	Seq     uint64
	Command commands.Descriptor
	Params  map[string]string
	Outcome commands.Outcome
}

// =============================================================================
// SEND MESSAGES
// =============================================================================

// SendResultMsg reports the outcome of an ordinary (non-command) message send.
type SendResultMsg struct {
	Text string
	Err  error
}

// =============================================================================
// HISTORY MESSAGES
// =============================================================================

// RecentCommandsMsg delivers the most recently used command IDs, newest
// first. Feeds the palette's recent markers.
type RecentCommandsMsg struct {
	IDs []string
	Err error
}
