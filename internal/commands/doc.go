// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands implements the slash command core for the palaver TUI:
// the command registry, trigger detection, candidate filtering, selection
// state, and the dispatcher that turns a confirmed command into a remote
// call or an ordinary message send.
//
// The package is deliberately free of UI concerns. It exposes candidate
// lists, a highlighted index, and a Dispatch operation; everything visual
// lives in internal/ui.
package commands
