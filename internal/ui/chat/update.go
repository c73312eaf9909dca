// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/palaverhq/palaver-tui/internal/commands"
	"github.com/palaverhq/palaver-tui/internal/history"
	"github.com/palaverhq/palaver-tui/internal/session"
	"github.com/palaverhq/palaver-tui/internal/ui/components"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case components.CommandConfirmedMsg:
		return m.confirmCommand(msg.Command)

	case components.ModelChosenMsg:
		return m.handleModelChosen(msg)

	case DispatchResultMsg:
		return m.handleDispatchResult(msg)

	case SendResultMsg:
		return m.handleSendResult(msg)

	case RecentCommandsMsg:
		if msg.Err == nil && m.recentMarkers {
			m.palette.SetRecent(msg.IDs)
		}
		return m, nil

	case session.TickMsg:
		if m.session == nil {
			return m, session.TickCmd()
		}
		return m, m.session.HandleTick()

	case session.TimeoutWarningMsg:
		m.toastManager.AddWarning("Session idle, disconnecting in " + msg.Remaining.Round(timeRounding).String())
		return m, nil

	case session.TimeoutMsg:
		return m.handleSessionTimeout()

	case session.ConnectedMsg:
		m.toastManager.AddSuccess("Connected to gateway")
		return m, nil

	case session.DisconnectedMsg:
		if m.session != nil {
			m.session.MarkDisconnected()
		}
		m.toastManager.AddError("Gateway unreachable: " + msg.Err.Error())
		return m, nil

	case components.ToastTickMsg:
		m.toastManager.TickToasts()
		return m, components.ToastTickCmd()

	case spinner.TickMsg:
		if m.state == StateDispatching {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	return m, nil
}

// handleResize propagates the new terminal size to every surface.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	m.viewport.Width = msg.Width
	m.viewport.Height = msg.Height - chromeHeight
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	m.input.Width = msg.Width - 4

	m.palette.SetSize(msg.Width, msg.Height)
	m.modelSelector.SetSize(msg.Width, msg.Height)
	popupWidth := msg.Width - 4
	if popupWidth > 60 {
		popupWidth = 60
	}
	if popupWidth > 0 {
		m.popup.SetWidth(popupWidth)
	}

	m.updateViewport()
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

// handleKey routes a keypress. Modal overlays consume keys first; the rest
// goes to the input line with completion tracking.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Quit works everywhere.
	if key.Matches(msg, m.keyMap.Quit) {
		return m, tea.Quit
	}

	if m.modelSelector.IsVisible() {
		var cmd tea.Cmd
		m.modelSelector, cmd = m.modelSelector.Update(msg)
		return m, cmd
	}

	if m.palette.IsVisible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keyMap.Palette):
		m.recordActivity()
		m.closeCompletions()
		return m, m.palette.Show()

	case key.Matches(msg, m.keyMap.Cancel):
		// First esc closes the popup, second clears the command input.
		if m.showCompletions {
			m.closeCompletions()
			return m, nil
		}
		if commands.IsCommandInput(m.input.Value()) {
			m.input.SetValue(commands.Clear())
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Complete):
		if m.showCompletions {
			return m.applyCompletion()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Up):
		if m.showCompletions {
			m.selection.MoveUp()
			return m, nil
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Down):
		if m.showCompletions {
			m.selection.MoveDown()
			return m, nil
		}
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp), key.Matches(msg, m.keyMap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keyMap.Clear):
		m.clearTranscript()
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m.submitInput()
	}

	// Everything else edits the input line.
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.recordActivity()
		m.refreshCompletions()
	}
	return m, cmd
}

// applyCompletion writes the highlighted candidate's trigger into the input.
// Completion only fills the input; dispatch still requires Enter.
func (m Model) applyCompletion() (tea.Model, tea.Cmd) {
	d, ok := m.selection.Highlighted()
	if !ok {
		return m, nil
	}
	m.input.SetValue(d.Trigger)
	m.input.CursorEnd()
	m.refreshCompletions()
	return m, nil
}

// =============================================================================
// SUBMIT
// =============================================================================

// submitInput handles Enter: run a command when the input is command-shaped,
// otherwise send the text as an ordinary message.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.recordActivity()

	if !commands.IsCommandInput(text) {
		return m.sendChatMessage(text)
	}

	if m.state == StateDispatching {
		m.toastManager.AddStatus("A command is already running")
		return m, nil
	}

	// Exact trigger match wins; otherwise the highlighted completion is
	// confirmed. Detect is strict, so "/model extra" matches nothing.
	if cmd, ok := m.registry.GetByTrigger(text); ok && commands.Detect(m.input.Value(), cmd.Trigger) {
		return m.confirmCommand(cmd)
	}
	if m.showCompletions {
		if d, ok := m.selection.Highlighted(); ok {
			return m.confirmCommand(d)
		}
	}

	m.toastManager.AddWarning("Unknown command: " + text)
	return m, nil
}

// confirmCommand runs a confirmed command. The model command detours through
// the model selector to collect its parameter; everything else dispatches
// directly.
func (m Model) confirmCommand(cmd commands.Descriptor) (tea.Model, tea.Cmd) {
	m.closeCompletions()

	if cmd.ID == "model" {
		m.modelSelector.Show(m.currentModel)
		return m, nil
	}
	return m.startDispatch(cmd, nil)
}

// handleModelChosen dispatches the model command with the chosen model as
// its parameter.
func (m Model) handleModelChosen(msg components.ModelChosenMsg) (tea.Model, tea.Cmd) {
	cmd, ok := m.registry.Get("model")
	if !ok {
		return m, nil
	}
	return m.startDispatch(cmd, map[string]string{"model": msg.Model})
}

// startDispatch begins a command dispatch. One dispatch runs at a time; the
// sequence number lets the result handler drop anything stale.
func (m Model) startDispatch(cmd commands.Descriptor, params map[string]string) (tea.Model, tea.Cmd) {
	if m.state == StateDispatching {
		m.toastManager.AddStatus("A command is already running")
		return m, nil
	}

	m.state = StateDispatching
	m.dispatchSeq++

	var ref commands.SessionRef
	if m.session != nil {
		ref = m.session.Ref()
	}

	return m, tea.Batch(
		dispatchCmd(m.dispatcher, cmd, ref, params, m.dispatchSeq),
		m.spinner.Tick,
	)
}

// handleDispatchResult settles a dispatch. Stale results (from a dispatch
// that is no longer the current one) are dropped without side effects.
func (m Model) handleDispatchResult(msg DispatchResultMsg) (tea.Model, tea.Cmd) {
	if msg.Seq != m.dispatchSeq {
		return m, nil
	}
	m.state = StateReady

	out := msg.Outcome
	if out.Canceled {
		// Cancellation is a no-op: no toast, input untouched.
		return m, nil
	}

	if !out.OK {
		// Input stays as typed so the user can re-invoke.
		m.toastManager.AddError(out.Message)
		return m, nil
	}

	// Success: clear the command input and apply local effects.
	m.input.SetValue(commands.Clear())
	m.closeCompletions()
	m.recordActivity()

	switch msg.Command.ID {
	case "model":
		if chosen, ok := msg.Params["model"]; ok {
			m.currentModel = chosen
		}
		m.toastManager.AddSuccess("Model set to " + m.currentModel)
	case "clear":
		m.clearTranscript()
		m.toastManager.AddSuccess("Conversation cleared")
	default:
		if msg.Command.Kind == commands.KindSendMessage {
			m.toastManager.AddSuccess(msg.Command.Name + " sent")
		} else {
			m.toastManager.AddSuccess(msg.Command.Name + " done")
		}
	}

	if m.history != nil {
		return m, recordUseCmd(m.history, msg.Command.ID)
	}
	return m, nil
}

// =============================================================================
// MESSAGE SEND
// =============================================================================

// sendChatMessage sends ordinary input through the conversation pipeline.
// The line is appended optimistically; a failed send surfaces as a toast.
func (m Model) sendChatMessage(text string) (tea.Model, tea.Cmd) {
	m.appendEntry(roleUser, text)
	m.input.Reset()
	m.closeCompletions()

	d := m.dispatcher
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DispatchTimeout)
		defer cancel()
		return SendResultMsg{Text: text, Err: d.Send(ctx, text)}
	}
}

// handleSendResult surfaces send failures.
func (m Model) handleSendResult(msg SendResultMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.toastManager.AddError("Could not send message: " + msg.Err.Error())
	}
	return m, nil
}

// =============================================================================
// SESSION
// =============================================================================

// handleSessionTimeout resets the idle session and starts a fresh one.
func (m Model) handleSessionTimeout() (tea.Model, tea.Cmd) {
	if m.session == nil {
		return m, nil
	}
	m.session.Reset()
	m.toastManager.AddWarning("Session expired after inactivity")
	m.appendEntry(roleSystem, "Session expired. Reconnecting...")
	return m, connectCmd(m.session)
}

// recordActivity re-arms the idle timeout.
func (m *Model) recordActivity() {
	if m.session != nil {
		m.session.RecordActivity()
	}
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// dispatchCmd runs one command dispatch off the update loop.
func dispatchCmd(d *commands.Dispatcher, cmd commands.Descriptor, ref commands.SessionRef, params map[string]string, seq uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DispatchTimeout)
		defer cancel()

		return DispatchResultMsg{
			Seq:     seq,
			Command: cmd,
			Params:  params,
			Outcome: d.Dispatch(ctx, cmd, ref, params),
		}
	}
}

// connectCmd probes the gateway and reports the result.
func connectCmd(sess *session.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DispatchTimeout)
		defer cancel()
		if err := sess.Connect(ctx); err != nil {
			return session.DisconnectedMsg{Err: err}
		}
		return session.ConnectedMsg{}
	}
}

// loadRecentCmd fetches the recently used command IDs for palette markers.
func loadRecentCmd(hist *history.Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DispatchTimeout)
		defer cancel()

		ids, err := hist.Recent(ctx, recentCommandCount)
		return RecentCommandsMsg{IDs: ids, Err: err}
	}
}

// recordUseCmd records a successful command use and refreshes the markers.
func recordUseCmd(hist *history.Store, commandID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DispatchTimeout)
		defer cancel()

		if err := hist.RecordUse(ctx, commandID); err != nil {
			return RecentCommandsMsg{Err: err}
		}
		ids, err := hist.Recent(ctx, recentCommandCount)
		return RecentCommandsMsg{IDs: ids, Err: err}
	}
}
