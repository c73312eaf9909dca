// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/palaverhq/palaver-tui/internal/commands"
	"github.com/palaverhq/palaver-tui/internal/session"
	"github.com/palaverhq/palaver-tui/internal/ui/components"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type fakeCaller struct {
	calls  int
	method string
	params map[string]string
	result commands.CallResult
	err    error
}

func (f *fakeCaller) Call(ctx context.Context, sessionID, method string, params map[string]string) (commands.CallResult, error) {
	f.calls++
	f.method = method
	f.params = params
	return f.result, f.err
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) send(ctx context.Context, text string) error {
	f.sent = append(f.sent, text)
	return f.err
}

// newTestModel builds a chat model over fakes with a live session.
func newTestModel(t *testing.T, caller *fakeCaller, sender *fakeSender) Model {
	t.Helper()

	reg, err := commands.NewRegistry(commands.DefaultDescriptors()...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	sess := session.NewManager(session.DefaultConfig(), nil)
	if err := sess.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	dispatcher := commands.NewDispatcher(caller, sender.send)
	return New(reg, dispatcher, sess, nil)
}

func press(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want chat.Model", updated)
	}
	return next, cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func specialKey(name string) tea.KeyMsg {
	switch name {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+p":
		return tea.KeyMsg{Type: tea.KeyCtrlP}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(name)}
	}
}

// drainCmd executes a command tree and collects the produced messages.
func drainCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drainCmd(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// findDispatchResult pulls the dispatch result out of a command tree.
func findDispatchResult(t *testing.T, cmd tea.Cmd) DispatchResultMsg {
	t.Helper()
	for _, msg := range drainCmd(cmd) {
		if res, ok := msg.(DispatchResultMsg); ok {
			return res
		}
	}
	t.Fatal("no DispatchResultMsg produced")
	return DispatchResultMsg{}
}

func hasToastContaining(m Model, substr string) bool {
	for _, toast := range m.toastManager.GetToasts() {
		if strings.Contains(toast.Message, substr) {
			return true
		}
	}
	return false
}

// =============================================================================
// COMPLETION FLOW
// =============================================================================

func TestTypingSlashShowsCompletions(t *testing.T) {
	m := newTestModel(t, &fakeCaller{}, &fakeSender{})

	m = typeText(t, m, "/")
	if !m.CompletionsVisible() {
		t.Fatal("completions hidden after typing /")
	}
	if got := m.selection.Len(); got != m.registry.Len() {
		t.Errorf("candidates = %d, want full set %d", got, m.registry.Len())
	}

	m = typeText(t, m, "c")
	var ids []string
	for _, d := range m.selection.Candidates() {
		ids = append(ids, d.ID)
	}
	if len(ids) != 2 || ids[0] != "clear" || ids[1] != "compact" {
		t.Errorf("candidates for /c = %v, want [clear compact]", ids)
	}
}

func TestPlainTextHidesCompletions(t *testing.T) {
	m := newTestModel(t, &fakeCaller{}, &fakeSender{})

	m = typeText(t, m, "hello")
	if m.CompletionsVisible() {
		t.Error("completions visible for plain text")
	}
}

func TestTabCompletesHighlighted(t *testing.T) {
	m := newTestModel(t, &fakeCaller{}, &fakeSender{})

	m = typeText(t, m, "/cl")
	m, _ = press(t, m, specialKey("tab"))

	if got := m.InputValue(); got != "/clear" {
		t.Errorf("input after tab = %q, want /clear", got)
	}
	// The completed trigger still prefix-matches itself.
	if !m.CompletionsVisible() {
		t.Error("completions hidden after tab")
	}
}

func TestArrowKeysMoveHighlight(t *testing.T) {
	m := newTestModel(t, &fakeCaller{}, &fakeSender{})

	m = typeText(t, m, "/c")
	m, _ = press(t, m, specialKey("down"))
	d, ok := m.selection.Highlighted()
	if !ok || d.ID != "compact" {
		t.Errorf("highlighted after down = %+v, want compact", d)
	}

	// Wrap back around.
	m, _ = press(t, m, specialKey("down"))
	d, _ = m.selection.Highlighted()
	if d.ID != "clear" {
		t.Errorf("highlighted after wrap = %+v, want clear", d)
	}
}

func TestEscClosesPopupThenClearsInput(t *testing.T) {
	m := newTestModel(t, &fakeCaller{}, &fakeSender{})

	m = typeText(t, m, "/c")
	m, _ = press(t, m, specialKey("esc"))
	if m.CompletionsVisible() {
		t.Fatal("popup still open after esc")
	}
	if got := m.InputValue(); got != "/c" {
		t.Errorf("input after first esc = %q, want /c", got)
	}

	m, _ = press(t, m, specialKey("esc"))
	if got := m.InputValue(); got != "" {
		t.Errorf("input after second esc = %q, want empty", got)
	}
}

// =============================================================================
// DISPATCH FLOW
// =============================================================================

func TestEnterOnExactTriggerDispatches(t *testing.T) {
	caller := &fakeCaller{result: commands.CallResult{OK: true}}
	m := newTestModel(t, caller, &fakeSender{})

	m = typeText(t, m, "/clear")
	m, cmd := press(t, m, specialKey("enter"))

	if m.CurrentState() != StateDispatching {
		t.Fatalf("state = %v, want Dispatching", m.CurrentState())
	}

	res := findDispatchResult(t, cmd)
	if caller.calls != 1 || caller.method != "clearConversation" {
		t.Errorf("caller saw %d calls to %q, want 1 to clearConversation", caller.calls, caller.method)
	}
	if !res.Outcome.OK {
		t.Fatalf("outcome = %+v, want OK", res.Outcome)
	}

	m, _ = press(t, m, res)
	if m.CurrentState() != StateReady {
		t.Errorf("state after result = %v, want Ready", m.CurrentState())
	}
	if got := m.InputValue(); got != "" {
		t.Errorf("input after success = %q, want cleared", got)
	}
}

func TestEnterConfirmsHighlightedCandidate(t *testing.T) {
	caller := &fakeCaller{result: commands.CallResult{OK: true}}
	m := newTestModel(t, caller, &fakeSender{})

	// "/co" narrows to compact only; enter confirms it without the full
	// trigger being typed.
	m = typeText(t, m, "/co")
	m, cmd := press(t, m, specialKey("enter"))

	res := findDispatchResult(t, cmd)
	if res.Command.ID != "compact" {
		t.Errorf("dispatched %q, want compact", res.Command.ID)
	}
}

func TestUnknownCommandWarns(t *testing.T) {
	caller := &fakeCaller{}
	m := newTestModel(t, caller, &fakeSender{})

	m = typeText(t, m, "/zzz")
	m, _ = press(t, m, specialKey("enter"))

	if caller.calls != 0 {
		t.Error("unknown command reached the caller")
	}
	if !hasToastContaining(m, "Unknown command") {
		t.Error("no unknown-command toast")
	}
}

func TestDispatchFailureKeepsInput(t *testing.T) {
	caller := &fakeCaller{result: commands.CallResult{OK: false, Message: "context too large"}}
	m := newTestModel(t, caller, &fakeSender{})

	m = typeText(t, m, "/compact")
	m, cmd := press(t, m, specialKey("enter"))
	res := findDispatchResult(t, cmd)

	m, _ = press(t, m, res)
	if got := m.InputValue(); got != "/compact" {
		t.Errorf("input after failure = %q, want preserved", got)
	}
	if !hasToastContaining(m, "context too large") {
		t.Error("server failure message not surfaced")
	}
	if m.CurrentState() != StateReady {
		t.Errorf("state after failure = %v, want Ready", m.CurrentState())
	}
}

func TestCanceledOutcomeIsNoOp(t *testing.T) {
	m := newTestModel(t, &fakeCaller{}, &fakeSender{})

	m = typeText(t, m, "/clear")
	m, _ = press(t, m, specialKey("enter"))

	m, _ = press(t, m, DispatchResultMsg{
		Seq:     m.dispatchSeq,
		Outcome: commands.Outcome{Canceled: true},
	})

	if m.CurrentState() != StateReady {
		t.Errorf("state = %v, want Ready", m.CurrentState())
	}
	if got := m.InputValue(); got != "/clear" {
		t.Errorf("input after canceled = %q, want untouched", got)
	}
	if m.toastManager.HasToasts() {
		t.Error("canceled outcome produced a toast")
	}
}

func TestStaleDispatchResultDropped(t *testing.T) {
	m := newTestModel(t, &fakeCaller{result: commands.CallResult{OK: true}}, &fakeSender{})

	m = typeText(t, m, "/clear")
	m, _ = press(t, m, specialKey("enter"))
	current := m.dispatchSeq

	// A result from an earlier dispatch must not settle this one.
	m, _ = press(t, m, DispatchResultMsg{
		Seq:     current - 1,
		Outcome: commands.Outcome{OK: false, Message: "old failure"},
	})
	if m.CurrentState() != StateDispatching {
		t.Error("stale result settled the in-flight dispatch")
	}
	if m.toastManager.HasToasts() {
		t.Error("stale result produced a toast")
	}
}

func TestSecondCommandWhileInFlightRejected(t *testing.T) {
	caller := &fakeCaller{result: commands.CallResult{OK: true}}
	m := newTestModel(t, caller, &fakeSender{})

	m = typeText(t, m, "/clear")
	m, _ = press(t, m, specialKey("enter"))
	first := m.dispatchSeq

	m = typeText(t, m, "/compact")
	m, _ = press(t, m, specialKey("enter"))

	if m.dispatchSeq != first {
		t.Error("second dispatch started while one was in flight")
	}
	if !hasToastContaining(m, "already running") {
		t.Error("no busy notice for rejected command")
	}
}

func TestCommandWithoutSessionFails(t *testing.T) {
	caller := &fakeCaller{result: commands.CallResult{OK: true}}

	reg, err := commands.NewRegistry(commands.DefaultDescriptors()...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	sess := session.NewManager(session.DefaultConfig(), nil) // never connected
	m := New(reg, commands.NewDispatcher(caller, nil), sess, nil)

	m = typeText(t, m, "/clear")
	m, cmd := press(t, m, specialKey("enter"))
	res := findDispatchResult(t, cmd)

	if res.Outcome.OK {
		t.Fatal("dispatch succeeded without a live session")
	}
	if caller.calls != 0 {
		t.Error("caller invoked despite failed precondition")
	}
}

// =============================================================================
// MODEL COMMAND
// =============================================================================

func TestModelCommandOpensSelector(t *testing.T) {
	caller := &fakeCaller{result: commands.CallResult{OK: true}}
	m := newTestModel(t, caller, &fakeSender{})

	m = typeText(t, m, "/model")
	m, _ = press(t, m, specialKey("enter"))

	if !m.modelSelector.IsVisible() {
		t.Fatal("model selector not shown")
	}
	if m.CurrentState() != StateReady {
		t.Error("dispatch started before a model was chosen")
	}

	m, cmd := press(t, m, components.ModelChosenMsg{Model: "fast"})
	res := findDispatchResult(t, cmd)
	if caller.method != "setModel" {
		t.Errorf("method = %q, want setModel", caller.method)
	}
	if caller.params["model"] != "fast" {
		t.Errorf("params = %v, want model=fast", caller.params)
	}

	m, _ = press(t, m, res)
	if got := m.CurrentModel(); got != "fast" {
		t.Errorf("current model = %q, want fast", got)
	}
}

// =============================================================================
// PALETTE
// =============================================================================

func TestCtrlPOpensPalette(t *testing.T) {
	m := newTestModel(t, &fakeCaller{}, &fakeSender{})

	m, _ = press(t, m, specialKey("ctrl+p"))
	if !m.palette.IsVisible() {
		t.Fatal("palette not visible after ctrl+p")
	}
}

func TestPaletteConfirmDispatches(t *testing.T) {
	caller := &fakeCaller{result: commands.CallResult{OK: true}}
	m := newTestModel(t, caller, &fakeSender{})

	clear, ok := m.registry.Get("clear")
	if !ok {
		t.Fatal("clear command missing from registry")
	}

	m, cmd := press(t, m, components.CommandConfirmedMsg{Command: clear})
	res := findDispatchResult(t, cmd)
	if res.Command.ID != "clear" || !res.Outcome.OK {
		t.Errorf("palette confirm dispatched %+v", res)
	}
}

// =============================================================================
// MESSAGE SEND
// =============================================================================

func TestPlainTextSends(t *testing.T) {
	sender := &fakeSender{}
	m := newTestModel(t, &fakeCaller{}, sender)

	m = typeText(t, m, "hello there")
	m, cmd := press(t, m, specialKey("enter"))

	if got := m.InputValue(); got != "" {
		t.Errorf("input after send = %q, want cleared", got)
	}
	if len(m.transcript) != 1 || m.transcript[0].text != "hello there" {
		t.Errorf("transcript = %+v, want the sent line", m.transcript)
	}

	msgs := drainCmd(cmd)
	var res SendResultMsg
	found := false
	for _, msg := range msgs {
		if r, ok := msg.(SendResultMsg); ok {
			res = r
			found = true
		}
	}
	if !found {
		t.Fatal("no SendResultMsg produced")
	}
	if res.Err != nil {
		t.Errorf("send error = %v", res.Err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "hello there" {
		t.Errorf("sender saw %v", sender.sent)
	}
}

func TestSendFailureSurfacesToast(t *testing.T) {
	sender := &fakeSender{err: errors.New("pipe broken")}
	m := newTestModel(t, &fakeCaller{}, sender)

	m = typeText(t, m, "hi")
	m, cmd := press(t, m, specialKey("enter"))

	for _, msg := range drainCmd(cmd) {
		if res, ok := msg.(SendResultMsg); ok {
			m, _ = press(t, m, res)
		}
	}
	if !hasToastContaining(m, "pipe broken") {
		t.Error("send failure not surfaced")
	}
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

func TestSessionTimeoutResetsIdentity(t *testing.T) {
	m := newTestModel(t, &fakeCaller{}, &fakeSender{})
	before := m.session.SessionID()

	m, _ = press(t, m, session.TimeoutMsg{})

	if m.session.SessionID() == before {
		t.Error("session identity unchanged after timeout")
	}
	if m.session.Live() {
		t.Error("session still live after timeout reset")
	}
	if !hasToastContaining(m, "expired") {
		t.Error("no expiry notice")
	}
}

func TestDisconnectedMarksSessionDown(t *testing.T) {
	m := newTestModel(t, &fakeCaller{}, &fakeSender{})

	m, _ = press(t, m, session.DisconnectedMsg{Err: errors.New("refused")})
	if m.session.Live() {
		t.Error("session live after disconnect")
	}
}

// =============================================================================
// VIEW SMOKE
// =============================================================================

func TestToastOverlaysWithoutGrowingView(t *testing.T) {
	m := newTestModel(t, &fakeCaller{}, &fakeSender{})
	m, _ = press(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	base := len(strings.Split(m.View(), "\n"))
	if base > 30 {
		t.Fatalf("view is %d lines without toasts, exceeds height 30", base)
	}

	m.toastManager.AddError("dispatch failed")
	view := m.View()
	lines := strings.Split(view, "\n")
	if len(lines) > 30 {
		t.Errorf("view is %d lines with a toast, exceeds height 30", len(lines))
	}
	if !strings.Contains(view, "dispatch failed") {
		t.Error("toast message missing from view")
	}
	// The frame underneath stays visible.
	if !strings.Contains(view, "palaver") {
		t.Error("status line hidden by toast overlay")
	}
}

func TestViewRendersCompletionsAndStatus(t *testing.T) {
	m := newTestModel(t, &fakeCaller{}, &fakeSender{})
	m, _ = press(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m = typeText(t, m, "/c")
	view := m.View()
	for _, want := range []string{"/clear", "/compact", "palaver", "connected"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
