// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/palaverhq/palaver-tui/internal/commands"
	"github.com/palaverhq/palaver-tui/internal/history"
	"github.com/palaverhq/palaver-tui/internal/session"
	"github.com/palaverhq/palaver-tui/internal/ui/components"
)

// =============================================================================
// STATE
// =============================================================================

// State represents the dispatch state of the chat view.
type State int

const (
	// StateReady means no command is in flight.
	StateReady State = iota
	// StateDispatching means a command dispatch is in flight. Further
	// command submissions are rejected until the result arrives.
	StateDispatching
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateDispatching:
		return "Dispatching"
	default:
		return "Unknown"
	}
}

// DispatchTimeout bounds a single command dispatch end to end.
const DispatchTimeout = 30 * time.Second

// timeRounding is the display granularity for countdowns.
const timeRounding = time.Second

// recentCommandCount is how many recently used commands get a palette marker.
const recentCommandCount = 5

// =============================================================================
// TRANSCRIPT
// =============================================================================

// entryRole identifies who produced a transcript line.
type entryRole int

const (
	roleUser entryRole = iota
	roleAgent
	roleSystem
)

// transcriptEntry is one line of the conversation transcript.
type transcriptEntry struct {
	role entryRole
	text string
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the chat view. It owns the input line, the transcript, and the
// command surfaces (inline completion, palette, model selector).
type Model struct {
	state  State
	width  int
	height int

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keyMap   KeyMap

	// Command core. The selection is shared with the completion popup:
	// the model feeds it from the filter on every keystroke and the popup
	// renders it.
	registry   *commands.Registry
	filter     *commands.Filter
	selection  *commands.Selection
	dispatcher *commands.Dispatcher

	session *session.Manager
	history *history.Store // nil when history is disabled

	palette       *components.CommandPalette
	popup         *components.CompletionPopup
	modelSelector *components.ModelSelector
	toastManager  *components.ToastManager

	transcript      []transcriptEntry
	showCompletions bool
	currentModel    string
	recentMarkers   bool

	// Dispatch bookkeeping. dispatchSeq identifies the in-flight dispatch;
	// results carrying any other sequence number are stale and dropped.
	dispatchSeq uint64
}

// New creates the chat view over the given command core and session.
// The history store may be nil when usage history is disabled.
func New(registry *commands.Registry, dispatcher *commands.Dispatcher, sess *session.Manager, hist *history.Store) Model {
	ti := textinput.New()
	ti.Placeholder = "Message the agent, or / for commands..."
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 12,
	}

	filter := commands.NewFilter(registry)
	selection := commands.NewSelection()

	return Model{
		state:         StateReady,
		viewport:      vp,
		input:         ti,
		spinner:       sp,
		keyMap:        DefaultKeyMap(),
		registry:      registry,
		filter:        filter,
		selection:     selection,
		dispatcher:    dispatcher,
		session:       sess,
		history:       hist,
		palette:       components.NewCommandPalette(filter),
		popup:         components.NewCompletionPopup(selection),
		modelSelector: components.NewModelSelector(nil),
		toastManager:  components.NewToastManager(),
		currentModel:  "default",
		recentMarkers: true,
	}
}

// WithMaxVisible caps the visible rows in the palette and completion popup.
func (m Model) WithMaxVisible(n int) Model {
	if n > 0 {
		m.palette.SetMaxItems(n)
		m.popup.SetMaxVisible(n)
	}
	return m
}

// WithRecentMarkers toggles the palette's recently-used markers.
func (m Model) WithRecentMarkers(enabled bool) Model {
	m.recentMarkers = enabled
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the background ticks and the initial gateway probe.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		session.TickCmd(),
		components.ToastTickCmd(),
	}
	if m.session != nil {
		cmds = append(cmds, connectCmd(m.session))
	}
	if m.history != nil && m.recentMarkers {
		cmds = append(cmds, loadRecentCmd(m.history))
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// TRANSCRIPT HELPERS
// =============================================================================

// appendEntry adds a transcript line and scrolls to the bottom.
func (m *Model) appendEntry(role entryRole, text string) {
	m.transcript = append(m.transcript, transcriptEntry{role: role, text: text})
	m.updateViewport()
	m.viewport.GotoBottom()
}

// clearTranscript drops the local transcript.
func (m *Model) clearTranscript() {
	m.transcript = nil
	m.updateViewport()
}

// =============================================================================
// COMPLETION HELPERS
// =============================================================================

// refreshCompletions recomputes the completion candidates from the current
// input. Candidates follow registry order; typing only narrows.
func (m *Model) refreshCompletions() {
	value := m.input.Value()
	if !commands.IsCommandInput(value) {
		m.closeCompletions()
		return
	}
	m.selection.SetCandidates(m.filter.Candidates(value))
	m.showCompletions = m.selection.Len() > 0
}

// closeCompletions hides the completion popup and drops its candidates.
func (m *Model) closeCompletions() {
	m.selection.Clear()
	m.showCompletions = false
}

// =============================================================================
// ACCESSORS
// =============================================================================

// CurrentState returns the dispatch state.
func (m Model) CurrentState() State {
	return m.state
}

// CurrentModel returns the active model identifier.
func (m Model) CurrentModel() string {
	return m.currentModel
}

// InputValue returns the current input line content.
func (m Model) InputValue() string {
	return m.input.Value()
}

// CompletionsVisible reports whether the inline completion popup is open.
func (m Model) CompletionsVisible() bool {
	return m.showCompletions
}
