// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the palaver TUI.
package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/palaverhq/palaver-tui/internal/commands"
	"github.com/palaverhq/palaver-tui/internal/ui/styles"
)

// =============================================================================
// COMMAND PALETTE
// =============================================================================

// CommandPalette is the modal overlay for browsing and searching commands.
//
// Search results keep registry order; recent use only adds a marker next to
// a command, it never reorders the list. Highlight is tracked by command
// identity, so refining the query keeps the same command highlighted when
// it survives the refilter.
type CommandPalette struct {
	input     textinput.Model
	filter    *commands.Filter
	selection *commands.Selection

	// Recently used command IDs, for the recent marker only.
	recentIDs map[string]bool

	width    int
	height   int
	visible  bool
	maxItems int
}

// NewCommandPalette creates a command palette over the given filter.
func NewCommandPalette(filter *commands.Filter) *CommandPalette {
	ti := textinput.New()
	ti.Placeholder = "Type a command..."
	ti.Prompt = "> "
	ti.CharLimit = 100
	ti.Width = 50
	ti.PromptStyle = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.TextPrimary)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)

	cp := &CommandPalette{
		input:     ti,
		filter:    filter,
		selection: commands.NewSelection(),
		recentIDs: make(map[string]bool),
		maxItems:  8,
	}
	cp.refilter()
	return cp
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init initializes the command palette.
func (cp *CommandPalette) Init() tea.Cmd {
	return nil
}

// Update handles messages for the command palette.
func (cp *CommandPalette) Update(msg tea.Msg) (*CommandPalette, tea.Cmd) {
	if !cp.visible {
		return cp, nil
	}

	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			cp.Hide()
			return cp, nil

		case "enter":
			if d, ok := cp.selection.Highlighted(); ok {
				cp.Hide()
				return cp, confirmCommand(d)
			}
			return cp, nil

		case "up", "shift+tab":
			cp.selection.MoveUp()
			return cp, nil

		case "down", "tab", "ctrl+n":
			cp.selection.MoveDown()
			return cp, nil
		}
	}

	previous := cp.input.Value()
	cp.input, cmd = cp.input.Update(msg)
	if cp.input.Value() != previous {
		cp.refilter()
	}
	return cp, cmd
}

// View renders the command palette.
func (cp *CommandPalette) View() string {
	if !cp.visible {
		return ""
	}

	boxWidth := 60
	if cp.width > 0 && cp.width < boxWidth+10 {
		boxWidth = cp.width - 10
	}
	if boxWidth < 40 {
		boxWidth = 40
	}

	headerStyle := lipgloss.NewStyle().
		Foreground(styles.Purple).
		Bold(true).
		Padding(0, 1)
	header := headerStyle.Render("Commands")

	sepStyle := lipgloss.NewStyle().Foreground(styles.Overlay)
	separator := sepStyle.Render(strings.Repeat("-", boxWidth-4))

	cp.input.Width = boxWidth - 6
	inputView := cp.input.View()

	candidates := cp.selection.Candidates()
	var listItems []string
	for i, d := range candidates {
		if i >= cp.maxItems {
			remaining := len(candidates) - cp.maxItems
			moreStyle := lipgloss.NewStyle().
				Foreground(styles.TextMuted).
				Italic(true)
			listItems = append(listItems, moreStyle.Render("  ... "+strconv.Itoa(remaining)+" more"))
			break
		}
		listItems = append(listItems, cp.renderItem(d, i == cp.selection.HighlightedIndex(), boxWidth-6))
	}

	list := strings.Join(listItems, "\n")
	if len(candidates) == 0 {
		noMatchStyle := lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true).
			Padding(1, 0)
		list = noMatchStyle.Render("No matching commands")
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Padding(1, 0, 0, 0)
	help := helpStyle.Render("Up/Down navigate | Enter run | Esc close")

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		separator,
		inputView,
		separator,
		list,
		help,
	)

	boxStyle := lipgloss.NewStyle().
		Background(styles.Surface).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Purple).
		Padding(1, 2).
		Width(boxWidth)
	box := boxStyle.Render(content)

	if cp.width > 0 && cp.height > 0 {
		return lipgloss.Place(
			cp.width, cp.height,
			lipgloss.Center, lipgloss.Center,
			box,
			lipgloss.WithWhitespaceChars(" "),
		)
	}
	return box
}

// =============================================================================
// INTERNAL METHODS
// =============================================================================

// renderItem renders a single command row.
func (cp *CommandPalette) renderItem(d commands.Descriptor, highlighted bool, width int) string {
	indicator := "  "
	if highlighted {
		indicator = "> "
	}

	nameStyle := lipgloss.NewStyle().
		Foreground(styles.Cyan).
		Bold(true)
	descStyle := lipgloss.NewStyle().
		Foreground(styles.TextMuted)

	recentMarker := ""
	if cp.recentIDs[d.ID] {
		recentMarker = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Render(" *")
	}

	name := nameStyle.Render(d.Trigger)

	usedWidth := lipgloss.Width(indicator) + lipgloss.Width(name) + lipgloss.Width(recentMarker) + 2
	descWidth := width - usedWidth
	if descWidth < 10 {
		descWidth = 10
	}
	desc := descStyle.Render(truncate(d.Description, descWidth))

	item := indicator + name + recentMarker + "  " + desc

	if highlighted {
		return lipgloss.NewStyle().
			Background(styles.SelectionBg).
			Foreground(styles.TextPrimary).
			Width(width).
			Render(item)
	}
	return item
}

// refilter reruns the search with the current query. The selection keeps
// the highlighted command when it survives.
func (cp *CommandPalette) refilter() {
	if cp.filter == nil {
		cp.selection.SetCandidates(nil)
		return
	}
	cp.selection.SetCandidates(cp.filter.Search(cp.input.Value()))
}

// confirmCommand returns a command announcing the user's selection.
func confirmCommand(d commands.Descriptor) tea.Cmd {
	return func() tea.Msg {
		return CommandConfirmedMsg{Command: d}
	}
}

// =============================================================================
// PUBLIC METHODS
// =============================================================================

// Show opens the palette on the full command list.
func (cp *CommandPalette) Show() tea.Cmd {
	cp.visible = true
	cp.input.Reset()
	cp.refilter()
	return cp.input.Focus()
}

// Hide closes the palette and discards its search state.
func (cp *CommandPalette) Hide() {
	cp.visible = false
	cp.input.Blur()
	cp.input.Reset()
	cp.selection.Clear()
}

// IsVisible returns true if the palette is open.
func (cp *CommandPalette) IsVisible() bool {
	return cp.visible
}

// SetSize sets the dimensions for centering the palette.
func (cp *CommandPalette) SetSize(width, height int) {
	cp.width = width
	cp.height = height
}

// SetRecent sets the command IDs that get a recent-use marker. Markers only
// annotate rows; ordering is untouched.
func (cp *CommandPalette) SetRecent(ids []string) {
	cp.recentIDs = make(map[string]bool, len(ids))
	for _, id := range ids {
		cp.recentIDs[id] = true
	}
}

// Highlighted exposes the highlighted descriptor (tests, status bar).
func (cp *CommandPalette) Highlighted() (commands.Descriptor, bool) {
	return cp.selection.Highlighted()
}

// SetMaxItems sets the maximum number of rows shown before the overflow
// indicator.
func (cp *CommandPalette) SetMaxItems(n int) {
	if n > 0 {
		cp.maxItems = n
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

// CommandConfirmedMsg is sent when a command is confirmed from the palette
// or the completion popup.
type CommandConfirmedMsg struct {
	Command commands.Descriptor
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// truncate shortens a string to the given display width, appending "..."
// when it had to cut. Width-aware so CJK text does not overflow the box.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

