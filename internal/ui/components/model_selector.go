// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/palaverhq/palaver-tui/internal/ui/styles"
)

// =============================================================================
// MODEL SELECTOR
// =============================================================================

// ModelOption is one selectable model in the selector.
type ModelOption struct {
	// ID is the identifier sent to the gateway (e.g., "sonnet")
	ID string
	// Name is the display name
	Name string
	// Description is a short hint shown next to the name
	Description string
}

// DefaultModelOptions returns the built-in model choices.
func DefaultModelOptions() []ModelOption {
	return []ModelOption{
		{ID: "default", Name: "Default", Description: "Let the gateway choose"},
		{ID: "fast", Name: "Fast", Description: "Lower latency, lighter model"},
		{ID: "balanced", Name: "Balanced", Description: "Good quality at moderate cost"},
		{ID: "max", Name: "Max", Description: "Highest quality, slowest"},
	}
}

// ModelSelector is a modal list shown after confirming the model command.
// The chosen model ID becomes the command's dispatch parameter.
type ModelSelector struct {
	options  []ModelOption
	selected int
	current  string

	width   int
	height  int
	visible bool
}

// NewModelSelector creates a model selector over the given options.
func NewModelSelector(options []ModelOption) *ModelSelector {
	if len(options) == 0 {
		options = DefaultModelOptions()
	}
	return &ModelSelector{options: options}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Update handles messages for the model selector.
func (ms *ModelSelector) Update(msg tea.Msg) (*ModelSelector, tea.Cmd) {
	if !ms.visible {
		return ms, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			ms.Hide()
			return ms, nil

		case "enter":
			opt := ms.options[ms.selected]
			ms.Hide()
			return ms, func() tea.Msg {
				return ModelChosenMsg{Model: opt.ID}
			}

		case "up", "shift+tab":
			ms.selected--
			if ms.selected < 0 {
				ms.selected = len(ms.options) - 1
			}

		case "down", "tab":
			ms.selected = (ms.selected + 1) % len(ms.options)
		}
	}
	return ms, nil
}

// View renders the model selector.
func (ms *ModelSelector) View() string {
	if !ms.visible {
		return ""
	}

	boxWidth := 50
	if ms.width > 0 && ms.width < boxWidth+10 {
		boxWidth = ms.width - 10
	}
	if boxWidth < 36 {
		boxWidth = 36
	}

	headerStyle := lipgloss.NewStyle().
		Foreground(styles.Purple).
		Bold(true).
		Padding(0, 1)
	header := headerStyle.Render("Choose model")

	sepStyle := lipgloss.NewStyle().Foreground(styles.Overlay)
	separator := sepStyle.Render(strings.Repeat("-", boxWidth-4))

	var rows []string
	for i, opt := range ms.options {
		rows = append(rows, ms.renderOption(opt, i == ms.selected, boxWidth-6))
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Padding(1, 0, 0, 0)
	help := helpStyle.Render("Up/Down navigate | Enter choose | Esc cancel")

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		separator,
		strings.Join(rows, "\n"),
		help,
	)

	boxStyle := lipgloss.NewStyle().
		Background(styles.Surface).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Purple).
		Padding(1, 2).
		Width(boxWidth)
	box := boxStyle.Render(content)

	if ms.width > 0 && ms.height > 0 {
		return lipgloss.Place(
			ms.width, ms.height,
			lipgloss.Center, lipgloss.Center,
			box,
			lipgloss.WithWhitespaceChars(" "),
		)
	}
	return box
}

// renderOption renders a single model row.
func (ms *ModelSelector) renderOption(opt ModelOption, selected bool, width int) string {
	indicator := "  "
	if selected {
		indicator = "> "
	}

	nameStyle := lipgloss.NewStyle().
		Foreground(styles.Cyan).
		Bold(true)
	descStyle := lipgloss.NewStyle().
		Foreground(styles.TextMuted)

	currentMarker := ""
	if opt.ID == ms.current {
		currentMarker = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Render(" (current)")
	}

	name := nameStyle.Render(opt.Name)
	usedWidth := lipgloss.Width(indicator) + lipgloss.Width(name) + lipgloss.Width(currentMarker) + 2
	descWidth := width - usedWidth
	if descWidth < 10 {
		descWidth = 10
	}
	desc := descStyle.Render(truncate(opt.Description, descWidth))

	row := indicator + name + currentMarker + "  " + desc
	if selected {
		return lipgloss.NewStyle().
			Background(styles.SelectionBg).
			Foreground(styles.TextPrimary).
			Width(width).
			Render(row)
	}
	return row
}

// =============================================================================
// PUBLIC METHODS
// =============================================================================

// Show opens the selector with the given current model highlighted.
func (ms *ModelSelector) Show(current string) {
	ms.visible = true
	ms.current = current
	ms.selected = 0
	for i, opt := range ms.options {
		if opt.ID == current {
			ms.selected = i
			break
		}
	}
}

// Hide closes the selector.
func (ms *ModelSelector) Hide() {
	ms.visible = false
}

// IsVisible returns true if the selector is open.
func (ms *ModelSelector) IsVisible() bool {
	return ms.visible
}

// SetSize sets the dimensions for centering the selector.
func (ms *ModelSelector) SetSize(width, height int) {
	ms.width = width
	ms.height = height
}

// =============================================================================
// MESSAGES
// =============================================================================

// ModelChosenMsg is sent when a model is chosen from the selector.
type ModelChosenMsg struct {
	Model string
}
