// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/palaverhq/palaver-tui/internal/commands"
	"github.com/palaverhq/palaver-tui/internal/ui/styles"
)

// =============================================================================
// COMPLETION POPUP COMPONENT
// =============================================================================

// CompletionPopup displays inline command completion above the input line.
// It renders the candidates held by a commands.Selection; the chat model
// owns the selection and feeds it from the filter on every keystroke.
type CompletionPopup struct {
	selection  *commands.Selection
	maxVisible int
	width      int
}

// NewCompletionPopup creates a completion popup over the given selection.
func NewCompletionPopup(selection *commands.Selection) *CompletionPopup {
	return &CompletionPopup{
		selection:  selection,
		maxVisible: 8,
		width:      50,
	}
}

// HasCandidates returns true if there is anything to show.
func (c *CompletionPopup) HasCandidates() bool {
	return c.selection != nil && c.selection.Len() > 0
}

// SetWidth sets the popup width.
func (c *CompletionPopup) SetWidth(width int) {
	c.width = width
}

// SetMaxVisible sets the maximum number of visible rows.
func (c *CompletionPopup) SetMaxVisible(max int) {
	if max > 0 {
		c.maxVisible = max
	}
}

// View renders the completion popup.
func (c *CompletionPopup) View() string {
	if !c.HasCandidates() {
		return ""
	}

	candidates := c.selection.Candidates()
	selected := c.selection.HighlightedIndex()

	// Scrolling window centered on the highlighted row.
	start := 0
	end := len(candidates)
	if len(candidates) > c.maxVisible {
		start = selected - c.maxVisible/2
		if start < 0 {
			start = 0
		}
		end = start + c.maxVisible
		if end > len(candidates) {
			end = len(candidates)
			start = end - c.maxVisible
			if start < 0 {
				start = 0
			}
		}
	}

	var items []string
	for i := start; i < end; i++ {
		items = append(items, c.renderItem(candidates[i], i == selected))
	}

	boxStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Cyan).
		Padding(0, 1).
		Width(c.width).
		MaxWidth(c.width)

	return boxStyle.Render(strings.Join(items, "\n"))
}

// renderItem renders a single completion row.
func (c *CompletionPopup) renderItem(d commands.Descriptor, isSelected bool) string {
	triggerStyle := lipgloss.NewStyle().
		Width(16).
		Foreground(styles.TextPrimary)
	descStyle := lipgloss.NewStyle().
		Width(c.width - 20).
		Foreground(styles.TextSecondary)

	if isSelected {
		triggerStyle = triggerStyle.
			Background(styles.Cyan).
			Foreground(styles.Surface).
			Bold(true)
		descStyle = descStyle.
			Foreground(styles.TextPrimary)
	}

	indicator := " "
	if isSelected {
		indicator = ">"
	}
	indicatorStyle := lipgloss.NewStyle().
		Width(2).
		Foreground(styles.Cyan)

	trigger := truncate(d.Trigger, 16)
	desc := truncate(d.Description, c.width-20)

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		indicatorStyle.Render(indicator),
		triggerStyle.Render(trigger),
		descStyle.Render(desc),
	)
}

// ViewCompact renders a one-line completion hint for narrow terminals.
func (c *CompletionPopup) ViewCompact() string {
	if !c.HasCandidates() {
		return ""
	}

	style := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Italic(true)

	candidates := c.selection.Candidates()
	if len(candidates) == 1 {
		return style.Render("Tab: complete \"" + candidates[0].Trigger + "\"")
	}
	return style.Render("Tab: " + strconv.Itoa(len(candidates)) + " completions")
}
