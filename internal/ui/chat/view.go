// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/palaverhq/palaver-tui/internal/ui/components"
	"github.com/palaverhq/palaver-tui/internal/ui/styles"
)

// chromeHeight is the number of rows reserved around the transcript
// viewport: status line, input line, help line, and spacing.
const chromeHeight = 5

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat view.
func (m Model) View() string {
	// Modal overlays replace the whole frame.
	if m.modelSelector.IsVisible() {
		return m.modelSelector.View()
	}
	if m.palette.IsVisible() {
		return m.palette.View()
	}

	sections := []string{
		m.renderStatusLine(),
		m.viewport.View(),
	}

	if m.showCompletions {
		sections = append(sections, m.popup.View())
	}

	sections = append(sections, m.renderInputLine(), m.renderHelpLine())

	frame := lipgloss.JoinVertical(lipgloss.Left, sections...)

	// Toasts splice over the frame's bottom-right corner; the frame never
	// grows past the terminal height. Skipped when sizes are unknown.
	if m.toastManager.HasToasts() && m.width > 0 && m.height > 0 {
		return m.overlayToasts(frame)
	}
	return frame
}

// overlayToasts layers the toast stack over the frame line by line, anchored
// bottom-right, leaving one row above the help line.
func (m Model) overlayToasts(frame string) string {
	stack := components.RenderToastStack(m.toastManager.GetToasts(), m.width, 0)
	if stack == "" {
		return frame
	}

	frameLines := strings.Split(frame, "\n")
	for len(frameLines) < m.height {
		frameLines = append(frameLines, "")
	}
	frameLines = frameLines[:m.height]

	toastLines := strings.Split(stack, "\n")
	if len(toastLines) > len(frameLines) {
		toastLines = toastLines[:len(frameLines)]
	}

	start := len(frameLines) - len(toastLines) - 1
	if start < 0 {
		start = 0
	}

	for i, toastLine := range toastLines {
		row := start + i
		if row >= len(frameLines) {
			break
		}
		if strings.TrimSpace(toastLine) == "" {
			continue
		}

		toastWidth := lipgloss.Width(toastLine)
		avail := m.width - toastWidth
		if avail < 0 {
			avail = 0
		}

		base := frameLines[row]
		if baseWidth := lipgloss.Width(base); baseWidth > avail {
			base = truncateToWidth(base, avail)
		} else if baseWidth < avail {
			base += strings.Repeat(" ", avail-baseWidth)
		}
		frameLines[row] = base + toastLine
	}

	return strings.Join(frameLines, "\n")
}

// truncateToWidth cuts a line to the given display width.
func truncateToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}

	current := 0
	var b strings.Builder
	for _, r := range s {
		w := lipgloss.Width(string(r))
		if current+w > width {
			break
		}
		b.WriteRune(r)
		current += w
	}
	return b.String()
}

// renderStatusLine renders the top status bar: app name, session liveness,
// and the active model.
func (m Model) renderStatusLine() string {
	nameStyle := lipgloss.NewStyle().
		Foreground(styles.Purple).
		Bold(true)

	live := false
	if m.session != nil {
		live = m.session.Live()
	}

	var status string
	if live {
		status = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Render(styles.StatusIndicators.Success + " connected")
	} else {
		status = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Render(styles.StatusIndicators.Error + " offline")
	}

	modelStyle := lipgloss.NewStyle().Foreground(styles.TextMuted)
	parts := []string{
		nameStyle.Render("palaver"),
		status,
		modelStyle.Render("model: " + m.currentModel),
	}

	if m.state == StateDispatching {
		parts = append(parts, m.spinner.View()+" running")
	}

	return strings.Join(parts, "  ")
}

// renderInputLine renders the input line with a busy indicator while a
// command is in flight.
func (m Model) renderInputLine() string {
	if m.state == StateDispatching {
		busyStyle := lipgloss.NewStyle().Foreground(styles.TextMuted)
		return m.input.View() + "  " + busyStyle.Render("(command running)")
	}
	return m.input.View()
}

// renderHelpLine renders the one-line key hint, swapping in the completion
// hint while the popup is open.
func (m Model) renderHelpLine() string {
	if m.showCompletions {
		return m.popup.ViewCompact()
	}

	helpStyle := lipgloss.NewStyle().Foreground(styles.TextMuted)
	return helpStyle.Render("Enter send | / commands | C-p palette | C-c quit")
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// updateViewport re-renders the transcript into the viewport.
func (m *Model) updateViewport() {
	if len(m.transcript) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true)
		m.viewport.SetContent(emptyStyle.Render("No messages yet. Type / to see commands."))
		return
	}

	userStyle := lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
	agentStyle := lipgloss.NewStyle().Foreground(styles.TextPrimary)
	systemStyle := lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)

	var b strings.Builder
	for i, entry := range m.transcript {
		if i > 0 {
			b.WriteString("\n")
		}
		switch entry.role {
		case roleUser:
			b.WriteString(userStyle.Render("you") + "  " + entry.text)
		case roleAgent:
			b.WriteString(agentStyle.Render(entry.text))
		case roleSystem:
			b.WriteString(systemStyle.Render(entry.text))
		}
	}
	m.viewport.SetContent(b.String())
}
