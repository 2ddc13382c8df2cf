package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/caffeineduck/gorupad/playground"
)

// terminalText is what the terminal pane shows. An error replaces the
// output entirely.
func (m *Model) terminalText() string {
	if m.state.Error != "" {
		return errorStyle.Render(m.state.Error)
	}
	return outputStyle.Render(m.state.Output)
}

func (m *Model) View() string {
	if !m.ready {
		return ""
	}
	if m.state.Loading() {
		return m.loadingView()
	}

	editorStyle, termStyle := paneStyle, focusedPaneStyle
	if m.focus == focusEditor {
		editorStyle, termStyle = focusedPaneStyle, paneStyle
	}

	editor := editorStyle.Render(m.editor.View())

	var terminal string
	if m.state.RuntimeLoading {
		terminal = m.spinner.View() + " Downloading Python"
	} else {
		terminal = lipgloss.JoinVertical(lipgloss.Left, m.output.View(), m.input.View())
	}
	terminal = termStyle.Width(m.output.Width).Render(terminal)

	var panes string
	if m.state.Layout == playground.LayoutHorizontal {
		panes = lipgloss.JoinHorizontal(lipgloss.Top, editor, terminal)
	} else {
		panes = lipgloss.JoinVertical(lipgloss.Left, editor, terminal)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		panes,
		m.statusLine(),
		m.help.ShortHelpView(keys.ShortHelp()),
	)
}

func (m *Model) loadingView() string {
	msg := m.spinner.View() + " " + loadingStyle.Render("Loading...")
	if m.state.RuntimeLoading {
		msg = m.spinner.View() + " " + loadingStyle.Render("Downloading Python")
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
}

// statusLine shows editor stats and what is running.
func (m *Model) statusLine() string {
	source := m.state.Source
	lines := 0
	if source != "" {
		lines = strings.Count(source, "\n") + 1
	}
	parts := []string{
		fmt.Sprintf("Ln %d", m.editor.Line()+1),
		fmt.Sprintf("%d lines", lines),
		fmt.Sprintf("%d chars", len([]rune(source))),
		string(m.state.Layout),
	}
	status := statusStyle.Render(strings.Join(parts, " · "))

	var busy []string
	if m.state.CodeExecuting {
		busy = append(busy, "running")
	}
	if m.state.PackageLoading {
		busy = append(busy, "installing")
	}
	if len(busy) > 0 {
		status += "  " + busyStyle.Render(m.spinner.View()+" "+strings.Join(busy, ", "))
	}
	return status
}
