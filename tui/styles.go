package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.AdaptiveColor{Light: "#3776AB", Dark: "#FFD43B"}
	muted  = lipgloss.AdaptiveColor{Light: "#8a8a8a", Dark: "#6c6c6c"}
	red    = lipgloss.AdaptiveColor{Light: "#c0392b", Dark: "#ef4444"}

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted)

	focusedPaneStyle = paneStyle.
				BorderForeground(accent)

	outputStyle = lipgloss.NewStyle()

	errorStyle = lipgloss.NewStyle().
			Foreground(red)

	promptStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(muted)

	busyStyle = lipgloss.NewStyle().
			Foreground(accent)

	loadingStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)
)
