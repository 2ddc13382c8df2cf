package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Run    key.Binding
	Focus  key.Binding
	Clear  key.Binding
	Layout key.Binding
	Indent key.Binding
	Submit key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Run: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "run"),
	),
	Focus: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "editor/terminal"),
	),
	Clear: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "clear"),
	),
	Layout: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "layout"),
	),
	Indent: key.NewBinding(
		key.WithKeys("tab"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Focus, k.Clear, k.Layout, k.Quit}
}
