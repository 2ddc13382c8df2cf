// Package tui is the terminal front end: an editor pane, a terminal pane
// with an input line, and a status line, all rendered from playground
// state snapshots.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/caffeineduck/gorupad/playground"
)

type focus int

const (
	focusEditor focus = iota
	focusTerminal
)

// stateMsg carries a store snapshot into the update loop.
type stateMsg playground.State

type bootstrapDoneMsg struct {
	result playground.HydrationResult
}

// Model is the bubbletea model of the playground.
type Model struct {
	ctx  context.Context
	app  *playground.App
	ref  playground.SnippetRef
	subs <-chan playground.State
	stop func()

	state playground.State
	// source is the last editor content known to the store.
	source string

	editor  textarea.Model
	input   textinput.Model
	output  viewport.Model
	spinner spinner.Model
	help    help.Model

	focus  focus
	width  int
	height int
	ready  bool
}

// New returns a model bound to app. ref may be empty, in which case no
// snippet is loaded.
func New(ctx context.Context, app *playground.App, ref playground.SnippetRef) *Model {
	store := app.Store()
	subs, stop := store.Subscribe()
	state := store.Snapshot()

	editor := textarea.New()
	editor.ShowLineNumbers = true
	editor.CharLimit = 0
	editor.MaxHeight = 0
	editor.Placeholder = "# write Python here"
	editor.SetValue(state.Source)
	editor.Focus()

	input := textinput.New()
	input.Prompt = promptStyle.Render(">> ")
	input.Placeholder = "..."

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = loadingStyle

	return &Model{
		ctx:     ctx,
		app:     app,
		ref:     ref,
		subs:    subs,
		stop:    stop,
		state:   state,
		source:  state.Source,
		editor:  editor,
		input:   input,
		output:  viewport.New(0, 0),
		spinner: sp,
		help:    help.New(),
		focus:   focusEditor,
	}
}

// Run starts the program on the alternate screen and blocks until the
// user quits.
func Run(ctx context.Context, app *playground.App, ref playground.SnippetRef) error {
	m := New(ctx, app, ref)
	defer m.stop()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForState(),
		m.bootstrap(),
		textarea.Blink,
	)
}

func (m *Model) waitForState() tea.Cmd {
	subs := m.subs
	return func() tea.Msg {
		s, ok := <-subs
		if !ok {
			return nil
		}
		return stateMsg(s)
	}
}

func (m *Model) bootstrap() tea.Cmd {
	app, ctx, ref := m.app, m.ctx, m.ref
	return func() tea.Msg {
		return bootstrapDoneMsg{result: app.Bootstrap(ctx, ref)}
	}
}

// action runs fn off the update loop. Its effects arrive as stateMsg.
func (m *Model) action(fn func(ctx context.Context)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		fn(ctx)
		return nil
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case stateMsg:
		m.applyState(playground.State(msg))
		return m, m.waitForState()

	case bootstrapDoneMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case m.state.Loading():
			return m, nil
		case key.Matches(msg, keys.Run):
			return m, m.action(m.app.RunEditor)
		case key.Matches(msg, keys.Clear):
			m.app.Store().ClearOutput()
			return m, nil
		case key.Matches(msg, keys.Layout):
			m.app.Store().ToggleLayout()
			return m, nil
		case key.Matches(msg, keys.Focus):
			return m, m.toggleFocus()
		}

		if m.focus == focusTerminal {
			if key.Matches(msg, keys.Submit) {
				line := m.input.Value()
				m.input.Reset()
				return m, m.action(func(ctx context.Context) { m.app.Submit(ctx, line) })
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		if key.Matches(msg, keys.Indent) {
			m.editor.InsertString("    ")
			m.syncSource()
			return m, nil
		}
	}

	if m.focus == focusEditor {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		cmds = append(cmds, cmd)
		m.syncSource()
	} else {
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// syncSource pushes editor edits to the store. Empty edits are ignored by
// the app.
func (m *Model) syncSource() {
	v := m.editor.Value()
	if v == m.source || v == "" {
		return
	}
	m.source = v
	m.app.Edit(v)
}

func (m *Model) applyState(s playground.State) {
	prevLayout := m.state.Layout
	m.state = s

	if s.Source != m.source {
		m.source = s.Source
		if m.editor.Value() != s.Source {
			m.editor.SetValue(s.Source)
		}
	}
	if s.Layout != prevLayout {
		m.resize()
	}

	m.output.SetContent(m.terminalText())
	m.output.GotoBottom()
}

func (m *Model) toggleFocus() tea.Cmd {
	if m.focus == focusEditor {
		m.focus = focusTerminal
		m.editor.Blur()
		return m.input.Focus()
	}
	m.focus = focusEditor
	m.input.Blur()
	return m.editor.Focus()
}

const (
	editorShare = 65
	chromeRows  = 2 // status + help
	borderSize  = 2
)

// resize lays out the panes for the current size and layout.
func (m *Model) resize() {
	if !m.ready {
		return
	}
	avail := max(m.height-chromeRows, 2*borderSize+2)

	var editorW, editorH, termW, termH int
	if m.state.Layout == playground.LayoutHorizontal {
		editorW = m.width * editorShare / 100
		termW = m.width - editorW
		editorH, termH = avail, avail
	} else {
		editorH = avail * editorShare / 100
		termH = avail - editorH
		editorW, termW = m.width, m.width
	}

	m.editor.SetWidth(max(editorW-borderSize, 1))
	m.editor.SetHeight(max(editorH-borderSize, 1))

	m.output.Width = max(termW-borderSize, 1)
	m.output.Height = max(termH-borderSize-1, 1)
	m.input.Width = max(termW-borderSize-4, 1)

	m.output.SetContent(m.terminalText())
	m.output.GotoBottom()
}
