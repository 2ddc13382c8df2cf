package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeineduck/gorupad/playground"
)

type stubRuntime struct {
	mu   sync.Mutex
	runs []string
}

func (r *stubRuntime) Run(ctx context.Context, source string, emit func(string)) error {
	r.mu.Lock()
	r.runs = append(r.runs, source)
	r.mu.Unlock()
	emit("ran")
	return nil
}

func (r *stubRuntime) Close() error { return nil }

type stubInstaller struct {
	mu    sync.Mutex
	names []string
}

func (i *stubInstaller) Install(ctx context.Context, name string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.names = append(i.names, name)
	return nil
}

func newTestModel(t *testing.T) (*Model, *playground.App, *stubRuntime, *stubInstaller) {
	t.Helper()
	rt := &stubRuntime{}
	inst := &stubInstaller{}
	loader := playground.LoaderFunc(func(context.Context) (playground.Runtime, playground.PackageInstaller, error) {
		return rt, inst, nil
	})
	app := playground.NewApp(playground.NewStore(), loader)

	m := New(context.Background(), app, playground.SnippetRef{})
	t.Cleanup(m.stop)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, app, rt, inst
}

// boot finishes bootstrap and feeds the resulting state to the model.
func boot(t *testing.T, m *Model, app *playground.App) {
	t.Helper()
	app.Bootstrap(context.Background(), playground.SnippetRef{})
	refresh(m, app)
}

func refresh(m *Model, app *playground.App) {
	m.Update(stateMsg(app.Store().Snapshot()))
}

func press(m *Model, k tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: k})
	return cmd
}

func typeText(m *Model, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestLoadingScreen(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	assert.Contains(t, m.View(), "Downloading Python")

	// Actions are ignored until loading finishes.
	assert.Nil(t, press(m, tea.KeyCtrlR))
}

func TestViewShowsOutput(t *testing.T) {
	m, app, _, _ := newTestModel(t)
	boot(t, m, app)

	view := m.View()
	assert.Contains(t, view, playground.DefaultOutput)
	assert.Contains(t, view, "ctrl+r")
	assert.Contains(t, view, "vertical")
}

func TestErrorReplacesOutput(t *testing.T) {
	m, app, _, _ := newTestModel(t)
	boot(t, m, app)

	app.Store().SetError("NameError: name 'x' is not defined")
	refresh(m, app)

	view := m.View()
	assert.Contains(t, view, "NameError")
	assert.NotContains(t, view, playground.DefaultOutput)

	app.Store().ClearError()
	refresh(m, app)
	assert.Contains(t, m.View(), playground.DefaultOutput)
}

func TestToggleLayoutAndClear(t *testing.T) {
	m, app, _, _ := newTestModel(t)
	boot(t, m, app)

	press(m, tea.KeyCtrlT)
	assert.Equal(t, playground.LayoutHorizontal, app.Store().Snapshot().Layout)

	press(m, tea.KeyCtrlL)
	assert.Empty(t, app.Store().Snapshot().Output)
}

func TestRunEditor(t *testing.T) {
	m, app, rt, _ := newTestModel(t)
	boot(t, m, app)

	cmd := press(m, tea.KeyCtrlR)
	require.NotNil(t, cmd)
	cmd()

	require.Len(t, rt.runs, 1)
	assert.Equal(t, playground.DefaultSource, rt.runs[0])
	assert.True(t, strings.HasSuffix(app.Store().Snapshot().Output, "\nran"))
}

func TestEditorSyncsSource(t *testing.T) {
	m, app, _, _ := newTestModel(t)
	boot(t, m, app)

	typeText(m, "x = 1")
	assert.True(t, strings.HasSuffix(app.Store().Snapshot().Source, "x = 1"))

	press(m, tea.KeyTab)
	assert.True(t, strings.HasSuffix(app.Store().Snapshot().Source, "x = 1    "))
}

func TestStoreSourceUpdatesEditor(t *testing.T) {
	m, app, _, _ := newTestModel(t)
	boot(t, m, app)

	app.Store().SetSource("print('from gist')")
	refresh(m, app)
	assert.Equal(t, "print('from gist')", m.editor.Value())
}

func TestTerminalSubmit(t *testing.T) {
	m, app, rt, inst := newTestModel(t)
	boot(t, m, app)

	press(m, tea.KeyEsc)
	require.Equal(t, focusTerminal, m.focus)

	typeText(m, "pip install six")
	cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, []string{"six"}, inst.names)
	assert.Empty(t, rt.runs)
	assert.Empty(t, m.input.Value())

	typeText(m, "print(2)")
	press(m, tea.KeyEnter)()
	assert.Equal(t, []string{"print(2)"}, rt.runs)
	assert.Contains(t, app.Store().Snapshot().Output, "print(2)\nran")

	press(m, tea.KeyEsc)
	assert.Equal(t, focusEditor, m.focus)
}

func TestQuit(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	cmd := press(m, tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
