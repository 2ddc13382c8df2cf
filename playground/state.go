package playground

// Layout is the split direction between the editor and terminal panes.
type Layout string

const (
	LayoutVertical   Layout = "vertical"
	LayoutHorizontal Layout = "horizontal"
)

// Toggle returns the other layout.
func (l Layout) Toggle() Layout {
	if l == LayoutHorizontal {
		return LayoutVertical
	}
	return LayoutHorizontal
}

// DefaultOutput is the terminal banner shown before anything runs.
const DefaultOutput = "Running Python 3.12.7"

// DefaultSource is the editor content of a fresh session.
const DefaultSource = `import sys

print("Python", sys.version)
`

// State is a snapshot of the session. Views render it and never mutate it;
// all changes go through Store.Dispatch.
type State struct {
	Source string
	Output string
	// Error is empty when there is nothing to report. When set, views show
	// it in place of Output.
	Error  string
	Layout Layout

	RuntimeReady   bool
	RuntimeLoading bool
	AppLoading     bool
	CodeExecuting  bool
	PackageLoading bool
}

// InitialState is the state a new Store starts from.
func InitialState() State {
	return State{
		Source:         DefaultSource,
		Output:         DefaultOutput,
		Layout:         LayoutVertical,
		RuntimeLoading: true,
		AppLoading:     true,
	}
}

// Loading reports whether the loading screen should be shown.
func (s State) Loading() bool {
	return s.RuntimeLoading || s.AppLoading
}

// Busy reports whether any async action is in flight.
func (s State) Busy() bool {
	return s.RuntimeLoading || s.CodeExecuting || s.PackageLoading
}

// Display is the terminal text: the error when one is set, otherwise the
// accumulated output.
func (s State) Display() string {
	if s.Error != "" {
		return s.Error
	}
	return s.Output
}
