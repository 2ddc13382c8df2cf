package playground

import "sync"

// Action is a state mutation. The set of actions is closed; callers use
// the exported action types below.
type Action interface {
	apply(*State)
}

// SetSource replaces the editor content.
type SetSource struct{ Source string }

// AppendOutput adds a line to the terminal output.
type AppendOutput struct{ Line string }

// ClearOutput resets the terminal output to Default.
type ClearOutput struct{ Default string }

// SetError sets the error text. An empty Message clears it.
type SetError struct{ Message string }

// SetLayout changes the pane split.
type SetLayout struct{ Layout Layout }

// ToggleLayout flips the pane split.
type ToggleLayout struct{}

func (a SetSource) apply(s *State)    { s.Source = a.Source }
func (a AppendOutput) apply(s *State) { s.Output = s.Output + "\n" + a.Line }
func (a ClearOutput) apply(s *State)  { s.Output = a.Default }
func (a SetError) apply(s *State)     { s.Error = a.Message }
func (a SetLayout) apply(s *State)    { s.Layout = a.Layout }
func (ToggleLayout) apply(s *State)   { s.Layout = s.Layout.Toggle() }

type flag int

const (
	flagRuntimeReady flag = iota
	flagRuntimeLoading
	flagAppLoading
	flagCodeExecuting
	flagPackageLoading
)

type setFlag struct {
	flag  flag
	value bool
}

func (a setFlag) apply(s *State) {
	switch a.flag {
	case flagRuntimeReady:
		s.RuntimeReady = a.value
	case flagRuntimeLoading:
		s.RuntimeLoading = a.value
	case flagAppLoading:
		s.AppLoading = a.value
	case flagCodeExecuting:
		s.CodeExecuting = a.value
	case flagPackageLoading:
		s.PackageLoading = a.value
	}
}

// Store holds the session state. It is safe for concurrent use; every
// Dispatch is applied atomically and observed by subscribers in order of
// application.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
}

// NewStore returns a store holding InitialState.
func NewStore() *Store {
	return NewStoreWith(InitialState())
}

// NewStoreWith returns a store holding initial.
func NewStoreWith(initial State) *Store {
	return &Store{
		state: initial,
		subs:  make(map[int]chan State),
	}
}

// Dispatch applies an action and notifies subscribers.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.apply(&s.state)
	snap := s.state
	for _, ch := range s.subs {
		publish(ch, snap)
	}
}

// publish replaces whatever snapshot is pending on ch with snap. Only the
// store sends on subscriber channels, and it does so under its lock.
func publish(ch chan State, snap State) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel that receives the latest snapshot after each
// change. Slow readers only see the most recent one. The returned func
// unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan State, 1)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) SetSource(source string) { s.Dispatch(SetSource{Source: source}) }

func (s *Store) AppendOutput(line string) { s.Dispatch(AppendOutput{Line: line}) }

// ClearOutput resets output to def, or to "" when def is omitted.
func (s *Store) ClearOutput(def ...string) {
	var d string
	if len(def) > 0 {
		d = def[0]
	}
	s.Dispatch(ClearOutput{Default: d})
}

func (s *Store) SetError(msg string) { s.Dispatch(SetError{Message: msg}) }

func (s *Store) ClearError() { s.Dispatch(SetError{}) }

func (s *Store) SetLayout(l Layout) { s.Dispatch(SetLayout{Layout: l}) }

func (s *Store) ToggleLayout() { s.Dispatch(ToggleLayout{}) }

func (s *Store) setFlag(f flag, v bool) { s.Dispatch(setFlag{flag: f, value: v}) }
