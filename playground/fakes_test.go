package playground

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

type fakeRuntime struct {
	mu     sync.Mutex
	runs   []string
	closed bool
	// run overrides the default behaviour of echoing scripted output.
	run     func(ctx context.Context, source string, emit func(string)) error
	outputs map[string][]string
}

func (r *fakeRuntime) Run(ctx context.Context, source string, emit func(string)) error {
	r.mu.Lock()
	r.runs = append(r.runs, source)
	run := r.run
	lines := r.outputs[source]
	r.mu.Unlock()

	if run != nil {
		return run(ctx, source, emit)
	}
	for _, line := range lines {
		emit(line)
	}
	return nil
}

func (r *fakeRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeRuntime) Runs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs...)
}

type fakeInstaller struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	// during is called inside Install, before it returns.
	during func(name string)
}

func (f *fakeInstaller) Install(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	during := f.during
	err := f.fail[name]
	f.mu.Unlock()

	if during != nil {
		during(name)
	}
	return err
}

func (f *fakeInstaller) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type countingLoader struct {
	calls atomic.Int32
	rt    Runtime
	inst  PackageInstaller
	err   error
}

func (l *countingLoader) Load(ctx context.Context) (Runtime, PackageInstaller, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, nil, l.err
	}
	return l.rt, l.inst, nil
}

type fakeSource struct {
	calls atomic.Int32
	files map[string]string // documentID+"/"+file -> content
}

var errNoSuchFile = errors.New("no such file")

func (s *fakeSource) FetchFile(ctx context.Context, documentID, file string) (string, error) {
	s.calls.Add(1)
	content, ok := s.files[documentID+"/"+file]
	if !ok {
		return "", errNoSuchFile
	}
	return content, nil
}

type memCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemCache() *memCache {
	return &memCache{m: make(map[string]string)}
}

func (c *memCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memCache) Put(ctx context.Context, key, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = content
	return nil
}

// loadedApp returns an App whose runtime is already initialized.
func loadedApp(rt *fakeRuntime, inst *fakeInstaller, opts ...Option) (*App, *Store) {
	store := NewStore()
	app := NewApp(store, &countingLoader{rt: rt, inst: inst}, opts...)
	if err := app.InitializeRuntime(context.Background()); err != nil {
		panic(err)
	}
	return app, store
}
