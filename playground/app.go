package playground

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// App owns the runtime handle and performs the async actions against a
// Store: runtime initialization, package installs, code execution and
// bootstrap. Action methods never return errors; outcomes land in the
// Store.
type App struct {
	store   *Store
	loader  Loader
	snippet SnippetSource
	cache   SnippetCache
	logger  *slog.Logger

	runTimeout time.Duration

	initMu sync.Mutex

	mu        sync.RWMutex
	runtime   Runtime
	installer PackageInstaller
	phase     Phase

	packages *PackageSet
}

type Option func(*App)

func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithSnippetSource enables hydration from remote documents.
func WithSnippetSource(src SnippetSource) Option {
	return func(a *App) {
		a.snippet = src
	}
}

// WithSnippetCache enables read-through caching of fetched snippets.
func WithSnippetCache(c SnippetCache) Option {
	return func(a *App) {
		a.cache = c
	}
}

// WithPackageSet makes the App record install attempts in set, so it can
// be shared with a GuestInstaller.
func WithPackageSet(set *PackageSet) Option {
	return func(a *App) {
		if set != nil {
			a.packages = set
		}
	}
}

// WithRunTimeout bounds each Run. Zero means no limit.
func WithRunTimeout(d time.Duration) Option {
	return func(a *App) {
		a.runTimeout = d
	}
}

// NewApp returns an App acting on store. The runtime is not loaded until
// InitializeRuntime or Bootstrap is called.
func NewApp(store *Store, loader Loader, opts ...Option) *App {
	a := &App{
		store:    store,
		loader:   loader,
		logger:   slog.New(slog.DiscardHandler),
		packages: NewPackageSet(),
		phase:    PhaseBooting,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Store returns the store the App acts on.
func (a *App) Store() *Store {
	return a.store
}

// Packages returns the names install attempts were made for.
func (a *App) Packages() []string {
	return a.packages.List()
}

func (a *App) handles() (Runtime, PackageInstaller) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runtime, a.installer
}

// InitializeRuntime loads the interpreter once. Failures are written to the
// store's error and also returned. RuntimeLoading is false when it
// returns. Calling it again after a successful load does nothing.
func (a *App) InitializeRuntime(ctx context.Context) error {
	a.initMu.Lock()
	defer a.initMu.Unlock()
	defer a.store.setFlag(flagRuntimeLoading, false)

	if rt, _ := a.handles(); rt != nil {
		return nil
	}
	a.store.setFlag(flagRuntimeLoading, true)

	start := time.Now()
	rt, inst, err := a.loader.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrRuntimeUnavailable) && !errors.Is(err, ErrRuntimeInit) {
			err = fmt.Errorf("%w: %w", ErrRuntimeInit, err)
		}
		a.logger.Error("failed to load runtime", "error", err)
		if errors.Is(err, ErrRuntimeUnavailable) {
			a.store.SetError("Python runtime not loaded.")
		} else {
			a.store.SetError(fmt.Sprintf("Failed to load Python runtime: %v", err))
		}
		return err
	}

	a.mu.Lock()
	a.runtime = rt
	a.installer = inst
	a.mu.Unlock()

	a.store.setFlag(flagRuntimeReady, true)
	a.logger.Info("runtime loaded", "duration", time.Since(start))
	return nil
}

// FinishAppLoad marks bootstrap as complete.
func (a *App) FinishAppLoad() {
	a.store.setFlag(flagAppLoading, false)
}

// Edit replaces the editor content. Empty edits are ignored.
func (a *App) Edit(source string) {
	if source == "" {
		return
	}
	a.store.SetSource(source)
}

// Close releases the runtime.
func (a *App) Close() error {
	a.mu.Lock()
	rt := a.runtime
	a.runtime = nil
	a.installer = nil
	a.mu.Unlock()

	if rt == nil {
		return nil
	}
	a.store.setFlag(flagRuntimeReady, false)
	return rt.Close()
}
