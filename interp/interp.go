// Package interp loads the sandboxed Python interpreter and adapts it to
// the playground's Runtime and PackageInstaller interfaces.
package interp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/caffeineduck/gorupad/executor"
	"github.com/caffeineduck/gorupad/hostfunc"
	"github.com/caffeineduck/gorupad/language/python"
	"github.com/caffeineduck/gorupad/playground"
	"github.com/caffeineduck/gorupad/pypi"
)

// Options configures a Loader. Zero values fall back to defaults.
type Options struct {
	// WasmPath is the RustPython WASI binary. Defaults to
	// python.DefaultWasmPath().
	WasmPath string
	// PackagesDir receives installed wheels and is mounted into the
	// sandbox. Required.
	PackagesDir string
	// CompileCacheDir enables wazero's on-disk compilation cache.
	CompileCacheDir string
	MemoryLimit     uint32
	StartTimeout    time.Duration
	IndexURL        string

	// GuestInstall lets sandboxed code call install_pkg().
	GuestInstall    bool
	AllowedPackages []string
	// Store and Packages, when both set, route install_pkg() through the
	// playground's package set so guest installs are deduplicated and
	// reported like terminal ones.
	Store    *playground.Store
	Packages *playground.PackageSet

	Logger *slog.Logger
}

// Loader implements playground.Loader.
type Loader struct {
	opts Options
}

func NewLoader(opts Options) *Loader {
	if opts.WasmPath == "" {
		opts.WasmPath = python.DefaultWasmPath()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{opts: opts}
}

// Load reads and compiles the interpreter and starts a session. A missing
// binary yields playground.ErrRuntimeUnavailable; anything else that goes
// wrong yields playground.ErrRuntimeInit.
func (l *Loader) Load(ctx context.Context) (playground.Runtime, playground.PackageInstaller, error) {
	logger := l.opts.Logger

	lang, err := python.Load(l.opts.WasmPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", playground.ErrRuntimeUnavailable, l.opts.WasmPath)
		}
		return nil, nil, fmt.Errorf("%w: %w", playground.ErrRuntimeInit, err)
	}

	if l.opts.PackagesDir == "" {
		return nil, nil, fmt.Errorf("%w: packages directory not configured", playground.ErrRuntimeInit)
	}
	if err := os.MkdirAll(l.opts.PackagesDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("%w: create packages dir: %w", playground.ErrRuntimeInit, err)
	}

	// Compile up front so a bad module fails the load, not the first session.
	execOpts := []executor.ExecutorOption{executor.WithPrecompile(lang)}
	if l.opts.CompileCacheDir != "" {
		execOpts = append(execOpts, executor.WithDiskCache(l.opts.CompileCacheDir))
	}
	if l.opts.MemoryLimit > 0 {
		execOpts = append(execOpts, executor.WithMemoryLimit(l.opts.MemoryLimit))
	}

	exec, err := executor.New(hostfunc.NewRegistry(), execOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", playground.ErrRuntimeInit, err)
	}

	wheels := pypi.NewInstaller(l.opts.PackagesDir,
		pypi.WithIndexURL(l.opts.IndexURL),
		pypi.WithLogger(logger))

	sessOpts := []executor.SessionOption{
		executor.WithStartTimeout(l.opts.StartTimeout),
		executor.WithPackages(l.opts.PackagesDir),
		// The packages mount is read-only.
		executor.WithEnv("PYTHONDONTWRITEBYTECODE", "1"),
	}
	if l.opts.GuestInstall {
		sessOpts = append(sessOpts, executor.WithHostFunc("pkg_install", l.guestInstaller(wheels)))
	}

	rt := &Runtime{
		exec:     exec,
		lang:     lang,
		sessOpts: sessOpts,
		logger:   logger,
	}

	start := time.Now()
	if _, err := rt.ensureSession(); err != nil {
		exec.Close()
		return nil, nil, fmt.Errorf("%w: %w", playground.ErrRuntimeInit, err)
	}
	logger.Info("python session started", "wasm", l.opts.WasmPath, "duration", time.Since(start))

	return rt, &Installer{wheels: wheels, rt: rt, logger: logger}, nil
}

// guestInstaller builds the install_pkg() host function.
func (l *Loader) guestInstaller(wheels *pypi.Installer) hostfunc.Func {
	var inner hostfunc.PackageInstaller = wheels
	if l.opts.Store != nil && l.opts.Packages != nil {
		inner = playground.NewGuestInstaller(l.opts.Store, l.opts.Packages, wheels, l.opts.Logger)
	}
	cfg := hostfunc.PkgConfig{Enabled: true, AllowedPackages: l.opts.AllowedPackages}
	return hostfunc.NewPkgInstaller(inner, cfg)
}

// Runtime runs code in a persistent interpreter session. If the session
// dies, for example after a timeout, the next Run starts a fresh one and
// interpreter state is lost.
type Runtime struct {
	exec     *executor.Executor
	lang     executor.Language
	sessOpts []executor.SessionOption
	logger   *slog.Logger

	mu      sync.Mutex
	session *executor.Session
	closed  bool
}

var errRuntimeClosed = errors.New("runtime closed")

func (r *Runtime) ensureSession() (*executor.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errRuntimeClosed
	}
	if r.session != nil {
		return r.session, nil
	}
	sess, err := r.exec.NewSession(r.lang, r.sessOpts...)
	if err != nil {
		return nil, err
	}
	r.session = sess
	return sess, nil
}

// discard drops sess if it is still current so the next run restarts.
func (r *Runtime) discard(sess *executor.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == sess {
		r.session = nil
	}
	sess.Close()
}

// Run executes source, calling emit for each printed line. Python
// exceptions are returned as *playground.ExecutionError.
func (r *Runtime) Run(ctx context.Context, source string, emit func(line string)) error {
	sess, err := r.ensureSession()
	if err != nil {
		return err
	}

	var opts []executor.RunOption
	if emit != nil {
		opts = append(opts, executor.WithOutput(emit))
	}
	res := sess.Run(ctx, source, opts...)
	if res.Error == nil {
		return nil
	}

	var execErr *executor.ExecError
	if errors.As(res.Error, &execErr) {
		return &playground.ExecutionError{Message: execErr.Message}
	}

	r.logger.Warn("python session lost", "error", res.Error)
	r.discard(sess)
	return res.Error
}

func (r *Runtime) Close() error {
	r.mu.Lock()
	sess := r.session
	r.session = nil
	r.closed = true
	r.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
	return r.exec.Close()
}

// Installer installs wheels on the host and refreshes the interpreter's
// import caches so the package is importable right away.
type Installer struct {
	wheels *pypi.Installer
	rt     *Runtime
	logger *slog.Logger
}

func (i *Installer) Install(ctx context.Context, name string) error {
	if err := i.wheels.Install(ctx, name); err != nil {
		return err
	}
	if err := i.rt.Run(ctx, python.InvalidateImportsCode, nil); err != nil {
		return fmt.Errorf("refresh import caches: %w", err)
	}
	i.logger.Debug("import caches refreshed", "package", name)
	return nil
}
