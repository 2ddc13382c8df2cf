package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/caffeineduck/gorupad/hostfunc"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrSessionExited  = errors.New("interpreter exited")
	ErrExecutorClosed = errors.New("executor closed")
)

// ExecError is an exception raised by guest code. The session stays usable
// after one.
type ExecError struct {
	Message string
}

func (e *ExecError) Error() string {
	if e.Message == "" {
		return "execution failed"
	}
	return e.Message
}

// PackagesMountPath is where WithPackages exposes the host packages
// directory inside the sandbox.
const PackagesMountPath = "/packages"

// Session keeps one interpreter instance alive so that state persists
// between Run calls.
type Session struct {
	exec     *Executor
	lang     Language
	cfg      sessionConfig
	registry *hostfunc.Registry

	stdin       *io.PipeWriter
	stdinReader *io.PipeReader
	stdinMu     sync.Mutex
	stdout      *sessionOutput
	protocol    *sessionProtocol

	cancel  context.CancelFunc
	exited  chan struct{}
	exitErr error

	mu      sync.Mutex
	execMu  sync.Mutex
	closed  bool
	started bool
}

// Mount exposes a host directory inside the sandbox through WASI.
type Mount struct {
	HostPath  string
	GuestPath string
	ReadOnly  bool
}

type sessionConfig struct {
	timeout      time.Duration
	startTimeout time.Duration
	mounts       []Mount
	env          map[string]string
	hostFuncs    map[string]hostfunc.Func
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		startTimeout: 30 * time.Second,
		env:          make(map[string]string),
		hostFuncs:    make(map[string]hostfunc.Func),
	}
}

type SessionOption func(*sessionConfig)

// WithSessionTimeout bounds every Run call. A run that exceeds it
// terminates the interpreter and closes the session. Zero means no limit.
func WithSessionTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithStartTimeout bounds how long NewSession waits for the interpreter
// to report ready.
func WithStartTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		if d > 0 {
			c.startTimeout = d
		}
	}
}

// WithSessionMount exposes hostPath at guestPath for this session.
func WithSessionMount(guestPath, hostPath string, readOnly bool) SessionOption {
	return func(c *sessionConfig) {
		c.mounts = append(c.mounts, Mount{
			HostPath:  hostPath,
			GuestPath: guestPath,
			ReadOnly:  readOnly,
		})
	}
}

// WithPackages mounts a host directory of extracted wheels read-only at
// PackagesMountPath and puts it on PYTHONPATH.
func WithPackages(path string) SessionOption {
	mount := WithSessionMount(PackagesMountPath, path, true)
	env := WithEnv("PYTHONPATH", PackagesMountPath)
	return func(c *sessionConfig) {
		mount(c)
		env(c)
	}
}

func WithEnv(key, value string) SessionOption {
	return func(c *sessionConfig) {
		c.env[key] = value
	}
}

// WithHostFunc registers a host function for this session only.
func WithHostFunc(name string, fn hostfunc.Func) SessionOption {
	return func(c *sessionConfig) {
		c.hostFuncs[name] = fn
	}
}

func (e *Executor) NewSession(lang Language, opts ...SessionOption) (*Session, error) {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	cfg.env["GORU_SESSION"] = "1"

	registry := hostfunc.NewRegistry()
	for name, fn := range e.registry.All() {
		registry.Register(name, fn)
	}
	for name, fn := range cfg.hostFuncs {
		registry.Register(name, fn)
	}

	s := &Session{
		exec:     e,
		lang:     lang,
		cfg:      cfg,
		registry: registry,
		exited:   make(chan struct{}),
	}

	if err := s.start(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *Session) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	compiled, err := s.exec.getCompiled(ctx, s.lang)
	if err != nil {
		return err
	}

	s.stdinReader, s.stdin = io.Pipe()
	s.stdout = newSessionOutput()
	s.protocol = newSessionProtocol(ctx, s.registry, s.stdin, &s.stdinMu)

	initCode := s.lang.SessionInit() + s.lang.WrapCode("")
	args := s.lang.Args(initCode)

	fsConfig := wazero.NewFSConfig()
	for _, m := range s.cfg.mounts {
		if m.ReadOnly {
			fsConfig = fsConfig.WithReadOnlyDirMount(m.HostPath, m.GuestPath)
		} else {
			fsConfig = fsConfig.WithDirMount(m.HostPath, m.GuestPath)
		}
	}

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(s.stdout).
		WithStderr(s.protocol).
		WithStdin(s.stdinReader).
		WithArgs(args...).
		WithFSConfig(fsConfig).
		WithName("")

	for k, v := range s.cfg.env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	go func() {
		_, err := s.exec.runtime.InstantiateModule(ctx, compiled, moduleConfig)
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
			err = nil
		}
		if err == nil {
			err = ErrSessionExited
		} else {
			err = fmt.Errorf("%w: %w", ErrSessionExited, err)
		}
		s.exitErr = err
		close(s.exited)
	}()

	select {
	case <-s.protocol.Ready():
		s.started = true
		return nil
	case <-s.exited:
		if stderr := strings.TrimSpace(s.protocol.Stderr()); stderr != "" {
			return fmt.Errorf("start session: %w: %s", s.exitErr, stderr)
		}
		return fmt.Errorf("start session: %w", s.exitErr)
	case <-time.After(s.cfg.startTimeout):
		return errors.New("session start timeout")
	}
}

type execCommand struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
}

// Run executes code in the session. Runs are serialized: a second caller
// waits until the first finishes.
func (s *Session) Run(ctx context.Context, code string, opts ...RunOption) Result {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	start := time.Now()

	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}

	s.mu.Lock()
	closed, started := s.closed, s.started
	s.mu.Unlock()

	if closed {
		return Result{Error: ErrSessionClosed, Duration: time.Since(start)}
	}
	if !started {
		return Result{Error: errors.New("session not started"), Duration: time.Since(start)}
	}

	if s.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.timeout)
		defer cancel()
	}

	s.stdout.Reset()
	s.protocol.ResetExec()

	if rc.emit != nil {
		detach := s.stdout.attach(rc.emit)
		defer detach()
	}

	cmdBytes, err := json.Marshal(execCommand{Type: "exec", Code: code})
	if err != nil {
		return Result{Error: fmt.Errorf("encode command: %w", err), Duration: time.Since(start)}
	}
	cmdBytes = append(cmdBytes, '\n')

	// The pipe write blocks until the interpreter reads stdin, so it must
	// not hold up the select below if the guest is wedged.
	writeErr := make(chan error, 1)
	go func() {
		s.stdinMu.Lock()
		defer s.stdinMu.Unlock()
		_, err := s.stdin.Write(cmdBytes)
		writeErr <- err
	}()

	for {
		select {
		case err := <-writeErr:
			if err != nil {
				return Result{Error: fmt.Errorf("write command: %w", err), Duration: time.Since(start)}
			}
			writeErr = nil
		case <-ctx.Done():
			// The guest cannot be interrupted mid-run, so the only way to
			// stop it is to tear the session down.
			s.Close()
			var runErr error
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && s.cfg.timeout > 0 {
				runErr = fmt.Errorf("timeout after %v", s.cfg.timeout)
			} else {
				runErr = ctx.Err()
			}
			return Result{
				Output:   s.stdout.String() + s.protocol.Stderr(),
				Error:    runErr,
				Duration: time.Since(start),
			}
		case execErr := <-s.protocol.Done():
			return Result{
				Output:   s.stdout.String() + s.protocol.Stderr(),
				Error:    execErr,
				Duration: time.Since(start),
			}
		case <-s.exited:
			return Result{
				Output:   s.stdout.String() + s.protocol.Stderr(),
				Error:    s.exitErr,
				Duration: time.Since(start),
			}
		}
	}
}

// Stderr returns non-protocol stderr text written during the last run.
func (s *Session) Stderr() string {
	return s.protocol.Stderr()
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	// Closing the pipes gives the guest EOF on stdin; cancelling the
	// context closes the module if it is busy running code.
	if s.stdinReader != nil {
		s.stdinReader.Close()
	}
	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}

	return nil
}
