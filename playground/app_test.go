package playground

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeRuntime(t *testing.T) {
	store := NewStore()
	loader := &countingLoader{rt: &fakeRuntime{}, inst: &fakeInstaller{}}
	app := NewApp(store, loader)

	require.NoError(t, app.InitializeRuntime(context.Background()))
	require.NoError(t, app.InitializeRuntime(context.Background()))

	s := store.Snapshot()
	assert.True(t, s.RuntimeReady)
	assert.False(t, s.RuntimeLoading)
	assert.Empty(t, s.Error)
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestInitializeRuntimeConcurrent(t *testing.T) {
	loader := &countingLoader{rt: &fakeRuntime{}, inst: &fakeInstaller{}}
	app := NewApp(NewStore(), loader)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.InitializeRuntime(context.Background())
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestInitializeRuntimeFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    error
		message string
	}{
		{
			name:    "unavailable",
			err:     ErrRuntimeUnavailable,
			want:    ErrRuntimeUnavailable,
			message: "Python runtime not loaded.",
		},
		{
			name:    "init",
			err:     errors.New("compile module: bad magic"),
			want:    ErrRuntimeInit,
			message: "Failed to load Python runtime: runtime initialization failed: compile module: bad magic",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			app := NewApp(store, &countingLoader{err: tt.err})

			err := app.InitializeRuntime(context.Background())
			assert.ErrorIs(t, err, tt.want)

			s := store.Snapshot()
			assert.Equal(t, tt.message, s.Error)
			assert.False(t, s.RuntimeLoading)
			assert.False(t, s.RuntimeReady)
		})
	}
}

func TestInstallRecordsAndConfirms(t *testing.T) {
	inst := &fakeInstaller{}
	app, store := loadedApp(&fakeRuntime{}, inst)

	app.Install(context.Background(), "pip install requests")

	assert.Equal(t, []string{"requests"}, inst.Calls())
	assert.Equal(t, []string{"requests"}, app.Packages())
	s := store.Snapshot()
	assert.True(t, strings.HasSuffix(s.Output, "\npip install requests successfully installed"))
	assert.Empty(t, s.Error)
	assert.False(t, s.PackageLoading)
}

func TestInstallDedup(t *testing.T) {
	inst := &fakeInstaller{}
	app, store := loadedApp(&fakeRuntime{}, inst)

	app.Install(context.Background(), "pip install requests")
	app.Install(context.Background(), "pip install requests")
	app.Install(context.Background(), "requests")

	assert.Equal(t, []string{"requests"}, inst.Calls())
	assert.Equal(t, 1, strings.Count(store.Snapshot().Output, "successfully installed"))
}

func TestInstallFailureKeepsName(t *testing.T) {
	inst := &fakeInstaller{fail: map[string]error{"nope": errors.New("not found")}}
	app, store := loadedApp(&fakeRuntime{}, inst)

	app.Install(context.Background(), "pip install nope")
	s := store.Snapshot()
	assert.Equal(t, "Failed to install nope: not found", s.Error)
	assert.False(t, s.PackageLoading)

	app.Install(context.Background(), "pip install nope")
	assert.Equal(t, []string{"nope"}, inst.Calls())
	assert.Equal(t, []string{"nope"}, app.Packages())
}

func TestInstallClearsError(t *testing.T) {
	app, store := loadedApp(&fakeRuntime{}, &fakeInstaller{})
	store.SetError("old")

	app.Install(context.Background(), "pip install six")
	assert.Empty(t, store.Snapshot().Error)
}

func TestInstallSetsPackageLoading(t *testing.T) {
	var store *Store
	var during bool
	inst := &fakeInstaller{during: func(string) { during = store.Snapshot().PackageLoading }}
	app, s := loadedApp(&fakeRuntime{}, inst)
	store = s

	app.Install(context.Background(), "six")
	assert.True(t, during)
	assert.False(t, store.Snapshot().PackageLoading)
}

func TestInstallNoop(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		inst := &fakeInstaller{}
		app, store := loadedApp(&fakeRuntime{}, inst)
		before := store.Snapshot()

		app.Install(context.Background(), "pip install   ")
		assert.Empty(t, inst.Calls())
		assert.Equal(t, before, store.Snapshot())
	})
	t.Run("no runtime", func(t *testing.T) {
		inst := &fakeInstaller{}
		app := NewApp(NewStore(), &countingLoader{rt: &fakeRuntime{}, inst: inst})

		app.Install(context.Background(), "pip install requests")
		assert.Empty(t, inst.Calls())
		assert.Empty(t, app.Packages())
	})
}

func TestRunAppendsOutput(t *testing.T) {
	rt := &fakeRuntime{outputs: map[string][]string{"print(1+1)": {"2"}}}
	app, store := loadedApp(rt, &fakeInstaller{})

	app.Run(context.Background(), "print(1+1)")

	s := store.Snapshot()
	assert.Equal(t, DefaultOutput+"\n2", s.Output)
	assert.Empty(t, s.Error)
	assert.False(t, s.CodeExecuting)
}

func TestRunError(t *testing.T) {
	rt := &fakeRuntime{run: func(ctx context.Context, source string, emit func(string)) error {
		emit("partial")
		return &ExecutionError{Message: "ZeroDivisionError: division by zero"}
	}}
	app, store := loadedApp(rt, &fakeInstaller{})

	app.Run(context.Background(), "print('partial'); 1/0")

	s := store.Snapshot()
	assert.Equal(t, "ZeroDivisionError: division by zero", s.Error)
	assert.Contains(t, s.Output, "partial")
	assert.False(t, s.CodeExecuting)
}

func TestRunUnknownError(t *testing.T) {
	rt := &fakeRuntime{run: func(context.Context, string, func(string)) error {
		return &ExecutionError{}
	}}
	app, store := loadedApp(rt, &fakeInstaller{})

	app.Run(context.Background(), "raise X")
	assert.Equal(t, "An unknown error occurred", store.Snapshot().Error)
}

func TestRunClearsPreviousError(t *testing.T) {
	app, store := loadedApp(&fakeRuntime{}, &fakeInstaller{})
	store.SetError("stale")

	app.Run(context.Background(), "pass")
	assert.Empty(t, store.Snapshot().Error)
}

func TestRunSetsCodeExecuting(t *testing.T) {
	var store *Store
	var during bool
	rt := &fakeRuntime{run: func(context.Context, string, func(string)) error {
		during = store.Snapshot().CodeExecuting
		return nil
	}}
	app, s := loadedApp(rt, &fakeInstaller{})
	store = s

	app.Run(context.Background(), "pass")
	assert.True(t, during)
	assert.False(t, store.Snapshot().CodeExecuting)
}

func TestRunTimeout(t *testing.T) {
	rt := &fakeRuntime{run: func(ctx context.Context, source string, emit func(string)) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	app, store := loadedApp(rt, &fakeInstaller{}, WithRunTimeout(20*time.Millisecond))

	app.Run(context.Background(), "while True: pass")

	s := store.Snapshot()
	assert.Equal(t, context.DeadlineExceeded.Error(), s.Error)
	assert.False(t, s.CodeExecuting)
}

func TestRunWithoutRuntime(t *testing.T) {
	rt := &fakeRuntime{}
	store := NewStore()
	app := NewApp(store, &countingLoader{rt: rt})
	before := store.Snapshot()

	app.Run(context.Background(), "print(1)")
	assert.Empty(t, rt.Runs())
	assert.Equal(t, before, store.Snapshot())
}

func TestRunEditor(t *testing.T) {
	rt := &fakeRuntime{}
	app, store := loadedApp(rt, &fakeInstaller{})
	store.SetSource("x = 1")

	app.RunEditor(context.Background())
	assert.Equal(t, []string{"x = 1"}, rt.Runs())
}

func TestSubmit(t *testing.T) {
	t.Run("code is echoed then run", func(t *testing.T) {
		rt := &fakeRuntime{outputs: map[string][]string{"print(1+1)": {"2"}}}
		app, store := loadedApp(rt, &fakeInstaller{})

		app.Submit(context.Background(), "print(1+1)")

		s := store.Snapshot()
		assert.Equal(t, DefaultOutput+"\nprint(1+1)\n2", s.Output)
		assert.Empty(t, s.Error)
	})
	t.Run("install directive bypasses runtime", func(t *testing.T) {
		rt := &fakeRuntime{}
		inst := &fakeInstaller{}
		app, store := loadedApp(rt, inst)

		app.Submit(context.Background(), "pip install requests")

		assert.Empty(t, rt.Runs())
		assert.Equal(t, []string{"requests"}, inst.Calls())
		assert.Equal(t, DefaultOutput+"\npip install requests successfully installed", store.Snapshot().Output)
	})
	t.Run("blank input", func(t *testing.T) {
		rt := &fakeRuntime{}
		app, store := loadedApp(rt, &fakeInstaller{})
		before := store.Snapshot()

		app.Submit(context.Background(), "   \t")
		assert.Empty(t, rt.Runs())
		assert.Equal(t, before, store.Snapshot())
	})
}

func TestEditIgnoresEmpty(t *testing.T) {
	app := NewApp(NewStore(), &countingLoader{})
	app.Edit("x = 1")
	app.Edit("")
	assert.Equal(t, "x = 1", app.Store().Snapshot().Source)
}

func TestClose(t *testing.T) {
	rt := &fakeRuntime{}
	app, store := loadedApp(rt, &fakeInstaller{})

	require.NoError(t, app.Close())
	assert.True(t, rt.closed)
	assert.False(t, store.Snapshot().RuntimeReady)

	app.Run(context.Background(), "print(1)")
	assert.Empty(t, rt.Runs())
	require.NoError(t, app.Close())
}

func TestParseInstallDirective(t *testing.T) {
	tests := map[string]string{
		"pip install requests":        "requests",
		"  pip install  requests ":    "requests",
		"requests":                    "requests",
		"pip install ":                "",
		"pip install a pip install b": "a pip install b",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseInstallDirective(in), "input %q", in)
	}
}

func TestGuestInstallerSharesPackageSet(t *testing.T) {
	set := NewPackageSet()
	inst := &fakeInstaller{}
	app, store := loadedApp(&fakeRuntime{}, inst, WithPackageSet(set))
	guest := NewGuestInstaller(store, set, inst, nil)
	ctx := context.Background()

	require.NoError(t, guest.Install(ctx, "six==1.16.0"))
	require.NoError(t, guest.Install(ctx, "six"))
	app.Install(ctx, "pip install six")

	assert.Equal(t, []string{"six==1.16.0"}, inst.Calls())
	assert.Equal(t, []string{"six"}, app.Packages())
	s := store.Snapshot()
	assert.Equal(t, 1, strings.Count(s.Output, "pip install six successfully installed"))
	assert.False(t, s.PackageLoading)

	// A name the terminal already tried is not fetched again for the guest.
	app.Install(ctx, "pip install attrs")
	require.NoError(t, guest.Install(ctx, "attrs[tests]"))
	assert.Equal(t, []string{"six==1.16.0", "attrs"}, inst.Calls())
}

func TestGuestInstallerFailure(t *testing.T) {
	set := NewPackageSet()
	var store *Store
	var during bool
	inst := &fakeInstaller{
		fail:   map[string]error{"numpy": errors.New("package contains C extensions")},
		during: func(string) { during = store.Snapshot().PackageLoading },
	}
	app, s := loadedApp(&fakeRuntime{}, inst, WithPackageSet(set))
	store = s
	guest := NewGuestInstaller(store, set, inst, nil)

	err := guest.Install(context.Background(), "numpy")
	assert.ErrorIs(t, err, ErrPackageInstall)
	assert.True(t, during)
	assert.Equal(t, []string{"numpy"}, app.Packages())
	assert.Empty(t, store.Snapshot().Error)
	assert.NotContains(t, store.Snapshot().Output, "successfully installed")

	assert.ErrorIs(t, guest.Install(context.Background(), " "), ErrPackageInstall)
}
