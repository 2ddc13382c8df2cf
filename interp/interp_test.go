package interp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeineduck/gorupad/language/python"
	"github.com/caffeineduck/gorupad/playground"
	"github.com/caffeineduck/gorupad/pypi"
)

func TestLoadMissingWasm(t *testing.T) {
	l := NewLoader(Options{
		WasmPath:    filepath.Join(t.TempDir(), "python.wasm"),
		PackagesDir: t.TempDir(),
	})
	_, _, err := l.Load(context.Background())
	assert.ErrorIs(t, err, playground.ErrRuntimeUnavailable)
}

func TestLoadInvalidWasm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "python.wasm")
	require.NoError(t, os.WriteFile(path, []byte("not wasm"), 0o644))

	l := NewLoader(Options{WasmPath: path, PackagesDir: t.TempDir()})
	_, _, err := l.Load(context.Background())
	assert.ErrorIs(t, err, playground.ErrRuntimeInit)
	assert.ErrorIs(t, err, python.ErrInvalidModule)
}

func TestLoadRequiresPackagesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "python.wasm")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}, 0o644))

	_, _, err := NewLoader(Options{WasmPath: path}).Load(context.Background())
	assert.ErrorIs(t, err, playground.ErrRuntimeInit)
}

func pythonOrSkip(t *testing.T) string {
	t.Helper()
	path := os.Getenv("GORUPAD_PYTHON_WASM")
	if path == "" {
		path = python.DefaultWasmPath()
	}
	if _, err := os.Stat(path); err != nil {
		t.Skipf("python.wasm not available at %s", path)
	}
	return path
}

func loadRuntime(t *testing.T) (playground.Runtime, playground.PackageInstaller) {
	t.Helper()
	l := NewLoader(Options{
		WasmPath:     pythonOrSkip(t),
		PackagesDir:  t.TempDir(),
		StartTimeout: time.Minute,
	})
	rt, inst, err := l.Load(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt, inst
}

func TestRuntimeRun(t *testing.T) {
	rt, _ := loadRuntime(t)

	var lines []string
	err := rt.Run(context.Background(), "print(1+1)\nx = 'kept'", func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, lines)

	lines = nil
	require.NoError(t, rt.Run(context.Background(), "print(x)", func(line string) {
		lines = append(lines, line)
	}))
	assert.Equal(t, []string{"kept"}, lines)
}

func TestRuntimePrintOneLinePerCall(t *testing.T) {
	rt, _ := loadRuntime(t)

	var lines []string
	err := rt.Run(context.Background(), "print('a', end='')\nprint()\nprint('b', 'c', sep='-')", func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "b-c"}, lines)
}

func TestRuntimeExecutionError(t *testing.T) {
	rt, _ := loadRuntime(t)

	err := rt.Run(context.Background(), "1/0", func(string) {})
	var execErr *playground.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "ZeroDivisionError")
	assert.ErrorIs(t, err, playground.ErrExecution)

	// The session survives an exception.
	require.NoError(t, rt.Run(context.Background(), "pass", nil))
}

func TestRuntimeRestartsAfterTimeout(t *testing.T) {
	rt, _ := loadRuntime(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := rt.Run(ctx, "while True: pass", nil)
	require.Error(t, err)

	var lines []string
	require.NoError(t, rt.Run(context.Background(), "print('again')", func(line string) {
		lines = append(lines, line)
	}))
	assert.Equal(t, []string{"again"}, lines)
}

func TestGuestInstallUsesPackageSet(t *testing.T) {
	set := playground.NewPackageSet()
	set.Add("six")
	store := playground.NewStore()

	l := NewLoader(Options{
		PackagesDir: t.TempDir(),
		Store:       store,
		Packages:    set,
	})
	// An unreachable index proves an already requested name is not fetched.
	wheels := pypi.NewInstaller(t.TempDir(), pypi.WithIndexURL("http://127.0.0.1:1"))
	install := l.guestInstaller(wheels)

	res, err := install(context.Background(), map[string]any{"name": "six", "version": "1.16.0"})
	require.NoError(t, err)
	assert.Equal(t, true, res.(map[string]any)["success"])
	assert.Equal(t, []string{"six"}, set.List())

	res, err = install(context.Background(), map[string]any{"name": "attrs"})
	require.NoError(t, err)
	assert.Equal(t, false, res.(map[string]any)["success"])
	assert.Equal(t, []string{"six", "attrs"}, set.List())

	// Failed names are not retried.
	res, err = install(context.Background(), map[string]any{"name": "attrs"})
	require.NoError(t, err)
	assert.Equal(t, true, res.(map[string]any)["success"])
}
