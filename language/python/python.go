// Package python provides the Python language adapter for gorupad.
//
// The interpreter is a RustPython WASI build loaded from disk at startup,
// so a missing binary is reported as an error instead of failing the build.
// Fetch one with internal/tools/download.
package python

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed stdlib.py
var stdlib string

// ErrInvalidModule is returned by Load when the file is not a WASM binary.
var ErrInvalidModule = errors.New("not a wasm module")

var wasmMagic = []byte{0x00, 'a', 's', 'm'}

// Python implements the executor.Language interface for Python execution.
type Python struct {
	wasm []byte
}

// New returns a Python adapter for an interpreter binary already in memory.
func New(wasm []byte) *Python {
	return &Python{wasm: wasm}
}

// Load reads the interpreter binary at path. A missing file yields an
// error matching fs.ErrNotExist.
func Load(path string) (*Python, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, wasmMagic) {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidModule)
	}
	return New(data), nil
}

// DefaultWasmPath is where the interpreter binary is looked up when no
// path is configured.
func DefaultWasmPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "gorupad", "python.wasm")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "gorupad", "python.wasm")
	}
	return "python.wasm"
}

// Name returns "python".
func (p *Python) Name() string {
	return "python"
}

// Module returns the RustPython WASM binary.
func (p *Python) Module() []byte {
	return p.wasm
}

// WrapCode prepends the gorupad prelude to user code.
func (p *Python) WrapCode(code string) string {
	return stdlib + "\n" + code
}

// Args returns the command-line arguments for the Python interpreter.
func (p *Python) Args(wrappedCode string) []string {
	return []string{"python", "-c", wrappedCode}
}

// SessionInit sets the flag that makes the prelude enter its command loop.
func (p *Python) SessionInit() string {
	return "_GORU_SESSION_MODE = True\n"
}

// InvalidateImportsCode makes freshly extracted packages importable in a
// running session.
const InvalidateImportsCode = "import importlib\nimportlib.invalidate_caches()\n"
