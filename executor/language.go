package executor

// Language defines the interface for a WASM-based language runtime.
type Language interface {
	// Name returns a unique identifier for this language (e.g. "python").
	// Used as the cache key for compiled modules.
	Name() string

	// Module returns the WASM binary for the language interpreter.
	Module() []byte

	// WrapCode prepares code for execution by prepending the host prelude
	// (print hook, host call bindings, session loop).
	WrapCode(code string) string

	// Args returns the command-line arguments to pass to the WASM module.
	// For Python: []string{"python", "-c", code}
	Args(wrappedCode string) []string

	// SessionInit returns code to inject before the prelude for session
	// mode. The prelude checks the flag it sets and enters its command loop.
	SessionInit() string
}
