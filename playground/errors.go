package playground

import "errors"

var (
	// ErrRuntimeUnavailable means the interpreter binary could not be found.
	ErrRuntimeUnavailable = errors.New("python runtime not available")

	// ErrRuntimeInit means the interpreter was found but could not be started.
	ErrRuntimeInit = errors.New("runtime initialization failed")

	ErrPackageInstall = errors.New("package install failed")
	ErrExecution      = errors.New("execution failed")

	// ErrSnippetFetch covers every failure while hydrating from a remote
	// snippet. It is logged, never shown to the user.
	ErrSnippetFetch = errors.New("snippet fetch failed")
)

// ExecutionError is an exception raised by user code inside the
// interpreter. Message is the interpreter's own text, e.g.
// "ZeroDivisionError: division by zero".
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	if e.Message == "" {
		return ErrExecution.Error()
	}
	return e.Message
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// PackageInstallError names the package that failed to install.
type PackageInstallError struct {
	Name string
	Err  error
}

func (e *PackageInstallError) Error() string {
	return "install " + e.Name + ": " + e.Err.Error()
}

func (e *PackageInstallError) Unwrap() error {
	return e.Err
}

func (e *PackageInstallError) Is(target error) bool {
	return target == ErrPackageInstall
}
