package playground

import "context"

// Runtime executes Python source. emit is called once per printed line,
// in order, while Run is in progress and never after it returns.
// Exceptions raised by the code are returned as *ExecutionError.
type Runtime interface {
	Run(ctx context.Context, source string, emit func(line string)) error
	Close() error
}

// PackageInstaller makes a package importable by the Runtime it was
// loaded with.
type PackageInstaller interface {
	Install(ctx context.Context, name string) error
}

// Loader constructs the runtime. Implementations return errors matching
// ErrRuntimeUnavailable or ErrRuntimeInit.
type Loader interface {
	Load(ctx context.Context) (Runtime, PackageInstaller, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (Runtime, PackageInstaller, error)

func (f LoaderFunc) Load(ctx context.Context) (Runtime, PackageInstaller, error) {
	return f(ctx)
}

// SnippetSource fetches one file of a remote document.
type SnippetSource interface {
	FetchFile(ctx context.Context, documentID, file string) (string, error)
}

// SnippetCache stores fetched snippets by SnippetRef.CacheKey.
type SnippetCache interface {
	Get(ctx context.Context, key string) (content string, ok bool, err error)
	Put(ctx context.Context, key, content string) error
}
