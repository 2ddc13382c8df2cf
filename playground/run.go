package playground

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const unknownError = "An unknown error occurred"

// Run executes source on the loaded runtime, appending every printed line
// to the output. Failures are written to the store's error. It does nothing
// when no runtime is loaded.
func (a *App) Run(ctx context.Context, source string) {
	rt, _ := a.handles()
	if rt == nil {
		return
	}

	a.store.setFlag(flagCodeExecuting, true)
	defer a.store.setFlag(flagCodeExecuting, false)
	a.store.ClearError()

	if a.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.runTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	logger := a.logger.With("run", runID)
	logger.Debug("run started", "bytes", len(source))

	start := time.Now()
	err := rt.Run(ctx, source, a.store.AppendOutput)
	if err != nil {
		logger.Warn("run failed", "error", err, "duration", time.Since(start))
		a.store.SetError(errorText(err))
		return
	}
	logger.Debug("run finished", "duration", time.Since(start))
}

// RunEditor runs the current editor content.
func (a *App) RunEditor(ctx context.Context) {
	a.Run(ctx, a.store.Snapshot().Source)
}

func errorText(err error) string {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		if strings.TrimSpace(execErr.Message) == "" {
			return unknownError
		}
		return execErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return unknownError
}

// Submit handles one line of terminal input. Install directives go to the
// installer; anything else is echoed to the output and executed.
func (a *App) Submit(ctx context.Context, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if IsInstallDirective(line) {
		a.Install(ctx, line)
		return
	}
	a.store.AppendOutput(line)
	a.Run(ctx, line)
}
