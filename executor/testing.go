package executor

import (
	"sync"

	"github.com/caffeineduck/gorupad/hostfunc"
)

// Shared executor for tests, so each test does not pay the compile cost of
// the interpreter module again.
var (
	testExecutor     *Executor
	testExecutorOnce sync.Once
	testExecutorErr  error
)

// GetTestExecutor returns an executor shared across tests. It is created
// once and reused.
func GetTestExecutor() (*Executor, error) {
	testExecutorOnce.Do(func() {
		testExecutor, testExecutorErr = New(hostfunc.NewRegistry())
	})
	return testExecutor, testExecutorErr
}
