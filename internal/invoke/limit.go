package invoke

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limited caps how many invocations of the wrapped Invoker run at once,
// whatever the number of goroutines calling it.
type Limited struct {
	invoker Invoker
	sem     *semaphore.Weighted
}

// NewLimited wraps inv so that at most n tools run concurrently. Values of n
// below 1 mean 1.
func NewLimited(inv Invoker, n int) *Limited {
	if n < 1 {
		n = 1
	}
	return &Limited{invoker: inv, sem: semaphore.NewWeighted(int64(n))}
}

// Invoke waits for a free slot, then delegates. A context cancelled while
// waiting yields a *ToolExecutionError with ExitCode -1, as for a tool that
// could not start.
func (l *Limited) Invoke(ctx context.Context, tool string, args ...string) (*Result, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, &ToolExecutionError{Tool: tool, Args: args, ExitCode: -1, Err: err}
	}
	defer l.sem.Release(1)
	return l.invoker.Invoke(ctx, tool, args...)
}
