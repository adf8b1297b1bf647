// Package invoke runs external tools. It is the single place where child
// processes are spawned, so logging and failure reporting stay uniform
// across every registration, resampling and measurement call.
package invoke

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ocommowi/regeval/internal/ctxlog"
)

// Result is the outcome of a successful tool run.
type Result struct {
	ExitCode int
	Stdout   []byte
}

// Invoker executes a tool with an ordered argument list and blocks until it
// terminates.
type Invoker interface {
	Invoke(ctx context.Context, tool string, args ...string) (*Result, error)
}

// Exec is the os/exec backed Invoker.
type Exec struct {
	// Stderr receives the child's standard error. Defaults to os.Stderr.
	Stderr io.Writer
}

// New returns an Exec invoker streaming child stderr to w (os.Stderr if nil).
func New(w io.Writer) *Exec {
	if w == nil {
		w = os.Stderr
	}
	return &Exec{Stderr: w}
}

// Invoke runs tool and captures its standard output. A nonzero exit, a
// failure to start or a cancelled context all yield a *ToolExecutionError.
func (e *Exec) Invoke(ctx context.Context, tool string, args ...string) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("tool", filepath.Base(tool))
	logger.Debug("Invoking external tool.", "args", args)

	cmd := exec.CommandContext(ctx, tool, args...)
	setProcessGroup(cmd)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = e.stderr()

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		toolErr := &ToolExecutionError{Tool: tool, Args: args, ExitCode: -1, Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			toolErr.Err = errors.Join(err, ctxErr)
		}
		logger.Error("External tool failed.", "exit_code", toolErr.ExitCode, "duration", elapsed, "error", err)
		return nil, toolErr
	}

	logger.Debug("External tool finished.", "duration", elapsed, "stdout_bytes", stdout.Len())
	return &Result{ExitCode: 0, Stdout: stdout.Bytes()}, nil
}

func (e *Exec) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}
