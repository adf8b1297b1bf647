package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ocommowi/regeval/internal/invoke"
	"github.com/ocommowi/regeval/internal/registration"
)

// RunError reports the strategies a run could not complete.
type RunError struct {
	Aborted []registration.StrategyOutcome
}

func (e *RunError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d strategies aborted:", len(e.Aborted))
	for _, so := range e.Aborted {
		fmt.Fprintf(&b, "\n  %s (stage %s): ", so.Strategy.Name, so.FailedStage)
		var toolErr *invoke.ToolExecutionError
		if errors.As(so.Err, &toolErr) {
			fmt.Fprintf(&b, "%s exited with code %d\n    %s", toolErr.Tool, toolErr.ExitCode, toolErr.CommandLine())
			continue
		}
		b.WriteString(so.Err.Error())
	}
	return b.String()
}

// Unwrap exposes every strategy error to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	errs := make([]error, 0, len(e.Aborted))
	for _, so := range e.Aborted {
		errs = append(errs, so.Err)
	}
	return errs
}

func newRunError(aborted []registration.StrategyOutcome) *RunError {
	return &RunError{Aborted: aborted}
}
