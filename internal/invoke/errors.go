package invoke

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ToolExecutionError reports a tool that exited nonzero or could not run.
// It carries enough to replay the call by hand.
type ToolExecutionError struct {
	Tool     string
	Args     []string
	ExitCode int
	Err      error
}

func (e *ToolExecutionError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("tool %s could not run: %v (command: %s)", filepath.Base(e.Tool), e.Err, e.CommandLine())
	}
	return fmt.Sprintf("tool %s exited with code %d (command: %s)", filepath.Base(e.Tool), e.ExitCode, e.CommandLine())
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// CommandLine renders the call as a shell-pasteable string.
func (e *ToolExecutionError) CommandLine() string {
	return CommandLine(e.Tool, e.Args...)
}

// CommandLine joins tool and args, quoting the ones a shell would split.
func CommandLine(tool string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	for _, s := range append([]string{tool}, args...) {
		if s == "" || strings.ContainsAny(s, " \t\n'\"\\$") {
			s = strconv.Quote(s)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// ParseError reports measurement output that is not a number.
type ParseError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse score from %s output %q: %v", filepath.Base(e.Tool), e.Output, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
