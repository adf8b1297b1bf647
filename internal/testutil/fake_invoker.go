package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/ocommowi/regeval/internal/invoke"
)

// Call is one recorded tool invocation.
type Call struct {
	Tool string // base name of the executable
	Args []string
}

// Arg returns the value following flag in the call, or "" if absent.
func (c Call) Arg(flag string) string {
	for i := 0; i+1 < len(c.Args); i++ {
		if c.Args[i] == flag {
			return c.Args[i+1]
		}
	}
	return ""
}

// FailFunc decides whether a call fails and with which exit code.
type FailFunc func(c Call) (exitCode int, fail bool)

// FakeInvoker is an invoke.Invoker that never spawns a process. It records
// every call, writes an empty file for each "-o"/"-O" output so that
// downstream existence checks pass, and returns canned stdout per tool.
type FakeInvoker struct {
	mu     sync.Mutex
	calls  []Call
	stdout map[string]string
	fail   []FailFunc
}

// NewFakeInvoker returns a FakeInvoker with no failures.
func NewFakeInvoker() *FakeInvoker {
	return &FakeInvoker{stdout: make(map[string]string)}
}

// SetStdout makes every call of tool (base name) print out.
func (f *FakeInvoker) SetStdout(tool, out string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stdout[tool] = out
}

// FailWhen registers a failure rule.
func (f *FakeInvoker) FailWhen(fn FailFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = append(f.fail, fn)
}

// FailTool makes every call of tool exit with code.
func (f *FakeInvoker) FailTool(tool string, code int) {
	f.FailWhen(func(c Call) (int, bool) { return code, c.Tool == tool })
}

// Invoke implements invoke.Invoker.
func (f *FakeInvoker) Invoke(ctx context.Context, tool string, args ...string) (*invoke.Result, error) {
	call := Call{Tool: filepath.Base(tool), Args: append([]string(nil), args...)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	rules := append([]FailFunc(nil), f.fail...)
	out := f.stdout[call.Tool]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &invoke.ToolExecutionError{Tool: tool, Args: args, ExitCode: -1, Err: err}
	}
	for _, rule := range rules {
		if code, fail := rule(call); fail {
			return nil, &invoke.ToolExecutionError{Tool: tool, Args: args, ExitCode: code}
		}
	}

	for _, flag := range []string{"-o", "-O"} {
		if p := call.Arg(flag); p != "" {
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(p, nil, 0o644); err != nil {
				return nil, err
			}
		}
	}
	return &invoke.Result{Stdout: []byte(out)}, nil
}

// Calls returns a copy of the recorded calls in invocation order.
func (f *FakeInvoker) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls of one tool.
func (f *FakeInvoker) CallsTo(tool string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Tool == tool {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times tool was invoked.
func (f *FakeInvoker) Count(tool string) int {
	return len(f.CallsTo(tool))
}

// Toolbox resolves tool names below a fixed directory.
type Toolbox string

// Tool implements registration.Toolbox.
func (t Toolbox) Tool(name string) string {
	return filepath.Join(string(t), name)
}
