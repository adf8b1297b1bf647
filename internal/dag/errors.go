package dag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph = errors.New("invalid graph")
	ErrCycleFound   = errors.New("cycle detected")
)

// GraphError wraps graph construction and validation failures.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	return &GraphError{Kind: ErrCycleFound, Msg: strings.Join(path, " -> ")}
}

// SkippedError marks a node that never ran because an upstream node failed.
// It unwraps to the originating failure, so errors.As on a skipped node
// recovers the error of the node that actually broke.
type SkippedError struct {
	// Origin is the ID of the node whose failure caused the skip.
	Origin string
	Err    error
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("skipped due to upstream failure of '%s': %v", e.Origin, e.Err)
}

func (e *SkippedError) Unwrap() error { return e.Err }
