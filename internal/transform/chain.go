// Package transform serializes ordered lists of elementary transforms into
// a single composite descriptor understood by the apply-transform tools.
package transform

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ocommowi/regeval/internal/ctxlog"
	"github.com/ocommowi/regeval/internal/invoke"
)

// SerializerTool is the Anima executable that writes transform series.
const SerializerTool = "animaTransformSerieXmlGenerator"

var errEmptyChain = errors.New("transform chain is empty")

// MissingTransformError reports an elementary transform that was expected on
// disk before serialization but is absent.
type MissingTransformError struct {
	Path string
	Err  error
}

func (e *MissingTransformError) Error() string {
	return fmt.Sprintf("missing elementary transform %s", e.Path)
}

func (e *MissingTransformError) Unwrap() error { return e.Err }

// Chain is an ordered list of elementary transform files, earliest applied
// first. Composition is not commutative, so the order is never altered.
type Chain []string

// Append returns a new chain with t added last. The receiver is left
// untouched so sibling stages never share a backing array.
func (c Chain) Append(t string) Chain {
	out := make(Chain, len(c), len(c)+1)
	copy(out, c)
	return append(out, t)
}

// Args renders the repeated "-i" arguments in chain order.
func (c Chain) Args() []string {
	args := make([]string, 0, 2*len(c))
	for _, t := range c {
		args = append(args, "-i", t)
	}
	return args
}

// Builder invokes the serializer tool.
type Builder struct {
	invoker invoke.Invoker
	tool    string
}

// NewBuilder returns a Builder calling the serializer at toolPath.
func NewBuilder(inv invoke.Invoker, toolPath string) *Builder {
	return &Builder{invoker: inv, tool: toolPath}
}

// Compose writes the composite descriptor for chain to out and returns out.
// Every input must already exist; the serializer is not called otherwise.
func (b *Builder) Compose(ctx context.Context, chain Chain, out string) (string, error) {
	if len(chain) == 0 {
		return "", errEmptyChain
	}
	for _, t := range chain {
		if _, err := os.Stat(t); err != nil {
			return "", &MissingTransformError{Path: t, Err: err}
		}
	}

	args := append(chain.Args(), "-o", out)
	if _, err := b.invoker.Invoke(ctx, b.tool, args...); err != nil {
		return "", fmt.Errorf("composing %d transforms into %s: %w", len(chain), out, err)
	}
	ctxlog.FromContext(ctx).Debug("Composite transform written.", "path", out, "length", len(chain))
	return out, nil
}
