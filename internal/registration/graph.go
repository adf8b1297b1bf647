package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ocommowi/regeval/internal/ctxlog"
	"github.com/ocommowi/regeval/internal/dag"
	"github.com/ocommowi/regeval/internal/invoke"
	"github.com/ocommowi/regeval/internal/pipeline"
	"github.com/ocommowi/regeval/internal/subject"
	"github.com/ocommowi/regeval/internal/transform"
)

// Toolbox resolves an Anima executable name to its path.
type Toolbox interface {
	Tool(name string) string
}

// Options tune a Graph.
type Options struct {
	// Scratch is the run-owned directory receiving intermediate files.
	Scratch string
	// Workers bounds how many stages run at the same time.
	Workers int
}

// Graph executes registration strategies for a subject pair.
type Graph struct {
	pipeline *pipeline.Pipeline
	invoker  invoke.Invoker
	tools    Toolbox
	composer *transform.Builder
	scratch  string
	workers  int

	mu        sync.Mutex
	resampled map[string]*resampleEntry
}

// New builds a Graph. A Graph is bound to one scratch directory and is meant
// for a single Run.
func New(p *pipeline.Pipeline, inv invoke.Invoker, tools Toolbox, opts Options) *Graph {
	return &Graph{
		pipeline:  p,
		invoker:   inv,
		tools:     tools,
		composer:  transform.NewBuilder(inv, tools.Tool(transform.SerializerTool)),
		scratch:   opts.Scratch,
		workers:   opts.Workers,
		resampled: make(map[string]*resampleEntry),
	}
}

// StrategyOutcome reports how one strategy ended.
type StrategyOutcome struct {
	Strategy *pipeline.Strategy
	// Composite and Chain are set when the strategy succeeded.
	Composite string
	Chain     transform.Chain
	// Err is the failure that aborted the strategy. For strategies aborted
	// because an upstream stage failed it is a *dag.SkippedError that unwraps
	// to the originating error.
	Err error
	// FailedStage is the stage whose failure aborted the strategy.
	FailedStage string
}

// Succeeded reports whether the strategy produced a composite transform.
func (o StrategyOutcome) Succeeded() bool { return o.Err == nil }

// Outcome is the result of a Run, strategies in selection order.
type Outcome struct {
	Strategies []StrategyOutcome
	// StageStates records the final state of every scheduled stage.
	StageStates map[string]dag.State
}

// Succeeded returns the strategies that produced a composite transform.
func (o *Outcome) Succeeded() []StrategyOutcome {
	var out []StrategyOutcome
	for _, s := range o.Strategies {
		if s.Succeeded() {
			out = append(out, s)
		}
	}
	return out
}

// Aborted returns the strategies that did not complete.
func (o *Outcome) Aborted() []StrategyOutcome {
	var out []StrategyOutcome
	for _, s := range o.Strategies {
		if !s.Succeeded() {
			out = append(out, s)
		}
	}
	return out
}

// build turns the chains of the selected strategies into a dependency
// graph. Stages shared by several chains are added once.
func (g *Graph) build(strategies []*pipeline.Strategy) (*dag.Graph, error) {
	graph := dag.New()
	for _, s := range strategies {
		chain := g.pipeline.Chain(s.Stage)
		if len(chain) == 0 {
			return nil, fmt.Errorf("strategy %s: stage %q not found", s.Name, s.Stage)
		}
		for _, stage := range chain {
			graph.AddNode(stage.ID)
			if stage.After != "" {
				if err := graph.AddEdge(stage.After, stage.ID); err != nil {
					return nil, err
				}
			}
		}
	}
	return graph, nil
}

// Run registers pair.Mov onto pair.Ref for every strategy in strategies.
// A stage failure aborts the strategies depending on it and leaves the
// others running. The returned error is only set when the run itself could
// not proceed (invalid graph, cancelled context); the outcome is returned
// whenever stages were scheduled.
func (g *Graph) Run(ctx context.Context, strategies []*pipeline.Strategy, pair subject.Pair) (*Outcome, error) {
	logger := ctxlog.FromContext(ctx)

	graph, err := g.build(strategies)
	if err != nil {
		return nil, fmt.Errorf("failed to build stage graph: %w", err)
	}
	logger.Info("Stage graph built.", "strategies", len(strategies), "stages", graph.Len())

	exec := dag.NewExecutor(graph, g.workers, func(ctx context.Context, node *dag.Node) (any, error) {
		stage, _ := g.pipeline.Stage(node.ID)
		var parent *StageResult
		if stage.After != "" {
			parent = node.Deps[stage.After].Output.(*StageResult)
		}
		return g.runStage(ctx, stage, parent, pair)
	})
	runErr := exec.Run(ctx)

	outcome := &Outcome{StageStates: make(map[string]dag.State, graph.Len())}
	for _, n := range graph.Nodes() {
		outcome.StageStates[n.ID] = n.State()
	}

	for _, s := range strategies {
		node, _ := graph.Node(s.Stage)
		so := StrategyOutcome{Strategy: s}
		switch node.State() {
		case dag.Done:
			res := node.Output.(*StageResult)
			so.Composite = res.Composite
			so.Chain = res.Chain
		default:
			so.Err = node.Err
			so.FailedStage = s.Stage
			var skipped *dag.SkippedError
			if errors.As(node.Err, &skipped) {
				so.FailedStage = skipped.Origin
			}
			if so.Err == nil {
				so.Err = fmt.Errorf("stage %s did not complete", s.Stage)
			}
			logger.Warn("Strategy aborted.", "strategy", s.Name, "failed_stage", so.FailedStage, "error", so.Err)
		}
		outcome.Strategies = append(outcome.Strategies, so)
	}

	logger.Info("Registration finished.", "succeeded", len(outcome.Succeeded()), "aborted", len(outcome.Aborted()))
	return outcome, runErr
}

// RunStrategy runs a single strategy and returns its composite transform.
func (g *Graph) RunStrategy(ctx context.Context, s *pipeline.Strategy, pair subject.Pair) (string, error) {
	outcome, err := g.Run(ctx, []*pipeline.Strategy{s}, pair)
	if err != nil {
		return "", err
	}
	so := outcome.Strategies[0]
	if so.Err != nil {
		return "", so.Err
	}
	return so.Composite, nil
}
