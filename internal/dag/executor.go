package dag

import (
	"context"
	"fmt"
	"sync"

	"github.com/ocommowi/regeval/internal/ctxlog"
)

// RunFunc executes the work attached to a node. Its first return value is
// stored in Node.Output for dependents to consume.
type RunFunc func(ctx context.Context, node *Node) (any, error)

// Executor runs every node of a graph on a fixed pool of workers.
type Executor struct {
	graph      *Graph
	numWorkers int
	run        RunFunc
	wg         sync.WaitGroup
}

// NewExecutor builds an executor. A graph is meant to be executed once.
func NewExecutor(g *Graph, numWorkers int, run RunFunc) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Executor{graph: g, numWorkers: numWorkers, run: run}
}

// Run executes the entire graph and blocks until every node is done, failed
// or skipped. Node failures are recorded on the nodes themselves; the
// returned error is only non-nil for an invalid graph or a cancelled context.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	if err := e.graph.DetectCycles(); err != nil {
		return fmt.Errorf("error validating dependency graph: %w", err)
	}

	nodes := e.graph.Nodes()
	if len(nodes) == 0 {
		logger.Warn("No nodes found in graph, execution not required.")
		return nil
	}

	readyChan := make(chan *Node, len(nodes))
	rootNodeCount := 0
	for _, node := range nodes {
		node.depCount.Store(int32(len(node.Deps)))
		if len(node.Deps) == 0 {
			logger.Debug("Found root node.", "node", node.ID)
			readyChan <- node
			rootNodeCount++
		}
	}
	logger.Debug("Found all root nodes.", "count", rootNodeCount)

	e.wg.Add(len(nodes))

	workers := min(e.numWorkers, len(nodes))
	logger.Debug("Starting worker pool.", "workers", workers)
	for i := 0; i < workers; i++ {
		go e.worker(ctx, readyChan, i)
	}

	e.wg.Wait()
	close(readyChan)
	logger.Debug("All nodes settled.")

	return ctx.Err()
}

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *Node, workerID int) {
	for node := range readyChan {
		nodeCtx := ctxlog.With(ctx, "worker", workerID, "node", node.ID)
		logger := ctxlog.FromContext(nodeCtx)

		if err := ctx.Err(); err != nil {
			logger.Warn("Context canceled, not starting node.")
			e.fail(nodeCtx, node, err)
			continue
		}

		node.state.Store(int32(Running))
		output, err := e.run(nodeCtx, node)
		if err != nil {
			logger.Error("Node execution failed.", "error", err)
			e.fail(nodeCtx, node, err)
			continue
		}

		node.Output = output
		node.state.Store(int32(Done))

		for _, dependent := range e.dependents(node) {
			if dependent.depCount.Add(-1) == 0 {
				logger.Debug("Unlocking dependent node.", "dependent", dependent.ID)
				readyChan <- dependent
			}
		}
		e.wg.Done()
	}
}

// fail records err on node and skips everything downstream of it.
func (e *Executor) fail(ctx context.Context, node *Node, err error) {
	node.Err = err
	node.state.Store(int32(Failed))
	e.skipDependents(ctx, node, node.ID, err)
	e.wg.Done()
}

// skipDependents recursively marks all downstream nodes as skipped and
// decrements the WaitGroup once for each of them.
func (e *Executor) skipDependents(ctx context.Context, node *Node, origin string, cause error) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range e.dependents(node) {
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping dependent node due to upstream failure.", "dependent", dependent.ID, "origin", origin)
			dependent.Err = &SkippedError{Origin: origin, Err: cause}
			dependent.state.Store(int32(Skipped))
			e.wg.Done()
			e.skipDependents(ctx, dependent, origin, cause)
		})
	}
}

func (e *Executor) dependents(node *Node) []*Node {
	ids, _ := e.graph.Dependents(node.ID)
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, node.Dependents[id])
	}
	return out
}
