package dag

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle position of a node.
type State int32

const (
	Pending State = iota
	Running
	Done
	Failed
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Graph is a collection of nodes and their dependencies, representing a DAG.
// Structural operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*Node
	// order keeps insertion order so that scheduling and reports are stable.
	order []string
}

// Node is a single vertex in the graph.
type Node struct {
	// ID is the unique identifier for the node.
	ID string
	// Deps holds the nodes that this node depends on (predecessors).
	Deps map[string]*Node
	// Dependents holds the nodes that depend on this node (successors).
	Dependents map[string]*Node

	// Output is what the node's RunFunc returned. It is written once by the
	// worker that ran the node, before any dependent is dispatched.
	Output any
	// Err is set when the node failed or was skipped.
	Err error

	state    atomic.Int32
	depCount atomic.Int32
	skipOnce sync.Once
}

// State returns the current lifecycle state of the node.
func (n *Node) State() State {
	return State(n.state.Load())
}
