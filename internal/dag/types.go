// Package dag builds the workflow dependency graph: one node per task,
// scatter, when, reduce and output block, with edges derived from explicit
// depends_on lists and from the variable references inside expressions.
// Construction rejects cyclic graphs before anything executes.
package dag

import (
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/model"
)

// NodeType discriminates the kinds of nodes in the execution graph.
type NodeType int

const (
	TaskNode NodeType = iota
	ScatterNode
	WhenNode
	ReduceNode
	OutputNode
)

func (t NodeType) String() string {
	switch t {
	case TaskNode:
		return "task"
	case ScatterNode:
		return "scatter"
	case WhenNode:
		return "when"
	case ReduceNode:
		return "reduce"
	case OutputNode:
		return "output"
	default:
		return "unknown"
	}
}

// NodeState is the lifecycle of one node. Transitions happen exactly once
// per node: Pending -> Running -> one of the terminal states, or
// Pending -> Skipped when an upstream failure prevents the node from
// running at all.
type NodeState int32

const (
	Pending NodeState = iota
	Running
	Succeeded
	Failed
	// ResolvedAbsent is terminal success with an absent value: a false
	// conditional gate, or absent propagation from upstream.
	ResolvedAbsent
	Skipped
)

func (s NodeState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case ResolvedAbsent:
		return "absent"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s NodeState) Terminal() bool {
	return s == Succeeded || s == Failed || s == ResolvedAbsent || s == Skipped
}

// Node is one vertex of the execution graph. Exactly one of the config
// pointers is set, matching Type.
type Node struct {
	ID   string
	Name string
	Type NodeType

	Task    *model.Task
	Scatter *model.Scatter
	When    *model.When
	Reduce  *model.Reduce
	Output  *model.Output

	// Subgraph holds a when node's guarded tasks; nil for other types.
	Subgraph *Graph

	Deps       map[string]*Node
	Dependents map[string]*Node

	// Result is the node's resolved value, immutable once the node reaches
	// a terminal state. Err carries the cause for Failed and Skipped.
	Result cty.Value
	Err    error

	state    atomic.Int32
	depCount atomic.Int32
}

// State returns the node's current lifecycle state.
func (n *Node) State() NodeState {
	return NodeState(n.state.Load())
}

// SetState stores the node's lifecycle state.
func (n *Node) SetState(s NodeState) {
	n.state.Store(int32(s))
}

// TryStart transitions Pending -> Running. The compare-and-swap against the
// skip path is what makes node completion exactly-once: a node is either
// executed or skipped, never both.
func (n *Node) TryStart() bool {
	return n.state.CompareAndSwap(int32(Pending), int32(Running))
}

// TrySkip transitions Pending -> Skipped, returning false when the node was
// already started or skipped by someone else.
func (n *Node) TrySkip() bool {
	return n.state.CompareAndSwap(int32(Pending), int32(Skipped))
}

// DecrementDepCount atomically marks one dependency resolved and returns the
// number still outstanding.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// SetInitialCounters primes the dependency counter after linking.
func (n *Node) SetInitialCounters() {
	n.depCount.Store(int32(len(n.Deps)))
}

// Graph is the set of nodes keyed by ID.
type Graph struct {
	Nodes map[string]*Node
}

// Roots returns the nodes with no dependencies, in no particular order.
func (g *Graph) Roots() []*Node {
	var roots []*Node
	for _, n := range g.Nodes {
		if len(n.Deps) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

func addEdge(from, to *Node) {
	to.Deps[from.ID] = from
	from.Dependents[to.ID] = to
}

func newNode(id, name string, nodeType NodeType) *Node {
	return &Node{
		ID:         id,
		Name:       name,
		Type:       nodeType,
		Deps:       make(map[string]*Node),
		Dependents: make(map[string]*Node),
		Result:     cty.NilVal,
	}
}
