package dag

import (
	"context"
	"fmt"

	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/model"
)

// Build constructs a complete, validated dependency graph from a workflow
// model. When blocks get a nested subgraph of their guarded tasks; the
// subgraph is built and validated here but only executes if the gate
// evaluates true.
func Build(ctx context.Context, wf *model.Workflow) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: starting graph construction.")

	graph := &Graph{Nodes: make(map[string]*Node)}

	// First pass: one node per block.
	for _, task := range wf.Tasks {
		n := newNode("task."+task.Name, task.Name, TaskNode)
		n.Task = task
		graph.Nodes[n.ID] = n
	}
	for _, scatter := range wf.Scatters {
		n := newNode("scatter."+scatter.Name, scatter.Name, ScatterNode)
		n.Scatter = scatter
		graph.Nodes[n.ID] = n
	}
	for _, when := range wf.Whens {
		n := newNode("when."+when.Name, when.Name, WhenNode)
		n.When = when
		subgraph, err := buildSubgraph(when)
		if err != nil {
			return nil, err
		}
		n.Subgraph = subgraph
		graph.Nodes[n.ID] = n
	}
	for _, reduce := range wf.Reduces {
		n := newNode("reduce."+reduce.Name, reduce.Name, ReduceNode)
		n.Reduce = reduce
		graph.Nodes[n.ID] = n
	}
	for _, output := range wf.Outputs {
		n := newNode("output."+output.Name, output.Name, OutputNode)
		n.Output = output
		graph.Nodes[n.ID] = n
	}
	logger.Debug("Build: node creation complete.", "node_count", len(graph.Nodes))

	// Second pass: dependency links.
	if err := linkNodes(graph); err != nil {
		return nil, err
	}
	logger.Debug("Build: node linking complete.")

	// Third pass: counters, then acyclicity.
	for _, n := range graph.Nodes {
		n.SetInitialCounters()
	}
	if err := graph.detectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Build: cycle detection passed.")

	return graph, nil
}

// buildSubgraph constructs and validates the nested graph of a when block.
// Node IDs inside the subgraph use the local task namespace; references to
// parent-scope symbols resolve through the snapshot the gate passes down, so
// they create no subgraph edges.
func buildSubgraph(when *model.When) (*Graph, error) {
	subgraph := &Graph{Nodes: make(map[string]*Node)}
	for _, task := range when.Tasks {
		n := newNode("task."+task.Name, task.Name, TaskNode)
		n.Task = task
		if _, dup := subgraph.Nodes[n.ID]; dup {
			return nil, fmt.Errorf("when '%s': duplicate task '%s'", when.Name, task.Name)
		}
		subgraph.Nodes[n.ID] = n
	}

	for _, n := range subgraph.Nodes {
		for _, entry := range n.Task.DependsOn {
			dep, ok := subgraph.Nodes[entry]
			if !ok {
				return nil, fmt.Errorf("when '%s': task '%s' depends on unknown node '%s'", when.Name, n.Name, entry)
			}
			addEdge(dep, n)
		}
		for _, e := range n.Task.Arguments {
			for _, traversal := range e.Variables() {
				ref := traversal.RootName()
				if ref != "task" || len(traversal) < 2 {
					continue
				}
				name, ok := traversalAttr(traversal, 1)
				if !ok {
					continue
				}
				if dep, local := subgraph.Nodes["task."+name]; local && dep != n {
					addEdge(dep, n)
				}
			}
		}
	}

	for _, n := range subgraph.Nodes {
		n.SetInitialCounters()
	}
	if err := subgraph.detectCycles(); err != nil {
		return nil, fmt.Errorf("when '%s': %w", when.Name, err)
	}
	return subgraph, nil
}

// detectCycles rejects graphs that are not acyclic, using depth-first search
// with a recursion-stack marker set.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		visiting[n.ID] = true
		for _, dep := range n.Deps {
			if visiting[dep.ID] {
				return &model.CycleDetectedError{NodeID: dep.ID}
			}
			if !visited[dep.ID] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		delete(visiting, n.ID)
		visited[n.ID] = true
		return nil
	}

	for _, n := range g.Nodes {
		if !visited[n.ID] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}
