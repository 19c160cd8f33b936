package dag

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// linkNodes performs the second build pass: explicit depends_on edges plus
// implicit edges derived from every expression's variable traversals.
func linkNodes(graph *Graph) error {
	for _, n := range graph.Nodes {
		for _, entry := range explicitDeps(n) {
			dep, ok := graph.Nodes[entry]
			if !ok {
				return fmt.Errorf("node '%s' depends on unknown node '%s'", n.ID, entry)
			}
			if dep == n {
				return fmt.Errorf("node '%s' cannot depend on itself", n.ID)
			}
			addEdge(dep, n)
		}
		for _, e := range nodeExpressions(n) {
			if err := linkImplicitDeps(graph, n, e); err != nil {
				return err
			}
		}
	}
	return nil
}

func explicitDeps(n *Node) []string {
	switch n.Type {
	case TaskNode:
		return n.Task.DependsOn
	case ScatterNode:
		return n.Scatter.DependsOn
	case WhenNode:
		return n.When.DependsOn
	case ReduceNode:
		return n.Reduce.DependsOn
	default:
		return nil
	}
}

// nodeExpressions collects every expression whose references bind this node
// to upstream outputs. For a when node that includes the whole guarded
// subgraph: anything its nested tasks reference in the parent scope must be
// resolved before the gate opens.
func nodeExpressions(n *Node) []hcl.Expression {
	var exprs []hcl.Expression
	switch n.Type {
	case TaskNode:
		for _, e := range n.Task.Arguments {
			exprs = append(exprs, e)
		}
	case ScatterNode:
		exprs = append(exprs, n.Scatter.Over)
		for _, e := range n.Scatter.Task.Arguments {
			exprs = append(exprs, e)
		}
	case WhenNode:
		exprs = append(exprs, n.When.Condition)
		for _, task := range n.When.Tasks {
			for _, e := range task.Arguments {
				exprs = append(exprs, e)
			}
		}
		for _, out := range n.When.Outputs {
			exprs = append(exprs, out.Value)
		}
	case ReduceNode:
		exprs = append(exprs, n.Reduce.Over)
	case OutputNode:
		exprs = append(exprs, n.Output.Value)
	}
	return exprs
}

// linkImplicitDeps adds one edge per upstream node referenced by expr.
func linkImplicitDeps(graph *Graph, n *Node, e hcl.Expression) error {
	for _, traversal := range e.Variables() {
		root := traversal.RootName()
		switch root {
		case "input", "each":
			// Inputs are resolved before execution; each.* only exists
			// inside scatter templates and binds at instantiation time.
			continue
		case "task", "scatter", "when", "reduce":
			name, ok := traversalAttr(traversal, 1)
			if !ok {
				return fmt.Errorf("node '%s': reference to bare '%s' is not allowed", n.ID, root)
			}
			if n.Type == WhenNode && root == "task" && n.Subgraph != nil {
				if _, internal := n.Subgraph.Nodes["task."+name]; internal {
					continue
				}
			}
			depID := root + "." + name
			dep, found := graph.Nodes[depID]
			if !found {
				return fmt.Errorf("node '%s': reference to undeclared node '%s'", n.ID, depID)
			}
			if dep != n {
				addEdge(dep, n)
			}
		default:
			return fmt.Errorf("node '%s': reference to unknown symbol '%s'", n.ID, root)
		}
	}
	return nil
}

// traversalAttr returns the attribute name at position idx of a traversal.
func traversalAttr(traversal hcl.Traversal, idx int) (string, bool) {
	if idx >= len(traversal) {
		return "", false
	}
	attr, ok := traversal[idx].(hcl.TraverseAttr)
	if !ok {
		return "", false
	}
	return attr.Name, true
}
