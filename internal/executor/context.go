package executor

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/dag"
	"github.com/seqflow-io/seqflow/internal/expr"
)

// collectVars gathers the resolved values visible to expressions, grouped by
// reference root ("task", "scatter", "when", "reduce") and wrapped the way
// the reference grammar expects:
//
//	task.<name>.output.<attr>
//	scatter.<name>.outputs[<i>]
//	when.<name>.<output>
//	reduce.<name>.value
//
// Nested runs start from the parent's snapshot; local nodes of the same name
// shadow it.
func (e *Executor) collectVars() map[string]map[string]cty.Value {
	vars := make(map[string]map[string]cty.Value, 4)
	for root, attrs := range e.baseVars {
		vars[root] = make(map[string]cty.Value, len(attrs))
		for name, val := range attrs {
			vars[root][name] = val
		}
	}

	add := func(root, name string, val cty.Value) {
		if vars[root] == nil {
			vars[root] = make(map[string]cty.Value)
		}
		vars[root][name] = val
	}

	for _, n := range e.graph.Nodes {
		state := n.State()
		if state != dag.Succeeded && state != dag.ResolvedAbsent {
			continue
		}
		switch n.Type {
		case dag.TaskNode:
			add("task", n.Name, cty.ObjectVal(map[string]cty.Value{"output": n.Result}))
		case dag.ScatterNode:
			add("scatter", n.Name, cty.ObjectVal(map[string]cty.Value{"outputs": n.Result}))
		case dag.WhenNode:
			add("when", n.Name, n.Result)
		case dag.ReduceNode:
			add("reduce", n.Name, cty.ObjectVal(map[string]cty.Value{"value": n.Result}))
		}
	}
	return vars
}

// buildScope creates the evaluation context for one node, optionally
// extended with instance-local variables (each.value / each.index inside a
// scatter template).
func (e *Executor) buildScope(extra map[string]cty.Value) *hcl.EvalContext {
	variables := make(map[string]cty.Value)

	if len(e.inputs) > 0 {
		variables["input"] = cty.ObjectVal(e.inputs)
	} else {
		variables["input"] = cty.EmptyObjectVal
	}

	for root, attrs := range e.collectVars() {
		if len(attrs) > 0 {
			variables[root] = cty.ObjectVal(attrs)
		}
	}
	for name, val := range extra {
		variables[name] = val
	}

	return &hcl.EvalContext{
		Variables: variables,
		Functions: expr.Functions(),
	}
}
