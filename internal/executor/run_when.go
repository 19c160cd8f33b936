package executor

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/dag"
	"github.com/seqflow-io/seqflow/internal/expr"
	"github.com/seqflow-io/seqflow/internal/model"
	"github.com/seqflow-io/seqflow/internal/runstore"
)

// runWhenNode evaluates a conditional's guard and, when it holds, runs the
// guarded subgraph in a child executor. A false or absent guard resolves
// every declared output to absent without invoking anything.
func (e *Executor) runWhenNode(ctx context.Context, n *dag.Node) error {
	logger := ctxlog.FromContext(ctx).With("node_id", n.ID)
	when := n.When

	scope := e.buildScope(nil)
	cond, err := expr.Evaluate(when.Condition, scope)
	if err != nil {
		return fmt.Errorf("when '%s': condition: %w", n.ID, err)
	}

	taken := false
	if !expr.IsAbsent(cond) {
		boolVal, err := convert.Convert(cond, cty.Bool)
		if err != nil {
			return fmt.Errorf("when '%s': condition is %s, not bool", n.ID, cond.Type().FriendlyName())
		}
		taken = boolVal.True()
	}

	if !taken {
		logger.Info("Condition not met, skipping guarded tasks.", "condition_absent", expr.IsAbsent(cond))
		n.Result = absentOutputs(when.Outputs)
		n.SetState(dag.ResolvedAbsent)
		e.record(ctx, n.ID, runstore.StatusAbsent, 0, n.Result, nil)
		return nil
	}

	logger.Info("Condition met, running guarded tasks.", "tasks", len(when.Tasks))
	child := e.child(n.Subgraph, n.ID+".", e.collectVars())
	if _, err := child.Run(ctx); err != nil {
		return fmt.Errorf("when '%s': %w", n.ID, err)
	}

	// Outputs are evaluated in the nested scope, where guarded tasks are
	// visible under their local names alongside everything the parent sees.
	nestedScope := child.buildScope(nil)
	outputs := make(map[string]cty.Value, len(when.Outputs))
	for _, out := range when.Outputs {
		val, err := expr.Evaluate(out.Value, nestedScope)
		if err != nil {
			return fmt.Errorf("when '%s': output '%s': %w", n.ID, out.Name, err)
		}
		outputs[out.Name] = val
	}

	if len(outputs) == 0 {
		n.Result = cty.EmptyObjectVal
	} else {
		n.Result = cty.ObjectVal(outputs)
	}
	n.SetState(dag.Succeeded)
	e.record(ctx, n.ID, runstore.StatusSucceeded, 0, n.Result, nil)
	return nil
}

// absentOutputs builds the result object of a conditional that did not run:
// every declared output present, every value absent.
func absentOutputs(outs []*model.Output) cty.Value {
	if len(outs) == 0 {
		return cty.EmptyObjectVal
	}
	vals := make(map[string]cty.Value, len(outs))
	for _, out := range outs {
		vals[out.Name] = expr.Absent()
	}
	return cty.ObjectVal(vals)
}
