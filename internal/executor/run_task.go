package executor

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/dag"
	"github.com/seqflow-io/seqflow/internal/expr"
	"github.com/seqflow-io/seqflow/internal/model"
	"github.com/seqflow-io/seqflow/internal/runstore"
)

// runTaskNode executes a top-level task node.
func (e *Executor) runTaskNode(ctx context.Context, n *dag.Node) error {
	scope := e.buildScope(nil)
	result, absent, attempts, err := e.runTask(ctx, n.ID, n.Task, scope)
	if err != nil {
		return err
	}
	n.Result = result
	if absent {
		n.SetState(dag.ResolvedAbsent)
		e.record(ctx, n.ID, runstore.StatusAbsent, 0, result, nil)
	} else {
		n.SetState(dag.Succeeded)
		e.record(ctx, n.ID, runstore.StatusSucceeded, attempts, result, nil)
	}
	return nil
}

// runTask resolves a task's arguments and invokes its capability, honoring
// absent propagation, resume-from-store, retries and timeouts. It is shared
// by task nodes and scatter task instances. The returned attempt count is
// how many invocations the capability actually took, zero when it was never
// invoked.
func (e *Executor) runTask(ctx context.Context, id string, task *model.Task, scope *hcl.EvalContext) (result cty.Value, absent bool, attempts int, err error) {
	logger := ctxlog.FromContext(ctx).With("node_id", id, "capability", task.Capability)

	args, absentRef, err := resolveTaskArgs(id, task, scope)
	if err != nil {
		return cty.NilVal, false, 0, err
	}
	if absentRef != "" {
		if task.Required {
			return cty.NilVal, false, 0, &model.MissingRequiredInputError{NodeID: id, Reference: absentRef}
		}
		logger.Info("Task resolved to absent, capability not invoked.", "absent_reference", absentRef)
		return expr.Absent(), true, 0, nil
	}

	if stored, ok := e.resumable(ctx, id); ok {
		logger.Info("Reusing stored output from a previous run.")
		return stored, false, 0, nil
	}

	logger.Info("Starting task.")
	output, attempts, err := e.invokeWithRetry(ctx, id, task, args)
	if err != nil {
		return cty.NilVal, false, attempts, err
	}
	logger.Info("Task succeeded.", "attempts", attempts)
	return output, false, attempts, nil
}

// resolveTaskArgs evaluates a task's argument expressions against scope. The
// returned absentRef names the first argument that resolved to absent, in
// which case the capability must not be invoked: the task either propagates
// absent or, when marked required, fails.
func resolveTaskArgs(id string, task *model.Task, scope *hcl.EvalContext) (map[string]cty.Value, string, error) {
	names := make([]string, 0, len(task.Arguments))
	for name := range task.Arguments {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make(map[string]cty.Value, len(names))
	for _, name := range names {
		argExpr := task.Arguments[name]
		val, err := expr.Evaluate(argExpr, scope)
		if err != nil {
			return nil, "", fmt.Errorf("task '%s': argument '%s': %w", id, name, err)
		}
		if expr.IsAbsent(val) {
			return nil, name, nil
		}
		args[name] = val
	}
	return args, "", nil
}
