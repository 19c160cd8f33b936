package executor

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/dag"
	"github.com/seqflow-io/seqflow/internal/expr"
	"github.com/seqflow-io/seqflow/internal/model"
	"github.com/seqflow-io/seqflow/internal/runstore"
)

// runOutputNode resolves one entry of the final result set. Output nodes
// depend on everything their expression references, so by the time one runs
// the referenced values are terminal.
func (e *Executor) runOutputNode(ctx context.Context, n *dag.Node) error {
	scope := e.buildScope(nil)
	val, err := expr.Evaluate(n.Output.Value, scope)
	if err != nil {
		return fmt.Errorf("output '%s': %w", n.Name, err)
	}

	if expr.IsAbsent(val) {
		if n.Output.Required {
			return &model.MissingRequiredOutputError{Name: n.Name}
		}
		ctxlog.FromContext(ctx).Info("Optional output resolved to absent.", "node_id", n.ID)
		n.Result = expr.Absent()
		n.SetState(dag.ResolvedAbsent)
		e.record(ctx, n.ID, runstore.StatusAbsent, 0, n.Result, nil)
		return nil
	}

	n.Result = val
	n.SetState(dag.Succeeded)
	e.record(ctx, n.ID, runstore.StatusSucceeded, 0, val, nil)
	return nil
}

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// NodeFailure pairs a failed node with its cause.
type NodeFailure struct {
	NodeID string
	Err    error
}

// RunResult is the assembled outcome of one run: the declared outputs plus
// a per-node accounting. It is populated even for failed runs so callers
// can report partial progress.
type RunResult struct {
	RunID   string
	Status  RunStatus
	Outputs map[string]cty.Value

	SucceededNodes []string
	FailedNodes    []NodeFailure
	SkippedNodes   []string
}

// collectResult walks the terminal graph and assembles the run result.
// Output nodes that resolved to absent appear in Outputs with a null value,
// so optional outputs stay visible in the result set.
func (e *Executor) collectResult() *RunResult {
	result := &RunResult{
		RunID:   e.runID,
		Status:  RunSucceeded,
		Outputs: make(map[string]cty.Value),
	}

	for _, n := range e.graph.Nodes {
		switch n.State() {
		case dag.Succeeded, dag.ResolvedAbsent:
			result.SucceededNodes = append(result.SucceededNodes, n.ID)
			if n.Type == dag.OutputNode {
				result.Outputs[n.Name] = n.Result
			}
		case dag.Failed:
			result.Status = RunFailed
			result.FailedNodes = append(result.FailedNodes, NodeFailure{NodeID: n.ID, Err: n.Err})
		case dag.Skipped:
			result.Status = RunFailed
			result.SkippedNodes = append(result.SkippedNodes, n.ID)
		}
	}

	sort.Strings(result.SucceededNodes)
	sort.Strings(result.SkippedNodes)
	sort.Slice(result.FailedNodes, func(i, j int) bool {
		return result.FailedNodes[i].NodeID < result.FailedNodes[j].NodeID
	})
	return result
}
