package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/dag"
	"github.com/seqflow-io/seqflow/internal/expr"
	"github.com/seqflow-io/seqflow/internal/model"
	"github.com/seqflow-io/seqflow/internal/runstore"
)

// runScatterNode resolves the scatter collection and fans the task template
// out over its elements. This is the two-phase shape dynamic fan-out needs:
// the collection length is only known here, after upstream nodes finished,
// so instances are created at execution time rather than at build time.
func (e *Executor) runScatterNode(ctx context.Context, n *dag.Node) error {
	logger := ctxlog.FromContext(ctx).With("node_id", n.ID)
	scatter := n.Scatter

	scope := e.buildScope(nil)
	coll, err := expr.Evaluate(scatter.Over, scope)
	if err != nil {
		return fmt.Errorf("scatter '%s': over: %w", n.ID, err)
	}
	if expr.IsAbsent(coll) {
		if scatter.Task.Required {
			return &model.MissingRequiredInputError{NodeID: n.ID, Reference: "over"}
		}
		logger.Info("Scatter collection is absent, resolving to absent.")
		n.Result = expr.Absent()
		n.SetState(dag.ResolvedAbsent)
		e.record(ctx, n.ID, runstore.StatusAbsent, 0, n.Result, nil)
		return nil
	}
	if !coll.CanIterateElements() {
		return fmt.Errorf("scatter '%s': over: cannot iterate %s", n.ID, coll.Type().FriendlyName())
	}

	var elems []cty.Value
	for it := coll.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		elems = append(elems, elem)
	}

	// The empty collection resolves immediately; the template is never
	// instantiated.
	if len(elems) == 0 {
		logger.Info("Scatter collection is empty.")
		n.Result = cty.EmptyTupleVal
		n.SetState(dag.Succeeded)
		e.record(ctx, n.ID, runstore.StatusSucceeded, 0, n.Result, nil)
		return nil
	}

	logger.Info("Scattering task template.", "elements", len(elems), "max_parallel", scatter.MaxParallel, "on_failure", string(scatter.OnFailure))

	results, err := e.runScatterInstances(ctx, n, elems)
	if err != nil {
		return err
	}

	// Every index must have resolved; a hole here is an engine bug, not a
	// user error.
	for i, r := range results {
		if r == cty.NilVal {
			return &model.ScatterLengthMismatchError{NodeID: n.ID, Want: len(elems), Got: i}
		}
	}
	if len(results) != len(elems) {
		return &model.ScatterLengthMismatchError{NodeID: n.ID, Want: len(elems), Got: len(results)}
	}

	n.Result = cty.TupleVal(results)
	n.SetState(dag.Succeeded)
	e.record(ctx, n.ID, runstore.StatusSucceeded, 0, n.Result, nil)
	return nil
}

// runScatterInstances runs one task instance per element under the scatter's
// concurrency bound and failure policy. Output order follows input order
// regardless of completion order: each instance writes only its own index.
func (e *Executor) runScatterInstances(ctx context.Context, n *dag.Node, elems []cty.Value) ([]cty.Value, error) {
	scatter := n.Scatter

	// terminate_running propagates cancellation to in-flight instances
	// through this context. The other two policies never cancel it early.
	scatterCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sem chan struct{}
	if scatter.MaxParallel > 0 {
		sem = make(chan struct{}, scatter.MaxParallel)
	}

	results := make([]cty.Value, len(elems))
	var (
		wg       sync.WaitGroup
		failed   atomic.Bool
		errMu    sync.Mutex
		firstErr error
	)
	noteErr := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
		failed.Store(true)
		if scatter.OnFailure == model.TerminateRunning {
			cancel()
		}
	}

	for i := range elems {
		if scatter.OnFailure != model.WaitAll && failed.Load() {
			break
		}
		if sem != nil {
			select {
			case sem <- struct{}{}:
			case <-scatterCtx.Done():
			}
			if scatterCtx.Err() != nil {
				break
			}
		}

		wg.Add(1)
		go func(i int, elem cty.Value) {
			defer wg.Done()
			if sem != nil {
				defer func() { <-sem }()
			}
			if scatter.OnFailure != model.WaitAll && failed.Load() {
				return
			}

			instanceID := fmt.Sprintf("%s[%d]", n.ID, i)
			scope := e.buildScope(map[string]cty.Value{
				"each": cty.ObjectVal(map[string]cty.Value{
					"value": elem,
					"index": cty.NumberIntVal(int64(i)),
				}),
			})

			result, absent, attempts, err := e.runTask(scatterCtx, instanceID, scatter.Task, scope)
			if err != nil {
				ctxlog.FromContext(ctx).Error("Scatter instance failed.", "node_id", instanceID, "error", err)
				e.record(ctx, instanceID, runstore.StatusFailed, attempts, cty.NilVal, err)
				noteErr(err)
				return
			}
			results[i] = result
			if absent {
				e.record(ctx, instanceID, runstore.StatusAbsent, 0, result, nil)
			} else {
				e.record(ctx, instanceID, runstore.StatusSucceeded, attempts, result, nil)
			}
		}(i, elems[i])
	}

	wg.Wait()
	if firstErr != nil {
		return nil, fmt.Errorf("scatter '%s': %w", n.ID, firstErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
