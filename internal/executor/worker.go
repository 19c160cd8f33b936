package executor

import (
	"context"
	"fmt"

	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/dag"
	"github.com/seqflow-io/seqflow/internal/runstore"
)

// worker is the processing loop of one concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *dag.Node, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "worker_id", workerID)

	for n := range readyChan {
		workerLogger := logger.With("worker_id", workerID, "node_id", n.ID)

		// Once the run is failing or cancelled, no new nodes are
		// submitted; nodes already running are left to finish.
		if ctx.Err() != nil {
			e.skipNode(ctx, n, ctx.Err())
			continue
		}
		if e.failed.Load() {
			e.skipNode(ctx, n, fmt.Errorf("run already failing"))
			continue
		}

		if !n.TryStart() {
			// Skipped between enqueue and pickup; its slot is released.
			continue
		}

		workerLogger.Debug("Worker picked up node.", "type", n.Type.String())
		var err error
		switch n.Type {
		case dag.TaskNode:
			err = e.runTaskNode(ctx, n)
		case dag.ScatterNode:
			err = e.runScatterNode(ctx, n)
		case dag.WhenNode:
			err = e.runWhenNode(ctx, n)
		case dag.ReduceNode:
			err = e.runReduceNode(ctx, n)
		case dag.OutputNode:
			err = e.runOutputNode(ctx, n)
		}

		if err != nil {
			workerLogger.Error("Node failed.", "error", err)
			n.Err = err
			n.SetState(dag.Failed)
			e.record(ctx, n.ID, runstore.StatusFailed, 0, n.Result, err)
			e.noteFailure(err)
			e.failed.Store(true)
			e.skipDependents(ctx, n)
			e.wg.Done()
			continue
		}

		workerLogger.Debug("Node finished.", "state", n.State().String())
		for _, dependent := range n.Dependents {
			if dependent.DecrementDepCount() == 0 {
				workerLogger.Debug("Unlocking dependent node.", "dependent_id", dependent.ID)
				readyChan <- dependent
			}
		}
		e.wg.Done()
	}
	logger.Debug("Worker finished.", "worker_id", workerID)
}

// skipNode marks a pending node as skipped and cascades to its dependents.
// The CAS inside TrySkip keeps the WaitGroup release exactly-once even when
// a node is reachable through several failing paths.
func (e *Executor) skipNode(ctx context.Context, n *dag.Node, cause error) {
	if !n.TrySkip() {
		return
	}
	ctxlog.FromContext(ctx).Warn("Skipping node.", "node_id", n.ID, "cause", cause)
	n.Err = cause
	e.record(ctx, n.ID, runstore.StatusSkipped, 0, n.Result, cause)
	e.wg.Done()
	e.skipDependents(ctx, n)
}

// skipDependents recursively skips everything downstream of n.
func (e *Executor) skipDependents(ctx context.Context, n *dag.Node) {
	for _, dependent := range n.Dependents {
		e.skipNode(ctx, dependent, fmt.Errorf("upstream node '%s' did not complete", n.ID))
	}
}
