// Package executor drives a built dependency graph to a terminal status. A
// fixed worker pool consumes a ready channel; a completing node decrements
// its dependents' counters and enqueues those that become ready, so the
// engine reacts to completions instead of polling.
package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/capability"
	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/dag"
	"github.com/seqflow-io/seqflow/internal/runstore"
)

// DefaultWorkerCount is used when Options.Workers is not positive.
const DefaultWorkerCount = 10

// Options configures one engine instance.
type Options struct {
	RunID    string
	Workers  int
	Inputs   map[string]cty.Value
	Registry *capability.Registry
	Store    runstore.Store
}

// Executor owns the execution of one graph. Nested runs (conditional
// subgraphs) get a child Executor sharing the registry, store and run id.
type Executor struct {
	graph   *dag.Graph
	caps    *capability.Registry
	store   runstore.Store
	runID   string
	workers int
	inputs  map[string]cty.Value

	// idPrefix namespaces store records of nested runs, e.g.
	// "when.contamination." for a conditional's guarded tasks.
	idPrefix string

	// baseVars carries the parent scope's resolved values into a nested
	// run; empty for the top-level executor.
	baseVars map[string]map[string]cty.Value

	wg     sync.WaitGroup
	failed atomic.Bool

	errMu    sync.Mutex
	firstErr error
}

// New creates an executor for a top-level run.
func New(graph *dag.Graph, opts Options) *Executor {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	store := opts.Store
	if store == nil {
		store = runstore.NewMemoryStore()
	}
	return &Executor{
		graph:    graph,
		caps:     opts.Registry,
		store:    store,
		runID:    opts.RunID,
		workers:  workers,
		inputs:   opts.Inputs,
		baseVars: map[string]map[string]cty.Value{},
	}
}

// child creates the executor for a nested subgraph run.
func (e *Executor) child(subgraph *dag.Graph, idPrefix string, baseVars map[string]map[string]cty.Value) *Executor {
	return &Executor{
		graph:    subgraph,
		caps:     e.caps,
		store:    e.store,
		runID:    e.runID,
		workers:  e.workers,
		inputs:   e.inputs,
		idPrefix: e.idPrefix + idPrefix,
		baseVars: baseVars,
	}
}

// Run executes the graph and assembles the final result. The returned error
// is the root cause when the run failed; the result is always populated so
// callers can inspect partial outcomes.
func (e *Executor) Run(ctx context.Context) (*RunResult, error) {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *dag.Node, len(e.graph.Nodes))
	rootCount := 0
	for _, n := range e.graph.Roots() {
		readyChan <- n
		rootCount++
	}
	logger.Debug("Seeded root nodes.", "count", rootCount, "total", len(e.graph.Nodes))

	e.wg.Add(len(e.graph.Nodes))
	for i := 0; i < e.workers; i++ {
		go e.worker(ctx, readyChan, i)
	}

	e.wg.Wait()
	close(readyChan)

	result := e.collectResult()
	if result.Status == RunFailed {
		if err := e.rootCause(); err != nil {
			return result, err
		}
		// Cancellation skips nodes without recording a node failure.
		if err := ctx.Err(); err != nil {
			return result, err
		}
		return result, fmt.Errorf("run failed")
	}
	return result, nil
}

// noteFailure keeps the first real failure as the run's root cause.
func (e *Executor) noteFailure(err error) {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	if e.firstErr == nil {
		e.firstErr = err
	}
}

func (e *Executor) rootCause() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.firstErr
}

// record persists a node transition. Store failures are logged, not fatal:
// the in-memory run stays authoritative.
func (e *Executor) record(ctx context.Context, nodeID string, status runstore.Status, attempts int, output cty.Value, cause error) {
	rec := &runstore.Record{
		RunID:     e.runID,
		NodeID:    e.idPrefix + nodeID,
		Status:    status,
		Attempts:  attempts,
		UpdatedAt: time.Now().UTC(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if output != cty.NilVal {
		if err := rec.SetOutput(output); err != nil {
			ctxlog.FromContext(ctx).Warn("Failed to encode node output for the run store.", "node_id", rec.NodeID, "error", err)
		}
	}
	if err := e.store.Put(ctx, rec); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to persist node state.", "node_id", rec.NodeID, "error", err)
	}
}

// resumable returns the previously stored output when a node already
// succeeded in an earlier interrupted run with the same run id.
func (e *Executor) resumable(ctx context.Context, nodeID string) (cty.Value, bool) {
	rec, err := e.store.Get(ctx, e.runID, e.idPrefix+nodeID)
	if err != nil || rec.Status != runstore.StatusSucceeded {
		return cty.NilVal, false
	}
	val, err := rec.OutputValue()
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Stored output is unreadable, re-running node.", "node_id", nodeID, "error", err)
		return cty.NilVal, false
	}
	return val, true
}
