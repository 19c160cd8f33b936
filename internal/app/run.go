package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/dag"
	"github.com/seqflow-io/seqflow/internal/executor"
	"github.com/seqflow-io/seqflow/internal/model"
)

// Run executes the loaded workflow end to end: resolve inputs, build the
// graph, drive it, and report the result set.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "run_id", a.runID)

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	provided := map[string]cty.Value{}
	if a.config.InputsPath != "" {
		var err error
		provided, err = model.LoadInputValues(a.config.InputsPath)
		if err != nil {
			return fmt.Errorf("failed to load input values: %w", err)
		}
	}
	inputs, err := a.workflow.ResolveInputs(provided)
	if err != nil {
		return fmt.Errorf("failed to resolve workflow inputs: %w", err)
	}
	a.logger.Debug("Workflow inputs resolved.", "count", len(inputs))

	graph, err := dag.Build(ctx, a.workflow)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Debug("Dependency graph built.", "node_count", len(graph.Nodes))

	if len(graph.Nodes) == 0 {
		a.logger.Warn("No nodes found in graph, execution not required.")
		return nil
	}

	a.logger.Info("Starting workflow run.", "run_id", a.runID, "workflow", a.workflow.Name)
	exec := executor.New(graph, executor.Options{
		RunID:    a.runID,
		Workers:  a.config.WorkerCount,
		Inputs:   inputs,
		Registry: a.registry,
		Store:    a.store,
	})
	result, runErr := exec.Run(ctx)

	a.printResult(result)

	if runErr != nil {
		return fmt.Errorf("execution failed: %w", runErr)
	}
	a.logger.Info("Workflow run finished.", "run_id", a.runID, "status", string(result.Status))
	return nil
}

// printResult writes the run's result set to the app's output writer.
// Outputs are rendered as JSON values so structured results stay readable.
func (a *App) printResult(result *executor.RunResult) {
	fmt.Fprintf(a.outW, "run %s: %s\n", result.RunID, result.Status)

	names := make([]string, 0, len(result.Outputs))
	for name := range result.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		val := result.Outputs[name]
		if val.IsNull() {
			fmt.Fprintf(a.outW, "  %s = (absent)\n", name)
			continue
		}
		encoded, err := ctyjson.Marshal(val, val.Type())
		if err != nil {
			fmt.Fprintf(a.outW, "  %s = <unencodable: %v>\n", name, err)
			continue
		}
		fmt.Fprintf(a.outW, "  %s = %s\n", name, encoded)
	}

	for _, failure := range result.FailedNodes {
		fmt.Fprintf(a.outW, "  failed: %s: %v\n", failure.NodeID, failure.Err)
	}
	if len(result.SkippedNodes) > 0 {
		fmt.Fprintf(a.outW, "  skipped: %d node(s)\n", len(result.SkippedNodes))
	}
}
