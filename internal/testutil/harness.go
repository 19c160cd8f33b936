// Package testutil provides the integration harness: HCL sources written to
// a temp dir, fake capabilities with invocation counters, and a full
// load-build-run cycle with captured logs.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/capability"
	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/dag"
	"github.com/seqflow-io/seqflow/internal/executor"
	"github.com/seqflow-io/seqflow/internal/model"
	"github.com/seqflow-io/seqflow/internal/runstore"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Result    *executor.RunResult
	Err       error
	LogOutput string
}

// Options tunes one harness run. The zero value uses an in-memory store and
// a fixed run id.
type Options struct {
	Inputs  map[string]cty.Value
	Store   runstore.Store
	RunID   string
	Workers int
}

// RunWorkflow is the standard harness: write the given HCL sources to a
// temp dir, load and build the workflow, and drive it with the provided
// capability modules. Load and build errors come back in HarnessResult.Err
// with a nil Result.
func RunWorkflow(t *testing.T, files map[string]string, opts Options, modules ...capability.Module) *HarnessResult {
	t.Helper()
	return RunWorkflowWithContext(context.Background(), t, files, opts, modules...)
}

// RunWorkflowWithContext is RunWorkflow with a caller-controlled context,
// for cancellation tests.
func RunWorkflowWithContext(ctx context.Context, t *testing.T, files map[string]string, opts Options, modules ...capability.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	logBuffer := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(logBuffer, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx = ctxlog.WithLogger(ctx, logger)

	t.Cleanup(func() {
		if os.Getenv("SEQFLOW_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	result, err := loadAndRun(ctx, tmpDir, opts, modules...)
	return &HarnessResult{
		Result:    result,
		Err:       err,
		LogOutput: logBuffer.String(),
	}
}

func loadAndRun(ctx context.Context, dir string, opts Options, modules ...capability.Module) (*executor.RunResult, error) {
	wf, err := model.LoadWorkflow(ctx, dir)
	if err != nil {
		return nil, err
	}

	inputs, err := wf.ResolveInputs(opts.Inputs)
	if err != nil {
		return nil, err
	}

	graph, err := dag.Build(ctx, wf)
	if err != nil {
		return nil, err
	}

	reg := capability.NewRegistry()
	for _, mod := range modules {
		mod.Register(reg)
	}

	runID := opts.RunID
	if runID == "" {
		runID = "test-run"
	}
	exec := executor.New(graph, executor.Options{
		RunID:    runID,
		Workers:  opts.Workers,
		Inputs:   inputs,
		Registry: reg,
		Store:    opts.Store,
	})
	return exec.Run(ctx)
}
