package integrationtests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/executor"
	"github.com/seqflow-io/seqflow/internal/testutil"
)

func TestCancel_SkipsPendingNodesAndKeepsFinishedOutputs(t *testing.T) {
	files := map[string]string{"main.hcl": `
		task "first" { capability = "first" }
		task "second" {
			capability = "second"
			arguments { data = task.first.output.value }
		}
	`}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The run is cancelled while "first" is in flight; "first" still
	// completes, "second" must never be submitted.
	first := &testutil.Fake[struct{}]{
		Name: "first",
		Fn: func(ctx context.Context, _ *struct{}) (cty.Value, error) {
			cancel()
			return cty.ObjectVal(map[string]cty.Value{"value": cty.StringVal("kept")}), nil
		},
	}
	second := &testutil.Fake[dataInput]{Name: "second"}

	res := testutil.RunWorkflowWithContext(ctx, t, files, testutil.Options{}, first, second)
	require.ErrorIs(t, res.Err, context.Canceled)
	require.Equal(t, executor.RunFailed, res.Result.Status)
	require.Contains(t, res.Result.SucceededNodes, "task.first")
	require.Contains(t, res.Result.SkippedNodes, "task.second")
	require.Equal(t, int32(0), second.Calls.Load())
}
