package integrationtests

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/executor"
	"github.com/seqflow-io/seqflow/internal/model"
	"github.com/seqflow-io/seqflow/internal/testutil"
)

func TestFailure_SkipsDependentsButFinishesIndependentBranch(t *testing.T) {
	files := map[string]string{"main.hcl": `
		task "broken" { capability = "broken" }
		task "dependent" {
			capability = "noop"
			arguments { data = task.broken.output.value }
		}
		task "independent" { capability = "survivor" }
	`}

	// The failure only settles which nodes were still pending; hold the
	// failure back until the independent root is in flight so the outcome
	// does not depend on worker pickup order.
	independentRunning := make(chan struct{})
	broken := &testutil.Fake[struct{}]{
		Name: "broken",
		Fn: func(ctx context.Context, _ *struct{}) (cty.Value, error) {
			<-independentRunning
			return cty.NilVal, errors.New("tool crashed")
		},
	}
	survivor := &testutil.Fake[struct{}]{
		Name: "survivor",
		Fn: func(ctx context.Context, _ *struct{}) (cty.Value, error) {
			close(independentRunning)
			return cty.ObjectVal(map[string]cty.Value{"value": cty.True}), nil
		},
	}
	noop := &testutil.Fake[dataInput]{Name: "noop"}

	res := testutil.RunWorkflow(t, files, testutil.Options{}, broken, survivor, noop)
	require.Error(t, res.Err)
	require.Equal(t, executor.RunFailed, res.Result.Status)

	require.Len(t, res.Result.FailedNodes, 1)
	require.Equal(t, "task.broken", res.Result.FailedNodes[0].NodeID)
	require.Contains(t, res.Result.SkippedNodes, "task.dependent")
	require.Contains(t, res.Result.SucceededNodes, "task.independent")
}

func TestFailure_RequiredOutputAbsentFailsRun(t *testing.T) {
	files := map[string]string{"main.hcl": `
		input "enabled" {
			type    = bool
			default = false
		}
		task "anchor" { capability = "anchor" }
		when "gate" {
			condition = input.enabled
			task "guarded" {
				capability = "anchor"
				arguments { data = task.anchor.output.value }
			}
			output "report" { value = task.guarded.output.value }
		}
		output "report" {
			value    = when.gate.report
			required = true
		}
	`}

	anchor := &testutil.Fake[dataInput]{Name: "anchor"}

	res := testutil.RunWorkflow(t, files, testutil.Options{}, anchor)
	require.Error(t, res.Err)

	var missing *model.MissingRequiredOutputError
	require.ErrorAs(t, res.Err, &missing)
	require.Equal(t, "report", missing.Name)
}

func TestFailure_RequiredTaskWithAbsentInputFailsRun(t *testing.T) {
	files := map[string]string{"main.hcl": `
		input "db" { default = null }
		task "strict" {
			capability = "strict"
			required   = true
			arguments { db = input.db }
		}
	`}

	strict := &testutil.Fake[dbInput]{Name: "strict"}

	res := testutil.RunWorkflow(t, files, testutil.Options{}, strict)
	require.Error(t, res.Err)

	var missing *model.MissingRequiredInputError
	require.ErrorAs(t, res.Err, &missing)
	require.Equal(t, int32(0), strict.Calls.Load())
}

func TestFailure_CycleRejectedBeforeExecution(t *testing.T) {
	files := map[string]string{"main.hcl": `
		task "a" {
			capability = "noop"
			depends_on = ["task.b"]
		}
		task "b" {
			capability = "noop"
			arguments { data = task.a.output.value }
		}
	`}

	noop := &testutil.Fake[dataInput]{Name: "noop"}

	res := testutil.RunWorkflow(t, files, testutil.Options{}, noop)
	require.Error(t, res.Err)
	require.Nil(t, res.Result)

	var cycle *model.CycleDetectedError
	require.ErrorAs(t, res.Err, &cycle)
	require.Equal(t, int32(0), noop.Calls.Load())
}
