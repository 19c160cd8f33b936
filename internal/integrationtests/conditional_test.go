package integrationtests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/testutil"
)

type bamInput struct {
	Bam string `hcl:"bam"`
}

const conditionalWorkflow = `
	input "check_contamination" {
		type    = bool
		default = true
	}
	task "mark_dups" { capability = "dedup" }
	when "contamination" {
		condition = input.check_contamination
		task "estimate" {
			capability = "estimate"
			arguments { bam = task.mark_dups.output.bam }
		}
		output "report" { value = task.estimate.output.report }
	}
	output "contamination_report" {
		value    = when.contamination.report
		required = false
	}
`

func conditionalFakes() (*testutil.Fake[struct{}], *testutil.Fake[bamInput]) {
	dedup := &testutil.Fake[struct{}]{
		Name: "dedup",
		Fn: func(ctx context.Context, _ *struct{}) (cty.Value, error) {
			return cty.ObjectVal(map[string]cty.Value{"bam": cty.StringVal("/tmp/dedup.bam")}), nil
		},
	}
	estimate := &testutil.Fake[bamInput]{
		Name: "estimate",
		Fn: func(ctx context.Context, input *bamInput) (cty.Value, error) {
			return cty.ObjectVal(map[string]cty.Value{"report": cty.StringVal(input.Bam + ".selfSM")}), nil
		},
	}
	return dedup, estimate
}

func TestWhen_ConditionTrueRunsGuardedTasks(t *testing.T) {
	dedup, estimate := conditionalFakes()
	files := map[string]string{"main.hcl": conditionalWorkflow}

	res := testutil.RunWorkflow(t, files, testutil.Options{}, dedup, estimate)
	require.NoError(t, res.Err)
	require.Equal(t, int32(1), dedup.Calls.Load())
	require.Equal(t, int32(1), estimate.Calls.Load())
	require.Equal(t, cty.StringVal("/tmp/dedup.bam.selfSM"), res.Result.Outputs["contamination_report"])
}

func TestWhen_ConditionFalseSkipsGuardedTasks(t *testing.T) {
	dedup, estimate := conditionalFakes()
	files := map[string]string{"main.hcl": conditionalWorkflow}

	res := testutil.RunWorkflow(t, files, testutil.Options{
		Inputs: map[string]cty.Value{"check_contamination": cty.False},
	}, dedup, estimate)
	require.NoError(t, res.Err)
	// The gate's upstream still runs; the guarded task does not.
	require.Equal(t, int32(1), dedup.Calls.Load())
	require.Equal(t, int32(0), estimate.Calls.Load())
	require.True(t, res.Result.Outputs["contamination_report"].IsNull())
}

func TestWhen_AbsentConditionBehavesLikeFalse(t *testing.T) {
	dedup, estimate := conditionalFakes()
	files := map[string]string{"main.hcl": `
		input "db" { default = null }
		task "mark_dups" { capability = "dedup" }
		when "fingerprint" {
			condition = input.db != null && length(input.db) > 0
			task "estimate" {
				capability = "estimate"
				arguments { bam = task.mark_dups.output.bam }
			}
			output "report" { value = task.estimate.output.report }
		}
		output "fp_report" { value = when.fingerprint.report }
	`}

	res := testutil.RunWorkflow(t, files, testutil.Options{}, dedup, estimate)
	require.NoError(t, res.Err)
	require.Equal(t, int32(0), estimate.Calls.Load())
	require.True(t, res.Result.Outputs["fp_report"].IsNull())
}
