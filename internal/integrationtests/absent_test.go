package integrationtests

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seqflow-io/seqflow/internal/testutil"
)

func TestAbsent_PropagatesThroughOptionalChain(t *testing.T) {
	files := map[string]string{"main.hcl": `
		input "db" { default = null }
		task "lookup" {
			capability = "lookup"
			arguments { db = input.db }
		}
		task "summarize" {
			capability = "summarize"
			arguments { data = task.lookup.output.rows }
		}
		output "summary" { value = task.summarize.output.text }
	`}

	lookup := &testutil.Fake[dbInput]{Name: "lookup"}
	summarize := &testutil.Fake[dataInput]{Name: "summarize"}

	res := testutil.RunWorkflow(t, files, testutil.Options{}, lookup, summarize)
	require.NoError(t, res.Err)

	// Neither capability ran: lookup's argument was absent, which made its
	// own output absent, which silenced summarize in turn.
	require.Equal(t, int32(0), lookup.Calls.Load())
	require.Equal(t, int32(0), summarize.Calls.Load())
	require.True(t, res.Result.Outputs["summary"].IsNull())
	require.Contains(t, res.Result.SucceededNodes, "task.lookup")
}

func TestAbsent_ComparisonWithAbsentOperandStaysAbsent(t *testing.T) {
	files := map[string]string{"main.hcl": `
		input "threshold" {
			type    = number
			default = 110
		}
		input "total" { default = null }
		output "oversized" { value = input.total > input.threshold }
	`}

	res := testutil.RunWorkflow(t, files, testutil.Options{})
	require.NoError(t, res.Err)
	require.True(t, res.Result.Outputs["oversized"].IsNull())
}
