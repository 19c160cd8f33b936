package integrationtests

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/runstore"
	"github.com/seqflow-io/seqflow/internal/testutil"
)

func TestRetry_SuccessRecordCarriesAttemptCount(t *testing.T) {
	files := map[string]string{"main.hcl": `
		task "flaky" {
			capability = "flaky"
			retry {
				attempts = 3
				backoff {
					initial = "1ms"
					factor  = 2
				}
			}
		}
	`}

	store := runstore.NewMemoryStore()
	// Fails once, succeeds on the second attempt.
	flaky := &testutil.Fake[struct{}]{Name: "flaky"}
	flaky.Fn = func(ctx context.Context, _ *struct{}) (cty.Value, error) {
		if flaky.Calls.Load() < 2 {
			return cty.NilVal, errors.New("transient outage")
		}
		return cty.EmptyObjectVal, nil
	}

	res := testutil.RunWorkflow(t, files, testutil.Options{Store: store}, flaky)
	require.NoError(t, res.Err)
	require.Equal(t, int32(2), flaky.Calls.Load())

	rec, err := store.Get(context.Background(), "test-run", "task.flaky")
	require.NoError(t, err)
	require.Equal(t, runstore.StatusSucceeded, rec.Status)
	require.Equal(t, 2, rec.Attempts)
}
