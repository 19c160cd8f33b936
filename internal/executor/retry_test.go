package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/capability"
	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/dag"
	"github.com/seqflow-io/seqflow/internal/model"
)

func testCtx() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func retryExecutor(reg *capability.Registry) *Executor {
	return New(&dag.Graph{Nodes: map[string]*dag.Node{}}, Options{
		RunID:    "test-run",
		Registry: reg,
	})
}

func fastRetry(attempts int) model.RetryPolicy {
	return model.RetryPolicy{Attempts: attempts, Initial: time.Millisecond, Factor: 2, Max: 10 * time.Millisecond}
}

func TestInvokeWithRetry_SucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	reg := capability.NewRegistry()
	reg.Register("flaky", &capability.Handler{
		NewInput: func() any { return new(struct{}) },
		Fn: func(ctx context.Context, input *struct{}) (cty.Value, error) {
			calls++
			if calls < 3 {
				return cty.NilVal, errors.New("transient")
			}
			return cty.StringVal("ok"), nil
		},
	})

	task := &model.Task{Name: "flaky", Capability: "flaky", Retry: fastRetry(3)}
	out, attempts, err := retryExecutor(reg).invokeWithRetry(testCtx(), "task.flaky", task, nil)
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, 3, calls)
	require.Equal(t, cty.StringVal("ok"), out)
}

func TestInvokeWithRetry_ExhaustionWrapsLastError(t *testing.T) {
	cause := errors.New("still broken")
	reg := capability.NewRegistry()
	reg.Register("broken", &capability.Handler{
		NewInput: func() any { return new(struct{}) },
		Fn: func(ctx context.Context, input *struct{}) (cty.Value, error) {
			return cty.NilVal, cause
		},
	})

	task := &model.Task{Name: "broken", Capability: "broken", Retry: fastRetry(3)}
	_, attempts, err := retryExecutor(reg).invokeWithRetry(testCtx(), "task.broken", task, nil)
	require.Equal(t, 3, attempts)

	var failure *model.TaskInvocationFailedError
	require.ErrorAs(t, err, &failure)
	require.Equal(t, 3, failure.Attempts)
	require.ErrorIs(t, err, cause)
}

func TestInvokeWithRetry_TimeoutIsRetryable(t *testing.T) {
	calls := 0
	reg := capability.NewRegistry()
	reg.Register("slow", &capability.Handler{
		NewInput: func() any { return new(struct{}) },
		Fn: func(ctx context.Context, input *struct{}) (cty.Value, error) {
			calls++
			if calls == 1 {
				<-ctx.Done()
				return cty.NilVal, ctx.Err()
			}
			return cty.StringVal("recovered"), nil
		},
	})

	task := &model.Task{
		Name:       "slow",
		Capability: "slow",
		Timeout:    20 * time.Millisecond,
		Retry:      fastRetry(2),
	}
	out, attempts, err := retryExecutor(reg).invokeWithRetry(testCtx(), "task.slow", task, nil)
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, cty.StringVal("recovered"), out)
}

func TestInvokeWithRetry_TimeoutExhaustionIsTyped(t *testing.T) {
	reg := capability.NewRegistry()
	reg.Register("hang", &capability.Handler{
		NewInput: func() any { return new(struct{}) },
		Fn: func(ctx context.Context, input *struct{}) (cty.Value, error) {
			<-ctx.Done()
			return cty.NilVal, ctx.Err()
		},
	})

	task := &model.Task{
		Name:       "hang",
		Capability: "hang",
		Timeout:    10 * time.Millisecond,
		Retry:      fastRetry(2),
	}
	_, _, err := retryExecutor(reg).invokeWithRetry(testCtx(), "task.hang", task, nil)

	var timeout *model.TimeoutExceededError
	require.ErrorAs(t, err, &timeout)
	require.Equal(t, 2, timeout.Attempt)
}

func TestInvokeWithRetry_CancellationIsNotRetried(t *testing.T) {
	calls := 0
	ctx, cancel := context.WithCancel(testCtx())
	reg := capability.NewRegistry()
	reg.Register("victim", &capability.Handler{
		NewInput: func() any { return new(struct{}) },
		Fn: func(ctx context.Context, input *struct{}) (cty.Value, error) {
			calls++
			cancel()
			<-ctx.Done()
			return cty.NilVal, ctx.Err()
		},
	})

	task := &model.Task{Name: "victim", Capability: "victim", Retry: fastRetry(5)}
	_, _, err := retryExecutor(reg).invokeWithRetry(ctx, "task.victim", task, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestBackoffDelay(t *testing.T) {
	policy := model.RetryPolicy{Initial: 10 * time.Second, Factor: 2, Max: 5 * time.Minute}

	require.Equal(t, 10*time.Second, backoffDelay(policy, 2))
	require.Equal(t, 20*time.Second, backoffDelay(policy, 3))
	require.Equal(t, 40*time.Second, backoffDelay(policy, 4))
	// 10s * 2^7 would be 1280s; the cap wins.
	require.Equal(t, 5*time.Minute, backoffDelay(policy, 9))
}

func TestBackoffDelay_JitterStaysBelowDelay(t *testing.T) {
	policy := model.RetryPolicy{Initial: 100 * time.Millisecond, Factor: 2, Max: time.Second, Jitter: true}
	for i := 0; i < 50; i++ {
		d := backoffDelay(policy, 3)
		require.GreaterOrEqual(t, d, 100*time.Millisecond)
		require.Less(t, d, 200*time.Millisecond)
	}
}
