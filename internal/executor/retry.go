package executor

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/model"
	"github.com/seqflow-io/seqflow/internal/runstore"
)

// invokeWithRetry runs one capability invocation under the task's retry
// policy. A per-attempt timeout counts as a retryable failure; cancellation
// of the run context is never retried. When the budget is exhausted the last
// attempt's error is wrapped in TaskInvocationFailedError.
func (e *Executor) invokeWithRetry(ctx context.Context, id string, task *model.Task, args map[string]cty.Value) (cty.Value, int, error) {
	logger := ctxlog.FromContext(ctx).With("node_id", id, "capability", task.Capability)
	policy := task.Retry

	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(policy, attempt)
			logger.Warn("Retrying task.", "attempt", attempt, "of", policy.Attempts, "delay", delay)
			e.record(ctx, id, runstore.StatusRetrying, attempt, cty.NilVal, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return cty.NilVal, attempt, ctx.Err()
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if task.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		}

		output, err := e.caps.Invoke(attemptCtx, task.Capability, args)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return output, attempt, nil
		}

		if ctx.Err() != nil {
			// The run itself is being cancelled; surface that, not the
			// attempt error.
			return cty.NilVal, attempt, ctx.Err()
		}
		if timedOut || errors.Is(err, context.DeadlineExceeded) {
			err = &model.TimeoutExceededError{NodeID: id, Attempt: attempt, Timeout: task.Timeout}
		}
		logger.Warn("Task attempt failed.", "attempt", attempt, "error", err)
		lastErr = err
	}

	return cty.NilVal, policy.Attempts, &model.TaskInvocationFailedError{
		NodeID:   id,
		Attempts: policy.Attempts,
		Cause:    lastErr,
	}
}

// backoffDelay computes the exponential delay before the given attempt
// (attempt >= 2), capped at the policy maximum, with optional jitter in
// [delay/2, delay).
func backoffDelay(policy model.RetryPolicy, attempt int) time.Duration {
	delay := policy.Initial
	for i := 2; i < attempt; i++ {
		delay = time.Duration(float64(delay) * policy.Factor)
		if policy.Max > 0 && delay >= policy.Max {
			delay = policy.Max
			break
		}
	}
	if policy.Max > 0 && delay > policy.Max {
		delay = policy.Max
	}
	if policy.Jitter && delay > 1 {
		half := delay / 2
		delay = half + time.Duration(rand.Int63n(int64(half)))
	}
	return delay
}
