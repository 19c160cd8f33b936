package model

import (
	"fmt"
	"time"
)

// TaskInvocationFailedError reports a capability invocation that kept failing
// after its retry budget was spent. Cause is the error from the last attempt.
type TaskInvocationFailedError struct {
	NodeID   string
	Attempts int
	Cause    error
}

func (e *TaskInvocationFailedError) Error() string {
	return fmt.Sprintf("task '%s' failed after %d attempt(s): %v", e.NodeID, e.Attempts, e.Cause)
}

func (e *TaskInvocationFailedError) Unwrap() error { return e.Cause }

// TimeoutExceededError reports a single attempt that hit its wall-clock
// timeout. It is retryable; the executor wraps the final occurrence in a
// TaskInvocationFailedError once the budget is exhausted.
type TimeoutExceededError struct {
	NodeID  string
	Attempt int
	Timeout time.Duration
}

func (e *TimeoutExceededError) Error() string {
	return fmt.Sprintf("task '%s' attempt %d exceeded timeout of %s", e.NodeID, e.Attempt, e.Timeout)
}

// MissingRequiredInputError reports a node marked required whose input
// binding resolved to absent.
type MissingRequiredInputError struct {
	NodeID    string
	Reference string
}

func (e *MissingRequiredInputError) Error() string {
	return fmt.Sprintf("node '%s' requires '%s', which resolved to absent", e.NodeID, e.Reference)
}

// MissingRequiredOutputError reports a declared workflow output marked
// required whose value resolved to absent.
type MissingRequiredOutputError struct {
	Name string
}

func (e *MissingRequiredOutputError) Error() string {
	return fmt.Sprintf("required workflow output '%s' resolved to absent", e.Name)
}

// CycleDetectedError is returned by graph construction when the binding graph
// is not acyclic. It is surfaced before any node executes.
type CycleDetectedError struct {
	NodeID string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("dependency cycle detected involving '%s'", e.NodeID)
}

// NoValueSelectedError reports a select_first reduction whose candidates were
// all absent.
type NoValueSelectedError struct {
	NodeID string
}

func (e *NoValueSelectedError) Error() string {
	return fmt.Sprintf("reduction '%s' found no non-absent candidate", e.NodeID)
}

// ScatterLengthMismatchError reports a scatter whose collected output count
// diverged from its input collection length. This is an internal invariant
// violation, not a user error.
type ScatterLengthMismatchError struct {
	NodeID string
	Want   int
	Got    int
}

func (e *ScatterLengthMismatchError) Error() string {
	return fmt.Sprintf("scatter '%s' produced %d output(s) for %d input element(s)", e.NodeID, e.Got, e.Want)
}
