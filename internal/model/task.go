package model

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
)

// Task is the static definition of one unit of work: the capability it
// invokes, its declared argument expressions, and its failure policy.
type Task struct {
	Name       string
	Capability string

	// Required marks the task as intolerant of absent inputs. A required
	// task whose argument references resolve to absent fails the run with
	// MissingRequiredInputError instead of propagating absent.
	Required bool

	// Timeout is the per-attempt wall-clock budget. Zero means no timeout.
	Timeout time.Duration

	Retry     RetryPolicy
	DependsOn []string

	// Arguments maps argument names to their raw expressions, evaluated
	// against upstream outputs when the task becomes ready.
	Arguments map[string]hcl.Expression

	DeclRange hcl.Range
}

// RetryPolicy is the decoded, concrete retry budget for a task. Attempts is
// the total number of invocations, so 1 means no retries.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Factor   float64
	Max      time.Duration
	Jitter   bool
}

// DefaultRetryPolicy is applied when a task declares no retry block.
var DefaultRetryPolicy = RetryPolicy{Attempts: 1, Initial: time.Second, Factor: 2, Max: time.Minute}

var taskBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "capability", Required: true},
		{Name: "required"},
		{Name: "timeout"},
		{Name: "depends_on"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "retry"},
		{Type: "arguments"},
	},
}

// hclRetry is the decoding shell for a task's retry block. Retry budgets must
// be known before execution starts, so all fields are literals.
type hclRetry struct {
	Attempts int         `hcl:"attempts"`
	Backoff  *hclBackoff `hcl:"backoff,block"`
}

type hclBackoff struct {
	Initial string  `hcl:"initial,optional"`
	Factor  float64 `hcl:"factor,optional"`
	Max     string  `hcl:"max,optional"`
	Jitter  bool    `hcl:"jitter,optional"`
}

// newTaskFromBody decodes one task body. It is shared by top-level task
// blocks, scatter task templates, and tasks nested inside when blocks.
func newTaskFromBody(name string, body hcl.Body, declRange hcl.Range) (*Task, error) {
	task := &Task{
		Name:      name,
		Retry:     DefaultRetryPolicy,
		Arguments: map[string]hcl.Expression{},
		DeclRange: declRange,
	}

	content, diags := body.Content(taskBodySchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid task block: %w", diags)
	}

	capVal, err := evalStatic(content.Attributes["capability"].Expr)
	if err != nil {
		return nil, fmt.Errorf("task '%s': capability: %w", name, err)
	}
	task.Capability, err = staticString(capVal)
	if err != nil {
		return nil, fmt.Errorf("task '%s': capability: %w", name, err)
	}

	if attr, ok := content.Attributes["required"]; ok {
		task.Required, err = staticBool(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("task '%s': required: %w", name, err)
		}
	}

	if attr, ok := content.Attributes["timeout"]; ok {
		task.Timeout, err = staticDuration(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("task '%s': timeout: %w", name, err)
		}
	}

	if attr, ok := content.Attributes["depends_on"]; ok {
		task.DependsOn, err = staticStringList(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("task '%s': depends_on: %w", name, err)
		}
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case "retry":
			task.Retry, err = decodeRetry(block.Body)
			if err != nil {
				return nil, fmt.Errorf("task '%s': %w", name, err)
			}
		case "arguments":
			attrs, argDiags := block.Body.JustAttributes()
			if argDiags.HasErrors() {
				return nil, fmt.Errorf("task '%s': arguments: %w", name, argDiags)
			}
			for argName, attr := range attrs {
				task.Arguments[argName] = attr.Expr
			}
		}
	}

	return task, nil
}

func decodeRetry(body hcl.Body) (RetryPolicy, error) {
	var shell hclRetry
	if diags := gohcl.DecodeBody(body, nil, &shell); diags.HasErrors() {
		return RetryPolicy{}, fmt.Errorf("retry: %w", diags)
	}
	if shell.Attempts < 1 {
		return RetryPolicy{}, fmt.Errorf("retry: attempts must be at least 1, got %d", shell.Attempts)
	}

	policy := DefaultRetryPolicy
	policy.Attempts = shell.Attempts
	if shell.Backoff == nil {
		return policy, nil
	}

	var err error
	if shell.Backoff.Initial != "" {
		if policy.Initial, err = time.ParseDuration(shell.Backoff.Initial); err != nil {
			return RetryPolicy{}, fmt.Errorf("retry: backoff initial: %w", err)
		}
	}
	if shell.Backoff.Factor != 0 {
		policy.Factor = shell.Backoff.Factor
	}
	if shell.Backoff.Max != "" {
		if policy.Max, err = time.ParseDuration(shell.Backoff.Max); err != nil {
			return RetryPolicy{}, fmt.Errorf("retry: backoff max: %w", err)
		}
	}
	policy.Jitter = shell.Backoff.Jitter
	return policy, nil
}
