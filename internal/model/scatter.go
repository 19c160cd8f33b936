package model

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// FailurePolicy controls what a scatter does with sibling task instances once
// one element has exhausted its retries.
type FailurePolicy string

const (
	// WaitAll lets every sibling run to completion before the scatter fails.
	WaitAll FailurePolicy = "wait_all"
	// CancelPending stops launching new siblings; started ones finish but
	// their results are discarded.
	CancelPending FailurePolicy = "cancel_pending"
	// TerminateRunning additionally cancels the contexts of started siblings.
	TerminateRunning FailurePolicy = "terminate_running"
)

// Scatter fans one task template out over a runtime-determined collection,
// producing an output list aligned index-for-index with the input elements.
type Scatter struct {
	Name string

	// Over is the collection expression. Its length, and therefore the
	// number of task instances, is only known once upstream nodes finish.
	Over hcl.Expression

	// MaxParallel bounds concurrent task instances. Zero means unbounded.
	MaxParallel int

	OnFailure FailurePolicy
	DependsOn []string

	// Task is the template instantiated once per collection element. Inside
	// its argument expressions, each.value and each.index are in scope.
	Task *Task

	DeclRange hcl.Range
}

var scatterBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "over", Required: true},
		{Name: "max_parallel"},
		{Name: "on_failure"},
		{Name: "depends_on"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "task", LabelNames: []string{"name"}},
	},
}

func newScatterFromBlock(block *hcl.Block) (*Scatter, error) {
	scatter := &Scatter{
		Name:      block.Labels[0],
		OnFailure: WaitAll,
		DeclRange: block.DefRange,
	}

	content, diags := block.Body.Content(scatterBodySchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid scatter block '%s': %w", scatter.Name, diags)
	}

	scatter.Over = content.Attributes["over"].Expr

	var err error
	if attr, ok := content.Attributes["max_parallel"]; ok {
		scatter.MaxParallel, err = staticInt(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("scatter '%s': max_parallel: %w", scatter.Name, err)
		}
		if scatter.MaxParallel < 0 {
			return nil, fmt.Errorf("scatter '%s': max_parallel must not be negative", scatter.Name)
		}
	}

	if attr, ok := content.Attributes["on_failure"]; ok {
		val, err := evalStatic(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("scatter '%s': on_failure: %w", scatter.Name, err)
		}
		s, err := staticString(val)
		if err != nil {
			return nil, fmt.Errorf("scatter '%s': on_failure: %w", scatter.Name, err)
		}
		switch FailurePolicy(s) {
		case WaitAll, CancelPending, TerminateRunning:
			scatter.OnFailure = FailurePolicy(s)
		default:
			return nil, fmt.Errorf("scatter '%s': on_failure must be one of %q, %q, %q", scatter.Name, WaitAll, CancelPending, TerminateRunning)
		}
	}

	if attr, ok := content.Attributes["depends_on"]; ok {
		scatter.DependsOn, err = staticStringList(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("scatter '%s': depends_on: %w", scatter.Name, err)
		}
	}

	var taskBlocks []*hcl.Block
	for _, b := range content.Blocks {
		if b.Type == "task" {
			taskBlocks = append(taskBlocks, b)
		}
	}
	if len(taskBlocks) != 1 {
		return nil, fmt.Errorf("scatter '%s': exactly one task template block is required, found %d", scatter.Name, len(taskBlocks))
	}

	scatter.Task, err = newTaskFromBody(taskBlocks[0].Labels[0], taskBlocks[0].Body, taskBlocks[0].DefRange)
	if err != nil {
		return nil, fmt.Errorf("scatter '%s': %w", scatter.Name, err)
	}

	return scatter, nil
}
