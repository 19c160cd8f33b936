package model

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// When guards a nested subgraph behind a boolean expression. When the
// condition is false (or absent), none of the nested tasks run and every
// declared output resolves to absent.
type When struct {
	Name      string
	Condition hcl.Expression
	DependsOn []string

	// Tasks is the guarded subgraph. Nested tasks may reference each other
	// and anything visible in the parent scope.
	Tasks []*Task

	// Outputs declares the values the when block exposes to the parent
	// graph, referenced as when.<name>.<output>.
	Outputs []*Output

	DeclRange hcl.Range
}

var whenBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "condition", Required: true},
		{Name: "depends_on"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "task", LabelNames: []string{"name"}},
		{Type: "output", LabelNames: []string{"name"}},
	},
}

var whenOutputBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "value", Required: true},
	},
}

func newWhenFromBlock(block *hcl.Block) (*When, error) {
	when := &When{
		Name:      block.Labels[0],
		DeclRange: block.DefRange,
	}

	content, diags := block.Body.Content(whenBodySchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid when block '%s': %w", when.Name, diags)
	}

	when.Condition = content.Attributes["condition"].Expr

	var err error
	if attr, ok := content.Attributes["depends_on"]; ok {
		when.DependsOn, err = staticStringList(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("when '%s': depends_on: %w", when.Name, err)
		}
	}

	for _, b := range content.Blocks {
		switch b.Type {
		case "task":
			task, err := newTaskFromBody(b.Labels[0], b.Body, b.DefRange)
			if err != nil {
				return nil, fmt.Errorf("when '%s': %w", when.Name, err)
			}
			when.Tasks = append(when.Tasks, task)
		case "output":
			// Conditional outputs are inherently optional; the parent
			// decides whether an absent value is acceptable.
			outContent, outDiags := b.Body.Content(whenOutputBodySchema)
			if outDiags.HasErrors() {
				return nil, fmt.Errorf("when '%s': output '%s': %w", when.Name, b.Labels[0], outDiags)
			}
			when.Outputs = append(when.Outputs, &Output{
				Name:      b.Labels[0],
				Value:     outContent.Attributes["value"].Expr,
				DeclRange: b.DefRange,
			})
		}
	}

	if len(when.Tasks) == 0 {
		return nil, fmt.Errorf("when '%s': at least one nested task is required", when.Name)
	}
	return when, nil
}
