package model

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// ReduceOp names a supported reduction over a scattered output sequence.
type ReduceOp string

const (
	// ReduceSum sums numeric elements, skipping absent ones.
	ReduceSum ReduceOp = "sum"
	// ReduceSelectFirst picks the first non-absent element by input order.
	ReduceSelectFirst ReduceOp = "select_first"
)

// Reduce folds an ordered collection (typically a scatter's outputs) into a
// single scalar consumed downstream as reduce.<name>.value.
type Reduce struct {
	Name string
	Over hcl.Expression

	// Field optionally projects an attribute out of each element before the
	// reduction is applied.
	Field string

	Op        ReduceOp
	DependsOn []string
	DeclRange hcl.Range
}

var reduceBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "over", Required: true},
		{Name: "op", Required: true},
		{Name: "field"},
		{Name: "depends_on"},
	},
}

func newReduceFromBlock(block *hcl.Block) (*Reduce, error) {
	reduce := &Reduce{
		Name:      block.Labels[0],
		DeclRange: block.DefRange,
	}

	content, diags := block.Body.Content(reduceBodySchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid reduce block '%s': %w", reduce.Name, diags)
	}

	reduce.Over = content.Attributes["over"].Expr

	opVal, err := evalStatic(content.Attributes["op"].Expr)
	if err != nil {
		return nil, fmt.Errorf("reduce '%s': op: %w", reduce.Name, err)
	}
	opStr, err := staticString(opVal)
	if err != nil {
		return nil, fmt.Errorf("reduce '%s': op: %w", reduce.Name, err)
	}
	switch ReduceOp(opStr) {
	case ReduceSum, ReduceSelectFirst:
		reduce.Op = ReduceOp(opStr)
	default:
		return nil, fmt.Errorf("reduce '%s': op must be %q or %q", reduce.Name, ReduceSum, ReduceSelectFirst)
	}

	if attr, ok := content.Attributes["field"]; ok {
		fieldVal, err := evalStatic(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("reduce '%s': field: %w", reduce.Name, err)
		}
		reduce.Field, err = staticString(fieldVal)
		if err != nil {
			return nil, fmt.Errorf("reduce '%s': field: %w", reduce.Name, err)
		}
	}

	if attr, ok := content.Attributes["depends_on"]; ok {
		reduce.DependsOn, err = staticStringList(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("reduce '%s': depends_on: %w", reduce.Name, err)
		}
	}

	return reduce, nil
}
