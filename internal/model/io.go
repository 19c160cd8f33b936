package model

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/zclconf/go-cty/cty"
)

// Input declares a top-level workflow input. Values are supplied per run and
// merged over the declared default; an input with neither a run value nor a
// default fails validation before anything executes.
type Input struct {
	Name        string
	Description string

	// Type is the declared type constraint; cty.NilType when the input is
	// declared without one (equivalent to `type = any`).
	Type cty.Type

	// Default is nil when the input has no default. A default of null is
	// legal and declares the input as optional-and-absent by default.
	Default *cty.Value

	DeclRange hcl.Range
}

// Output declares one entry of the final result set. Required outputs that
// resolve to absent fail the run with MissingRequiredOutputError; optional
// ones pass absent through to the result set.
type Output struct {
	Name      string
	Value     hcl.Expression
	Required  bool
	DeclRange hcl.Range
}

var inputBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type"},
		{Name: "default"},
		{Name: "description"},
	},
}

var outputBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "value", Required: true},
		{Name: "required"},
	},
}

func newInputFromBlock(block *hcl.Block) (*Input, error) {
	input := &Input{
		Name:      block.Labels[0],
		Type:      cty.NilType,
		DeclRange: block.DefRange,
	}

	content, diags := block.Body.Content(inputBodySchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid input block '%s': %w", input.Name, diags)
	}

	if attr, ok := content.Attributes["type"]; ok {
		ty, typeDiags := typeexpr.TypeConstraint(attr.Expr)
		if typeDiags.HasErrors() {
			return nil, fmt.Errorf("input '%s': type: %w", input.Name, typeDiags)
		}
		input.Type = ty
	}

	if attr, ok := content.Attributes["default"]; ok {
		val, err := evalStatic(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("input '%s': default: %w", input.Name, err)
		}
		input.Default = &val
	}

	if attr, ok := content.Attributes["description"]; ok {
		val, err := evalStatic(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("input '%s': description: %w", input.Name, err)
		}
		input.Description, err = staticString(val)
		if err != nil {
			return nil, fmt.Errorf("input '%s': description: %w", input.Name, err)
		}
	}

	return input, nil
}

func newOutputFromBlock(block *hcl.Block) (*Output, error) {
	output := &Output{
		Name:      block.Labels[0],
		DeclRange: block.DefRange,
	}

	content, diags := block.Body.Content(outputBodySchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid output block '%s': %w", output.Name, diags)
	}

	output.Value = content.Attributes["value"].Expr

	if attr, ok := content.Attributes["required"]; ok {
		required, err := staticBool(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("output '%s': required: %w", output.Name, err)
		}
		output.Required = required
	}

	return output, nil
}
