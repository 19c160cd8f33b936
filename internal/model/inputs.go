package model

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

var inputsFileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "inputs"},
	},
}

// LoadInputValues parses a run-inputs file. The file holds a single `inputs`
// block whose attributes are literal values for the workflow's declared
// inputs.
func LoadInputValues(path string) (map[string]cty.Value, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse inputs file %s: %w", path, diags)
	}

	content, diags := hclFile.Body.Content(inputsFileSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode inputs file %s: %w", path, diags)
	}

	values := make(map[string]cty.Value)
	for _, block := range content.Blocks {
		attrs, attrDiags := block.Body.JustAttributes()
		if attrDiags.HasErrors() {
			return nil, fmt.Errorf("inputs file %s: %w", path, attrDiags)
		}
		for name, attr := range attrs {
			val, err := evalStatic(attr.Expr)
			if err != nil {
				return nil, fmt.Errorf("inputs file %s: %s: %w", path, name, err)
			}
			values[name] = val
		}
	}
	return values, nil
}

// ResolveInputs combines run-supplied values with declared defaults and
// type-checks the result. Supplied values win over defaults; an input with
// neither is an error. Values for inputs the workflow never declared are
// rejected to catch typos early.
func (wf *Workflow) ResolveInputs(provided map[string]cty.Value) (map[string]cty.Value, error) {
	declared := make(map[string]*Input, len(wf.Inputs))
	for _, input := range wf.Inputs {
		declared[input.Name] = input
	}

	for name := range provided {
		if _, ok := declared[name]; !ok {
			return nil, fmt.Errorf("value supplied for undeclared input '%s'", name)
		}
	}

	resolved := make(map[string]cty.Value, len(declared))
	for name, input := range declared {
		val, ok := provided[name]
		switch {
		case ok:
		case input.Default != nil:
			val = *input.Default
		default:
			return nil, fmt.Errorf("no value supplied for input '%s' and it has no default", name)
		}

		if input.Type != cty.NilType && !val.IsNull() {
			converted, err := convert.Convert(val, input.Type)
			if err != nil {
				return nil, fmt.Errorf("input '%s': %w", name, err)
			}
			val = converted
		}
		resolved[name] = val
	}
	return resolved, nil
}
