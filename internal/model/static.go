package model

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// evalStatic evaluates an expression with no evaluation context. It is used
// for configuration fields that must be known before execution starts and
// therefore may not reference other nodes.
func evalStatic(expr hcl.Expression) (cty.Value, error) {
	if len(expr.Variables()) > 0 {
		return cty.NilVal, fmt.Errorf("value must be a literal, references are not allowed here")
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return val, nil
}

func staticString(val cty.Value) (string, error) {
	if val.IsNull() || val.Type() != cty.String {
		return "", fmt.Errorf("expected a string, got %s", val.Type().FriendlyName())
	}
	return val.AsString(), nil
}

func staticBool(expr hcl.Expression) (bool, error) {
	val, err := evalStatic(expr)
	if err != nil {
		return false, err
	}
	if val.IsNull() || val.Type() != cty.Bool {
		return false, fmt.Errorf("expected a bool, got %s", val.Type().FriendlyName())
	}
	return val.True(), nil
}

func staticInt(expr hcl.Expression) (int, error) {
	val, err := evalStatic(expr)
	if err != nil {
		return 0, err
	}
	if val.IsNull() || val.Type() != cty.Number {
		return 0, fmt.Errorf("expected a number, got %s", val.Type().FriendlyName())
	}
	n, _ := val.AsBigFloat().Int64()
	return int(n), nil
}

func staticDuration(expr hcl.Expression) (time.Duration, error) {
	val, err := evalStatic(expr)
	if err != nil {
		return 0, err
	}
	s, err := staticString(val)
	if err != nil {
		return 0, err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

func staticStringList(expr hcl.Expression) ([]string, error) {
	exprs, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, diags
	}
	out := make([]string, 0, len(exprs))
	for _, e := range exprs {
		val, err := evalStatic(e)
		if err != nil {
			return nil, err
		}
		s, err := staticString(val)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
