// Package expr evaluates workflow expressions against resolved upstream
// values. Evaluation is pure: the same expression and scope always produce
// the same value.
//
// Absent values are modelled as cty null, never as a missing variable. An
// expression that cannot be evaluated because one of its operands is absent
// resolves to absent itself rather than failing; that single rule is what
// lets conditional results flow through arithmetic, comparisons and
// concatenation without every consumer special-casing them.
package expr

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Absent is the resolved-but-empty value, distinct from pending and from
// failure.
func Absent() cty.Value {
	return cty.NullVal(cty.DynamicPseudoType)
}

// IsAbsent reports whether a resolved value is absent.
func IsAbsent(v cty.Value) bool {
	return v.IsNull()
}

// Evaluate resolves expr against scope. When evaluation fails and at least
// one variable referenced by the expression resolves to absent, the result is
// absent instead of an error; a failure with every reference present is a
// genuine error and is returned as such.
func Evaluate(e hcl.Expression, scope *hcl.EvalContext) (cty.Value, error) {
	val, diags := e.Value(scope)
	if !diags.HasErrors() {
		return val, nil
	}
	if ReferencesAbsent(e, scope) {
		return Absent(), nil
	}
	return cty.NilVal, diags
}

// ReferencesAbsent reports whether any variable referenced by expr resolves
// to an absent value in scope, including references that traverse into an
// absent prefix (an attribute of an absent object is itself absent).
func ReferencesAbsent(e hcl.Expression, scope *hcl.EvalContext) bool {
	for _, traversal := range e.Variables() {
		if v, ok := TraversalValue(traversal, scope); ok && v.IsNull() {
			return true
		}
	}
	return false
}

// TraversalValue walks an absolute traversal through scope without
// evaluating any expression machinery. It reports ok=false when the
// traversal does not resolve (unknown root, missing attribute, index out of
// range); when the walk reaches a null value, the whole reference resolves
// to that null.
func TraversalValue(traversal hcl.Traversal, scope *hcl.EvalContext) (cty.Value, bool) {
	current, ok := lookupVariable(scope, traversal.RootName())
	if !ok {
		return cty.NilVal, false
	}

	for _, step := range traversal[1:] {
		if current.IsNull() {
			return current, true
		}
		switch s := step.(type) {
		case hcl.TraverseAttr:
			ty := current.Type()
			switch {
			case ty.IsObjectType() && ty.HasAttribute(s.Name):
				current = current.GetAttr(s.Name)
			case ty.IsMapType():
				key := cty.StringVal(s.Name)
				if current.HasIndex(key) != cty.True {
					return cty.NilVal, false
				}
				current = current.Index(key)
			default:
				return cty.NilVal, false
			}
		case hcl.TraverseIndex:
			if !current.CanIterateElements() || current.HasIndex(s.Key) != cty.True {
				return cty.NilVal, false
			}
			current = current.Index(s.Key)
		default:
			return cty.NilVal, false
		}
	}
	return current, true
}

func lookupVariable(scope *hcl.EvalContext, name string) (cty.Value, bool) {
	for ctx := scope; ctx != nil; ctx = ctx.Parent() {
		if v, ok := ctx.Variables[name]; ok {
			return v, true
		}
	}
	return cty.NilVal, false
}
