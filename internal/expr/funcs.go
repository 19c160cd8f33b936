package expr

import (
	"math/big"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Functions returns the engine's function table for expression evaluation.
// A fresh map is returned so callers can extend their scope without sharing.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"sum":           SumFunc,
		"first_present": FirstPresentFunc,
		"length":        stdlib.LengthFunc,
	}
}

// SumFunc sums the numeric elements of a collection, skipping absent
// elements. Summing an absent collection is absent, consistent with the
// propagation rule in Evaluate.
var SumFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{
			Name:             "collection",
			Type:             cty.DynamicPseudoType,
			AllowNull:        true,
			AllowDynamicType: true,
		},
	},
	Type: function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		coll := args[0]
		if coll.IsNull() {
			return cty.NullVal(cty.Number), nil
		}
		if !coll.CanIterateElements() {
			return cty.NilVal, function.NewArgErrorf(0, "cannot sum over %s", coll.Type().FriendlyName())
		}

		total := new(big.Float)
		for it := coll.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			if elem.IsNull() {
				continue
			}
			if elem.Type() != cty.Number {
				return cty.NilVal, function.NewArgErrorf(0, "element of type %s is not a number", elem.Type().FriendlyName())
			}
			total.Add(total, elem.AsBigFloat())
		}
		return cty.NumberVal(total), nil
	},
})

// FirstPresentFunc returns its first non-absent argument, or absent when
// every argument is absent. This is the expression-level form of the
// select_first reduction.
var FirstPresentFunc = function.New(&function.Spec{
	VarParam: &function.Parameter{
		Name:             "values",
		Type:             cty.DynamicPseudoType,
		AllowNull:        true,
		AllowDynamicType: true,
	},
	Type: function.StaticReturnType(cty.DynamicPseudoType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		for _, arg := range args {
			if !arg.IsNull() {
				return arg, nil
			}
		}
		return cty.NullVal(cty.DynamicPseudoType), nil
	},
})
