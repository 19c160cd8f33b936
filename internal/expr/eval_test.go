package expr

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func parseExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), "parse %q: %s", src, diags)
	return e
}

func scopeWith(vars map[string]cty.Value) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: vars,
		Functions: Functions(),
	}
}

func TestEvaluate_PresentValues(t *testing.T) {
	scope := scopeWith(map[string]cty.Value{
		"input": cty.ObjectVal(map[string]cty.Value{
			"threshold": cty.NumberIntVal(110),
		}),
	})

	val, err := Evaluate(parseExpr(t, "input.threshold * 2"), scope)
	require.NoError(t, err)
	require.True(t, val.RawEquals(cty.NumberIntVal(220)), "got %#v", val)
}

func TestEvaluate_AbsentOperandPropagates(t *testing.T) {
	scope := scopeWith(map[string]cty.Value{
		"reduce": cty.ObjectVal(map[string]cty.Value{
			"total": cty.ObjectVal(map[string]cty.Value{
				"value": Absent(),
			}),
		}),
	})

	// Arithmetic over an absent operand resolves to absent, not an error.
	val, err := Evaluate(parseExpr(t, "reduce.total.value > 110"), scope)
	require.NoError(t, err)
	require.True(t, IsAbsent(val))
}

func TestEvaluate_AttributeOfAbsentObjectIsAbsent(t *testing.T) {
	scope := scopeWith(map[string]cty.Value{
		"when": cty.ObjectVal(map[string]cty.Value{
			"contamination": Absent(),
		}),
	})

	val, err := Evaluate(parseExpr(t, "when.contamination.report"), scope)
	require.NoError(t, err)
	require.True(t, IsAbsent(val))
}

func TestEvaluate_FailureWithAllReferencesPresentIsError(t *testing.T) {
	scope := scopeWith(map[string]cty.Value{
		"input": cty.ObjectVal(map[string]cty.Value{
			"name": cty.StringVal("sample"),
		}),
	})

	// The reference resolves but the operation is invalid: genuine error.
	_, err := Evaluate(parseExpr(t, "input.name * 2"), scope)
	require.Error(t, err)
}

func TestEvaluate_UnknownReferenceIsError(t *testing.T) {
	_, err := Evaluate(parseExpr(t, "task.nope.output.x"), scopeWith(nil))
	require.Error(t, err)
}

func TestSum_SkipsAbsentElements(t *testing.T) {
	scope := scopeWith(map[string]cty.Value{
		"sizes": cty.TupleVal([]cty.Value{
			cty.NumberIntVal(40),
			Absent(),
			cty.NumberIntVal(50),
			cty.NumberIntVal(30),
		}),
	})

	val, err := Evaluate(parseExpr(t, "sum(sizes)"), scope)
	require.NoError(t, err)
	require.True(t, val.RawEquals(cty.NumberIntVal(120)), "got %#v", val)
}

func TestSum_AbsentCollectionIsAbsent(t *testing.T) {
	scope := scopeWith(map[string]cty.Value{"sizes": Absent()})

	val, err := Evaluate(parseExpr(t, "sum(sizes)"), scope)
	require.NoError(t, err)
	require.True(t, IsAbsent(val))
}

func TestThresholdComparison(t *testing.T) {
	// Three 40/50/30 GB shards against a 110 GB threshold.
	scope := scopeWith(map[string]cty.Value{
		"sizes": cty.TupleVal([]cty.Value{
			cty.NumberIntVal(40),
			cty.NumberIntVal(50),
			cty.NumberIntVal(30),
		}),
		"threshold": cty.NumberIntVal(110),
	})

	val, err := Evaluate(parseExpr(t, "sum(sizes) > threshold"), scope)
	require.NoError(t, err)
	require.Equal(t, cty.True, val)
}

func TestFirstPresent(t *testing.T) {
	scope := scopeWith(map[string]cty.Value{
		"a": Absent(),
		"b": Absent(),
		"c": cty.StringVal("value"),
	})

	val, err := Evaluate(parseExpr(t, "first_present(a, b, c)"), scope)
	require.NoError(t, err)
	require.Equal(t, cty.StringVal("value"), val)

	val, err = Evaluate(parseExpr(t, "first_present(a, b)"), scope)
	require.NoError(t, err)
	require.True(t, IsAbsent(val))
}

func TestTraversalValue_IndexSteps(t *testing.T) {
	scope := scopeWith(map[string]cty.Value{
		"scatter": cty.ObjectVal(map[string]cty.Value{
			"align": cty.ObjectVal(map[string]cty.Value{
				"outputs": cty.TupleVal([]cty.Value{
					cty.StringVal("a.bam"),
					Absent(),
				}),
			}),
		}),
	})

	e := parseExpr(t, "scatter.align.outputs[1]")
	vars := e.Variables()
	require.Len(t, vars, 1)

	val, ok := TraversalValue(vars[0], scope)
	require.True(t, ok)
	require.True(t, IsAbsent(val))
}
