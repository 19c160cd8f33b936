package executor

import (
	"context"
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/dag"
	"github.com/seqflow-io/seqflow/internal/expr"
	"github.com/seqflow-io/seqflow/internal/model"
	"github.com/seqflow-io/seqflow/internal/runstore"
)

// runReduceNode folds an ordered collection into a single value. Absent
// elements are skipped, never errors: a sum over absent slots counts only
// the present ones, select_first picks the first present one.
func (e *Executor) runReduceNode(ctx context.Context, n *dag.Node) error {
	logger := ctxlog.FromContext(ctx).With("node_id", n.ID)
	reduce := n.Reduce

	scope := e.buildScope(nil)
	coll, err := expr.Evaluate(reduce.Over, scope)
	if err != nil {
		return fmt.Errorf("reduce '%s': over: %w", n.ID, err)
	}
	if expr.IsAbsent(coll) {
		logger.Info("Reduce collection is absent, resolving to absent.")
		n.Result = expr.Absent()
		n.SetState(dag.ResolvedAbsent)
		e.record(ctx, n.ID, runstore.StatusAbsent, 0, n.Result, nil)
		return nil
	}
	if !coll.CanIterateElements() {
		return fmt.Errorf("reduce '%s': over: cannot iterate %s", n.ID, coll.Type().FriendlyName())
	}

	elems, err := projectElements(n.ID, coll, reduce.Field)
	if err != nil {
		return err
	}

	var result cty.Value
	switch reduce.Op {
	case model.ReduceSum:
		result, err = sumElements(n.ID, elems)
		if err != nil {
			return err
		}
	case model.ReduceSelectFirst:
		result, err = selectFirstElement(n.ID, elems)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("reduce '%s': unsupported op %q", n.ID, reduce.Op)
	}

	logger.Info("Reduce resolved.", "op", string(reduce.Op), "elements", len(elems))
	n.Result = result
	n.SetState(dag.Succeeded)
	e.record(ctx, n.ID, runstore.StatusSucceeded, 0, result, nil)
	return nil
}

// projectElements flattens the collection, applying the optional field
// projection. An absent element stays absent rather than failing the
// projection, so a skipped scatter instance flows through as a skipped
// contribution.
func projectElements(id string, coll cty.Value, field string) ([]cty.Value, error) {
	var elems []cty.Value
	for it := coll.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if field == "" || expr.IsAbsent(elem) {
			elems = append(elems, elem)
			continue
		}
		ty := elem.Type()
		switch {
		case ty.IsObjectType() && ty.HasAttribute(field):
			elems = append(elems, elem.GetAttr(field))
		case ty.IsMapType():
			idx := cty.StringVal(field)
			if elem.HasIndex(idx).True() {
				elems = append(elems, elem.Index(idx))
			} else {
				elems = append(elems, expr.Absent())
			}
		default:
			return nil, fmt.Errorf("reduce '%s': field %q not present on %s element", id, field, ty.FriendlyName())
		}
	}
	return elems, nil
}

// sumElements adds the present numeric elements. An empty or all-absent
// collection sums to zero.
func sumElements(id string, elems []cty.Value) (cty.Value, error) {
	total := new(big.Float)
	for _, elem := range elems {
		if expr.IsAbsent(elem) {
			continue
		}
		num, err := convert.Convert(elem, cty.Number)
		if err != nil {
			return cty.NilVal, fmt.Errorf("reduce '%s': cannot sum %s element", id, elem.Type().FriendlyName())
		}
		total.Add(total, num.AsBigFloat())
	}
	return cty.NumberVal(total), nil
}

// selectFirstElement returns the first present element in input order.
func selectFirstElement(id string, elems []cty.Value) (cty.Value, error) {
	for _, elem := range elems {
		if !expr.IsAbsent(elem) {
			return elem, nil
		}
	}
	return cty.NilVal, &model.NoValueSelectedError{NodeID: id}
}
