package engine

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/vquery/internal/expr"
	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/node"
	"github.com/roach88/vquery/internal/table"
)

// result is the uncommitted output of an operation.
type result struct {
	rows   []table.Row
	scalar ir.IRValue
}

// apply computes op over its inputs. It is the single definition of operator
// semantics: Execute commits its result and the proof relation recomputes it.
// apply is pure; inputs are never modified.
func apply(op node.Operation, inputs []*table.Unit) (result, error) {
	switch o := op.(type) {
	case node.Scan:
		if err := arity(o.Kind(), inputs, 1); err != nil {
			return result{}, err
		}
		return result{rows: inputs[0].Page.Clone().Rows}, nil

	case node.Filter:
		if err := arity(o.Kind(), inputs, 1); err != nil {
			return result{}, err
		}
		rows, err := filterRows(o.Predicate, inputs[0].Page.Rows)
		return result{rows: rows}, err

	case node.Projection:
		if err := arity(o.Kind(), inputs, 1); err != nil {
			return result{}, err
		}
		rows, err := projectRows(o.Columns, inputs[0].Page.Rows)
		return result{rows: rows}, err

	case node.Join:
		if err := arity(o.Kind(), inputs, 2); err != nil {
			return result{}, err
		}
		rows, err := joinRows(o.On, inputs[0].Page.Rows, inputs[1].Page.Rows)
		return result{rows: rows}, err

	case node.Aggregate:
		if err := arity(o.Kind(), inputs, 1); err != nil {
			return result{}, err
		}
		rows, err := aggregateRows(o, inputs[0].Page.Rows)
		if err != nil {
			return result{}, err
		}
		if o.ScalarOutput() {
			return result{scalar: rows[0][0]}, nil
		}
		return result{rows: rows}, nil

	case node.Limit:
		if err := arity(o.Kind(), inputs, 1); err != nil {
			return result{}, err
		}
		return result{rows: limitRows(o, inputs[0].Page.Rows)}, nil

	case node.Sort:
		if err := arity(o.Kind(), inputs, 1); err != nil {
			return result{}, err
		}
		rows, err := sortRows(o.Keys, inputs[0].Page.Rows)
		return result{rows: rows}, err

	default:
		return result{}, fmt.Errorf("unknown operation %T", op)
	}
}

func arity(kind node.OpKind, inputs []*table.Unit, want int) error {
	if len(inputs) != want {
		return fmt.Errorf("%s takes %d inputs, got %d", kind, want, len(inputs))
	}
	for i, u := range inputs {
		if u == nil {
			return fmt.Errorf("%s input %d is nil", kind, i)
		}
	}
	return nil
}

func filterRows(pred expr.Expr, rows []table.Row) ([]table.Row, error) {
	out := make([]table.Row, 0, len(rows))
	for i, row := range rows {
		keep, err := expr.EvalBool(pred, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if keep {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

func projectRows(cols []expr.Expr, rows []table.Row) ([]table.Row, error) {
	out := make([]table.Row, len(rows))
	for i, row := range rows {
		projected := make(table.Row, len(cols))
		for j, e := range cols {
			v, err := expr.Eval(e, row)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			projected[j] = v
		}
		out[i] = projected
	}
	return out, nil
}

// joinRows is a nested-loop inner join. Output order is left-major.
func joinRows(on expr.Expr, left, right []table.Row) ([]table.Row, error) {
	var out []table.Row
	for i, l := range left {
		for j, r := range right {
			joined := make(table.Row, 0, len(l)+len(r))
			joined = append(joined, l...)
			joined = append(joined, r...)
			keep, err := expr.EvalBool(on, joined)
			if err != nil {
				return nil, fmt.Errorf("rows (%d, %d): %w", i, j, err)
			}
			if keep {
				out = append(out, joined)
			}
		}
	}
	return out, nil
}

type group struct {
	key  table.Row
	rows []table.Row
}

// aggregateRows emits one row per group, in order of first appearance. Each row
// holds the group-by values followed by the aggregates. Without group-by there
// is exactly one group, even over empty input.
func aggregateRows(a node.Aggregate, rows []table.Row) ([]table.Row, error) {
	var groups []*group
	if len(a.GroupBy) == 0 {
		groups = []*group{{rows: rows}}
	} else {
		index := make(map[string]*group)
		for i, row := range rows {
			key := make(table.Row, len(a.GroupBy))
			for j, e := range a.GroupBy {
				v, err := expr.Eval(e, row)
				if err != nil {
					return nil, fmt.Errorf("row %d group key %d: %w", i, j, err)
				}
				key[j] = v
			}
			encoded, err := ir.MarshalCanonical(ir.IRArray(key))
			if err != nil {
				return nil, fmt.Errorf("row %d group key: %w", i, err)
			}
			g, ok := index[string(encoded)]
			if !ok {
				g = &group{key: key}
				index[string(encoded)] = g
				groups = append(groups, g)
			}
			g.rows = append(g.rows, row)
		}
	}

	out := make([]table.Row, 0, len(groups))
	for _, g := range groups {
		row := append(table.Row(nil), g.key...)
		for _, call := range a.Aggs {
			v, err := aggregate(call, g.rows)
			if err != nil {
				return nil, fmt.Errorf("%s(%s): %w", call.Func, call.Name, err)
			}
			row = append(row, v)
		}
		out = append(out, row)
	}
	return out, nil
}

func aggregate(call node.AggCall, rows []table.Row) (ir.IRValue, error) {
	if call.Func == node.AggCount && call.Arg == nil {
		return ir.IRInt(len(rows)), nil
	}
	if call.Arg == nil {
		return nil, fmt.Errorf("%s requires an argument", call.Func)
	}

	var acc ir.IRValue
	var sum int64
	for i, row := range rows {
		v, err := expr.Eval(call.Arg, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		switch call.Func {
		case node.AggCount:
			sum++
		case node.AggSum:
			n, ok := v.(ir.IRInt)
			if !ok {
				return nil, fmt.Errorf("sum of %s", ir.TypeName(v))
			}
			if (n > 0 && sum > math.MaxInt64-int64(n)) || (n < 0 && sum < math.MinInt64-int64(n)) {
				return nil, fmt.Errorf("%w: integer overflow in sum", expr.ErrEval)
			}
			sum += int64(n)
		case node.AggMin, node.AggMax:
			if acc == nil {
				acc = v
				continue
			}
			c, err := ir.Compare(v, acc)
			if err != nil {
				return nil, err
			}
			if (call.Func == node.AggMin && c < 0) || (call.Func == node.AggMax && c > 0) {
				acc = v
			}
		default:
			return nil, fmt.Errorf("unknown aggregate %q", call.Func)
		}
	}

	switch call.Func {
	case node.AggCount, node.AggSum:
		return ir.IRInt(sum), nil
	}
	if acc == nil {
		return nil, fmt.Errorf("%s of empty input", call.Func)
	}
	return acc, nil
}

func limitRows(l node.Limit, rows []table.Row) []table.Row {
	start := min(l.Offset, int64(len(rows)))
	end := int64(len(rows))
	if l.Count < end-start {
		end = start + l.Count
	}
	out := make([]table.Row, 0, end-start)
	for _, row := range rows[start:end] {
		out = append(out, row.Clone())
	}
	return out
}

// sortRows is a stable sort; rows with equal keys keep their input order.
func sortRows(keys []node.SortKey, rows []table.Row) ([]table.Row, error) {
	type keyed struct {
		keys table.Row
		row  table.Row
	}
	items := make([]keyed, len(rows))
	for i, row := range rows {
		k := make(table.Row, len(keys))
		for j, key := range keys {
			v, err := expr.Eval(key.Expr, row)
			if err != nil {
				return nil, fmt.Errorf("row %d sort key %d: %w", i, j, err)
			}
			k[j] = v
		}
		items[i] = keyed{keys: k, row: row.Clone()}
	}

	var cmpErr error
	slices.SortStableFunc(items, func(a, b keyed) int {
		for j, key := range keys {
			c, err := ir.Compare(a.keys[j], b.keys[j])
			if err != nil {
				if cmpErr == nil {
					cmpErr = err
				}
				return 0
			}
			if key.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	if cmpErr != nil {
		return nil, cmpErr
	}

	out := make([]table.Row, len(items))
	for i, it := range items {
		out[i] = it.row
	}
	return out, nil
}
