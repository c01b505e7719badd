package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/vquery/internal/expr"
	"github.com/roach88/vquery/internal/node"
	"github.com/roach88/vquery/internal/plan"
	"github.com/roach88/vquery/internal/table"
)

// Option configures Flatten.
type Option func(*flattener)

// WithConverter sets the expression converter, e.g. one with whitelisted
// functions. The default whitelists nothing.
func WithConverter(c *expr.Converter) Option {
	return func(f *flattener) {
		f.conv = c
	}
}

type flattener struct {
	root     *plan.Node
	resolver plan.SourceResolver
	conv     *expr.Converter
	arena    *node.Arena
	emitted  map[*plan.Node]int
}

// Flatten converts a plan into a topologically ordered node arena.
//
// The traversal is post-order: children are emitted before their parent, in
// child order, so every input of a node has a smaller position. A subtree
// reachable twice through the same pointer is emitted once. Scans resolve
// through resolver.
//
// Flatten is all-or-nothing: on any error the arena is nil.
func Flatten(root *plan.Node, resolver plan.SourceResolver, opts ...Option) (*node.Arena, error) {
	if root == nil {
		return nil, &FlattenError{Code: CodeInvalidPlan, Message: "nil plan"}
	}
	if resolver == nil {
		return nil, &FlattenError{Code: CodeInvalidPlan, Message: "nil source resolver"}
	}

	if cycle := buildPlanGraph(root).findCycle(); cycle != nil {
		return nil, &FlattenError{
			Code:    CodePlanCycle,
			Path:    cycle[0],
			Message: formatCycle(cycle),
		}
	}

	f := &flattener{
		root:     root,
		resolver: resolver,
		conv:     expr.NewConverter(),
		arena:    node.NewArena(),
		emitted:  make(map[*plan.Node]int),
	}
	for _, opt := range opts {
		opt(f)
	}

	if _, err := f.emit(root, pathLabel(root)); err != nil {
		return nil, err
	}
	if err := CheckTopological(f.arena); err != nil {
		return nil, &FlattenError{Code: CodeInvalidPlan, Message: "flattened sequence failed validation", Err: err}
	}
	return f.arena, nil
}

// CheckTopological verifies that every input reference of every node has a
// strictly smaller position than the node.
func CheckTopological(a *node.Arena) error {
	return a.Validate()
}

func (f *flattener) emit(n *plan.Node, path string) (int, error) {
	if pos, ok := f.emitted[n]; ok {
		return pos, nil
	}

	inputs := make([]node.InputRef, 0, len(n.Children))
	schemas := make([]table.Schema, 0, len(n.Children))
	for i, c := range n.Children {
		if c == nil {
			return 0, f.invalid(path, "child %d is nil", i)
		}
		pos, err := f.emit(c, path+"/"+pathLabel(c))
		if err != nil {
			return 0, err
		}
		inputs = append(inputs, node.NodeRef(pos))
		schemas = append(schemas, f.arena.At(pos).Schema)
	}

	built, err := f.build(n, path, inputs, schemas)
	if err != nil {
		return 0, err
	}
	if n.Schema != nil && !n.Schema.Equal(built.Schema) {
		return 0, f.invalid(path, "declared schema %s does not match derived schema %s", n.Schema, built.Schema)
	}

	pos := f.arena.Append(built)
	f.emitted[n] = pos
	return pos, nil
}

func (f *flattener) build(n *plan.Node, path string, inputs []node.InputRef, schemas []table.Schema) (*node.Node, error) {
	switch n.Kind {
	case plan.KindScan:
		return f.buildScan(n, path)
	case plan.KindFilter:
		return f.buildFilter(n, path, inputs, schemas)
	case plan.KindProjection:
		return f.buildProjection(n, path, inputs, schemas)
	case plan.KindJoin:
		return f.buildJoin(n, path, inputs, schemas)
	case plan.KindAggregate:
		return f.buildAggregate(n, path, inputs, schemas)
	case plan.KindLimit:
		return f.buildLimit(n, path, inputs, schemas)
	case plan.KindSort:
		return f.buildSort(n, path, inputs, schemas)
	default:
		return nil, &FlattenError{
			Code:    CodeUnsupportedPlanNode,
			Path:    path,
			Message: fmt.Sprintf("operator %q has no mapping", n.Kind),
		}
	}
}

func (f *flattener) buildScan(n *plan.Node, path string) (*node.Node, error) {
	if len(n.Children) != 0 {
		return nil, f.invalid(path, "scan takes no inputs, got %d", len(n.Children))
	}
	if n.Table == "" {
		return nil, f.invalid(path, "scan has no table name")
	}

	u, err := f.resolver.Resolve(n.Table)
	if err == nil && u == nil {
		err = fmt.Errorf("resolver returned no unit")
	}
	if err != nil {
		return nil, &FlattenError{
			Code:    CodeUnresolvedSource,
			Path:    path,
			Message: fmt.Sprintf("table %q", n.Table),
			Err:     err,
		}
	}

	return node.New(node.Scan{}, []node.InputRef{node.SourceRef(n.Table, u)}, u.Schema.Clone()), nil
}

func (f *flattener) buildFilter(n *plan.Node, path string, inputs []node.InputRef, schemas []table.Schema) (*node.Node, error) {
	if err := f.expectInputs(n, path, 1); err != nil {
		return nil, err
	}
	if n.Predicate == nil {
		return nil, f.invalid(path, "filter has no predicate")
	}
	pred, err := f.predicate(n.Predicate, path, schemas[0])
	if err != nil {
		return nil, err
	}
	return node.New(node.Filter{Predicate: pred}, inputs, schemas[0].Clone()), nil
}

func (f *flattener) buildProjection(n *plan.Node, path string, inputs []node.InputRef, schemas []table.Schema) (*node.Node, error) {
	if err := f.expectInputs(n, path, 1); err != nil {
		return nil, err
	}
	if len(n.Columns) == 0 {
		return nil, f.invalid(path, "projection has no columns")
	}

	op := node.Projection{}
	out := table.Schema{}
	for i, c := range n.Columns {
		e, typ, err := f.typed(c.Expr, path, schemas[0])
		if err != nil {
			return nil, err
		}
		name := columnName(c.Name, i)
		op.Columns = append(op.Columns, e)
		op.Names = append(op.Names, name)
		out.Columns = append(out.Columns, table.Column{Name: name, Type: typ})
	}
	return node.New(op, inputs, out), nil
}

func (f *flattener) buildJoin(n *plan.Node, path string, inputs []node.InputRef, schemas []table.Schema) (*node.Node, error) {
	if err := f.expectInputs(n, path, 2); err != nil {
		return nil, err
	}
	combined := schemas[0].Concat(schemas[1])

	var on expr.Expr = expr.Lit(true)
	if n.Predicate != nil {
		var err error
		if on, err = f.predicate(n.Predicate, path, combined); err != nil {
			return nil, err
		}
	}
	return node.New(node.Join{On: on}, inputs, combined), nil
}

func (f *flattener) buildAggregate(n *plan.Node, path string, inputs []node.InputRef, schemas []table.Schema) (*node.Node, error) {
	if err := f.expectInputs(n, path, 1); err != nil {
		return nil, err
	}
	if len(n.Aggregates) == 0 && len(n.GroupBy) == 0 {
		return nil, f.invalid(path, "aggregate has neither group-by nor aggregates")
	}

	op := node.Aggregate{Terminal: n == f.root}
	out := table.Schema{}
	for i, g := range n.GroupBy {
		e, typ, err := f.typed(g.Expr, path, schemas[0])
		if err != nil {
			return nil, err
		}
		name := columnName(g.Name, i)
		op.GroupBy = append(op.GroupBy, e)
		op.GroupNames = append(op.GroupNames, name)
		out.Columns = append(out.Columns, table.Column{Name: name, Type: typ})
	}

	for i, a := range n.Aggregates {
		call, ok := a.Expr.(plan.AggCall)
		if !ok {
			return nil, f.invalid(path, "aggregate %d is %T, want an aggregate call", i, a.Expr)
		}
		agg, typ, err := f.aggCall(call, path, schemas[0])
		if err != nil {
			return nil, err
		}
		agg.Name = columnName(a.Name, len(n.GroupBy)+i)
		op.Aggs = append(op.Aggs, agg)
		out.Columns = append(out.Columns, table.Column{Name: agg.Name, Type: typ})
	}
	return node.New(op, inputs, out), nil
}

func (f *flattener) aggCall(call plan.AggCall, path string, in table.Schema) (node.AggCall, table.ColumnType, error) {
	fn := node.AggFunc(strings.ToLower(call.Func))
	if call.Distinct {
		return node.AggCall{}, "", &FlattenError{
			Code:    CodeUnsupportedPlanNode,
			Path:    path,
			Message: fmt.Sprintf("aggregate %s(DISTINCT ...) has no mapping", call.Func),
		}
	}

	switch fn {
	case node.AggCount:
		if call.Arg == nil {
			return node.AggCall{Func: fn}, table.ColumnInt, nil
		}
		arg, _, err := f.typed(call.Arg, path, in)
		if err != nil {
			return node.AggCall{}, "", err
		}
		return node.AggCall{Func: fn, Arg: arg}, table.ColumnInt, nil

	case node.AggSum, node.AggMin, node.AggMax:
		if call.Arg == nil {
			return node.AggCall{}, "", f.invalid(path, "%s needs an argument", fn)
		}
		arg, typ, err := f.typed(call.Arg, path, in)
		if err != nil {
			return node.AggCall{}, "", err
		}
		if fn == node.AggSum && typ != table.ColumnInt {
			return node.AggCall{}, "", f.invalid(path, "sum of %s", typ)
		}
		return node.AggCall{Func: fn, Arg: arg}, typ, nil

	default:
		return node.AggCall{}, "", &FlattenError{
			Code:    CodeUnsupportedPlanNode,
			Path:    path,
			Message: fmt.Sprintf("aggregate function %q has no mapping", call.Func),
		}
	}
}

func (f *flattener) buildLimit(n *plan.Node, path string, inputs []node.InputRef, schemas []table.Schema) (*node.Node, error) {
	if err := f.expectInputs(n, path, 1); err != nil {
		return nil, err
	}
	if n.Count < 0 || n.Offset < 0 {
		return nil, f.invalid(path, "limit %d offset %d must not be negative", n.Count, n.Offset)
	}
	return node.New(node.Limit{Count: n.Count, Offset: n.Offset}, inputs, schemas[0].Clone()), nil
}

func (f *flattener) buildSort(n *plan.Node, path string, inputs []node.InputRef, schemas []table.Schema) (*node.Node, error) {
	if err := f.expectInputs(n, path, 1); err != nil {
		return nil, err
	}
	if len(n.SortKeys) == 0 {
		return nil, f.invalid(path, "sort has no keys")
	}

	op := node.Sort{}
	for _, k := range n.SortKeys {
		e, _, err := f.typed(k.Expr, path, schemas[0])
		if err != nil {
			return nil, err
		}
		op.Keys = append(op.Keys, node.SortKey{Expr: e, Desc: k.Desc})
	}
	return node.New(op, inputs, schemas[0].Clone()), nil
}

// typed converts e and checks it against the input schema.
func (f *flattener) typed(e plan.Expr, path string, in table.Schema) (expr.Expr, table.ColumnType, error) {
	converted, err := f.conv.Convert(e)
	if err != nil {
		return nil, "", &FlattenError{Code: CodeUnsupportedExpr, Path: path, Message: "expression conversion failed", Err: err}
	}
	typ, err := expr.TypeOf(converted, in)
	if err != nil {
		return nil, "", &FlattenError{Code: CodeInvalidPlan, Path: path, Message: fmt.Sprintf("expression %s", converted), Err: err}
	}
	return converted, typ, nil
}

func (f *flattener) predicate(e plan.Expr, path string, in table.Schema) (expr.Expr, error) {
	converted, typ, err := f.typed(e, path, in)
	if err != nil {
		return nil, err
	}
	if typ != table.ColumnBool {
		return nil, f.invalid(path, "predicate %s is %s, want bool", converted, typ)
	}
	return converted, nil
}

func (f *flattener) expectInputs(n *plan.Node, path string, want int) error {
	if len(n.Children) != want {
		return f.invalid(path, "%s takes %d inputs, got %d", n.Kind, want, len(n.Children))
	}
	return nil
}

func (f *flattener) invalid(path, format string, args ...any) error {
	return &FlattenError{Code: CodeInvalidPlan, Path: path, Message: fmt.Sprintf(format, args...)}
}

func pathLabel(n *plan.Node) string {
	if n == nil {
		return "<nil>"
	}
	if n.Kind == plan.KindScan {
		return fmt.Sprintf("scan(%s)", n.Table)
	}
	return string(n.Kind)
}

func columnName(name string, i int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("col%d", i)
}
