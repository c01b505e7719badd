package plan

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/table"
)

// CompileError is a plan loading error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads a CUE file and compiles its top-level "plan" field.
func LoadFile(path string) (*Node, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return Compile(path, src)
}

// Compile compiles the top-level "plan" field of src. Error positions refer
// to filename.
func Compile(filename string, src []byte) (*Node, error) {
	return compileSource(string(src), filename)
}

// CompileString compiles the top-level "plan" field of CUE source.
//
//	plan: {
//		op: "filter"
//		predicate: {op: ">", args: [{col: 0}, {lit: 5}]}
//		input: {op: "scan", table: "T"}
//	}
func CompileString(src string) (*Node, error) {
	return compileSource(src, "plan.cue")
}

func compileSource(src, filename string) (*Node, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("plan"))
	if !root.Exists() {
		return nil, &CompileError{Field: "plan", Message: "plan is required", Pos: v.Pos()}
	}
	return CompileValue(root)
}

// CompileValue compiles a CUE value describing one plan node and its subtree.
func CompileValue(v cue.Value) (*Node, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	op, err := requiredString(v, "op")
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: Kind(op)}

	if n.Table, err = optionalString(v, "table"); err != nil {
		return nil, err
	}
	if n.Children, err = compileInputs(v); err != nil {
		return nil, err
	}

	for _, name := range []string{"predicate", "on"} {
		if pv := v.LookupPath(cue.ParsePath(name)); pv.Exists() {
			if n.Predicate, err = compileExpr(pv); err != nil {
				return nil, err
			}
		}
	}

	if n.Columns, err = compileNamedExprs(v, "columns"); err != nil {
		return nil, err
	}
	if n.GroupBy, err = compileNamedExprs(v, "group_by"); err != nil {
		return nil, err
	}
	if n.Aggregates, err = compileAggregates(v); err != nil {
		return nil, err
	}
	if n.SortKeys, err = compileSortKeys(v); err != nil {
		return nil, err
	}
	if n.Count, err = optionalInt(v, "count"); err != nil {
		return nil, err
	}
	if n.Offset, err = optionalInt(v, "offset"); err != nil {
		return nil, err
	}
	if n.Schema, err = compileSchema(v); err != nil {
		return nil, err
	}
	return n, nil
}

func compileInputs(v cue.Value) ([]*Node, error) {
	if in := v.LookupPath(cue.ParsePath("input")); in.Exists() {
		child, err := CompileValue(in)
		if err != nil {
			return nil, err
		}
		return []*Node{child}, nil
	}

	ins := v.LookupPath(cue.ParsePath("inputs"))
	if !ins.Exists() {
		return nil, nil
	}
	iter, err := ins.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var children []*Node
	for iter.Next() {
		child, err := CompileValue(iter.Value())
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func compileNamedExprs(v cue.Value, field string) ([]NamedExpr, error) {
	list := v.LookupPath(cue.ParsePath(field))
	if !list.Exists() {
		return nil, nil
	}
	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []NamedExpr
	for iter.Next() {
		item := iter.Value()
		name, err := requiredString(item, "name")
		if err != nil {
			return nil, err
		}
		ev := item.LookupPath(cue.ParsePath("expr"))
		if !ev.Exists() {
			return nil, &CompileError{Field: field + ".expr", Message: "expr is required", Pos: item.Pos()}
		}
		e, err := compileExpr(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, NamedExpr{Name: name, Expr: e})
	}
	return out, nil
}

func compileAggregates(v cue.Value) ([]NamedExpr, error) {
	list := v.LookupPath(cue.ParsePath("aggregates"))
	if !list.Exists() {
		return nil, nil
	}
	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []NamedExpr
	for iter.Next() {
		item := iter.Value()
		name, err := requiredString(item, "name")
		if err != nil {
			return nil, err
		}
		call, err := compileAggCall(item, "fn")
		if err != nil {
			return nil, err
		}
		out = append(out, NamedExpr{Name: name, Expr: call})
	}
	return out, nil
}

func compileAggCall(v cue.Value, fnField string) (AggCall, error) {
	fn, err := requiredString(v, fnField)
	if err != nil {
		return AggCall{}, err
	}
	call := AggCall{Func: fn}
	if av := v.LookupPath(cue.ParsePath("arg")); av.Exists() {
		if call.Arg, err = compileExpr(av); err != nil {
			return AggCall{}, err
		}
	}
	if dv := v.LookupPath(cue.ParsePath("distinct")); dv.Exists() {
		if call.Distinct, err = dv.Bool(); err != nil {
			return AggCall{}, formatCUEError(err)
		}
	}
	return call, nil
}

func compileSortKeys(v cue.Value) ([]SortKey, error) {
	list := v.LookupPath(cue.ParsePath("keys"))
	if !list.Exists() {
		return nil, nil
	}
	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []SortKey
	for iter.Next() {
		item := iter.Value()
		ev := item.LookupPath(cue.ParsePath("expr"))
		if !ev.Exists() {
			return nil, &CompileError{Field: "keys.expr", Message: "expr is required", Pos: item.Pos()}
		}
		e, err := compileExpr(ev)
		if err != nil {
			return nil, err
		}
		key := SortKey{Expr: e}
		if dv := item.LookupPath(cue.ParsePath("desc")); dv.Exists() {
			if key.Desc, err = dv.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		out = append(out, key)
	}
	return out, nil
}

func compileSchema(v cue.Value) (*table.Schema, error) {
	list := v.LookupPath(cue.ParsePath("schema"))
	if !list.Exists() {
		return nil, nil
	}
	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	s := &table.Schema{}
	for iter.Next() {
		item := iter.Value()
		name, err := requiredString(item, "name")
		if err != nil {
			return nil, err
		}
		typ, err := requiredString(item, "type")
		if err != nil {
			return nil, err
		}
		s.Columns = append(s.Columns, table.Column{Name: name, Type: table.ColumnType(typ)})
	}
	if err := s.Validate(); err != nil {
		return nil, &CompileError{Field: "schema", Message: err.Error(), Pos: list.Pos()}
	}
	return s, nil
}

// compileExpr compiles one expression. The first key present decides the form:
//
//	{lit: 5}                     literal
//	{col: 0, name?: "col0"}      column reference
//	{op: ">", args: [a, b]}      binary (two args) or unary (one arg)
//	{call: "f", args: [...]}     function call
//	{cast: "int", arg: e}        cast
//	{agg: "sum", arg?: e}        aggregate call
//	{subquery: node}             nested plan
func compileExpr(v cue.Value) (Expr, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if lv := v.LookupPath(cue.ParsePath("lit")); lv.Exists() {
		val, err := compileLiteral(lv)
		if err != nil {
			return nil, err
		}
		return Literal{Value: val}, nil
	}

	if cv := v.LookupPath(cue.ParsePath("col")); cv.Exists() {
		idx, err := cv.Int64()
		if err != nil {
			return nil, &CompileError{Field: "col", Message: "column index must be an int", Pos: cv.Pos()}
		}
		name, err := optionalString(v, "name")
		if err != nil {
			return nil, err
		}
		return ColumnRef{Index: int(idx), Name: name}, nil
	}

	if ov := v.LookupPath(cue.ParsePath("op")); ov.Exists() {
		op, err := ov.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		args, err := compileArgs(v)
		if err != nil {
			return nil, err
		}
		switch len(args) {
		case 1:
			return Unary{Op: op, Operand: args[0]}, nil
		case 2:
			return Binary{Op: op, Left: args[0], Right: args[1]}, nil
		default:
			return nil, &CompileError{
				Field:   "args",
				Message: fmt.Sprintf("operator %q takes 1 or 2 args, got %d", op, len(args)),
				Pos:     v.Pos(),
			}
		}
	}

	if fv := v.LookupPath(cue.ParsePath("call")); fv.Exists() {
		name, err := fv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		args, err := compileArgs(v)
		if err != nil {
			return nil, err
		}
		return Call{Name: name, Args: args}, nil
	}

	if tv := v.LookupPath(cue.ParsePath("cast")); tv.Exists() {
		typ, err := tv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		av := v.LookupPath(cue.ParsePath("arg"))
		if !av.Exists() {
			return nil, &CompileError{Field: "cast.arg", Message: "arg is required", Pos: v.Pos()}
		}
		operand, err := compileExpr(av)
		if err != nil {
			return nil, err
		}
		return Cast{Operand: operand, Type: typ}, nil
	}

	if v.LookupPath(cue.ParsePath("agg")).Exists() {
		return compileAggCall(v, "agg")
	}

	if sv := v.LookupPath(cue.ParsePath("subquery")); sv.Exists() {
		sub, err := CompileValue(sv)
		if err != nil {
			return nil, err
		}
		return Subquery{Plan: sub}, nil
	}

	return nil, &CompileError{
		Field:   "expr",
		Message: "expression needs one of lit, col, op, call, cast, agg, subquery",
		Pos:     v.Pos(),
	}
}

func compileArgs(v cue.Value) ([]Expr, error) {
	av := v.LookupPath(cue.ParsePath("args"))
	if !av.Exists() {
		return nil, nil
	}
	iter, err := av.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var args []Expr
	for iter.Next() {
		e, err := compileExpr(iter.Value())
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	return args, nil
}

// compileLiteral converts a concrete CUE scalar. Floats are rejected.
func compileLiteral(v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: "lit", Message: err.Error(), Pos: v.Pos()}
		}
		return ir.IRInt(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{Field: "lit", Message: "float literals are forbidden - use int instead", Pos: v.Pos()}
	default:
		return nil, &CompileError{
			Field:   "lit",
			Message: fmt.Sprintf("unsupported literal kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalInt(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
