package engine

import (
	"fmt"

	"github.com/roach88/vquery/internal/expr"
	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/node"
	"github.com/roach88/vquery/internal/proof"
	"github.com/roach88/vquery/internal/table"
)

// shapeOf describes a node without reference to any row data: the operation
// kind, its expression trees, its parameters, and the input and output schemas.
// Two nodes with equal shapes compile to the same circuit.
func shapeOf(n *node.Node, inSchemas []table.Schema) ir.IRObject {
	exprs := n.Op.Exprs()
	shapes := make(ir.IRArray, len(exprs))
	for i, e := range exprs {
		shapes[i] = expr.Shape(e)
	}
	ins := make(ir.IRArray, len(inSchemas))
	for i, s := range inSchemas {
		ins[i] = s.Canonical()
	}
	return ir.IRObject{
		"version": ir.IRString(ir.IRVersion),
		"kind":    ir.IRString(n.Kind()),
		"exprs":   shapes,
		"params":  n.Op.Params(),
		"inputs":  ins,
		"output":  n.Schema.Canonical(),
		"scalar":  ir.IRBool(isScalar(n.Op)),
	}
}

func isScalar(op node.Operation) bool {
	a, ok := op.(node.Aggregate)
	return ok && a.ScalarOutput()
}

// compile builds the circuit for a node.
func compile(n *node.Node, inSchemas []table.Schema) (*proof.Circuit, error) {
	for i, e := range n.Op.Exprs() {
		if e == nil {
			return nil, fmt.Errorf("%w: %s expression %d is nil", proof.ErrUnsupportedShape, n.Kind(), i)
		}
	}
	scalar := isScalar(n.Op)
	return proof.NewCircuit(shapeOf(n, inSchemas), len(inSchemas), scalar,
		relationFor(n.Op, inSchemas, n.Schema, scalar))
}

// relationFor returns the relation a node's circuit enforces: the witness
// output is exactly the operation applied to the witness inputs.
func relationFor(op node.Operation, inSchemas []table.Schema, out table.Schema, scalar bool) proof.Relation {
	return proof.RelationFunc(func(w proof.Witness) (bool, error) {
		if len(w.Inputs) != len(inSchemas) {
			return false, fmt.Errorf("%d witness inputs, circuit takes %d", len(w.Inputs), len(inSchemas))
		}
		for i, u := range w.Inputs {
			if u == nil {
				return false, fmt.Errorf("witness input %d is nil", i)
			}
			if !u.Schema.Equal(inSchemas[i]) {
				return false, fmt.Errorf("witness input %d has schema %s, circuit takes %s", i, u.Schema, inSchemas[i])
			}
		}
		if !scalar && !w.Output.Schema.Equal(out) {
			return false, fmt.Errorf("witness output has schema %s, circuit produces %s", w.Output.Schema, out)
		}

		want, err := apply(op, w.Inputs)
		if err != nil {
			return false, nil
		}
		if scalar {
			return ir.Equal(want.scalar, w.Scalar.Value), nil
		}
		return ir.Equal(table.NewPage(want.rows...).Canonical(), w.Output.Page.Canonical()), nil
	})
}
