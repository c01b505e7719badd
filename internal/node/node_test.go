package node

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vquery/internal/expr"
	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/proof"
	"github.com/roach88/vquery/internal/table"
)

var intSchema = table.NewSchema("col0", table.ColumnInt)

func testUnit(vals ...int64) *table.Unit {
	rows := make([]table.Row, len(vals))
	for i, v := range vals {
		rows[i] = table.Row{ir.IRInt(v)}
	}
	return table.MustCommit(table.NewPage(rows...), intSchema)
}

func testKeys(t *testing.T) (*proof.ProvingKey, *proof.VerifyingKey) {
	t.Helper()
	c, err := proof.NewCircuit(ir.IRObject{"kind": ir.IRString("test")}, 0, false,
		proof.RelationFunc(func(proof.Witness) (bool, error) { return true, nil }))
	require.NoError(t, err)
	pk, vk, err := proof.NewReferenceWithSeed("node").KeyGen(c)
	require.NoError(t, err)
	return pk, vk
}

func TestStageTransitionsInOrder(t *testing.T) {
	n := New(Scan{}, []InputRef{SourceRef("T", testUnit(1))}, intSchema)
	pk, vk := testKeys(t)

	assert.Equal(t, StageCreated, n.Stage())
	assert.True(t, n.Output().IsZero())
	assert.Nil(t, n.Proof())

	require.NoError(t, n.SetOutput(Output{Unit: testUnit(1)}))
	assert.Equal(t, StageExecuted, n.Stage())
	assert.Equal(t, 1, n.Output().Rows())

	require.NoError(t, n.SetKeys(pk, vk))
	assert.Equal(t, StageKeyGenerated, n.Stage())

	require.NoError(t, n.SetProof(&proof.Proof{Backend: "x"}))
	assert.Equal(t, StageProved, n.Stage())
	assert.NotNil(t, n.Proof())

	require.NoError(t, n.MarkVerified())
	assert.Equal(t, StageVerified, n.Stage())
}

func TestStageTransitionsRejectSkips(t *testing.T) {
	pk, vk := testKeys(t)
	n := New(Scan{}, nil, intSchema)

	err := n.SetProof(&proof.Proof{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStageOrder))
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageCreated, se.Current)
	assert.Equal(t, StageKeyGenerated, se.Want)

	assert.ErrorIs(t, n.SetKeys(pk, vk), ErrStageOrder)
	assert.ErrorIs(t, n.MarkVerified(), ErrStageOrder)
	assert.Equal(t, StageCreated, n.Stage(), "rejected transitions leave the stage unchanged")
}

func TestStageTransitionsRejectRepeats(t *testing.T) {
	n := New(Scan{}, nil, intSchema)
	require.NoError(t, n.SetOutput(Output{Unit: testUnit(1)}))

	assert.ErrorIs(t, n.SetOutput(Output{Unit: testUnit(2)}), ErrStageOrder)
	assert.Equal(t, ir.IRInt(1), n.Output().Unit.Page.Rows[0][0], "outputs are written once")
}

func TestRecordMethodsRejectEmptyValues(t *testing.T) {
	n := New(Scan{}, nil, intSchema)
	assert.Error(t, n.SetOutput(Output{}))
	assert.Equal(t, StageCreated, n.Stage())

	require.NoError(t, n.SetOutput(Output{Unit: testUnit(1)}))
	assert.Error(t, n.SetKeys(nil, nil))
	assert.Equal(t, StageExecuted, n.Stage())
}

func TestOverrideOutput(t *testing.T) {
	n := New(Scan{}, nil, intSchema)
	assert.ErrorIs(t, n.OverrideOutput(Output{Unit: testUnit(9)}), ErrStageOrder)

	require.NoError(t, n.SetOutput(Output{Unit: testUnit(1)}))
	require.NoError(t, n.OverrideOutput(Output{Unit: testUnit(9)}))
	assert.Equal(t, StageExecuted, n.Stage())
	assert.Equal(t, ir.IRInt(9), n.Output().Unit.Page.Rows[0][0])
}

func TestOutputCommitment(t *testing.T) {
	u := testUnit(1)
	s, err := table.CommitScalar(ir.IRInt(3))
	require.NoError(t, err)

	assert.Equal(t, u.Commitment, Output{Unit: u}.Commitment())
	assert.Equal(t, s.Commitment, Output{Scalar: s}.Commitment())
	assert.Equal(t, 1, Output{Scalar: s}.Rows())
	assert.Equal(t, ir.Digest(""), Output{}.Commitment())
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "keygenerated", StageKeyGenerated.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
}

func TestInputRef(t *testing.T) {
	u := testUnit(1)
	src := SourceRef("T", u)
	ref := NodeRef(3)

	assert.True(t, src.IsSource())
	assert.False(t, src.IsNode())
	assert.Same(t, u, src.Unit())
	assert.Equal(t, "source(T)", src.String())

	assert.True(t, ref.IsNode())
	assert.Equal(t, 3, ref.Position())
	assert.Equal(t, "node(3)", ref.String())
	assert.Equal(t, "invalid", InputRef{}.String())
}

func TestOperationShapes(t *testing.T) {
	agg := Aggregate{Aggs: []AggCall{{Func: AggSum, Arg: expr.Col(0), Name: "total"}}, Terminal: true}
	assert.True(t, agg.ScalarOutput())
	assert.Equal(t, []expr.Expr{expr.Col(0)}, agg.Exprs())
	assert.Equal(t,
		`{"aggs":[{"func":"sum","has_arg":true,"name":"total"}],"groups":[],"scalar":true}`,
		string(ir.MustMarshalCanonical(agg.Params())))

	grouped := Aggregate{GroupBy: []expr.Expr{expr.Col(1)}, GroupNames: []string{"g"}, Aggs: []AggCall{{Func: AggCount, Name: "n"}}}
	assert.False(t, grouped.ScalarOutput())
	assert.False(t, Aggregate{Aggs: grouped.Aggs}.ScalarOutput(), "only terminal aggregates are scalar")
	assert.Equal(t, []expr.Expr{expr.Col(1)}, grouped.Exprs())

	lim := Limit{Count: 2, Offset: 1}
	assert.Equal(t, `{"count":2,"offset":1}`, string(ir.MustMarshalCanonical(lim.Params())))

	s := Sort{Keys: []SortKey{{Expr: expr.Col(0), Desc: true}}}
	assert.Equal(t, `{"desc":[true]}`, string(ir.MustMarshalCanonical(s.Params())))
	assert.Equal(t, OpSort, s.Kind())
}
