package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vquery/internal/ir"
)

func sampleSchema() Schema {
	return NewSchema("col0", ColumnInt, "label", ColumnText)
}

func samplePage() Page {
	return NewPage(
		Row{ir.IRInt(3), ir.IRString("three")},
		Row{ir.IRInt(7), ir.IRString("seven")},
		Row{ir.IRInt(9), ir.IRString("nine")},
	)
}

func TestCommitRoundTrip(t *testing.T) {
	u, err := Commit(samplePage(), sampleSchema())
	require.NoError(t, err)

	assert.NoError(t, VerifyCommitment(u))
	assert.True(t, u.Verify())
	assert.Len(t, string(u.Commitment), 64)
	assert.Equal(t, 3, u.Rows())
}

func TestCommitDeterministic(t *testing.T) {
	u1 := MustCommit(samplePage(), sampleSchema())
	u2 := MustCommit(samplePage(), sampleSchema())

	assert.Equal(t, u1.Commitment, u2.Commitment)
}

func TestCommitDetectsPageMutation(t *testing.T) {
	u := MustCommit(samplePage(), sampleSchema())

	u.Page.Rows[0][0] = ir.IRInt(4)

	err := VerifyCommitment(u)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommitmentMismatch)
	assert.False(t, u.Verify())
}

func TestCommitDetectsSchemaMutation(t *testing.T) {
	u := MustCommit(samplePage(), sampleSchema())

	u.Schema.Columns[1].Name = "name"

	assert.ErrorIs(t, VerifyCommitment(u), ErrCommitmentMismatch)
}

func TestCommitDetectsRowRemoval(t *testing.T) {
	u := MustCommit(samplePage(), sampleSchema())

	u.Page.Rows = u.Page.Rows[1:]

	assert.ErrorIs(t, VerifyCommitment(u), ErrCommitmentMismatch)
}

func TestCommitClonesInput(t *testing.T) {
	page := samplePage()
	u := MustCommit(page, sampleSchema())

	page.Rows[0][0] = ir.IRInt(100)

	assert.NoError(t, VerifyCommitment(u), "caller mutation must not reach the unit")
	assert.Equal(t, ir.IRInt(3), u.Page.Rows[0][0])
}

func TestCommitSchemaBinding(t *testing.T) {
	page := NewPage(Row{ir.IRInt(1)})
	a := MustCommit(page, NewSchema("a", ColumnInt))
	b := MustCommit(page, NewSchema("b", ColumnInt))

	assert.NotEqual(t, a.Commitment, b.Commitment, "same page under a different schema is a different unit")
}

func TestCommitRejectsInvalidRows(t *testing.T) {
	tests := []struct {
		name string
		page Page
	}{
		{"short row", NewPage(Row{ir.IRInt(1)})},
		{"wrong type", NewPage(Row{ir.IRString("1"), ir.IRString("x")})},
		{"null value", NewPage(Row{ir.IRNull{}, ir.IRString("x")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Commit(tt.page, sampleSchema())
			assert.ErrorIs(t, err, ErrRowInvalid)
		})
	}
}

func TestCommitRejectsInvalidSchema(t *testing.T) {
	_, err := Commit(NewPage(), Schema{Columns: []Column{{Name: "x", Type: "float"}}})
	assert.ErrorIs(t, err, ErrSchemaInvalid)

	_, err = Commit(NewPage(), Schema{Columns: []Column{{Name: "", Type: ColumnInt}}})
	assert.ErrorIs(t, err, ErrSchemaInvalid)
}

func TestCommitEmptyPage(t *testing.T) {
	u, err := Commit(NewPage(), sampleSchema())
	require.NoError(t, err)
	assert.True(t, u.Verify())
	assert.Equal(t, 0, u.Rows())
}

func TestAssemble(t *testing.T) {
	u := MustCommit(samplePage(), sampleSchema())
	payload, err := u.Payload()
	require.NoError(t, err)
	descriptor, err := MarshalSchema(u.Schema)
	require.NoError(t, err)

	got, err := Assemble(payload, descriptor, u.Commitment)
	require.NoError(t, err)
	assert.Equal(t, u.Commitment, got.Commitment)
	assert.Equal(t, u.Page, got.Page)
	assert.True(t, u.Schema.Equal(got.Schema))
}

func TestAssembleDetectsTamperedPayload(t *testing.T) {
	u := MustCommit(samplePage(), sampleSchema())
	descriptor, err := MarshalSchema(u.Schema)
	require.NoError(t, err)

	tampered := []byte(`[[3,"three"],[7,"seven"],[10,"nine"]]`)
	_, err = Assemble(tampered, descriptor, u.Commitment)
	assert.ErrorIs(t, err, ErrCommitmentMismatch)
}

func TestScalarCommitment(t *testing.T) {
	s, err := CommitScalar(ir.IRInt(16))
	require.NoError(t, err)
	assert.NoError(t, VerifyScalar(s))

	s.Value = ir.IRInt(17)
	assert.ErrorIs(t, VerifyScalar(s), ErrCommitmentMismatch)

	_, err = CommitScalar(ir.IRNull{})
	assert.Error(t, err)
}
