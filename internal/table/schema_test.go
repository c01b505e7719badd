package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vquery/internal/ir"
)

func TestSchemaDescriptorRoundTrip(t *testing.T) {
	s := NewSchema("id", ColumnInt, "active", ColumnBool, "name", ColumnText)

	data, err := MarshalSchema(s)
	require.NoError(t, err)
	assert.Equal(t,
		`{"columns":[{"name":"id","type":"int"},{"name":"active","type":"bool"},{"name":"name","type":"text"}],"version":"1"}`,
		string(data))

	got, err := UnmarshalSchema(data)
	require.NoError(t, err)
	assert.True(t, s.Equal(got))
}

func TestUnmarshalSchemaRejectsInvalidDescriptors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{columns`},
		{"missing columns", `{"version":"1"}`},
		{"float type", `{"columns":[{"name":"x","type":"float"}]}`},
		{"empty name", `{"columns":[{"name":"","type":"int"}]}`},
		{"extra field", `{"columns":[{"name":"x","type":"int","nullable":true}]}`},
		{"columns not array", `{"columns":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalSchema([]byte(tt.data))
			assert.ErrorIs(t, err, ErrSchemaInvalid)
		})
	}
}

func TestSchemaHelpers(t *testing.T) {
	left := NewSchema("id", ColumnInt)
	right := NewSchema("id", ColumnInt, "v", ColumnText)

	joined := left.Concat(right)
	assert.Equal(t, 3, joined.Len())
	assert.Equal(t, 0, joined.Index("id"))
	assert.Equal(t, 2, joined.Index("v"))
	assert.Equal(t, -1, joined.Index("missing"))
	assert.Equal(t, "(id int, id int, v text)", joined.String())
}

func TestSchemaDigestStable(t *testing.T) {
	d1, err := NewSchema("a", ColumnInt).Digest()
	require.NoError(t, err)
	d2, err := NewSchema("a", ColumnInt).Digest()
	require.NoError(t, err)
	d3, err := NewSchema("a", ColumnText).Digest()
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.NotEqual(t, d1, d3)
}

func TestPageCodec(t *testing.T) {
	page := NewPage(Row{ir.IRInt(1), ir.IRBool(true)}, Row{ir.IRInt(2), ir.IRBool(false)})

	data, err := EncodePage(page)
	require.NoError(t, err)
	assert.Equal(t, `[[1,true],[2,false]]`, string(data))

	got, err := DecodePage(data)
	require.NoError(t, err)
	assert.Equal(t, page, got)
}

func TestDecodePageRejects(t *testing.T) {
	for _, input := range []string{`{}`, `[1,2]`, `[[1.5]]`, `[[null]]`} {
		t.Run(input, func(t *testing.T) {
			_, err := DecodePage([]byte(input))
			assert.Error(t, err)
		})
	}
}
