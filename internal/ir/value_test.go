package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, TypeInt, TypeName(IRInt(1)))
	assert.Equal(t, TypeBool, TypeName(IRBool(false)))
	assert.Equal(t, TypeText, TypeName(IRString("")))
	assert.Equal(t, TypeNull, TypeName(IRNull{}))
	assert.Equal(t, TypeArray, TypeName(IRArray{}))
	assert.Equal(t, TypeObject, TypeName(IRObject{}))
	assert.Equal(t, "", TypeName(nil))

	assert.True(t, IsScalar(IRInt(0)))
	assert.False(t, IsScalar(IRArray{}))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b IRValue
		want int
	}{
		{"int less", IRInt(3), IRInt(7), -1},
		{"int equal", IRInt(7), IRInt(7), 0},
		{"int greater", IRInt(9), IRInt(-1), 1},
		{"text", IRString("apple"), IRString("banana"), -1},
		{"bool false<true", IRBool(false), IRBool(true), -1},
		{"bool equal", IRBool(true), IRBool(true), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareMismatchedTypes(t *testing.T) {
	_, err := Compare(IRInt(1), IRString("1"))
	assert.Error(t, err)

	_, err = Compare(IRArray{}, IRArray{})
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(IRArray{IRInt(1), IRString("a")}, IRArray{IRInt(1), IRString("a")}))
	assert.False(t, Equal(IRArray{IRInt(1)}, IRArray{IRInt(2)}))
	assert.False(t, Equal(IRInt(1), IRString("1")))
	assert.True(t, Equal(IRObject{"a": IRBool(true)}, IRObject{"a": IRBool(true)}))
	assert.False(t, Equal(IRObject{"a": IRBool(true)}, IRObject{"b": IRBool(true)}))
}

func TestSortedKeysUTF16Order(t *testing.T) {
	obj := IRObject{"b": IRInt(1), "a": IRInt(2), "\uE000": IRInt(3), "\U00010000": IRInt(4)}

	assert.Equal(t, []string{"a", "b", "\U00010000", "\uE000"}, obj.SortedKeys())
}

func TestUnmarshalIRValue(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`[[3,"x",true],[7,"y",false]]`))
	require.NoError(t, err)

	assert.Equal(t, IRArray{
		IRArray{IRInt(3), IRString("x"), IRBool(true)},
		IRArray{IRInt(7), IRString("y"), IRBool(false)},
	}, v)
}

func TestUnmarshalIRValueRejects(t *testing.T) {
	for _, input := range []string{`1.5`, `null`, `[1, 2e3]`, `{"a": null}`} {
		t.Run(input, func(t *testing.T) {
			_, err := UnmarshalIRValue([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestJSONRoundTripAllowsNull(t *testing.T) {
	var arr IRArray
	require.NoError(t, json.Unmarshal([]byte(`[1,null,"a"]`), &arr))
	assert.Equal(t, IRArray{IRInt(1), IRNull{}, IRString("a")}, arr)

	out, err := json.Marshal(arr)
	require.NoError(t, err)
	assert.JSONEq(t, `[1,null,"a"]`, string(out))
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{"n": 5, "s": "x", "b": true, "l": []any{int64(1)}})
	require.NoError(t, err)
	assert.Equal(t, IRObject{
		"n": IRInt(5),
		"s": IRString("x"),
		"b": IRBool(true),
		"l": IRArray{IRInt(1)},
	}, v)

	_, err = FromGo(3.14)
	assert.Error(t, err)
	_, err = FromGo(nil)
	assert.Error(t, err)
}
