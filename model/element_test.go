package model

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func buildElement(t *testing.T, doc string, groups ...*ConstantGroup) (*Element, error) {
	t.Helper()
	var raw RawElement
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	b := &elementBuilder{sc: scope{device: "Test", packet: "Get X"}, groups: map[string]*ConstantGroup{}}
	for _, g := range groups {
		b.groups[g.name.Lower()] = g
	}
	return b.build(raw)
}

func TestElementSize(t *testing.T) {
	tests := []struct {
		doc  string
		want int
	}{
		{"{name: A, type: bool, cardinality: 1, direction: in}", 1},
		{"{name: A, type: bool, cardinality: 8, direction: in}", 1},
		{"{name: A, type: bool, cardinality: 9, direction: in}", 2},
		{"{name: A, type: bool, cardinality: 64, direction: in}", 8},
		{"{name: A, type: uint8, cardinality: 5, direction: in}", 5},
		{"{name: A, type: int16, cardinality: 3, direction: out}", 6},
		{"{name: A, type: float, cardinality: 4, direction: out}", 16},
		{"{name: A, type: uint64, cardinality: 1, direction: out}", 8},
		{"{name: A, type: string, cardinality: 20, direction: out}", 20},
		{"{name: A, type: char, cardinality: 60, direction: in}", 60},
	}
	for _, tt := range tests {
		t.Run(tt.doc, func(t *testing.T) {
			e, err := buildElement(t, tt.doc)
			require.NoError(t, err)
			got, err := e.Size()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestElementValidation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"bad type", "{name: A, type: int24, cardinality: 1, direction: in}", "invalid type"},
		{"zero cardinality", "{name: A, type: uint8, cardinality: 0, direction: in}", "invalid cardinality"},
		{"negative cardinality", "{name: A, type: uint8, cardinality: -4, direction: in}", "invalid cardinality"},
		{"bad direction", "{name: A, type: uint8, cardinality: 1, direction: both}", "invalid direction"},
		{"single char string", "{name: A, type: string, cardinality: 1, direction: in}", "string needs a cardinality"},
		{"scale on bool", "{name: A, type: bool, cardinality: 1, direction: in, scale: [1, 10]}", "scale is not allowed"},
		{"scale on float", "{name: A, type: float, cardinality: 1, direction: in, scale: [1, 10]}", "scale is not allowed"},
		{"unit on string", "{name: A, type: string, cardinality: 4, direction: in, unit: Volt}", "unit is not allowed"},
		{"unknown unit", "{name: A, type: uint16, cardinality: 1, direction: in, unit: Furlong}", "unknown unit"},
		{"range on char", "{name: A, type: char, cardinality: 1, direction: in, range: [0, 10]}", "range is not allowed"},
		{"range beyond type", "{name: A, type: uint8, cardinality: 1, direction: in, range: [0, 256]}", "exceeds type"},
		{"inverted range", "{name: A, type: int8, cardinality: 1, direction: in, range: [5, -5]}", "min above max"},
		{"type range on float", "{name: A, type: float, cardinality: 1, direction: in, range: type}", "needs an integer type"},
		{"constants range without group", "{name: A, type: uint8, cardinality: 1, direction: in, range: constants}", "needs a constant_group"},
		{"default out of range", "{name: A, type: uint8, cardinality: 1, direction: in, range: [0, 100], default: 101}", "outside the declared range"},
		{"default out of type", "{name: A, type: int8, cardinality: 1, direction: in, default: 128}", "out of range for type int8"},
		{"default not integral", "{name: A, type: int8, cardinality: 1, direction: in, default: 1.5}", "not an integer"},
		{"default list too short", "{name: A, type: uint8, cardinality: 3, direction: in, default: [1, 2]}", "default has 2 items"},
		{"bool default", "{name: A, type: bool, cardinality: 1, direction: in, default: 1}", "invalid bool value"},
		{"unknown group", "{name: A, type: uint8, cardinality: 1, direction: in, constant_group: Mode}", "unknown constant group"},
		{"struct field count", "{name: A, type: int16, cardinality: 3, direction: out, fields: [{field_name: X}, {field_name: Y}]}", "struct has 2 fields"},
		{"struct without field name", "{name: A, type: int16, cardinality: 2, direction: out, fields: [{field_name: X}, {unit: Volt}]}", "needs a field_name"},
		{"struct with element meta", "{name: A, type: int16, cardinality: 2, direction: out, unit: Volt, fields: [{field_name: X}, {field_name: Y}]}", "cannot carry element-level metadata"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildElement(t, tt.doc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestElementMetadata(t *testing.T) {
	e, err := buildElement(t, `
name: Acceleration
type: int16
cardinality: 3
direction: out
fields:
  - {field_name: X, scale: [1, 10000], unit: Standard Gravity, range: [-20000, 20000]}
  - {field_name: Y, scale: [1, 10000], unit: Standard Gravity}
  - {field_name: Z, scale: [1, 100], unit: Degree Celsius, default: -5}
`)
	require.NoError(t, err)
	assert.True(t, e.IsStruct())
	assert.Equal(t, "X", e.Meta(0).Name.Space())
	assert.Equal(t, Scale{Num: 1, Den: 10000}, e.Scale(1))
	assert.Equal(t, "°C", e.Unit(2).Symbol)
	assert.True(t, e.Range(0).Contains(big.NewRat(-20000, 1)))
	assert.False(t, e.Range(0).Contains(big.NewRat(20001, 1)))
	assert.Nil(t, e.Range(1))
	assert.Equal(t, "-5", e.Default(2).(*big.Rat).RatString())
	assert.Nil(t, e.Meta(3))

	lo, hi, err := e.TypeRange()
	require.NoError(t, err)
	assert.Equal(t, "-32768", lo.RatString())
	assert.Equal(t, "32767", hi.RatString())
}

func TestElementTypeRange(t *testing.T) {
	tests := []struct {
		typ    Type
		lo, hi string
		err    bool
	}{
		{Uint8, "0", "255", false},
		{Int64, "-9223372036854775808", "9223372036854775807", false},
		{Uint64, "0", "18446744073709551615", false},
		{Bool, "0", "1", false},
		{Char, "0", "255", false},
		{Float, "", "", true},
		{String, "", "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			lo, hi, err := tt.typ.Range()
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lo, lo.RatString())
			assert.Equal(t, tt.hi, hi.RatString())
		})
	}
}

func TestElementDefaultsAndGroups(t *testing.T) {
	g := &ConstantGroup{name: NewName("Mode"), typ: Uint8}
	e, err := buildElement(t, "{name: Mode, type: uint8, cardinality: 1, direction: in, constant_group: Mode, range: constants, default: 0x02}", g)
	require.NoError(t, err)
	assert.Same(t, g, e.ConstantGroup(0))
	assert.Equal(t, RangeConstants, e.Range(0).Kind)
	assert.Equal(t, "2", e.Default(0).(*big.Rat).RatString())
	assert.Equal(t, []*Element{e}, g.Users())

	e, err = buildElement(t, "{name: Enabled, type: bool, cardinality: 2, direction: in, default: [true, false]}")
	require.NoError(t, err)
	assert.Equal(t, []any{true, false}, e.Default(0))

	e, err = buildElement(t, "{name: Big, type: uint64, cardinality: 1, direction: in, default: 18446744073709551615}")
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", e.Default(0).(*big.Rat).RatString())
}
