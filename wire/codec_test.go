package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/brickgen/brickgen/model"
)

const codecDevice = `category: Bricklet
name: Codec
device_identifier: 9001
api_version: [2, 0, 0]
description: {en: Codec test device}
packets:
  - type: function
    name: Set Config
    elements:
      - {name: Mode, type: uint8, cardinality: 1, direction: in}
      - {name: Offset, type: int16, cardinality: 1, direction: in}
      - {name: Flags, type: bool, cardinality: 10, direction: in}
      - {name: Label, type: string, cardinality: 6, direction: in}
      - {name: Gain, type: float, cardinality: 1, direction: in}
      - {name: Sign, type: char, cardinality: 1, direction: in}
      - {name: Counters, type: uint32, cardinality: 2, direction: in}
    since_firmware: [1, 0, 0]
    doc: {type: bf, text: {en: Sets the config.}}
  - type: function
    name: Get Config
    elements:
      - {name: Mode, type: uint8, cardinality: 1, direction: out}
      - {name: Offset, type: int16, cardinality: 1, direction: out}
      - {name: Flags, type: bool, cardinality: 10, direction: out}
      - {name: Label, type: string, cardinality: 6, direction: out}
      - {name: Gain, type: float, cardinality: 1, direction: out}
      - {name: Sign, type: char, cardinality: 1, direction: out}
      - {name: Counters, type: uint32, cardinality: 2, direction: out}
    since_firmware: [1, 0, 0]
    doc: {type: bf, text: {en: Returns the config.}}
`

func codecPackets(t *testing.T) (set, get *model.Packet) {
	t.Helper()
	cl, err := model.ParseChangelog(strings.NewReader("2020-01-01: 2.0.0 (abc)\n"))
	require.NoError(t, err)
	r, err := model.NewRegistry(cl)
	require.NoError(t, err)
	var raw model.RawDevice
	require.NoError(t, yaml.Unmarshal([]byte(codecDevice), &raw))
	d, err := r.NewDevice(&raw)
	require.NoError(t, err)
	return d.Packets()[0], d.Packets()[1]
}

func TestLayoutOffsets(t *testing.T) {
	set, _ := codecPackets(t)
	l := LayoutOf(set, model.In)
	require.Len(t, l.Fields, 7)

	offsets := make([]int, len(l.Fields))
	sizes := make([]int, len(l.Fields))
	for i, f := range l.Fields {
		offsets[i] = f.Offset
		sizes[i] = f.Size
	}
	assert.Equal(t, []int{0, 1, 3, 5, 11, 15, 16}, offsets)
	assert.Equal(t, []int{1, 2, 2, 6, 4, 1, 8}, sizes)
	assert.Equal(t, 24, l.Size)
	assert.Equal(t, set.RequestSize(), l.Size)
	assert.Equal(t, 3, l.Index(l.Fields[3].Element))

	out := LayoutOf(set, model.Out)
	assert.Empty(t, out.Fields)
	assert.Equal(t, 0, out.Size)
	assert.Equal(t, -1, out.Index(l.Fields[0].Element))
}

func TestEncodeDecode(t *testing.T) {
	set, get := codecPackets(t)
	in := LayoutOf(set, model.In)
	flags := []bool{true, false, true, false, false, false, false, false, false, true}

	payload, err := in.Encode(3, -2, flags, "abc", 1.5, "x", []int{1, 0x01020304})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		3,
		0xfe, 0xff,
		0x05, 0x02,
		'a', 'b', 'c', 0, 0, 0,
		0x00, 0x00, 0xc0, 0x3f,
		'x',
		1, 0, 0, 0, 0x04, 0x03, 0x02, 0x01,
	}, payload)

	out := LayoutOf(get, model.Out)
	values, err := out.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, []any{
		uint8(3),
		int16(-2),
		flags,
		"abc",
		float32(1.5),
		'x',
		[]uint32{1, 0x01020304},
	}, values)
}

func TestEncodeErrors(t *testing.T) {
	set, _ := codecPackets(t)
	in := LayoutOf(set, model.In)
	flags := make([]bool, 10)
	tests := []struct {
		name   string
		values []any
		want   string
	}{
		{"too few values", []any{1}, "layout has 7 fields"},
		{"uint8 overflow", []any{256, 0, flags, "", 0, "a", []int{0, 0}}, "overflows uint8"},
		{"negative unsigned", []any{-1, 0, flags, "", 0, "a", []int{0, 0}}, "negative"},
		{"int16 overflow", []any{0, 40000, flags, "", 0, "a", []int{0, 0}}, "overflows int16"},
		{"short bool array", []any{0, 0, flags[:9], "", 0, "a", []int{0, 0}}, "expected 10 items"},
		{"long string", []any{0, 0, flags, "abcdefg", 0, "a", []int{0, 0}}, "exceeds 6"},
		{"wide char", []any{0, 0, flags, "", 0, "ab", []int{0, 0}}, "exactly one byte"},
		{"scalar for array", []any{0, 0, flags, "", 0, "a", 5}, "expected 2 items"},
		{"string for int", []any{"1", 0, flags, "", 0, "a", []int{0, 0}}, "expected uint8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := in.Encode(tt.values...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeRejectsWrongSize(t *testing.T) {
	_, get := codecPackets(t)
	_, err := LayoutOf(get, model.Out).Decode(make([]byte, 3))
	assert.Error(t, err)
}
