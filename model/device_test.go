package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testHeader = `category: Bricklet
name: Test
device_identifier: 9000
api_version: [2, 0, %PATCH%]
description: {en: Test device}
`

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	cl, err := ParseChangelog(strings.NewReader("2020-01-01: 2.0.0 (abc)\n"))
	require.NoError(t, err)
	r, err := NewRegistry(cl)
	require.NoError(t, err)
	return r
}

func parseRaw(t *testing.T, doc string) *RawDevice {
	t.Helper()
	var raw RawDevice
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	return &raw
}

// buildTest builds a device from a packets (and optional constant_groups)
// YAML block under the shared header.
func buildTest(t *testing.T, body string) (*Device, error) {
	t.Helper()
	return buildTestPatch(t, "0", body)
}

func buildTestPatch(t *testing.T, patch, body string) (*Device, error) {
	t.Helper()
	doc := strings.Replace(testHeader, "%PATCH%", patch, 1) + body
	return testRegistry(t).NewDevice(parseRaw(t, doc))
}

const writeLowLevel = `
  - type: function
    name: Write Low Level
    elements:
      - {name: Message Length, type: uint16, cardinality: 1, direction: in}
      - {name: Message Chunk Offset, type: uint16, cardinality: 1, direction: in}
      - {name: Message Chunk Data, type: char, cardinality: 60, direction: in}
      - {name: Message Chunk Written, type: uint8, cardinality: 1, direction: out}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: Message, short_write: true}}
    doc: {type: bf, text: {en: Writes a message.}}
`

const readLowLevel = `
  - type: function
    name: Read Frame Low Level
    elements:
      - {name: Frame Chunk Offset, type: uint16, cardinality: 1, direction: out}
      - {name: Frame Chunk Data, type: uint8, cardinality: 60, direction: out}
    since_firmware: [1, 0, 0]
    high_level: {stream_out: {name: Frame, fixed_length: 100}}
    doc: {type: af, text: {en: Reads a frame.}}
`

const simpleGetter = `
  - type: function
    name: Get Value
    elements:
      - {name: Value, type: int32, cardinality: 1, direction: out, scale: [1, 100], unit: Degree Celsius}
    since_firmware: [1, 0, 0]
    doc: {type: bf, text: {en: Returns the value., de: Gibt den Wert zurück.}}
`

func TestDeviceBuildsStreams(t *testing.T) {
	d, err := buildTest(t, "packets:"+writeLowLevel+readLowLevel+simpleGetter)
	require.NoError(t, err)

	require.Len(t, d.Packets(), 3)
	assert.Equal(t, []int{1, 2, 3}, []int{d.Packets()[0].FunctionID(), d.Packets()[1].FunctionID(), d.Packets()[2].FunctionID()})

	write := d.Packets()[0]
	s := write.Stream()
	require.NotNil(t, s)
	assert.Equal(t, StreamIn, s.Kind())
	assert.Equal(t, "Write", write.HighLevelName().Space())
	assert.Equal(t, 60, s.ChunkCardinality())
	assert.Equal(t, 65535, s.MaxLength())
	assert.True(t, s.ShortWrite())
	assert.Equal(t, -65535, s.Data().Cardinality())
	assert.Equal(t, LevelHigh, s.Data().Level())
	assert.Equal(t, Uint16, s.Written().Type())
	assert.Equal(t, RoleStreamLength, s.Length().Role())
	assert.Equal(t, LevelLow, s.ChunkData().Level())
	assert.Equal(t, 64, write.RequestSize())
	assert.Equal(t, 1, write.ResponseSize())
	assert.Equal(t, ResponseAlwaysTrue, write.ResponseExpected())

	hl := write.Elements(Filter{HighLevel: true})
	require.Len(t, hl, 2)
	assert.Same(t, s.Data(), hl[0])
	assert.Same(t, s.Written(), hl[1])
	assert.Len(t, write.Elements(Filter{Direction: In}), 3)
	assert.Len(t, write.Elements(Filter{Roles: []Role{RoleStreamChunkOffset}}), 1)

	read := d.Packets()[1]
	rs := read.Stream()
	require.NotNil(t, rs)
	assert.Equal(t, 100, rs.Data().Cardinality())
	sentinel, ok := rs.SentinelOffset()
	assert.True(t, ok)
	assert.Equal(t, uint64(65535), sentinel)
	assert.Equal(t, 16, rs.OffsetBits())
	_, err = rs.Data().Size()
	assert.Error(t, err, "high-level elements have no wire size")

	fn := d.ConstantGroup("Function")
	require.NotNil(t, fn)
	assert.True(t, fn.Virtual())
	assert.Len(t, fn.Constants(), 3)
	assert.Nil(t, d.ConstantGroup("Callback"))
}

func TestSingleChunkStream(t *testing.T) {
	d, err := buildTest(t, `packets:
  - type: function
    name: Set Text Low Level
    elements:
      - {name: Text Length, type: uint8, cardinality: 1, direction: in}
      - {name: Text Data, type: char, cardinality: 48, direction: in}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: Text, single_chunk: true}}
    doc: {type: bf, text: {en: Sets text.}}
`)
	require.NoError(t, err)
	s := d.Packets()[0].Stream()
	assert.True(t, s.SingleChunk())
	assert.Nil(t, s.ChunkOffset())
	assert.Equal(t, -48, s.Data().Cardinality())
	assert.Equal(t, 48, s.MaxLength())
	assert.Equal(t, ResponseTrue, d.Packets()[0].ResponseExpected())
}

func TestResponseExpectedTable(t *testing.T) {
	d, err := buildTest(t, `packets:
  - type: function
    name: Set Mode
    elements:
      - {name: Mode, type: uint8, cardinality: 1, direction: in}
    since_firmware: [1, 0, 0]
    doc: {type: bf, text: {en: Sets.}}
  - type: function
    name: Set Speed
    elements:
      - {name: Speed, type: uint8, cardinality: 1, direction: in}
    since_firmware: [1, 0, 0]
    response_expected: true
    doc: {type: bf, text: {en: Sets.}}
  - type: function
    name: Set Value Callback Configuration
    elements:
      - {name: Period, type: uint32, cardinality: 1, direction: in}
    since_firmware: [1, 0, 0]
    doc: {type: ccf, text: {en: Configures.}}
  - type: callback
    name: Value
    elements:
      - {name: Value, type: int32, cardinality: 1, direction: out}
    since_firmware: [1, 0, 0]
    doc: {type: c, text: {en: Triggered.}}
`+strings.TrimPrefix(simpleGetter, "\n"))
	require.NoError(t, err)

	want := map[string]ResponseExpected{
		"Set Mode":                         ResponseFalse,
		"Set Speed":                        ResponseTrue,
		"Set Value Callback Configuration": ResponseTrue,
		"Value":                            ResponseAlwaysFalse,
		"Get Value":                        ResponseAlwaysTrue,
	}
	for _, p := range d.Packets() {
		assert.Equal(t, want[p.Name().Space()], p.ResponseExpected(), p.Name().Space())
	}
	cb := d.ConstantGroup("Callback")
	require.NotNil(t, cb)
	assert.Equal(t, "Value", cb.Constants()[0].Name.Space())
}

func TestFunctionIDs(t *testing.T) {
	d, err := buildTest(t, `packets:
  - type: function
    name: Get API Version
    function_id: -1
    elements:
      - {name: API Version, type: uint8, cardinality: 3, direction: out}
    since_firmware: [1, 0, 0]
    doc: {type: am, text: {en: Returns the API version.}}
  - type: function
    name: Set A
    elements: [{name: A, type: uint8, cardinality: 1, direction: in}]
    since_firmware: [1, 0, 0]
    doc: {type: bf, text: {en: A.}}
  - type: function
    name: Get Identity
    function_id: 255
    elements: [{name: UID, type: string, cardinality: 8, direction: out}]
    since_firmware: [1, 0, 0]
    doc: {type: af, text: {en: Identity.}}
  - type: function
    name: Set B
    elements: [{name: B, type: uint8, cardinality: 1, direction: in}]
    since_firmware: [1, 0, 0]
    doc: {type: bf, text: {en: B.}}
`)
	require.NoError(t, err)
	var got []string
	for _, p := range d.Packets() {
		got = append(got, p.Name().Space())
	}
	assert.Equal(t, []string{"Set A", "Set B", "Get Identity", "Get API Version"}, got)
	assert.Equal(t, 1, d.Packets()[0].FunctionID())
	assert.Equal(t, 2, d.Packets()[1].FunctionID())
	assert.Equal(t, 255, d.Packets()[2].FunctionID())
	assert.Equal(t, -1, d.Packets()[3].FunctionID())
	assert.True(t, d.Packets()[3].DocOnly())
	assert.Nil(t, d.Packet(-1))
	assert.Same(t, d.Packets()[2], d.Packet(255))
}

func TestDeviceValidation(t *testing.T) {
	setter := func(name string, extra string) string {
		return `
  - type: function
    name: ` + name + `
    elements: [{name: X, type: uint8, cardinality: 1, direction: in}]
    since_firmware: [1, 0, 0]
    doc: {type: bf, text: {en: Doc.}}` + extra
	}

	tests := []struct {
		name    string
		patch   string
		body    string
		wantErr string
	}{
		{
			name:    "duplicate function id",
			body:    "packets:" + setter("Set A", "\n    function_id: 7") + setter("Set B", "\n    function_id: 7"),
			wantErr: "function id 7 is already used",
		},
		{
			name:    "explicit id collides with auto id",
			body:    "packets:" + setter("Set A", "") + setter("Set B", "\n    function_id: 1"),
			wantErr: "function id 1 is already used",
		},
		{
			name:    "identity id on another packet",
			body:    "packets:" + setter("Set A", "\n    function_id: 255"),
			wantErr: "function id 255 is reserved for Get Identity",
		},
		{
			name:    "same name different case",
			body:    "packets:" + setter("Set Mode", "") + setter("set mode", ""),
			wantErr: "collides",
		},
		{
			name:    "reserved method name",
			body:    "packets:" + setter("Set Response Expected", ""),
			wantErr: "reserved",
		},
		{
			name: "callback word in callback",
			body: `packets:
  - type: callback
    name: Value Callback
    elements: [{name: V, type: uint8, cardinality: 1, direction: out}]
    since_firmware: [1, 0, 0]
    doc: {type: c, text: {en: Doc.}}
`,
			wantErr: "must not contain the word 'Callback'",
		},
		{
			name: "in element in callback",
			body: `packets:
  - type: callback
    name: Value
    elements: [{name: V, type: uint8, cardinality: 1, direction: in}]
    since_firmware: [1, 0, 0]
    doc: {type: c, text: {en: Doc.}}
`,
			wantErr: "callbacks cannot have in elements",
		},
		{
			name: "in after out",
			body: `packets:
  - type: function
    name: Get X
    elements:
      - {name: A, type: uint8, cardinality: 1, direction: out}
      - {name: B, type: uint8, cardinality: 1, direction: in}
    since_firmware: [1, 0, 0]
    doc: {type: bf, text: {en: Doc.}}
`,
			wantErr: "in element follows an out element",
		},
		{
			name: "request over budget",
			body: `packets:
  - type: function
    name: Set Big
    elements: [{name: Data, type: uint8, cardinality: 65, direction: in}]
    since_firmware: [1, 0, 0]
    doc: {type: bf, text: {en: Doc.}}
`,
			wantErr: "request payload is 65 bytes",
		},
		{
			name: "response over budget",
			body: `packets:
  - type: function
    name: Get Big
    elements: [{name: Data, type: uint32, cardinality: 17, direction: out}]
    since_firmware: [1, 0, 0]
    doc: {type: bf, text: {en: Doc.}}
`,
			wantErr: "response payload is 68 bytes",
		},
		{
			name:    "api patch mismatch",
			patch:   "1",
			body:    "packets:" + setter("Set A", "") + setter("Set C", ""),
			wantErr: "api_version patch is 1, expected 0",
		},
		{
			name: "unused constant group",
			body: "packets:" + setter("Set A", "") + `
constant_groups:
  - name: Mode
    type: uint8
    constants: [{name: Off, value: 0}]
`,
			wantErr: "not used by any element",
		},
		{
			name: "constant group type mismatch",
			body: `packets:
  - type: function
    name: Set Mode
    elements: [{name: Mode, type: uint16, cardinality: 1, direction: in, constant_group: Mode}]
    since_firmware: [1, 0, 0]
    doc: {type: bf, text: {en: Doc.}}
constant_groups:
  - name: Mode
    type: uint8
    constants: [{name: Off, value: 0}]
`,
			wantErr: "constant group \"Mode\" has type uint8",
		},
		{
			name: "both streams",
			body: `packets:
  - type: function
    name: X Low Level
    elements:
      - {name: D Length, type: uint16, cardinality: 1, direction: in}
      - {name: D Chunk Offset, type: uint16, cardinality: 1, direction: in}
      - {name: D Chunk Data, type: uint8, cardinality: 10, direction: in}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: D}, stream_out: {name: D}}
    doc: {type: bf, text: {en: Doc.}}
`,
			wantErr: "both stream_in and stream_out",
		},
		{
			name: "stream without low level suffix",
			body: `packets:
  - type: function
    name: Write
    elements:
      - {name: D Length, type: uint16, cardinality: 1, direction: in}
      - {name: D Chunk Offset, type: uint16, cardinality: 1, direction: in}
      - {name: D Chunk Data, type: uint8, cardinality: 10, direction: in}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: D}}
    doc: {type: bf, text: {en: Doc.}}
`,
			wantErr: "Low Level",
		},
		{
			name: "stream missing chunk offset",
			body: `packets:
  - type: function
    name: Write Low Level
    elements:
      - {name: D Length, type: uint16, cardinality: 1, direction: in}
      - {name: D Chunk Data, type: uint8, cardinality: 10, direction: in}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: D}}
    doc: {type: bf, text: {en: Doc.}}
`,
			wantErr: "needs a chunk offset element",
		},
		{
			name: "stream length and offset types differ",
			body: `packets:
  - type: function
    name: Write Low Level
    elements:
      - {name: D Length, type: uint16, cardinality: 1, direction: in}
      - {name: D Chunk Offset, type: uint32, cardinality: 1, direction: in}
      - {name: D Chunk Data, type: uint8, cardinality: 10, direction: in}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: D}}
    doc: {type: bf, text: {en: Doc.}}
`,
			wantErr: "does not match chunk offset type",
		},
		{
			name: "64 bit stream length",
			body: `packets:
  - type: function
    name: Write Low Level
    elements:
      - {name: D Length, type: uint64, cardinality: 1, direction: in}
      - {name: D Chunk Offset, type: uint64, cardinality: 1, direction: in}
      - {name: D Chunk Data, type: uint8, cardinality: 10, direction: in}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: D}}
    doc: {type: bf, text: {en: Doc.}}
`,
			wantErr: "must be at most 32 bits wide",
		},
		{
			name: "fixed and single chunk",
			body: `packets:
  - type: function
    name: Write Low Level
    elements:
      - {name: D Length, type: uint8, cardinality: 1, direction: in}
      - {name: D Data, type: uint8, cardinality: 10, direction: in}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: D, fixed_length: 5, single_chunk: true}}
    doc: {type: bf, text: {en: Doc.}}
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "stream_in refuses response_expected false",
			body: `packets:
  - type: function
    name: Write Low Level
    elements:
      - {name: D Length, type: uint16, cardinality: 1, direction: in}
      - {name: D Chunk Offset, type: uint16, cardinality: 1, direction: in}
      - {name: D Chunk Data, type: uint8, cardinality: 10, direction: in}
    since_firmware: [1, 0, 0]
    response_expected: false
    high_level: {stream_in: {name: D}}
    doc: {type: bf, text: {en: Doc.}}
`,
			wantErr: "response_expected cannot be false",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch := tt.patch
			if patch == "" {
				patch = "0"
			}
			_, err := buildTestPatch(t, patch, tt.body)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			var ge *GeneratorError
			assert.True(t, errors.As(err, &ge), "errors are GeneratorError")
			assert.Equal(t, "Test", ge.Device)
		})
	}
}

func TestAPIVersionCountsFirmwareVersions(t *testing.T) {
	body := `packets:
  - type: function
    name: Set A
    elements: [{name: X, type: uint8, cardinality: 1, direction: in}]
    since_firmware: [2, 0, 0]
    doc: {type: bf, text: {en: Doc.}}
  - type: function
    name: Set B
    elements: [{name: X, type: uint8, cardinality: 1, direction: in}]
    since_firmware: [2, 0, 1]
    doc: {type: bf, text: {en: Doc.}}
  - type: function
    name: Set C
    elements: [{name: X, type: uint8, cardinality: 1, direction: in}]
    since_firmware: [2, 0, 1]
    doc: {type: bf, text: {en: Doc.}}
  - type: function
    name: Set D
    elements: [{name: X, type: uint8, cardinality: 1, direction: in}]
    since_firmware: [2, 1, 4]
    doc: {type: bf, text: {en: Doc.}}
`
	_, err := buildTestPatch(t, "2", body)
	require.NoError(t, err)

	_, err = buildTestPatch(t, "3", body)
	require.Error(t, err)

	_, err = buildTestPatch(t, "3", body+"api_version_extra: 1\n")
	require.NoError(t, err)
}

func TestRegistryRejectsDuplicateIdentifier(t *testing.T) {
	r := testRegistry(t)
	doc := strings.Replace(testHeader, "%PATCH%", "0", 1) + "packets:" + simpleGetter

	_, err := r.NewDevice(parseRaw(t, doc))
	require.NoError(t, err)
	_, err = r.NewDevice(parseRaw(t, strings.Replace(doc, "name: Test", "name: Other", 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device_identifier 9000 is already used")
	assert.Len(t, r.Devices(), 1)
}

func TestNewRegistryNeedsChangelog(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.Error(t, err)
}
