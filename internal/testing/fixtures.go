// Package testing holds fixtures shared by package tests.
package testing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/brickgen/brickgen/model"
)

// Changelog is a minimal valid bindings changelog.
const Changelog = `2019-01-01: 2.0.0 (a1b2c3)
Initial release.
2019-02-01: 2.0.1 (d4e5f6)
2019-03-01: 2.1.0 (<unknown>)
`

// StreamDevice declares one packet per stream flavor plus plain getters,
// setters and callbacks.
const StreamDevice = `category: Bricklet
name: Stream Test
display_name: Stream Test
device_identifier: 9100
manufacturer: Brickgen
author: Brickgen Authors
api_version: [2, 0, 1]
released: true
documented: true
description: {en: Exercises every stream flavor, de: Testet jede Stream-Variante}
constant_groups:
  - name: Mode
    type: uint8
    constants:
      - {name: Off, value: 0}
      - {name: Fast, value: 1}
      - {name: Slow, value: 2}
packets:
  - type: function
    name: Write Message Low Level
    elements:
      - {name: Message Length, type: uint16, cardinality: 1, direction: in}
      - {name: Message Chunk Offset, type: uint16, cardinality: 1, direction: in}
      - {name: Message Chunk Data, type: char, cardinality: 60, direction: in}
      - {name: Message Chunk Written, type: uint8, cardinality: 1, direction: out}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: Message, short_write: true}}
    doc: {type: bf, text: {en: Writes a message and returns how much was accepted.}}
  - type: function
    name: Set Pattern Low Level
    elements:
      - {name: Pattern Length, type: uint16, cardinality: 1, direction: in}
      - {name: Pattern Chunk Offset, type: uint16, cardinality: 1, direction: in}
      - {name: Pattern Chunk Data, type: uint8, cardinality: 30, direction: in}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: Pattern}}
    doc: {type: bf, text: {en: Sets the LED pattern.}}
  - type: function
    name: Set Samples Low Level
    elements:
      - {name: Samples Chunk Offset, type: uint16, cardinality: 1, direction: in}
      - {name: Samples Chunk Data, type: uint16, cardinality: 30, direction: in}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: Samples, fixed_length: 100}}
    doc: {type: af, text: {en: Uploads exactly 100 samples.}}
  - type: function
    name: Set Text Low Level
    elements:
      - {name: Text Length, type: uint8, cardinality: 1, direction: in}
      - {name: Text Data, type: char, cardinality: 48, direction: in}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: Text, single_chunk: true}}
    doc: {type: bf, text: {en: Sets a short text.}}
  - type: function
    name: Set Label Low Level
    elements:
      - {name: Label Length, type: uint8, cardinality: 1, direction: in}
      - {name: Label Data, type: char, cardinality: 32, direction: in}
      - {name: Label Written, type: uint8, cardinality: 1, direction: out}
    since_firmware: [1, 0, 0]
    high_level: {stream_in: {name: Label, single_chunk: true, short_write: true}}
    doc: {type: af, text: {en: Sets a label and returns how much was accepted.}}
  - type: function
    name: Read Frame Low Level
    elements:
      - {name: Frame Chunk Offset, type: uint16, cardinality: 1, direction: out}
      - {name: Frame Chunk Data, type: uint8, cardinality: 60, direction: out}
    since_firmware: [1, 0, 0]
    high_level: {stream_out: {name: Frame, fixed_length: 100}}
    doc: {type: bf, text: {en: Reads one frame of 100 bytes.}}
  - type: function
    name: Get Values Low Level
    elements:
      - {name: Channel, type: uint8, cardinality: 1, direction: in, range: [0, 3]}
      - {name: Values Length, type: uint16, cardinality: 1, direction: out}
      - {name: Values Chunk Offset, type: uint16, cardinality: 1, direction: out}
      - {name: Values Chunk Data, type: int16, cardinality: 30, direction: out, scale: [1, 100], unit: Volt}
    since_firmware: [1, 0, 0]
    high_level: {stream_out: {name: Values}}
    doc: {type: bf, text: {en: Returns the recorded values of a channel.}}
  - type: function
    name: Get Status Low Level
    elements:
      - {name: Status Length, type: uint8, cardinality: 1, direction: out}
      - {name: Status Data, type: bool, cardinality: 40, direction: out}
    since_firmware: [1, 0, 0]
    high_level: {stream_out: {name: Status, single_chunk: true}}
    doc: {type: af, text: {en: Returns the status flags.}}
  - type: function
    name: Get Temperature
    elements:
      - {name: Temperature, type: int32, cardinality: 1, direction: out, scale: [1, 100], unit: Degree Celsius}
    since_firmware: [1, 0, 0]
    doc: {type: bf, text: {en: Returns the temperature., de: Gibt die Temperatur zurück.}}
  - type: function
    name: Set Mode
    elements:
      - {name: Mode, type: uint8, cardinality: 1, direction: in, constant_group: Mode, range: constants, default: 1}
    since_firmware: [2, 0, 1]
    doc: {type: bf, text: {en: Sets the mode.}}
  - type: function
    name: Set Temperature Callback Configuration
    elements:
      - {name: Period, type: uint32, cardinality: 1, direction: in, scale: [1, 1000], unit: Second}
    since_firmware: [1, 0, 0]
    doc: {type: ccf, text: {en: Configures the temperature callback.}}
  - type: callback
    name: Temperature
    elements:
      - {name: Temperature, type: int32, cardinality: 1, direction: out, scale: [1, 100], unit: Degree Celsius}
    since_firmware: [1, 0, 0]
    doc: {type: c, text: {en: Triggered periodically.}}
  - type: callback
    name: Data Low Level
    elements:
      - {name: Data Length, type: uint16, cardinality: 1, direction: out}
      - {name: Data Chunk Offset, type: uint16, cardinality: 1, direction: out}
      - {name: Data Chunk Data, type: uint8, cardinality: 59, direction: out}
    since_firmware: [1, 0, 0]
    high_level: {stream_out: {name: Data}}
    doc: {type: llc, text: {en: Delivers recorded data.}}
  - type: function
    name: Get Identity
    function_id: -1
    since_firmware: [1, 0, 0]
    doc: {type: bm, text: {en: Returns the identity of the device.}}
`

// Registry returns a registry backed by Changelog.
func Registry(t testing.TB) *model.Registry {
	t.Helper()
	cl, err := model.ParseChangelog(strings.NewReader(Changelog))
	require.NoError(t, err)
	r, err := model.NewRegistry(cl)
	require.NoError(t, err)
	return r
}

// Raw parses a YAML device definition.
func Raw(t testing.TB, doc string) *model.RawDevice {
	t.Helper()
	var raw model.RawDevice
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	return &raw
}

// BuildDevice builds doc in a fresh registry.
func BuildDevice(t testing.TB, doc string) *model.Device {
	t.Helper()
	d, err := Registry(t).NewDevice(Raw(t, doc))
	require.NoError(t, err)
	return d
}

// Packet finds a packet of d by its space separated name.
func Packet(t testing.TB, d *model.Device, name string) *model.Packet {
	t.Helper()
	for _, p := range d.Packets() {
		if p.Name().Space() == name {
			return p
		}
	}
	require.Failf(t, "no such packet", "%s has no packet %q", d.Name().Space(), name)
	return nil
}
