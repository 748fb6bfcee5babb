package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	toml "github.com/pelletier/go-toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/brickgen/brickgen/client"
	"github.com/brickgen/brickgen/internal/codegen/generator/jsongen"
	"github.com/brickgen/brickgen/internal/log"
	fixtures "github.com/brickgen/brickgen/internal/testing"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func fixtureInput(t *testing.T) Input {
	t.Helper()
	dir := t.TempDir()
	defs := filepath.Join(dir, "definitions")
	require.NoError(t, os.Mkdir(defs, 0o755))
	changelog := filepath.Join(dir, "changelog.txt")
	require.NoError(t, os.WriteFile(changelog, []byte(fixtures.Changelog), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(defs, "stream_test.yaml"), []byte(fixtures.StreamDevice), 0o644))
	return Input{Definitions: defs, Changelog: changelog, Prefix: "tf", Holder: "Test Holder"}
}

func TestSnakeCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Output", "output"},
		{"AcceptLimit", "accept_limit"},
		{"UIDBase", "uid_base"},
		{"RawFile", "raw_file"},
		{"ID", "id"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, snakeCase(tt.in))
		})
	}
}

func TestConfigInit(t *testing.T) {
	tests := []struct {
		format string
		decode func(t *testing.T, b []byte) map[string]any
	}{
		{"json", func(t *testing.T, b []byte) map[string]any {
			var m map[string]any
			require.NoError(t, json.Unmarshal(b, &m))
			return m
		}},
		{"yaml", func(t *testing.T, b []byte) map[string]any {
			var m map[string]any
			require.NoError(t, yaml.Unmarshal(b, &m))
			return m
		}},
		{"toml", func(t *testing.T, b []byte) map[string]any {
			tree, err := toml.LoadBytes(b)
			require.NoError(t, err)
			return tree.ToMap()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "conf", "simulate."+tt.format)
			c := &ConfigInit{Command: "simulate", Format: tt.format, Output: dest}
			require.NoError(t, c.Run())

			b, err := os.ReadFile(dest)
			require.NoError(t, err)
			m := tt.decode(t, b)
			assert.Equal(t, ":4223", m["addr"])
			assert.Equal(t, "./definitions", m["definitions"])
			assert.Equal(t, "tf", m["prefix"])
			assert.Contains(t, m, "uid_base")
			assert.Contains(t, m, "accept_limit")
			assert.NotContains(t, m, "Input")
		})
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "generate.json")
	require.NoError(t, os.WriteFile(dest, []byte("{}"), 0o644))

	c := &ConfigInit{Command: "generate", Format: "json", Output: dest}
	assert.ErrorContains(t, c.Run(), "--force")

	c.Force = true
	require.NoError(t, c.Run())
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "all", m["target"])
}

func TestGenerateThenCheck(t *testing.T) {
	in := fixtureInput(t)
	out := t.TempDir()

	gen := &Generate{Input: in, Output: out, Target: "all"}
	require.NoError(t, gen.Run(discard()))
	for _, target := range []string{"c", "go", "json"} {
		assert.FileExists(t, filepath.Join(out, target, "__released_files__"))
	}

	check := &Check{Input: in, Bindings: out}
	require.NoError(t, check.Run(discard()))

	require.NoError(t, os.WriteFile(filepath.Join(out, "json", "stream_test_bricklet.json"), []byte("{}"), 0o644))
	assert.ErrorContains(t, check.Run(discard()), "found 1 problem(s)")
}

func TestCheckWithoutBindings(t *testing.T) {
	check := &Check{Input: fixtureInput(t)}
	assert.NoError(t, check.Run(discard()))
}

func TestDump(t *testing.T) {
	in := fixtureInput(t)
	tests := []struct {
		format string
		verify func(t *testing.T, b []byte)
	}{
		{"json", func(t *testing.T, b []byte) {
			var out jsongen.Bindings
			require.NoError(t, json.Unmarshal(b, &out))
			require.Len(t, out.Devices, 1)
			assert.Equal(t, "Stream Test", out.Devices[0].Name)
		}},
		{"cbor", func(t *testing.T, b []byte) {
			var out jsongen.Bindings
			require.NoError(t, cbor.Unmarshal(b, &out))
			require.Len(t, out.Devices, 1)
			assert.Equal(t, 9100, out.Devices[0].Identifier)
		}},
		{"yaml", func(t *testing.T, b []byte) {
			var out map[string]any
			require.NoError(t, yaml.Unmarshal(b, &out))
			assert.Equal(t, "2.1.0", out["bindings_version"])
			devices := out["devices"].([]any)
			require.Len(t, devices, 1)
			assert.Equal(t, 9100, devices[0].(map[string]any)["device_identifier"])
		}},
		{"toml", func(t *testing.T, b []byte) {
			tree, err := toml.LoadBytes(b)
			require.NoError(t, err)
			assert.Equal(t, "2.1.0", tree.Get("bindings_version"))
			devices, ok := tree.Get("devices").([]*toml.Tree)
			require.True(t, ok)
			require.Len(t, devices, 1)
			assert.Equal(t, int64(9100), devices[0].Get("device_identifier"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "model."+tt.format)
			d := &Dump{Input: in, Format: tt.format, Output: dest}
			require.NoError(t, d.Run(discard()))
			b, err := os.ReadFile(dest)
			require.NoError(t, err)
			tt.verify(t, b)
		})
	}
}

func TestDumpUnknownDevice(t *testing.T) {
	d := &Dump{Input: fixtureInput(t), Format: "json", Device: "Nope", Output: filepath.Join(t.TempDir(), "x.json")}
	assert.ErrorContains(t, d.Run(discard()), `no device named "Nope"`)
}

func TestSimulateEmulators(t *testing.T) {
	in := fixtureInput(t)
	md, err := in.load(discard())
	require.NoError(t, err)

	s := &Simulate{Input: in, UIDBase: 4096}
	emus, err := s.Emulators(discard(), log.NewRaw(nil), md)
	require.NoError(t, err)
	require.Len(t, emus, 1)
	assert.Equal(t, uint32(4096), emus[0].UID())

	d := md.Devices[0]
	dev := client.NewDeviceFor(emus[0].UID(), emus[0], d)
	ctx := context.Background()

	values, _, err := dev.ReadStream(ctx, fixtures.Packet(t, d, "Get Values Low Level"), uint8(1))
	require.NoError(t, err)
	got := values.([]int16)
	require.Len(t, got, 75)
	assert.Equal(t, int16(74), got[74])

	frame, _, err := dev.ReadStream(ctx, fixtures.Packet(t, d, "Read Frame Low Level"))
	require.NoError(t, err)
	assert.Len(t, frame, 100)

	status, _, err := dev.ReadStream(ctx, fixtures.Packet(t, d, "Get Status Low Level"))
	require.NoError(t, err)
	flags := status.([]bool)
	require.Len(t, flags, 40)
	assert.True(t, flags[0])
	assert.False(t, flags[1])
}

func TestSimulateNoMatchingDevice(t *testing.T) {
	in := fixtureInput(t)
	md, err := in.load(discard())
	require.NoError(t, err)
	s := &Simulate{Input: in, Device: "Missing"}
	_, err = s.Emulators(discard(), log.NewRaw(nil), md)
	assert.ErrorContains(t, err, "no device to emulate")
}
