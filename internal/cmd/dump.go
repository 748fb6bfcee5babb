package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/brickgen/brickgen/internal/codegen/generator/jsongen"
)

type Dump struct {
	Input  `embed:""`
	Format string `help:"Output format" enum:"json,yaml,toml,cbor" default:"json"`
	Device string `help:"Only dump the device with this name, e.g. 'Stream Test'"`
	Output string `help:"Destination file, - for stdout" default:"-"`
}

// Run prints the validated model the way the json target exports it.
func (c *Dump) Run(logger *slog.Logger) error {
	md, err := c.load(logger)
	if err != nil {
		return err
	}
	devices := md.Devices
	if c.Device != "" {
		devices = nil
		for _, d := range md.Devices {
			if strings.EqualFold(d.Name().Space(), c.Device) || strings.EqualFold(d.FullName().Space(), c.Device) {
				devices = append(devices, d)
			}
		}
		if len(devices) == 0 {
			return fmt.Errorf("no device named %q", c.Device)
		}
	}

	data, err := encodeDump(jsongen.Export(md.Version(), md.RunID.String(), devices), c.Format)
	if err != nil {
		return err
	}
	if c.Output == "-" || c.Output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(c.Output, data, 0o644); err != nil {
		return err
	}
	logger.Info("Wrote model dump", "file", c.Output, "format", c.Format, "devices", len(devices))
	return nil
}

func encodeDump(b *jsongen.Bindings, format string) ([]byte, error) {
	switch format {
	case "json", "":
		var buf bytes.Buffer
		if err := jsongen.WriteJSON(&buf, b); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "cbor":
		return jsongen.MarshalCBOR(b)
	}

	// yaml and toml go through a generic tree so both share the json keys.
	tree, err := genericTree(b)
	if err != nil {
		return nil, err
	}
	switch format {
	case "yaml":
		return yaml.Marshal(tree)
	case "toml":
		t, err := toml.TreeFromMap(tree)
		if err != nil {
			return nil, err
		}
		return t.Marshal()
	}
	return nil, fmt.Errorf("unsupported format: %s", format)
}

func genericTree(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return normalize(m).(map[string]any), nil
}

// normalize turns json.Number into int64, uint64 or float64.
func normalize(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return u
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for k, item := range v {
			v[k] = normalize(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalize(item)
		}
		return v
	}
	return v
}
