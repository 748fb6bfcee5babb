// Package loader reads device definitions and changelogs from disk and
// builds the model of one generator run.
package loader

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/brickgen/brickgen/model"
)

//go:embed schema/device-v1.json
var deviceSchemaJSON string

// Extensions lists the definition file extensions LoadDir picks up.
var Extensions = []string{".yaml", ".yml", ".json"}

// Definition is one loaded definition file.
type Definition struct {
	Path string
	Raw  *model.RawDevice
}

type Loader struct {
	schema *jsonschema.Schema
	logger *slog.Logger
}

func New(logger *slog.Logger) (*Loader, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("device-v1.json", strings.NewReader(deviceSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile("device-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Loader{schema: schema, logger: logger}, nil
}

// Validate checks a YAML or JSON document against the definition schema.
func (l *Loader) Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	// yaml decodes into Go types the validator does not know, normalize
	// through JSON.
	js, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("definition is not JSON compatible: %w", err)
	}
	var normalized any
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	if err := dec.Decode(&normalized); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := l.schema.Validate(normalized); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Parse validates data and decodes it into a raw device.
func (l *Loader) Parse(data []byte) (*model.RawDevice, error) {
	if err := l.Validate(data); err != nil {
		return nil, err
	}
	var raw model.RawDevice
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	return &raw, nil
}

// LoadFile reads one definition file.
func (l *Loader) LoadFile(path string) (*model.RawDevice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	raw, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Debug("Loaded definition", "path", path, "device", raw.Name, "packets", len(raw.Packets))
	return raw, nil
}

// LoadDir reads every definition file directly under dir in name order.
func (l *Loader) LoadDir(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read definitions directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !hasExtension(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		raw, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, Definition{Path: path, Raw: raw})
	}
	l.logger.Info("Loaded definitions", "dir", dir, "count", len(defs))
	return defs, nil
}

func hasExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadChangelog parses and checks a changelog file.
func LoadChangelog(path string) (*model.Changelog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open changelog: %w", err)
	}
	defer f.Close()
	cl, err := model.ParseChangelog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cl, nil
}

// Build loads the changelog and every definition under dir and validates
// them into devices. It stops at the first violation.
func (l *Loader) Build(changelogPath, dir string) (*model.Registry, []*model.Device, error) {
	cl, err := LoadChangelog(changelogPath)
	if err != nil {
		return nil, nil, err
	}
	reg, err := model.NewRegistry(cl)
	if err != nil {
		return nil, nil, err
	}
	l.logger.Info("Bindings version", "version", reg.BindingsVersion().String())

	defs, err := l.LoadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	devices := make([]*model.Device, 0, len(defs))
	for _, def := range defs {
		d, err := reg.NewDevice(def.Raw)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", def.Path, err)
		}
		l.logger.Debug("Built device", "device", d.FullName().Space(), "identifier", d.Identifier(), "packets", len(d.Packets()))
		devices = append(devices, d)
	}
	return reg, devices, nil
}
