package model

import (
	"fmt"
	"math/big"
	"strings"

	"gopkg.in/yaml.v3"
)

// RawDevice is a device definition as loaded from YAML or JSON. It is only a
// transport shape: Registry.NewDevice validates it once into a Device.
type RawDevice struct {
	Category         string             `yaml:"category"`
	Name             string             `yaml:"name"`
	DisplayName      string             `yaml:"display_name"`
	DeviceIdentifier int                `yaml:"device_identifier"`
	Manufacturer     string             `yaml:"manufacturer"`
	Author           string             `yaml:"author"`
	APIVersion       []int              `yaml:"api_version"`
	APIVersionExtra  int                `yaml:"api_version_extra"`
	Released         bool               `yaml:"released"`
	Documented       bool               `yaml:"documented"`
	Description      map[string]string  `yaml:"description"`
	Doc              map[string]string  `yaml:"doc"`
	Packets          []RawPacket        `yaml:"packets"`
	ConstantGroups   []RawConstantGroup `yaml:"constant_groups"`
	Examples         []RawExample       `yaml:"examples"`
}

// RawPacket is one function or callback.
type RawPacket struct {
	Type             string        `yaml:"type"` // "function" | "callback"
	Name             string        `yaml:"name"`
	FunctionID       *int          `yaml:"function_id"`
	Elements         []RawElement  `yaml:"elements"`
	SinceFirmware    []int         `yaml:"since_firmware"`
	ResponseExpected *bool         `yaml:"response_expected"`
	Virtual          bool          `yaml:"virtual"`
	HighLevel        *RawHighLevel `yaml:"high_level"`
	Doc              RawDoc        `yaml:"doc"`
}

// RawHighLevel declares the stream of a low-level packet.
type RawHighLevel struct {
	StreamIn  *RawStream `yaml:"stream_in"`
	StreamOut *RawStream `yaml:"stream_out"`
}

// RawStream is the stream declaration. ShortWrite only applies to stream_in.
type RawStream struct {
	Name        string `yaml:"name"`
	FixedLength int    `yaml:"fixed_length"`
	SingleChunk bool   `yaml:"single_chunk"`
	ShortWrite  bool   `yaml:"short_write"`
}

// RawDoc is the doc type tag plus the per-language text.
type RawDoc struct {
	Type string            `yaml:"type"`
	Text map[string]string `yaml:"text"`
}

// RawElement is one field. A struct element lists one RawMeta per index in
// Fields; a plain element carries its metadata inline.
type RawElement struct {
	Name        string    `yaml:"name"`
	Type        string    `yaml:"type"`
	Cardinality int       `yaml:"cardinality"`
	Direction   string    `yaml:"direction"`
	RawMeta     `yaml:",inline"`
	Fields      []RawMeta `yaml:"fields"`
}

// RawMeta is the optional annotation of an element or of one struct index.
type RawMeta struct {
	FieldName     string    `yaml:"field_name"`
	Scale         *RawScale `yaml:"scale"`
	Unit          string    `yaml:"unit"`
	Range         *RawRange `yaml:"range"`
	ConstantGroup string    `yaml:"constant_group"`
	Default       *RawValue `yaml:"default"`
}

// RawConstantGroup is a named enumeration.
type RawConstantGroup struct {
	Name      string        `yaml:"name"`
	Type      string        `yaml:"type"`
	Virtual   bool          `yaml:"virtual"`
	Constants []RawConstant `yaml:"constants"`
}

type RawConstant struct {
	Name  string   `yaml:"name"`
	Value RawValue `yaml:"value"`
}

// RawExample is carried opaquely; example generation is not performed.
type RawExample struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Functions []any  `yaml:"functions"`
}

// RawScale is either [num, den] or the string "dynamic".
type RawScale struct {
	Num, Den int64
	Dynamic  bool
}

func (s *RawScale) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value != "dynamic" {
			return fmt.Errorf("line %d: scale must be [num, den] or \"dynamic\", got %q", node.Line, node.Value)
		}
		s.Dynamic = true
		return nil
	case yaml.SequenceNode:
		var pair []int64
		if err := node.Decode(&pair); err != nil {
			return fmt.Errorf("line %d: scale: %w", node.Line, err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: scale needs exactly 2 numbers, got %d", node.Line, len(pair))
		}
		s.Num, s.Den = pair[0], pair[1]
		return nil
	}
	return fmt.Errorf("line %d: invalid scale", node.Line)
}

// RangeKind tells how a range is given.
type RangeKind string

const (
	RangeBounds    RangeKind = "bounds"
	RangeType      RangeKind = "type"
	RangeConstants RangeKind = "constants"
	RangeDynamic   RangeKind = "dynamic"
)

// RawRange is "dynamic", "type", "constants", [min, max] or a list of
// [min, max] pairs. Bounds are kept as literal text until the element type
// is known.
type RawRange struct {
	Kind   RangeKind
	Bounds [][2]string
}

func (r *RawRange) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch RangeKind(node.Value) {
		case RangeType, RangeConstants, RangeDynamic:
			r.Kind = RangeKind(node.Value)
			return nil
		}
		return fmt.Errorf("line %d: unknown range keyword %q", node.Line, node.Value)
	case yaml.SequenceNode:
		r.Kind = RangeBounds
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			for _, pair := range node.Content {
				b, err := rangePair(pair)
				if err != nil {
					return err
				}
				r.Bounds = append(r.Bounds, b)
			}
			return nil
		}
		b, err := rangePair(node)
		if err != nil {
			return err
		}
		r.Bounds = [][2]string{b}
		return nil
	}
	return fmt.Errorf("line %d: invalid range", node.Line)
}

func rangePair(node *yaml.Node) ([2]string, error) {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 2 {
		return [2]string{}, fmt.Errorf("line %d: range bound must be [min, max]", node.Line)
	}
	for _, c := range node.Content {
		if c.Kind != yaml.ScalarNode {
			return [2]string{}, fmt.Errorf("line %d: range bound must be a number", c.Line)
		}
	}
	return [2]string{node.Content[0].Value, node.Content[1].Value}, nil
}

// RawValue keeps a scalar or a list of scalars as literal text with the YAML
// tag, so numbers wider than float64 survive until the element type is known.
type RawValue struct {
	Tag   string
	Text  string
	Items []RawValue
	List  bool
}

func (v *RawValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		v.Tag = node.ShortTag()
		v.Text = node.Value
		return nil
	case yaml.SequenceNode:
		v.List = true
		for _, c := range node.Content {
			var item RawValue
			if err := item.UnmarshalYAML(c); err != nil {
				return err
			}
			if item.List {
				return fmt.Errorf("line %d: nested lists are not valid values", c.Line)
			}
			v.Items = append(v.Items, item)
		}
		return nil
	}
	return fmt.Errorf("line %d: invalid value", node.Line)
}

// ParseNumber parses decimal, hex (0x..) and binary (0b..) integers exactly
// and falls back to rational parsing for decimals and exponents.
func ParseNumber(s string) (*big.Rat, error) {
	t := strings.TrimSpace(s)
	if i, ok := new(big.Int).SetString(strings.ReplaceAll(t, "_", ""), 0); ok {
		return new(big.Rat).SetInt(i), nil
	}
	if r, ok := new(big.Rat).SetString(t); ok {
		return r, nil
	}
	return nil, fmt.Errorf("invalid number %q", s)
}
