// Package jsongen exports the validated device model in machine readable
// form: JSON for tooling and CBOR for constrained consumers.
package jsongen

import (
	"math/big"

	"github.com/brickgen/brickgen/model"
)

// The cbor encoder falls back to the json tags, so both encodings share
// their keys.

type Bindings struct {
	Version string    `json:"bindings_version"`
	RunID   string    `json:"run_id,omitempty"`
	Devices []*Device `json:"devices"`
}

type Device struct {
	Category       string            `json:"category"`
	Name           string            `json:"name"`
	DisplayName    string            `json:"display_name"`
	Identifier     int               `json:"device_identifier"`
	Manufacturer   string            `json:"manufacturer,omitempty"`
	Author         string            `json:"author,omitempty"`
	APIVersion     [3]int            `json:"api_version"`
	Released       bool              `json:"released"`
	Documented     bool              `json:"documented"`
	Description    map[string]string `json:"description,omitempty"`
	ConstantGroups []*ConstantGroup  `json:"constant_groups,omitempty"`
	Packets        []*Packet         `json:"packets"`
}

type ConstantGroup struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	Virtual   bool        `json:"virtual,omitempty"`
	Constants []*Constant `json:"constants"`
}

type Constant struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type Packet struct {
	Type             string            `json:"type"`
	Name             string            `json:"name"`
	FunctionID       int               `json:"function_id"`
	SinceFirmware    [3]int            `json:"since_firmware"`
	ResponseExpected string            `json:"response_expected"`
	RequestSize      int               `json:"request_size"`
	ResponseSize     int               `json:"response_size"`
	DocType          string            `json:"doc_type"`
	Doc              map[string]string `json:"doc,omitempty"`
	Elements         []*Element        `json:"elements,omitempty"`
	Stream           *Stream           `json:"stream,omitempty"`
}

type Element struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Cardinality int     `json:"cardinality"`
	Direction   string  `json:"direction"`
	Role        string  `json:"role,omitempty"`
	Struct      bool    `json:"struct,omitempty"`
	Meta        []*Meta `json:"meta,omitempty"`
}

type Meta struct {
	FieldName     string      `json:"field_name,omitempty"`
	Scale         string      `json:"scale,omitempty"`
	Unit          string      `json:"unit,omitempty"`
	UnitSymbol    string      `json:"unit_symbol,omitempty"`
	Range         string      `json:"range,omitempty"`
	Bounds        [][2]string `json:"bounds,omitempty"`
	ConstantGroup string      `json:"constant_group,omitempty"`
	Default       any         `json:"default,omitempty"`
}

type Stream struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	FixedLength int    `json:"fixed_length,omitempty"`
	SingleChunk bool   `json:"single_chunk,omitempty"`
	ShortWrite  bool   `json:"short_write,omitempty"`
	ChunkSize   int    `json:"chunk_size"`
	MaxLength   int    `json:"max_length"`
}

// Export converts devices into their exported form.
func Export(version model.Version, runID string, devices []*model.Device) *Bindings {
	b := &Bindings{Version: version.String(), RunID: runID, Devices: []*Device{}}
	for _, d := range devices {
		b.Devices = append(b.Devices, exportDevice(d))
	}
	return b
}

func exportDevice(d *model.Device) *Device {
	v := d.APIVersion()
	out := &Device{
		Category:     string(d.Category()),
		Name:         d.Name().Space(),
		DisplayName:  d.FullName().Space(),
		Identifier:   d.Identifier(),
		Manufacturer: d.Manufacturer(),
		Author:       d.Author(),
		APIVersion:   [3]int{v.Major, v.Minor, v.Patch},
		Released:     d.Released(),
		Documented:   d.Documented(),
		Description:  texts(d.Description),
		Packets:      []*Packet{},
	}
	for _, g := range d.ConstantGroups() {
		eg := &ConstantGroup{Name: g.Name().Space(), Type: string(g.Type()), Virtual: g.Virtual()}
		for _, c := range g.Constants() {
			eg.Constants = append(eg.Constants, &Constant{Name: c.Name.Space(), Value: constantValue(g, c)})
		}
		out.ConstantGroups = append(out.ConstantGroups, eg)
	}
	for _, p := range d.Packets() {
		out.Packets = append(out.Packets, exportPacket(p))
	}
	return out
}

func texts(fn func(model.Lang) string) map[string]string {
	m := map[string]string{}
	for _, l := range []model.Lang{model.LangEN, model.LangDE} {
		if t := fn(l); t != "" {
			m[string(l)] = t
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func exportPacket(p *model.Packet) *Packet {
	fw := p.SinceFirmware()
	out := &Packet{
		Type:             string(p.Type()),
		Name:             p.Name().Space(),
		FunctionID:       p.FunctionID(),
		SinceFirmware:    [3]int{fw.Major, fw.Minor, fw.Patch},
		ResponseExpected: p.ResponseExpected().String(),
		RequestSize:      p.RequestSize(),
		ResponseSize:     p.ResponseSize(),
		DocType:          string(p.Doc().Type),
		Doc:              texts(p.Doc().Text),
	}
	for _, e := range p.Elements(model.Filter{}) {
		out.Elements = append(out.Elements, exportElement(e))
	}
	if s := p.Stream(); s != nil {
		out.Stream = &Stream{
			Kind:        s.Kind().String(),
			Name:        s.Name().Space(),
			FixedLength: s.FixedLength(),
			SingleChunk: s.SingleChunk(),
			ShortWrite:  s.ShortWrite(),
			ChunkSize:   s.ChunkCardinality(),
			MaxLength:   s.MaxLength(),
		}
	}
	return out
}

func exportElement(e *model.Element) *Element {
	out := &Element{
		Name:        e.Name().Space(),
		Type:        string(e.Type()),
		Cardinality: e.Cardinality(),
		Direction:   string(e.Direction()),
		Role:        string(e.Role()),
		Struct:      e.IsStruct(),
	}
	for _, m := range e.Fields() {
		em := &Meta{Default: plain(m.Default)}
		if m.Name != nil {
			em.FieldName = m.Name.Space()
		}
		if !m.Scale.IsIdentity() {
			em.Scale = m.Scale.String()
		}
		if m.Unit != nil {
			em.Unit = m.Unit.Name
			em.UnitSymbol = model.FormatUnit(m.Scale, m.Unit)
		}
		if m.Range != nil {
			em.Range = string(m.Range.Kind)
			for _, b := range m.Range.Bounds {
				em.Bounds = append(em.Bounds, [2]string{b.Min.RatString(), b.Max.RatString()})
			}
		}
		if m.ConstantGroup != nil {
			em.ConstantGroup = m.ConstantGroup.Name().Space()
		}
		out.Meta = append(out.Meta, em)
	}
	return out
}

func constantValue(g *model.ConstantGroup, c *model.Constant) any {
	switch g.Type() {
	case model.Bool:
		return c.Bool()
	case model.Char:
		return c.Char
	}
	return plain(c.Value)
}

// plain turns model values into types every encoder understands: integers
// become int64 or uint64, other rationals float64.
func plain(v any) any {
	switch v := v.(type) {
	case *big.Rat:
		if v.IsInt() {
			n := v.Num()
			if n.IsInt64() {
				return n.Int64()
			}
			if n.IsUint64() {
				return n.Uint64()
			}
			return n.String()
		}
		f, _ := v.Float64()
		return f
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = plain(item)
		}
		return out
	}
	return v
}
