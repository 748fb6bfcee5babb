package model

import (
	"fmt"
	"math/big"
	"strings"
)

// Bound is one inclusive [Min, Max] interval.
type Bound struct {
	Min, Max *big.Rat
}

// Range is the resolved value range of an element or struct index.
type Range struct {
	Kind   RangeKind
	Bounds []Bound
}

// Contains reports whether v lies in any bound. Non-bound kinds contain
// everything; the type range is checked separately.
func (r *Range) Contains(v *big.Rat) bool {
	if r == nil || r.Kind != RangeBounds {
		return true
	}
	for _, b := range r.Bounds {
		if v.Cmp(b.Min) >= 0 && v.Cmp(b.Max) <= 0 {
			return true
		}
	}
	return false
}

// Meta is the annotation of a whole element or, for struct elements, of one
// index.
type Meta struct {
	// Name is set for struct indices only ("X", "Y", "Z").
	Name          *Name
	Scale         Scale
	Unit          *Unit
	UnitDynamic   bool
	Range         *Range
	ConstantGroup *ConstantGroup
	// Default is *big.Rat for numbers, bool, string, or []any of those.
	Default any
}

// Element is one field of a packet.
type Element struct {
	packet      *Packet
	name        *Name
	typ         Type
	cardinality int
	direction   Direction
	level       Level
	role        Role
	meta        []*Meta
	isStruct    bool
}

func (e *Element) Packet() *Packet        { return e.packet }
func (e *Element) Name() *Name            { return e.name }
func (e *Element) Type() Type             { return e.typ }
func (e *Element) Cardinality() int       { return e.cardinality }
func (e *Element) Direction() Direction   { return e.direction }
func (e *Element) Level() Level           { return e.level }
func (e *Element) Role() Role             { return e.role }
func (e *Element) IsStruct() bool         { return e.isStruct }
func (e *Element) IsVariableLength() bool { return e.cardinality < 0 }

// IsArray is true for fixed or variable sized arrays except strings, which
// are a single value.
func (e *Element) IsArray() bool {
	return e.typ != String && (e.cardinality > 1 || e.cardinality < 0)
}

// MaxItems is the absolute cardinality.
func (e *Element) MaxItems() int {
	if e.cardinality < 0 {
		return -e.cardinality
	}
	return e.cardinality
}

// TypeRange returns the inclusive range of the primitive type.
func (e *Element) TypeRange() (lo, hi *big.Rat, err error) {
	return e.typ.Range()
}

// Size is the wire footprint in bytes. Bool arrays are bit packed.
// Synthesized high-level elements have no wire footprint.
func (e *Element) Size() (int, error) {
	if e.level == LevelHigh {
		return 0, fmt.Errorf("element %q is a high-level element and has no wire size", e.name.Space())
	}
	if e.typ == Bool {
		return (e.cardinality + 7) / 8, nil
	}
	return e.typ.ItemSize() * e.cardinality, nil
}

// Meta returns the metadata for index i. Non-struct elements share one record.
func (e *Element) Meta(i int) *Meta {
	if !e.isStruct {
		return e.meta[0]
	}
	if i < 0 || i >= len(e.meta) {
		return nil
	}
	return e.meta[i]
}

func (e *Element) Scale(i int) Scale {
	if m := e.Meta(i); m != nil {
		return m.Scale
	}
	return IdentityScale
}

func (e *Element) Unit(i int) *Unit {
	if m := e.Meta(i); m != nil {
		return m.Unit
	}
	return nil
}

func (e *Element) Range(i int) *Range {
	if m := e.Meta(i); m != nil {
		return m.Range
	}
	return nil
}

func (e *Element) ConstantGroup(i int) *ConstantGroup {
	if m := e.Meta(i); m != nil {
		return m.ConstantGroup
	}
	return nil
}

func (e *Element) Default(i int) any {
	if m := e.Meta(i); m != nil {
		return m.Default
	}
	return nil
}

// Fields returns the per-index metadata of a struct element.
func (e *Element) Fields() []*Meta {
	if !e.isStruct {
		return nil
	}
	return e.meta
}

// elementBuilder turns a RawElement into an Element. Constant groups are
// looked up through groups.
type elementBuilder struct {
	sc     scope
	groups map[string]*ConstantGroup
}

func (b *elementBuilder) build(raw RawElement) (*Element, error) {
	sc := b.sc.withElement(raw.Name)
	name := NewName(raw.Name)
	if name.Empty() {
		return nil, sc.errorf("element name is empty")
	}
	typ, err := ParseType(raw.Type)
	if err != nil {
		return nil, sc.errorf("%v", err)
	}
	if raw.Cardinality <= 0 {
		return nil, sc.errorf("invalid cardinality %d", raw.Cardinality)
	}
	if typ == String && raw.Cardinality == 1 {
		return nil, sc.errorf("string needs a cardinality above 1, use char for single characters")
	}
	var dir Direction
	switch Direction(raw.Direction) {
	case In, Out:
		dir = Direction(raw.Direction)
	default:
		return nil, sc.errorf("invalid direction %q", raw.Direction)
	}

	e := &Element{
		name:        name,
		typ:         typ,
		cardinality: raw.Cardinality,
		direction:   dir,
	}

	if len(raw.Fields) > 0 {
		if raw.RawMeta != (RawMeta{}) {
			return nil, sc.errorf("struct element cannot carry element-level metadata")
		}
		if typ == String {
			return nil, sc.errorf("string element cannot be a struct")
		}
		if len(raw.Fields) != raw.Cardinality {
			return nil, sc.errorf("struct has %d fields but cardinality %d", len(raw.Fields), raw.Cardinality)
		}
		e.isStruct = true
		seen := map[string]bool{}
		for i, f := range raw.Fields {
			fsc := sc.withElement(fmt.Sprintf("%s[%d]", raw.Name, i))
			if strings.TrimSpace(f.FieldName) == "" {
				return nil, fsc.errorf("struct field needs a field_name")
			}
			key := strings.ToLower(f.FieldName)
			if seen[key] {
				return nil, fsc.errorf("duplicate struct field %q", f.FieldName)
			}
			seen[key] = true
			m, err := b.meta(fsc, e, f, 1)
			if err != nil {
				return nil, err
			}
			m.Name = NewName(f.FieldName)
			e.meta = append(e.meta, m)
		}
		return e, nil
	}

	if raw.FieldName != "" {
		return nil, sc.errorf("field_name is only valid inside fields")
	}
	m, err := b.meta(sc, e, raw.RawMeta, raw.Cardinality)
	if err != nil {
		return nil, err
	}
	e.meta = []*Meta{m}
	return e, nil
}

func (b *elementBuilder) meta(sc scope, e *Element, raw RawMeta, items int) (*Meta, error) {
	m := &Meta{Scale: IdentityScale}
	typ := e.typ
	numeric := typ.IsInteger() || typ == Float

	if raw.Scale != nil {
		if !typ.IsInteger() {
			return nil, sc.errorf("scale is not allowed for type %s", typ)
		}
		if raw.Scale.Dynamic {
			m.Scale = Scale{Dynamic: true}
		} else {
			if raw.Scale.Num <= 0 || raw.Scale.Den <= 0 {
				return nil, sc.errorf("scale %d/%d must be positive", raw.Scale.Num, raw.Scale.Den)
			}
			m.Scale = Scale{Num: raw.Scale.Num, Den: raw.Scale.Den}
		}
	}

	if raw.Unit != "" {
		if !numeric {
			return nil, sc.errorf("unit is not allowed for type %s", typ)
		}
		if raw.Unit == "dynamic" {
			m.UnitDynamic = true
		} else {
			u, ok := LookupUnit(raw.Unit)
			if !ok {
				return nil, sc.errorf("unknown unit %q", raw.Unit)
			}
			m.Unit = u
		}
	}

	if raw.ConstantGroup != "" {
		g, ok := b.groups[strings.ToLower(raw.ConstantGroup)]
		if !ok {
			return nil, sc.errorf("unknown constant group %q", raw.ConstantGroup)
		}
		if g.typ != typ {
			return nil, sc.errorf("constant group %q has type %s, element has %s", g.name.Space(), g.typ, typ)
		}
		if raw.Scale != nil || raw.Unit != "" {
			return nil, sc.errorf("constant group elements cannot have scale or unit")
		}
		m.ConstantGroup = g
		g.users = append(g.users, e)
	}

	if raw.Range != nil {
		r, err := resolveRange(sc, typ, raw.Range, m.ConstantGroup != nil)
		if err != nil {
			return nil, err
		}
		m.Range = r
	}

	if raw.Default != nil {
		d, err := resolveDefault(sc, typ, items, m.Range, *raw.Default)
		if err != nil {
			return nil, err
		}
		m.Default = d
	}
	return m, nil
}

func resolveRange(sc scope, typ Type, raw *RawRange, hasGroup bool) (*Range, error) {
	switch raw.Kind {
	case RangeDynamic:
		if !typ.IsInteger() && typ != Float {
			return nil, sc.errorf("range is not allowed for type %s", typ)
		}
		return &Range{Kind: RangeDynamic}, nil
	case RangeType:
		if !typ.IsInteger() {
			return nil, sc.errorf("range \"type\" needs an integer type, got %s", typ)
		}
		lo, hi, _ := typ.Range()
		return &Range{Kind: RangeType, Bounds: []Bound{{lo, hi}}}, nil
	case RangeConstants:
		if !hasGroup {
			return nil, sc.errorf("range \"constants\" needs a constant_group")
		}
		return &Range{Kind: RangeConstants}, nil
	case RangeBounds:
		if !typ.IsInteger() && typ != Float {
			return nil, sc.errorf("range is not allowed for type %s", typ)
		}
		r := &Range{Kind: RangeBounds}
		for _, pair := range raw.Bounds {
			lo, err := ParseNumber(pair[0])
			if err != nil {
				return nil, sc.errorf("range: %v", err)
			}
			hi, err := ParseNumber(pair[1])
			if err != nil {
				return nil, sc.errorf("range: %v", err)
			}
			if lo.Cmp(hi) > 0 {
				return nil, sc.errorf("range [%s, %s] has min above max", pair[0], pair[1])
			}
			if typ.IsInteger() {
				if !lo.IsInt() || !hi.IsInt() {
					return nil, sc.errorf("range [%s, %s] must be integral for type %s", pair[0], pair[1], typ)
				}
				tlo, thi, _ := typ.Range()
				if lo.Cmp(tlo) < 0 || hi.Cmp(thi) > 0 {
					return nil, sc.errorf("range [%s, %s] exceeds type %s", pair[0], pair[1], typ)
				}
			}
			r.Bounds = append(r.Bounds, Bound{lo, hi})
		}
		if len(r.Bounds) == 0 {
			return nil, sc.errorf("range has no bounds")
		}
		return r, nil
	}
	return nil, sc.errorf("invalid range kind %q", raw.Kind)
}

func resolveDefault(sc scope, typ Type, items int, r *Range, raw RawValue) (any, error) {
	if raw.List {
		if typ == String {
			return nil, sc.errorf("string default must be a single value")
		}
		if len(raw.Items) != items {
			return nil, sc.errorf("default has %d items, expected %d", len(raw.Items), items)
		}
		out := make([]any, 0, len(raw.Items))
		for _, it := range raw.Items {
			v, err := scalarValue(sc, typ, r, it, 0)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return scalarValue(sc, typ, r, raw, items)
}

// scalarValue resolves one literal for typ. maxLen bounds string defaults.
func scalarValue(sc scope, typ Type, r *Range, raw RawValue, maxLen int) (any, error) {
	switch typ {
	case Bool:
		switch strings.ToLower(raw.Text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, sc.errorf("invalid bool value %q", raw.Text)
	case Char:
		if len([]rune(raw.Text)) != 1 || raw.Text[0] > 0x7f {
			return nil, sc.errorf("char value %q must be one ASCII character", raw.Text)
		}
		return raw.Text, nil
	case String:
		if maxLen > 0 && len(raw.Text) > maxLen {
			return nil, sc.errorf("string value %q is longer than %d", raw.Text, maxLen)
		}
		return raw.Text, nil
	}
	v, err := ParseNumber(raw.Text)
	if err != nil {
		return nil, sc.errorf("%v", err)
	}
	if typ.IsInteger() {
		if !v.IsInt() {
			return nil, sc.errorf("value %s is not an integer", raw.Text)
		}
		lo, hi, _ := typ.Range()
		if v.Cmp(lo) < 0 || v.Cmp(hi) > 0 {
			return nil, sc.errorf("value %s is out of range for type %s", raw.Text, typ)
		}
	}
	if !r.Contains(v) {
		return nil, sc.errorf("value %s is outside the declared range", raw.Text)
	}
	return v, nil
}
