package wire

import (
	"github.com/brickgen/brickgen/model"
)

// Field is one element placed in a payload.
type Field struct {
	Element *model.Element
	Offset  int
	Size    int
}

// Layout is the packed little-endian payload of one packet direction.
type Layout struct {
	Fields []Field
	Size   int
}

// LayoutOf places the wire elements of p for dir back to back without
// padding. Bool arrays occupy ceil(n/8) bytes.
func LayoutOf(p *model.Packet, dir model.Direction) Layout {
	var l Layout
	for _, e := range p.Elements(model.Filter{Direction: dir}) {
		sz, err := e.Size()
		if err != nil {
			continue
		}
		l.Fields = append(l.Fields, Field{Element: e, Offset: l.Size, Size: sz})
		l.Size += sz
	}
	return l
}

// Field returns the field of e, or false.
func (l Layout) Field(e *model.Element) (Field, bool) {
	for _, f := range l.Fields {
		if f.Element == e {
			return f, true
		}
	}
	return Field{}, false
}

// Index returns the position of e in the layout, -1 if absent.
func (l Layout) Index(e *model.Element) int {
	for i, f := range l.Fields {
		if f.Element == e {
			return i
		}
	}
	return -1
}
