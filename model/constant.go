package model

import (
	"math/big"
	"strings"
)

// Constant is one named value of a ConstantGroup. Char constants keep their
// character in Char and the code point in Value.
type Constant struct {
	Name  *Name
	Value *big.Rat
	Char  string
}

// Bool returns the value of a bool constant.
func (c *Constant) Bool() bool { return c.Value.Sign() != 0 }

// ConstantGroup is a typed enumeration referenced by elements. Virtual groups
// document ids only and are not emitted as constants.
type ConstantGroup struct {
	name      *Name
	typ       Type
	constants []*Constant
	virtual   bool
	users     []*Element
}

func (g *ConstantGroup) Name() *Name            { return g.name }
func (g *ConstantGroup) Type() Type             { return g.typ }
func (g *ConstantGroup) Constants() []*Constant { return g.constants }
func (g *ConstantGroup) Virtual() bool          { return g.virtual }
func (g *ConstantGroup) Users() []*Element      { return g.users }

// Lookup finds a constant by value.
func (g *ConstantGroup) Lookup(v *big.Rat) *Constant {
	for _, c := range g.constants {
		if c.Value.Cmp(v) == 0 {
			return c
		}
	}
	return nil
}

func buildConstantGroup(sc scope, raw RawConstantGroup) (*ConstantGroup, error) {
	name := NewName(raw.Name)
	if name.Empty() {
		return nil, sc.errorf("constant group name is empty")
	}
	typ, err := ParseType(raw.Type)
	if err != nil {
		return nil, sc.errorf("constant group %q: %v", raw.Name, err)
	}
	if typ == String || typ == Float {
		return nil, sc.errorf("constant group %q: type %s cannot hold constants", raw.Name, typ)
	}
	if len(raw.Constants) == 0 {
		return nil, sc.errorf("constant group %q has no constants", raw.Name)
	}
	g := &ConstantGroup{name: name, typ: typ, virtual: raw.Virtual}
	seen := map[string]bool{}
	for _, rc := range raw.Constants {
		key := strings.ToLower(strings.Join(strings.Fields(rc.Name), " "))
		if key == "" {
			return nil, sc.errorf("constant group %q: constant name is empty", raw.Name)
		}
		if seen[key] {
			return nil, sc.errorf("constant group %q: duplicate constant %q", raw.Name, rc.Name)
		}
		seen[key] = true
		if rc.Value.List {
			return nil, sc.errorf("constant group %q: constant %q must be a scalar", raw.Name, rc.Name)
		}
		v, err := scalarValue(sc, typ, nil, rc.Value, 0)
		if err != nil {
			return nil, sc.errorf("constant group %q: constant %q: %v", raw.Name, rc.Name, err)
		}
		c := &Constant{Name: NewName(rc.Name)}
		switch x := v.(type) {
		case bool:
			if x {
				c.Value = big.NewRat(1, 1)
			} else {
				c.Value = new(big.Rat)
			}
		case string:
			c.Char = x
			c.Value = big.NewRat(int64(x[0]), 1)
		case *big.Rat:
			c.Value = x
		}
		g.constants = append(g.constants, c)
	}
	return g, nil
}
