package model

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Category is the device family.
type Category string

const (
	CategoryBrick    Category = "Brick"
	CategoryBricklet Category = "Bricklet"
	CategoryTNG      Category = "TNG"
)

func parseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryBrick, CategoryBricklet, CategoryTNG:
		return Category(s), nil
	}
	return "", fmt.Errorf("invalid category %q", s)
}

// reservedMethods are implemented by every binding on the device object and
// may only be described by doc-only packets.
var reservedMethods = []string{
	"Get API Version",
	"Get Response Expected",
	"Set Response Expected",
	"Set Response Expected All",
	"Register Callback",
	"Deregister Callback",
}

// Device is a validated device definition.
type Device struct {
	category        Category
	name            *Name
	displayName     string
	identifier      int
	manufacturer    string
	author          string
	apiVersion      Version
	apiVersionExtra int
	released        bool
	documented      bool
	description     map[Lang]string
	packets         []*Packet
	constantGroups  []*ConstantGroup
	examples        []RawExample
}

func (d *Device) Category() Category     { return d.category }
func (d *Device) Name() *Name            { return d.name }
func (d *Device) DisplayName() string    { return d.displayName }
func (d *Device) Identifier() int        { return d.identifier }
func (d *Device) Manufacturer() string   { return d.manufacturer }
func (d *Device) Author() string         { return d.author }
func (d *Device) APIVersion() Version    { return d.apiVersion }
func (d *Device) Released() bool         { return d.released }
func (d *Device) Documented() bool       { return d.documented }
func (d *Device) Examples() []RawExample { return d.examples }

// Description returns the description in lang, falling back to English.
func (d *Device) Description(lang Lang) string {
	if t, ok := d.description[lang]; ok {
		return t
	}
	return d.description[LangEN]
}

// FullName is the name followed by the category ("DC V2 Bricklet").
func (d *Device) FullName() *Name {
	return d.name.Join(NewName(string(d.category)))
}

// CategoryName is the category followed by the name ("Bricklet DC V2").
func (d *Device) CategoryName() *Name {
	return NewName(string(d.category)).Join(d.name)
}

// Packets returns packets by function id, doc-only packets last.
func (d *Device) Packets() []*Packet { return d.packets }

// PacketsOf returns the packets of one type in device order.
func (d *Device) PacketsOf(t PacketType) []*Packet {
	var out []*Packet
	for _, p := range d.packets {
		if p.typ == t {
			out = append(out, p)
		}
	}
	return out
}

// Packet finds a packet by function id.
func (d *Device) Packet(fid int) *Packet {
	for _, p := range d.packets {
		if p.functionID == fid && !p.docOnly {
			return p
		}
	}
	return nil
}

// ConstantGroups includes the virtual Function and Callback groups.
func (d *Device) ConstantGroups() []*ConstantGroup { return d.constantGroups }

// ConstantGroup finds a group by name, case-insensitively.
func (d *Device) ConstantGroup(name string) *ConstantGroup {
	for _, g := range d.constantGroups {
		if strings.EqualFold(g.name.Space(), name) {
			return g
		}
	}
	return nil
}

// Streams returns the packets declaring a high-level stream.
func (d *Device) Streams() []*Packet {
	var out []*Packet
	for _, p := range d.packets {
		if p.stream != nil {
			out = append(out, p)
		}
	}
	return out
}

// assignFunctionIDs gives auto ids in declaration order starting at 1 and
// checks explicit ids for collisions.
// IdentityFunctionID is answered by every device with its identity.
const IdentityFunctionID = 255

func assignFunctionIDs(sc scope, packets []*Packet, raw []RawPacket) error {
	used := map[int]string{}
	next := 1
	for i, p := range packets {
		psc := sc.withPacket(p.name.Space())
		rid := raw[i].FunctionID
		switch {
		case rid == nil:
			p.functionID = next
			next++
		case *rid == -1:
			if p.typ != Function {
				return psc.errorf("only functions can be doc-only")
			}
			p.functionID = -1
			continue
		case *rid < 1 || *rid > 255:
			return psc.errorf("function id %d is out of range 1..255", *rid)
		case *rid == IdentityFunctionID && !strings.EqualFold(p.name.Space(), "Get Identity"):
			return psc.errorf("function id %d is reserved for Get Identity", *rid)
		default:
			p.functionID = *rid
		}
		if other, ok := used[p.functionID]; ok {
			return psc.errorf("function id %d is already used by %q", p.functionID, other)
		}
		if p.functionID > 255 {
			return psc.errorf("function id %d is out of range 1..255", p.functionID)
		}
		used[p.functionID] = p.name.Space()
	}
	return nil
}

// sortPackets orders by function id with doc-only packets pinned last, both
// stable in declaration order.
func sortPackets(packets []*Packet) {
	sort.SliceStable(packets, func(i, j int) bool {
		a, b := packets[i], packets[j]
		if a.docOnly != b.docOnly {
			return !a.docOnly
		}
		if a.docOnly {
			return false
		}
		return a.functionID < b.functionID
	})
}

func checkPacketNames(sc scope, packets []*Packet) error {
	seen := map[string]string{}
	claim := func(p *Packet, n *Name) error {
		key := strings.ToLower(n.Space())
		if other, ok := seen[key]; ok {
			return sc.withPacket(p.name.Space()).errorf("name %q collides with %q", n.Space(), other)
		}
		seen[key] = p.name.Space()
		return nil
	}
	for _, p := range packets {
		psc := sc.withPacket(p.name.Space())
		if p.typ == Callback && p.name.HasWord("Callback") {
			return psc.errorf("callback names must not contain the word 'Callback'")
		}
		if !p.docOnly {
			for _, r := range reservedMethods {
				if strings.EqualFold(p.name.Space(), r) || strings.EqualFold(p.HighLevelName().Space(), r) {
					return psc.errorf("name %q is reserved for a device method", r)
				}
			}
		}
		if err := claim(p, p.name); err != nil {
			return err
		}
		if p.stream != nil {
			if err := claim(p, p.HighLevelName()); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkAPIVersion requires the api patch to count the distinct firmware
// versions after 2.0.0 that introduced packets, plus api_version_extra.
func checkAPIVersion(sc scope, d *Device) error {
	base := Version{2, 0, 0}
	versions := map[Version]bool{}
	for _, p := range d.packets {
		if p.sinceFirmware.Compare(base) > 0 {
			versions[p.sinceFirmware] = true
		}
	}
	want := len(versions) + d.apiVersionExtra
	if d.apiVersion.Patch != want {
		return sc.errorf("api_version patch is %d, expected %d (%d firmware versions after %s plus extra %d)",
			d.apiVersion.Patch, want, len(versions), base, d.apiVersionExtra)
	}
	return nil
}

// idGroups builds the virtual groups enumerating function and callback ids.
func idGroups(d *Device) []*ConstantGroup {
	var out []*ConstantGroup
	for _, grp := range []struct {
		name string
		typ  PacketType
	}{{"Function", Function}, {"Callback", Callback}} {
		g := &ConstantGroup{name: NewName(grp.name), typ: Uint8, virtual: true}
		for _, p := range d.packets {
			if p.typ != grp.typ || p.docOnly {
				continue
			}
			g.constants = append(g.constants, &Constant{Name: p.name, Value: ratInt(p.functionID)})
		}
		if len(g.constants) > 0 {
			out = append(out, g)
		}
	}
	return out
}

func ratInt(i int) *big.Rat { return big.NewRat(int64(i), 1) }
