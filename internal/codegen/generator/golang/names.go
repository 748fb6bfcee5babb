package gogen

import (
	"go/token"
	"strconv"
	"strings"
	"unicode"

	"github.com/brickgen/brickgen/internal/codegen/common"
	"github.com/brickgen/brickgen/internal/codegen/format"
	"github.com/brickgen/brickgen/model"
)

// reserved are identifiers the generated method bodies use themselves.
var reserved = map[string]bool{
	"ctx": true, "d": true, "err": true, "pk": true, "up": true,
	"resp": true, "payload": true, "cfg": true, "fn": true, "c": true,
	"n": true, "collector": true, "chunkWritten": true, "chunkLength": true,
	"chunkOffset": true, "chunkData": true,
}

// ident is the parameter name of e, "messageChunkOffset".
func ident(e *model.Element) string {
	name := common.Identifier(e.Name().Headless())
	if token.IsKeyword(name) || reserved[name] {
		return name + "_"
	}
	return name
}

// packageName is the Go package of d, "streamtestbricklet".
func packageName(d *model.Device) string {
	return strings.ReplaceAll(common.DeviceFileName(d), "_", "")
}

// groupOf returns the constant group typing e, if e is a plain scalar.
func groupOf(e *model.Element) *model.ConstantGroup {
	if e.Cardinality() != 1 || e.IsStruct() {
		return nil
	}
	g := e.ConstantGroup(0)
	if g == nil || g.Virtual() {
		return nil
	}
	return g
}

func groupType(g *model.ConstantGroup) string {
	return common.Identifier(g.Name().Camel())
}

// itemType is the Go type of one item of e.
func itemType(e *model.Element) string {
	if g := groupOf(e); g != nil {
		return groupType(g)
	}
	return format.GoType(e.Type())
}

// goType is the Go type of the whole element.
func goType(e *model.Element) string {
	switch {
	case e.Type() == model.String:
		return "string"
	case e.Cardinality() > 1:
		return "[" + strconv.Itoa(e.Cardinality()) + "]" + itemType(e)
	}
	return itemType(e)
}

// packStmt appends the parameter of e to the packer pk.
func packStmt(e *model.Element) string {
	n := ident(e)
	card := e.Cardinality()
	switch {
	case e.Type() == model.String:
		return "pk.String(" + n + ", " + strconv.Itoa(card) + ")"
	case e.Type() == model.Char && card > 1:
		return "pk.Chars(" + n + "[:])"
	case e.Type() == model.Char:
		return "pk.Char(rune(" + n + "))"
	case e.Type() == model.Bool && card > 1:
		return "pk.Bools(" + n + "[:])"
	}
	return "pk.Put(" + n + ")"
}

// unpackStmt reads e from the unpacker up into the variable of e.
func unpackStmt(e *model.Element) string {
	n := ident(e)
	card := e.Cardinality()
	switch {
	case e.Type() == model.String:
		return n + " = up.String(" + strconv.Itoa(card) + ")"
	case e.Type() == model.Char && card > 1:
		return "copy(" + n + "[:], up.Chars(" + strconv.Itoa(card) + "))"
	case e.Type() == model.Char && itemType(e) == "rune":
		return n + " = up.Char()"
	case e.Type() == model.Char:
		return n + " = " + itemType(e) + "(up.Char())"
	case e.Type() == model.Bool && card > 1:
		return "copy(" + n + "[:], up.Bools(" + strconv.Itoa(card) + "))"
	}
	return "up.Get(&" + n + ")"
}

// docLines turns a sentence starting with a verb into a Go doc comment
// about name: "Returns x." becomes "// Name returns x.".
func docLines(name, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "// " + name + " has no description."
	}
	first := rune(text[0])
	if unicode.IsUpper(first) && len(text) > 1 && unicode.IsLower(rune(text[1])) {
		return common.CommentLines(name+" "+string(unicode.ToLower(first))+text[1:], "// ")
	}
	return "// " + name + "\n//\n" + common.CommentLines(text, "// ")
}
