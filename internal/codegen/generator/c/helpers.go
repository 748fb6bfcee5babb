package cgen

import (
	"fmt"
	"strings"

	"github.com/brickgen/brickgen/internal/codegen/common"
	"github.com/brickgen/brickgen/internal/codegen/format"
	"github.com/brickgen/brickgen/internal/codegen/meta"
	"github.com/brickgen/brickgen/model"
)

// device holds the names shared by every declaration of one device.
type device struct {
	*model.Device
	File   string // stream_test_bricklet
	Type   string // StreamTestBricklet
	Upper  string // STREAM_TEST_BRICKLET
	Header string // tf_stream_test_bricklet.h
	Var    string // stream_test_bricklet
}

func newDevice(md *meta.Metadata, d *model.Device) *device {
	file := common.DeviceFileName(d)
	return &device{
		Device: d,
		File:   file,
		Type:   common.DeviceTypeName(d),
		Upper:  strings.ToUpper(file),
		Header: md.Prefix + "_" + file + ".h",
		Var:    file,
	}
}

func (d *device) functionDefine(p *model.Packet) string {
	if p.Type() == model.Callback {
		return d.Upper + "_CALLBACK_" + p.Name().Upper()
	}
	return d.Upper + "_FUNCTION_" + p.Name().Upper()
}

func (d *device) funcName(name *model.Name) string {
	return d.File + "_" + name.Under()
}

// structName is the packed struct prefix of p, "WriteMessageLowLevel".
func structName(p *model.Packet) string {
	return common.Identifier(p.Name().Camel())
}

// paramType is the C type of one parameter item. Bool arrays are passed
// unpacked, one bool per item.
func paramType(e *model.Element) string {
	return format.CType(e.Type())
}

// inParam declares an input parameter.
func inParam(e *model.Element) string {
	name := e.Name().Under()
	switch {
	case e.Type() == model.String:
		return "const char *" + name
	case e.Cardinality() > 1:
		return fmt.Sprintf("const %s %s[%d]", paramType(e), name, e.Cardinality())
	}
	return paramType(e) + " " + name
}

// outParam declares a result pointer.
func outParam(e *model.Element) string {
	name := "ret_" + e.Name().Under()
	switch {
	case e.Type() == model.String:
		return fmt.Sprintf("char %s[%d]", name, e.Cardinality())
	case e.Cardinality() > 1:
		return fmt.Sprintf("%s %s[%d]", paramType(e), name, e.Cardinality())
	}
	return paramType(e) + " *" + name
}

func lowLevelParams(p *model.Packet) []string {
	var out []string
	for _, e := range p.Elements(model.Filter{Direction: model.In}) {
		out = append(out, inParam(e))
	}
	for _, e := range p.Elements(model.Filter{Direction: model.Out}) {
		out = append(out, outParam(e))
	}
	return out
}

// structField declares e inside a packed request or response struct.
func structField(e *model.Element) string {
	name := e.Name().Under()
	n := e.Cardinality()
	switch {
	case e.Type() == model.Bool && n > 1:
		return fmt.Sprintf("uint8_t %s[%d];", name, (n+7)/8)
	case e.Type() == model.Bool:
		return "uint8_t " + name + ";"
	case n > 1:
		return fmt.Sprintf("%s %s[%d];", format.CType(e.Type()), name, n)
	}
	return format.CType(e.Type()) + " " + name + ";"
}

func needsConversion(t model.Type) bool {
	return t.ItemSize() > 1 || t == model.Float
}

func leconvert(t model.Type) string {
	if t == model.Float {
		return "float"
	}
	return string(t)
}

// packLines copies the parameter of e into request.
func packLines(e *model.Element) []string {
	name := e.Name().Under()
	n := e.Cardinality()
	dst := "request." + name
	switch {
	case e.Type() == model.String:
		return []string{fmt.Sprintf("string_copy(%s, %s, %d);", dst, name, n)}
	case e.Type() == model.Bool && n > 1:
		return []string{
			fmt.Sprintf("memset(%s, 0, %d);", dst, (n+7)/8),
			fmt.Sprintf("for (i = 0; i < %d; i++) %s[i / 8] |= (%s[i] ? 1 : 0) << (i %% 8);", n, dst, name),
		}
	case e.Type() == model.Bool:
		return []string{fmt.Sprintf("%s = %s ? 1 : 0;", dst, name)}
	case n > 1 && needsConversion(e.Type()):
		return []string{fmt.Sprintf("for (i = 0; i < %d; i++) %s[i] = leconvert_%s_to(%s[i]);", n, dst, leconvert(e.Type()), name)}
	case n > 1:
		return []string{fmt.Sprintf("memcpy(%s, %s, %d * sizeof(%s));", dst, name, n, format.CType(e.Type()))}
	case needsConversion(e.Type()):
		return []string{fmt.Sprintf("%s = leconvert_%s_to(%s);", dst, leconvert(e.Type()), name)}
	}
	return []string{fmt.Sprintf("%s = %s;", dst, name)}
}

// unpackLines copies e from response into its result pointer.
func unpackLines(e *model.Element) []string {
	name := e.Name().Under()
	n := e.Cardinality()
	src := "response->" + name
	ret := "ret_" + name
	switch {
	case e.Type() == model.String:
		return []string{fmt.Sprintf("string_copy(%s, %s, %d);", ret, src, n)}
	case e.Type() == model.Bool && n > 1:
		return []string{fmt.Sprintf("for (i = 0; i < %d; i++) %s[i] = (%s[i / 8] & (1 << (i %% 8))) != 0;", n, ret, src)}
	case e.Type() == model.Bool:
		return []string{fmt.Sprintf("*%s = %s != 0;", ret, src)}
	case n > 1 && needsConversion(e.Type()):
		return []string{fmt.Sprintf("for (i = 0; i < %d; i++) %s[i] = leconvert_%s_from(%s[i]);", n, ret, leconvert(e.Type()), src)}
	case n > 1:
		return []string{fmt.Sprintf("memcpy(%s, %s, %d * sizeof(%s));", ret, src, n, format.CType(e.Type()))}
	case needsConversion(e.Type()):
		return []string{fmt.Sprintf("*%s = leconvert_%s_from(%s);", ret, leconvert(e.Type()), src)}
	}
	return []string{fmt.Sprintf("*%s = %s;", ret, src)}
}

// callbackLines converts e of a callback packet in place before it is
// passed to the user function.
func callbackLines(e *model.Element) []string {
	name := e.Name().Under()
	n := e.Cardinality()
	src := "callback->" + name
	switch {
	case e.Type() == model.Bool && n > 1:
		return []string{
			fmt.Sprintf("bool unpacked_%s[%d];", name, n),
			fmt.Sprintf("for (i = 0; i < %d; i++) unpacked_%s[i] = (%s[i / 8] & (1 << (i %% 8))) != 0;", n, name, src),
		}
	case n > 1 && needsConversion(e.Type()):
		return []string{fmt.Sprintf("for (i = 0; i < %d; i++) %s[i] = leconvert_%s_from(%s[i]);", n, src, leconvert(e.Type()), src)}
	case n == 1 && needsConversion(e.Type()):
		return []string{fmt.Sprintf("%s = leconvert_%s_from(%s);", src, leconvert(e.Type()), src)}
	}
	return nil
}

// callbackArg is the argument passing e to the user function.
func callbackArg(e *model.Element) string {
	name := e.Name().Under()
	switch {
	case e.Type() == model.Bool && e.Cardinality() > 1:
		return "unpacked_" + name
	case e.Type() == model.Bool:
		return "callback->" + name + " != 0"
	}
	return "callback->" + name
}

// callbackParam declares e in a callback function pointer type.
func callbackParam(e *model.Element) string {
	name := e.Name().Under()
	switch {
	case e.Type() == model.String:
		return "char *" + name
	case e.Cardinality() > 1:
		return paramType(e) + " *" + name
	}
	return paramType(e) + " " + name
}

func usesLoop(elements []*model.Element) bool {
	for _, e := range elements {
		if e.Cardinality() > 1 && e.Type() != model.String && (e.Type() == model.Bool || needsConversion(e.Type())) {
			return true
		}
	}
	return false
}

// docComment renders the English doc text of p as a C block comment.
func docComment(p *model.Packet, d *device) string {
	text := p.Doc().Text(model.LangEN)
	if text == "" {
		text = p.Name().Space()
	}
	var b strings.Builder
	b.WriteString("/**\n")
	fmt.Fprintf(&b, " * \\ingroup %s\n", d.Type)
	b.WriteString(" *\n")
	b.WriteString(common.CommentLines(text, " * ") + "\n")
	b.WriteString(" */")
	return b.String()
}
