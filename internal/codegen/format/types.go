package format

import "github.com/brickgen/brickgen/model"

// GoType is the Go name of one item of t.
func GoType(t model.Type) string {
	switch t {
	case model.Float:
		return "float32"
	case model.Char:
		return "rune"
	case model.Bool, model.String:
		return string(t)
	}
	return string(t)
}

// CType is the C name of one item of t. Strings are char arrays.
func CType(t model.Type) string {
	switch t {
	case model.Float:
		return "float"
	case model.Bool:
		return "bool"
	case model.Char, model.String:
		return "char"
	}
	return string(t) + "_t"
}

// CSharpType is the C# name of one item of t.
func CSharpType(t model.Type) string {
	switch t {
	case model.Int8:
		return "sbyte"
	case model.Uint8:
		return "byte"
	case model.Int16:
		return "short"
	case model.Uint16:
		return "ushort"
	case model.Int32:
		return "int"
	case model.Uint32:
		return "uint"
	case model.Int64:
		return "long"
	case model.Uint64:
		return "ulong"
	case model.Float:
		return "float"
	}
	return string(t)
}
