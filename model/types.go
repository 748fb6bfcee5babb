package model

import (
	"fmt"
	"math/big"
)

// Type is the primitive wire type of an element.
type Type string

const (
	Int8   Type = "int8"
	Int16  Type = "int16"
	Int32  Type = "int32"
	Int64  Type = "int64"
	Uint8  Type = "uint8"
	Uint16 Type = "uint16"
	Uint32 Type = "uint32"
	Uint64 Type = "uint64"
	Float  Type = "float"
	Bool   Type = "bool"
	Char   Type = "char"
	String Type = "string"
)

var allTypes = []Type{Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Float, Bool, Char, String}

// ParseType validates a type token from a definition.
func ParseType(s string) (Type, error) {
	for _, t := range allTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid type %q", s)
}

// ItemSize returns the size in bytes of one item. Bools report 1 here, the
// bit packing of bool arrays is applied by Element.Size.
func (t Type) ItemSize() int {
	switch t {
	case Int8, Uint8, Bool, Char, String:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float:
		return 4
	case Int64, Uint64:
		return 8
	default:
		return 0
	}
}

// Bits returns the width of integer types, 0 otherwise.
func (t Type) Bits() int {
	switch t {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		return t.ItemSize() * 8
	}
	return 0
}

func (t Type) IsInteger() bool { return t.Bits() > 0 }

func (t Type) IsSigned() bool {
	switch t {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

func (t Type) IsUnsigned() bool { return t.IsInteger() && !t.IsSigned() }

// Range returns the inclusive value range of the type. Bool maps to 0..1 and
// char to 0..255. Float and string have no range.
func (t Type) Range() (lo, hi *big.Rat, err error) {
	switch {
	case t == Bool:
		return big.NewRat(0, 1), big.NewRat(1, 1), nil
	case t == Char:
		return big.NewRat(0, 1), big.NewRat(255, 1), nil
	case t.IsUnsigned():
		max := new(big.Int).Lsh(big.NewInt(1), uint(t.Bits()))
		max.Sub(max, big.NewInt(1))
		return new(big.Rat), new(big.Rat).SetInt(max), nil
	case t.IsSigned():
		half := new(big.Int).Lsh(big.NewInt(1), uint(t.Bits()-1))
		min := new(big.Int).Neg(half)
		max := new(big.Int).Sub(half, big.NewInt(1))
		return new(big.Rat).SetInt(min), new(big.Rat).SetInt(max), nil
	}
	return nil, nil, fmt.Errorf("type %s has no value range", t)
}

// MaxUint returns the largest value of an unsigned type.
func (t Type) MaxUint() uint64 {
	if !t.IsUnsigned() {
		return 0
	}
	if t.Bits() == 64 {
		return ^uint64(0)
	}
	return 1<<uint(t.Bits()) - 1
}

// Direction tells whether an element travels in the request or the response.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Level distinguishes plain elements from the low-level stream parts and the
// synthesized high-level value.
type Level int

const (
	LevelNormal Level = iota
	LevelLow
	LevelHigh
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelHigh:
		return "high"
	}
	return "normal"
}

// Role is the part an element plays in a stream.
type Role string

const (
	RoleNone               Role = ""
	RoleStreamLength       Role = "stream_length"
	RoleStreamChunkOffset  Role = "stream_chunk_offset"
	RoleStreamChunkData    Role = "stream_chunk_data"
	RoleStreamChunkWritten Role = "stream_chunk_written"
	RoleStreamData         Role = "stream_data"
	RoleStreamWritten      Role = "stream_written"
)
