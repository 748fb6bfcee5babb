package wire

import (
	"encoding/binary"
	"fmt"
)

// Packer appends little-endian fields to a payload. Generated bindings use
// it instead of a Layout since they know their fields statically.
type Packer struct {
	b   []byte
	err error
}

func NewPacker(size int) *Packer {
	return &Packer{b: make([]byte, 0, size)}
}

// Put appends a fixed-size value: an integer, float32, bool, or an array or
// slice of those.
func (p *Packer) Put(v any) {
	if p.err != nil {
		return
	}
	p.b, p.err = binary.Append(p.b, binary.LittleEndian, v)
}

// Char appends one character as a single byte.
func (p *Packer) Char(c rune) {
	if c > 0xff && p.err == nil {
		p.err = fmt.Errorf("char %q does not fit a byte", c)
	}
	p.b = append(p.b, byte(c))
}

// Chars appends one byte per character.
func (p *Packer) Chars(cs []rune) {
	for _, c := range cs {
		p.Char(c)
	}
}

// Bools appends v as a bit field of ceil(len(v)/8) bytes.
func (p *Packer) Bools(v []bool) {
	packed := make([]byte, (len(v)+7)/8)
	for i, b := range v {
		if b {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	p.b = append(p.b, packed...)
}

// String appends s zero padded to n bytes.
func (p *Packer) String(s string, n int) {
	if len(s) > n && p.err == nil {
		p.err = fmt.Errorf("string of %d bytes exceeds %d", len(s), n)
		return
	}
	p.b = append(p.b, s...)
	p.b = append(p.b, make([]byte, n-len(s))...)
}

// Bytes returns the payload or the first error.
func (p *Packer) Bytes() ([]byte, error) {
	return p.b, p.err
}

// Unpacker reads little-endian fields from a payload in order.
type Unpacker struct {
	b   []byte
	err error
}

func NewUnpacker(b []byte) *Unpacker {
	return &Unpacker{b: b}
}

func (u *Unpacker) next(n int) []byte {
	if u.err != nil {
		return make([]byte, n)
	}
	if len(u.b) < n {
		u.err = fmt.Errorf("payload too short: need %d more bytes, have %d", n, len(u.b))
		return make([]byte, n)
	}
	out := u.b[:n]
	u.b = u.b[n:]
	return out
}

// Get decodes into v, a pointer to a fixed-size value.
func (u *Unpacker) Get(v any) {
	if u.err != nil {
		return
	}
	n, err := binary.Decode(u.b, binary.LittleEndian, v)
	if err != nil {
		u.err = err
		return
	}
	u.b = u.b[n:]
}

func (u *Unpacker) Char() rune {
	return rune(u.next(1)[0])
}

func (u *Unpacker) Chars(n int) []rune {
	out := make([]rune, n)
	for i, c := range u.next(n) {
		out[i] = rune(c)
	}
	return out
}

// Bools reads a bit field of n bools.
func (u *Unpacker) Bools(n int) []bool {
	b := u.next((n + 7) / 8)
	out := make([]bool, n)
	for i := range out {
		out[i] = b[i/8]&(1<<(i%8)) != 0
	}
	return out
}

// String reads n bytes and cuts them at the first NUL.
func (u *Unpacker) String(n int) string {
	b := u.next(n)
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Err reports the first decoding error, including unread trailing bytes.
func (u *Unpacker) Err() error {
	if u.err == nil && len(u.b) > 0 {
		return fmt.Errorf("%d trailing bytes", len(u.b))
	}
	return u.err
}
