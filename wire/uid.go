package wire

import (
	"fmt"
	"math/bits"
	"strings"
)

const base58Alphabet = "123456789abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

// FormatUID renders a UID in base58.
func FormatUID(uid uint64) string {
	if uid == 0 {
		return string(base58Alphabet[0])
	}
	var buf [16]byte
	i := len(buf)
	for uid > 0 {
		i--
		buf[i] = base58Alphabet[uid%58]
		uid /= 58
	}
	return string(buf[i:])
}

// ParseUID decodes a base58 UID. Values wider than 32 bits are folded into
// the 32 bit form used on the wire.
func ParseUID(s string) (uint32, error) {
	if s == "" {
		return 0, fmt.Errorf("empty uid")
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		d := strings.IndexByte(base58Alphabet, s[i])
		if d < 0 {
			return 0, fmt.Errorf("uid %q: invalid character %q at index %d", s, s[i], i)
		}
		hi, lo := bits.Mul64(v, 58)
		if hi != 0 {
			return 0, fmt.Errorf("uid %q is too big for 64 bits", s)
		}
		sum, carry := bits.Add64(lo, uint64(d), 0)
		if carry != 0 {
			return 0, fmt.Errorf("uid %q is too big for 64 bits", s)
		}
		v = sum
	}
	if v > 0xffffffff {
		return fold64(v), nil
	}
	return uint32(v), nil
}

func fold64(v uint64) uint32 {
	v1 := v & 0xffffffff
	v2 := (v >> 32) & 0xffffffff
	uid := v1 & 0x00000fff
	uid |= (v1 & 0x0f000000) >> 12
	uid |= (v2 & 0x0000003f) << 16
	uid |= (v2 & 0x000f0000) << 6
	uid |= (v2 & 0x3f000000) << 2
	return uint32(uid)
}
