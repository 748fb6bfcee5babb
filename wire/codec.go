package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/brickgen/brickgen/model"
)

// GoType is the Go type a single item of t decodes into.
func GoType(t model.Type) reflect.Type {
	switch t {
	case model.Int8:
		return reflect.TypeFor[int8]()
	case model.Int16:
		return reflect.TypeFor[int16]()
	case model.Int32:
		return reflect.TypeFor[int32]()
	case model.Int64:
		return reflect.TypeFor[int64]()
	case model.Uint8:
		return reflect.TypeFor[uint8]()
	case model.Uint16:
		return reflect.TypeFor[uint16]()
	case model.Uint32:
		return reflect.TypeFor[uint32]()
	case model.Uint64:
		return reflect.TypeFor[uint64]()
	case model.Float:
		return reflect.TypeFor[float32]()
	case model.Bool:
		return reflect.TypeFor[bool]()
	case model.Char:
		return reflect.TypeFor[rune]()
	case model.String:
		return reflect.TypeFor[string]()
	}
	return nil
}

// Encode packs one value per field. Scalars take any Go integer or float
// kind that fits and nil encodes as zero. Arrays take a slice or array of
// exactly the cardinality. Strings shorter than the cardinality are zero
// padded.
func (l Layout) Encode(values ...any) ([]byte, error) {
	if len(values) != len(l.Fields) {
		return nil, fmt.Errorf("layout has %d fields, got %d values", len(l.Fields), len(values))
	}
	buf := make([]byte, l.Size)
	for i, f := range l.Fields {
		if err := encodeField(buf[f.Offset:f.Offset+f.Size], f.Element, values[i]); err != nil {
			return nil, fmt.Errorf("element %q: %w", f.Element.Name().Space(), err)
		}
	}
	return buf, nil
}

// Decode unpacks payload into one value per field, using GoType items and
// []item slices for arrays. Strings end at the first NUL.
func (l Layout) Decode(payload []byte) ([]any, error) {
	if len(payload) != l.Size {
		return nil, fmt.Errorf("payload has %d bytes, layout needs %d", len(payload), l.Size)
	}
	out := make([]any, len(l.Fields))
	for i, f := range l.Fields {
		out[i] = decodeField(payload[f.Offset:f.Offset+f.Size], f.Element)
	}
	return out, nil
}

func encodeField(b []byte, e *model.Element, v any) error {
	typ := e.Type()
	n := e.Cardinality()

	if typ == model.String {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		if len(s) > n {
			return fmt.Errorf("string of %d bytes exceeds %d", len(s), n)
		}
		copy(b, s)
		return nil
	}

	if n == 1 {
		return encodeItem(b, typ, reflect.ValueOf(v))
	}

	rv := reflect.ValueOf(v)
	if typ == model.Char && rv.Kind() == reflect.String {
		rv = reflect.ValueOf([]rune(rv.String()))
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected %d items, got %T", n, v)
	}
	if rv.Len() != n {
		return fmt.Errorf("expected %d items, got %d", n, rv.Len())
	}
	if typ == model.Bool {
		for i := 0; i < n; i++ {
			item := rv.Index(i)
			for item.Kind() == reflect.Interface {
				item = item.Elem()
			}
			if !item.IsValid() {
				continue
			}
			if item.Kind() != reflect.Bool {
				return fmt.Errorf("expected bool items, got %s", item.Type())
			}
			if item.Bool() {
				b[i/8] |= 1 << (i % 8)
			}
		}
		return nil
	}
	size := typ.ItemSize()
	for i := 0; i < n; i++ {
		if err := encodeItem(b[i*size:(i+1)*size], typ, rv.Index(i)); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func encodeItem(b []byte, typ model.Type, rv reflect.Value) error {
	for rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		// nil encodes as zero
		return nil
	}
	switch typ {
	case model.Bool:
		if rv.Kind() != reflect.Bool {
			return fmt.Errorf("expected bool, got %s", rv.Type())
		}
		if rv.Bool() {
			b[0] = 1
		}
		return nil
	case model.Float:
		var f float64
		switch {
		case rv.CanFloat():
			f = rv.Float()
		case rv.CanInt():
			f = float64(rv.Int())
		case rv.CanUint():
			f = float64(rv.Uint())
		default:
			return fmt.Errorf("expected float, got %s", rv.Type())
		}
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f)))
		return nil
	case model.Char:
		if rv.Kind() == reflect.String {
			if rv.Len() != 1 {
				return fmt.Errorf("char needs exactly one byte, got %q", rv.String())
			}
			b[0] = rv.String()[0]
			return nil
		}
	}

	var u uint64
	switch {
	case rv.CanInt():
		i := rv.Int()
		if err := checkSigned(typ, i); err != nil {
			return err
		}
		u = uint64(i)
	case rv.CanUint():
		x := rv.Uint()
		if err := checkUnsigned(typ, x); err != nil {
			return err
		}
		u = x
	default:
		return fmt.Errorf("expected %s, got %s", typ, rv.Type())
	}
	switch typ.ItemSize() {
	case 1:
		b[0] = uint8(u)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(u))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(u))
	case 8:
		binary.LittleEndian.PutUint64(b, u)
	}
	return nil
}

func checkSigned(typ model.Type, i int64) error {
	if typ == model.Char {
		typ = model.Uint8
	}
	if typ.IsSigned() {
		bits := typ.Bits()
		if bits < 64 && (i < -(1<<(bits-1)) || i >= 1<<(bits-1)) {
			return fmt.Errorf("%d overflows %s", i, typ)
		}
		return nil
	}
	if i < 0 {
		return fmt.Errorf("%d is negative for %s", i, typ)
	}
	return checkUnsigned(typ, uint64(i))
}

func checkUnsigned(typ model.Type, u uint64) error {
	if typ == model.Char {
		typ = model.Uint8
	}
	if typ.IsSigned() {
		if u >= 1<<(typ.Bits()-1) {
			return fmt.Errorf("%d overflows %s", u, typ)
		}
		return nil
	}
	if u > typ.MaxUint() {
		return fmt.Errorf("%d overflows %s", u, typ)
	}
	return nil
}

func decodeField(b []byte, e *model.Element) any {
	typ := e.Type()
	n := e.Cardinality()
	if typ == model.String {
		for i, c := range b {
			if c == 0 {
				return string(b[:i])
			}
		}
		return string(b)
	}
	if n == 1 {
		return decodeItem(b, typ).Interface()
	}
	out := reflect.MakeSlice(reflect.SliceOf(GoType(typ)), n, n)
	if typ == model.Bool {
		for i := 0; i < n; i++ {
			out.Index(i).SetBool(b[i/8]&(1<<(i%8)) != 0)
		}
		return out.Interface()
	}
	size := typ.ItemSize()
	for i := 0; i < n; i++ {
		out.Index(i).Set(decodeItem(b[i*size:(i+1)*size], typ))
	}
	return out.Interface()
}

func decodeItem(b []byte, typ model.Type) reflect.Value {
	var v any
	switch typ {
	case model.Int8:
		v = int8(b[0])
	case model.Uint8:
		v = b[0]
	case model.Int16:
		v = int16(binary.LittleEndian.Uint16(b))
	case model.Uint16:
		v = binary.LittleEndian.Uint16(b)
	case model.Int32:
		v = int32(binary.LittleEndian.Uint32(b))
	case model.Uint32:
		v = binary.LittleEndian.Uint32(b)
	case model.Int64:
		v = int64(binary.LittleEndian.Uint64(b))
	case model.Uint64:
		v = binary.LittleEndian.Uint64(b)
	case model.Float:
		v = math.Float32frombits(binary.LittleEndian.Uint32(b))
	case model.Bool:
		v = b[0] != 0
	case model.Char:
		v = rune(b[0])
	}
	return reflect.ValueOf(v)
}
