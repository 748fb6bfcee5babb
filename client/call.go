package client

import (
	"context"
	"fmt"
	"reflect"

	"github.com/brickgen/brickgen/model"
	"github.com/brickgen/brickgen/stream"
	"github.com/brickgen/brickgen/wire"
)

// Call performs the low-level call of p, packing one value per in element
// and returning one value per out element. A call without a response
// returns nil values.
func (d *Device) Call(ctx context.Context, p *model.Packet, values ...any) ([]any, error) {
	if p.Type() != model.Function || p.Virtual() {
		return nil, fmt.Errorf("%s is not a callable function", p.Name().Space())
	}
	payload, err := wire.LayoutOf(p, model.In).Encode(values...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name().Space(), err)
	}
	fid := uint8(p.FunctionID())
	var resp []byte
	if p.ResponseExpected() == model.ResponseAlwaysTrue {
		resp, err = d.Get(ctx, fid, payload)
	} else {
		resp, err = d.Set(ctx, fid, payload)
	}
	if err != nil || resp == nil {
		return nil, err
	}
	out, err := wire.LayoutOf(p, model.Out).Decode(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name().Space(), err)
	}
	return out, nil
}

// WriteStream performs the high-level call of a stream_in packet. data is a
// slice of chunk items (a string is accepted for char streams); extra holds
// the values of the other in elements in declaration order. It returns the
// written count and the non-stream out values of the last chunk.
func (d *Device) WriteStream(ctx context.Context, p *model.Packet, data any, extra ...any) (int, []any, error) {
	s := p.Stream()
	if s == nil || s.Kind() != model.StreamIn {
		return 0, nil, fmt.Errorf("%s has no stream_in", p.Name().Space())
	}
	items, err := toItems(data)
	if err != nil {
		return 0, nil, err
	}
	in := wire.LayoutOf(p, model.In)
	out := wire.LayoutOf(p, model.Out)

	var last []any
	written, err := stream.Write(ctx, d.StreamGuard(), stream.ConfigOf(s), items,
		func(ctx context.Context, c stream.InChunk[any]) (int, error) {
			values, err := fillIn(in, c, extra)
			if err != nil {
				return 0, err
			}
			resp, err := d.Call(ctx, p, values...)
			if err != nil {
				return 0, err
			}
			last = resp
			if s.ChunkWritten() == nil || resp == nil {
				return 0, nil
			}
			return toInt(resp[out.Index(s.ChunkWritten())])
		})
	if err != nil {
		return 0, nil, err
	}
	return written, plainValues(out, last), nil
}

// ReadStream performs the high-level call of a stream_out packet. It
// returns the value as a typed slice (see wire.GoType) and the non-stream
// out values of the last chunk.
func (d *Device) ReadStream(ctx context.Context, p *model.Packet, extra ...any) (any, []any, error) {
	s := p.Stream()
	if s == nil || s.Kind() != model.StreamOut {
		return nil, nil, fmt.Errorf("%s has no stream_out", p.Name().Space())
	}
	out := wire.LayoutOf(p, model.Out)

	var last []any
	items, err := stream.Read(ctx, d.StreamGuard(), stream.ConfigOf(s),
		func(ctx context.Context) (stream.OutChunk[any], error) {
			resp, err := d.Call(ctx, p, extra...)
			if err != nil {
				return stream.OutChunk[any]{}, err
			}
			last = resp
			return outChunk(out, s, resp)
		})
	if err != nil {
		return nil, nil, err
	}

	typed := reflect.MakeSlice(reflect.SliceOf(wire.GoType(s.ChunkData().Type())), len(items), len(items))
	for i, v := range items {
		typed.Index(i).Set(reflect.ValueOf(v))
	}
	return typed.Interface(), plainValues(out, last), nil
}

func fillIn(l wire.Layout, c stream.InChunk[any], extra []any) ([]any, error) {
	values := make([]any, len(l.Fields))
	next := 0
	for i, f := range l.Fields {
		switch f.Element.Role() {
		case model.RoleStreamLength:
			values[i] = c.Length
		case model.RoleStreamChunkOffset:
			values[i] = c.Offset
		case model.RoleStreamChunkData:
			values[i] = c.Data
		default:
			if next >= len(extra) {
				return nil, fmt.Errorf("missing value for %s", f.Element.Name().Space())
			}
			values[i] = extra[next]
			next++
		}
	}
	return values, nil
}

func outChunk(l wire.Layout, s *model.Stream, values []any) (stream.OutChunk[any], error) {
	var c stream.OutChunk[any]
	if values == nil {
		return c, fmt.Errorf("stream_out without response")
	}
	var err error
	if e := s.Length(); e != nil {
		if c.Length, err = toInt(values[l.Index(e)]); err != nil {
			return c, err
		}
	}
	if e := s.ChunkOffset(); e != nil {
		if c.Offset, err = toInt(values[l.Index(e)]); err != nil {
			return c, err
		}
	}
	c.Data, err = toItems(values[l.Index(s.ChunkData())])
	return c, err
}

// plainValues drops the stream parts from decoded out values.
func plainValues(l wire.Layout, values []any) []any {
	if values == nil {
		return nil
	}
	var out []any
	for i, f := range l.Fields {
		if f.Element.Role() == model.RoleNone {
			out = append(out, values[i])
		}
	}
	return out
}

func toItems(data any) ([]any, error) {
	if data == nil {
		return nil, nil
	}
	if s, ok := data.(string); ok {
		items := make([]any, len(s))
		for i := 0; i < len(s); i++ {
			items[i] = rune(s[i])
		}
		return items, nil
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a slice, got %T", data)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

func toInt(v any) (int, error) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return int(rv.Int()), nil
	case rv.CanUint():
		return int(rv.Uint()), nil
	}
	return 0, fmt.Errorf("expected an integer, got %T", v)
}
