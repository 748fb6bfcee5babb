package emulator

import (
	"fmt"
	"reflect"

	"github.com/brickgen/brickgen/model"
	"github.com/brickgen/brickgen/wire"
)

// FaultKind selects how a stream_out chunk is disturbed.
type FaultKind int

const (
	// FaultSkipChunk jumps over one chunk.
	FaultSkipChunk FaultKind = iota
	// FaultRepeatChunk sends the previous chunk again.
	FaultRepeatChunk
	// FaultChangeLength reports a different total length for one chunk.
	FaultChangeLength
)

// Fault disturbs the Chunk-th chunk (counting from zero within a value) of
// the next value read from a stream_out packet. Faults fire once.
type Fault struct {
	Kind  FaultKind
	Chunk int
}

type inStream struct {
	buf      []any
	accepted int
	done     bool
	value    []any
}

type outStream struct {
	data   []any
	cursor int
	chunk  int
}

// Inject queues a fault for the stream_out packet named name.
func (e *Emulator) Inject(name string, f Fault) error {
	p, err := e.packet(name)
	if err != nil {
		return err
	}
	if p.Stream() == nil || p.Stream().Kind() != model.StreamOut {
		return fmt.Errorf("%s has no stream_out", p.Name().Space())
	}
	e.mu.Lock()
	fid := uint8(p.FunctionID())
	e.faults[fid] = append(e.faults[fid], f)
	e.mu.Unlock()
	return nil
}

// SetStreamOut sets the value served by the stream_out packet named name.
// data is a slice of chunk items, a string for char streams.
func (e *Emulator) SetStreamOut(name string, data any) error {
	p, err := e.packet(name)
	if err != nil {
		return err
	}
	s := p.Stream()
	if s == nil || s.Kind() != model.StreamOut {
		return fmt.Errorf("%s has no stream_out", p.Name().Space())
	}
	items, err := toItems(data)
	if err != nil {
		return err
	}
	if n := s.FixedLength(); n > 0 && len(items) != 0 && len(items) != n {
		return fmt.Errorf("%s needs %d items, got %d", p.Name().Space(), n, len(items))
	}
	if len(items) > s.MaxLength() {
		return fmt.Errorf("%s holds at most %d items, got %d", p.Name().Space(), s.MaxLength(), len(items))
	}
	e.mu.Lock()
	e.out[uint8(p.FunctionID())] = &outStream{data: items}
	e.mu.Unlock()
	return nil
}

// Received returns the last complete value written to the stream_in packet
// named name as a typed slice, or nil if none arrived yet.
func (e *Emulator) Received(name string) (any, error) {
	p, err := e.packet(name)
	if err != nil {
		return nil, err
	}
	s := p.Stream()
	if s == nil || s.Kind() != model.StreamIn {
		return nil, fmt.Errorf("%s has no stream_in", p.Name().Space())
	}
	e.mu.Lock()
	st := e.in[uint8(p.FunctionID())]
	e.mu.Unlock()
	if st == nil || !st.done {
		return nil, nil
	}
	return typed(s.ChunkData().Type(), st.value), nil
}

func (e *Emulator) streamIn(p *model.Packet, l wire.Layout, in []any) ([]any, error) {
	s := p.Stream()
	c := s.ChunkCardinality()

	length := s.FixedLength()
	if s.Length() != nil {
		n, err := toInt(in[l.Index(s.Length())])
		if err != nil {
			return nil, err
		}
		length = n
	}
	offset := 0
	if s.ChunkOffset() != nil {
		n, err := toInt(in[l.Index(s.ChunkOffset())])
		if err != nil {
			return nil, err
		}
		offset = n
	}
	chunk, err := toItems(in[l.Index(s.ChunkData())])
	if err != nil {
		return nil, err
	}
	if length > s.MaxLength() {
		return nil, fmt.Errorf("length %d exceeds %d", length, s.MaxLength())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fid := uint8(p.FunctionID())
	st := e.in[fid]
	if st == nil {
		st = &inStream{}
		e.in[fid] = st
	}
	if offset == 0 {
		st.buf = st.buf[:0]
		st.accepted = 0
	} else if offset != len(st.buf) {
		return nil, fmt.Errorf("chunk offset %d, expected %d", offset, len(st.buf))
	}

	n := max(min(length-offset, c), 0)
	accepted := n
	if s.ShortWrite() && e.acceptLimit > 0 {
		accepted = max(min(n, e.acceptLimit-st.accepted), 0)
	}
	st.buf = append(st.buf, chunk[:accepted]...)
	st.accepted += accepted
	if offset+n >= length || accepted < n {
		st.value = append([]any(nil), st.buf...)
		st.done = true
		e.logger.Debug("stream_in complete", "packet", p.Name().Space(), "items", len(st.value))
	}

	out := zeroValues(p)
	if s.ChunkWritten() != nil {
		out[wire.LayoutOf(p, model.Out).Index(s.ChunkWritten())] = accepted
	}
	return out, nil
}

func (e *Emulator) streamOut(p *model.Packet) ([]any, error) {
	s := p.Stream()
	c := s.ChunkCardinality()
	l := wire.LayoutOf(p, model.Out)
	out := make([]any, len(l.Fields))

	e.mu.Lock()
	defer e.mu.Unlock()
	fid := uint8(p.FunctionID())
	st := e.out[fid]
	if st == nil {
		st = &outStream{}
		e.out[fid] = st
	}

	length := len(st.data)
	if s.SingleChunk() {
		n := min(length, c)
		out[l.Index(s.Length())] = n
		out[l.Index(s.ChunkData())] = padItems(st.data[:n], c, s.ChunkData().Type())
		return out, nil
	}

	if s.FixedLength() > 0 && length == 0 {
		sentinel, _ := s.SentinelOffset()
		out[l.Index(s.ChunkOffset())] = sentinel
		out[l.Index(s.ChunkData())] = padItems(nil, c, s.ChunkData().Type())
		return out, nil
	}

	offset := st.cursor
	reported := length
	if fs := e.faults[fid]; len(fs) > 0 && fs[0].Chunk == st.chunk {
		e.faults[fid] = fs[1:]
		e.logger.Debug("injecting fault", "packet", p.Name().Space(), "kind", fs[0].Kind, "chunk", st.chunk)
		switch fs[0].Kind {
		case FaultSkipChunk:
			offset += c
		case FaultRepeatChunk:
			offset = max(offset-c, 0)
		case FaultChangeLength:
			reported = length + 1
		}
	}

	end := min(offset+c, length)
	var items []any
	if offset < length {
		items = st.data[offset:end]
	}
	if s.Length() != nil {
		out[l.Index(s.Length())] = reported
	}
	out[l.Index(s.ChunkOffset())] = offset
	out[l.Index(s.ChunkData())] = padItems(items, c, s.ChunkData().Type())

	st.cursor = offset + c
	st.chunk++
	if st.cursor >= length {
		st.cursor = 0
		st.chunk = 0
	}
	return out, nil
}

// EmitStream sends data through the stream_out callback named name, one
// callback per chunk.
func (e *Emulator) EmitStream(name string, data any) error {
	p, err := e.packet(name)
	if err != nil {
		return err
	}
	s := p.Stream()
	if p.Type() != model.Callback || s == nil {
		return fmt.Errorf("%s is not a stream callback", p.Name().Space())
	}
	items, err := toItems(data)
	if err != nil {
		return err
	}
	c := s.ChunkCardinality()
	l := wire.LayoutOf(p, model.Out)
	for off := 0; off == 0 || off < len(items); off += c {
		values := make([]any, len(l.Fields))
		if s.Length() != nil {
			values[l.Index(s.Length())] = len(items)
		}
		if s.ChunkOffset() != nil {
			values[l.Index(s.ChunkOffset())] = off
		}
		values[l.Index(s.ChunkData())] = padItems(items[off:min(off+c, len(items))], c, s.ChunkData().Type())
		payload, err := l.Encode(values...)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name().Space(), err)
		}
		e.emit(uint8(p.FunctionID()), payload)
		if s.SingleChunk() {
			break
		}
	}
	return nil
}

func padItems(items []any, n int, t model.Type) []any {
	out := make([]any, n)
	copy(out, items)
	zero := reflect.Zero(wire.GoType(t)).Interface()
	for i := len(items); i < n; i++ {
		out[i] = zero
	}
	return out
}

func typed(t model.Type, items []any) any {
	v := reflect.MakeSlice(reflect.SliceOf(wire.GoType(t)), len(items), len(items))
	for i, item := range items {
		v.Index(i).Set(reflect.ValueOf(item).Convert(wire.GoType(t)))
	}
	return v.Interface()
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
