package model

// StreamKind is the direction of a high-level stream.
type StreamKind int

const (
	StreamIn StreamKind = iota
	StreamOut
)

func (k StreamKind) String() string {
	if k == StreamIn {
		return "stream_in"
	}
	return "stream_out"
}

// Stream describes how a high-level value decomposes into low-level packets.
type Stream struct {
	kind        StreamKind
	name        *Name
	fixedLength int
	singleChunk bool
	shortWrite  bool

	length       *Element
	chunkOffset  *Element
	chunkData    *Element
	chunkWritten *Element

	data    *Element
	written *Element
}

func (s *Stream) Kind() StreamKind  { return s.kind }
func (s *Stream) Name() *Name       { return s.name }
func (s *Stream) FixedLength() int  { return s.fixedLength }
func (s *Stream) SingleChunk() bool { return s.singleChunk }

// ShortWrite is only ever true for stream_in.
func (s *Stream) ShortWrite() bool { return s.shortWrite }

// Length is nil for fixed-length streams.
func (s *Stream) Length() *Element { return s.length }

// ChunkOffset is nil for single-chunk streams.
func (s *Stream) ChunkOffset() *Element { return s.chunkOffset }

func (s *Stream) ChunkData() *Element { return s.chunkData }

// ChunkWritten is set for short-write streams.
func (s *Stream) ChunkWritten() *Element { return s.chunkWritten }

// Data is the synthesized high-level value.
func (s *Stream) Data() *Element { return s.data }

// Written is the synthesized high-level written count of short-write streams.
func (s *Stream) Written() *Element { return s.written }

// ChunkCardinality is the number of items carried per low-level packet.
func (s *Stream) ChunkCardinality() int { return s.chunkData.cardinality }

// LengthType is the type used for lengths and offsets.
func (s *Stream) LengthType() Type {
	switch {
	case s.length != nil:
		return s.length.typ
	case s.chunkOffset != nil:
		return s.chunkOffset.typ
	}
	return Uint8
}

// MaxLength is the largest value the stream can carry.
func (s *Stream) MaxLength() int {
	switch {
	case s.fixedLength > 0:
		return s.fixedLength
	case s.singleChunk:
		return s.ChunkCardinality()
	}
	return int(min(s.LengthType().MaxUint(), 1<<31-1))
}

// OffsetBits is the width of the chunk offset field, 0 without one.
func (s *Stream) OffsetBits() int {
	if s.chunkOffset == nil {
		return 0
	}
	return s.chunkOffset.typ.Bits()
}

// SentinelOffset is the chunk offset a fixed-length stream_out reports when
// it has no data at all. ok is false for streams without that convention.
func (s *Stream) SentinelOffset() (offset uint64, ok bool) {
	if s.kind != StreamOut || s.fixedLength == 0 || s.chunkOffset == nil {
		return 0, false
	}
	return s.chunkOffset.typ.MaxUint(), true
}

// streamRole tells which stream part an element is by its name suffix.
func streamRole(s *Name, e *Name) Role {
	base := s.Space()
	switch e.Space() {
	case base + " Length", base + " Total Length":
		return RoleStreamLength
	case base + " Chunk Offset":
		return RoleStreamChunkOffset
	case base + " Chunk Data", base + " Data":
		return RoleStreamChunkData
	case base + " Chunk Written", base + " Written":
		return RoleStreamChunkWritten
	}
	return RoleNone
}

// buildStream attaches roles to the packet's elements, validates the stream
// shape and synthesizes the high-level elements.
func buildStream(sc scope, p *Packet, raw *RawHighLevel) (*Stream, error) {
	if raw.StreamIn != nil && raw.StreamOut != nil {
		return nil, sc.errorf("packet cannot declare both stream_in and stream_out")
	}
	if raw.StreamIn == nil && raw.StreamOut == nil {
		return nil, sc.errorf("high_level declares neither stream_in nor stream_out")
	}
	rs := raw.StreamIn
	s := &Stream{kind: StreamIn}
	if raw.StreamOut != nil {
		rs = raw.StreamOut
		s.kind = StreamOut
		if rs.ShortWrite {
			return nil, sc.errorf("short_write is only valid for stream_in")
		}
	}
	if s.kind == StreamIn && p.typ == Callback {
		return nil, sc.errorf("callbacks cannot declare stream_in")
	}
	s.name = NewName(rs.Name)
	if s.name.Empty() {
		return nil, sc.errorf("stream name is empty")
	}
	if rs.FixedLength < 0 {
		return nil, sc.errorf("fixed_length %d is negative", rs.FixedLength)
	}
	if rs.FixedLength > 0 && rs.SingleChunk {
		return nil, sc.errorf("fixed_length and single_chunk are mutually exclusive")
	}
	if !p.name.HasSuffix("Low Level") {
		return nil, sc.errorf("packet with high_level must be named '... Low Level'")
	}
	s.fixedLength = rs.FixedLength
	s.singleChunk = rs.SingleChunk
	s.shortWrite = rs.ShortWrite

	dataDir := In
	if s.kind == StreamOut {
		dataDir = Out
	}
	for _, e := range p.elements {
		role := streamRole(s.name, e.name)
		if role == RoleNone {
			continue
		}
		esc := sc.withElement(e.name.Space())
		want := dataDir
		if role == RoleStreamChunkWritten {
			if s.kind != StreamIn {
				return nil, esc.errorf("chunk written element in stream_out")
			}
			want = Out
		}
		if e.direction != want {
			return nil, esc.errorf("stream element must have direction %s", want)
		}
		var slot **Element
		switch role {
		case RoleStreamLength:
			slot = &s.length
		case RoleStreamChunkOffset:
			slot = &s.chunkOffset
		case RoleStreamChunkData:
			slot = &s.chunkData
		case RoleStreamChunkWritten:
			slot = &s.chunkWritten
		}
		if *slot != nil {
			return nil, esc.errorf("duplicate %s element", role)
		}
		if role != RoleStreamChunkData {
			if !e.typ.IsUnsigned() || e.cardinality != 1 {
				return nil, esc.errorf("%s element must be a scalar unsigned integer", role)
			}
			if e.typ == Uint64 {
				return nil, esc.errorf("%s element must be at most 32 bits wide", role)
			}
		}
		*slot = e
		e.role = role
		e.level = LevelLow
	}

	if s.chunkData == nil {
		return nil, sc.errorf("stream %q has no chunk data element", rs.Name)
	}
	if s.chunkData.isStruct {
		return nil, sc.withElement(s.chunkData.name.Space()).errorf("chunk data cannot be a struct")
	}
	switch {
	case s.fixedLength > 0:
		if s.length != nil {
			return nil, sc.errorf("fixed-length stream %q must not have a length element", rs.Name)
		}
		if s.chunkOffset == nil {
			return nil, sc.errorf("fixed-length stream %q needs a chunk offset element", rs.Name)
		}
		if uint64(s.fixedLength) >= s.chunkOffset.typ.MaxUint() {
			return nil, sc.errorf("fixed_length %d does not fit the chunk offset type %s", s.fixedLength, s.chunkOffset.typ)
		}
	case s.singleChunk:
		if s.chunkOffset != nil {
			return nil, sc.errorf("single-chunk stream %q must not have a chunk offset element", rs.Name)
		}
		if s.length == nil {
			return nil, sc.errorf("single-chunk stream %q needs a length element", rs.Name)
		}
	default:
		if s.length == nil {
			return nil, sc.errorf("stream %q needs a length element", rs.Name)
		}
		if s.chunkOffset == nil {
			return nil, sc.errorf("stream %q needs a chunk offset element", rs.Name)
		}
	}
	if s.length != nil && s.chunkOffset != nil && s.length.typ != s.chunkOffset.typ {
		return nil, sc.errorf("stream %q: length type %s does not match chunk offset type %s", rs.Name, s.length.typ, s.chunkOffset.typ)
	}
	if s.length != nil && s.singleChunk && uint64(s.ChunkCardinality()) > s.length.typ.MaxUint() {
		return nil, sc.errorf("stream %q: chunk cardinality exceeds length type %s", rs.Name, s.length.typ)
	}
	if s.shortWrite && s.chunkWritten == nil {
		return nil, sc.errorf("short-write stream %q needs a chunk written element", rs.Name)
	}
	if !s.shortWrite && s.chunkWritten != nil {
		return nil, sc.errorf("stream %q has a chunk written element but no short_write", rs.Name)
	}

	card := -s.MaxLength()
	if s.fixedLength > 0 {
		card = s.fixedLength
	}
	s.data = &Element{
		packet:      p,
		name:        s.name,
		typ:         s.chunkData.typ,
		cardinality: card,
		direction:   dataDir,
		level:       LevelHigh,
		role:        RoleStreamData,
		meta:        s.chunkData.meta,
	}
	if s.shortWrite {
		wtyp := s.LengthType()
		if s.singleChunk {
			wtyp = s.chunkWritten.typ
		}
		s.written = &Element{
			packet:      p,
			name:        s.name.Join(NewName("Written")),
			typ:         wtyp,
			cardinality: 1,
			direction:   Out,
			level:       LevelHigh,
			role:        RoleStreamWritten,
			meta:        []*Meta{{Scale: IdentityScale}},
		}
	}
	return s, nil
}
