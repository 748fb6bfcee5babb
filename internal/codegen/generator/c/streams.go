package cgen

import (
	"fmt"
	"strings"

	"github.com/brickgen/brickgen/internal/codegen/format"
	"github.com/brickgen/brickgen/model"
)

// streamNames are the C identifiers used by one high-level stream function.
type streamNames struct {
	s        *model.Stream
	data     string // high-level parameter
	length   string // high-level length parameter or local
	offset   string
	chunk    string
	chunkLen string
	written  string
	itemType string
	lenType  string
	size     int
}

func newStreamNames(s *model.Stream) streamNames {
	data := s.Data().Name().Under()
	n := streamNames{
		s:        s,
		data:     data,
		length:   data + "_length",
		chunk:    s.ChunkData().Name().Under(),
		chunkLen: data + "_chunk_length",
		itemType: format.CType(s.ChunkData().Type()),
		lenType:  format.CType(s.LengthType()),
		size:     s.ChunkCardinality(),
	}
	if s.ChunkOffset() != nil {
		n.offset = s.ChunkOffset().Name().Under()
	}
	if s.ChunkWritten() != nil {
		n.written = s.ChunkWritten().Name().Under()
	}
	return n
}

// total is the C expression of the value length.
func (n streamNames) total() string {
	if n.s.FixedLength() > 0 {
		return fmt.Sprint(n.s.FixedLength())
	}
	return n.length
}

// highLevel builds the stream function of p, or false for packets without
// a function level stream.
func (d *device) highLevel(p *model.Packet) (function, bool) {
	s := p.Stream()
	if s == nil || p.Type() != model.Function {
		return function{}, false
	}
	n := newStreamNames(s)
	var params []string
	for _, e := range p.Elements(model.Filter{Direction: model.In, HighLevel: true}) {
		switch e.Role() {
		case model.RoleStreamData:
			params = append(params, fmt.Sprintf("const %s *%s", n.itemType, n.data))
			if s.FixedLength() == 0 {
				params = append(params, n.lenType+" "+n.length)
			}
		default:
			params = append(params, inParam(e))
		}
	}
	for _, e := range p.Elements(model.Filter{Direction: model.Out, HighLevel: true}) {
		switch e.Role() {
		case model.RoleStreamData:
			params = append(params, fmt.Sprintf("%s *ret_%s", n.itemType, n.data))
			params = append(params, fmt.Sprintf("%s *ret_%s", n.lenType, n.length))
		case model.RoleStreamWritten:
			params = append(params, fmt.Sprintf("%s *ret_%s", format.CType(e.Type()), e.Name().Under()))
		default:
			params = append(params, outParam(e))
		}
	}

	var b body
	switch {
	case s.Kind() == model.StreamIn && s.SingleChunk():
		d.singleStreamIn(&b, p, n)
	case s.Kind() == model.StreamIn:
		d.streamIn(&b, p, n)
	case s.SingleChunk():
		d.singleStreamOut(&b, p, n)
	default:
		d.streamOut(&b, p, n)
	}
	return function{
		Doc:   docComment(p, d),
		Proto: d.proto("int", p.HighLevelName(), params),
		Body:  b.String(),
	}, true
}

// lowLevelCall passes the stream locals of n and every other parameter
// through to the low-level function of p.
func (d *device) lowLevelCall(p *model.Packet, n streamNames) string {
	args := []string{d.Var}
	for _, e := range p.Elements(model.Filter{Direction: model.In}) {
		switch e.Role() {
		case model.RoleStreamLength:
			args = append(args, n.total())
		case model.RoleStreamChunkOffset:
			args = append(args, n.offset)
		case model.RoleStreamChunkData:
			args = append(args, n.chunk)
		default:
			args = append(args, e.Name().Under())
		}
	}
	for _, e := range p.Elements(model.Filter{Direction: model.Out}) {
		switch e.Role() {
		case model.RoleStreamLength:
			args = append(args, "&"+n.length)
		case model.RoleStreamChunkOffset:
			args = append(args, "&"+n.offset)
		case model.RoleStreamChunkData:
			args = append(args, n.chunk)
		case model.RoleStreamChunkWritten:
			args = append(args, "&"+n.written)
		default:
			args = append(args, "ret_"+e.Name().Under())
		}
	}
	return fmt.Sprintf("ret = %s(%s);", d.funcName(p.Name()), strings.Join(args, ", "))
}

func (d *device) writtenRet(p *model.Packet) string {
	return "ret_" + p.Stream().Written().Name().Under()
}

func (d *device) streamIn(b *body, p *model.Packet, n streamNames) {
	s := n.s
	short := s.ShortWrite()
	fixed := s.FixedLength() > 0
	call := d.lowLevelCall(p, n)

	b.line("DevicePrivate *device_p = %s->p;", d.Var)
	b.line("int ret = 0;")
	b.line("%s %s = 0;", format.CType(s.ChunkOffset().Type()), n.offset)
	b.line("%s %s[%d];", n.itemType, n.chunk, n.size)
	b.line("%s %s;", n.lenType, n.chunkLen)
	if short {
		b.line("%s %s;", format.CType(s.ChunkWritten().Type()), n.written)
	}
	b.blank()
	if short {
		b.line("*%s = 0;", d.writtenRet(p))
		b.blank()
	}

	ind := ""
	if !fixed {
		b.line("if (%s == 0) {", n.length)
		b.line("\tmemset(&%s, 0, sizeof(%s) * %d);", n.chunk, n.itemType, n.size)
		b.blank()
		b.line("\t%s", call)
		if short {
			b.blank()
			b.line("\tif (ret == E_OK) {")
			b.line("\t\t*%s = %s;", d.writtenRet(p), n.written)
			b.line("\t}")
		}
		b.line("} else {")
		ind = "\t"
	}
	b.line("%smutex_lock(&device_p->stream_mutex);", ind)
	b.blank()
	b.line("%swhile (%s < %s) {", ind, n.offset, n.total())
	b.line("%s\t%s = %s - %s;", ind, n.chunkLen, n.total(), n.offset)
	b.blank()
	b.line("%s\tif (%s > %d) {", ind, n.chunkLen, n.size)
	b.line("%s\t\t%s = %d;", ind, n.chunkLen, n.size)
	b.line("%s\t}", ind)
	b.blank()
	b.line("%s\tmemcpy(%s, &%s[%s], sizeof(%s) * %s);", ind, n.chunk, n.data, n.offset, n.itemType, n.chunkLen)
	b.line("%s\tmemset(&%s[%s], 0, sizeof(%s) * (%d - %s));", ind, n.chunk, n.chunkLen, n.itemType, n.size, n.chunkLen)
	b.blank()
	b.line("%s\t%s", ind, call)
	b.blank()
	b.line("%s\tif (ret != E_OK) {", ind)
	if short {
		b.line("%s\t\t*%s = 0;", ind, d.writtenRet(p))
		b.blank()
	}
	b.line("%s\t\tbreak;", ind)
	b.line("%s\t}", ind)
	if short {
		b.blank()
		b.line("%s\t*%s += %s;", ind, d.writtenRet(p), n.written)
		b.blank()
		b.line("%s\tif (%s < %d) {", ind, n.written, n.size)
		b.line("%s\t\tbreak; // either last chunk or short write", ind)
		b.line("%s\t}", ind)
	}
	b.blank()
	b.line("%s\t%s += %d;", ind, n.offset, n.size)
	b.line("%s}", ind)
	b.blank()
	b.line("%smutex_unlock(&device_p->stream_mutex);", ind)
	if !fixed {
		b.line("}")
	}
	b.blank()
	b.line("return ret;")
}

func (d *device) singleStreamIn(b *body, p *model.Packet, n streamNames) {
	short := n.s.ShortWrite()

	b.line("int ret;")
	b.line("%s %s[%d];", n.itemType, n.chunk, n.size)
	if short {
		b.line("%s %s;", format.CType(n.s.ChunkWritten().Type()), n.written)
	}
	b.blank()
	if short {
		b.line("*%s = 0;", d.writtenRet(p))
		b.blank()
	}
	b.line("if (%s > %d) {", n.length, n.size)
	b.line("\treturn E_INVALID_PARAMETER;")
	b.line("}")
	b.blank()
	b.line("memcpy(%s, %s, sizeof(%s) * %s);", n.chunk, n.data, n.itemType, n.length)
	b.line("memset(&%s[%s], 0, sizeof(%s) * (%d - %s));", n.chunk, n.length, n.itemType, n.size, n.length)
	b.blank()
	b.line("%s", d.lowLevelCall(p, n))
	if short {
		b.blank()
		b.line("if (ret == E_OK) {")
		b.line("\t*%s = %s;", d.writtenRet(p), n.written)
		b.line("}")
	}
	b.blank()
	b.line("return ret;")
}

func (d *device) streamOut(b *body, p *model.Packet, n streamNames) {
	s := n.s
	fixed := s.FixedLength() > 0
	call := d.lowLevelCall(p, n)
	ret := "*ret_" + n.length
	retData := "ret_" + n.data

	b.line("DevicePrivate *device_p = %s->p;", d.Var)
	b.line("int ret = 0;")
	if !fixed {
		b.line("%s %s = 0;", n.lenType, n.length)
		b.line("%s %s_expected = 0;", n.lenType, n.length)
	}
	b.line("%s %s = 0;", format.CType(s.ChunkOffset().Type()), n.offset)
	b.line("%s %s[%d];", n.itemType, n.chunk, n.size)
	b.line("bool %s_out_of_sync;", n.data)
	b.line("%s %s;", n.lenType, n.chunkLen)
	b.blank()
	b.line("%s = 0;", ret)
	b.blank()
	b.line("mutex_lock(&device_p->stream_mutex);")
	b.blank()
	b.line("%s", call)
	b.blank()
	b.line("if (ret != E_OK) {")
	b.line("\tgoto unlock;")
	b.line("}")
	b.blank()
	if sentinel, ok := s.SentinelOffset(); ok {
		b.line("if (%s == 0x%X) { // no data", n.offset, sentinel)
		b.line("\tgoto unlock;")
		b.line("}")
		b.blank()
	}
	if !fixed {
		b.line("%s_expected = %s;", n.length, n.length)
	}
	b.line("%s_out_of_sync = %s != 0;", n.data, n.offset)
	b.blank()
	b.line("if (!%s_out_of_sync) {", n.data)
	b.line("\t%s = %s - %s;", n.chunkLen, n.total(), n.offset)
	b.blank()
	b.line("\tif (%s > %d) {", n.chunkLen, n.size)
	b.line("\t\t%s = %d;", n.chunkLen, n.size)
	b.line("\t}")
	b.blank()
	b.line("\tmemcpy(%s, %s, sizeof(%s) * %s);", retData, n.chunk, n.itemType, n.chunkLen)
	b.blank()
	b.line("\t%s = %s;", ret, n.chunkLen)
	b.blank()
	b.line("\twhile (%s < %s) {", ret, n.total())
	b.line("\t\t%s", call)
	b.blank()
	b.line("\t\tif (ret != E_OK) {")
	b.line("\t\t\tgoto unlock;")
	b.line("\t\t}")
	b.blank()
	if fixed {
		b.line("\t\t%s_out_of_sync = %s != %s;", n.data, n.offset, ret)
	} else {
		b.line("\t\t%s_out_of_sync = %s != %s || %s != %s_expected;", n.data, n.offset, ret, n.length, n.length)
	}
	b.blank()
	b.line("\t\tif (%s_out_of_sync) {", n.data)
	b.line("\t\t\tbreak;")
	b.line("\t\t}")
	b.blank()
	b.line("\t\t%s = %s - %s;", n.chunkLen, n.total(), n.offset)
	b.blank()
	b.line("\t\tif (%s > %d) {", n.chunkLen, n.size)
	b.line("\t\t\t%s = %d;", n.chunkLen, n.size)
	b.line("\t\t}")
	b.blank()
	b.line("\t\tmemcpy(&%s[%s], %s, sizeof(%s) * %s);", retData, ret, n.chunk, n.itemType, n.chunkLen)
	b.blank()
	b.line("\t\t%s += %s;", ret, n.chunkLen)
	b.line("\t}")
	b.line("}")
	b.blank()
	b.line("if (%s_out_of_sync) {", n.data)
	b.line("\t%s = 0; // discard already read data", ret)
	b.blank()
	b.line("\t// discard remaining stream to bring it back in-sync")
	b.line("\twhile (%s + %d < %s) {", n.offset, n.size, n.total())
	b.line("\t\t%s", call)
	b.blank()
	b.line("\t\tif (ret != E_OK) {")
	b.line("\t\t\tgoto unlock;")
	b.line("\t\t}")
	b.line("\t}")
	b.blank()
	b.line("\tret = E_STREAM_OUT_OF_SYNC;")
	b.line("}")
	b.blank()
	b.lns = append(b.lns, "unlock:")
	b.line("mutex_unlock(&device_p->stream_mutex);")
	b.blank()
	b.line("return ret;")
}

func (d *device) singleStreamOut(b *body, p *model.Packet, n streamNames) {
	b.line("int ret;")
	b.line("%s %s;", n.lenType, n.length)
	b.line("%s %s[%d];", n.itemType, n.chunk, n.size)
	b.blank()
	b.line("*ret_%s = 0;", n.length)
	b.blank()
	b.line("%s", d.lowLevelCall(p, n))
	b.blank()
	b.line("if (ret != E_OK) {")
	b.line("\treturn ret;")
	b.line("}")
	b.blank()
	b.line("if (%s > %d) {", n.length, n.size)
	b.line("\treturn E_INVALID_PARAMETER;")
	b.line("}")
	b.blank()
	b.line("memcpy(ret_%s, %s, sizeof(%s) * %s);", n.data, n.chunk, n.itemType, n.length)
	b.blank()
	b.line("*ret_%s = %s;", n.length, n.length)
	b.blank()
	b.line("return ret;")
}
