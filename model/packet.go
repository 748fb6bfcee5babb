package model

import (
	"slices"
	"strings"
)

// MaxPayload is the payload budget of one low-level packet per direction.
const MaxPayload = 64

// PacketType is function or callback.
type PacketType string

const (
	Function PacketType = "function"
	Callback PacketType = "callback"
)

// ResponseExpected is the response policy of a function.
type ResponseExpected int

const (
	ResponseInvalid ResponseExpected = iota
	// AlwaysTrue is fixed for getters, they cannot work without a response.
	ResponseAlwaysTrue
	// AlwaysFalse is fixed for callbacks.
	ResponseAlwaysFalse
	// True and False are defaults the caller may change at runtime.
	ResponseTrue
	ResponseFalse
)

func (r ResponseExpected) String() string {
	switch r {
	case ResponseAlwaysTrue:
		return "always_true"
	case ResponseAlwaysFalse:
		return "always_false"
	case ResponseTrue:
		return "true"
	case ResponseFalse:
		return "false"
	}
	return "invalid"
}

// DocType classifies a packet for documentation ordering.
type DocType string

const (
	DocBasicFunction          DocType = "bf"
	DocAdvancedFunction       DocType = "af"
	DocCallbackConfigFunction DocType = "ccf"
	DocLowLevelFunction       DocType = "llf"
	DocCallback               DocType = "c"
	DocLowLevelCallback       DocType = "llc"
	DocBasicMethod            DocType = "bm"
	DocAdvancedMethod         DocType = "am"
	DocCallbackConfigMethod   DocType = "ccm"
)

func (d DocType) forFunction() bool {
	switch d {
	case DocBasicFunction, DocAdvancedFunction, DocCallbackConfigFunction, DocLowLevelFunction:
		return true
	}
	return false
}

func (d DocType) forCallback() bool { return d == DocCallback || d == DocLowLevelCallback }

func (d DocType) forMethod() bool {
	return d == DocBasicMethod || d == DocAdvancedMethod || d == DocCallbackConfigMethod
}

// Doc is the doc type plus per-language text.
type Doc struct {
	Type DocType
	text map[Lang]string
}

// Text returns the text in lang, falling back to English.
func (d Doc) Text(lang Lang) string {
	if t, ok := d.text[lang]; ok {
		return t
	}
	return d.text[LangEN]
}

// Packet is one function or callback of a device.
type Packet struct {
	device           *Device
	typ              PacketType
	name             *Name
	functionID       int
	sinceFirmware    Version
	responseExpected ResponseExpected
	virtual          bool
	docOnly          bool
	doc              Doc
	elements         []*Element
	highLevel        []*Element
	stream           *Stream
}

func (p *Packet) Device() *Device                    { return p.device }
func (p *Packet) Type() PacketType                   { return p.typ }
func (p *Packet) Name() *Name                        { return p.name }
func (p *Packet) FunctionID() int                    { return p.functionID }
func (p *Packet) SinceFirmware() Version             { return p.sinceFirmware }
func (p *Packet) ResponseExpected() ResponseExpected { return p.responseExpected }
func (p *Packet) Doc() Doc                           { return p.doc }

// Stream is nil for packets without a high_level declaration.
func (p *Packet) Stream() *Stream { return p.stream }

// Virtual packets are exempt from the payload budget and are not sent on the
// wire as declared.
func (p *Packet) Virtual() bool { return p.virtual || p.docOnly }

// DocOnly packets (function id -1) describe device-level methods.
func (p *Packet) DocOnly() bool { return p.docOnly }

// HighLevelName drops the trailing "Low Level" of stream packets.
func (p *Packet) HighLevelName() *Name {
	if p.stream == nil {
		return p.name
	}
	return p.name.Skip(-2)
}

// Filter selects elements of a packet. The zero value selects every wire
// element.
type Filter struct {
	// Direction restricts to in or out; empty matches both.
	Direction Direction
	// HighLevel selects the view of the high-level call: stream parts are
	// replaced by the synthesized value and written count.
	HighLevel bool
	// Roles restricts to the listed roles; nil matches all.
	Roles []Role
}

// Elements returns the elements matching f in declaration order.
func (p *Packet) Elements(f Filter) []*Element {
	src := p.elements
	if f.HighLevel {
		src = p.highLevel
	}
	var out []*Element
	for _, e := range src {
		if f.Direction != "" && e.direction != f.Direction {
			continue
		}
		if f.Roles != nil && !slices.Contains(f.Roles, e.role) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// RequestSize is the wire payload size of the request.
func (p *Packet) RequestSize() int { return p.payloadSize(In) }

// ResponseSize is the wire payload size of the response (or callback).
func (p *Packet) ResponseSize() int { return p.payloadSize(Out) }

func (p *Packet) payloadSize(dir Direction) int {
	n := 0
	for _, e := range p.elements {
		if e.direction == dir {
			sz, _ := e.Size()
			n += sz
		}
	}
	return n
}

// IsGetter reports whether the function returns data.
func (p *Packet) IsGetter() bool {
	if p.typ != Function {
		return false
	}
	for _, e := range p.elements {
		if e.direction == Out {
			return true
		}
	}
	return false
}

func buildPacket(sc scope, raw RawPacket, groups map[string]*ConstantGroup) (*Packet, error) {
	sc = sc.withPacket(raw.Name)
	p := &Packet{name: NewName(raw.Name), virtual: raw.Virtual}
	p.docOnly = raw.FunctionID != nil && *raw.FunctionID == -1
	if p.name.Empty() {
		return nil, sc.errorf("packet name is empty")
	}
	switch PacketType(raw.Type) {
	case Function, Callback:
		p.typ = PacketType(raw.Type)
	default:
		return nil, sc.errorf("invalid packet type %q", raw.Type)
	}

	v, err := versionFromSlice(raw.SinceFirmware)
	if err != nil {
		return nil, sc.errorf("since_firmware: %v", err)
	}
	p.sinceFirmware = v

	if err := p.buildDoc(sc, raw.Doc); err != nil {
		return nil, err
	}

	eb := &elementBuilder{sc: sc, groups: groups}
	seen := map[string]bool{}
	sawOut := false
	for _, re := range raw.Elements {
		e, err := eb.build(re)
		if err != nil {
			return nil, err
		}
		esc := sc.withElement(re.Name)
		key := strings.ToLower(e.name.Space())
		if seen[key] {
			return nil, esc.errorf("duplicate element name")
		}
		seen[key] = true
		if e.direction == In {
			if p.typ == Callback {
				return nil, esc.errorf("callbacks cannot have in elements")
			}
			if sawOut {
				return nil, esc.errorf("in element follows an out element")
			}
		} else {
			sawOut = true
		}
		e.packet = p
		p.elements = append(p.elements, e)
	}

	if raw.HighLevel != nil {
		s, err := buildStream(sc, p, raw.HighLevel)
		if err != nil {
			return nil, err
		}
		p.stream = s
	}
	p.highLevel = p.highLevelView()

	if !p.Virtual() {
		if n := p.RequestSize(); n > MaxPayload {
			return nil, sc.errorf("request payload is %d bytes, limit is %d", n, MaxPayload)
		}
		if n := p.ResponseSize(); n > MaxPayload {
			return nil, sc.errorf("response payload is %d bytes, limit is %d", n, MaxPayload)
		}
	}

	re, err := p.decideResponseExpected(sc, raw.ResponseExpected)
	if err != nil {
		return nil, err
	}
	p.responseExpected = re
	return p, nil
}

func (p *Packet) buildDoc(sc scope, raw RawDoc) error {
	dt := DocType(raw.Type)
	switch {
	case p.typ == Callback && !dt.forCallback():
		return sc.errorf("invalid doc type %q for a callback", raw.Type)
	case p.typ == Function && p.docOnly && !dt.forMethod():
		return sc.errorf("doc-only function needs a method doc type, got %q", raw.Type)
	case p.typ == Function && !p.docOnly && !dt.forFunction():
		return sc.errorf("invalid doc type %q for a function", raw.Type)
	}
	text := make(map[Lang]string, len(raw.Text))
	for k, v := range raw.Text {
		lang, err := ParseLang(k)
		if err != nil {
			return sc.errorf("doc: %v", err)
		}
		text[lang] = v
	}
	if strings.TrimSpace(text[LangEN]) == "" {
		return sc.errorf("doc text needs an English entry")
	}
	p.doc = Doc{Type: dt, text: text}
	return nil
}

// highLevelView replaces low-level stream parts with the synthesized
// elements at the position of the chunk data and chunk written elements.
func (p *Packet) highLevelView() []*Element {
	if p.stream == nil {
		return p.elements
	}
	var out []*Element
	for _, e := range p.elements {
		switch e.role {
		case RoleNone:
			out = append(out, e)
		case RoleStreamChunkData:
			out = append(out, p.stream.data)
		case RoleStreamChunkWritten:
			out = append(out, p.stream.written)
		}
	}
	return out
}

// decideResponseExpected applies the response policy table: getters always
// get a response, callbacks never do, callback configuration and stream_in
// setters default to true and cannot opt out, all others use the declared
// value or false.
func (p *Packet) decideResponseExpected(sc scope, declared *bool) (ResponseExpected, error) {
	if p.typ == Callback {
		if declared != nil {
			return ResponseInvalid, sc.errorf("callbacks cannot declare response_expected")
		}
		return ResponseAlwaysFalse, nil
	}
	if p.IsGetter() {
		if declared != nil {
			return ResponseInvalid, sc.errorf("getters cannot declare response_expected")
		}
		return ResponseAlwaysTrue, nil
	}
	fixedTrue := p.doc.Type == DocCallbackConfigFunction || (p.stream != nil && p.stream.kind == StreamIn)
	if fixedTrue {
		if declared != nil && !*declared {
			return ResponseInvalid, sc.errorf("response_expected cannot be false for callback configuration or stream_in functions")
		}
		return ResponseTrue, nil
	}
	if declared != nil && *declared {
		return ResponseTrue, nil
	}
	return ResponseFalse, nil
}
