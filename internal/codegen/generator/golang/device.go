package gogen

import (
	"fmt"
	"strings"

	"github.com/brickgen/brickgen/internal/codegen/common"
	"github.com/brickgen/brickgen/internal/codegen/format"
	"github.com/brickgen/brickgen/model"
	"github.com/brickgen/brickgen/stream"
)

const runtimeModule = "github.com/brickgen/brickgen"

// source accumulates the text of one generated file.
type source struct {
	b strings.Builder
}

func (s *source) p(format string, args ...any) {
	fmt.Fprintf(&s.b, format, args...)
	s.b.WriteByte('\n')
}

func (s *source) raw(text string) {
	s.b.WriteString(text)
	s.b.WriteByte('\n')
}

// deviceSource renders the unformatted Go source of one device package.
func deviceSource(d *model.Device, version model.Version) string {
	typ := common.DeviceTypeName(d)
	var s source

	s.raw(common.HeaderComment(common.SlashComment, "Go", version))
	s.p("")
	desc := d.Description(model.LangEN)
	if desc == "" {
		desc = "Bindings for the " + d.FullName().Space() + "."
	}
	s.raw(common.CommentLines(fmt.Sprintf("Package %s talks to the %s.\n\n%s", packageName(d), d.FullName().Space(), desc), "// "))
	s.p("package %s", packageName(d))
	s.p("")
	functions := sendable(d)
	callbacks := receivable(d)

	s.p("import (")
	if len(functions) > 0 {
		s.p("\t\"context\"")
		s.p("")
	}
	s.p("\t\"%s/client\"", runtimeModule)
	s.p("\t\"%s/model\"", runtimeModule)
	if len(d.Streams()) > 0 {
		s.p("\t\"%s/stream\"", runtimeModule)
	}
	s.p("\t\"%s/wire\"", runtimeModule)
	s.p(")")
	s.p("")

	s.p("// Function is a function id of the %s.", d.FullName().Space())
	s.p("type Function uint8")
	s.p("")
	s.p("const (")
	for _, p := range functions {
		s.p("\tFunction%s Function = %d", p.Name().Camel(), p.FunctionID())
	}
	s.p(")")
	s.p("")
	if len(callbacks) > 0 {
		s.p("// Callback is a callback id of the %s.", d.FullName().Space())
		s.p("type Callback uint8")
		s.p("")
		s.p("const (")
		for _, p := range callbacks {
			s.p("\tCallback%s Callback = %d", p.Name().Camel(), p.FunctionID())
		}
		s.p(")")
		s.p("")
	}

	gf, _ := format.For("go")
	for _, g := range d.ConstantGroups() {
		if g.Virtual() {
			continue
		}
		s.p("type %s %s", groupType(g), format.GoType(g.Type()))
		s.p("")
		s.p("const (")
		for _, c := range g.Constants() {
			s.p("\t%s%s %s = %s", groupType(g), common.Identifier(c.Name.Camel()), groupType(g), format.Constant(gf, g, c))
		}
		s.p(")")
		s.p("")
	}

	v := d.APIVersion()
	s.p("const (")
	s.p("\tDeviceIdentifier = %d", d.Identifier())
	s.p("\tDeviceDisplayName = %q", d.FullName().Space())
	s.p(")")
	s.p("")
	s.p("var apiVersion = [3]uint8{%d, %d, %d}", v.Major, v.Minor, v.Patch)
	s.p("")
	s.p("var responseExpected = map[uint8]model.ResponseExpected{")
	for _, p := range functions {
		s.p("\tuint8(Function%s): model.%s,", p.Name().Camel(), responseExpectedName(p.ResponseExpected()))
	}
	s.p("}")
	s.p("")

	s.p("// %s is a handle to one %s.", typ, d.FullName().Space())
	s.p("type %s struct {", typ)
	s.p("\tdevice *client.Device")
	s.p("}")
	s.p("")
	s.p("// New creates a handle for the device with the base58 uid reachable")
	s.p("// through t.")
	s.p("func New(uid string, t client.Transport) (*%s, error) {", typ)
	s.p("\tid, err := wire.ParseUID(uid)")
	s.p("\tif err != nil {")
	s.p("\t\treturn nil, err")
	s.p("\t}")
	s.p("\treturn &%s{device: client.NewDevice(id, t, responseExpected)}, nil", typ)
	s.p("}")
	s.p("")
	s.p("// GetAPIVersion returns the version of the API these bindings implement.")
	s.p("func (d *%s) GetAPIVersion() [3]uint8 { return apiVersion }", typ)
	s.p("")
	s.p("// GetResponseExpected reports whether calls of fid wait for a response.")
	s.p("func (d *%s) GetResponseExpected(fid Function) (bool, error) {", typ)
	s.p("\treturn d.device.GetResponseExpected(uint8(fid))")
	s.p("}")
	s.p("")
	s.p("// SetResponseExpected changes the response policy of a setter.")
	s.p("func (d *%s) SetResponseExpected(fid Function, v bool) error {", typ)
	s.p("\treturn d.device.SetResponseExpected(uint8(fid), v)")
	s.p("}")
	s.p("")
	s.p("// SetResponseExpectedAll changes the response policy of every setter.")
	s.p("func (d *%s) SetResponseExpectedAll(v bool) {", typ)
	s.p("\td.device.SetResponseExpectedAll(v)")
	s.p("}")
	s.p("")
	if len(callbacks) > 0 {
		s.p("// DeregisterCallback removes a callback registered by one of the")
		s.p("// Register methods.")
		s.p("func (d *%s) DeregisterCallback(id uint64) {", typ)
		s.p("\td.device.DeregisterCallback(id)")
		s.p("}")
		s.p("")
	}

	for _, p := range functions {
		lowLevel(&s, typ, p)
		if st := p.Stream(); st != nil {
			if st.Kind() == model.StreamIn {
				streamIn(&s, typ, p)
			} else {
				streamOut(&s, typ, p)
			}
		}
	}
	for _, p := range callbacks {
		callback(&s, typ, p)
		if st := p.Stream(); st != nil {
			callbackStream(&s, typ, p)
		}
	}
	return s.b.String()
}

func sendable(d *model.Device) []*model.Packet {
	var out []*model.Packet
	for _, p := range d.PacketsOf(model.Function) {
		if !p.Virtual() {
			out = append(out, p)
		}
	}
	return out
}

func receivable(d *model.Device) []*model.Packet {
	var out []*model.Packet
	for _, p := range d.PacketsOf(model.Callback) {
		if !p.Virtual() {
			out = append(out, p)
		}
	}
	return out
}

func responseExpectedName(r model.ResponseExpected) string {
	switch r {
	case model.ResponseAlwaysTrue:
		return "ResponseAlwaysTrue"
	case model.ResponseAlwaysFalse:
		return "ResponseAlwaysFalse"
	case model.ResponseTrue:
		return "ResponseTrue"
	case model.ResponseFalse:
		return "ResponseFalse"
	}
	return "ResponseInvalid"
}

func params(elements []*model.Element) []string {
	out := []string{"ctx context.Context"}
	for _, e := range elements {
		out = append(out, ident(e)+" "+goType(e))
	}
	return out
}

func results(elements []*model.Element) (decl string, names []string) {
	var parts []string
	for _, e := range elements {
		parts = append(parts, ident(e)+" "+goType(e))
		names = append(names, ident(e))
	}
	parts = append(parts, "err error")
	names = append(names, "err")
	return "(" + strings.Join(parts, ", ") + ")", names
}

// lowLevel renders the method sending one request of p.
func lowLevel(s *source, typ string, p *model.Packet) {
	ins := p.Elements(model.Filter{Direction: model.In})
	outs := p.Elements(model.Filter{Direction: model.Out})
	name := p.Name().Camel()

	s.raw(docLines(name, p.Doc().Text(model.LangEN)))
	if p.IsGetter() {
		decl, names := results(outs)
		s.p("func (d *%s) %s(%s) %s {", typ, name, strings.Join(params(ins), ", "), decl)
		payloadStmts(s, ins, "return "+strings.Join(names, ", "))
		s.p("\tresp, err := d.device.Get(ctx, uint8(Function%s), payload)", name)
		s.p("\tif err != nil {")
		s.p("\t\treturn %s", strings.Join(names, ", "))
		s.p("\t}")
		s.p("\tup := wire.NewUnpacker(resp)")
		for _, e := range outs {
			s.p("\t%s", unpackStmt(e))
		}
		s.p("\terr = up.Err()")
		s.p("\treturn %s", strings.Join(names, ", "))
		s.p("}")
		s.p("")
		return
	}
	s.p("func (d *%s) %s(%s) error {", typ, name, strings.Join(params(ins), ", "))
	payloadStmts(s, ins, "return err")
	s.p("\tif _, err := d.device.Set(ctx, uint8(Function%s), payload); err != nil {", name)
	s.p("\t\treturn err")
	s.p("\t}")
	s.p("\treturn nil")
	s.p("}")
	s.p("")
}

// payloadStmts packs ins into payload. onErr returns from the method.
func payloadStmts(s *source, ins []*model.Element, onErr string) {
	if len(ins) == 0 {
		s.p("\tvar payload []byte")
		return
	}
	s.p("\tpk := wire.NewPacker(%d)", payloadSize(ins))
	for _, e := range ins {
		s.p("\t%s", packStmt(e))
	}
	s.p("\tpayload, err := pk.Bytes()")
	s.p("\tif err != nil {")
	s.p("\t\t%s", onErr)
	s.p("\t}")
}

func payloadSize(elements []*model.Element) int {
	n := 0
	for _, e := range elements {
		sz, _ := e.Size()
		n += sz
	}
	return n
}

// configLiteral renders the stream.Config of st.
func configLiteral(st *model.Stream) string {
	cfg := stream.ConfigOf(st)
	fields := []string{fmt.Sprintf("ChunkSize: %d", cfg.ChunkSize)}
	if cfg.MaxLength > 0 {
		fields = append(fields, fmt.Sprintf("MaxLength: %d", cfg.MaxLength))
	}
	if cfg.FixedLength > 0 {
		fields = append(fields, fmt.Sprintf("FixedLength: %d", cfg.FixedLength))
	}
	if cfg.SingleChunk {
		fields = append(fields, "SingleChunk: true")
	}
	if cfg.ShortWrite {
		fields = append(fields, "ShortWrite: true")
	}
	if cfg.OffsetBits > 0 {
		fields = append(fields, fmt.Sprintf("OffsetBits: %d", cfg.OffsetBits))
	}
	return "stream.Config{" + strings.Join(fields, ", ") + "}"
}

// streamIn renders the high-level method cutting a value into calls of p.
func streamIn(s *source, typ string, p *model.Packet) {
	st := p.Stream()
	name := p.HighLevelName().Camel()
	item := format.GoType(st.ChunkData().Type())

	var ins []*model.Element
	var data string
	for _, e := range p.Elements(model.Filter{Direction: model.In, HighLevel: true}) {
		if e.Role() == model.RoleStreamData {
			data = ident(e)
			continue
		}
		ins = append(ins, e)
	}
	outs := p.Elements(model.Filter{Direction: model.Out, HighLevel: true})

	// low-level arguments and the variables receiving its results
	args := []string{"ctx"}
	for _, e := range p.Elements(model.Filter{Direction: model.In}) {
		switch e.Role() {
		case model.RoleStreamLength:
			args = append(args, fmt.Sprintf("%s(c.Length)", goType(e)))
		case model.RoleStreamChunkOffset:
			args = append(args, fmt.Sprintf("%s(c.Offset)", goType(e)))
		case model.RoleStreamChunkData:
			args = append(args, fmt.Sprintf("%s(c.Data)", goType(e)))
		default:
			args = append(args, ident(e))
		}
	}
	var lhs []string
	for _, e := range p.Elements(model.Filter{Direction: model.Out}) {
		if e.Role() == model.RoleStreamChunkWritten {
			lhs = append(lhs, "chunkWritten")
			continue
		}
		lhs = append(lhs, ident(e))
	}

	s.raw(docLines(name, p.Doc().Text(model.LangEN)))
	allParams := append(params(nil), data+" []"+item)
	allParams = append(allParams, params(ins)[1:]...)
	decl, names := results(outs)
	s.p("func (d *%s) %s(%s) %s {", typ, name, strings.Join(allParams, ", "), decl)
	s.p("\tcfg := %s", configLiteral(st))
	s.p("\tfn := func(ctx context.Context, c stream.InChunk[%s]) (int, error) {", item)
	call := fmt.Sprintf("d.%s(%s)", p.Name().Camel(), strings.Join(args, ", "))
	switch {
	case len(lhs) == 0:
		s.p("\t\treturn 0, %s", call)
	default:
		if st.ShortWrite() {
			s.p("\t\tvar chunkWritten %s", goType(st.ChunkWritten()))
		}
		s.p("\t\tvar err error")
		s.p("\t\t%s, err = %s", strings.Join(lhs, ", "), call)
		if st.ShortWrite() {
			s.p("\t\treturn int(chunkWritten), err")
		} else {
			s.p("\t\treturn 0, err")
		}
	}
	s.p("\t}")
	if w := st.Written(); w != nil {
		s.p("\tn, err := stream.Write(ctx, d.device.StreamGuard(), cfg, %s, fn)", data)
		s.p("\t%s = %s(n)", ident(w), goType(w))
	} else {
		s.p("\t_, err = stream.Write(ctx, d.device.StreamGuard(), cfg, %s, fn)", data)
	}
	s.p("\treturn %s", strings.Join(names, ", "))
	s.p("}")
	s.p("")
}

// streamOut renders the high-level method reassembling a value from calls
// of p.
func streamOut(s *source, typ string, p *model.Packet) {
	st := p.Stream()
	name := p.HighLevelName().Camel()
	item := format.GoType(st.ChunkData().Type())

	ins := p.Elements(model.Filter{Direction: model.In, HighLevel: true})
	var outs []*model.Element
	var data string
	for _, e := range p.Elements(model.Filter{Direction: model.Out, HighLevel: true}) {
		if e.Role() == model.RoleStreamData {
			data = ident(e)
			continue
		}
		outs = append(outs, e)
	}

	args := []string{"ctx"}
	for _, e := range p.Elements(model.Filter{Direction: model.In}) {
		args = append(args, ident(e))
	}
	var lhs, locals []string
	for _, e := range p.Elements(model.Filter{Direction: model.Out}) {
		switch e.Role() {
		case model.RoleStreamLength:
			lhs = append(lhs, "chunkLength")
			locals = append(locals, "chunkLength "+goType(e))
		case model.RoleStreamChunkOffset:
			lhs = append(lhs, "chunkOffset")
			locals = append(locals, "chunkOffset "+goType(e))
		case model.RoleStreamChunkData:
			lhs = append(lhs, "chunkData")
			locals = append(locals, "chunkData "+goType(e))
		default:
			lhs = append(lhs, ident(e))
		}
	}
	chunk := []string{"Data: chunkData[:]"}
	if st.Length() != nil {
		chunk = append([]string{"Length: int(chunkLength)"}, chunk...)
	}
	if st.ChunkOffset() != nil {
		chunk = append(chunk[:len(chunk)-1], "Offset: int(chunkOffset)", chunk[len(chunk)-1])
	}

	s.raw(docLines(name, p.Doc().Text(model.LangEN)))
	var parts []string
	parts = append(parts, data+" []"+item)
	for _, e := range outs {
		parts = append(parts, ident(e)+" "+goType(e))
	}
	parts = append(parts, "err error")
	names := []string{data}
	for _, e := range outs {
		names = append(names, ident(e))
	}
	names = append(names, "err")

	s.p("func (d *%s) %s(%s) (%s) {", typ, name, strings.Join(params(ins), ", "), strings.Join(parts, ", "))
	s.p("\tcfg := %s", configLiteral(st))
	s.p("\tfn := func(ctx context.Context) (stream.OutChunk[%s], error) {", item)
	s.p("\t\tvar (")
	for _, l := range locals {
		s.p("\t\t\t%s", l)
	}
	s.p("\t\t\terr error")
	s.p("\t\t)")
	s.p("\t\t%s, err = d.%s(%s)", strings.Join(lhs, ", "), p.Name().Camel(), strings.Join(args, ", "))
	s.p("\t\treturn stream.OutChunk[%s]{%s}, err", item, strings.Join(chunk, ", "))
	s.p("\t}")
	s.p("\t%s, err = stream.Read(ctx, d.device.StreamGuard(), cfg, fn)", data)
	s.p("\treturn %s", strings.Join(names, ", "))
	s.p("}")
	s.p("")
}

// callback renders the registration of a low-level callback handler.
func callback(s *source, typ string, p *model.Packet) {
	outs := p.Elements(model.Filter{Direction: model.Out})
	name := p.Name().Camel()
	var fparams, names []string
	for _, e := range outs {
		fparams = append(fparams, ident(e)+" "+goType(e))
		names = append(names, ident(e))
	}

	s.p("// Register%sCallback calls fn for every %s callback.", name, p.Name().Space())
	s.p("//")
	s.raw(common.CommentLines(p.Doc().Text(model.LangEN), "// "))
	s.p("func (d *%s) Register%sCallback(fn func(%s)) (uint64, error) {", typ, name, strings.Join(fparams, ", "))
	s.p("\treturn d.device.RegisterCallback(uint8(Callback%s), func(payload []byte) {", name)
	s.p("\t\tup := wire.NewUnpacker(payload)")
	for _, f := range fparams {
		s.p("\t\tvar %s", f)
	}
	for _, e := range outs {
		s.p("\t\t%s", unpackStmt(e))
	}
	s.p("\t\tif up.Err() != nil {")
	s.p("\t\t\treturn")
	s.p("\t\t}")
	s.p("\t\tfn(%s)", strings.Join(names, ", "))
	s.p("\t})")
	s.p("}")
	s.p("")
}

// callbackStream renders the registration of a handler receiving whole
// values reassembled from a stream_out callback.
func callbackStream(s *source, typ string, p *model.Packet) {
	st := p.Stream()
	name := p.HighLevelName().Camel()
	item := format.GoType(st.ChunkData().Type())

	var fparams []string
	for _, e := range p.Elements(model.Filter{Direction: model.Out}) {
		fparams = append(fparams, ident(e)+" "+goType(e))
	}
	length := fmt.Sprint(st.FixedLength())
	if st.Length() != nil {
		length = "int(" + ident(st.Length()) + ")"
	}
	offset := "0"
	if st.ChunkOffset() != nil {
		offset = "int(" + ident(st.ChunkOffset()) + ")"
	}

	s.p("// Register%sCallback calls fn with every complete value delivered", name)
	s.p("// through the %s callback.", p.Name().Space())
	s.p("func (d *%s) Register%sCallback(fn func(%s []%s)) (uint64, error) {", typ, name, ident(st.Data()), item)
	s.p("\tcollector := stream.NewCollector(fn)")
	s.p("\treturn d.Register%sCallback(func(%s) {", p.Name().Camel(), strings.Join(fparams, ", "))
	s.p("\t\tcollector.Add(%s, %s, %s[:])", length, offset, ident(st.ChunkData()))
	s.p("\t})")
	s.p("}")
	s.p("")
}
