package cgen

import (
	"fmt"
	"strings"

	"github.com/brickgen/brickgen/internal/codegen/common"
	"github.com/brickgen/brickgen/model"
)

// function is one C function of a device: its doc comment, prototype and
// body.
type function struct {
	Doc   string
	Proto string
	Body  string
}

// callback is one callback of a device with its handler typedef.
type callback struct {
	ID      int
	Define  string
	Handler string
	Typedef string
	Doc     string
	Wrapper function
}

// packedStruct is a request, response or callback struct.
type packedStruct struct {
	Name   string
	Fields []string
}

func (d *device) proto(ret string, name *model.Name, params []string) string {
	all := append([]string{d.Type + " *" + d.Var}, params...)
	return fmt.Sprintf("%s %s(%s)", ret, d.funcName(name), strings.Join(all, ", "))
}

// sendable lists the function packets that go on the wire.
func (d *device) sendable() []*model.Packet {
	var out []*model.Packet
	for _, p := range d.PacketsOf(model.Function) {
		if !p.Virtual() {
			out = append(out, p)
		}
	}
	return out
}

func (d *device) callbacks() []*model.Packet {
	var out []*model.Packet
	for _, p := range d.PacketsOf(model.Callback) {
		if !p.Virtual() {
			out = append(out, p)
		}
	}
	return out
}

func (d *device) structs() []packedStruct {
	var out []packedStruct
	for _, p := range d.sendable() {
		req := packedStruct{Name: structName(p) + "_Request", Fields: []string{"PacketHeader header;"}}
		for _, e := range p.Elements(model.Filter{Direction: model.In}) {
			req.Fields = append(req.Fields, structField(e))
		}
		out = append(out, req)
		if p.IsGetter() {
			resp := packedStruct{Name: structName(p) + "_Response", Fields: []string{"PacketHeader header;"}}
			for _, e := range p.Elements(model.Filter{Direction: model.Out}) {
				resp.Fields = append(resp.Fields, structField(e))
			}
			out = append(out, resp)
		}
	}
	for _, p := range d.callbacks() {
		cb := packedStruct{Name: structName(p) + "_Callback", Fields: []string{"PacketHeader header;"}}
		for _, e := range p.Elements(model.Filter{Direction: model.Out}) {
			cb.Fields = append(cb.Fields, structField(e))
		}
		out = append(out, cb)
	}
	return out
}

// lowLevel builds the function sending one request of p.
func (d *device) lowLevel(p *model.Packet) function {
	ins := p.Elements(model.Filter{Direction: model.In})
	outs := p.Elements(model.Filter{Direction: model.Out})
	s := structName(p)

	var b body
	b.line("DevicePrivate *device_p = %s->p;", d.Var)
	b.line("%s_Request request;", s)
	if p.IsGetter() {
		b.line("Packet response_packet;")
		b.line("%s_Response *response = (%s_Response *)&response_packet;", s, s)
	} else {
		b.line("Packet response;")
	}
	b.line("int ret;")
	if usesLoop(ins) || usesLoop(outs) {
		b.line("int i;")
	}
	b.blank()
	b.line("packet_header_create(&request.header, sizeof(request), %s, device_p);", d.functionDefine(p))
	if len(ins) > 0 {
		b.blank()
		for _, e := range ins {
			b.lines(packLines(e))
		}
	}
	b.blank()
	if p.IsGetter() {
		b.line("ret = device_send_request(device_p, (Packet *)&request, &response_packet, %d);", p.ResponseSize())
	} else {
		b.line("ret = device_send_request(device_p, (Packet *)&request, &response, 0);")
	}
	b.blank()
	b.line("if (ret < 0) {")
	b.line("\treturn ret;")
	b.line("}")
	if p.IsGetter() {
		b.blank()
		for _, e := range outs {
			b.lines(unpackLines(e))
		}
	}
	b.blank()
	b.line("return ret;")

	return function{
		Doc:   docComment(p, d),
		Proto: d.proto("int", p.Name(), lowLevelParams(p)),
		Body:  b.String(),
	}
}

// callback builds the handler typedef and the wrapper converting a received
// packet of p into a call of the registered handler.
func (d *device) callback(p *model.Packet) callback {
	outs := p.Elements(model.Filter{Direction: model.Out})
	handler := d.Type + p.Name().Camel() + "Handler"

	var params []string
	var args []string
	for _, e := range outs {
		params = append(params, callbackParam(e))
		args = append(args, callbackArg(e))
	}
	params = append(params, "void *user_data")
	args = append(args, "user_data")

	var b body
	b.line("DevicePrivate *device_p = (DevicePrivate *)opaque;")
	b.line("%s callback_function;", handler)
	b.line("void *user_data;")
	b.line("%s_Callback *callback = (%s_Callback *)packet;", structName(p), structName(p))
	if usesLoop(outs) {
		b.line("int i;")
	}
	b.blank()
	b.line("*(void **)(&callback_function) = device_p->registered_callbacks[%s];", d.functionDefine(p))
	b.line("user_data = device_p->registered_callback_user_data[%s];", d.functionDefine(p))
	b.blank()
	b.line("if (callback_function == NULL) {")
	b.line("\treturn;")
	b.line("}")
	var conv []string
	for _, e := range outs {
		conv = append(conv, callbackLines(e)...)
	}
	if len(conv) > 0 {
		b.blank()
		b.lines(conv)
	}
	b.blank()
	b.line("callback_function(%s);", strings.Join(args, ", "))

	return callback{
		ID:      p.FunctionID(),
		Define:  d.functionDefine(p),
		Handler: handler,
		Typedef: fmt.Sprintf("typedef void (*%s)(%s);", handler, strings.Join(params, ", ")),
		Doc:     docComment(p, d),
		Wrapper: function{
			Proto: fmt.Sprintf("static void %s(void *opaque, Packet *packet)", wrapperName(d, p)),
			Body:  b.String(),
		},
	}
}

func wrapperName(d *device, p *model.Packet) string {
	return d.File + "_callback_wrapper_" + p.Name().Under()
}

// create builds the constructor filling the response expected table and
// the callback wrappers.
func (d *device) create() function {
	v := d.APIVersion()
	var b body
	b.line("DevicePrivate *device_p;")
	b.line("int ret = device_create(%s, uid, %s_DEVICE_IDENTIFIER, %d, %d, %d, transport, opaque);", d.Var, d.Upper, v.Major, v.Minor, v.Patch)
	b.blank()
	b.line("if (ret < 0) {")
	b.line("\treturn ret;")
	b.line("}")
	b.blank()
	b.line("device_p = %s->p;", d.Var)
	if fns := d.sendable(); len(fns) > 0 {
		b.blank()
		for _, p := range fns {
			b.line("device_p->response_expected[%s] = %s;", d.functionDefine(p), responseExpectedConst(p.ResponseExpected()))
		}
	}
	if cbs := d.callbacks(); len(cbs) > 0 {
		b.blank()
		for _, p := range cbs {
			b.line("device_p->callback_wrappers[%s] = %s;", d.functionDefine(p), wrapperName(d, p))
		}
	}
	b.blank()
	b.line("return E_OK;")

	return function{
		Doc:   fmt.Sprintf("/**\n * \\ingroup %s\n *\n * Creates the device object %s with the unique device ID uid. Requests\n * and responses are exchanged through transport, which receives opaque\n * on every call.\n */", d.Type, d.Var),
		Proto: fmt.Sprintf("int %s_create(%s *%s, const char *uid, DeviceTransportFunction transport, void *opaque)", d.File, d.Type, d.Var),
		Body:  b.String(),
	}
}

func responseExpectedConst(r model.ResponseExpected) string {
	return "DEVICE_RESPONSE_EXPECTED_" + strings.ToUpper(r.String())
}

// management returns the device-level functions every device has.
func (d *device) management() []function {
	doc := func(text string) string {
		return fmt.Sprintf("/**\n * \\ingroup %s\n *\n%s\n */", d.Type, common.CommentLines(text, " * "))
	}
	self := d.Type + " *" + d.Var
	return []function{
		{
			Doc:   doc("Removes the device object from its transport and destroys it."),
			Proto: fmt.Sprintf("void %s_destroy(%s)", d.File, self),
			Body:  fmt.Sprintf("\tdevice_release(%s);", d.Var),
		},
		{
			Doc:   doc("Returns the response expected flag for the function specified by the\nfunction ID parameter."),
			Proto: fmt.Sprintf("int %s_get_response_expected(%s, uint8_t function_id, bool *ret_response_expected)", d.File, self),
			Body:  fmt.Sprintf("\treturn device_get_response_expected(%s->p, function_id, ret_response_expected);", d.Var),
		},
		{
			Doc:   doc("Changes the response expected flag of the function specified by the\nfunction ID parameter. Only setters accept a change."),
			Proto: fmt.Sprintf("int %s_set_response_expected(%s, uint8_t function_id, bool response_expected)", d.File, self),
			Body:  fmt.Sprintf("\treturn device_set_response_expected(%s->p, function_id, response_expected);", d.Var),
		},
		{
			Doc:   doc("Changes the response expected flag for all setter functions."),
			Proto: fmt.Sprintf("void %s_set_response_expected_all(%s, bool response_expected)", d.File, self),
			Body:  fmt.Sprintf("\tdevice_set_response_expected_all(%s->p, response_expected);", d.Var),
		},
		{
			Doc:   doc("Registers the given function with the given callback ID. The user_data\nis passed to the function on every call."),
			Proto: fmt.Sprintf("void %s_register_callback(%s, int16_t callback_id, void (*function)(void), void *user_data)", d.File, self),
			Body:  fmt.Sprintf("\tdevice_register_callback(%s->p, callback_id, function, user_data);", d.Var),
		},
		{
			Doc:   doc("Passes a callback packet received by the transport to its handler."),
			Proto: fmt.Sprintf("void %s_dispatch_callback(%s, Packet *packet)", d.File, self),
			Body:  fmt.Sprintf("\tdevice_dispatch_callback(%s->p, packet);", d.Var),
		},
		{
			Doc:   doc("Returns the API version (major, minor, release) of the bindings for\nthis device."),
			Proto: fmt.Sprintf("int %s_get_api_version(%s, uint8_t ret_api_version[3])", d.File, self),
			Body:  fmt.Sprintf("\treturn device_get_api_version(%s->p, ret_api_version);", d.Var),
		},
	}
}

// body collects the tab indented lines of a function body.
type body struct {
	lns []string
}

func (b *body) line(format string, args ...any) {
	b.lns = append(b.lns, fmt.Sprintf(format, args...))
}

func (b *body) lines(ls []string) {
	b.lns = append(b.lns, ls...)
}

func (b *body) blank() { b.lns = append(b.lns, "") }

func (b *body) String() string {
	out := make([]string, len(b.lns))
	for i, l := range b.lns {
		if l != "" {
			out[i] = "\t" + l
		}
	}
	return strings.Join(out, "\n")
}
