// Package emulator plays the firmware side of the protocol for any
// model.Device. Requests are decoded through the packet layouts and routed
// to registered handlers or to the built-in stream handlers; responses and
// callbacks are framed like a real device would.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/brickgen/brickgen/client"
	"github.com/brickgen/brickgen/internal/log"
	"github.com/brickgen/brickgen/model"
	"github.com/brickgen/brickgen/wire"
)

var (
	// ErrNoSupport makes the emulator answer "function not supported".
	ErrNoSupport = errors.New("function not supported")
	// ErrNoResponse suppresses the response even if one is expected.
	ErrNoResponse = errors.New("no response")
)

// HandlerFunc answers one request. in holds one value per in element, the
// result one value per out element. Any error other than ErrNoSupport and
// ErrNoResponse is reported as an invalid parameter.
type HandlerFunc func(ctx context.Context, in []any) ([]any, error)

// Identity is what the built-in get identity function reports.
type Identity struct {
	ConnectedUID    string
	Position        rune
	HardwareVersion [3]uint8
	FirmwareVersion [3]uint8
}

type sink struct {
	id  uint64
	uid uint32
	fid uint8
	fn  func(frame []byte)
}

// Emulator is one emulated device.
type Emulator struct {
	uid    uint32
	dev    *model.Device
	logger *slog.Logger
	raw    log.RawLogger

	mu          sync.Mutex
	handlers    map[uint8]HandlerFunc
	identity    Identity
	acceptLimit int
	in          map[uint8]*inStream
	out         map[uint8]*outStream
	faults      map[uint8][]Fault
	sinks       []sink
	nextSink    uint64
}

// Option configures an Emulator.
type Option func(*Emulator)

func WithLogger(l *slog.Logger) Option { return func(e *Emulator) { e.logger = l } }

func WithRawLogger(r log.RawLogger) Option { return func(e *Emulator) { e.raw = r } }

func WithIdentity(id Identity) Option { return func(e *Emulator) { e.identity = id } }

// WithAcceptLimit caps how many items short-write streams accept per value.
// Zero accepts everything.
func WithAcceptLimit(n int) Option { return func(e *Emulator) { e.acceptLimit = n } }

// New creates an emulator for d answering to uid.
func New(uid uint32, d *model.Device, opts ...Option) *Emulator {
	e := &Emulator{
		uid:      uid,
		dev:      d,
		logger:   slog.Default(),
		raw:      log.NewRaw(nil),
		handlers: make(map[uint8]HandlerFunc),
		identity: Identity{ConnectedUID: "0", Position: '?', HardwareVersion: [3]uint8{1, 0, 0}, FirmwareVersion: [3]uint8{2, 0, 0}},
		in:       make(map[uint8]*inStream),
		out:      make(map[uint8]*outStream),
		faults:   make(map[uint8][]Fault),
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.With("device", d.Name().Space(), "uid", wire.FormatUID(uint64(uid)))
	return e
}

func (e *Emulator) UID() uint32 { return e.uid }

func (e *Emulator) Device() *model.Device { return e.dev }

func (e *Emulator) packet(name string) (*model.Packet, error) {
	for _, p := range e.dev.Packets() {
		if p.DocOnly() {
			continue
		}
		if strings.EqualFold(p.Name().Space(), name) || (p.Stream() != nil && strings.EqualFold(p.HighLevelName().Space(), name)) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%s has no packet %q", e.dev.Name().Space(), name)
}

// Handle registers fn for the function named name. It replaces the built-in
// stream handling of stream packets.
func (e *Emulator) Handle(name string, fn HandlerFunc) error {
	p, err := e.packet(name)
	if err != nil {
		return err
	}
	if p.Type() != model.Function {
		return fmt.Errorf("%s is a callback", p.Name().Space())
	}
	e.mu.Lock()
	e.handlers[uint8(p.FunctionID())] = fn
	e.mu.Unlock()
	return nil
}

// RoundTrip implements client.Transport without networking.
func (e *Emulator) RoundTrip(ctx context.Context, frame []byte) ([]byte, error) {
	h, _, err := wire.SplitFrame(frame)
	if err != nil {
		return nil, err
	}
	resp := e.Process(ctx, frame)
	if !h.ResponseExpected {
		return nil, nil
	}
	if resp == nil {
		return nil, fmt.Errorf("function %d: %w", h.FunctionID, context.DeadlineExceeded)
	}
	return resp, nil
}

// Process answers one request frame. It returns nil when no response is
// sent.
func (e *Emulator) Process(ctx context.Context, frame []byte) []byte {
	e.raw.Log(true, frame)
	h, payload, err := wire.SplitFrame(frame)
	if err != nil {
		e.logger.Warn("dropping malformed frame", "error", err)
		return nil
	}
	if h.UID != e.uid {
		return nil
	}

	out, err := e.dispatch(ctx, h, payload)
	var resp []byte
	switch {
	case errors.Is(err, ErrNoResponse):
		e.logger.Debug("no response selected", "fid", h.FunctionID)
		return nil
	case errors.Is(err, ErrNoSupport):
		resp = errorResponse(h, wire.ErrorCodeFunctionNotSupported)
	case err != nil:
		e.logger.Debug("request failed", "fid", h.FunctionID, "error", err)
		resp = errorResponse(h, wire.ErrorCodeInvalidParameter)
	default:
		resp, err = wire.NewFrame(h, out)
		if err != nil {
			e.logger.Error("packing response", "fid", h.FunctionID, "error", err)
			resp = errorResponse(h, wire.ErrorCodeInvalidParameter)
		}
	}
	if !h.ResponseExpected {
		return nil
	}
	e.raw.Log(false, resp)
	return resp
}

func errorResponse(h wire.Header, code wire.ErrorCode) []byte {
	h.ErrorCode = code
	b, _ := wire.NewFrame(h, nil)
	return b
}

func (e *Emulator) dispatch(ctx context.Context, h wire.Header, payload []byte) ([]byte, error) {
	if h.FunctionID == model.IdentityFunctionID {
		return e.getIdentity()
	}
	p := e.dev.Packet(int(h.FunctionID))
	if p == nil || p.Type() != model.Function || p.Virtual() {
		return nil, ErrNoSupport
	}

	inLayout := wire.LayoutOf(p, model.In)
	in, err := inLayout.Decode(payload)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	fn := e.handlers[h.FunctionID]
	e.mu.Unlock()

	var out []any
	switch {
	case fn != nil:
		out, err = fn(ctx, in)
	case p.Stream() != nil && p.Stream().Kind() == model.StreamIn:
		out, err = e.streamIn(p, inLayout, in)
	case p.Stream() != nil:
		out, err = e.streamOut(p)
	default:
		out = zeroValues(p)
	}
	if err != nil {
		return nil, err
	}
	return wire.LayoutOf(p, model.Out).Encode(out...)
}

func zeroValues(p *model.Packet) []any {
	l := wire.LayoutOf(p, model.Out)
	return make([]any, len(l.Fields))
}

func (e *Emulator) getIdentity() ([]byte, error) {
	b := make([]byte, 25)
	copy(b[0:8], wire.FormatUID(uint64(e.uid)))
	copy(b[8:16], e.identity.ConnectedUID)
	b[16] = byte(e.identity.Position)
	copy(b[17:20], e.identity.HardwareVersion[:])
	copy(b[20:23], e.identity.FirmwareVersion[:])
	b[23] = byte(e.dev.Identifier())
	b[24] = byte(e.dev.Identifier() >> 8)
	return b, nil
}

// EmitCallback sends the callback named name with one value per element.
func (e *Emulator) EmitCallback(name string, values ...any) error {
	p, err := e.packet(name)
	if err != nil {
		return err
	}
	if p.Type() != model.Callback {
		return fmt.Errorf("%s is not a callback", p.Name().Space())
	}
	payload, err := wire.LayoutOf(p, model.Out).Encode(values...)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name().Space(), err)
	}
	e.emit(uint8(p.FunctionID()), payload)
	return nil
}

func (e *Emulator) emit(fid uint8, payload []byte) {
	frame, err := wire.NewFrame(wire.Header{UID: e.uid, FunctionID: fid, ResponseExpected: true}, payload)
	if err != nil {
		e.logger.Error("packing callback", "fid", fid, "error", err)
		return
	}
	e.raw.Log(false, frame)

	e.mu.Lock()
	var fns []func([]byte)
	for _, s := range e.sinks {
		if (s.uid == 0 || s.uid == e.uid) && (s.fid == 0 || s.fid == fid) {
			fns = append(fns, s.fn)
		}
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(frame)
	}
}

func (e *Emulator) subscribe(uid uint32, fid uint8, fn func(frame []byte)) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSink++
	e.sinks = append(e.sinks, sink{id: e.nextSink, uid: uid, fid: fid, fn: fn})
	return e.nextSink
}

func (e *Emulator) unsubscribe(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.sinks {
		if s.id == id {
			e.sinks = append(e.sinks[:i], e.sinks[i+1:]...)
			return
		}
	}
}

// RegisterCallback implements client.CallbackSource.
func (e *Emulator) RegisterCallback(uid uint32, functionID uint8, fn client.CallbackFunc) uint64 {
	return e.subscribe(uid, functionID, func(frame []byte) {
		_, payload, err := wire.SplitFrame(frame)
		if err == nil {
			fn(payload)
		}
	})
}

func (e *Emulator) DeregisterCallback(id uint64) { e.unsubscribe(id) }

var (
	_ client.Transport      = (*Emulator)(nil)
	_ client.CallbackSource = (*Emulator)(nil)
)
