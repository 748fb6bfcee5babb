package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brickgen/brickgen/model"
	"github.com/brickgen/brickgen/stream"
	"github.com/brickgen/brickgen/wire"
)

var (
	ErrUnknownFunction  = errors.New("unknown function id")
	ErrResponseRequired = errors.New("response expected is fixed for this function")
	ErrNoCallbacks      = errors.New("transport does not deliver callbacks")
)

// ResponseTable maps the function ids of d to their response policy.
func ResponseTable(d *model.Device) map[uint8]model.ResponseExpected {
	table := make(map[uint8]model.ResponseExpected)
	for _, p := range d.Packets() {
		if p.DocOnly() || p.FunctionID() <= 0 || p.FunctionID() > 255 {
			continue
		}
		table[uint8(p.FunctionID())] = p.ResponseExpected()
	}
	return table
}

// Device is a handle to one device reachable through a Transport.
// Ordinary calls may run concurrently; multi-chunk stream calls hold the
// device's stream guard.
type Device struct {
	uid       uint32
	transport Transport

	mu               sync.RWMutex
	responseExpected map[uint8]model.ResponseExpected

	guard stream.Guard
}

// NewDevice creates a handle with the given response-expected table.
func NewDevice(uid uint32, t Transport, table map[uint8]model.ResponseExpected) *Device {
	re := make(map[uint8]model.ResponseExpected, len(table))
	for k, v := range table {
		re[k] = v
	}
	return &Device{uid: uid, transport: t, responseExpected: re}
}

// NewDeviceFor creates a handle for a device described by the model.
func NewDeviceFor(uid uint32, t Transport, d *model.Device) *Device {
	return NewDevice(uid, t, ResponseTable(d))
}

func (d *Device) UID() uint32 { return d.uid }

// StreamGuard is held by high-level stream calls for their full duration.
func (d *Device) StreamGuard() *stream.Guard { return &d.guard }

// GetResponseExpected reports whether calls to functionID wait for a
// response.
func (d *Device) GetResponseExpected(functionID uint8) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	switch d.responseExpected[functionID] {
	case model.ResponseAlwaysTrue, model.ResponseTrue:
		return true, nil
	case model.ResponseAlwaysFalse, model.ResponseFalse:
		return false, nil
	}
	return false, fmt.Errorf("function %d: %w", functionID, ErrUnknownFunction)
}

// SetResponseExpected changes the policy of a function. Getters and
// callbacks have a fixed policy and are refused.
func (d *Device) SetResponseExpected(functionID uint8, v bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.responseExpected[functionID] {
	case model.ResponseInvalid:
		return fmt.Errorf("function %d: %w", functionID, ErrUnknownFunction)
	case model.ResponseAlwaysTrue, model.ResponseAlwaysFalse:
		return fmt.Errorf("function %d: %w", functionID, ErrResponseRequired)
	}
	if v {
		d.responseExpected[functionID] = model.ResponseTrue
	} else {
		d.responseExpected[functionID] = model.ResponseFalse
	}
	return nil
}

// SetResponseExpectedAll changes every function whose policy is not fixed.
func (d *Device) SetResponseExpectedAll(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for fid, re := range d.responseExpected {
		switch re {
		case model.ResponseTrue, model.ResponseFalse:
			if v {
				d.responseExpected[fid] = model.ResponseTrue
			} else {
				d.responseExpected[fid] = model.ResponseFalse
			}
		}
	}
}

// Get sends a request and always waits for the response payload.
func (d *Device) Get(ctx context.Context, functionID uint8, payload []byte) ([]byte, error) {
	return d.send(ctx, functionID, payload, true)
}

// Set sends a request and waits for the response only if the function's
// policy asks for one. Without a response the returned payload is nil.
func (d *Device) Set(ctx context.Context, functionID uint8, payload []byte) ([]byte, error) {
	re, err := d.GetResponseExpected(functionID)
	if err != nil {
		return nil, err
	}
	return d.send(ctx, functionID, payload, re)
}

func (d *Device) send(ctx context.Context, functionID uint8, payload []byte, responseExpected bool) ([]byte, error) {
	frame, err := wire.NewFrame(wire.Header{
		UID:              d.uid,
		FunctionID:       functionID,
		ResponseExpected: responseExpected,
	}, payload)
	if err != nil {
		return nil, err
	}
	resp, err := d.transport.RoundTrip(ctx, frame)
	if err != nil {
		return nil, err
	}
	if !responseExpected {
		return nil, nil
	}
	h, out, err := wire.SplitFrame(resp)
	if err != nil {
		return nil, fmt.Errorf("function %d: %w", functionID, err)
	}
	if h.ErrorCode != wire.ErrorCodeOK {
		return nil, &DeviceError{Code: h.ErrorCode, FunctionID: functionID}
	}
	return out, nil
}

// RegisterCallback delivers callback payloads of functionID to fn.
func (d *Device) RegisterCallback(functionID uint8, fn CallbackFunc) (uint64, error) {
	src, ok := d.transport.(CallbackSource)
	if !ok {
		return 0, ErrNoCallbacks
	}
	return src.RegisterCallback(d.uid, functionID, fn), nil
}

func (d *Device) DeregisterCallback(id uint64) {
	if src, ok := d.transport.(CallbackSource); ok {
		src.DeregisterCallback(id)
	}
}
