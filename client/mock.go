package client

import (
	"context"
	"errors"
	"sync"

	"github.com/brickgen/brickgen/wire"
)

// Request is one frame seen by a MockTransport.
type Request struct {
	Header  wire.Header
	Payload []byte
}

// MockTransport answers requests from a responder function without real
// networking. A *DeviceError returned by the responder becomes an error
// response frame; any other error fails the round trip.
type MockTransport struct {
	mu       sync.Mutex
	respond  func(h wire.Header, payload []byte) ([]byte, error)
	requests []Request
}

// NewMockTransport creates a transport that returns canned responses.
func NewMockTransport(responder func(h wire.Header, payload []byte) ([]byte, error)) *MockTransport {
	return &MockTransport{respond: responder}
}

func (m *MockTransport) RoundTrip(_ context.Context, frame []byte) ([]byte, error) {
	h, payload, err := wire.SplitFrame(frame)
	if err != nil {
		return nil, err
	}
	p := make([]byte, len(payload))
	copy(p, payload)

	m.mu.Lock()
	m.requests = append(m.requests, Request{Header: h, Payload: p})
	m.mu.Unlock()

	out, err := m.respond(h, p)
	var devErr *DeviceError
	switch {
	case errors.As(err, &devErr):
		h.ErrorCode = devErr.Code
		out = nil
	case err != nil:
		return nil, err
	}
	if !h.ResponseExpected {
		return nil, nil
	}
	return wire.NewFrame(h, out)
}

// Requests returns the frames received so far.
func (m *MockTransport) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}
