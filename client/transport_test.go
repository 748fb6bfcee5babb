package client_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickgen/brickgen/client"
	"github.com/brickgen/brickgen/wire"
)

// startEchoDevice answers every request that expects a response with its own
// payload reversed and pushes one callback per request on function 200.
func startEchoDevice(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			frame, err := client.ReadFrame(conn)
			if err != nil {
				return
			}
			h, payload, err := wire.SplitFrame(frame)
			if err != nil {
				return
			}
			cb, _ := wire.NewFrame(wire.Header{UID: h.UID, FunctionID: 200, ResponseExpected: true}, payload)
			_, _ = conn.Write(cb)
			if !h.ResponseExpected {
				continue
			}
			out := make([]byte, len(payload))
			for i, b := range payload {
				out[len(out)-1-i] = b
			}
			if h.FunctionID == 99 {
				h.ErrorCode = wire.ErrorCodeFunctionNotSupported
				out = nil
			}
			resp, _ := wire.NewFrame(h, out)
			_, _ = conn.Write(resp)
		}
	}()
	return ln.Addr().String()
}

func TestConnRoundTrip(t *testing.T) {
	addr := startEchoDevice(t)
	conn, err := client.Dial(context.Background(), addr, nil)
	require.NoError(t, err)
	defer conn.Close()

	callbacks := make(chan []byte, 8)
	id := conn.RegisterCallback(7, 200, func(p []byte) { callbacks <- p })

	for i := 0; i < 20; i++ {
		frame, err := wire.NewFrame(wire.Header{UID: 7, FunctionID: 3, ResponseExpected: true}, []byte{1, 2, byte(i)})
		require.NoError(t, err)
		resp, err := conn.RoundTrip(context.Background(), frame)
		require.NoError(t, err)

		h, payload, err := wire.SplitFrame(resp)
		require.NoError(t, err)
		assert.Equal(t, uint8(i%15+1), h.Sequence, "sequence numbers cycle through 1..15")
		assert.Equal(t, []byte{byte(i), 2, 1}, payload)

		select {
		case p := <-callbacks:
			assert.Equal(t, []byte{1, 2, byte(i)}, p)
		case <-time.After(time.Second):
			t.Fatal("callback not delivered")
		}
	}

	conn.DeregisterCallback(id)
	frame, _ := wire.NewFrame(wire.Header{UID: 7, FunctionID: 4}, nil)
	resp, err := conn.RoundTrip(context.Background(), frame)
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestConnTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		time.Sleep(time.Second)
	}()

	conn, err := client.Dial(context.Background(), ln.Addr().String(), &client.Config{ReadTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer conn.Close()

	frame, _ := wire.NewFrame(wire.Header{UID: 1, FunctionID: 1, ResponseExpected: true}, nil)
	_, err = conn.RoundTrip(context.Background(), frame)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnClosed(t *testing.T) {
	a, b := net.Pipe()
	conn := client.NewConn(a, nil)
	_ = b.Close()
	require.NoError(t, conn.Close())

	frame, _ := wire.NewFrame(wire.Header{UID: 1, FunctionID: 1, ResponseExpected: true}, nil)
	_, err := conn.RoundTrip(context.Background(), frame)
	assert.ErrorIs(t, err, client.ErrClosed)
}

func TestDeviceOverConn(t *testing.T) {
	addr := startEchoDevice(t)
	conn, err := client.Dial(context.Background(), addr, nil)
	require.NoError(t, err)
	defer conn.Close()

	dev := client.NewDevice(7, conn, nil)
	out, err := dev.Get(context.Background(), 5, []byte{9, 8})
	require.NoError(t, err)
	assert.Equal(t, []byte{8, 9}, out)

	_, err = dev.Get(context.Background(), 99, nil)
	assert.ErrorIs(t, err, client.ErrFunctionNotSupported)
}
