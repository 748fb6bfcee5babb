// Package client speaks the low-level request/response protocol to devices.
//
// A Transport carries complete frames. Conn is the TCP implementation: it
// keeps one connection open, numbers requests with sequence numbers 1..15,
// matches responses by UID, function id and sequence number, and hands
// frames with sequence number 0 to registered callback handlers.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/brickgen/brickgen/internal/log"
	"github.com/brickgen/brickgen/wire"
)

// Transport sends one request frame. When the frame has the response
// expected bit set the matching response frame is returned, otherwise nil.
type Transport interface {
	RoundTrip(ctx context.Context, frame []byte) ([]byte, error)
}

// CallbackFunc receives the payload of a callback frame.
type CallbackFunc func(payload []byte)

// CallbackSource is implemented by transports that deliver callbacks.
type CallbackSource interface {
	RegisterCallback(uid uint32, functionID uint8, fn CallbackFunc) uint64
	DeregisterCallback(id uint64)
}

var ErrClosed = errors.New("connection closed")

// Config controls low-level transport behavior such as timeouts.
type Config struct {
	DialTimeout time.Duration
	// ReadTimeout bounds the wait for a response when ctx has no deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
	Raw          log.RawLogger
}

func defaultConfig() Config {
	return Config{
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2500 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

type pendingKey struct {
	uid uint32
	fid uint8
	seq uint8
}

type callbackEntry struct {
	id  uint64
	uid uint32
	fid uint8
	fn  CallbackFunc
}

// Conn is a Transport over a single TCP connection.
type Conn struct {
	conn net.Conn
	cfg  Config

	writeMu sync.Mutex

	mu        sync.Mutex
	seq       uint8
	pending   map[pendingKey]chan []byte
	callbacks []callbackEntry
	nextID    uint64
	err       error

	done chan struct{}
}

// Dial connects to addr with the given config, nil selects defaults.
func Dial(ctx context.Context, addr string, cfg *Config) (*Conn, error) {
	c := defaultConfig()
	if cfg != nil {
		c = *cfg
	}
	d := &net.Dialer{Timeout: c.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if tcpConn, ok := nc.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			c.logger().Warn("failed to set TCP_NODELAY", "error", err)
		}
	}
	return NewConn(nc, &c), nil
}

// NewConn wraps an established connection.
func NewConn(nc net.Conn, cfg *Config) *Conn {
	c := defaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.Raw == nil {
		c.Raw = log.NewRaw(nil)
	}
	conn := &Conn{
		conn:    nc,
		cfg:     c,
		pending: make(map[pendingKey]chan []byte),
		done:    make(chan struct{}),
	}
	go conn.readLoop()
	return conn
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Close closes the connection and fails all waiting requests.
func (c *Conn) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Conn) nextSeq() uint8 {
	c.seq = c.seq%15 + 1
	return c.seq
}

// RoundTrip assigns a sequence number to frame, writes it and waits for the
// response if one is expected.
func (c *Conn) RoundTrip(ctx context.Context, frame []byte) ([]byte, error) {
	h, _, err := wire.SplitFrame(frame)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(frame))
	copy(out, frame)

	var ch chan []byte
	var key pendingKey
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	seq := c.nextSeq()
	out[6] = seq<<4 | out[6]&0x0f
	if h.ResponseExpected {
		key = pendingKey{uid: h.UID, fid: h.FunctionID, seq: seq}
		ch = make(chan []byte, 1)
		c.pending[key] = ch
	}
	c.mu.Unlock()

	defer func() {
		if ch != nil {
			c.mu.Lock()
			delete(c.pending, key)
			c.mu.Unlock()
		}
	}()

	if err := c.write(out); err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, nil
	}

	if _, ok := ctx.Deadline(); !ok && c.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ReadTimeout)
		defer cancel()
	}
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, c.closedErr()
		}
		return resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("function %d: %w", h.FunctionID, ctx.Err())
	}
}

func (c *Conn) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	c.cfg.Raw.Log(true, frame)
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (c *Conn) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

func (c *Conn) readLoop() {
	defer close(c.done)
	var err error
	for {
		var frame []byte
		frame, err = ReadFrame(c.conn)
		if err != nil {
			break
		}
		c.cfg.Raw.Log(false, frame)
		c.dispatch(frame)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		err = ErrClosed
	} else {
		c.cfg.logger().Error("connection lost", "error", err)
		err = fmt.Errorf("read: %w", err)
	}

	c.mu.Lock()
	c.err = err
	for k, ch := range c.pending {
		close(ch)
		delete(c.pending, k)
	}
	c.mu.Unlock()
}

func (c *Conn) dispatch(frame []byte) {
	h, payload, err := wire.SplitFrame(frame)
	if err != nil {
		c.cfg.logger().Warn("dropping malformed frame", "error", err)
		return
	}
	c.mu.Lock()
	if h.Sequence == 0 {
		var fns []CallbackFunc
		for _, cb := range c.callbacks {
			if cb.uid == h.UID && cb.fid == h.FunctionID {
				fns = append(fns, cb.fn)
			}
		}
		c.mu.Unlock()
		for _, fn := range fns {
			fn(payload)
		}
		return
	}
	ch, ok := c.pending[pendingKey{uid: h.UID, fid: h.FunctionID, seq: h.Sequence}]
	c.mu.Unlock()
	if !ok {
		c.cfg.logger().Debug("unexpected response", "uid", wire.FormatUID(uint64(h.UID)), "fid", h.FunctionID, "seq", h.Sequence)
		return
	}
	select {
	case ch <- frame:
	default:
	}
}

// RegisterCallback adds fn for callbacks of uid and functionID.
func (c *Conn) RegisterCallback(uid uint32, functionID uint8, fn CallbackFunc) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.callbacks = append(c.callbacks, callbackEntry{id: c.nextID, uid: uid, fid: functionID, fn: fn})
	return c.nextID
}

func (c *Conn) DeregisterCallback(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cb := range c.callbacks {
		if cb.id == id {
			c.callbacks = append(c.callbacks[:i], c.callbacks[i+1:]...)
			return
		}
	}
}

// ReadFrame reads one complete frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	hdr := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}
	n := int(hdr[4])
	if n < wire.HeaderSize || n > wire.MaxFrameSize {
		return nil, fmt.Errorf("invalid frame length %d", n)
	}
	frame := make([]byte, n)
	copy(frame, hdr)
	if _, err := io.ReadFull(r, frame[wire.HeaderSize:]); err != nil {
		return nil, err
	}
	return frame, nil
}
