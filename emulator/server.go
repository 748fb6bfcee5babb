package emulator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/brickgen/brickgen/client"
	"github.com/brickgen/brickgen/wire"
)

// Server exposes emulators over TCP the way a device daemon does: every
// connection may address any hosted device by UID and receives callbacks
// of all of them.
type Server struct {
	addr   string
	ln     net.Listener
	logger *slog.Logger

	mu      sync.Mutex
	devices map[uint32]*Emulator
	wg      sync.WaitGroup
}

// NewServer creates a server for addr hosting devs.
func NewServer(addr string, logger *slog.Logger, devs ...*Emulator) *Server {
	s := &Server{addr: addr, logger: logger, devices: make(map[uint32]*Emulator)}
	for _, d := range devs {
		s.devices[d.UID()] = d
	}
	return s
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Start listens on the configured address and serves connections.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("emulator listening", "addr", ln.Addr().String(), "devices", len(s.devices))
	s.wg.Add(1)
	go s.serve()
	return nil
}

// Close stops accepting connections.
func (s *Server) Close() {
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.wg.Wait()
}

// Serve blocks until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Close()
	return nil
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info("emulator stopped")
				return
			}
			s.logger.Info("emulator accept error", "error", err)
			return
		}
		go s.handleConn(c)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()

	connLogger := s.logger.With("remote", conn.RemoteAddr().String())
	connLogger.Debug("client connected")

	var writeMu sync.Mutex
	write := func(frame []byte) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := conn.Write(frame); err != nil {
			connLogger.Debug("write failed", "error", err)
		}
	}

	s.mu.Lock()
	var subs []func()
	for _, d := range s.devices {
		id := d.subscribe(0, 0, write)
		subs = append(subs, func() { d.unsubscribe(id) })
	}
	s.mu.Unlock()
	defer func() {
		for _, unsub := range subs {
			unsub()
		}
	}()

	for {
		frame, err := client.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				connLogger.Error("read frame", "error", err)
			}
			connLogger.Debug("client disconnected")
			return
		}
		var h wire.Header
		if err := h.UnmarshalBinary(frame); err != nil {
			continue
		}
		s.mu.Lock()
		d := s.devices[h.UID]
		s.mu.Unlock()
		if d == nil {
			connLogger.Debug("request for unknown device", "uid", wire.FormatUID(uint64(h.UID)), "fid", h.FunctionID)
			continue
		}
		if resp := d.Process(connCtx, frame); resp != nil {
			write(resp)
		}
	}
}
