package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/brickgen/brickgen/emulator"
	"github.com/brickgen/brickgen/internal/codegen/meta"
	"github.com/brickgen/brickgen/internal/log"
	"github.com/brickgen/brickgen/model"
	"github.com/brickgen/brickgen/wire"
)

type Simulate struct {
	Input       `embed:""`
	Addr        string `help:"Listen address of the emulated devices" default:":4223" env:"BRICKGEN_SIMULATE_ADDR"`
	UIDBase     uint32 `help:"UID of the first emulated device, the others count up" default:"4096" env:"BRICKGEN_SIMULATE_UID_BASE"`
	AcceptLimit int    `help:"Items short-write streams accept per value, 0 accepts all" default:"0" env:"BRICKGEN_SIMULATE_ACCEPT_LIMIT"`
	Device      string `help:"Only emulate the device with this name"`
}

// Run is called by Kong when the simulate command is executed.
func (s *Simulate) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	md, err := s.load(logger)
	if err != nil {
		return err
	}
	emus, err := s.Emulators(logger, rawLogger, md)
	if err != nil {
		return err
	}
	return emulator.NewServer(s.Addr, logger, emus...).Serve(ctx)
}

// Emulators creates one emulator per selected device. Stream_out packets
// are seeded with a ramp so clients read data right away.
func (s *Simulate) Emulators(logger *slog.Logger, rawLogger log.RawLogger, md *meta.Metadata) ([]*emulator.Emulator, error) {
	var emus []*emulator.Emulator
	uid := s.UIDBase
	for _, d := range md.Devices {
		if s.Device != "" && !strings.EqualFold(d.Name().Space(), s.Device) && !strings.EqualFold(d.FullName().Space(), s.Device) {
			continue
		}
		e := emulator.New(uid, d,
			emulator.WithLogger(logger),
			emulator.WithRawLogger(rawLogger),
			emulator.WithAcceptLimit(s.AcceptLimit))
		if err := seedStreams(e, d); err != nil {
			return nil, fmt.Errorf("%s: %w", d.FullName().Space(), err)
		}
		logger.Info("Emulating device", "device", d.FullName().Space(), "uid", wire.FormatUID(uint64(uid)), "identifier", d.Identifier())
		emus = append(emus, e)
		uid++
	}
	if len(emus) == 0 {
		return nil, fmt.Errorf("no device to emulate")
	}
	return emus, nil
}

func seedStreams(e *emulator.Emulator, d *model.Device) error {
	for _, p := range d.Streams() {
		st := p.Stream()
		if p.Type() != model.Function || st.Kind() != model.StreamOut {
			continue
		}
		if err := e.SetStreamOut(p.Name().Space(), ramp(st)); err != nil {
			return err
		}
	}
	return nil
}

// ramp returns sample data for st: the fixed length, one chunk for single
// chunk streams, or two and a half chunks otherwise.
func ramp(st *model.Stream) any {
	chunk := st.ChunkCardinality()
	n := st.FixedLength()
	switch {
	case n > 0:
	case st.SingleChunk():
		n = chunk
	default:
		n = min(chunk*5/2, st.MaxLength())
	}
	switch st.ChunkData().Type() {
	case model.Bool:
		out := make([]bool, n)
		for i := range out {
			out[i] = i%2 == 0
		}
		return out
	case model.Char:
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteByte('a' + byte(i%26))
		}
		return b.String()
	case model.Float:
		out := make([]float64, n)
		for i := range out {
			out[i] = float64(i) / 4
		}
		return out
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i % 100
	}
	return out
}
