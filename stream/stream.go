// Package stream moves values larger than one packet through repeated
// low-level calls.
//
// A stream_in value is cut into chunks of Config.ChunkSize items, each sent
// with its offset and the total length. A stream_out value is reassembled
// from chunks the device hands out in order; if the offsets do not line up
// the rest of the device's stream is drained and ErrStreamOutOfSync is
// returned instead of partial data.
package stream

import (
	"errors"
	"sync"

	"github.com/brickgen/brickgen/model"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrStreamOutOfSync  = errors.New("stream out of sync")
)

// Guard serializes high-level stream calls on one device so chunks of
// different calls never interleave. The zero value is ready to use.
type Guard struct {
	mu sync.Mutex
}

func (g *Guard) Lock() {
	if g != nil {
		g.mu.Lock()
	}
}

func (g *Guard) Unlock() {
	if g != nil {
		g.mu.Unlock()
	}
}

// Config describes the shape of one stream.
type Config struct {
	// ChunkSize is the number of items carried per low-level call.
	ChunkSize int
	// MaxLength bounds variable-length input.
	MaxLength int
	// FixedLength is non-zero for fixed-length streams.
	FixedLength int
	SingleChunk bool
	// ShortWrite streams report how many items of each chunk were accepted.
	ShortWrite bool
	// OffsetBits is the width of the chunk offset. An all-ones offset on a
	// fixed-length stream_out means the device has no data.
	OffsetBits int
}

// ConfigOf derives the runtime configuration of a model stream.
func ConfigOf(s *model.Stream) Config {
	return Config{
		ChunkSize:   s.ChunkCardinality(),
		MaxLength:   s.MaxLength(),
		FixedLength: s.FixedLength(),
		SingleChunk: s.SingleChunk(),
		ShortWrite:  s.ShortWrite(),
		OffsetBits:  s.OffsetBits(),
	}
}

func (c Config) sentinel() (int, bool) {
	if c.FixedLength == 0 || c.SingleChunk || c.OffsetBits <= 0 || c.OffsetBits > 32 {
		return 0, false
	}
	// Wraps like the int conversion of a decoded uint32 offset.
	return int(uint64(1)<<c.OffsetBits - 1), true
}
