package stream

import (
	"context"
	"fmt"
)

// OutChunk is the response of one stream_out low-level call.
type OutChunk[T any] struct {
	// Length is the total number of items, or the number of valid items
	// for single-chunk streams. Ignored for fixed-length streams.
	Length int
	Offset int
	Data   []T
}

// ReadFunc issues one low-level call.
type ReadFunc[T any] func(ctx context.Context) (OutChunk[T], error)

// Read reassembles a value from the chunks returned by fn. A chunk whose
// length or data does not fit cfg aborts the call with ErrInvalidParameter.
func Read[T any](ctx context.Context, g *Guard, cfg Config, fn ReadFunc[T]) ([]T, error) {
	if cfg.SingleChunk {
		return readSingle(ctx, fn)
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size %d: %w", cfg.ChunkSize, ErrInvalidParameter)
	}

	g.Lock()
	defer g.Unlock()

	next := func() (OutChunk[T], error) {
		c, err := fn(ctx)
		if err != nil {
			return c, err
		}
		return c, checkChunk(cfg, c)
	}

	c, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if s, ok := cfg.sentinel(); ok && c.Offset == s {
		return []T{}, nil
	}
	if err := checkChunk(cfg, c); err != nil {
		return nil, err
	}

	length := cfg.FixedLength
	if length == 0 {
		length = c.Length
	}

	out := make([]T, 0, length)
	inSync := c.Offset == 0
	if inSync {
		out = appendChunk(out, c, length)
		for len(out) < length {
			if c, err = next(); err != nil {
				return nil, err
			}
			if c.Offset != len(out) || (cfg.FixedLength == 0 && c.Length != length) {
				inSync = false
				break
			}
			out = appendChunk(out, c, length)
		}
	}
	if inSync {
		return out, nil
	}

	// Drain what is left so the device's cursor ends at the stream end. A
	// device that never gets there is given one pass over the value.
	limit := length/cfg.ChunkSize + 1
	for calls := limit; ; calls-- {
		if cfg.FixedLength == 0 {
			length = c.Length
		}
		if c.Offset+cfg.ChunkSize >= length {
			break
		}
		if calls <= 0 {
			return nil, fmt.Errorf("stream did not end after %d chunks: %w", limit, ErrStreamOutOfSync)
		}
		if c, err = next(); err != nil {
			return nil, err
		}
	}
	return nil, ErrStreamOutOfSync
}

// checkChunk rejects chunks a well-behaved device never sends: a data
// block of the wrong size, a negative offset, or a variable length outside
// 0..MaxLength.
func checkChunk[T any](cfg Config, c OutChunk[T]) error {
	if len(c.Data) != cfg.ChunkSize {
		return fmt.Errorf("chunk carries %d items, expected %d: %w", len(c.Data), cfg.ChunkSize, ErrInvalidParameter)
	}
	if c.Offset < 0 {
		return fmt.Errorf("negative chunk offset %d: %w", c.Offset, ErrInvalidParameter)
	}
	if cfg.FixedLength == 0 && (c.Length < 0 || (cfg.MaxLength > 0 && c.Length > cfg.MaxLength)) {
		return fmt.Errorf("stream length %d outside 0..%d: %w", c.Length, cfg.MaxLength, ErrInvalidParameter)
	}
	return nil
}

func appendChunk[T any](out []T, c OutChunk[T], length int) []T {
	n := min(length-c.Offset, len(c.Data))
	if n <= 0 {
		return out
	}
	return append(out, c.Data[:n]...)
}

func readSingle[T any](ctx context.Context, fn ReadFunc[T]) ([]T, error) {
	c, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if c.Length < 0 || c.Length > len(c.Data) {
		return nil, fmt.Errorf("device reported %d items in a chunk of %d: %w", c.Length, len(c.Data), ErrInvalidParameter)
	}
	out := make([]T, c.Length)
	copy(out, c.Data)
	return out, nil
}
