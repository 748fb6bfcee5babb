package stream

import (
	"context"
	"fmt"
)

// InChunk is the request of one stream_in low-level call.
type InChunk[T any] struct {
	// Length is the total number of items of the value.
	Length int
	Offset int
	// Data always holds ChunkSize items, zero padded after the value ends.
	Data []T
}

// WriteFunc issues one low-level call and returns the number of items the
// device accepted. The count is only used by short-write streams.
type WriteFunc[T any] func(ctx context.Context, c InChunk[T]) (int, error)

// Write sends data through fn. It returns the number of items written: the
// device's aggregated count for short-write streams, len(data) otherwise.
// A failed chunk aborts the call and reports zero written.
func Write[T any](ctx context.Context, g *Guard, cfg Config, data []T, fn WriteFunc[T]) (int, error) {
	if cfg.ChunkSize <= 0 {
		return 0, fmt.Errorf("chunk size %d: %w", cfg.ChunkSize, ErrInvalidParameter)
	}
	if cfg.SingleChunk {
		return writeSingle(ctx, cfg, data, fn)
	}

	length := len(data)
	switch {
	case cfg.FixedLength > 0 && length != cfg.FixedLength:
		return 0, fmt.Errorf("expected %d items, got %d: %w", cfg.FixedLength, length, ErrInvalidParameter)
	case cfg.MaxLength > 0 && length > cfg.MaxLength:
		return 0, fmt.Errorf("%d items exceed the maximum of %d: %w", length, cfg.MaxLength, ErrInvalidParameter)
	}

	g.Lock()
	defer g.Unlock()

	if length == 0 {
		n, err := fn(ctx, InChunk[T]{Data: make([]T, cfg.ChunkSize)})
		if err != nil {
			return 0, err
		}
		if cfg.ShortWrite {
			return n, nil
		}
		return 0, nil
	}

	written := 0
	for off := 0; off < length; off += cfg.ChunkSize {
		chunk := make([]T, cfg.ChunkSize)
		copy(chunk, data[off:min(off+cfg.ChunkSize, length)])

		n, err := fn(ctx, InChunk[T]{Length: length, Offset: off, Data: chunk})
		if err != nil {
			return 0, err
		}
		if !cfg.ShortWrite {
			continue
		}
		written += n
		if n < cfg.ChunkSize {
			// either last chunk or short write
			break
		}
	}
	if cfg.ShortWrite {
		return written, nil
	}
	return length, nil
}

func writeSingle[T any](ctx context.Context, cfg Config, data []T, fn WriteFunc[T]) (int, error) {
	if len(data) > cfg.ChunkSize {
		return 0, fmt.Errorf("%d items exceed the chunk of %d: %w", len(data), cfg.ChunkSize, ErrInvalidParameter)
	}
	chunk := make([]T, cfg.ChunkSize)
	copy(chunk, data)
	n, err := fn(ctx, InChunk[T]{Length: len(data), Data: chunk})
	if err != nil {
		return 0, err
	}
	if cfg.ShortWrite {
		return n, nil
	}
	return len(data), nil
}
