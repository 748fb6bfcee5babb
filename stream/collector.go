package stream

// Collector reassembles stream_out values delivered through callbacks.
// Chunks that do not continue the current value discard it; a value only
// starts at offset zero. Not safe for concurrent use.
type Collector[T any] struct {
	buf []T
	fn  func([]T)
}

// NewCollector calls fn with every complete value.
func NewCollector[T any](fn func(data []T)) *Collector[T] {
	return &Collector[T]{fn: fn}
}

// Add feeds one chunk. Single-chunk streams pass offset 0 and the number of
// valid items as length; fixed-length streams pass the fixed length.
func (c *Collector[T]) Add(length, offset int, data []T) {
	if offset != len(c.buf) {
		c.buf = nil
		if offset != 0 {
			return
		}
	}
	n := min(length-offset, len(data))
	if n > 0 {
		c.buf = append(c.buf, data[:n]...)
	}
	if len(c.buf) >= length {
		v := c.buf
		c.buf = nil
		if v == nil {
			v = []T{}
		}
		c.fn(v)
	}
}

// Pending is the number of items buffered for an incomplete value.
func (c *Collector[T]) Pending() int { return len(c.buf) }
