package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type lowLevel struct {
	mock.Mock
	guard *Guard
	held  []bool
}

func (m *lowLevel) write(_ context.Context, c InChunk[byte]) (int, error) {
	m.recordGuard()
	args := m.Called(c.Length, c.Offset, c.Data)
	return args.Int(0), args.Error(1)
}

func (m *lowLevel) read(_ context.Context) (OutChunk[byte], error) {
	m.recordGuard()
	args := m.Called()
	return args.Get(0).(OutChunk[byte]), args.Error(1)
}

func (m *lowLevel) recordGuard() {
	if m.guard == nil {
		return
	}
	locked := !m.guard.mu.TryLock()
	if !locked {
		m.guard.mu.Unlock()
	}
	m.held = append(m.held, locked)
}

func seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i + 1)
	}
	return b
}

func padded(data []byte, size int) []byte {
	b := make([]byte, size)
	copy(b, data)
	return b
}

func TestWriteChunks(t *testing.T) {
	data := seq(70)
	m := &lowLevel{guard: &Guard{}}
	m.On("write", 70, 0, data[0:30]).Return(0, nil).Once()
	m.On("write", 70, 30, data[30:60]).Return(0, nil).Once()
	m.On("write", 70, 60, padded(data[60:], 30)).Return(0, nil).Once()

	n, err := Write(context.Background(), m.guard, Config{ChunkSize: 30, MaxLength: 65535}, data, m.write)
	require.NoError(t, err)
	assert.Equal(t, 70, n)
	m.AssertExpectations(t)
	assert.Equal(t, []bool{true, true, true}, m.held)
}

func TestWriteEmptyIssuesOneCall(t *testing.T) {
	m := &lowLevel{}
	m.On("write", 0, 0, make([]byte, 30)).Return(0, nil).Once()

	n, err := Write(context.Background(), &Guard{}, Config{ChunkSize: 30}, nil, m.write)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	m.AssertExpectations(t)
}

func TestWriteFixedLength(t *testing.T) {
	data := seq(10)
	cfg := Config{ChunkSize: 4, FixedLength: 10, MaxLength: 10}
	m := &lowLevel{}
	m.On("write", 10, 0, data[0:4]).Return(0, nil).Once()
	m.On("write", 10, 4, data[4:8]).Return(0, nil).Once()
	m.On("write", 10, 8, []byte{9, 10, 0, 0}).Return(0, nil).Once()

	n, err := Write(context.Background(), nil, cfg, data, m.write)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	m.AssertExpectations(t)
}

func TestWriteRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		data []byte
	}{
		{"fixed length too short", Config{ChunkSize: 4, FixedLength: 10}, seq(9)},
		{"fixed length too long", Config{ChunkSize: 4, FixedLength: 10}, seq(11)},
		{"beyond max length", Config{ChunkSize: 4, MaxLength: 8}, seq(9)},
		{"single chunk overflow", Config{ChunkSize: 4, SingleChunk: true}, seq(5)},
		{"no chunk size", Config{}, seq(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &lowLevel{}
			_, err := Write(context.Background(), &Guard{}, tt.cfg, tt.data, m.write)
			assert.ErrorIs(t, err, ErrInvalidParameter)
			m.AssertNotCalled(t, "write", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestWriteShortWrite(t *testing.T) {
	data := seq(70)
	cfg := Config{ChunkSize: 30, MaxLength: 65535, ShortWrite: true}

	tests := []struct {
		name     string
		accepted []int
		failAt   int
		want     int
		calls    int
	}{
		{"all accepted", []int{30, 30, 10}, -1, 70, 3},
		{"device stops early", []int{30, 12}, -1, 42, 2},
		{"nothing accepted", []int{0}, -1, 0, 1},
		{"failed chunk resets count", []int{30, 0}, 1, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &lowLevel{}
			for i, n := range tt.accepted {
				var err error
				if i == tt.failAt {
					err = errors.New("timeout")
				}
				m.On("write", 70, i*30, mock.Anything).Return(n, err).Once()
			}
			n, err := Write(context.Background(), &Guard{}, cfg, data, m.write)
			if tt.failAt >= 0 {
				assert.EqualError(t, err, "timeout")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, n)
			m.AssertNumberOfCalls(t, "write", tt.calls)
		})
	}
}

func TestWriteSingleChunk(t *testing.T) {
	g := &Guard{}
	m := &lowLevel{guard: g}
	m.On("write", 3, 0, []byte{1, 2, 3, 0, 0}).Return(2, nil).Once()

	n, err := Write(context.Background(), g, Config{ChunkSize: 5, SingleChunk: true}, seq(3), m.write)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []bool{false}, m.held)

	m.On("write", 3, 0, []byte{1, 2, 3, 0, 0}).Return(2, nil).Once()
	n, err = Write(context.Background(), g, Config{ChunkSize: 5, SingleChunk: true, ShortWrite: true}, seq(3), m.write)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	m.AssertExpectations(t)
}

func TestReadFixedLength(t *testing.T) {
	data := seq(10)
	cfg := Config{ChunkSize: 4, FixedLength: 10, OffsetBits: 16}
	g := &Guard{}
	m := &lowLevel{guard: g}
	m.On("read").Return(OutChunk[byte]{Offset: 0, Data: data[0:4]}, nil).Once()
	m.On("read").Return(OutChunk[byte]{Offset: 4, Data: data[4:8]}, nil).Once()
	m.On("read").Return(OutChunk[byte]{Offset: 8, Data: padded(data[8:], 4)}, nil).Once()

	got, err := Read(context.Background(), g, cfg, m.read)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	m.AssertExpectations(t)
	assert.Equal(t, []bool{true, true, true}, m.held)
}

func TestReadVariableLength(t *testing.T) {
	data := seq(9)
	m := &lowLevel{}
	m.On("read").Return(OutChunk[byte]{Length: 9, Offset: 0, Data: data[0:5]}, nil).Once()
	m.On("read").Return(OutChunk[byte]{Length: 9, Offset: 5, Data: padded(data[5:], 5)}, nil).Once()

	got, err := Read(context.Background(), &Guard{}, Config{ChunkSize: 5}, m.read)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	m.AssertExpectations(t)
}

func TestReadEmpty(t *testing.T) {
	t.Run("variable length zero", func(t *testing.T) {
		m := &lowLevel{}
		m.On("read").Return(OutChunk[byte]{Length: 0, Offset: 0, Data: make([]byte, 5)}, nil).Once()
		got, err := Read(context.Background(), &Guard{}, Config{ChunkSize: 5}, m.read)
		require.NoError(t, err)
		assert.Empty(t, got)
		m.AssertNumberOfCalls(t, "read", 1)
	})
	t.Run("fixed length sentinel", func(t *testing.T) {
		m := &lowLevel{}
		m.On("read").Return(OutChunk[byte]{Offset: 0xffff, Data: make([]byte, 4)}, nil).Once()
		got, err := Read(context.Background(), &Guard{}, Config{ChunkSize: 4, FixedLength: 10, OffsetBits: 16}, m.read)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		m.AssertNumberOfCalls(t, "read", 1)
	})
}

func TestReadOutOfSync(t *testing.T) {
	chunk := make([]byte, 4)
	tests := []struct {
		name   string
		chunks []OutChunk[byte]
		cfg    Config
	}{
		{
			name: "first chunk not at zero drains the rest",
			cfg:  Config{ChunkSize: 4},
			chunks: []OutChunk[byte]{
				{Length: 10, Offset: 4, Data: chunk},
				{Length: 10, Offset: 8, Data: chunk},
			},
		},
		{
			name: "skipped chunk ends at stream end",
			cfg:  Config{ChunkSize: 4},
			chunks: []OutChunk[byte]{
				{Length: 10, Offset: 0, Data: chunk},
				{Length: 10, Offset: 8, Data: chunk},
			},
		},
		{
			name: "repeated chunk drains",
			cfg:  Config{ChunkSize: 4, FixedLength: 14, OffsetBits: 8},
			chunks: []OutChunk[byte]{
				{Offset: 0, Data: chunk},
				{Offset: 0, Data: chunk},
				{Offset: 4, Data: chunk},
				{Offset: 8, Data: chunk},
				{Offset: 12, Data: chunk},
			},
		},
		{
			name: "length changed",
			cfg:  Config{ChunkSize: 4},
			chunks: []OutChunk[byte]{
				{Length: 10, Offset: 0, Data: chunk},
				{Length: 6, Offset: 4, Data: chunk},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &lowLevel{}
			for _, c := range tt.chunks {
				m.On("read").Return(c, nil).Once()
			}
			got, err := Read(context.Background(), &Guard{}, tt.cfg, m.read)
			assert.ErrorIs(t, err, ErrStreamOutOfSync)
			assert.Nil(t, got)
			m.AssertExpectations(t)
		})
	}
}

func TestReadRejectsMalformedChunk(t *testing.T) {
	full := make([]byte, 4)
	variable := Config{ChunkSize: 4, MaxLength: 100}
	tests := []struct {
		name   string
		cfg    Config
		chunks []OutChunk[byte]
	}{
		{"negative length", variable, []OutChunk[byte]{{Length: -1, Data: full}}},
		{"length above maximum", variable, []OutChunk[byte]{{Length: 1 << 30, Data: full}}},
		{"empty data", variable, []OutChunk[byte]{{Length: 10, Data: nil}}},
		{"negative offset", variable, []OutChunk[byte]{{Length: 10, Offset: -4, Data: full}}},
		{"short later chunk", variable, []OutChunk[byte]{
			{Length: 10, Offset: 0, Data: full},
			{Length: 10, Offset: 4, Data: full[:2]},
		}},
		{"oversized chunk", variable, []OutChunk[byte]{{Length: 10, Data: make([]byte, 5)}}},
		{"fixed length short chunk", Config{ChunkSize: 4, FixedLength: 10, OffsetBits: 16}, []OutChunk[byte]{
			{Offset: 0, Data: full[:3]},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Guard{}
			m := &lowLevel{}
			for _, c := range tt.chunks {
				m.On("read").Return(c, nil).Once()
			}
			got, err := Read(context.Background(), g, tt.cfg, m.read)
			assert.ErrorIs(t, err, ErrInvalidParameter)
			assert.Nil(t, got)
			m.AssertExpectations(t)

			require.True(t, g.mu.TryLock(), "guard released after a rejected chunk")
			g.mu.Unlock()
		})
	}
}

func TestReadDrainGivesUp(t *testing.T) {
	m := &lowLevel{}
	m.On("read").Return(OutChunk[byte]{Length: 10, Offset: 4, Data: make([]byte, 4)}, nil)

	_, err := Read(context.Background(), &Guard{}, Config{ChunkSize: 4, MaxLength: 100}, m.read)
	assert.ErrorIs(t, err, ErrStreamOutOfSync)
	m.AssertNumberOfCalls(t, "read", 4)
}

func TestReadSentinel32Bit(t *testing.T) {
	allOnes := ^uint32(0)
	m := &lowLevel{}
	m.On("read").Return(OutChunk[byte]{Offset: int(allOnes), Data: make([]byte, 4)}, nil).Once()

	got, err := Read(context.Background(), &Guard{}, Config{ChunkSize: 4, FixedLength: 10, OffsetBits: 32}, m.read)
	require.NoError(t, err)
	assert.Empty(t, got)
	m.AssertNumberOfCalls(t, "read", 1)
}

func TestGuardSerializesConcurrentCalls(t *testing.T) {
	const (
		callers = 4
		items   = 20
	)
	cfg := Config{ChunkSize: 4, MaxLength: 100}
	g := &Guard{}

	var mu sync.Mutex
	var order []int
	record := func(id int) {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
		time.Sleep(time.Millisecond)
	}

	start := make(chan struct{})
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for id := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if id%2 == 0 {
				_, err := Write(context.Background(), g, cfg, seq(items), func(_ context.Context, c InChunk[byte]) (int, error) {
					record(id)
					return len(c.Data), nil
				})
				errs <- err
				return
			}
			offset := 0
			_, err := Read(context.Background(), g, cfg, func(context.Context) (OutChunk[byte], error) {
				record(id)
				c := OutChunk[byte]{Length: items, Offset: offset, Data: make([]byte, cfg.ChunkSize)}
				offset += cfg.ChunkSize
				return c, nil
			})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	chunksPerCall := items / cfg.ChunkSize
	require.Len(t, order, callers*chunksPerCall)
	for i := 0; i < len(order); i += chunksPerCall {
		block := order[i : i+chunksPerCall]
		for _, id := range block {
			assert.Equal(t, block[0], id, "chunks of one call are contiguous: %v", order)
		}
	}
}

func TestReadAbortsOnError(t *testing.T) {
	g := &Guard{}
	m := &lowLevel{}
	m.On("read").Return(OutChunk[byte]{Length: 10, Offset: 0, Data: make([]byte, 4)}, nil).Once()
	m.On("read").Return(OutChunk[byte]{}, context.DeadlineExceeded).Once()

	_, err := Read(context.Background(), g, Config{ChunkSize: 4}, m.read)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	m.AssertNumberOfCalls(t, "read", 2)

	require.True(t, g.mu.TryLock(), "guard released after failure")
	g.mu.Unlock()
}

func TestReadSingleChunk(t *testing.T) {
	m := &lowLevel{}
	m.On("read").Return(OutChunk[byte]{Length: 3, Data: []byte{7, 8, 9, 0, 0}}, nil).Once()
	got, err := Read(context.Background(), nil, Config{ChunkSize: 5, SingleChunk: true}, m.read)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8, 9}, got)

	m.On("read").Return(OutChunk[byte]{Length: 6, Data: make([]byte, 5)}, nil).Once()
	_, err = Read(context.Background(), nil, Config{ChunkSize: 5, SingleChunk: true}, m.read)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestCollector(t *testing.T) {
	var got [][]byte
	c := NewCollector(func(v []byte) { got = append(got, v) })

	c.Add(6, 0, []byte{1, 2, 3, 4})
	assert.Equal(t, 4, c.Pending())
	c.Add(6, 4, []byte{5, 6, 0, 0})
	assert.Equal(t, [][]byte{{1, 2, 3, 4, 5, 6}}, got)
	assert.Equal(t, 0, c.Pending())

	// chunk in the middle of a value that never started
	c.Add(6, 4, []byte{9, 9, 9, 9})
	assert.Equal(t, 0, c.Pending())

	// a new value restarts at zero
	c.Add(6, 0, []byte{1, 1, 1, 1})
	c.Add(6, 0, []byte{2, 2, 2, 2})
	assert.Equal(t, 4, c.Pending())
	c.Add(6, 4, []byte{3, 3, 0, 0})
	assert.Equal(t, []byte{2, 2, 2, 2, 3, 3}, got[1])

	c.Add(0, 0, make([]byte, 4))
	require.Len(t, got, 3)
	assert.Empty(t, got[2])
}
