package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		h    Header
		want []byte
	}{
		{
			name: "request",
			h:    Header{UID: 0x01020304, Length: 12, FunctionID: 7, Sequence: 3, ResponseExpected: true},
			want: []byte{0x04, 0x03, 0x02, 0x01, 12, 7, 0x38, 0x00},
		},
		{
			name: "callback",
			h:    Header{UID: 42, Length: 8, FunctionID: 255, Sequence: 0, ResponseExpected: true},
			want: []byte{42, 0, 0, 0, 8, 255, 0x08, 0x00},
		},
		{
			name: "error response",
			h:    Header{UID: 1, Length: 8, FunctionID: 1, Sequence: 15, ErrorCode: ErrorCodeFunctionNotSupported},
			want: []byte{1, 0, 0, 0, 8, 1, 0xf0, 0x80},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.h.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, tt.want, b)

			var got Header
			require.NoError(t, got.UnmarshalBinary(b))
			assert.Equal(t, tt.h, got)
		})
	}
}

func TestHeaderRejectsOverflow(t *testing.T) {
	_, err := Header{Sequence: 16}.MarshalBinary()
	assert.Error(t, err)
	_, err = Header{ErrorCode: 4}.MarshalBinary()
	assert.Error(t, err)

	var h Header
	assert.ErrorIs(t, h.UnmarshalBinary([]byte{1, 2, 3}), ErrShortFrame)
}

func TestFrame(t *testing.T) {
	frame, err := NewFrame(Header{UID: 9, FunctionID: 2, Sequence: 1}, []byte{0xaa, 0xbb})
	require.NoError(t, err)
	assert.Len(t, frame, 10)
	assert.Equal(t, uint8(10), frame[4])

	h, payload, err := SplitFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), h.UID)
	assert.Equal(t, []byte{0xaa, 0xbb}, payload)

	_, _, err = SplitFrame(frame[:9])
	assert.Error(t, err)

	_, err = NewFrame(Header{}, make([]byte, 65))
	assert.Error(t, err)
}
