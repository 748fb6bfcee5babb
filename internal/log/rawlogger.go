package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/brickgen/brickgen/wire"
)

// RawLogger traces protocol frames. in is true for host to device.
type RawLogger interface {
	Log(in bool, frame []byte)
}

type rawLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewRaw returns a RawLogger writing one line per frame to w. A nil w
// yields a logger that drops everything.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

func (r *rawLogger) Log(in bool, frame []byte) {
	if r.w == nil || len(frame) == 0 {
		return
	}
	var line strings.Builder
	line.WriteString(time.Now().Format(time.DateTime))
	if in {
		line.WriteString(" H->D ")
	} else {
		line.WriteString(" D->H ")
	}
	var h wire.Header
	if h.UnmarshalBinary(frame) == nil {
		fmt.Fprintf(&line, "uid=%s fid=%d seq=%d re=%t err=%d ",
			wire.FormatUID(uint64(h.UID)), h.FunctionID, h.Sequence, h.ResponseExpected, h.ErrorCode)
	}
	fmt.Fprintf(&line, "frame: %d bytes, hex: % x\n", len(frame), frame)

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.w, line.String())
}
