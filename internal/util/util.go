// Package util holds process helpers for the command line entry point.
package util

import (
	"fmt"
	"io"
)

// WaitForKey asks the user to press Enter and blocks until a byte arrives
// on r or r is closed.
func WaitForKey(w io.Writer, r io.Reader) {
	fmt.Fprintln(w, "Press Enter to exit...")
	b := make([]byte, 1)
	_, _ = r.Read(b)
}
