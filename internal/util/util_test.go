package util

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitForKey(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("\nrest")
	WaitForKey(&out, in)
	assert.Equal(t, "Press Enter to exit...\n", out.String())
	assert.Equal(t, 4, in.Len())
}

func TestStartedFromExplorer(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("depends on the parent process")
	}
	assert.False(t, StartedFromExplorer())
}
