package model

import (
	"strings"
	"sync"
	"unicode"
)

// Name is an identifier given as space separated words ("Get Chunk Offset")
// that renders into the casing flavors target languages need. Acronyms keep
// their spelling in the camel flavors ("GPIO Action" -> "GPIOAction").
type Name struct {
	words []string

	mu    sync.Mutex
	skips map[int]*Name
}

// NewName splits s on whitespace.
func NewName(s string) *Name {
	return &Name{words: strings.Fields(s)}
}

func (n *Name) Words() []string { return append([]string(nil), n.words...) }

func (n *Name) Empty() bool { return len(n.words) == 0 }

// Space returns the words joined by single spaces ("Get Chunk Offset").
func (n *Name) Space() string { return strings.Join(n.words, " ") }

// Camel returns "GetChunkOffset".
func (n *Name) Camel() string { return strings.Join(n.words, "") }

// Headless returns "getChunkOffset". A leading all-caps word is lowered
// completely ("GPIO Action" -> "gpioAction").
func (n *Name) Headless() string {
	if len(n.words) == 0 {
		return ""
	}
	first := n.words[0]
	if isAllUpper(first) {
		first = strings.ToLower(first)
	} else {
		r := []rune(first)
		r[0] = unicode.ToLower(r[0])
		first = string(r)
	}
	return first + strings.Join(n.words[1:], "")
}

// Under returns "get_chunk_offset".
func (n *Name) Under() string { return strings.ToLower(strings.Join(n.words, "_")) }

// Upper returns "GET_CHUNK_OFFSET".
func (n *Name) Upper() string { return strings.ToUpper(strings.Join(n.words, "_")) }

// Dash returns "get-chunk-offset".
func (n *Name) Dash() string { return strings.ToLower(strings.Join(n.words, "-")) }

// Lower returns "get chunk offset".
func (n *Name) Lower() string { return strings.ToLower(n.Space()) }

func (n *Name) String() string { return n.Space() }

// Skip drops words: a positive count from the front, a negative count from
// the back. Results are memoized per count.
func (n *Name) Skip(count int) *Name {
	if count == 0 {
		return n
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if s, ok := n.skips[count]; ok {
		return s
	}
	var words []string
	switch {
	case count > 0 && count < len(n.words):
		words = n.words[count:]
	case count < 0 && -count < len(n.words):
		words = n.words[:len(n.words)+count]
	}
	s := &Name{words: append([]string(nil), words...)}
	if n.skips == nil {
		n.skips = make(map[int]*Name)
	}
	n.skips[count] = s
	return s
}

// Join appends the words of other.
func (n *Name) Join(other *Name) *Name {
	words := append(append([]string(nil), n.words...), other.words...)
	return &Name{words: words}
}

// HasSuffix reports whether the trailing words equal suffix.
func (n *Name) HasSuffix(suffix string) bool {
	sw := strings.Fields(suffix)
	if len(sw) > len(n.words) {
		return false
	}
	tail := n.words[len(n.words)-len(sw):]
	for i := range sw {
		if tail[i] != sw[i] {
			return false
		}
	}
	return true
}

// HasWord reports whether any word equals w.
func (n *Name) HasWord(w string) bool {
	for _, x := range n.words {
		if x == w {
			return true
		}
	}
	return false
}

// EqualFold compares the space flavor case-insensitively.
func (n *Name) EqualFold(other *Name) bool {
	return strings.EqualFold(n.Space(), other.Space())
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter && len(s) > 1
}
