package common

import (
	"strings"

	"github.com/brickgen/brickgen/model"
)

// SanitizeLeadingDigit prefixes names that start with a digit with "Num"
// to keep identifiers valid in target languages.
func SanitizeLeadingDigit(name string) string {
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "Num" + name
	}
	return name
}

// DeviceFileName is "<name>_<category>" in lower snake case, e.g.
// "stream_test_bricklet".
func DeviceFileName(d *model.Device) string {
	return d.FullName().Under()
}

// DeviceTypeName is "<Name><Category>" in camel case, e.g.
// "StreamTestBricklet".
func DeviceTypeName(d *model.Device) string {
	return SanitizeLeadingDigit(d.FullName().Camel())
}

// Identifier cleans a camel or snake case identifier of characters no
// target accepts.
func Identifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	return SanitizeLeadingDigit(b.String())
}

// CommentLines prefixes every line of text with prefix, trimming trailing
// blanks.
func CommentLines(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(prefix+l, " ")
	}
	return strings.Join(lines, "\n")
}
