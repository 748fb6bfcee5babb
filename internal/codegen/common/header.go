package common

import (
	"fmt"
	"strings"

	"github.com/brickgen/brickgen/model"
)

// CommentStyle selects how HeaderComment frames its banner.
type CommentStyle int

const (
	SlashComment CommentStyle = iota
	BlockComment
	HashComment
)

// HeaderComment returns the banner placed at the top of generated files.
// It carries no timestamp so regenerated files only differ when their
// content does.
func HeaderComment(style CommentStyle, target string, version model.Version) string {
	lines := []string{
		"This file was automatically generated by brickgen.",
		"",
		fmt.Sprintf("%s Bindings Version %s", target, version),
		"",
		"If you have a bugfix for this file and want to commit it,",
		"please fix the bug in the generator instead.",
	}
	switch style {
	case BlockComment:
		width := 0
		for _, l := range lines {
			width = max(width, len(l))
		}
		var b strings.Builder
		b.WriteString("/* " + strings.Repeat("*", width+2) + "\n")
		for _, l := range lines {
			fmt.Fprintf(&b, " * %-*s *\n", width, l)
		}
		b.WriteString(" " + strings.Repeat("*", width+3) + "/\n")
		return b.String()
	case HashComment:
		return CommentLines(strings.Join(lines, "\n"), "# ") + "\n"
	}
	return CommentLines(strings.Join(lines, "\n"), "// ") + "\n"
}
