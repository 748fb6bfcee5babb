package model

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Version is a MAJOR.MINOR.PATCH triple.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return sign(v.Major - o.Major)
	case v.Minor != o.Minor:
		return sign(v.Minor - o.Minor)
	default:
		return sign(v.Patch - o.Patch)
	}
}

func sign(i int) int {
	switch {
	case i < 0:
		return -1
	case i > 0:
		return 1
	}
	return 0
}

// ParseVersion parses "1.2.3".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected MAJOR.MINOR.PATCH", s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return Version{}, fmt.Errorf("invalid version %q: bad component %q", s, p)
		}
		n[i] = v
	}
	return Version{n[0], n[1], n[2]}, nil
}

func versionFromSlice(s []int) (Version, error) {
	if len(s) != 3 {
		return Version{}, fmt.Errorf("version needs 3 components, got %d", len(s))
	}
	for _, c := range s {
		if c < 0 {
			return Version{}, fmt.Errorf("version component %d is negative", c)
		}
	}
	return Version{s[0], s[1], s[2]}, nil
}

// ChangelogEntry is one released version of a bindings family.
type ChangelogEntry struct {
	Date    string
	Version Version
	Hash    string
	Notes   []string
}

// Changelog is a validated, strictly monotonic release history.
type Changelog struct {
	Entries []ChangelogEntry
}

var changelogLine = regexp.MustCompile(`^(\S+|<unknown>): (\d+)\.(\d+)\.(\d+) \((\S+|<unknown>)\)\s*$`)

// ParseChangelog reads a changelog.txt and validates the version progression:
// a major bump resets minor and patch, a minor bump resets patch, and a patch
// bump advances by exactly one.
func ParseChangelog(r io.Reader) (*Changelog, error) {
	cl := &Changelog{}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := changelogLine.FindStringSubmatch(line)
		if m == nil {
			if len(cl.Entries) == 0 {
				return nil, &GeneratorError{Msg: fmt.Sprintf("changelog line %d: note before first version entry", lineNo)}
			}
			last := &cl.Entries[len(cl.Entries)-1]
			last.Notes = append(last.Notes, strings.TrimSpace(line))
			continue
		}
		major, _ := strconv.Atoi(m[2])
		minor, _ := strconv.Atoi(m[3])
		patch, _ := strconv.Atoi(m[4])
		v := Version{major, minor, patch}

		if n := len(cl.Entries); n > 0 {
			if err := checkProgression(cl.Entries[n-1].Version, v); err != nil {
				return nil, &GeneratorError{Msg: fmt.Sprintf("changelog line %d: %v", lineNo, err)}
			}
		}
		cl.Entries = append(cl.Entries, ChangelogEntry{Date: m[1], Version: v, Hash: m[5]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read changelog: %w", err)
	}
	if len(cl.Entries) == 0 {
		return nil, &GeneratorError{Msg: "changelog has no version entries"}
	}
	return cl, nil
}

func checkProgression(prev, next Version) error {
	switch {
	case next.Major == prev.Major+1:
		if next.Minor != 0 || next.Patch != 0 {
			return fmt.Errorf("major advance %s -> %s must reset minor and patch", prev, next)
		}
	case next.Major == prev.Major && next.Minor == prev.Minor+1:
		if next.Patch != 0 {
			return fmt.Errorf("minor advance %s -> %s must reset patch", prev, next)
		}
	case next.Major == prev.Major && next.Minor == prev.Minor:
		if next.Patch != prev.Patch+1 {
			return fmt.Errorf("patch must advance by one: %s -> %s", prev, next)
		}
	default:
		return fmt.Errorf("non-monotonic version %s -> %s", prev, next)
	}
	return nil
}

// Latest returns the newest version.
func (c *Changelog) Latest() Version {
	return c.Entries[len(c.Entries)-1].Version
}
