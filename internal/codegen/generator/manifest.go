package generator

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/brickgen/brickgen/internal/codegen/meta"
)

// ManifestName is the file listing the released files of a target.
const ManifestName = "__released_files__"

// ManifestEntry is one released file and its BLAKE2b-256 digest.
type ManifestEntry struct {
	Path   string
	Digest string
}

// Manifest records which generated files belong to a release:
//
//	# target c
//	# version 2.1.0
//	# run 3f0c...
//	<hex digest>  include/tf_device.h
type Manifest struct {
	Target  string
	Version string
	RunID   string
	Files   []ManifestEntry
}

// BuildManifest digests files, given relative to dir, into a manifest.
func BuildManifest(dir, target string, md *meta.Metadata, files []string) (*Manifest, error) {
	m := &Manifest{
		Target:  target,
		Version: md.Version().String(),
		RunID:   md.RunID.String(),
	}
	for _, f := range files {
		sum, err := Digest(filepath.Join(dir, filepath.FromSlash(f)))
		if err != nil {
			return nil, err
		}
		m.Files = append(m.Files, ManifestEntry{Path: f, Digest: sum})
	}
	slices.SortFunc(m.Files, func(a, b ManifestEntry) int { return strings.Compare(a.Path, b.Path) })
	return m, nil
}

// Digest returns the hex BLAKE2b-256 digest of a file.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteManifest writes m as ManifestName into dir.
func WriteManifest(dir string, m *Manifest) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# target %s\n", m.Target)
	fmt.Fprintf(&b, "# version %s\n", m.Version)
	fmt.Fprintf(&b, "# run %s\n", m.RunID)
	for _, e := range m.Files {
		fmt.Fprintf(&b, "%s  %s\n", e.Digest, e.Path)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ManifestName, err)
	}
	return nil
}

// ReadManifest parses the manifest in dir.
func ReadManifest(dir string) (*Manifest, error) {
	f, err := os.Open(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ManifestName, err)
	}
	defer f.Close()

	m := &Manifest{}
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(text, "# "); ok {
			key, value, _ := strings.Cut(rest, " ")
			switch key {
			case "target":
				m.Target = value
			case "version":
				m.Version = value
			case "run":
				m.RunID = value
			}
			continue
		}
		digest, path, ok := strings.Cut(text, "  ")
		if !ok || len(digest) != 2*blake2b.Size256 || path == "" {
			return nil, fmt.Errorf("%s:%d: malformed entry", ManifestName, line)
		}
		m.Files = append(m.Files, ManifestEntry{Path: path, Digest: digest})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", ManifestName, err)
	}
	return m, nil
}

// Verify recomputes the digests of m against dir and returns the paths that
// are missing or changed.
func Verify(dir string, m *Manifest) ([]string, error) {
	var bad []string
	for _, e := range m.Files {
		path := filepath.Join(dir, filepath.FromSlash(e.Path))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			bad = append(bad, e.Path)
			continue
		}
		sum, err := Digest(path)
		if err != nil {
			return nil, err
		}
		if sum != e.Digest {
			bad = append(bad, e.Path)
		}
	}
	return bad, nil
}
