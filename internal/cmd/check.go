package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/brickgen/brickgen/internal/codegen/generator"
)

type Check struct {
	Input    `embed:""`
	Bindings string `help:"Also verify the release manifests of the targets generated under this directory" type:"path" env:"BRICKGEN_CHECK_BINDINGS"`
}

// Run validates the definitions and, with --bindings, compares every
// released file against its recorded digest.
func (c *Check) Run(logger *slog.Logger) error {
	md, err := c.load(logger)
	if err != nil {
		return err
	}
	logger.Info("Definitions are valid", "devices", len(md.Devices), "version", md.Version().String())
	if c.Bindings == "" {
		return nil
	}

	problems := 0
	for _, target := range generator.Targets() {
		dir := filepath.Join(c.Bindings, target)
		m, err := generator.ReadManifest(dir)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("No release manifest", "target", target, "dir", dir)
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		if m.Version != md.Version().String() {
			logger.Warn("Bindings were generated for another version", "target", target, "manifest", m.Version, "changelog", md.Version().String())
			problems++
		}
		bad, err := generator.Verify(dir, m)
		if err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		for _, p := range bad {
			logger.Error("Released file changed or missing", "target", target, "file", p)
		}
		problems += len(bad)
		logger.Info("Verified release manifest", "target", target, "files", len(m.Files), "run", m.RunID)
	}
	if problems > 0 {
		return fmt.Errorf("release check found %d problem(s)", problems)
	}
	return nil
}
