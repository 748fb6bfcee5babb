package common

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const licenseTemplate = `Creative Commons Legal Code

CC0 1.0 Universal

Copyright (c) %d %s

The generated bindings in this directory are dedicated to the public domain.
To the extent possible under law, the authors have waived all copyright and
related or neighboring rights to them. You can copy, modify and distribute
them, even for commercial purposes, without asking permission.

THE BINDINGS ARE PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED. IN NO EVENT SHALL THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR
OTHER LIABILITY ARISING FROM THE USE OF THE BINDINGS.
`

// GenerateLicense writes LICENSE.txt crediting holder for the current year.
func GenerateLicense(logger *slog.Logger, outputDir, holder string) error {
	path := filepath.Join(outputDir, "LICENSE.txt")
	text := fmt.Sprintf(licenseTemplate, time.Now().Year(), holder)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("license for %s: %w", holder, err)
	}
	logger.Debug("Wrote license", "path", path, "holder", holder)
	return nil
}
