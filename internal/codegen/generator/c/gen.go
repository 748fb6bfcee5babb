package cgen

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/brickgen/brickgen/internal/codegen/common"
	"github.com/brickgen/brickgen/internal/codegen/meta"
)

// Generate produces the C bindings under outputDir.
// It creates:
// - include/<prefix>_device.h (packet framing, response expected table, transport hook)
// - include/<prefix>_<device>.h (per-device defines and API)
// - src/<prefix>_device.c (common implementations)
// - src/<prefix>_<device>.c (per-device low-level and stream functions)
// - CMakeLists.txt, LICENSE.txt, README.md
//
// It returns the slash separated paths, relative to outputDir, of the files
// belonging to released devices.
func Generate(logger *slog.Logger, outputDir string, md *meta.Metadata) ([]string, error) {
	includeDir := filepath.Join(outputDir, "include")
	srcDir := filepath.Join(outputDir, "src")

	if err := os.MkdirAll(includeDir, 0755); err != nil {
		return nil, fmt.Errorf("create include dir: %w", err)
	}
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		return nil, fmt.Errorf("create src dir: %w", err)
	}

	if _, err := generateCommonHeader(logger, includeDir, md); err != nil {
		return nil, err
	}
	if _, err := generateCommonSource(logger, srcDir, md); err != nil {
		return nil, err
	}

	var released, sources []string
	for _, d := range md.Devices {
		f := newDeviceFile(md, d)
		header, err := generateDeviceHeader(logger, includeDir, f)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", d.FullName(), err)
		}
		source, err := generateDeviceSource(logger, srcDir, f)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", d.FullName(), err)
		}
		sources = append(sources, source)
		if d.Released() {
			released = append(released, path.Join("include", header), path.Join("src", source))
		}
	}

	if err := generateCMake(logger, outputDir, md, sources); err != nil {
		return nil, err
	}
	if err := common.GenerateLicense(logger, outputDir, md.Holder); err != nil {
		return nil, err
	}
	if err := common.GenerateReadme(logger, outputDir, "C", md.Version(), md.Devices); err != nil {
		return nil, err
	}

	logger.Info("Generated C bindings", "dir", outputDir, "devices", len(md.Devices))
	return released, nil
}
