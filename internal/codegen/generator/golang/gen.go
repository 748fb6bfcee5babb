// Package gogen emits Go bindings: one package per device built on the
// client, stream and wire packages of this module.
package gogen

import (
	"fmt"
	"go/format"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/brickgen/brickgen/internal/codegen/common"
	"github.com/brickgen/brickgen/internal/codegen/meta"
	"github.com/brickgen/brickgen/model"
)

// Generate writes <device>/<device>.go for every device under outputDir and
// returns the slash separated paths of the released ones.
func Generate(logger *slog.Logger, outputDir string, md *meta.Metadata) ([]string, error) {
	var released []string
	for _, d := range md.Devices {
		rel, err := generateDevice(logger, outputDir, d, md.Version())
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", d.FullName(), err)
		}
		if d.Released() {
			released = append(released, rel)
		}
	}
	if err := common.GenerateLicense(logger, outputDir, md.Holder); err != nil {
		return nil, err
	}
	if err := common.GenerateReadme(logger, outputDir, "Go", md.Version(), md.Devices); err != nil {
		return nil, err
	}
	logger.Info("Generated Go bindings", "dir", outputDir, "devices", len(md.Devices))
	return released, nil
}

func generateDevice(logger *slog.Logger, outputDir string, d *model.Device, version model.Version) (string, error) {
	src, err := Source(d, version)
	if err != nil {
		return "", err
	}
	name := common.DeviceFileName(d)
	rel := path.Join(name, name+".go")
	out := filepath.Join(outputDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", fmt.Errorf("create package dir: %w", err)
	}
	if err := os.WriteFile(out, src, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	logger.Info("Generated Go package", "device", d.FullName().Space(), "file", out)
	return rel, nil
}

// Source returns the gofmt formatted package source of d.
func Source(d *model.Device, version model.Version) ([]byte, error) {
	raw := deviceSource(d, version)
	src, err := format.Source([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return src, nil
}
