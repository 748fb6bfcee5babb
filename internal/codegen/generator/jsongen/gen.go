package jsongen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/brickgen/brickgen/internal/codegen/common"
	"github.com/brickgen/brickgen/internal/codegen/meta"
	"github.com/brickgen/brickgen/model"
)

// encMode writes deterministic CBOR so regenerated files only differ when
// the model does.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// MarshalCBOR encodes v in canonical CBOR.
func MarshalCBOR(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Generate writes <device>.json and <device>.cbor per device plus
// bindings.json holding all of them. It returns the files of released
// devices.
func Generate(logger *slog.Logger, outputDir string, md *meta.Metadata) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var released []string
	for _, d := range md.Devices {
		files, err := generateDevice(logger, outputDir, md, d)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", d.FullName(), err)
		}
		if d.Released() {
			released = append(released, files...)
		}
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, Export(md.Version(), md.RunID.String(), md.Devices)); err != nil {
		return nil, fmt.Errorf("encode bindings.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, "bindings.json"), buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("write bindings.json: %w", err)
	}

	if err := common.GenerateLicense(logger, outputDir, md.Holder); err != nil {
		return nil, err
	}
	if err := common.GenerateReadme(logger, outputDir, "JSON", md.Version(), md.Devices); err != nil {
		return nil, err
	}
	logger.Info("Generated JSON export", "dir", outputDir, "devices", len(md.Devices))
	return released, nil
}

func generateDevice(logger *slog.Logger, outputDir string, md *meta.Metadata, d *model.Device) ([]string, error) {
	name := common.DeviceFileName(d)
	doc := Export(md.Version(), "", []*model.Device{d}).Devices[0]

	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		return nil, fmt.Errorf("encode JSON: %w", err)
	}
	jsonName := name + ".json"
	if err := os.WriteFile(filepath.Join(outputDir, jsonName), buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", jsonName, err)
	}

	b, err := MarshalCBOR(doc)
	if err != nil {
		return nil, fmt.Errorf("encode CBOR: %w", err)
	}
	cborName := name + ".cbor"
	if err := os.WriteFile(filepath.Join(outputDir, cborName), b, 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", cborName, err)
	}

	logger.Debug("Exported device", "device", d.FullName().Space(), "json", jsonName, "cbor", cborName)
	return []string{jsonName, cborName}, nil
}
