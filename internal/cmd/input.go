package cmd

import (
	"log/slog"

	"github.com/brickgen/brickgen/internal/codegen/generator"
	"github.com/brickgen/brickgen/internal/codegen/meta"
)

// Input locates the definitions and changelog of a run.
type Input struct {
	Definitions string `help:"Directory holding one YAML or JSON file per device" default:"./definitions" type:"path" env:"BRICKGEN_DEFINITIONS"`
	Changelog   string `help:"Changelog of the bindings family" default:"./changelog.txt" type:"path" env:"BRICKGEN_CHANGELOG"`
	Prefix      string `help:"Prefix of generated C identifiers and file names" default:"tf" env:"BRICKGEN_PREFIX"`
	Holder      string `help:"Copyright holder named in generated license files" default:"The brickgen Authors" env:"BRICKGEN_HOLDER"`
}

func (in Input) load(logger *slog.Logger) (*meta.Metadata, error) {
	return generator.Load(logger, generator.Options{
		Changelog:   in.Changelog,
		Definitions: in.Definitions,
		Prefix:      in.Prefix,
		Holder:      in.Holder,
	})
}
