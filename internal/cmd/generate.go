package cmd

import (
	"log/slog"

	"github.com/brickgen/brickgen/internal/codegen/generator"
)

type Generate struct {
	Input  `embed:""`
	Output string `help:"Output directory, one subdirectory per target" default:"./bindings" type:"path" env:"BRICKGEN_OUTPUT"`
	Target string `help:"Target: c, go, json, or 'all'" default:"all" enum:"c,go,json,all" env:"BRICKGEN_TARGET"`
}

// Run is called by Kong when the generate command is executed.
func (c *Generate) Run(logger *slog.Logger) error {
	logger.Info("Starting code generation", "output", c.Output, "target", c.Target)

	md, err := c.load(logger)
	if err != nil {
		return err
	}
	gen := generator.New(c.Output, logger.With("run", md.RunID.String()), md)
	if c.Target == "all" {
		return gen.GenAll()
	}
	return gen.GenerateLang(c.Target)
}
