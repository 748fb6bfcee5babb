package generator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	cgen "github.com/brickgen/brickgen/internal/codegen/generator/c"
	gogen "github.com/brickgen/brickgen/internal/codegen/generator/golang"
	"github.com/brickgen/brickgen/internal/codegen/generator/jsongen"
	"github.com/brickgen/brickgen/internal/codegen/loader"
	"github.com/brickgen/brickgen/internal/codegen/meta"
)

type Generator struct {
	outputDir string
	logger    *slog.Logger
	md        *meta.Metadata
}

// LanguageGenerator writes one target into outputDir and returns the
// slash separated paths, relative to outputDir, that belong to the release.
type LanguageGenerator func(logger *slog.Logger, outputDir string, md *meta.Metadata) ([]string, error)

var generators = map[string]LanguageGenerator{
	"c":    cgen.Generate,
	"go":   gogen.Generate,
	"json": jsongen.Generate,
}

// Targets lists the supported targets in name order.
func Targets() []string {
	var out []string
	for k := range generators {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Options locate the inputs of a run.
type Options struct {
	Changelog   string
	Definitions string
	Prefix      string
	Holder      string
}

// Load reads the changelog and definitions and builds the metadata of one
// run. Any schema or versioning violation aborts the load.
func Load(logger *slog.Logger, opts Options) (*meta.Metadata, error) {
	l, err := loader.New(logger)
	if err != nil {
		return nil, err
	}
	reg, devices, err := l.Build(opts.Changelog, opts.Definitions)
	if err != nil {
		return nil, err
	}
	md := meta.New(reg, devices, opts.Prefix)
	if opts.Holder != "" {
		md.Holder = opts.Holder
	}
	logger.Info("Loaded device model",
		"devices", len(devices),
		"released", len(md.Released()),
		"version", md.Version().String(),
		"run", md.RunID.String())
	return md, nil
}

func New(outputDir string, logger *slog.Logger, md *meta.Metadata) *Generator {
	return &Generator{
		outputDir: outputDir,
		logger:    logger,
		md:        md,
	}
}

func (g *Generator) GenAll() error {
	for _, lang := range Targets() {
		if err := g.GenerateLang(lang); err != nil {
			return fmt.Errorf("generate %s bindings: %w", lang, err)
		}
	}
	return nil
}

func (g *Generator) GenerateLang(lang string) error {
	gen, ok := generators[lang]
	if !ok {
		return fmt.Errorf("unsupported target '%s' (supported: %v)", lang, Targets())
	}

	g.logger.Info("Generating bindings", "target", lang)

	outputPath := filepath.Join(g.outputDir, lang)
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create %s output directory: %w", lang, err)
	}

	released, err := gen(g.logger, outputPath, g.md)
	if err != nil {
		return err
	}

	m, err := BuildManifest(outputPath, lang, g.md, released)
	if err != nil {
		return err
	}
	if err := WriteManifest(outputPath, m); err != nil {
		return err
	}

	g.logger.Info("Bindings generation complete", "target", lang, "output", outputPath, "released", len(m.Files))
	return nil
}
