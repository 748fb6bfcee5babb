package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/brickgen/brickgen/internal/codegen/common"
	"github.com/brickgen/brickgen/internal/config"
	"github.com/brickgen/brickgen/internal/configpaths"
	"github.com/brickgen/brickgen/internal/log"
	"github.com/brickgen/brickgen/internal/util"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	version, err := common.GetVersion()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	// Flags and env override config files. Earlier paths win.
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userConfig(args))
	var cli config.CLI
	parser, err := kong.New(&cli,
		kong.Name("brickgen"),
		kong.Description("Generates device bindings from definitions and emulates the devices"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	kctx, err := parser.Parse(args)
	parser.FatalIfErrorf(err)

	logger, closers, err := log.SetupLogger(cli.Log.Level, cli.Log.File, cli.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 2
	}
	raw, rawCloser := rawLogger(cli.Log, logger)
	if rawCloser != nil {
		closers = append(closers, rawCloser)
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	kctx.Bind(logger)
	kctx.BindTo(raw, (*log.RawLogger)(nil))
	if err := kctx.Run(); err != nil {
		logger.Error("Command failed", "command", kctx.Command(), "error", err)
		if util.StartedFromExplorer() {
			util.WaitForKey(os.Stdout, os.Stdin)
		}
		return 1
	}
	return 0
}

// rawLogger traces frames to --log.raw-file, or to stdout at trace level.
func rawLogger(opts config.Log, logger *slog.Logger) (log.RawLogger, io.Closer) {
	switch {
	case opts.RawFile != "":
		f, err := os.OpenFile(opts.RawFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("Raw frame log disabled", "file", opts.RawFile, "error", err)
			return log.NewRaw(nil), nil
		}
		return log.NewRaw(f), f
	case log.ParseLevel(opts.Level) <= log.LevelTrace:
		return log.NewRaw(os.Stdout), nil
	}
	return log.NewRaw(nil), nil
}

// userConfig finds --config before kong runs so its file joins the
// candidate paths.
func userConfig(args []string) string {
	for i, a := range args {
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("BRICKGEN_CONFIG")
}
