// Package config holds the command line interface definition. Values come
// from flags, BRICKGEN_* environment variables and config files, in that
// order of precedence.
package config

import (
	"github.com/alecthomas/kong"

	"github.com/brickgen/brickgen/internal/cmd"
)

type CLI struct {
	Config  string           `help:"Config file (JSON, YAML or TOML)" type:"path" env:"BRICKGEN_CONFIG"`
	Version kong.VersionFlag `help:"Print the version and exit"`
	Log     Log              `embed:"" prefix:"log."`

	Generate  cmd.Generate      `cmd:"" help:"Generate bindings for the device definitions"`
	Check     cmd.Check         `cmd:"" help:"Validate definitions and verify release manifests"`
	Dump      cmd.Dump          `cmd:"" help:"Print the validated device model"`
	Simulate  cmd.Simulate      `cmd:"" help:"Serve emulated devices over TCP"`
	ConfigCmd cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration helpers"`
}

type Log struct {
	Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"BRICKGEN_LOG_LEVEL"`
	File    string `help:"Also write logs to this file" env:"BRICKGEN_LOG_FILE"`
	Format  string `help:"Log encoding, auto picks text on a terminal" enum:"auto,text,json" default:"auto" env:"BRICKGEN_LOG_FORMAT"`
	RawFile string `help:"Write a hex trace of emulator frames to this file" env:"BRICKGEN_LOG_RAW_FILE"`
}
