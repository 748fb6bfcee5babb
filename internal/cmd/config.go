package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/brickgen/brickgen/internal/configpaths"
)

type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Write a configuration template for one command"`
}

// ConfigInit writes the defaults of a command as a file kong.Configuration
// can read back.
type ConfigInit struct {
	Command string `arg:"" name:"command" help:"Command to write the template for" enum:"generate,check,dump,simulate"`
	Format  string `help:"Template format" enum:"json,yaml,toml" default:"json"`
	Output  string `help:"Template path, <command>.<format> when empty"`
	Force   bool   `help:"Replace an existing file"`
}

var configCommands = map[string]reflect.Type{
	"generate": reflect.TypeFor[Generate](),
	"check":    reflect.TypeFor[Check](),
	"dump":     reflect.TypeFor[Dump](),
	"simulate": reflect.TypeFor[Simulate](),
}

var templateEncoders = map[string]func(map[string]any) ([]byte, error){
	"json": func(m map[string]any) ([]byte, error) {
		b, err := json.MarshalIndent(m, "", "  ")
		return append(b, '\n'), err
	},
	"yaml": func(m map[string]any) ([]byte, error) {
		return yaml.Marshal(m)
	},
	"toml": func(m map[string]any) ([]byte, error) {
		tree, err := toml.TreeFromMap(m)
		if err != nil {
			return nil, err
		}
		return tree.Marshal()
	},
}

func (c *ConfigInit) Run() error {
	format := strings.ToLower(c.Format)
	if format == "yml" {
		format = "yaml"
	}
	encode, ok := templateEncoders[format]
	if !ok {
		return fmt.Errorf("unsupported template format %q", c.Format)
	}
	t, ok := configCommands[c.Command]
	if !ok {
		names := make([]string, 0, len(configCommands))
		for n := range configCommands {
			names = append(names, n)
		}
		slices.Sort(names)
		return fmt.Errorf("unknown command %q, expected one of %s", c.Command, strings.Join(names, ", "))
	}

	dest := c.Output
	if dest == "" {
		dest = c.Command + "." + format
	}
	if _, err := os.Stat(dest); err == nil && !c.Force {
		return fmt.Errorf("%s exists, pass --force to replace it", dest)
	}

	data, err := encode(configTemplate(t))
	if err != nil {
		return fmt.Errorf("encode %s template: %w", format, err)
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// configTemplate maps every flag of t to its default. Embedded structs
// without a prefix are flattened, arguments are left out.
func configTemplate(t reflect.Type) map[string]any {
	out := map[string]any{}
	walkFlags(t, func(path []string, ft reflect.Type, def string) {
		v := defaultOf(ft, def)
		if v == nil {
			return
		}
		m := out
		for _, p := range path[:len(path)-1] {
			sub, ok := m[p].(map[string]any)
			if !ok {
				sub = map[string]any{}
				m[p] = sub
			}
			m = sub
		}
		m[path[len(path)-1]] = v
	})
	return out
}

func walkFlags(t reflect.Type, visit func(path []string, ft reflect.Type, def string)) {
	var walk func(t reflect.Type, prefix []string)
	walk = func(t reflect.Type, prefix []string) {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		for _, f := range reflect.VisibleFields(t) {
			if !f.IsExported() || len(f.Index) > 1 || f.Tag.Get("kong") == "-" {
				continue
			}
			if _, isArg := f.Tag.Lookup("arg"); isArg {
				continue
			}
			if _, embedded := f.Tag.Lookup("embed"); embedded {
				sub := prefix
				if p := strings.TrimSuffix(f.Tag.Get("prefix"), "."); p != "" {
					sub = append(slices.Clone(prefix), p)
				}
				walk(f.Type, sub)
				continue
			}
			key := f.Tag.Get("name")
			if key == "" {
				key = snakeCase(f.Name)
			}
			visit(append(slices.Clone(prefix), key), f.Type, f.Tag.Get("default"))
		}
	}
	walk(t, nil)
}

// defaultOf converts a kong default tag to the value a template holds for
// a field of type t. Unparsable defaults fall back to zero, unsupported
// kinds to nil.
func defaultOf(t reflect.Type, def string) any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.String() == "time.Duration" {
		return orDefault(def, "0s")
	}
	switch k := t.Kind(); {
	case k == reflect.String:
		return def
	case k == reflect.Bool:
		b, _ := strconv.ParseBool(def)
		return b
	case k >= reflect.Int && k <= reflect.Int64:
		n, _ := strconv.ParseInt(def, 0, 64)
		return n
	case k >= reflect.Uint && k <= reflect.Uint64:
		n, _ := strconv.ParseUint(def, 0, 64)
		return n
	case k == reflect.Float32 || k == reflect.Float64:
		f, _ := strconv.ParseFloat(def, 64)
		return f
	case k == reflect.Struct:
		return configTemplate(t)
	}
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// snakeCase maps Go field names to the keys the kong resolvers look up:
// UIDBase becomes uid_base.
func snakeCase(s string) string {
	r := []rune(s)
	var b strings.Builder
	for i, c := range r {
		if i > 0 && unicode.IsUpper(c) {
			afterLower := unicode.IsLower(r[i-1])
			endsAcronym := unicode.IsUpper(r[i-1]) && i+1 < len(r) && unicode.IsLower(r[i+1])
			if afterLower || endsAcronym {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(c))
	}
	return b.String()
}
