// Package configpaths resolves where brickgen looks for config files.
package configpaths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const appName = "brickgen"

// baseNames are the file stems looked up in every config directory.
var baseNames = []string{"config", "generate", "simulate"}

// extensions maps each config format to the file extensions it is read from.
var extensions = map[string][]string{
	"json": {".json"},
	"yaml": {".yaml", ".yml"},
	"toml": {".toml"},
}

// DefaultConfigDir is $XDG_CONFIG_HOME/brickgen when set, otherwise the
// brickgen directory under os.UserConfigDir.
func DefaultConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && runtime.GOOS != "windows" {
		return filepath.Join(xdg, appName), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// EnsureDir creates the parent directory of filePath.
func EnsureDir(filePath string) error {
	return os.MkdirAll(filepath.Dir(filePath), 0o755)
}

type searchDir struct {
	dir   string
	stems []string
}

// ConfigCandidatePaths lists config files per format in lookup order: the
// user supplied file, the working directory, the config dir, then /etc on
// unix. A user file with an unknown extension is read as JSON.
func ConfigCandidatePaths(userPath string) (jsonPaths, yamlPaths, tomlPaths []string) {
	byFormat := map[string]*[]string{"json": &jsonPaths, "yaml": &yamlPaths, "toml": &tomlPaths}

	if userPath != "" {
		format := "json"
		ext := strings.ToLower(filepath.Ext(userPath))
		for f, exts := range extensions {
			for _, e := range exts {
				if e == ext {
					format = f
				}
			}
		}
		*byFormat[format] = append(*byFormat[format], userPath)
	}

	var dirs []searchDir
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, searchDir{wd, append([]string{appName}, baseNames...)})
	}
	if dir, err := DefaultConfigDir(); err == nil {
		dirs = append(dirs, searchDir{dir, baseNames})
	}
	if runtime.GOOS != "windows" {
		dirs = append(dirs, searchDir{filepath.Join("/etc", appName), baseNames})
	}

	for _, d := range dirs {
		for _, stem := range d.stems {
			for format, exts := range extensions {
				for _, ext := range exts {
					*byFormat[format] = append(*byFormat[format], filepath.Join(d.dir, stem+ext))
				}
			}
		}
	}
	return jsonPaths, yamlPaths, tomlPaths
}
