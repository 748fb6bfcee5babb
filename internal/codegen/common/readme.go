package common

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"

	"github.com/brickgen/brickgen/model"
)

const readmeTemplate = `# {{.Target}} Bindings {{.Version}}

These bindings were generated by brickgen {{.Tool}} from the device definitions.
Do not edit them by hand, regenerate them instead.

## Devices
{{range .Devices}}
- {{.FullName.Space}} (identifier {{.Identifier}}, API {{.APIVersion}}){{if not .Released}} *unreleased*{{end}}
{{- end}}

## License

CC0 1.0 Universal - See LICENSE.txt for details.
`

var readmeTmpl = template.Must(template.New("readme").Parse(readmeTemplate))

// GenerateReadme writes README.md listing the generated devices.
func GenerateReadme(logger *slog.Logger, outputDir, target string, version model.Version, devices []*model.Device) error {
	tool, err := GetVersion()
	if err != nil {
		return err
	}
	readmePath := filepath.Join(outputDir, "README.md")

	f, err := os.Create(readmePath)
	if err != nil {
		return fmt.Errorf("create README.md: %w", err)
	}
	defer f.Close()
	err = readmeTmpl.Execute(f, struct {
		Target  string
		Tool    string
		Version model.Version
		Devices []*model.Device
	}{target, tool, version, devices})
	if err != nil {
		return fmt.Errorf("write README.md: %w", err)
	}

	logger.Debug("Generated README.md", "path", readmePath)
	return nil
}
