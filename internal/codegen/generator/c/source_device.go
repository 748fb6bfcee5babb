package cgen

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"text/template"
)

const deviceSourceTmpl = `{{.Banner}}
#include "{{.Header}}"

#include <stdlib.h>
#include <string.h>

#ifdef __cplusplus
extern "C" {
#endif

#if defined(_MSC_VER)
	#pragma pack(push)
	#pragma pack(1)
#endif
{{range .Structs}}
typedef struct {
{{- range .Fields}}
	{{.}}
{{- end}}
} ATTRIBUTE_PACKED {{.Name}};
{{end}}
#if defined(_MSC_VER)
	#pragma pack(pop)
#endif
{{range .Wrappers}}
{{.Proto}} {
{{.Body}}
}
{{end}}{{range .Prototypes}}
{{.Proto}} {
{{.Body}}
}
{{end}}
#ifdef __cplusplus
}
#endif
`

func generateDeviceSource(logger *slog.Logger, outDir string, f *deviceFile) (string, error) {
	tmpl, err := template.New("device_source").Parse(deviceSourceTmpl)
	if err != nil {
		return "", fmt.Errorf("parse device source template: %w", err)
	}
	name := strings.TrimSuffix(f.Header, ".h") + ".c"
	out := filepath.Join(outDir, name)
	if err := render(tmpl, f, out); err != nil {
		return "", err
	}
	logger.Info("Generated device source", "device", f.DisplayName, "file", out)
	return name, nil
}
