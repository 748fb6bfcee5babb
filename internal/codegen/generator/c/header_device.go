package cgen

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/brickgen/brickgen/internal/codegen/common"
	"github.com/brickgen/brickgen/internal/codegen/format"
	"github.com/brickgen/brickgen/internal/codegen/meta"
	"github.com/brickgen/brickgen/model"
)

const deviceHeaderTmpl = `{{.Banner}}
#ifndef {{.Guard}}
#define {{.Guard}}

#include "{{.Common}}"

#ifdef __cplusplus
extern "C" {
#endif

/**
 * \defgroup {{.Type}} {{.DisplayName}}
 */

/**
 * \ingroup {{.Type}}
 *
{{comment .Description}}
 */
typedef Device {{.Type}};
{{range .Functions}}
/**
 * \ingroup {{$.Type}}
 */
#define {{.Name}} {{.Value}}
{{end}}{{range .Callbacks}}
{{.Doc}}
#define {{.Define}} {{.ID}}

{{.Typedef}}
{{end}}{{range .Constants}}
/**
 * \ingroup {{$.Type}}
 */
#define {{.Name}} {{.Value}}
{{end}}
/**
 * \ingroup {{.Type}}
 *
 * This constant is used to identify a {{.DisplayName}}.
 */
#define {{.Upper}}_DEVICE_IDENTIFIER {{.Identifier}}

/**
 * \ingroup {{.Type}}
 *
 * This constant represents the display name of a {{.DisplayName}}.
 */
#define {{.Upper}}_DEVICE_DISPLAY_NAME "{{.DisplayName}}"
{{range .Prototypes}}
{{.Doc}}
{{.Proto}};
{{end}}
#ifdef __cplusplus
}
#endif

#endif
`

type define struct {
	Name  string
	Value string
}

// deviceFile holds everything rendered into the header and source of one
// device.
type deviceFile struct {
	*device
	Banner      string
	Guard       string
	Common      string
	DisplayName string
	Description string
	Functions   []define
	Callbacks   []callback
	Constants   []define
	Structs     []packedStruct
	Prototypes  []function
	Wrappers    []function
}

func newDeviceFile(md *meta.Metadata, dev *model.Device) *deviceFile {
	d := newDevice(md, dev)
	commonHeader, _ := commonFiles(md)
	f := &deviceFile{
		device:      d,
		Banner:      common.HeaderComment(common.BlockComment, "C", md.Version()),
		Guard:       fmt.Sprintf("%s_%s_H", strings.ToUpper(md.Prefix), d.Upper),
		Common:      commonHeader,
		DisplayName: dev.FullName().Space(),
		Description: dev.Description(model.LangEN),
		Structs:     d.structs(),
	}
	if f.Description == "" {
		f.Description = f.DisplayName
	}

	for _, p := range d.sendable() {
		f.Functions = append(f.Functions, define{Name: d.functionDefine(p), Value: fmt.Sprint(p.FunctionID())})
	}
	for _, p := range d.callbacks() {
		cb := d.callback(p)
		f.Callbacks = append(f.Callbacks, cb)
		f.Wrappers = append(f.Wrappers, cb.Wrapper)
	}

	cf, _ := format.For("c")
	for _, g := range dev.ConstantGroups() {
		if g.Virtual() {
			continue
		}
		for _, c := range g.Constants() {
			f.Constants = append(f.Constants, define{
				Name:  fmt.Sprintf("%s_%s_%s", d.Upper, g.Name().Upper(), c.Name.Upper()),
				Value: format.Constant(cf, g, c),
			})
		}
	}

	f.Prototypes = append(f.Prototypes, d.create())
	f.Prototypes = append(f.Prototypes, d.management()...)
	for _, p := range d.sendable() {
		f.Prototypes = append(f.Prototypes, d.lowLevel(p))
	}
	for _, p := range d.sendable() {
		if hl, ok := d.highLevel(p); ok {
			f.Prototypes = append(f.Prototypes, hl)
		}
	}
	return f
}

func generateDeviceHeader(logger *slog.Logger, outDir string, f *deviceFile) (string, error) {
	tmpl, err := template.New("device_header").Funcs(template.FuncMap{
		"comment": func(s string) string { return common.CommentLines(s, " * ") },
	}).Parse(deviceHeaderTmpl)
	if err != nil {
		return "", fmt.Errorf("parse device header template: %w", err)
	}
	out := filepath.Join(outDir, f.Header)
	if err := render(tmpl, f, out); err != nil {
		return "", err
	}
	logger.Info("Generated device header", "device", f.DisplayName, "file", out)
	return f.Header, nil
}
