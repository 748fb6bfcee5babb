package cgen

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/brickgen/brickgen/internal/codegen/meta"
)

var cmakeTmpl = template.Must(template.New("cmake").Parse(`cmake_minimum_required(VERSION 3.10)
project({{.Prefix}}_bindings VERSION {{.Version}} LANGUAGES C)

option({{.Upper}}_BINDINGS_SHARED "Build the bindings as a shared library" OFF)
if({{.Upper}}_BINDINGS_SHARED)
    set({{.Upper}}_LIBRARY_TYPE SHARED)
else()
    set({{.Upper}}_LIBRARY_TYPE STATIC)
endif()

add_library({{.Prefix}}_bindings {{.LibraryType}}
    src/{{.Common}}
{{- range .Sources}}
    src/{{.}}
{{- end}}
)
set_target_properties({{.Prefix}}_bindings PROPERTIES
    C_STANDARD 99
    C_STANDARD_REQUIRED ON
    VERSION ${PROJECT_VERSION}
)
target_include_directories({{.Prefix}}_bindings PUBLIC
    $<BUILD_INTERFACE:${CMAKE_CURRENT_SOURCE_DIR}/include>
    $<INSTALL_INTERFACE:include/{{.Prefix}}>
)
if(NOT WIN32)
    find_package(Threads REQUIRED)
    target_link_libraries({{.Prefix}}_bindings PUBLIC Threads::Threads)
endif()

install(TARGETS {{.Prefix}}_bindings)
install(DIRECTORY include/ DESTINATION include/{{.Prefix}})
`))

// generateCMake lists the shared device source and every device source in
// one library target.
func generateCMake(logger *slog.Logger, outDir string, md *meta.Metadata, sources []string) error {
	_, common := commonFiles(md)
	upper := strings.ToUpper(md.Prefix)
	out := filepath.Join(outDir, "CMakeLists.txt")
	err := render(cmakeTmpl, map[string]any{
		"Prefix":      md.Prefix,
		"Upper":       upper,
		"LibraryType": "${" + upper + "_LIBRARY_TYPE}",
		"Version":     md.Version().String(),
		"Common":      common,
		"Sources":     sources,
	}, out)
	if err != nil {
		return fmt.Errorf("CMakeLists.txt: %w", err)
	}
	logger.Info("Generated CMakeLists.txt", "file", out, "sources", len(sources)+1)
	return nil
}
