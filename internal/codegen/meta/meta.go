package meta

import (
	"github.com/google/uuid"

	"github.com/brickgen/brickgen/model"
)

// Metadata holds everything a target generator needs for one run.
// Shared between generator orchestrator and language-specific generators.
type Metadata struct {
	Registry *model.Registry
	Devices  []*model.Device
	RunID    uuid.UUID
	// Prefix namespaces generated C identifiers and file names.
	Prefix string
	// Holder is credited in the generated LICENSE.txt.
	Holder string
}

// DefaultHolder is the license holder used when none is configured.
const DefaultHolder = "The brickgen Authors"

// New collects the devices of reg under a fresh run id.
func New(reg *model.Registry, devices []*model.Device, prefix string) *Metadata {
	return &Metadata{
		Registry: reg,
		Devices:  devices,
		RunID:    uuid.New(),
		Prefix:   prefix,
		Holder:   DefaultHolder,
	}
}

// Version is the bindings version from the changelog.
func (m *Metadata) Version() model.Version {
	return m.Registry.BindingsVersion()
}

// Released returns the devices whose files go into the release manifest.
func (m *Metadata) Released() []*model.Device {
	var out []*model.Device
	for _, d := range m.Devices {
		if d.Released() {
			out = append(out, d)
		}
	}
	return out
}
