package model

import (
	"strings"
	"sync"
)

// Registry builds the devices of one generator run. It owns the run-wide
// device identifier table and the bindings version from the changelog.
type Registry struct {
	changelog *Changelog

	mu          sync.Mutex
	identifiers map[int]string
	devices     []*Device
}

// NewRegistry requires a parsed changelog, which has already been checked for
// monotonic version progression.
func NewRegistry(cl *Changelog) (*Registry, error) {
	if cl == nil || len(cl.Entries) == 0 {
		return nil, &GeneratorError{Msg: "a changelog with at least one version is required"}
	}
	return &Registry{changelog: cl, identifiers: map[int]string{}}, nil
}

// BindingsVersion is the latest changelog version.
func (r *Registry) BindingsVersion() Version { return r.changelog.Latest() }

func (r *Registry) Changelog() *Changelog { return r.changelog }

// Devices returns the devices built so far in build order.
func (r *Registry) Devices() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Device(nil), r.devices...)
}

// NewDevice validates raw into a Device and registers it. The first violation
// is returned as a *GeneratorError.
func (r *Registry) NewDevice(raw *RawDevice) (*Device, error) {
	sc := scope{device: raw.Name}
	d := &Device{
		name:            NewName(raw.Name),
		displayName:     raw.DisplayName,
		identifier:      raw.DeviceIdentifier,
		manufacturer:    raw.Manufacturer,
		author:          raw.Author,
		apiVersionExtra: raw.APIVersionExtra,
		released:        raw.Released,
		documented:      raw.Documented,
		examples:        raw.Examples,
		description:     map[Lang]string{},
	}
	if d.name.Empty() {
		return nil, sc.errorf("device name is empty")
	}
	cat, err := parseCategory(raw.Category)
	if err != nil {
		return nil, sc.errorf("%v", err)
	}
	d.category = cat
	if d.displayName == "" {
		d.displayName = d.FullName().Space()
	}
	if raw.DeviceIdentifier <= 0 {
		return nil, sc.errorf("device_identifier must be positive")
	}
	v, err := versionFromSlice(raw.APIVersion)
	if err != nil {
		return nil, sc.errorf("api_version: %v", err)
	}
	d.apiVersion = v
	if raw.APIVersionExtra < 0 {
		return nil, sc.errorf("api_version_extra is negative")
	}
	for k, text := range raw.Description {
		lang, err := ParseLang(k)
		if err != nil {
			return nil, sc.errorf("description: %v", err)
		}
		d.description[lang] = text
	}

	groups := map[string]*ConstantGroup{}
	var declared []*ConstantGroup
	for _, rg := range raw.ConstantGroups {
		g, err := buildConstantGroup(sc, rg)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(g.name.Space())
		if key == "function" || key == "callback" {
			return nil, sc.errorf("constant group name %q is reserved", g.name.Space())
		}
		if _, ok := groups[key]; ok {
			return nil, sc.errorf("duplicate constant group %q", g.name.Space())
		}
		groups[key] = g
		declared = append(declared, g)
	}

	for _, rp := range raw.Packets {
		p, err := buildPacket(sc, rp, groups)
		if err != nil {
			return nil, err
		}
		p.device = d
		d.packets = append(d.packets, p)
	}
	if len(d.packets) == 0 {
		return nil, sc.errorf("device has no packets")
	}
	if err := assignFunctionIDs(sc, d.packets, raw.Packets); err != nil {
		return nil, err
	}
	sortPackets(d.packets)
	if err := checkPacketNames(sc, d.packets); err != nil {
		return nil, err
	}
	if err := checkAPIVersion(sc, d); err != nil {
		return nil, err
	}
	for _, g := range declared {
		if !g.virtual && len(g.users) == 0 {
			return nil, sc.errorf("constant group %q is not used by any element", g.name.Space())
		}
	}
	d.constantGroups = append(declared, idGroups(d)...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if other, ok := r.identifiers[d.identifier]; ok {
		return nil, sc.errorf("device_identifier %d is already used by %q", d.identifier, other)
	}
	r.identifiers[d.identifier] = d.FullName().Space()
	r.devices = append(r.devices, d)
	return d, nil
}
