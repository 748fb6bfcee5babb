package model

import (
	"fmt"
	"strings"
)

// GeneratorError is the single error kind reported while building the model.
// It carries the location of the violation so the run can fail with a
// precise message.
type GeneratorError struct {
	Device  string
	Packet  string
	Element string
	Msg     string
}

func (e *GeneratorError) Error() string {
	var parts []string
	if e.Device != "" {
		parts = append(parts, "device "+quote(e.Device))
	}
	if e.Packet != "" {
		parts = append(parts, "packet "+quote(e.Packet))
	}
	if e.Element != "" {
		parts = append(parts, "element "+quote(e.Element))
	}
	parts = append(parts, e.Msg)
	return strings.Join(parts, ": ")
}

func quote(s string) string { return "'" + s + "'" }

// scope tracks where in a definition the builder currently is.
type scope struct {
	device  string
	packet  string
	element string
}

func (s scope) withPacket(name string) scope {
	s.packet = name
	s.element = ""
	return s
}

func (s scope) withElement(name string) scope {
	s.element = name
	return s
}

func (s scope) errorf(format string, args ...any) error {
	return &GeneratorError{
		Device:  s.device,
		Packet:  s.packet,
		Element: s.element,
		Msg:     fmt.Sprintf(format, args...),
	}
}
