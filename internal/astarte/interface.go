package astarte

import (
	"strings"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
)

// Mapping is a single typed endpoint within an interface, addressed by a
// path template that may contain one parametric segment ("%{name}").
type Mapping struct {
	PathTemplate      string
	Type              MappingType
	Reliability       Reliability
	Retention         Retention
	ExplicitTimestamp bool
	AllowUnset        bool
}

func (m Mapping) segments() []string {
	return strings.Split(strings.TrimPrefix(m.PathTemplate, "/"), "/")
}

func isParam(segment string) bool {
	return strings.HasPrefix(segment, "%{") && strings.HasSuffix(segment, "}")
}

// Interface is a versioned schema describing a group of related mappings.
type Interface struct {
	Name        string
	Major       int
	Minor       int
	Ownership   Ownership
	Aggregation Aggregation
	Type        InterfaceType
	Mappings    []Mapping
}

// NewInterface validates the mapping set and returns an Interface, rejecting
// ambiguous path templates (two templates that could both match some path)
// as a schema-validity error detected once, at construction, rather than at
// every lookup.
func NewInterface(name string, major, minor int, ownership Ownership, aggregation Aggregation, itype InterfaceType, mappings []Mapping) (*Interface, error) {
	const op = "astarte.NewInterface"
	if name == "" || len(name) > 128 {
		return nil, asterr.New(asterr.KindInvalidParam, op, nil)
	}
	for i := 0; i < len(mappings); i++ {
		for j := i + 1; j < len(mappings); j++ {
			if templatesOverlap(mappings[i].segments(), mappings[j].segments()) {
				return nil, asterr.New(asterr.KindInvalidParam, op, nil)
			}
		}
	}
	return &Interface{
		Name:        name,
		Major:       major,
		Minor:       minor,
		Ownership:   ownership,
		Aggregation: aggregation,
		Type:        itype,
		Mappings:    mappings,
	}, nil
}

// templatesOverlap reports whether two path templates could both match the
// same concrete path: same segment count, and every differing position has
// at least one side parametric (a literal-vs-literal mismatch rules out
// overlap; a param on either side can always match the other's literal).
func templatesOverlap(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if !isParam(a[i]) && !isParam(b[i]) {
			return false
		}
	}
	return true
}

// LookupMapping matches path against each mapping's template: literal
// segments must match exactly, a "%{param}" segment matches any non-empty
// segment without a slash, and the segment counts must agree.
func (iface *Interface) LookupMapping(path string) (*Mapping, error) {
	const op = "astarte.Interface.LookupMapping"
	target := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i := range iface.Mappings {
		m := &iface.Mappings[i]
		if matches(m.segments(), target) {
			return m, nil
		}
	}
	return nil, asterr.New(asterr.KindNotFound, op, nil)
}

func matches(template, target []string) bool {
	if len(template) != len(target) {
		return false
	}
	for i := range template {
		if isParam(template[i]) {
			if target[i] == "" {
				return false
			}
			continue
		}
		if template[i] != target[i] {
			return false
		}
	}
	return true
}
