package astarte

import (
	"fmt"
	"strings"
)

// Introspection is the ordered list of interfaces a device advertises at
// session start.
type Introspection struct {
	ifaces []*Interface
}

// NewIntrospection returns an empty Introspection.
func NewIntrospection() *Introspection {
	return &Introspection{}
}

// Add appends iface, preserving insertion order.
func (in *Introspection) Add(iface *Interface) {
	in.ifaces = append(in.ifaces, iface)
}

// Lookup returns the interface with the given name, or nil.
func (in *Introspection) Lookup(name string) *Interface {
	for _, iface := range in.ifaces {
		if iface.Name == name {
			return iface
		}
	}
	return nil
}

// Interfaces returns the interfaces in insertion order.
func (in *Introspection) Interfaces() []*Interface {
	return in.ifaces
}

// String concatenates "<name>:<major>:<minor>;" over every interface in
// insertion order, with no trailing separator beyond the last entry's own.
func (in *Introspection) String() string {
	var b strings.Builder
	for _, iface := range in.ifaces {
		fmt.Fprintf(&b, "%s:%d:%d;", iface.Name, iface.Major, iface.Minor)
	}
	return b.String()
}

// ByteSize returns the exact length of String() including a trailing NUL
// byte, mirroring introspection_get_string_size.
func (in *Introspection) ByteSize() int {
	return len(in.String()) + 1
}
