package spec

import (
	"fmt"
	"strings"
)

// DepTypes is a set of dependency types.
type DepTypes uint8

const (
	Build DepTypes = 1 << iota
	Link
	Run
	Test

	// DefaultDepTypes applies when a dependency declares no type.
	DefaultDepTypes = Build | Link
)

var depTypeNames = []struct {
	t    DepTypes
	name string
}{
	{Build, "build"},
	{Link, "link"},
	{Run, "run"},
	{Test, "test"},
}

// ParseDepTypes parses names such as "build" or "build,link".
func ParseDepTypes(names ...string) (DepTypes, error) {
	var t DepTypes
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.TrimSpace(part)
			found := false
			for _, d := range depTypeNames {
				if d.name == part {
					t |= d.t
					found = true
				}
			}
			if !found {
				return 0, fmt.Errorf("unknown dependency type %q", part)
			}
		}
	}
	return t, nil
}

// Has reports whether t includes every type in o.
func (t DepTypes) Has(o DepTypes) bool { return t&o == o }

// Any reports whether t and o share a type.
func (t DepTypes) Any(o DepTypes) bool { return t&o != 0 }

// Names returns the type names in canonical order.
func (t DepTypes) Names() []string {
	var out []string
	for _, d := range depTypeNames {
		if t&d.t != 0 {
			out = append(out, d.name)
		}
	}
	return out
}

func (t DepTypes) String() string { return strings.Join(t.Names(), ",") }
