// Package compiler describes compiler constraints, concrete compilers and
// their ABI compatibility.
package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goplus/spk/pkgs/version"
)

// ErrConflict is returned when two compiler constraints cannot both hold.
var ErrConflict = errors.New("conflicting compilers")

// Spec constrains a compiler family and its versions, e.g. %gcc@9:.
type Spec struct {
	Name     string
	Versions version.List
}

// ParseSpec parses "name[@versions]".
func ParseSpec(s string) (Spec, error) {
	name, vers, hasVers := strings.Cut(s, "@")
	if name == "" {
		return Spec{}, fmt.Errorf("invalid compiler %q: missing name", s)
	}
	spec := Spec{Name: name}
	if hasVers {
		l, err := version.ParseList(vers)
		if err != nil {
			return Spec{}, fmt.Errorf("invalid compiler %q: %w", s, err)
		}
		spec.Versions = l
	}
	return spec, nil
}

func (s Spec) String() string {
	if s.Versions.IsAny() {
		return s.Name
	}
	return s.Name + "@" + s.Versions.String()
}

// Merge intersects two constraints of the same family.
func (s Spec) Merge(o Spec) (Spec, error) {
	if s.Name != o.Name {
		return Spec{}, fmt.Errorf("%w: %%%s and %%%s", ErrConflict, s, o)
	}
	l, ok := s.Versions.Intersect(o.Versions)
	if !ok {
		return Spec{}, fmt.Errorf("%w: %%%s and %%%s have disjoint versions", ErrConflict, s, o)
	}
	return Spec{Name: s.Name, Versions: l}, nil
}

// Satisfies reports whether every compiler matching s also matches o.
func (s Spec) Satisfies(o Spec) bool {
	return s.Name == o.Name && s.Versions.Satisfies(o.Versions)
}

// Contains reports whether c matches s.
func (s Spec) Contains(c Compiler) bool {
	return s.Name == c.Name && s.Versions.Contains(c.Version)
}

// Compiler is a detected compiler installation.
type Compiler struct {
	Name    string
	Version version.Version
	// Runtime is the version of the C++ runtime library shipped with the
	// compiler, such as "6.0.30" for libstdc++.so.6.0.30. Empty if unknown.
	Runtime string
	OS      string
	Target  string
}

// Spec returns the exact constraint matching c.
func (c Compiler) Spec() Spec {
	return Spec{Name: c.Name, Versions: version.ExactList(c.Version)}
}

// Concrete reports whether c names a family and a version.
func (c Compiler) Concrete() bool {
	return c.Name != "" && !c.Version.IsZero()
}

func (c Compiler) String() string {
	return c.Name + "@" + c.Version.String()
}
