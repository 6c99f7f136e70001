// Package spec implements the package spec model: abstract specs written by
// users and package authors, the closed predicate algebra used for
// conditional declarations, and concrete dependency DAGs produced by the
// concretizer.
package spec

import (
	"slices"
	"strings"

	"github.com/goplus/spk/pkgs/arch"
	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// Spec is an abstract spec: a package name with a set of constraints. Any
// field may be unconstrained. Dependencies are keyed by package name.
type Spec struct {
	Name     string
	Versions version.List
	Variants variant.Map
	Compiler *compiler.Spec
	Arch     arch.Arch
	Flags    Flags
	Deps     map[string]*Dependency
	// Virtual marks a name that is satisfied by a provider package.
	Virtual bool
}

// Dependency is a constrained edge to another package.
type Dependency struct {
	Spec  *Spec
	Types DepTypes
}

// New returns an unconstrained spec for name.
func New(name string) *Spec { return &Spec{Name: name} }

// Clone returns a deep copy of s.
func (s *Spec) Clone() *Spec {
	if s == nil {
		return nil
	}
	out := *s
	out.Variants = s.Variants.Clone()
	out.Flags = s.Flags.Clone()
	if s.Compiler != nil {
		c := *s.Compiler
		out.Compiler = &c
	}
	out.Deps = nil
	for _, d := range s.Deps {
		out.AddDep(&Dependency{Spec: d.Spec.Clone(), Types: d.Types})
	}
	return &out
}

// AddDep records d as a dependency of s, replacing any previous edge to the
// same package.
func (s *Spec) AddDep(d *Dependency) {
	if s.Deps == nil {
		s.Deps = make(map[string]*Dependency)
	}
	s.Deps[d.Spec.Name] = d
}

// DepNames returns dependency names in sorted order.
func (s *Spec) DepNames() []string {
	names := make([]string, 0, len(s.Deps))
	for name := range s.Deps {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsAnonymous reports whether s has no package name.
func (s *Spec) IsAnonymous() bool { return s.Name == "" }

// IsEmpty reports whether s carries no constraint besides its name.
func (s *Spec) IsEmpty() bool {
	return s.Versions.IsAny() && len(s.Variants) == 0 && s.Compiler == nil &&
		s.Arch.IsZero() && len(s.Flags) == 0 && len(s.Deps) == 0
}

// Node returns a copy of s without its dependencies.
func (s *Spec) Node() *Spec {
	out := s.Clone()
	out.Deps = nil
	return out
}

// Satisfies reports whether every concrete spec matching s also matches o.
func (s *Spec) Satisfies(o *Spec) bool {
	if o.Name != "" && s.Name != o.Name {
		return false
	}
	if !s.Versions.Satisfies(o.Versions) || !s.Variants.Satisfies(o.Variants) {
		return false
	}
	if o.Compiler != nil && (s.Compiler == nil || !s.Compiler.Satisfies(*o.Compiler)) {
		return false
	}
	if !s.Arch.Satisfies(o.Arch) || !s.Flags.Satisfies(o.Flags) {
		return false
	}
	for name, od := range o.Deps {
		sd, ok := s.Deps[name]
		if !ok || !sd.Spec.Satisfies(od.Spec) {
			return false
		}
	}
	return true
}

// Intersects reports whether s and o can be merged.
func (s *Spec) Intersects(o *Spec) bool {
	_, err := Merge(s, o)
	return err == nil
}

// Equal reports whether s and o hold the same constraints.
func (s *Spec) Equal(o *Spec) bool {
	return s.String() == o.String()
}

// String formats s in the syntax accepted by Parse.
func (s *Spec) String() string {
	var sb strings.Builder
	s.format(&sb)
	for _, name := range s.DepNames() {
		sb.WriteString(" ^")
		s.Deps[name].Spec.format(&sb)
	}
	return strings.TrimSpace(sb.String())
}

func (s *Spec) format(sb *strings.Builder) {
	sb.WriteString(s.Name)
	if !s.Versions.IsAny() {
		sb.WriteString("@" + s.Versions.String())
	}
	var bools variant.Map
	var kvs []string
	for _, name := range s.Variants.Names() {
		v := s.Variants[name]
		if v.Kind == variant.Bool {
			if bools == nil {
				bools = make(variant.Map)
			}
			bools[name] = v
			continue
		}
		kvs = append(kvs, v.Format(name))
	}
	sb.WriteString(bools.String())
	kvs = append(kvs, s.Flags.tokens()...)
	if s.Compiler != nil {
		kvs = append(kvs, "%"+s.Compiler.String())
	}
	kvs = append(kvs, archTokens(s.Arch)...)
	for _, tok := range kvs {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(tok)
	}
}

func archTokens(a arch.Arch) []string {
	if a.Concrete() {
		return []string{"arch=" + a.String()}
	}
	var out []string
	if a.Platform != "" {
		out = append(out, "platform="+a.Platform)
	}
	if a.OS != "" {
		out = append(out, "os="+a.OS)
	}
	if a.Target != "" {
		out = append(out, "target="+a.Target)
	}
	return out
}
