// Package catalog defines the declarative package definitions consumed by
// the concretizer and the Catalog interface that serves them.
package catalog

import (
	"errors"
	"fmt"
	"slices"

	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// ErrUnknownPackage is returned for names no catalog defines.
var ErrUnknownPackage = errors.New("unknown package")

// Catalog serves package definitions by name. Implementations must be safe
// for concurrent use.
type Catalog interface {
	// Get returns the definition of a concrete package.
	Get(name string) (*Package, error)
	// Providers returns the packages providing a virtual, sorted by name.
	Providers(virtual string) []string
	// IsVirtual reports whether name is provided by other packages and is
	// not itself a package.
	IsVirtual(name string) bool
}

// Package is the declarative definition of one package.
type Package struct {
	Name         string
	Description  string
	Versions     []VersionDecl
	Variants     []VariantDecl
	Dependencies []DependencyDecl
	Conflicts    []Conflict
	Provides     []Provide
	// Targets restricts the targets the package builds for. Empty means any.
	Targets []string
}

// VersionDecl declares an available version.
type VersionDecl struct {
	Version    version.Version
	Preferred  bool
	Deprecated bool
}

// VariantDecl declares a variant that exists when When holds.
type VariantDecl struct {
	variant.Definition
	When spec.Predicate
}

// DependencyDecl declares a dependency that applies when When holds.
type DependencyDecl struct {
	Spec  *spec.Spec
	Types spec.DepTypes
	When  spec.Predicate
}

// Conflict rejects nodes on which both Constraint and When hold.
type Conflict struct {
	Constraint spec.Predicate
	When       spec.Predicate
	Msg        string
}

// Provide declares that the package implements a virtual. Virtual holds the
// virtual name and the versions of the interface provided.
type Provide struct {
	Virtual *spec.Spec
	When    spec.Predicate
}

// Validate checks the internal consistency of p and fills in defaults.
func (p *Package) Validate() error {
	if p.Name == "" {
		return errors.New("package has no name")
	}
	if len(p.Versions) == 0 {
		return fmt.Errorf("package %s declares no versions", p.Name)
	}
	for i := range p.Variants {
		v := &p.Variants[i]
		if v.When == nil {
			v.When = spec.Always{}
		}
		def, err := v.Normalize(v.Default)
		if err != nil {
			return fmt.Errorf("package %s: default of variant %s: %w", p.Name, v.Name, err)
		}
		v.Default = def
	}
	for i := range p.Dependencies {
		d := &p.Dependencies[i]
		if d.Spec == nil || d.Spec.Name == "" {
			return fmt.Errorf("package %s: dependency without a name", p.Name)
		}
		if d.Spec.Name == p.Name {
			return fmt.Errorf("package %s depends on itself", p.Name)
		}
		if d.Types == 0 {
			d.Types = spec.DefaultDepTypes
		}
		if d.When == nil {
			d.When = spec.Always{}
		}
	}
	for i := range p.Conflicts {
		if p.Conflicts[i].Constraint == nil {
			return fmt.Errorf("package %s: conflict without a constraint", p.Name)
		}
		if p.Conflicts[i].When == nil {
			p.Conflicts[i].When = spec.Always{}
		}
	}
	for i := range p.Provides {
		pr := &p.Provides[i]
		if pr.Virtual == nil || pr.Virtual.Name == "" {
			return fmt.Errorf("package %s: provides without a virtual name", p.Name)
		}
		if pr.When == nil {
			pr.When = spec.Always{}
		}
	}
	return nil
}

// Version returns the declaration of v.
func (p *Package) Version(v version.Version) (VersionDecl, bool) {
	i := slices.IndexFunc(p.Versions, func(d VersionDecl) bool { return version.Compare(d.Version, v) == 0 })
	if i < 0 {
		return VersionDecl{}, false
	}
	return p.Versions[i], true
}

// VariantDecls returns every declaration of the named variant.
func (p *Package) VariantDecls(name string) []*VariantDecl {
	var out []*VariantDecl
	for i := range p.Variants {
		if p.Variants[i].Name == name {
			out = append(out, &p.Variants[i])
		}
	}
	return out
}

// HasVariant reports whether p declares the named variant under any
// condition.
func (p *Package) HasVariant(name string) bool {
	return len(p.VariantDecls(name)) > 0
}

// ProvidesFor returns the declarations through which p provides virtual at
// some version in vers.
func (p *Package) ProvidesFor(virtual string, vers version.List) []Provide {
	var out []Provide
	for _, pr := range p.Provides {
		if pr.Virtual.Name == virtual && pr.Virtual.Versions.Intersects(vers) {
			out = append(out, pr)
		}
	}
	return out
}
