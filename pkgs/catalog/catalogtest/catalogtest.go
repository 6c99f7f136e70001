// Package catalogtest provides a mock package repository for tests.
package catalogtest

import (
	"github.com/goplus/spk/pkgs/catalog"
	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// Builder assembles a catalog.Package. Methods panic on malformed input.
type Builder struct {
	p *catalog.Package
}

// New starts a package definition.
func New(name string) *Builder {
	return &Builder{p: &catalog.Package{Name: name}}
}

// Package returns the assembled definition.
func (b *Builder) Package() *catalog.Package { return b.p }

func cond(when string) spec.Predicate {
	if when == "" {
		return spec.Always{}
	}
	p, err := spec.ParseCondition(when)
	if err != nil {
		panic(err)
	}
	return p
}

// Versions declares plain versions.
func (b *Builder) Versions(vs ...string) *Builder {
	for _, v := range vs {
		b.p.Versions = append(b.p.Versions, catalog.VersionDecl{Version: version.MustParse(v)})
	}
	return b
}

// Preferred declares a preferred version.
func (b *Builder) Preferred(v string) *Builder {
	b.p.Versions = append(b.p.Versions, catalog.VersionDecl{Version: version.MustParse(v), Preferred: true})
	return b
}

// Deprecated declares a deprecated version.
func (b *Builder) Deprecated(v string) *Builder {
	b.p.Versions = append(b.p.Versions, catalog.VersionDecl{Version: version.MustParse(v), Deprecated: true})
	return b
}

// Bool declares a boolean variant.
func (b *Builder) Bool(name string, def bool, when string) *Builder {
	b.p.Variants = append(b.p.Variants, catalog.VariantDecl{
		Definition: variant.Definition{Name: name, Kind: variant.Bool, Default: variant.BoolValue(def)},
		When:       cond(when),
	})
	return b
}

// Single declares a single-valued variant.
func (b *Builder) Single(name, def string, values ...string) *Builder {
	b.p.Variants = append(b.p.Variants, catalog.VariantDecl{
		Definition: variant.Definition{Name: name, Kind: variant.Single, Default: variant.StringValue(def), Values: values},
		When:       spec.Always{},
	})
	return b
}

// Multi declares a multi-valued variant.
func (b *Builder) Multi(name string, def, values []string, when string) *Builder {
	b.p.Variants = append(b.p.Variants, catalog.VariantDecl{
		Definition: variant.Definition{Name: name, Kind: variant.Multi, Default: variant.MultiValue(def...), Values: values},
		When:       cond(when),
	})
	return b
}

// DependsOn declares a dependency. Without types it is build and link.
func (b *Builder) DependsOn(s, when string, types ...spec.DepTypes) *Builder {
	var t spec.DepTypes
	for _, x := range types {
		t |= x
	}
	b.p.Dependencies = append(b.p.Dependencies, catalog.DependencyDecl{
		Spec:  spec.MustParse(s),
		Types: t,
		When:  cond(when),
	})
	return b
}

// Conflicts declares a conflict.
func (b *Builder) Conflicts(constraint, when, msg string) *Builder {
	b.p.Conflicts = append(b.p.Conflicts, catalog.Conflict{Constraint: cond(constraint), When: cond(when), Msg: msg})
	return b
}

// Provides declares a provided virtual such as "mpi@:3".
func (b *Builder) Provides(virtual, when string) *Builder {
	b.p.Provides = append(b.p.Provides, catalog.Provide{Virtual: spec.MustParse(virtual), When: cond(when)})
	return b
}

// Targets restricts the package to the given targets.
func (b *Builder) Targets(ts ...string) *Builder {
	b.p.Targets = append(b.p.Targets, ts...)
	return b
}

// Mock returns a catalog with the mock repository used across tests.
func Mock() *catalog.Memory {
	return catalog.NewMemory(MockPackages()...)
}

// MockPackages returns fresh definitions of the mock repository.
func MockPackages() []*catalog.Package {
	return []*catalog.Package{
		New("mpileaks").Versions("1.0", "2.1", "2.2", "2.3").
			Bool("debug", false, "").Bool("opt", false, "").Bool("shared", true, "").
			Multi("fabrics", []string{"verbs"}, []string{"verbs", "psm", "ofi"}, "@2:").
			DependsOn("mpi", "").DependsOn("callpath", "").
			DependsOn("check", "", spec.Test).
			Conflicts("+debug", "%clang@:9", "debug builds need clang 10 or newer").
			Package(),
		New("callpath").Versions("0.8", "0.9", "1.0").
			DependsOn("dyninst", "").DependsOn("mpi", "").
			Package(),
		New("dyninst").Versions("8.1.1", "8.1.2", "8.2").
			DependsOn("libelf", "").DependsOn("libdwarf", "").
			Package(),
		New("libelf").Versions("0.8.10", "0.8.12", "0.8.13").Package(),
		New("libdwarf").Versions("20070703", "20111030", "20130729").
			DependsOn("libelf", "").
			Package(),
		New("check").Versions("0.15.2").Package(),

		New("mpich").Versions("1.0", "3.0.4").
			Provides("mpi@:3", "@3:").Provides("mpi@:1", "@1.0").
			Package(),
		New("openmpi").Versions("4.1.5").
			Provides("mpi@:3.1", "").Bool("cuda", false, "").
			Package(),
		New("zmpi").Versions("1.0").
			Provides("mpi@:10", "").DependsOn("fake", "").
			Package(),
		New("fake").Versions("1.0").Package(),
		New("mpi-user").Versions("1.0").DependsOn("mpi@4:", "").Package(),

		New("pkg-a").Versions("1.0", "2.0").
			Single("foobar", "bar", "bar", "baz", "fee").
			Bool("bvv", true, "").
			DependsOn("pkg-b", "foobar=baz").
			Package(),
		New("pkg-b").Versions("1.0").Bool("bvv", false, "").Package(),

		New("app-x").Versions("1.0").
			DependsOn("libx@1.2:", "").DependsOn("liby", "").
			Package(),
		New("app-y").Versions("1.0").
			DependsOn("libx@2:", "").DependsOn("liby", "").
			Package(),
		New("liby").Versions("1.0").DependsOn("libx@:1.5", "").Package(),
		New("libx").Versions("1.0", "1.2", "1.4", "1.5", "2.0").Package(),

		New("abi-a").Versions("1.0").DependsOn("abi-b", "", spec.Link).Package(),
		New("abi-b").Versions("1.0").Package(),

		New("develop-pkg").Versions("develop", "1.0", "2.0").Package(),
		New("preferred-pkg").Versions("2.0").Preferred("1.0").Package(),
		New("deprecated-pkg").Deprecated("2.0").Versions("1.0").Package(),
		New("x86-only").Versions("1.0").Targets("x86_64").Package(),
		New("arm-only").Versions("1.0").Targets("aarch64", "neoverse_v1").Package(),
		New("needs-arm").Versions("1.0").DependsOn("arm-only", "").Package(),

		New("cycle-a").Versions("1.0").DependsOn("cycle-b", "").Package(),
		New("cycle-b").Versions("1.0").DependsOn("cycle-a", "").Package(),
		New("broken").Versions("1.0").DependsOn("does-not-exist", "").Package(),
		New("conditional-variant").Versions("1.0", "2.0").
			Bool("newfeature", true, "@2:").
			Package(),
	}
}
