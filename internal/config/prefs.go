package config

import (
	"maps"

	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// lookup returns the entry for pkg, falling back to all.
func lookup[T any](c *Config, pkg string, f func(PackagePrefs) T, empty func(T) bool) T {
	if p, ok := c.Packages[pkg]; ok {
		if v := f(p); !empty(v) {
			return v
		}
	}
	return f(c.Packages[All])
}

func emptySlice(s []string) bool { return len(s) == 0 }

func (c *Config) PreferredVersions(pkg string) []version.Range {
	return c.versions[pkg]
}

// VariantDefaults returns the defaults for all overlaid with those for pkg.
func (c *Config) VariantDefaults(pkg string) variant.Map {
	all, own := c.variants[All], c.variants[pkg]
	if len(all) == 0 {
		return own
	}
	out := maps.Clone(all)
	maps.Copy(out, own)
	return out
}

// ProviderPreference reads packages.<virtual>.providers.<virtual>, then
// packages.all.providers.<virtual>.
func (c *Config) ProviderPreference(virtual string) []string {
	return lookup(c, virtual, func(p PackagePrefs) []string { return p.Providers[virtual] }, emptySlice)
}

func (c *Config) CompilerPreference(pkg string) []string {
	return lookup(c, pkg, func(p PackagePrefs) []string { return p.Compiler }, emptySlice)
}

func (c *Config) TargetPreference(pkg string) []string {
	return lookup(c, pkg, func(p PackagePrefs) []string { return p.Target }, emptySlice)
}

func (c *Config) Requirement(pkg string) *spec.Spec {
	if r, ok := c.require[pkg]; ok {
		return r.Clone()
	}
	return nil
}

func (c *Config) Compilers() []compiler.Compiler {
	return c.compilers
}

func (c *Config) LooseABI() bool {
	return c.Settings.LooseABI
}

// InstallTree returns the install tree settings.
func (c *Config) InstallTree() InstallTree {
	return c.Settings.InstallTree
}

// BuildJobs returns the number of parallel installs.
func (c *Config) BuildJobs() int {
	return c.Settings.BuildJobs
}
