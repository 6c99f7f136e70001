package concretize

import (
	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// Config supplies site preferences. Implementations must be safe for
// concurrent reads.
type Config interface {
	// PreferredVersions returns version preferences for a package, most
	// preferred first.
	PreferredVersions(pkg string) []version.Range
	// VariantDefaults returns variant values that override package defaults.
	VariantDefaults(pkg string) variant.Map
	// ProviderPreference returns preferred providers of a virtual in order.
	ProviderPreference(virtual string) []string
	// CompilerPreference returns preferred compiler families for a package.
	CompilerPreference(pkg string) []string
	// TargetPreference returns preferred targets for a package.
	TargetPreference(pkg string) []string
	// Requirement returns constraints every node of pkg must satisfy, or nil.
	Requirement(pkg string) *spec.Spec
	// Compilers returns the detected compilers.
	Compilers() []compiler.Compiler
	// LooseABI reports whether ABI incompatibilities are only warnings.
	LooseABI() bool
}
