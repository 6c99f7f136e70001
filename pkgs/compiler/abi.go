package compiler

import (
	"sync"

	"github.com/goplus/spk/pkgs/version"
)

// Rule reports whether two compilers of one family produce compatible
// binaries even though their versions differ.
type Rule func(a, b Compiler) bool

// ABI decides whether objects built by two compilers can be linked
// together. It is safe for concurrent use.
type ABI struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewABI returns a checker with the built-in family rules: gcc objects are
// compatible when their runtime libraries match, intel objects when
// major.minor versions match.
func NewABI() *ABI {
	a := &ABI{rules: make(map[string]Rule)}
	a.Register("gcc", sameRuntime)
	a.Register("intel", sameMajorMinor)
	a.Register("oneapi", sameMajorMinor)
	return a
}

// Register sets the compatibility rule for a compiler family.
func (a *ABI) Register(family string, rule Rule) {
	a.mu.Lock()
	a.rules[family] = rule
	a.mu.Unlock()
}

// Compatible reports whether x and y are ABI compatible. Compilers of
// different families never are.
func (a *ABI) Compatible(x, y Compiler) bool {
	if x.Name != y.Name {
		return false
	}
	if version.Compare(x.Version, y.Version) == 0 {
		return true
	}
	a.mu.RLock()
	rule := a.rules[x.Name]
	a.mu.RUnlock()
	return rule != nil && rule(x, y)
}

func sameRuntime(a, b Compiler) bool {
	return a.Runtime != "" && a.Runtime == b.Runtime
}

func sameMajorMinor(a, b Compiler) bool {
	return version.Compare(a.Version.UpTo(2), b.Version.UpTo(2)) == 0
}
