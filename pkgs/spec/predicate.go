package spec

import (
	"fmt"
	"strings"

	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// Truth is the result of evaluating a predicate on a partially
// constrained spec.
type Truth int

const (
	Unknown Truth = iota
	True
	False
)

func (t Truth) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "unknown"
}

func truth(b bool) Truth {
	if b {
		return True
	}
	return False
}

// Predicate is a condition over a node's own attributes. It evaluates to
// True or False when the attributes it reads are settled, and Unknown while
// they are still open. The set of predicates is closed.
type Predicate interface {
	Eval(s *Spec) Truth
	String() string
	predicate()
}

// Always holds unconditionally.
type Always struct{}

// VersionIn holds when the version lies in Versions.
type VersionIn struct{ Versions version.List }

// VariantEquals holds when the variant Name holds Value.
type VariantEquals struct {
	Name  string
	Value variant.Value
}

// PlatformEquals holds when the platform is Platform.
type PlatformEquals struct{ Platform string }

// OSEquals holds when the operating system is OS.
type OSEquals struct{ OS string }

// TargetEquals holds when the target is Target.
type TargetEquals struct{ Target string }

// CompilerIs holds when the compiler matches Compiler.
type CompilerIs struct{ Compiler compiler.Spec }

// And holds when every term holds.
type And []Predicate

// Or holds when some term holds.
type Or []Predicate

// Not holds when P does not.
type Not struct{ P Predicate }

func (Always) predicate() {}
func (VersionIn) predicate() {}
func (VariantEquals) predicate() {}
func (PlatformEquals) predicate() {}
func (OSEquals) predicate() {}
func (TargetEquals) predicate() {}
func (CompilerIs) predicate() {}
func (And) predicate() {}
func (Or) predicate() {}
func (Not) predicate() {}

func (Always) Eval(*Spec) Truth { return True }
func (Always) String() string { return "" }

func (p VersionIn) Eval(s *Spec) Truth {
	switch {
	case s.Versions.Satisfies(p.Versions):
		return True
	case !s.Versions.Intersects(p.Versions):
		return False
	}
	return Unknown
}

func (p VersionIn) String() string { return "@" + p.Versions.String() }

func (p VariantEquals) Eval(s *Spec) Truth {
	v, ok := s.Variants[p.Name]
	if !ok {
		return Unknown
	}
	return truth(v.Contains(p.Value))
}

func (p VariantEquals) String() string { return p.Value.Format(p.Name) }

func (p PlatformEquals) Eval(s *Spec) Truth { return fieldEquals(s.Arch.Platform, p.Platform) }
func (p PlatformEquals) String() string { return "platform=" + p.Platform }

func (p OSEquals) Eval(s *Spec) Truth { return fieldEquals(s.Arch.OS, p.OS) }
func (p OSEquals) String() string { return "os=" + p.OS }

func (p TargetEquals) Eval(s *Spec) Truth { return fieldEquals(s.Arch.Target, p.Target) }
func (p TargetEquals) String() string { return "target=" + p.Target }

func fieldEquals(have, want string) Truth {
	if have == "" {
		return Unknown
	}
	return truth(have == want)
}

func (p CompilerIs) Eval(s *Spec) Truth {
	c := s.Compiler
	switch {
	case c == nil:
		return Unknown
	case c.Name != p.Compiler.Name:
		return False
	case c.Versions.Satisfies(p.Compiler.Versions):
		return True
	case c.Versions.Intersects(p.Compiler.Versions):
		return Unknown
	}
	return False
}

func (p CompilerIs) String() string { return "%" + p.Compiler.String() }

func (p And) Eval(s *Spec) Truth {
	result := True
	for _, t := range p {
		switch t.Eval(s) {
		case False:
			return False
		case Unknown:
			result = Unknown
		}
	}
	return result
}

func (p And) String() string { return join(p, " ") }

func (p Or) Eval(s *Spec) Truth {
	if len(p) == 0 {
		return False
	}
	result := False
	for _, t := range p {
		switch t.Eval(s) {
		case True:
			return True
		case Unknown:
			result = Unknown
		}
	}
	return result
}

func (p Or) String() string { return join(p, " | ") }

func (p Not) Eval(s *Spec) Truth {
	switch p.P.Eval(s) {
	case True:
		return False
	case False:
		return True
	}
	return Unknown
}

func (p Not) String() string { return "!(" + p.P.String() + ")" }

func join(ps []Predicate, sep string) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, sep)
}

// Condition converts an anonymous spec into the conjunction of its
// constraints. An empty spec converts to Always.
func Condition(s *Spec) (Predicate, error) {
	if s.Name != "" {
		return nil, fmt.Errorf("condition %q must not name a package", s)
	}
	if len(s.Deps) > 0 {
		return nil, fmt.Errorf("condition %q must not constrain dependencies", s)
	}
	var terms And
	if !s.Versions.IsAny() {
		terms = append(terms, VersionIn{Versions: s.Versions})
	}
	for _, name := range s.Variants.Names() {
		terms = append(terms, VariantEquals{Name: name, Value: s.Variants[name]})
	}
	if s.Compiler != nil {
		terms = append(terms, CompilerIs{Compiler: *s.Compiler})
	}
	if s.Arch.Platform != "" {
		terms = append(terms, PlatformEquals{Platform: s.Arch.Platform})
	}
	if s.Arch.OS != "" {
		terms = append(terms, OSEquals{OS: s.Arch.OS})
	}
	if s.Arch.Target != "" {
		terms = append(terms, TargetEquals{Target: s.Arch.Target})
	}
	switch len(terms) {
	case 0:
		return Always{}, nil
	case 1:
		return terms[0], nil
	}
	return terms, nil
}

// ParseCondition parses a condition written in spec syntax, e.g.
// "@2: +debug %gcc".
func ParseCondition(s string) (Predicate, error) {
	if strings.TrimSpace(s) == "" {
		return Always{}, nil
	}
	sp, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return Condition(sp)
}
