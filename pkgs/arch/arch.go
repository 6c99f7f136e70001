// Package arch describes the platform, operating system and target
// microarchitecture a package is built for.
package arch

import (
	"fmt"
	"strings"
)

// Arch is a (platform, os, target) triple. Empty fields are unconstrained.
type Arch struct {
	Platform string
	OS       string
	Target   string
}

// Parse parses "platform-os-target". Missing trailing fields stay empty and
// "None" marks an unset field.
func Parse(s string) (Arch, error) {
	parts := strings.Split(s, "-")
	if len(parts) > 3 {
		return Arch{}, fmt.Errorf("invalid architecture %q: want platform-os-target", s)
	}
	var a Arch
	fields := []*string{&a.Platform, &a.OS, &a.Target}
	for i, p := range parts {
		if p != "None" {
			*fields[i] = p
		}
	}
	return a, nil
}

// IsZero reports whether no field is set.
func (a Arch) IsZero() bool { return a == Arch{} }

// Concrete reports whether every field is set.
func (a Arch) Concrete() bool {
	return a.Platform != "" && a.OS != "" && a.Target != ""
}

// Merge combines a and b field by field. A field set in both must agree.
func (a Arch) Merge(b Arch) (Arch, error) {
	out := a
	for _, f := range []struct {
		name     string
		dst      *string
		src, old string
	}{
		{"platform", &out.Platform, b.Platform, a.Platform},
		{"os", &out.OS, b.OS, a.OS},
		{"target", &out.Target, b.Target, a.Target},
	} {
		switch {
		case f.src == "":
		case f.old == "":
			*f.dst = f.src
		case f.old != f.src:
			return Arch{}, &ConflictError{Field: f.name, Left: f.old, Right: f.src}
		}
	}
	return out, nil
}

// Satisfies reports whether every field set in o has the same value in a.
func (a Arch) Satisfies(o Arch) bool {
	return (o.Platform == "" || o.Platform == a.Platform) &&
		(o.OS == "" || o.OS == a.OS) &&
		(o.Target == "" || o.Target == a.Target)
}

// Resolve replaces the aliases default, frontend and backend (and their
// default_os, default_target, fe and be spellings) with host values.
func (a Arch) Resolve(host Arch) Arch {
	if isAlias(a.Platform) {
		a.Platform = host.Platform
	}
	if isAlias(a.OS) {
		a.OS = host.OS
	}
	if isAlias(a.Target) {
		a.Target = host.Target
	}
	return a
}

func isAlias(s string) bool {
	switch s {
	case "default", "frontend", "backend", "fe", "be", "default_os", "default_target":
		return true
	}
	return false
}

func (a Arch) String() string {
	if a.IsZero() {
		return ""
	}
	f := func(s string) string {
		if s == "" {
			return "None"
		}
		return s
	}
	return f(a.Platform) + "-" + f(a.OS) + "-" + f(a.Target)
}

// ConflictError reports two different values for one field.
type ConflictError struct {
	Field       string
	Left, Right string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting %s: %s and %s", e.Field, e.Left, e.Right)
}
