package concretize

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every *Error unwraps to one of them.
var (
	ErrUnsatisfiable    = errors.New("unsatisfiable constraint")
	ErrNoProvider       = errors.New("no provider")
	ErrUnknownPackage   = errors.New("unknown package")
	ErrInvalidVariant   = errors.New("invalid variant")
	ErrCyclicDependency = errors.New("cyclic dependency")
	ErrABIIncompatible  = errors.New("ABI incompatible")
)

// Provenance names where a constraint came from.
type Provenance struct {
	Source     string // "user", "config" or "<parent>@<version>"
	Constraint string
}

func (p Provenance) String() string {
	if p.Source == "" {
		return p.Constraint
	}
	return p.Constraint + " (from " + p.Source + ")"
}

// Error describes why a spec could not be concretized.
type Error struct {
	Kind        error
	Node        string
	Field       string
	Constraints []Provenance
	Detail      string
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Node != "" {
		fmt.Fprintf(&sb, ": %s", e.Node)
		if e.Field != "" {
			fmt.Fprintf(&sb, " %s", e.Field)
		}
	}
	if len(e.Constraints) > 0 {
		parts := make([]string, len(e.Constraints))
		for i, c := range e.Constraints {
			parts[i] = c.String()
		}
		fmt.Fprintf(&sb, ": %s", strings.Join(parts, " conflicts with "))
	}
	if e.Detail != "" {
		fmt.Fprintf(&sb, ": %s", e.Detail)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Kind }
