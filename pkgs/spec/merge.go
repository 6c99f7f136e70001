package spec

import (
	"errors"
	"fmt"

	"github.com/goplus/spk/pkgs/arch"
)

// ConflictError reports a field on which two specs cannot be merged.
type ConflictError struct {
	Node        string
	Field       string
	Left, Right string
	Err         error
}

func (e *ConflictError) Error() string {
	node := e.Node
	if node == "" {
		node = "<anonymous>"
	}
	return fmt.Sprintf("%s: conflicting %s: %s vs %s", node, e.Field, e.Left, e.Right)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// Merge returns the conjunction of the constraints of a and b. Neither input
// is modified. Merge is commutative and associative over mergeable inputs.
func Merge(a, b *Spec) (*Spec, error) {
	name := a.Name
	switch {
	case a.Name == "":
		name = b.Name
	case b.Name != "" && a.Name != b.Name:
		return nil, &ConflictError{Node: a.Name, Field: "name", Left: a.Name, Right: b.Name}
	}
	out := &Spec{Name: name, Arch: a.Arch, Virtual: a.Virtual || b.Virtual}

	vl, ok := a.Versions.Intersect(b.Versions)
	if !ok {
		return nil, &ConflictError{Node: name, Field: "version", Left: "@" + a.Versions.String(), Right: "@" + b.Versions.String()}
	}
	out.Versions = vl

	vars, err := a.Variants.Merge(b.Variants)
	if err != nil {
		return nil, &ConflictError{Node: name, Field: "variant", Left: a.Variants.String(), Right: b.Variants.String(), Err: err}
	}
	out.Variants = vars

	switch {
	case a.Compiler == nil && b.Compiler != nil:
		c := *b.Compiler
		out.Compiler = &c
	case a.Compiler != nil && b.Compiler == nil:
		c := *a.Compiler
		out.Compiler = &c
	case a.Compiler != nil:
		c, err := a.Compiler.Merge(*b.Compiler)
		if err != nil {
			return nil, &ConflictError{Node: name, Field: "compiler", Left: "%" + a.Compiler.String(), Right: "%" + b.Compiler.String(), Err: err}
		}
		out.Compiler = &c
	}

	if out.Arch, err = a.Arch.Merge(b.Arch); err != nil {
		field := "arch"
		var ce *arch.ConflictError
		if errors.As(err, &ce) {
			field = ce.Field
		}
		return nil, &ConflictError{Node: name, Field: field, Left: a.Arch.String(), Right: b.Arch.String(), Err: err}
	}

	out.Flags = a.Flags.Merge(b.Flags)

	for _, d := range a.Deps {
		out.AddDep(&Dependency{Spec: d.Spec.Clone(), Types: d.Types})
	}
	for _, dname := range b.DepNames() {
		bd := b.Deps[dname]
		ad, ok := out.Deps[dname]
		if !ok {
			out.AddDep(&Dependency{Spec: bd.Spec.Clone(), Types: bd.Types})
			continue
		}
		m, err := Merge(ad.Spec, bd.Spec)
		if err != nil {
			return nil, err
		}
		out.AddDep(&Dependency{Spec: m, Types: ad.Types | bd.Types})
	}
	return out, nil
}
