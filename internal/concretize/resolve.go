package concretize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/goplus/spk/pkgs/catalog"
	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// resolveVersion picks the version of n. Candidates are the declared
// versions within the constraint, ordered by configuration preference,
// then non-deprecated, package preference, non-develop and highest first.
func (r *run) resolveVersion(n *node) error {
	want := n.cons.Versions
	prefs := r.c.config.PreferredVersions(n.name)
	rank := func(v version.Version) int {
		for i, p := range prefs {
			if p.Contains(v) {
				return i
			}
		}
		return len(prefs)
	}
	var cands []catalog.VersionDecl
	for _, d := range n.pkg.Versions {
		if want.Contains(d.Version) {
			cands = append(cands, d)
		}
	}
	if len(cands) == 0 {
		// A fully specified ref or exact version is accepted as is.
		if v, ok := want.Exact(); ok {
			n.version = v
			return nil
		}
		return &Error{
			Kind:        ErrUnsatisfiable,
			Node:        n.name,
			Field:       "version",
			Constraints: constraintsOn(n, "version"),
			Detail:      fmt.Sprintf("no declared version of %s satisfies @%s", n.name, want),
		}
	}
	slices.SortStableFunc(cands, func(a, b catalog.VersionDecl) int {
		if d := rank(a.Version) - rank(b.Version); d != 0 {
			return d
		}
		if a.Deprecated != b.Deprecated {
			return boolOrder(b.Deprecated)
		}
		if a.Preferred != b.Preferred {
			return boolOrder(a.Preferred)
		}
		if ad, bd := a.Version.IsDevelop(), b.Version.IsDevelop(); ad != bd {
			return boolOrder(bd)
		}
		return version.Compare(b.Version, a.Version)
	})
	n.version = cands[0].Version
	return nil
}

// boolOrder sorts the side for which first is true before the other.
func boolOrder(first bool) int {
	if first {
		return -1
	}
	return 1
}

// resolveVariants assigns every variant that applies to n. Explicit values
// win over configuration defaults, which win over package defaults. The
// final pass runs with the compiler and architecture known and rejects
// explicit values for variants that do not apply.
func (r *run) resolveVariants(n *node, final bool) error {
	explicit := n.cons.Variants
	for _, name := range explicit.Names() {
		if !n.pkg.HasVariant(name) {
			return &Error{
				Kind:        ErrInvalidVariant,
				Node:        n.name,
				Field:       name,
				Constraints: constraintsOn(n, name),
				Detail:      fmt.Sprintf("%s has no variant %q", n.name, name),
			}
		}
	}
	defaults := r.c.config.VariantDefaults(n.name)
	view := n.view()
	view.Variants = explicit.Clone()
	if view.Variants == nil {
		view.Variants = make(variant.Map)
	}
	out := make(variant.Map)
	for i := range n.pkg.Variants {
		d := &n.pkg.Variants[i]
		if _, ok := out[d.Name]; ok {
			continue
		}
		if d.When.Eval(view) != spec.True {
			continue
		}
		v, err := r.variantValue(n, d, explicit, defaults)
		if err != nil {
			return err
		}
		out[d.Name] = v
		view.Variants[d.Name] = v
	}
	if final {
		for _, name := range explicit.Names() {
			if _, ok := out[name]; ok || explicit[name].Propagate {
				continue
			}
			return &Error{
				Kind:        ErrInvalidVariant,
				Node:        n.name,
				Field:       name,
				Constraints: constraintsOn(n, name),
				Detail:      fmt.Sprintf("variant %s does not apply to %s", name, n.label()),
			}
		}
	}
	n.variants = out
	return nil
}

func (r *run) variantValue(n *node, d *catalog.VariantDecl, explicit, defaults variant.Map) (variant.Value, error) {
	if v, ok := explicit[d.Name]; ok {
		nv, err := d.Normalize(v)
		if err != nil {
			return variant.Value{}, &Error{
				Kind:        ErrInvalidVariant,
				Node:        n.name,
				Field:       d.Name,
				Constraints: constraintsOn(n, d.Name),
				Detail:      err.Error(),
			}
		}
		nv.Propagate = false
		return nv, nil
	}
	if v, ok := defaults[d.Name]; ok {
		nv, err := d.Normalize(v)
		if err != nil {
			return variant.Value{}, &Error{
				Kind:        ErrInvalidVariant,
				Node:        n.name,
				Field:       d.Name,
				Constraints: []Provenance{{Source: "config", Constraint: v.Format(d.Name)}},
				Detail:      err.Error(),
			}
		}
		nv.Propagate = false
		return nv, nil
	}
	return d.Default, nil
}

// checkConflicts rejects n if one of its package's conflicts holds.
func (r *run) checkConflicts(n *node) error {
	view := n.view()
	for _, c := range n.pkg.Conflicts {
		if c.Constraint.Eval(view) != spec.True || c.When.Eval(view) != spec.True {
			continue
		}
		cond := strings.TrimSpace(c.Constraint.String() + " " + c.When.String())
		msg := c.Msg
		if msg == "" {
			msg = fmt.Sprintf("%s conflicts with %s", n.name, cond)
		}
		return &Error{
			Kind:        ErrInvalidVariant,
			Node:        n.name,
			Field:       "conflict",
			Constraints: []Provenance{{Source: n.label(), Constraint: cond}},
			Detail:      msg,
		}
	}
	return nil
}

// compilerParent returns the first resolved parent n depends on through a
// build or link edge.
func compilerParent(n *node) *node {
	for _, e := range n.sortedParents() {
		if e.types.Any(spec.Build|spec.Link) && e.parent.state >= CompilerResolved {
			return e.parent
		}
	}
	return nil
}

// resolveCompiler picks the compiler of n. Constraints are inherited from
// the parent when n has none. The parent's compiler is reused when it
// satisfies them, otherwise the best detected compiler is taken.
func (r *run) resolveCompiler(n *node) error {
	parent := compilerParent(n)
	want := n.cons.Compiler
	if want == nil && parent != nil {
		want = parent.compilerCons
	}
	n.compilerCons = want
	if parent != nil && (want == nil || want.Contains(parent.compiler)) {
		n.compiler = parent.compiler
	} else {
		c, ok := r.bestCompiler(n, want)
		if !ok {
			e := &Error{Kind: ErrUnsatisfiable, Node: n.name, Field: "compiler", Constraints: constraintsOn(n, "compiler")}
			switch {
			case want == nil:
				e.Detail = "no compilers detected"
			case n.cons.Compiler == nil:
				e.Constraints = []Provenance{{Source: parent.label(), Constraint: "%" + want.String()}}
				fallthrough
			default:
				e.Detail = fmt.Sprintf("no detected compiler satisfies %%%s", want)
			}
			return e
		}
		n.compiler = c
	}

	n.flags = n.cons.Flags.Clone()
	if parent != nil {
		for k, flags := range parent.flags {
			if len(n.flags[k]) > 0 {
				continue
			}
			if n.flags == nil {
				n.flags = make(spec.Flags)
			}
			n.flags[k] = slices.Clone(flags)
		}
	}
	return r.checkABI(n)
}

// bestCompiler returns the preferred detected compiler matching want:
// configured family order first, then family name, then newest version.
func (r *run) bestCompiler(n *node, want *compiler.Spec) (compiler.Compiler, bool) {
	prefs := r.c.config.CompilerPreference(n.name)
	rank := func(name string) int {
		if i := slices.Index(prefs, name); i >= 0 {
			return i
		}
		return len(prefs)
	}
	var cands []compiler.Compiler
	for _, c := range r.c.config.Compilers() {
		if want != nil && !want.Contains(c) {
			continue
		}
		if c.OS != "" && n.cons.Arch.OS != "" && c.OS != n.cons.Arch.OS {
			continue
		}
		cands = append(cands, c)
	}
	if len(cands) == 0 {
		return compiler.Compiler{}, false
	}
	slices.SortStableFunc(cands, func(a, b compiler.Compiler) int {
		if d := rank(a.Name) - rank(b.Name); d != 0 {
			return d
		}
		if d := strings.Compare(a.Name, b.Name); d != 0 {
			return d
		}
		return version.Compare(b.Version, a.Version)
	})
	return cands[0], true
}

// checkABI checks n against its resolved link neighbors.
func (r *run) checkABI(n *node) error {
	for _, e := range n.sortedParents() {
		if e.types.Has(spec.Link) && e.parent.state >= CompilerResolved {
			if err := r.checkLink(e.parent, n); err != nil {
				return err
			}
		}
	}
	for _, e := range n.sortedDeps() {
		if e.types.Has(spec.Link) && e.child.state >= CompilerResolved {
			if err := r.checkLink(n, e.child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) checkLink(parent, child *node) error {
	if r.c.abi.Compatible(parent.compiler, child.compiler) {
		return nil
	}
	if r.c.config.LooseABI() {
		r.c.logger.Warn("ABI mismatch", "pkg", parent.name, "compiler", parent.compiler.String(),
			"dep", child.name, "dep_compiler", child.compiler.String())
		return nil
	}
	return &Error{
		Kind:  ErrABIIncompatible,
		Node:  child.name,
		Field: "compiler",
		Constraints: []Provenance{
			{Source: parent.label(), Constraint: "%" + parent.compiler.String()},
			{Source: child.label(), Constraint: "%" + child.compiler.String()},
		},
		Detail: fmt.Sprintf("%s links against %s", parent.name, child.name),
	}
}

// resolveArch completes the architecture of n from its first resolved
// parent, or the host for the root, and applies the package target filter.
func (r *run) resolveArch(n *node) error {
	a := n.cons.Arch
	base := r.c.host
	var parent *node
	for _, e := range n.sortedParents() {
		if e.parent.state >= ArchResolved {
			parent = e.parent
			break
		}
	}
	if parent != nil {
		base = parent.arch
	}
	if a.Platform == "" {
		a.Platform = base.Platform
	}
	if a.OS == "" {
		a.OS = base.OS
	}
	prefs := r.c.config.TargetPreference(n.name)
	explicit := a.Target != ""
	if !explicit {
		a.Target = base.Target
		if parent == nil && len(prefs) > 0 {
			a.Target = prefs[0]
		}
	}
	if targets := n.pkg.Targets; len(targets) > 0 && !slices.Contains(targets, a.Target) {
		if explicit {
			return &Error{
				Kind:        ErrUnsatisfiable,
				Node:        n.name,
				Field:       "target",
				Constraints: constraintsOn(n, "target"),
				Detail:      fmt.Sprintf("%s only builds for %s", n.name, strings.Join(targets, ", ")),
			}
		}
		a.Target = targets[0]
		for _, p := range prefs {
			if slices.Contains(targets, p) {
				a.Target = p
				break
			}
		}
	}
	n.arch = a
	return nil
}
