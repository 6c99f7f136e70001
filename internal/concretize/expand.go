package concretize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// expand adds the dependencies whose conditions hold on the constraints of
// n and returns the indexes of those still undecided.
func (r *run) expand(n *node) ([]int, error) {
	view := n.view()
	var deferred []int
	for i, d := range n.pkg.Dependencies {
		switch d.When.Eval(view) {
		case spec.True:
			if err := r.addDependency(n, i); err != nil {
				return nil, err
			}
		case spec.Unknown:
			deferred = append(deferred, i)
		}
	}
	return deferred, nil
}

// expandDeferred settles the conditions left open by expand now that n is
// resolved. A condition still open reads an attribute n does not have and
// does not hold.
func (r *run) expandDeferred(n *node, deferred []int) error {
	view := n.view()
	for _, i := range deferred {
		if n.pkg.Dependencies[i].When.Eval(view) != spec.True {
			continue
		}
		if err := r.addDependency(n, i); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) wantTests(n *node) bool {
	switch r.c.tests {
	case TestsAll:
		return true
	case TestsRoot:
		return n == r.root
	}
	return false
}

// addDependency links n to the package satisfying its i-th dependency
// declaration and contributes the declared constraints to it.
func (r *run) addDependency(n *node, i int) error {
	decl := n.pkg.Dependencies[i]
	types := decl.Types
	if !r.wantTests(n) {
		types &^= spec.Test
	}
	if types == 0 {
		return nil
	}
	cons := decl.Spec.Node()
	name := cons.Name
	var virtual string
	var virtualVersions version.List
	if r.c.catalog.IsVirtual(name) {
		p, err := r.chooseProvider(n, name, cons.Versions)
		if err != nil {
			return err
		}
		virtual, virtualVersions = name, cons.Versions
		cons.Name, cons.Versions, cons.Virtual = p, version.List{}, false
		name = p
	}
	if name == n.name {
		return cycleError([]string{n.name, n.name})
	}

	child := r.nodes[name]
	if child == nil {
		pkg, err := r.pkg(name, n)
		if err != nil {
			return err
		}
		child = r.create(name, pkg)
	}
	if r.reaches(child, n) {
		return cycleError(append([]string{n.name}, r.path(child, n)...))
	}

	// Propagated variants flow to every dependency that declares them.
	for _, vname := range n.cons.Variants.Names() {
		v := n.cons.Variants[vname]
		if !v.Propagate || !child.pkg.HasVariant(vname) {
			continue
		}
		if _, set := cons.Variants[vname]; set {
			continue
		}
		if cons.Variants == nil {
			cons.Variants = make(variant.Map)
		}
		cons.Variants[vname] = v
	}

	e := n.deps[name]
	if e == nil {
		e = &edge{parent: n, child: child}
		n.deps[name] = e
		child.parents[n.name] = e
	}
	e.types |= types
	if virtual != "" {
		if e.virtuals == nil {
			e.virtuals = make(map[string]version.List)
		}
		if prev, ok := e.virtuals[virtual]; ok {
			l, ok := prev.Intersect(virtualVersions)
			if !ok {
				return &Error{
					Kind: ErrUnsatisfiable, Node: virtual, Field: "version",
					Constraints: []Provenance{
						{Source: n.label(), Constraint: virtual + "@" + prev.String()},
						{Source: n.label(), Constraint: virtual + "@" + virtualVersions.String()},
					},
				}
			}
			virtualVersions = l
		}
		e.virtuals[virtual] = virtualVersions
	}
	n.active[name] = true

	key := fmt.Sprintf("%s#%d", n.name, i)
	n.keys[key] = true
	from := n.label()
	if changed := child.setContribution(contribution{key: key, from: from, spec: cons}); changed || child.state == Unexpanded {
		r.enqueue(child)
	}
	return nil
}

// chooseProvider picks the package providing virtual at vers for n, which
// is nil for the root.
//
// Providers pinned with ^ in the request are binding. Otherwise a provider
// already in the graph wins, then configuration preference, then name.
func (r *run) chooseProvider(n *node, virtual string, vers version.List) (string, error) {
	if u, ok := r.user[virtual]; ok {
		l, ok := vers.Intersect(u.Versions)
		if !ok {
			return "", &Error{
				Kind: ErrUnsatisfiable, Node: virtual, Field: "version",
				Constraints: []Provenance{
					{Source: requester(n), Constraint: virtual + "@" + vers.String()},
					{Source: "user", Constraint: u.String()},
				},
			}
		}
		vers = l
	}
	var cands []string
	for _, p := range r.c.catalog.Providers(virtual) {
		pkg, err := r.c.catalog.Get(p)
		if err != nil {
			return "", err
		}
		if len(pkg.ProvidesFor(virtual, vers)) > 0 {
			cands = append(cands, p)
		}
	}
	if len(cands) == 0 {
		return "", &Error{
			Kind:   ErrNoProvider,
			Node:   virtual,
			Detail: fmt.Sprintf("no package provides %s@%s (required by %s)", virtual, vers, requester(n)),
		}
	}

	var pinned []string
	for _, p := range cands {
		if _, ok := r.user[p]; ok {
			pinned = append(pinned, p)
		}
	}
	if len(pinned) > 0 {
		cands = pinned
	}
	for _, p := range cands {
		if _, ok := r.nodes[p]; ok {
			return p, nil
		}
	}
	prefs := r.c.config.ProviderPreference(virtual)
	rank := func(p string) int {
		if i := slices.Index(prefs, p); i >= 0 {
			return i
		}
		return len(prefs)
	}
	slices.SortStableFunc(cands, func(a, b string) int {
		if d := rank(a) - rank(b); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	r.c.logger.Debug("provider", "virtual", virtual, "choice", cands[0], "candidates", cands)
	return cands[0], nil
}

func requester(n *node) string {
	if n == nil {
		return "user"
	}
	return n.label()
}

// checkProvides verifies that n provides every virtual it was chosen for
// now that the conditions on its provides declarations are decided.
func (r *run) checkProvides(n *node) error {
	view := n.view()
	check := func(source, virtual string, vers version.List) error {
		for _, p := range n.pkg.ProvidesFor(virtual, vers) {
			if p.When.Eval(view) == spec.True {
				return nil
			}
		}
		return &Error{
			Kind:  ErrUnsatisfiable,
			Node:  n.name,
			Field: "provides",
			Constraints: []Provenance{
				{Source: source, Constraint: virtual + "@" + vers.String()},
			},
			Detail: fmt.Sprintf("%s does not provide %s@%s", n.label(), virtual, vers),
		}
	}
	if n == r.root && r.rootVirtual != "" {
		if err := check("user", r.rootVirtual, r.rootVirtualVersions); err != nil {
			return err
		}
	}
	for _, e := range n.sortedParents() {
		for _, v := range e.virtualNames() {
			if err := check(e.parent.label(), v, e.virtuals[v]); err != nil {
				return err
			}
		}
	}
	return nil
}
