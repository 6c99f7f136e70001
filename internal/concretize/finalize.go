package concretize

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/goplus/spk/pkgs/spec"
)

// reachable returns the nodes reachable from the root in creation order.
func (r *run) reachable() []*node {
	seen := make(map[*node]bool)
	var walk func(n *node)
	walk = func(n *node) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, e := range n.deps {
			walk(e.child)
		}
	}
	walk(r.root)
	out := make([]*node, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *node) int { return a.seq - b.seq })
	return out
}

func (r *run) finalize() (*spec.DAG, error) {
	nodes := r.reachable()

	present := make(map[string]bool)
	if r.rootVirtual != "" {
		present[r.rootVirtual] = true
	}
	for _, n := range nodes {
		present[n.name] = true
		for _, e := range n.deps {
			for v := range e.virtuals {
				present[v] = true
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(r.user)) {
		if present[name] {
			continue
		}
		return nil, &Error{
			Kind:        ErrUnsatisfiable,
			Node:        name,
			Field:       "dependency",
			Constraints: []Provenance{{Source: "user", Constraint: "^" + r.user[name].String()}},
			Detail:      fmt.Sprintf("%s does not depend on %s", r.root.label(), name),
		}
	}

	b := spec.NewBuilder()
	ids := make(map[*node]int, len(nodes))
	for _, n := range nodes {
		id, err := b.Add(spec.NodeData{
			Name:     n.name,
			Version:  n.version,
			Variants: n.variants,
			Compiler: n.compiler,
			Arch:     n.arch,
			Flags:    n.flags,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to finalize %s: %w", n.name, err)
		}
		ids[n] = id
	}
	for _, n := range nodes {
		for _, e := range n.sortedDeps() {
			if err := b.Link(ids[n], ids[e.child], e.types, e.virtualNames()...); err != nil {
				return nil, fmt.Errorf("failed to link %s to %s: %w", n.name, e.child.name, err)
			}
		}
	}
	dag, err := b.Build(ids[r.root])
	if err != nil {
		if errors.Is(err, spec.ErrCycle) {
			return nil, &Error{Kind: ErrCyclicDependency, Node: r.root.name, Detail: err.Error()}
		}
		return nil, err
	}

	for _, n := range nodes {
		want := n.cons.Node()
		want.Virtual = false
		for name, v := range want.Variants {
			if _, ok := n.variants[name]; !ok && v.Propagate {
				delete(want.Variants, name)
			}
		}
		cs, _ := dag.Lookup(n.name)
		if !cs.Node().Satisfies(want) {
			return nil, fmt.Errorf("internal error: %s does not satisfy %s", cs, want)
		}
	}
	r.c.logger.Debug("concretized", "spec", r.root.name, "nodes", dag.Len(), "steps", r.steps, "hash", dag.Hash())
	return dag, nil
}
