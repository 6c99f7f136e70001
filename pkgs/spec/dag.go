package spec

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/goplus/spk/pkgs/arch"
	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

var (
	// ErrNotConcrete is returned when a node handed to a Builder leaves a
	// field unresolved.
	ErrNotConcrete = errors.New("spec is not concrete")
	// ErrCycle is returned when the edges handed to a Builder form a cycle.
	ErrCycle = errors.New("dependency cycle")
)

// NodeData is the resolved content of one concrete node.
type NodeData struct {
	Name     string
	Version  version.Version
	Variants variant.Map
	Compiler compiler.Compiler
	Arch     arch.Arch
	Flags    Flags
}

type edge struct {
	child    int
	types    DepTypes
	virtuals []string
}

type node struct {
	NodeData
	deps []edge
	hash string
}

// DAG is an immutable concrete dependency graph. Nodes live in an arena and
// refer to each other by index; there is at most one node per package name.
type DAG struct {
	nodes []node
	root  int
	order []int // dependencies before dependents
	index map[string]int
}

// ConcreteSpec is a read-only handle on one node of a DAG. Values are only
// obtained from a DAG, so every field is resolved.
type ConcreteSpec struct {
	dag *DAG
	id  int
}

// Edge is a dependency of a concrete node.
type Edge struct {
	Spec     ConcreteSpec
	Types    DepTypes
	Virtuals []string
}

// Builder assembles a DAG. The zero value is not usable; call NewBuilder.
type Builder struct {
	nodes []node
	index map[string]int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// Add adds a node and returns its id. Every field must be resolved.
func (b *Builder) Add(n NodeData) (int, error) {
	if err := checkConcrete(&n); err != nil {
		return -1, err
	}
	if _, dup := b.index[n.Name]; dup {
		return -1, fmt.Errorf("duplicate node %s", n.Name)
	}
	vars := make(variant.Map, len(n.Variants))
	for name, v := range n.Variants {
		v.Propagate = false
		v.Items = slices.Clone(v.Items)
		vars[name] = v
	}
	n.Variants = vars
	n.Flags = n.Flags.Clone()
	id := len(b.nodes)
	b.nodes = append(b.nodes, node{NodeData: n})
	b.index[n.Name] = id
	return id, nil
}

// Link records that parent depends on child.
func (b *Builder) Link(parent, child int, types DepTypes, virtuals ...string) error {
	if parent < 0 || parent >= len(b.nodes) || child < 0 || child >= len(b.nodes) {
		return fmt.Errorf("link %d -> %d: no such node", parent, child)
	}
	if parent == child {
		return fmt.Errorf("%w: %s depends on itself", ErrCycle, b.nodes[parent].Name)
	}
	if types == 0 {
		types = DefaultDepTypes
	}
	p := &b.nodes[parent]
	for i := range p.deps {
		if e := &p.deps[i]; e.child == child {
			e.types |= types
			for _, v := range virtuals {
				if !slices.Contains(e.virtuals, v) {
					e.virtuals = append(e.virtuals, v)
				}
			}
			slices.Sort(e.virtuals)
			return nil
		}
	}
	vs := slices.Clone(virtuals)
	slices.Sort(vs)
	p.deps = append(p.deps, edge{child: child, types: types, virtuals: vs})
	return nil
}

// Build finalizes the graph rooted at root. Every node must be reachable from
// root and the edges must be acyclic. Hashes are computed dependencies first.
func (b *Builder) Build(root int) (*DAG, error) {
	if root < 0 || root >= len(b.nodes) {
		return nil, fmt.Errorf("no root node %d", root)
	}
	d := &DAG{nodes: b.nodes, root: root, index: b.index}
	b.nodes, b.index = nil, nil

	for i := range d.nodes {
		n := &d.nodes[i]
		slices.SortFunc(n.deps, func(x, y edge) int {
			return strings.Compare(d.nodes[x.child].Name, d.nodes[y.child].Name)
		})
	}
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(d.nodes))
	var visit func(id int, path []string) error
	visit = func(id int, path []string) error {
		path = append(path, d.nodes[id].Name)
		switch state[id] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(path, " -> "))
		case done:
			return nil
		}
		state[id] = visiting
		for _, e := range d.nodes[id].deps {
			if err := visit(e.child, path); err != nil {
				return err
			}
		}
		state[id] = done
		d.order = append(d.order, id)
		return nil
	}
	if err := visit(root, nil); err != nil {
		return nil, err
	}
	if len(d.order) != len(d.nodes) {
		for id, st := range state {
			if st == unvisited {
				return nil, fmt.Errorf("node %s is not reachable from %s", d.nodes[id].Name, d.nodes[root].Name)
			}
		}
	}
	for _, id := range d.order {
		d.nodes[id].hash = d.computeHash(id)
	}
	return d, nil
}

func checkConcrete(n *NodeData) error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s has no %s", ErrNotConcrete, n.Name, field)
	}
	switch {
	case n.Name == "":
		return fmt.Errorf("%w: missing name", ErrNotConcrete)
	case n.Version.IsZero():
		return missing("version")
	case !n.Compiler.Concrete():
		return missing("compiler")
	case !n.Arch.Concrete():
		return missing("architecture")
	}
	return nil
}

// Root returns the root node.
func (d *DAG) Root() ConcreteSpec { return ConcreteSpec{dag: d, id: d.root} }

// Len returns the number of nodes.
func (d *DAG) Len() int { return len(d.nodes) }

// Nodes returns every node, dependencies before dependents. The root is last.
func (d *DAG) Nodes() []ConcreteSpec {
	out := make([]ConcreteSpec, len(d.order))
	for i, id := range d.order {
		out[i] = ConcreteSpec{dag: d, id: id}
	}
	return out
}

// Lookup returns the node for a package name.
func (d *DAG) Lookup(name string) (ConcreteSpec, bool) {
	id, ok := d.index[name]
	if !ok {
		return ConcreteSpec{}, false
	}
	return ConcreteSpec{dag: d, id: id}, true
}

// Hash returns the hash of the root node.
func (d *DAG) Hash() string { return d.nodes[d.root].hash }

func (d *DAG) String() string { return d.Root().Abstract().String() }

func (s ConcreteSpec) n() *node { return &s.dag.nodes[s.id] }

// IsZero reports whether s is the zero ConcreteSpec.
func (s ConcreteSpec) IsZero() bool { return s.dag == nil }

// DAG returns the graph s belongs to.
func (s ConcreteSpec) DAG() *DAG { return s.dag }

func (s ConcreteSpec) Name() string { return s.n().Name }
func (s ConcreteSpec) Version() version.Version { return s.n().Version }
func (s ConcreteSpec) Variants() variant.Map { return s.n().Variants.Clone() }
func (s ConcreteSpec) Compiler() compiler.Compiler { return s.n().Compiler }
func (s ConcreteSpec) Arch() arch.Arch { return s.n().Arch }
func (s ConcreteSpec) Flags() Flags { return s.n().Flags.Clone() }

// Hash returns the full content hash of s.
func (s ConcreteSpec) Hash() string { return s.n().hash }

// ShortHash returns the first n characters of the hash, or the full hash
// when n is not positive.
func (s ConcreteSpec) ShortHash(n int) string {
	h := s.n().hash
	if n <= 0 || n >= len(h) {
		return h
	}
	return h[:n]
}

// Dependencies returns the direct dependencies of s sorted by name.
func (s ConcreteSpec) Dependencies() []Edge {
	deps := s.n().deps
	out := make([]Edge, len(deps))
	for i, e := range deps {
		out[i] = Edge{Spec: ConcreteSpec{dag: s.dag, id: e.child}, Types: e.types, Virtuals: slices.Clone(e.virtuals)}
	}
	return out
}

// Dependency returns the direct dependency named name, which may also be a
// virtual provided by the dependency.
func (s ConcreteSpec) Dependency(name string) (Edge, bool) {
	for _, e := range s.Dependencies() {
		if e.Spec.Name() == name || slices.Contains(e.Virtuals, name) {
			return e, true
		}
	}
	return Edge{}, false
}

// Node returns the constraints fully describing s alone, with exact version
// and compiler.
func (s ConcreteSpec) Node() *Spec {
	n := s.n()
	c := n.Compiler.Spec()
	return &Spec{
		Name:     n.Name,
		Versions: version.ExactList(n.Version),
		Variants: n.Variants.Clone(),
		Compiler: &c,
		Arch:     n.Arch,
		Flags:    n.Flags.Clone(),
	}
}

// Abstract returns an abstract spec that pins s and every node below it.
// Concretizing the result reproduces s.
func (s ConcreteSpec) Abstract() *Spec {
	root := s.Node()
	seen := map[int]bool{s.id: true}
	var walk func(id int)
	walk = func(id int) {
		for _, e := range s.dag.nodes[id].deps {
			if seen[e.child] {
				continue
			}
			seen[e.child] = true
			root.AddDep(&Dependency{Spec: ConcreteSpec{dag: s.dag, id: e.child}.Node()})
			walk(e.child)
		}
	}
	walk(s.id)
	return root
}

// Satisfies reports whether s meets the constraints of o. Dependency
// constraints in o are checked against every node below s.
func (s ConcreteSpec) Satisfies(o *Spec) bool {
	node := o.Node()
	if !s.Node().Satisfies(node) {
		return false
	}
	for name, d := range o.Deps {
		found := false
		s.walk(func(c ConcreteSpec) {
			if c.id != s.id && c.Name() == name && c.Satisfies(d.Spec) {
				found = true
			}
		})
		if !found {
			return false
		}
	}
	return true
}

// Sub returns the DAG rooted at s. Node hashes are unchanged.
func (s ConcreteSpec) Sub() *DAG {
	if s.id == s.dag.root {
		return s.dag
	}
	b := NewBuilder()
	ids := make(map[int]int)
	var order []int
	s.walk(func(c ConcreteSpec) {
		id, err := b.Add(c.n().NodeData)
		if err != nil {
			panic(err)
		}
		ids[c.id] = id
		order = append(order, c.id)
	})
	for _, old := range order {
		for _, e := range s.dag.nodes[old].deps {
			if err := b.Link(ids[old], ids[e.child], e.types, e.virtuals...); err != nil {
				panic(err)
			}
		}
	}
	d, err := b.Build(ids[s.id])
	if err != nil {
		panic(err)
	}
	return d
}

func (s ConcreteSpec) walk(f func(ConcreteSpec)) {
	seen := make(map[int]bool)
	var visit func(id int)
	visit = func(id int) {
		if seen[id] {
			return
		}
		seen[id] = true
		f(ConcreteSpec{dag: s.dag, id: id})
		for _, e := range s.dag.nodes[id].deps {
			visit(e.child)
		}
	}
	visit(s.id)
}

// Format renders s alone followed by a short hash, e.g.
// "zlib@=1.3 +shared %gcc@=12.2.0 arch=linux-ubuntu22.04-x86_64 /abcdefg".
func (s ConcreteSpec) Format(hashLen int) string {
	return s.Node().String() + " /" + s.ShortHash(hashLen)
}

func (s ConcreteSpec) String() string { return s.Node().String() }
