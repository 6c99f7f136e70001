package concretize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/goplus/spk/pkgs/arch"
	"github.com/goplus/spk/pkgs/catalog"
	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// State is the resolution progress of a node.
type State int

const (
	Unexpanded State = iota
	Expanded
	VersionResolved
	VariantResolved
	CompilerResolved
	ArchResolved
	Concrete
)

var stateNames = [...]string{"unexpanded", "expanded", "version-resolved", "variant-resolved", "compiler-resolved", "arch-resolved", "concrete"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// contribution is one source of constraints on a node.
type contribution struct {
	key  string // "user", "config" or "<parent>#<decl>"
	from string // provenance shown in errors
	spec *spec.Spec
}

type edge struct {
	parent, child *node
	types         spec.DepTypes
	// virtuals maps each virtual satisfied through this edge to the
	// interface versions requested.
	virtuals map[string]version.List
}

func (e *edge) virtualNames() []string {
	names := make([]string, 0, len(e.virtuals))
	for v := range e.virtuals {
		names = append(names, v)
	}
	slices.Sort(names)
	return names
}

type node struct {
	name     string
	seq      int
	pkg      *catalog.Package
	contribs []contribution
	cons     *spec.Spec
	state    State

	version      version.Version
	variants     variant.Map
	compiler     compiler.Compiler
	compilerCons *compiler.Spec
	flags        spec.Flags
	arch         arch.Arch

	deps    map[string]*edge
	parents map[string]*edge

	// refreshed during a pass: dependency names and contribution keys
	// emitted by this node.
	active map[string]bool
	keys   map[string]bool
}

func (n *node) label() string {
	if n.state >= VersionResolved {
		return n.name + "@" + n.version.String()
	}
	return n.name
}

// view returns the node's attributes as resolved so far, for evaluating
// conditions.
func (n *node) view() *spec.Spec {
	v := n.cons.Node()
	v.Name = ""
	if n.state >= VersionResolved {
		v.Versions = version.ExactList(n.version)
	}
	if n.state >= VariantResolved {
		v.Variants = n.variants.Clone()
	}
	if n.state >= CompilerResolved {
		c := n.compiler.Spec()
		v.Compiler = &c
		v.Flags = n.flags.Clone()
	}
	if n.state >= ArchResolved {
		v.Arch = n.arch
	}
	return v
}

// inherited summarizes the attributes dependencies inherit from n.
func (n *node) inherited() string {
	if n.state < ArchResolved {
		return ""
	}
	return fmt.Sprint(n.compiler, n.flags, n.arch)
}

func (n *node) reset() {
	n.state = Unexpanded
	n.version = version.Version{}
	n.variants = nil
	n.compiler = compiler.Compiler{}
	n.compilerCons = nil
	n.flags = nil
	n.arch = arch.Arch{}
	n.active = make(map[string]bool)
	n.keys = make(map[string]bool)
	for _, e := range n.deps {
		e.types = 0
		e.virtuals = nil
	}
}

// setContribution records c, replacing a contribution with the same key.
// It reports whether the node's constraints changed.
func (n *node) setContribution(c contribution) bool {
	for i := range n.contribs {
		if n.contribs[i].key == c.key {
			if n.contribs[i].spec.Equal(c.spec) {
				n.contribs[i].from = c.from
				return false
			}
			n.contribs[i] = c
			return true
		}
	}
	n.contribs = append(n.contribs, c)
	return true
}

// dropContributions removes contributions whose key starts with prefix and
// is not in keep.
func (n *node) dropContributions(prefix string, keep map[string]bool) bool {
	before := len(n.contribs)
	n.contribs = slices.DeleteFunc(n.contribs, func(c contribution) bool {
		return strings.HasPrefix(c.key, prefix) && !keep[c.key]
	})
	return len(n.contribs) != before
}

// sortedParents returns the parent edges in node creation order.
func (n *node) sortedParents() []*edge {
	out := make([]*edge, 0, len(n.parents))
	for _, e := range n.parents {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *edge) int { return a.parent.seq - b.parent.seq })
	return out
}

// sortedDeps returns the dependency edges sorted by child name.
func (n *node) sortedDeps() []*edge {
	out := make([]*edge, 0, len(n.deps))
	for _, e := range n.deps {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *edge) int { return strings.Compare(a.child.name, b.child.name) })
	return out
}
