// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package concretize turns abstract specs into concrete dependency DAGs.
//
// Concretization is a deterministic worklist over package nodes. Each node
// merges the constraints contributed by the user, by configuration and by
// its parents, then advances through expansion, version, variant, compiler
// and architecture resolution. A node whose constraints change after it was
// processed is processed again, so the result reaches a fixed point in
// which every node satisfies everything asked of it.
package concretize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/goplus/spk/pkgs/arch"
	"github.com/goplus/spk/pkgs/catalog"
	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// DefaultMaxSteps bounds the number of node passes in one concretization.
const DefaultMaxSteps = 100000

// TestMode selects which packages get their test dependencies.
type TestMode int

const (
	TestsNone TestMode = iota
	TestsRoot
	TestsAll
)

// Concretizer resolves abstract specs against a catalog and a
// configuration. It is immutable and safe for concurrent use.
type Concretizer struct {
	catalog  catalog.Catalog
	config   Config
	abi      *compiler.ABI
	host     arch.Arch
	tests    TestMode
	maxSteps int
	logger   *log.Logger
}

// Option configures a Concretizer.
type Option func(*Concretizer)

// WithLogger sets the logger for diagnostics and ABI warnings.
func WithLogger(l *log.Logger) Option {
	return func(c *Concretizer) { c.logger = l }
}

// WithHost overrides the detected host architecture.
func WithHost(a arch.Arch) Option {
	return func(c *Concretizer) { c.host = a }
}

// WithTests enables test dependencies.
func WithTests(m TestMode) Option {
	return func(c *Concretizer) { c.tests = m }
}

// WithABI replaces the compiler ABI rules.
func WithABI(abi *compiler.ABI) Option {
	return func(c *Concretizer) { c.abi = abi }
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(c *Concretizer) { c.maxSteps = n }
}

// New returns a Concretizer.
func New(cat catalog.Catalog, cfg Config, opts ...Option) *Concretizer {
	c := &Concretizer{
		catalog:  cat,
		config:   cfg,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.abi == nil {
		c.abi = compiler.NewABI()
	}
	if c.host.IsZero() {
		c.host = arch.Host()
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// Host returns the host architecture used for defaults.
func (c *Concretizer) Host() arch.Arch { return c.host }

// Concretize resolves an abstract spec into a concrete DAG. Dependencies
// constrained with ^ must appear somewhere in the result.
func (c *Concretizer) Concretize(ctx context.Context, abstract *spec.Spec) (*spec.DAG, error) {
	if abstract.Name == "" {
		return nil, &Error{Kind: ErrUnknownPackage, Detail: fmt.Sprintf("cannot concretize anonymous spec %q", abstract)}
	}
	r := &run{
		c:      c,
		ctx:    ctx,
		nodes:  make(map[string]*node),
		queued: make(map[*node]bool),
		user:   make(map[string]*spec.Spec),
	}
	if err := r.collectUser(abstract); err != nil {
		return nil, err
	}
	rootCons := abstract.Node()
	rootName := abstract.Name
	if c.catalog.IsVirtual(rootName) {
		p, err := r.chooseProvider(nil, rootName, abstract.Versions)
		if err != nil {
			return nil, err
		}
		r.rootVirtual, r.rootVirtualVersions = rootName, abstract.Versions
		rootCons.Name, rootCons.Versions, rootCons.Virtual = p, version.List{}, false
		rootName = p
	}
	pkg, err := r.pkg(rootName, nil)
	if err != nil {
		return nil, err
	}
	root := r.create(rootName, pkg)
	root.setContribution(contribution{key: "user", from: "user", spec: rootCons})
	r.root = root
	r.enqueue(root)

	if err := r.loop(); err != nil {
		return nil, err
	}
	return r.finalize()
}

// run holds the state of one concretization.
type run struct {
	c      *Concretizer
	ctx    context.Context
	nodes  map[string]*node
	queue  []*node
	queued map[*node]bool
	root   *node
	seq    int
	steps  int

	// user holds the ^ constraints of the request by name.
	user map[string]*spec.Spec

	rootVirtual         string
	rootVirtualVersions version.List
}

func (r *run) collectUser(s *spec.Spec) error {
	for _, name := range s.DepNames() {
		d := s.Deps[name].Spec
		n := d.Node()
		if prev, ok := r.user[name]; ok {
			m, err := spec.Merge(prev, n)
			if err != nil {
				return r.mergeError(name, []contribution{
					{from: "user", spec: prev},
					{from: "user", spec: n},
				}, err)
			}
			n = m
		}
		r.user[name] = n
		if err := r.collectUser(d); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) pkg(name string, parent *node) (*catalog.Package, error) {
	p, err := r.c.catalog.Get(name)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownPackage) {
			e := &Error{Kind: ErrUnknownPackage, Node: name, Detail: "no package definition"}
			if parent != nil {
				e.Detail = "required by " + parent.label()
			}
			return nil, e
		}
		return nil, err
	}
	return p, nil
}

// create adds a node with its user and configuration constraints.
func (r *run) create(name string, pkg *catalog.Package) *node {
	n := &node{
		name:    name,
		seq:     r.seq,
		pkg:     pkg,
		deps:    make(map[string]*edge),
		parents: make(map[string]*edge),
	}
	r.seq++
	if u, ok := r.user[name]; ok {
		n.setContribution(contribution{key: "user^", from: "user", spec: u})
	}
	if req := r.c.config.Requirement(name); req != nil {
		req = req.Node()
		req.Name = name
		n.setContribution(contribution{key: "config", from: "config", spec: req})
	}
	r.nodes[name] = n
	return n
}

func (r *run) enqueue(n *node) {
	if r.queued[n] {
		return
	}
	r.queued[n] = true
	r.queue = append(r.queue, n)
	r.c.logger.Debug("enqueue", "pkg", n.name, "state", n.state)
}

func (r *run) advance(n *node, st State) {
	n.state = st
	r.c.logger.Debug("transition", "pkg", n.name, "state", st)
}

func (r *run) loop() error {
	for len(r.queue) > 0 {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		n := r.queue[0]
		r.queue = r.queue[1:]
		delete(r.queued, n)
		if r.nodes[n.name] != n {
			continue // detached
		}
		r.steps++
		if r.steps > r.c.maxSteps {
			return fmt.Errorf("concretization of %s did not converge after %d steps", r.root.name, r.c.maxSteps)
		}
		if err := r.process(n); err != nil {
			return err
		}
	}
	return nil
}

// process runs one full pass over n.
func (r *run) process(n *node) error {
	before := n.inherited()
	n.reset()
	cons, err := r.merge(n)
	if err != nil {
		return err
	}
	n.cons = cons
	r.c.logger.Debug("processing", "pkg", n.name, "constraints", cons.String())

	deferred, err := r.expand(n)
	if err != nil {
		return err
	}
	r.advance(n, Expanded)
	if err = r.resolveVersion(n); err != nil {
		return err
	}
	r.advance(n, VersionResolved)
	if err = r.resolveVariants(n, false); err != nil {
		return err
	}
	r.advance(n, VariantResolved)
	if err = r.resolveCompiler(n); err != nil {
		return err
	}
	r.advance(n, CompilerResolved)
	if err = r.resolveArch(n); err != nil {
		return err
	}
	r.advance(n, ArchResolved)
	if err = r.resolveVariants(n, true); err != nil {
		return err
	}
	if err = r.checkConflicts(n); err != nil {
		return err
	}
	if err = r.expandDeferred(n, deferred); err != nil {
		return err
	}
	if err = r.checkProvides(n); err != nil {
		return err
	}
	r.advance(n, Concrete)
	r.prune(n)
	if n.inherited() != before {
		// Dependencies inherit compiler, flags and architecture.
		for _, e := range n.sortedDeps() {
			r.enqueue(e.child)
		}
	}
	return nil
}

// merge intersects every contribution on n.
func (r *run) merge(n *node) (*spec.Spec, error) {
	acc := spec.New(n.name)
	cs := make([]contribution, len(n.contribs))
	for i, c := range n.contribs {
		c.spec = multiValued(n.pkg, c.spec)
		cs[i] = c
		m, err := spec.Merge(acc, c.spec)
		if err != nil {
			return nil, r.mergeError(n.name, cs[:i+1], err)
		}
		acc = m
	}
	acc.Arch = acc.Arch.Resolve(r.c.host)
	return acc, nil
}

// multiValued returns s with single values of variants pkg declares
// multi-valued converted to multi values.
func multiValued(pkg *catalog.Package, s *spec.Spec) *spec.Spec {
	if pkg == nil {
		return s
	}
	var out *spec.Spec
	for _, name := range s.Variants.Names() {
		v := s.Variants[name]
		if v.Kind != variant.Single || !slices.ContainsFunc(pkg.VariantDecls(name), func(d *catalog.VariantDecl) bool {
			return d.Kind == variant.Multi
		}) {
			continue
		}
		if out == nil {
			out = s.Clone()
		}
		m := variant.MultiValue(v.Items...)
		m.Propagate = v.Propagate
		out.Variants[name] = m
	}
	if out == nil {
		return s
	}
	return out
}

// mergeError reports the failure of merging the last contribution in cs
// into the others, naming the earliest contribution it conflicts with.
func (r *run) mergeError(name string, cs []contribution, err error) error {
	last := cs[len(cs)-1]
	e := &Error{Kind: ErrUnsatisfiable, Node: name}
	var ce *spec.ConflictError
	if errors.As(err, &ce) {
		e.Field = ce.Field
	}
	var other *contribution
	for i := range cs[:len(cs)-1] {
		if _, err := spec.Merge(cs[i].spec, last.spec); err != nil {
			other = &cs[i]
			break
		}
	}
	if other != nil {
		e.Constraints = []Provenance{provenance(*other), provenance(last)}
	} else {
		for _, c := range cs {
			e.Constraints = append(e.Constraints, provenance(c))
		}
	}
	if ce != nil {
		e.Detail = fmt.Sprintf("%s vs %s", ce.Left, ce.Right)
	} else {
		e.Detail = err.Error()
	}
	return e
}

func provenance(c contribution) Provenance {
	s := c.spec.Node()
	return Provenance{Source: c.from, Constraint: s.String()}
}

// constraintsOn returns the provenance of contributions constraining field
// on n.
func constraintsOn(n *node, field string) []Provenance {
	var out []Provenance
	for _, c := range n.contribs {
		var set bool
		switch field {
		case "version":
			set = !c.spec.Versions.IsAny()
		case "compiler":
			set = c.spec.Compiler != nil
		case "target":
			set = c.spec.Arch.Target != ""
		default:
			_, set = c.spec.Variants[field]
		}
		if set {
			out = append(out, provenance(c))
		}
	}
	return out
}

// prune drops the edges and contributions n did not renew in its last pass.
func (r *run) prune(n *node) {
	prefix := n.name + "#"
	for _, e := range n.sortedDeps() {
		child := e.child
		if !n.active[child.name] {
			r.removeEdge(e)
			continue
		}
		if child.dropContributions(prefix, n.keys) {
			r.enqueue(child)
		}
	}
}

func (r *run) removeEdge(e *edge) {
	parent, child := e.parent, e.child
	delete(parent.deps, child.name)
	delete(child.parents, parent.name)
	child.dropContributions(parent.name+"#", nil)
	if len(child.parents) == 0 && child != r.root {
		r.detach(child)
		return
	}
	r.enqueue(child)
}

// detach removes an unreachable node and everything only it kept alive.
func (r *run) detach(n *node) {
	r.c.logger.Debug("dropping", "pkg", n.name)
	delete(r.nodes, n.name)
	for _, e := range n.sortedDeps() {
		r.removeEdge(e)
	}
}

// reaches reports whether to is reachable from from.
func (r *run) reaches(from, to *node) bool {
	seen := make(map[*node]bool)
	var walk func(n *node) bool
	walk = func(n *node) bool {
		if n == to {
			return true
		}
		if seen[n] {
			return false
		}
		seen[n] = true
		for _, e := range n.deps {
			if walk(e.child) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

// path returns the node names on a path from from to to.
func (r *run) path(from, to *node) []string {
	var out []string
	seen := make(map[*node]bool)
	var walk func(n *node) bool
	walk = func(n *node) bool {
		out = append(out, n.name)
		if n == to {
			return true
		}
		if !seen[n] {
			seen[n] = true
			for _, e := range n.sortedDeps() {
				if walk(e.child) {
					return true
				}
			}
		}
		out = out[:len(out)-1]
		return false
	}
	walk(from)
	return out
}

func cycleError(names []string) error {
	return &Error{Kind: ErrCyclicDependency, Node: names[0], Detail: strings.Join(names, " -> ")}
}

func sortedNodes(m map[string]*node) []*node {
	out := make([]*node, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *node) int { return a.seq - b.seq })
	return out
}
