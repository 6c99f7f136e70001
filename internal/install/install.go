// Package install installs concrete DAGs into a layout and records them in
// the install database.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/goplus/spk/internal/layout"
	"github.com/goplus/spk/internal/par"
	"github.com/goplus/spk/internal/store"
	"github.com/goplus/spk/pkgs/spec"
)

// Builder builds one spec into prefix. deps maps the names of the direct
// dependencies of s to their install prefixes, all of which are complete.
type Builder interface {
	Build(ctx context.Context, s spec.ConcreteSpec, prefix string, deps map[string]string) error
}

// Status tells what Install did with a spec.
type Status int

const (
	Installed Status = iota
	// Skipped means the spec was already installed.
	Skipped
)

func (s Status) String() string {
	if s == Skipped {
		return "skipped"
	}
	return "installed"
}

// Outcome reports one spec handled by Install.
type Outcome struct {
	Spec   spec.ConcreteSpec
	Prefix string
	Status Status
}

// Installer installs DAGs. It is safe for concurrent use.
type Installer struct {
	layout  *layout.Layout
	db      *store.DB
	locker  *store.Locker
	builder Builder
	jobs    int
	logger  *log.Logger
}

type Option func(*Installer)

// WithJobs sets the number of specs built at once.
func WithJobs(n int) Option {
	return func(in *Installer) { in.jobs = n }
}

func WithLogger(l *log.Logger) Option {
	return func(in *Installer) { in.logger = l }
}

// New returns an Installer.
func New(l *layout.Layout, db *store.DB, locker *store.Locker, b Builder, opts ...Option) *Installer {
	in := &Installer{layout: l, db: db, locker: locker, builder: b}
	for _, opt := range opts {
		opt(in)
	}
	if in.jobs < 1 {
		in.jobs = runtime.NumCPU()
	}
	if in.logger == nil {
		in.logger = log.New(io.Discard)
	}
	return in
}

// plan is the set of distinct specs of a batch of DAGs.
type plan struct {
	specs    map[string]spec.ConcreteSpec
	explicit map[string]bool
	parents  map[string][]string

	mu      sync.Mutex
	pending map[string]int // uninstalled dependencies per hash
}

func newPlan(dags []*spec.DAG) *plan {
	p := &plan{
		specs:    make(map[string]spec.ConcreteSpec),
		explicit: make(map[string]bool),
		parents:  make(map[string][]string),
		pending:  make(map[string]int),
	}
	for _, d := range dags {
		p.explicit[d.Hash()] = true
		for _, s := range d.Nodes() {
			h := s.Hash()
			if _, ok := p.specs[h]; ok {
				continue
			}
			p.specs[h] = s
			for _, e := range s.Dependencies() {
				p.parents[e.Spec.Hash()] = append(p.parents[e.Spec.Hash()], h)
				p.pending[h]++
			}
		}
	}
	return p
}

// done marks hash installed and returns the dependents that became ready.
func (p *plan) done(hash string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ready []string
	for _, parent := range p.parents[hash] {
		p.pending[parent]--
		if p.pending[parent] == 0 {
			ready = append(ready, parent)
		}
	}
	return ready
}

// Install installs every node of dags, dependencies before dependents. A
// spec shared by several DAGs is installed once. The first failure stops
// scheduling further builds; builds already running finish first.
func (in *Installer) Install(ctx context.Context, dags ...*spec.DAG) ([]Outcome, error) {
	p := newPlan(dags)
	var (
		mu       sync.Mutex
		outcomes []Outcome
	)
	var w par.Work[string]
	for h := range p.specs {
		if p.pending[h] == 0 {
			w.Add(h)
		}
	}
	err := w.Do(in.jobs, func(h string) error {
		o, err := in.installOne(ctx, p.specs[h], p.explicit[h])
		if err != nil {
			return err
		}
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
		for _, parent := range p.done(h) {
			w.Add(parent)
		}
		return nil
	})
	return outcomes, err
}

func (in *Installer) installOne(ctx context.Context, s spec.ConcreteSpec, explicit bool) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	unlock, err := in.locker.Lock(ctx, s.Hash())
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	prefix, err := in.layout.CheckInstalled(s)
	if err != nil && !errors.Is(err, layout.ErrInconsistentInstall) {
		return Outcome{}, err
	}
	if prefix != "" {
		if err := in.layout.Verify(s); err == nil {
			if !in.db.Has(s.Hash()) || explicit {
				if err := in.db.Register(s, prefix, explicit); err != nil {
					return Outcome{}, err
				}
			}
			in.logger.Debug("already installed", "spec", s.Name(), "hash", s.ShortHash(7))
			return Outcome{Spec: s, Prefix: prefix, Status: Skipped}, nil
		}
	}
	if prefix != "" || err != nil {
		in.logger.Warn("removing partial install", "spec", s.Name(), "prefix", in.layout.PathForSpec(s))
		if err := in.layout.RemoveInstallDirectory(s); err != nil {
			return Outcome{}, err
		}
	}

	prefix, err = in.layout.CreateInstallDirectory(s)
	if err != nil {
		return Outcome{}, err
	}
	deps := make(map[string]string)
	for _, e := range s.Dependencies() {
		deps[e.Spec.Name()] = in.layout.PathForSpec(e.Spec)
	}
	in.logger.Info("installing", "spec", s.Name(), "version", s.Version(), "hash", s.ShortHash(7))
	if err := in.builder.Build(ctx, s, prefix, deps); err != nil {
		if rerr := in.layout.RemoveInstallDirectory(s); rerr != nil {
			in.logger.Error("failed to clean up", "prefix", prefix, "err", rerr)
		}
		return Outcome{}, fmt.Errorf("failed to install %s: %w", s.Format(7), err)
	}
	if err := in.layout.WriteManifest(s); err != nil {
		return Outcome{}, err
	}
	if err := in.db.Register(s, prefix, explicit); err != nil {
		return Outcome{}, err
	}
	in.logger.Info("installed", "spec", s.Name(), "prefix", prefix)
	return Outcome{Spec: s, Prefix: prefix, Status: Installed}, nil
}

// Uninstall removes an installed spec from the database and the layout.
// It fails with store.ErrHasDependents while installed specs need it.
func (in *Installer) Uninstall(ctx context.Context, rec *store.Record) error {
	dag, err := rec.DAG()
	if err != nil {
		return err
	}
	unlock, err := in.locker.Lock(ctx, rec.Hash)
	if err != nil {
		return err
	}
	defer unlock()
	if err := in.db.Remove(rec.Hash); err != nil {
		return err
	}
	if err := in.layout.RemoveInstallDirectory(dag.Root()); err != nil && !errors.Is(err, layout.ErrNotInstalled) {
		return err
	}
	in.logger.Info("uninstalled", "spec", rec.Name, "hash", rec.Hash[:7])
	return nil
}
