package concretize

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/goplus/spk/pkgs/spec"
)

// ConcretizeAll concretizes independent roots with at most jobs running at
// once. Results are in input order. The first failure cancels the rest.
func (c *Concretizer) ConcretizeAll(ctx context.Context, roots []*spec.Spec, jobs int) ([]*spec.DAG, error) {
	out := make([]*spec.DAG, len(roots))
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, root := range roots {
		g.Go(func() error {
			dag, err := c.Concretize(ctx, root)
			if err != nil {
				return fmt.Errorf("failed to concretize %s: %w", root, err)
			}
			out[i] = dag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Unify makes roots agree on shared packages where possible. Each root is
// concretized again with the packages already chosen for earlier roots
// pinned as dependencies. A root that cannot agree keeps its independent
// result.
func (c *Concretizer) Unify(ctx context.Context, roots []*spec.Spec, dags []*spec.DAG) ([]*spec.DAG, error) {
	chosen := make(map[string]spec.ConcreteSpec)
	providers := make(map[string]spec.ConcreteSpec)
	out := make([]*spec.DAG, len(dags))
	for i, dag := range dags {
		root := dag.Root().Name()
		pins := make(map[string]spec.ConcreteSpec)
		for _, n := range dag.Nodes() {
			if prev, ok := chosen[n.Name()]; ok && n.Name() != root && prev.Hash() != n.Hash() {
				pins[prev.Name()] = prev
			}
			for _, e := range n.Dependencies() {
				for _, v := range e.Virtuals {
					if prev, ok := providers[v]; ok && prev.Name() != e.Spec.Name() && prev.Name() != root {
						pins[prev.Name()] = prev
					}
				}
			}
		}
		if len(pins) > 0 {
			pinned := roots[i].Clone()
			for _, name := range slices.Sorted(maps.Keys(pins)) {
				pin := spec.New(pinned.Name)
				pin.AddDep(&spec.Dependency{Spec: pins[name].Node()})
				if m, err := spec.Merge(pinned, pin); err == nil {
					pinned = m
				}
			}
			unified, err := c.Concretize(ctx, pinned)
			switch {
			case err == nil:
				dag = unified
			case ctx.Err() != nil:
				return nil, ctx.Err()
			default:
				c.logger.Info("keeping independent result", "spec", roots[i].String(), "reason", err)
			}
		}
		out[i] = dag
		for _, n := range dag.Nodes() {
			if _, ok := chosen[n.Name()]; !ok {
				chosen[n.Name()] = n
			}
			for _, e := range n.Dependencies() {
				for _, v := range e.Virtuals {
					if _, ok := providers[v]; !ok {
						providers[v] = e.Spec
					}
				}
			}
		}
	}
	return out, nil
}
