package catalog

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Memory is a Catalog backed by a map.
type Memory struct {
	mu        sync.RWMutex
	pkgs      map[string]*Package
	providers map[string][]string
}

// NewMemory returns a catalog holding pkgs. It panics if a package is
// invalid; use Add to handle errors.
func NewMemory(pkgs ...*Package) *Memory {
	m := &Memory{
		pkgs:      make(map[string]*Package),
		providers: make(map[string][]string),
	}
	for _, p := range pkgs {
		if err := m.Add(p); err != nil {
			panic(err)
		}
	}
	return m
}

// Add validates p and adds it, replacing any package with the same name.
func (m *Memory) Add(p *Package) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.pkgs[p.Name]; ok {
		m.unindex(old)
	}
	m.pkgs[p.Name] = p
	for _, pr := range p.Provides {
		list := m.providers[pr.Virtual.Name]
		if !slices.Contains(list, p.Name) {
			list = append(list, p.Name)
			slices.Sort(list)
			m.providers[pr.Virtual.Name] = list
		}
	}
	return nil
}

func (m *Memory) unindex(p *Package) {
	for _, pr := range p.Provides {
		v := pr.Virtual.Name
		m.providers[v] = slices.DeleteFunc(m.providers[v], func(n string) bool { return n == p.Name })
		if len(m.providers[v]) == 0 {
			delete(m.providers, v)
		}
	}
}

func (m *Memory) Get(name string) (*Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pkgs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, name)
	}
	return p, nil
}

func (m *Memory) Providers(virtual string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.providers[virtual])
}

func (m *Memory) IsVirtual(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, isPkg := m.pkgs[name]
	return !isPkg && len(m.providers[name]) > 0
}

// Names returns the names of all packages, sorted.
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.pkgs))
}

// Virtuals returns the names of all provided virtuals, sorted.
func (m *Memory) Virtuals() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.providers))
}
