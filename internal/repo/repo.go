// Package repo loads package definitions from HCL repositories.
//
// A repository is a directory holding repo.hcl and a packages/ directory
// of *.hcl files:
//
//	repo {
//	  namespace = "builtin"
//	  api       = "v1.0.0"
//	}
//
//	package "libelf" {
//	  version "0.8.13" {}
//	  variant "shared" { default = true }
//	  depends_on "zlib" { when = "+compress" }
//	}
package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/goplus/spk/pkgs/catalog"
)

// API is the newest repository format this version understands.
const API = "v1.0.0"

const (
	repoFileName = "repo.hcl"
	packagesDir  = "packages"
)

// ErrNotRepo is returned by Open for a filesystem without repo.hcl.
var ErrNotRepo = errors.New("not a package repository")

// Repo is an opened package repository. Package definitions are decoded on
// first use and cached. A Repo is safe for concurrent use.
type Repo struct {
	Namespace string
	API       string

	fsys      fs.FS
	files     map[string]string   // package name -> file
	providers map[string][]string // virtual -> packages, sorted

	mu   sync.Mutex
	pkgs map[string]*catalog.Package
}

// OpenDir opens the repository in dir.
func OpenDir(dir string) (*Repo, error) {
	r, err := Open(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return r, nil
}

// Open opens the repository rooted at fsys. It reads repo.hcl, checks the
// format version and indexes the package files.
func Open(fsys fs.FS) (*Repo, error) {
	src, err := fs.ReadFile(fsys, repoFileName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotRepo
		}
		return nil, err
	}
	var rf repoFile
	if err := decodeFile(src, repoFileName, &rf); err != nil {
		return nil, err
	}
	if rf.Repo == nil || rf.Repo.Namespace == "" {
		return nil, fmt.Errorf("%s: missing repo namespace", repoFileName)
	}
	api := rf.Repo.API
	if api == "" {
		api = API
	}
	if err := checkAPI(api); err != nil {
		return nil, fmt.Errorf("repo %s: %w", rf.Repo.Namespace, err)
	}
	r := &Repo{
		Namespace: rf.Repo.Namespace,
		API:       api,
		fsys:      fsys,
		files:     make(map[string]string),
		providers: make(map[string][]string),
		pkgs:      make(map[string]*catalog.Package),
	}
	if err := r.index(); err != nil {
		return nil, fmt.Errorf("repo %s: %w", r.Namespace, err)
	}
	return r, nil
}

func checkAPI(api string) error {
	if !semver.IsValid(api) {
		return fmt.Errorf("invalid api version %q", api)
	}
	if semver.Major(api) != semver.Major(API) || semver.Compare(api, API) > 0 {
		return fmt.Errorf("api %s is not supported, this build reads %s", api, API)
	}
	return nil
}

// index records which file defines each package and what it provides.
func (r *Repo) index() error {
	files, err := fs.Glob(r.fsys, path.Join(packagesDir, "*.hcl"))
	if err != nil {
		return err
	}
	for _, file := range files {
		src, err := fs.ReadFile(r.fsys, file)
		if err != nil {
			return err
		}
		var f indexFile
		if err := decodeFile(src, file, &f); err != nil {
			return err
		}
		for _, p := range f.Packages {
			if prev, ok := r.files[p.Name]; ok {
				return fmt.Errorf("package %s defined in both %s and %s", p.Name, prev, file)
			}
			r.files[p.Name] = file
			virtuals, err := p.virtuals()
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			for _, v := range virtuals {
				if !slices.Contains(r.providers[v], p.Name) {
					r.providers[v] = append(r.providers[v], p.Name)
				}
			}
		}
	}
	for _, ps := range r.providers {
		slices.Sort(ps)
	}
	return nil
}

// Get returns the definition of a package.
func (r *Repo) Get(name string) (*catalog.Package, error) {
	file, ok := r.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownPackage, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pkgs[name]; ok {
		return p, nil
	}
	src, err := fs.ReadFile(r.fsys, file)
	if err != nil {
		return nil, err
	}
	pkgs, err := ParsePackages(src, file)
	if err != nil {
		return nil, err
	}
	for _, p := range pkgs {
		r.pkgs[p.Name] = p
	}
	return r.pkgs[name], nil
}

// Has reports whether the repository defines a package.
func (r *Repo) Has(name string) bool {
	_, ok := r.files[name]
	return ok
}

// Names returns the packages of the repository, sorted.
func (r *Repo) Names() []string {
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Repo) Providers(virtual string) []string {
	return slices.Clone(r.providers[virtual])
}

func (r *Repo) IsVirtual(name string) bool {
	return len(r.providers[name]) > 0 && !r.Has(name)
}

// Path is an ordered list of repositories searched front to back. A package
// defined by an earlier repository hides later definitions.
type Path []*Repo

func (p Path) Get(name string) (*catalog.Package, error) {
	for _, r := range p {
		if r.Has(name) {
			return r.Get(name)
		}
	}
	return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownPackage, name)
}

// Providers returns the visible packages providing virtual.
func (p Path) Providers(virtual string) []string {
	var out []string
	for i, r := range p {
		for _, name := range r.providers[virtual] {
			if p.owner(name) == i && !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	slices.Sort(out)
	return out
}

func (p Path) IsVirtual(name string) bool {
	return p.owner(name) < 0 && len(p.Providers(name)) > 0
}

// Names returns the visible packages of every repository, sorted.
func (p Path) Names() []string {
	var out []string
	for _, r := range p {
		for _, name := range r.Names() {
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Virtuals returns every provided name that is not a package, sorted.
func (p Path) Virtuals() []string {
	var out []string
	for _, r := range p {
		for v := range r.providers {
			if !slices.Contains(out, v) && p.IsVirtual(v) {
				out = append(out, v)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Repo returns the repository defining a package.
func (p Path) Repo(name string) (*Repo, bool) {
	if i := p.owner(name); i >= 0 {
		return p[i], true
	}
	return nil, false
}

func (p Path) owner(name string) int {
	for i, r := range p {
		if r.Has(name) {
			return i
		}
	}
	return -1
}

var (
	_ catalog.Catalog = (*Repo)(nil)
	_ catalog.Catalog = Path(nil)
)
