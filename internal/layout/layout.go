// Package layout maps concrete specs to install prefixes.
//
// An install prefix looks like:
//
//	root/
//	  <projection>/                   # e.g. linux-ubuntu22.04-x86_64/gcc-12.2.0/zlib-1.3-<hash>
//	    .spk/
//	      spec.yaml                   # DAG rooted at the installed spec
//	      install_manifest.json       # written once the build succeeded
//	    include/
//	    lib/
//	    ...
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/goplus/spk/pkgs/spec"
)

const (
	// MetadataDir holds spk's files inside an install prefix.
	MetadataDir  = ".spk"
	SpecFile     = "spec.yaml"
	ManifestFile = "install_manifest.json"
)

var (
	ErrNotInstalled        = errors.New("not installed")
	ErrInconsistentInstall = errors.New("inconsistent install")
	ErrAlreadyExists       = errors.New("install directory already exists")
)

var tokenRE = regexp.MustCompile(`\{([a-z_.]+)\}`)

var tokens = map[string]func(l *Layout, s spec.ConcreteSpec) string{
	"name":    func(_ *Layout, s spec.ConcreteSpec) string { return s.Name() },
	"version": func(_ *Layout, s spec.ConcreteSpec) string { return s.Version().String() },
	"hash":    func(l *Layout, s spec.ConcreteSpec) string { return s.ShortHash(l.hashLen) },
	"compiler.name": func(_ *Layout, s spec.ConcreteSpec) string {
		return s.Compiler().Name
	},
	"compiler.version": func(_ *Layout, s spec.ConcreteSpec) string {
		return s.Compiler().Version.String()
	},
	"architecture": func(_ *Layout, s spec.ConcreteSpec) string { return s.Arch().String() },
	"platform":     func(_ *Layout, s spec.ConcreteSpec) string { return s.Arch().Platform },
	"os":           func(_ *Layout, s spec.ConcreteSpec) string { return s.Arch().OS },
	"target":       func(_ *Layout, s spec.ConcreteSpec) string { return s.Arch().Target },
}

// Layout places installs under a root according to a projection template.
type Layout struct {
	root       string
	projection string
	hashLen    int
}

// New returns a layout. The projection is a slash separated template of
// {name}, {version}, {hash}, {compiler.name}, {compiler.version},
// {architecture}, {platform}, {os} and {target}; it must contain {hash} so
// distinct specs never share a prefix. hashLen truncates {hash}, zero keeps
// the full hash.
func New(root, projection string, hashLen int) (*Layout, error) {
	if root == "" {
		return nil, errors.New("install root is empty")
	}
	if hashLen < 0 {
		return nil, fmt.Errorf("invalid hash length %d", hashLen)
	}
	if hashLen > 0 && hashLen < 4 {
		return nil, fmt.Errorf("hash length %d is too short", hashLen)
	}
	if filepath.IsAbs(projection) {
		return nil, fmt.Errorf("projection %q must be relative", projection)
	}
	for _, elem := range strings.Split(projection, "/") {
		if elem == "" || elem == "." || elem == ".." {
			return nil, fmt.Errorf("projection %q has an empty or relative element", projection)
		}
	}
	hasHash := false
	for _, m := range tokenRE.FindAllStringSubmatch(projection, -1) {
		if _, ok := tokens[m[1]]; !ok {
			return nil, fmt.Errorf("projection %q: unknown token {%s}", projection, m[1])
		}
		hasHash = hasHash || m[1] == "hash"
	}
	if !hasHash {
		return nil, fmt.Errorf("projection %q must contain {hash}", projection)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Layout{root: abs, projection: projection, hashLen: hashLen}, nil
}

// Root returns the install root.
func (l *Layout) Root() string { return l.root }

// HashLength returns the hash length used in paths.
func (l *Layout) HashLength() int { return l.hashLen }

// RelativePath returns the prefix of s relative to the root.
func (l *Layout) RelativePath(s spec.ConcreteSpec) string {
	rel := tokenRE.ReplaceAllStringFunc(l.projection, func(tok string) string {
		v := tokens[tok[1:len(tok)-1]](l, s)
		return strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(v)
	})
	return filepath.FromSlash(rel)
}

// PathForSpec returns the install prefix of s.
func (l *Layout) PathForSpec(s spec.ConcreteSpec) string {
	return filepath.Join(l.root, l.RelativePath(s))
}

func metadataPath(prefix, name string) string {
	return filepath.Join(prefix, MetadataDir, name)
}

// CreateInstallDirectory creates the prefix of s and records its DAG in
// spec.yaml.
func (l *Layout) CreateInstallDirectory(s spec.ConcreteSpec) (string, error) {
	prefix := l.PathForSpec(s)
	if _, err := os.Stat(prefix); err == nil {
		return "", fmt.Errorf("%w: %s", ErrAlreadyExists, prefix)
	}
	data, err := s.Sub().EncodeYAML()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(prefix, MetadataDir), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(metadataPath(prefix, SpecFile), data, 0o644); err != nil {
		return "", err
	}
	return prefix, nil
}

// ReadSpec reads the DAG recorded in prefix. Hashes are recomputed, so an
// edited spec.yaml is reported as ErrInconsistentInstall.
func ReadSpec(prefix string) (*spec.DAG, error) {
	data, err := os.ReadFile(metadataPath(prefix, SpecFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no %s", ErrInconsistentInstall, prefix, SpecFile)
		}
		return nil, err
	}
	d, err := spec.DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInconsistentInstall, prefix, err)
	}
	return d, nil
}

// CheckInstalled returns the prefix of s if it exists. It returns "" when
// there is no prefix, and ErrInconsistentInstall when the prefix holds a
// different spec.
func (l *Layout) CheckInstalled(s spec.ConcreteSpec) (string, error) {
	prefix := l.PathForSpec(s)
	if _, err := os.Stat(prefix); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	d, err := ReadSpec(prefix)
	if err != nil {
		return "", err
	}
	if d.Hash() != s.Hash() {
		return "", fmt.Errorf("%w: %s holds %s, not %s", ErrInconsistentInstall, prefix, d.Root().Format(7), s.Format(7))
	}
	return prefix, nil
}

// AllSpecs returns the DAG of every prefix under the root, ordered by name
// and hash.
func (l *Layout) AllSpecs() ([]*spec.DAG, error) {
	var out []*spec.DAG
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == l.root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == MetadataDir {
			return fs.SkipDir
		}
		if _, err := os.Stat(metadataPath(path, SpecFile)); err != nil {
			return nil
		}
		dag, err := ReadSpec(path)
		if err != nil {
			return err
		}
		out = append(out, dag)
		return fs.SkipDir
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b *spec.DAG) int {
		if c := strings.Compare(a.Root().Name(), b.Root().Name()); c != 0 {
			return c
		}
		return strings.Compare(a.Hash(), b.Hash())
	})
	return out, nil
}

// RemoveInstallDirectory removes the prefix of s and any parent directories
// left empty below the root.
func (l *Layout) RemoveInstallDirectory(s spec.ConcreteSpec) error {
	prefix := l.PathForSpec(s)
	if _, err := os.Stat(prefix); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotInstalled, s.Format(7))
		}
		return err
	}
	if err := os.RemoveAll(prefix); err != nil {
		return err
	}
	for dir := filepath.Dir(prefix); dir != l.root && strings.HasPrefix(dir, l.root); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}
