// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/goplus/spk/internal/env"
)

// Store manages a directory of package repositories, one per namespace.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string { return s.dir }

// Create initializes an empty repository for namespace and opens it.
// It fails if the repository already exists.
func (s *Store) Create(namespace string) (*Repo, error) {
	dir, err := s.repoDirOf(namespace)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, packagesDir), 0700); err != nil {
		return nil, err
	}

	f := hclwrite.NewEmptyFile()
	body := f.Body().AppendNewBlock("repo", nil).Body()
	body.SetAttributeValue("namespace", cty.StringVal(namespace))
	body.SetAttributeValue("api", cty.StringVal(API))

	out, err := os.OpenFile(filepath.Join(dir, repoFileName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteTo(out); err != nil {
		out.Close()
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, err
	}
	return OpenDir(dir)
}

// Repos opens every repository in the store, ordered by namespace.
func (s *Store) Repos() (Path, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var p Path
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, err := OpenDir(filepath.Join(s.dir, e.Name()))
		if errors.Is(err, ErrNotRepo) {
			continue
		}
		if err != nil {
			return nil, err
		}
		p = append(p, r)
	}
	return p, nil
}

// Add clones the repository at remote into the store under its namespace.
func (s *Store) Add(ctx context.Context, vcs VCS, remote, branch string) (*Repo, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}
	tmp, err := os.MkdirTemp(s.dir, ".clone-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	dir := filepath.Join(tmp, "repo")
	if err := vcs.Clone(ctx, remote, branch, dir); err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", remote, err)
	}
	r, err := OpenDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", remote, err)
	}
	dest, err := s.repoDirOf(r.Namespace)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dest); err == nil {
		return nil, fmt.Errorf("repository %s already exists", r.Namespace)
	}
	if err := os.Rename(dir, dest); err != nil {
		return nil, err
	}
	return OpenDir(dest)
}

// Update pulls every repository of the store that is a version control
// checkout and returns their namespaces.
func (s *Store) Update(ctx context.Context, vcs VCS) ([]string, error) {
	repos, err := s.Repos()
	if err != nil {
		return nil, err
	}
	var updated []string
	for _, r := range repos {
		dir := filepath.Join(s.dir, r.Namespace)
		if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
			continue
		}
		if err := vcs.Pull(ctx, dir); err != nil {
			return updated, fmt.Errorf("failed to update %s: %w", r.Namespace, err)
		}
		updated = append(updated, r.Namespace)
	}
	return updated, nil
}

// repoDirOf returns the directory of the repository for namespace.
func (s *Store) repoDirOf(namespace string) (string, error) {
	if namespace == "" || strings.ContainsAny(namespace, `/\`) || namespace == "." || namespace == ".." {
		return "", fmt.Errorf("invalid repository namespace %q", namespace)
	}
	return filepath.Join(s.dir, namespace), nil
}

// DefaultDir returns the default root directory where package repositories
// are stored. It creates the directory with 0700 permissions if it doesn't
// exist. The directory is located at <UserCacheDir>/.spk/repos.
func DefaultDir() (string, error) {
	repoDir, err := env.ReposDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(repoDir, 0700); err != nil {
		return "", err
	}
	return repoDir, nil
}
