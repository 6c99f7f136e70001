package internal

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goplus/spk/internal/concretize"
	"github.com/goplus/spk/internal/config"
	"github.com/goplus/spk/internal/install"
	"github.com/goplus/spk/internal/layout"
	"github.com/goplus/spk/internal/repo"
	"github.com/goplus/spk/internal/store"
	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/version"
)

// session holds what commands load from flags and configuration.
type session struct {
	cfg   *config.Config
	repos repo.Path
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if rootDir != "" {
		cfg.Settings.InstallTree.Root = rootDir
	}
	return cfg, nil
}

func loadSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg}
	for _, dir := range slices.Concat(repoDirs, cfg.Repos) {
		r, err := repo.OpenDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open repository %s: %w", dir, err)
		}
		s.repos = append(s.repos, r)
	}
	if len(s.repos) == 0 {
		dir, err := repo.DefaultDir()
		if err != nil {
			return nil, err
		}
		if s.repos, err = repo.NewStore(dir).Repos(); err != nil {
			return nil, err
		}
	}
	if len(s.repos) == 0 {
		return nil, errors.New("no package repositories: pass --repo or run spk repo add")
	}
	if len(cfg.Compilers()) == 0 {
		cfg.AddCompilers(detectCompilers(ctx)...)
	}
	return s, nil
}

func (s *session) concretizer(tests concretize.TestMode) *concretize.Concretizer {
	return concretize.New(s.repos, s.cfg, concretize.WithLogger(logger), concretize.WithTests(tests))
}

// concretize concretizes every spec in args, unifying shared packages
// across roots when unify is set.
func (s *session) concretize(ctx context.Context, args []string, tests concretize.TestMode, unify bool) ([]*spec.Spec, []*spec.DAG, error) {
	roots, err := spec.ParseAll(strings.Join(args, " "))
	if err != nil {
		return nil, nil, err
	}
	if len(roots) == 0 {
		return nil, nil, errors.New("no specs given")
	}
	c := s.concretizer(tests)
	dags, err := c.ConcretizeAll(ctx, roots, s.cfg.BuildJobs())
	if err != nil {
		return nil, nil, err
	}
	if unify && len(dags) > 1 {
		if dags, err = c.Unify(ctx, roots, dags); err != nil {
			return nil, nil, err
		}
	}
	return roots, dags, nil
}

// installTree is an opened install tree.
type installTree struct {
	layout *layout.Layout
	db     *store.DB
	locker *store.Locker
}

func openTree(cfg *config.Config) (*installTree, error) {
	it := cfg.InstallTree()
	l, err := layout.New(it.Root, it.Projection, it.HashLength)
	if err != nil {
		return nil, err
	}
	meta := filepath.Join(l.Root(), layout.MetadataDir)
	db, err := store.Open(store.Options{Path: filepath.Join(meta, "db"), Logger: logger})
	if err != nil {
		return nil, err
	}
	return &installTree{layout: l, db: db, locker: store.NewLocker(filepath.Join(meta, "locks"), logger)}, nil
}

func (t *installTree) installer(b install.Builder, jobs int) *install.Installer {
	return install.New(t.layout, t.db, t.locker, b, install.WithJobs(jobs), install.WithLogger(logger))
}

func (t *installTree) Close() error {
	return t.db.Close()
}

// detectCompilers finds compilers on PATH when none are configured.
func detectCompilers(ctx context.Context) []compiler.Compiler {
	var out []compiler.Compiler
	probes := []struct{ name, flag string }{
		{"gcc", "-dumpfullversion"},
		{"clang", "-dumpversion"},
	}
	for _, p := range probes {
		name := p.name
		path, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		raw, err := exec.CommandContext(ctx, path, p.flag).Output()
		if err != nil {
			logger.Debug("failed to probe compiler", "path", path, "err", err)
			continue
		}
		v, err := version.Parse(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}
		logger.Debug("detected compiler", "name", name, "version", v)
		out = append(out, compiler.Compiler{Name: name, Version: v})
	}
	return out
}
