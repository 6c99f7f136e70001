package install

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goplus/spk/internal/layout"
	"github.com/goplus/spk/internal/store"
	"github.com/goplus/spk/pkgs/arch"
	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/version"
)

func node(name, ver string) spec.NodeData {
	return spec.NodeData{
		Name:     name,
		Version:  version.MustParse(ver),
		Compiler: compiler.Compiler{Name: "gcc", Version: version.MustParse("12.2.0")},
		Arch:     arch.Arch{Platform: "linux", OS: "ubuntu22.04", Target: "x86_64"},
	}
}

// testDAG builds root -> {libpng, zlib}, libpng -> zlib.
func testDAG(t *testing.T, root string) *spec.DAG {
	t.Helper()
	b := spec.NewBuilder()
	r, err := b.Add(node(root, "1.0"))
	require.NoError(t, err)
	png, err := b.Add(node("libpng", "1.6.40"))
	require.NoError(t, err)
	z, err := b.Add(node("zlib", "1.3"))
	require.NoError(t, err)
	require.NoError(t, b.Link(r, png, spec.Link))
	require.NoError(t, b.Link(r, z, spec.Link))
	require.NoError(t, b.Link(png, z, spec.Link))
	d, err := b.Build(r)
	require.NoError(t, err)
	return d
}

// recorder checks that dependencies are complete before their dependents
// are built.
type recorder struct {
	t    *testing.T
	fail string

	mu    sync.Mutex
	built []string
}

func (r *recorder) Build(ctx context.Context, s spec.ConcreteSpec, prefix string, deps map[string]string) error {
	for name, dep := range deps {
		_, err := os.Stat(filepath.Join(dep, layout.MetadataDir, layout.ManifestFile))
		assert.NoError(r.t, err, "%s built before its dependency %s", s.Name(), name)
	}
	if s.Name() == r.fail {
		return errors.New("build failed")
	}
	r.mu.Lock()
	r.built = append(r.built, s.Name())
	r.mu.Unlock()
	return FakeBuilder{}.Build(ctx, s, prefix, deps)
}

type fixture struct {
	layout *layout.Layout
	db     *store.DB
	rec    *recorder
	in     *Installer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l, err := layout.New(t.TempDir(), "{architecture}/{name}-{version}-{hash}", 0)
	require.NoError(t, err)
	db, err := store.Open(store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	rec := &recorder{t: t}
	in := New(l, db, store.NewLocker(t.TempDir(), nil), rec, WithJobs(4))
	return &fixture{layout: l, db: db, rec: rec, in: in}
}

func statuses(outcomes []Outcome) map[string]Status {
	m := make(map[string]Status)
	for _, o := range outcomes {
		m[o.Spec.Name()] = o.Status
	}
	return m
}

func TestInstall(t *testing.T) {
	f := newFixture(t)
	d := testDAG(t, "app")

	outcomes, err := f.in.Install(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, map[string]Status{"app": Installed, "libpng": Installed, "zlib": Installed}, statuses(outcomes))
	assert.Equal(t, []string{"zlib", "libpng", "app"}, f.rec.built)

	for _, s := range d.Nodes() {
		assert.NoError(t, f.layout.Verify(s))
		rec, err := f.db.Get(s.Hash())
		require.NoError(t, err)
		assert.Equal(t, f.layout.PathForSpec(s), rec.Prefix)
		assert.Equal(t, s.Name() == "app", rec.Explicit)
	}

	app := d.Root()
	deps, err := os.ReadFile(filepath.Join(f.layout.PathForSpec(app), "share", "app", "deps.txt"))
	require.NoError(t, err)
	png, _ := d.Lookup("libpng")
	zlib, _ := d.Lookup("zlib")
	assert.Equal(t, "libpng="+f.layout.PathForSpec(png)+"\nzlib="+f.layout.PathForSpec(zlib)+"\n", string(deps))
}

func TestInstallTwice(t *testing.T) {
	f := newFixture(t)
	d := testDAG(t, "app")

	_, err := f.in.Install(context.Background(), d)
	require.NoError(t, err)
	f.rec.built = nil

	outcomes, err := f.in.Install(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, f.rec.built)
	assert.Equal(t, map[string]Status{"app": Skipped, "libpng": Skipped, "zlib": Skipped}, statuses(outcomes))
}

func TestInstallShared(t *testing.T) {
	f := newFixture(t)
	a, b := testDAG(t, "app"), testDAG(t, "tool")

	outcomes, err := f.in.Install(context.Background(), a, b)
	require.NoError(t, err)
	assert.Len(t, outcomes, 4)
	assert.ElementsMatch(t, []string{"zlib", "libpng", "app", "tool"}, f.rec.built)

	recs, err := f.db.Query("")
	require.NoError(t, err)
	assert.Len(t, recs, 4)
	tool, err := f.db.Get(b.Hash())
	require.NoError(t, err)
	assert.True(t, tool.Explicit)
}

func TestInstallFailure(t *testing.T) {
	f := newFixture(t)
	f.rec.fail = "libpng"
	d := testDAG(t, "app")

	_, err := f.in.Install(context.Background(), d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to install libpng")
	assert.Equal(t, []string{"zlib"}, f.rec.built)

	png, _ := d.Lookup("libpng")
	_, statErr := os.Stat(f.layout.PathForSpec(png))
	assert.True(t, os.IsNotExist(statErr), "failed prefix left behind")
	assert.False(t, f.db.Has(png.Hash()))
	assert.False(t, f.db.Has(d.Hash()))

	f.rec.fail = ""
	f.rec.built = nil
	_, err = f.in.Install(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"libpng", "app"}, f.rec.built)
}

func TestInstallPartial(t *testing.T) {
	f := newFixture(t)
	d := testDAG(t, "app")
	zlib, _ := d.Lookup("zlib")

	// A prefix without a manifest is left over from an interrupted build.
	_, err := f.layout.CreateInstallDirectory(zlib)
	require.NoError(t, err)

	outcomes, err := f.in.Install(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, Installed, statuses(outcomes)["zlib"])
	assert.NoError(t, f.layout.Verify(zlib))
}

func TestInstallCanceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.in.Install(ctx, testDAG(t, "app"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.rec.built)
}

func TestUninstall(t *testing.T) {
	f := newFixture(t)
	d := testDAG(t, "app")
	_, err := f.in.Install(context.Background(), d)
	require.NoError(t, err)

	zlib, _ := d.Lookup("zlib")
	zrec, err := f.db.Get(zlib.Hash())
	require.NoError(t, err)
	assert.ErrorIs(t, f.in.Uninstall(context.Background(), zrec), store.ErrHasDependents)

	for _, name := range []string{"app", "libpng", "zlib"} {
		s, _ := d.Lookup(name)
		rec, err := f.db.Get(s.Hash())
		require.NoError(t, err)
		require.NoError(t, f.in.Uninstall(context.Background(), rec))
		_, statErr := os.Stat(f.layout.PathForSpec(s))
		assert.True(t, os.IsNotExist(statErr))
	}
	all, err := f.layout.AllSpecs()
	require.NoError(t, err)
	assert.Empty(t, all)
}
