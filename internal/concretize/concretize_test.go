package concretize

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goplus/spk/pkgs/arch"
	"github.com/goplus/spk/pkgs/catalog"
	"github.com/goplus/spk/pkgs/catalog/catalogtest"
	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

var testHost = arch.Arch{Platform: "linux", OS: "ubuntu22.04", Target: "x86_64"}

type testConfig struct {
	versions  map[string][]version.Range
	variants  map[string]variant.Map
	providers map[string][]string
	families  []string
	targets   []string
	require   map[string]*spec.Spec
	compilers []compiler.Compiler
	loose     bool
}

func (c *testConfig) PreferredVersions(pkg string) []version.Range { return c.versions[pkg] }
func (c *testConfig) VariantDefaults(pkg string) variant.Map { return c.variants[pkg] }
func (c *testConfig) ProviderPreference(v string) []string { return c.providers[v] }
func (c *testConfig) CompilerPreference(string) []string { return c.families }
func (c *testConfig) TargetPreference(string) []string { return c.targets }
func (c *testConfig) Requirement(pkg string) *spec.Spec { return c.require[pkg] }
func (c *testConfig) Compilers() []compiler.Compiler { return c.compilers }
func (c *testConfig) LooseABI() bool { return c.loose }

func mustCompiler(s, runtime string) compiler.Compiler {
	name, ver, _ := strings.Cut(s, "@")
	return compiler.Compiler{Name: name, Version: version.MustParse(ver), Runtime: runtime}
}

func newConfig() *testConfig {
	return &testConfig{
		families: []string{"gcc", "clang"},
		compilers: []compiler.Compiler{
			mustCompiler("gcc@11.4.0", "6.0.30"),
			mustCompiler("gcc@12.2.0", "6.0.30"),
			mustCompiler("clang@9.0.1", ""),
			mustCompiler("clang@10.0.0", ""),
			mustCompiler("clang@12.0.1", ""),
		},
	}
}

func newConcretizer(cat catalog.Catalog, cfg *testConfig, opts ...Option) *Concretizer {
	opts = append([]Option{WithHost(testHost)}, opts...)
	return New(cat, cfg, opts...)
}

func concretize(t *testing.T, c *Concretizer, s string) (*spec.DAG, error) {
	t.Helper()
	return c.Concretize(context.Background(), spec.MustParse(s))
}

func mustConcretize(t *testing.T, c *Concretizer, s string) *spec.DAG {
	t.Helper()
	dag, err := concretize(t, c, s)
	require.NoError(t, err, s)
	return dag
}

func lookup(t *testing.T, dag *spec.DAG, name string) spec.ConcreteSpec {
	t.Helper()
	n, ok := dag.Lookup(name)
	require.True(t, ok, "%s not in %s", name, dag)
	return n
}

func concreteError(t *testing.T, err error, kind error) *Error {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var e *Error
	require.True(t, errors.As(err, &e), "%v is not a *Error", err)
	return e
}

func TestConditionalDependency(t *testing.T) {
	c := newConcretizer(catalogtest.Mock(), newConfig())

	dag := mustConcretize(t, c, "pkg-a foobar=baz")
	b := lookup(t, dag, "pkg-b")
	assert.Equal(t, variant.BoolValue(false), b.Variants()["bvv"])
	assert.Equal(t, "2.0", dag.Root().Version().String())

	dag = mustConcretize(t, c, "pkg-a")
	_, ok := dag.Lookup("pkg-b")
	assert.False(t, ok)
	assert.Equal(t, variant.StringValue("bar"), dag.Root().Variants()["foobar"])
}

func TestUserDependencyConstraint(t *testing.T) {
	c := newConcretizer(catalogtest.Mock(), newConfig())
	dag := mustConcretize(t, c, "mpileaks ^callpath@0.9")

	assert.Equal(t, "2.3", dag.Root().Version().String())
	assert.Equal(t, "0.9", lookup(t, dag, "callpath").Version().String())
	mpi, ok := dag.Root().Dependency("mpi")
	require.True(t, ok)
	assert.Equal(t, "mpich", mpi.Spec.Name())
	assert.Equal(t, []string{"mpi"}, mpi.Virtuals)

	cp, _ := dag.Root().Dependency("callpath")
	cmpi, ok := cp.Spec.Dependency("mpi")
	require.True(t, ok)
	assert.Equal(t, mpi.Spec.Hash(), cmpi.Spec.Hash())

	for _, n := range dag.Nodes() {
		assert.Equal(t, "gcc@12.2.0", n.Compiler().String(), n.Name())
		assert.Equal(t, testHost, n.Arch(), n.Name())
	}
	_, ok = dag.Lookup("check")
	assert.False(t, ok)
}

func TestSiblingConstraints(t *testing.T) {
	c := newConcretizer(catalogtest.Mock(), newConfig())

	dag := mustConcretize(t, c, "app-x")
	assert.Equal(t, "1.5", lookup(t, dag, "libx").Version().String())

	_, err := concretize(t, c, "app-y")
	e := concreteError(t, err, ErrUnsatisfiable)
	assert.Equal(t, "libx", e.Node)
	assert.Equal(t, "version", e.Field)
	require.Len(t, e.Constraints, 2)
	assert.Equal(t, Provenance{Source: "app-y", Constraint: "libx@2:"}, e.Constraints[0])
	assert.Equal(t, Provenance{Source: "liby", Constraint: "libx@:1.5"}, e.Constraints[1])
	assert.Contains(t, err.Error(), "libx version")
}

func TestProviders(t *testing.T) {
	cfg := newConfig()
	cfg.providers = map[string][]string{"mpi": {"openmpi", "mpich"}}
	c := newConcretizer(catalogtest.Mock(), cfg)

	dag := mustConcretize(t, c, "mpileaks")
	lookup(t, dag, "openmpi")
	_, ok := dag.Lookup("mpich")
	assert.False(t, ok)

	dag = mustConcretize(t, c, "mpileaks ^zmpi")
	lookup(t, dag, "zmpi")
	lookup(t, dag, "fake")

	dag = mustConcretize(t, c, "mpi-user")
	lookup(t, dag, "zmpi")

	dag = mustConcretize(t, c, "mpi")
	assert.Equal(t, "openmpi", dag.Root().Name())

	dag = mustConcretize(t, c, "mpi@:1 ^mpich@1.0")
	assert.Equal(t, "mpich", dag.Root().Name())
	assert.Equal(t, "1.0", dag.Root().Version().String())

	_, err := concretize(t, c, "mpi@2: ^mpich@1.0")
	e := concreteError(t, err, ErrUnsatisfiable)
	assert.Equal(t, "provides", e.Field)

	_, err = concretize(t, c, "mpi-user ^mpich")
	e = concreteError(t, err, ErrUnsatisfiable)
	assert.Equal(t, "mpich", e.Node)
	assert.Equal(t, "dependency", e.Field)

	cat := catalog.NewMemory(append(catalogtest.MockPackages(),
		catalogtest.New("future").Versions("1.0").DependsOn("mpi@11:", "").Package())...)
	_, err = concretize(t, newConcretizer(cat, cfg), "future")
	e = concreteError(t, err, ErrNoProvider)
	assert.Equal(t, "mpi", e.Node)
}

func TestABI(t *testing.T) {
	c := newConcretizer(catalogtest.Mock(), newConfig())
	_, err := concretize(t, c, "abi-a %clang@10 ^abi-b %clang@12")
	e := concreteError(t, err, ErrABIIncompatible)
	assert.Equal(t, "abi-b", e.Node)
	require.Len(t, e.Constraints, 2)
	assert.Equal(t, "%clang@10.0.0", e.Constraints[0].Constraint)
	assert.Equal(t, "%clang@12.0.1", e.Constraints[1].Constraint)

	// gcc objects link as long as the runtime matches.
	dag := mustConcretize(t, c, "abi-a %gcc@11 ^abi-b %gcc@12")
	assert.Equal(t, "gcc@12.2.0", lookup(t, dag, "abi-b").Compiler().String())

	var buf bytes.Buffer
	cfg := newConfig()
	cfg.loose = true
	c = newConcretizer(catalogtest.Mock(), cfg, WithLogger(log.New(&buf)))
	dag = mustConcretize(t, c, "abi-a %clang@10 ^abi-b %clang@12")
	assert.Equal(t, "clang@12.0.1", lookup(t, dag, "abi-b").Compiler().String())
	assert.Contains(t, buf.String(), "ABI mismatch")
}

func TestCompilerInheritance(t *testing.T) {
	c := newConcretizer(catalogtest.Mock(), newConfig())

	dag := mustConcretize(t, c, `callpath %gcc@11 cflags="-O3"`)
	for _, name := range []string{"callpath", "dyninst", "libelf", "libdwarf"} {
		n := lookup(t, dag, name)
		assert.Equal(t, "gcc@11.4.0", n.Compiler().String(), name)
		assert.Equal(t, []string{"-O3"}, n.Flags()["cflags"], name)
	}

	_, err := concretize(t, c, "libelf %icc")
	e := concreteError(t, err, ErrUnsatisfiable)
	assert.Equal(t, "compiler", e.Field)

	cfg := newConfig()
	cfg.compilers = nil
	_, err = concretize(t, newConcretizer(catalogtest.Mock(), cfg), "libelf")
	concreteError(t, err, ErrUnsatisfiable)
}

func TestVersionPreference(t *testing.T) {
	cfg := newConfig()
	cfg.versions = map[string][]version.Range{"libx": {version.Prefix(version.MustParse("1.2"))}}
	c := newConcretizer(catalogtest.Mock(), cfg)

	tests := []struct {
		spec, name, want string
	}{
		{"develop-pkg", "develop-pkg", "2.0"},
		{"develop-pkg@develop", "develop-pkg", "develop"},
		{"preferred-pkg", "preferred-pkg", "1.0"},
		{"preferred-pkg@2:", "preferred-pkg", "2.0"},
		{"deprecated-pkg", "deprecated-pkg", "1.0"},
		{"deprecated-pkg@2.0", "deprecated-pkg", "2.0"},
		{"libx", "libx", "1.2"},
		{"libx@1.4:", "libx", "2.0"},
		{"libx@git.feature", "libx", "git.feature"},
		{"libx@=1.3", "libx", "1.3"},
	}
	for _, tt := range tests {
		dag := mustConcretize(t, c, tt.spec)
		if got := lookup(t, dag, tt.name).Version().String(); got != tt.want {
			t.Errorf("Concretize(%q) %s = %q, want %q", tt.spec, tt.name, got, tt.want)
		}
	}

	_, err := concretize(t, c, "libx@3")
	e := concreteError(t, err, ErrUnsatisfiable)
	assert.Equal(t, "version", e.Field)
	assert.Equal(t, []Provenance{{Source: "user", Constraint: "libx@3"}}, e.Constraints)
}

func TestVariants(t *testing.T) {
	cfg := newConfig()
	cfg.variants = map[string]variant.Map{"mpileaks": {"shared": variant.BoolValue(false)}}
	c := newConcretizer(catalogtest.Mock(), cfg)

	dag := mustConcretize(t, c, "mpileaks")
	v := dag.Root().Variants()
	assert.Equal(t, variant.BoolValue(false), v["shared"])
	assert.Equal(t, variant.BoolValue(false), v["debug"])
	assert.Equal(t, variant.MultiValue("verbs"), v["fabrics"])

	dag = mustConcretize(t, c, "mpileaks@1.0 +shared")
	v = dag.Root().Variants()
	assert.Equal(t, variant.BoolValue(true), v["shared"])
	_, ok := v["fabrics"]
	assert.False(t, ok)

	dag = mustConcretize(t, c, "mpileaks fabrics=psm,ofi")
	assert.Equal(t, variant.MultiValue("ofi", "psm"), dag.Root().Variants()["fabrics"])

	dag = mustConcretize(t, c, "conditional-variant")
	assert.Equal(t, variant.BoolValue(true), dag.Root().Variants()["newfeature"])
	dag = mustConcretize(t, c, "conditional-variant@1.0")
	assert.Empty(t, dag.Root().Variants())

	dag = mustConcretize(t, c, "pkg-a foobar=baz bvv==true")
	assert.Equal(t, variant.BoolValue(true), lookup(t, dag, "pkg-b").Variants()["bvv"])

	for _, s := range []string{
		"pkg-a foobar=nope",
		"pkg-a +nosuch",
		"mpileaks@1.0 fabrics=psm",
		"conditional-variant@1.0 +newfeature",
		"mpileaks fabrics=tcp",
		"mpileaks +debug %clang@9",
	} {
		_, err := concretize(t, c, s)
		if !errors.Is(err, ErrInvalidVariant) {
			t.Errorf("Concretize(%q) = %v, want %v", s, err, ErrInvalidVariant)
		}
	}

	_, err := concretize(t, c, "mpileaks +debug %clang@9")
	e := concreteError(t, err, ErrInvalidVariant)
	assert.Equal(t, "conflict", e.Field)
	assert.Contains(t, e.Detail, "clang 10")
	mustConcretize(t, c, "mpileaks +debug %clang@10")

	_, err = concretize(t, c, "pkg-a foobar=baz ^pkg-b foobar=bar")
	concreteError(t, err, ErrInvalidVariant)
}

func TestMultiValuedFromParents(t *testing.T) {
	cat := catalog.NewMemory(append(catalogtest.MockPackages(),
		catalogtest.New("fab-root").Versions("1.0").DependsOn("fab-a", "").DependsOn("fab-b", "").Package(),
		catalogtest.New("fab-a").Versions("1.0").DependsOn("mpileaks fabrics=psm", "").Package(),
		catalogtest.New("fab-b").Versions("1.0").DependsOn("mpileaks fabrics=ofi", "").Package(),
		catalogtest.New("fab-c").Versions("1.0").DependsOn("mpileaks fabrics=tcp", "").Package(),
		catalogtest.New("fab-bad").Versions("1.0").DependsOn("fab-a", "").DependsOn("fab-c", "").Package(),
	)...)
	c := newConcretizer(cat, newConfig())

	dag := mustConcretize(t, c, "fab-root")
	assert.Equal(t, variant.MultiValue("ofi", "psm"), lookup(t, dag, "mpileaks").Variants()["fabrics"])

	dag = mustConcretize(t, c, "fab-root ^mpileaks fabrics=verbs")
	assert.Equal(t, variant.MultiValue("ofi", "psm", "verbs"), lookup(t, dag, "mpileaks").Variants()["fabrics"])

	// The union is still checked against the allowed values.
	_, err := concretize(t, c, "fab-bad")
	e := concreteError(t, err, ErrInvalidVariant)
	assert.Equal(t, "mpileaks", e.Node)
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	c := newConcretizer(catalogtest.Mock(), newConfig(), WithLogger(logger))
	mustConcretize(t, c, "app-x")
	out := buf.String()
	for _, want := range []string{"enqueue", "transition", "state=concrete", "pkg=libx"} {
		assert.Contains(t, out, want)
	}
}

func TestArch(t *testing.T) {
	cfg := newConfig()
	c := newConcretizer(catalogtest.Mock(), cfg)

	dag := mustConcretize(t, c, "needs-arm")
	assert.Equal(t, "x86_64", dag.Root().Arch().Target)
	assert.Equal(t, "aarch64", lookup(t, dag, "arm-only").Arch().Target)

	dag = mustConcretize(t, c, "libelf target=default os=centos7")
	assert.Equal(t, arch.Arch{Platform: "linux", OS: "centos7", Target: "x86_64"}, dag.Root().Arch())

	_, err := concretize(t, c, "x86-only target=aarch64")
	e := concreteError(t, err, ErrUnsatisfiable)
	assert.Equal(t, "target", e.Field)

	cfg.targets = []string{"neoverse_v1"}
	dag = mustConcretize(t, newConcretizer(catalogtest.Mock(), cfg), "needs-arm")
	assert.Equal(t, "neoverse_v1", dag.Root().Arch().Target)
	assert.Equal(t, "neoverse_v1", lookup(t, dag, "arm-only").Arch().Target)
}

func TestRequirements(t *testing.T) {
	cfg := newConfig()
	cfg.require = map[string]*spec.Spec{"libx": spec.MustParse("@:1.4")}
	c := newConcretizer(catalogtest.Mock(), cfg)

	dag := mustConcretize(t, c, "app-x")
	assert.Equal(t, "1.4", lookup(t, dag, "libx").Version().String())

	_, err := concretize(t, c, "libx@2")
	e := concreteError(t, err, ErrUnsatisfiable)
	assert.Contains(t, e.Constraints, Provenance{Source: "config", Constraint: "libx@:1.4"})
}

func TestTestDependencies(t *testing.T) {
	dag := mustConcretize(t, newConcretizer(catalogtest.Mock(), newConfig(), WithTests(TestsRoot)), "mpileaks")
	e, ok := dag.Root().Dependency("check")
	require.True(t, ok)
	assert.Equal(t, spec.Test, e.Types)
}

func TestStructuralErrors(t *testing.T) {
	c := newConcretizer(catalogtest.Mock(), newConfig())

	_, err := concretize(t, c, "cycle-a")
	e := concreteError(t, err, ErrCyclicDependency)
	assert.Contains(t, e.Detail, "cycle-a -> cycle-b")

	_, err = concretize(t, c, "nope")
	concreteError(t, err, ErrUnknownPackage)

	_, err = concretize(t, c, "broken")
	e = concreteError(t, err, ErrUnknownPackage)
	assert.Equal(t, "does-not-exist", e.Node)

	_, err = concretize(t, c, "libx ^liby")
	e = concreteError(t, err, ErrUnsatisfiable)
	assert.Equal(t, "dependency", e.Field)

	_, err = c.Concretize(context.Background(), spec.MustParse("@1.0"))
	concreteError(t, err, ErrUnknownPackage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Concretize(ctx, spec.MustParse("mpileaks"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdempotent(t *testing.T) {
	c := newConcretizer(catalogtest.Mock(), newConfig())
	for _, s := range []string{
		"mpileaks",
		"mpileaks ^callpath@0.9 ^zmpi",
		"app-x",
		"pkg-a foobar=baz",
		`callpath %gcc@11 cflags="-O3 -g"`,
		"needs-arm",
	} {
		dag := mustConcretize(t, c, s)
		again := mustConcretize(t, c, dag.Root().Abstract().String())
		if dag.Hash() != again.Hash() {
			t.Errorf("reconcretizing %q:\n%s\n!=\n%s", s, dag, again)
		}
		assert.True(t, dag.Root().Node().Satisfies(spec.MustParse(s).Node()), s)
	}
}

func TestDeterministic(t *testing.T) {
	c := newConcretizer(catalogtest.Mock(), newConfig())
	const runs = 8
	hashes := make([]string, runs)
	var wg sync.WaitGroup
	for i := range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dag, err := c.Concretize(context.Background(), spec.MustParse("mpileaks ^callpath@0.9"))
			if err == nil {
				hashes[i] = dag.Hash()
			}
		}()
	}
	wg.Wait()
	for i := 1; i < runs; i++ {
		assert.Equal(t, hashes[0], hashes[i])
	}
	assert.NotEmpty(t, hashes[0])
}
