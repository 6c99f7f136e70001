package internal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goplus/spk/internal/concretize"
	"github.com/goplus/spk/pkgs/spec"
)

const testRepo = "../../../internal/repo/testdata/builtin"

const testConfig = `
config:
  build_jobs: 2
packages:
  all:
    providers:
      mpi: [mpich, openmpi]
compilers:
  - spec: gcc@12.2.0
    runtime: "6.0.30"
`

// resetFlags restores every flag variable, since commands are package
// globals shared by all tests.
func resetFlags() {
	configFile, repoDirs, rootDir, verbose = "", nil, "", false
	specLong, specTypes, specTests, specYAML = false, false, "", false
	installFake, installJobs, installUnify, installTests = false, 0, false, ""
	findLong, findPaths, findExplicit, findDeps = false, false, false, false
	uninstallAll = false
	repoBranch = ""
}

type testTree struct {
	config string
	root   string
}

func newTestTree(t *testing.T) *testTree {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfg, []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	return &testTree{config: cfg, root: filepath.Join(dir, "opt")}
}

func (e *testTree) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--config", e.config, "--repo", testRepo, "--root", e.root}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func (e *testTree) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("spk %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestTypesColumn(t *testing.T) {
	tests := []struct {
		types spec.DepTypes
		want  string
	}{
		{0, "[    ]"},
		{spec.Build | spec.Link, "[bl  ]"},
		{spec.Run, "[  r ]"},
		{spec.Build | spec.Test, "[b  t]"},
	}
	for _, tt := range tests {
		if got := typesColumn(tt.types); got != tt.want {
			t.Errorf("typesColumn(%v) = %q, want %q", tt.types, got, tt.want)
		}
	}
}

func TestParseTestMode(t *testing.T) {
	tests := []struct {
		in   string
		want concretize.TestMode
	}{
		{"", concretize.TestsNone},
		{"root", concretize.TestsRoot},
		{"all", concretize.TestsAll},
	}
	for _, tt := range tests {
		got, err := parseTestMode(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseTestMode(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := parseTestMode("some"); err == nil {
		t.Error("parseTestMode(\"some\") succeeded")
	}
}

func TestSpecCommand(t *testing.T) {
	e := newTestTree(t)
	out := e.mustRun(t, "spec", "-l", "-t", "mpileaks", "^libelf@0.8.12")
	for _, want := range []string{"Input spec", "mpileaks ^libelf@0.8.12", "mpileaks@=2.3", "callpath@=1.0", "mpich@=3.0.4", "libelf@=0.8.12", "cmake@=3.27.7", "%gcc@=12.2.0", "[bl  ]", "[b   ]"} {
		if !strings.Contains(out, want) {
			t.Errorf("spec output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "check@") {
		t.Errorf("spec output has test dependency check:\n%s", out)
	}
	if strings.Count(out, "libelf@=") != 1 {
		t.Errorf("libelf shown more than once:\n%s", out)
	}

	out = e.mustRun(t, "spec", "--test", "root", "mpileaks")
	if !strings.Contains(out, "check@=0.15.2") {
		t.Errorf("spec --test root lacks check:\n%s", out)
	}

	out = e.mustRun(t, "spec", "--yaml", "libelf")
	d, err := spec.DecodeYAML([]byte(strings.TrimPrefix(out, "---\n")))
	if err != nil {
		t.Fatalf("spec --yaml output does not decode: %v\n%s", err, out)
	}
	if d.Root().Name() != "libelf" {
		t.Errorf("spec --yaml root = %s", d.Root().Name())
	}

	if _, err := e.run(t, "spec", "nosuchpkg"); err == nil {
		t.Error("spec of an unknown package succeeded")
	}
}

func TestInstallFindVerify(t *testing.T) {
	e := newTestTree(t)
	if _, err := e.run(t, "install", "libdwarf"); err == nil {
		t.Error("install without --fake succeeded")
	}

	out := e.mustRun(t, "install", "--fake", "libdwarf", "libelf@0.8.13")
	if got := strings.Count(out, "installed "); got != 3 {
		t.Errorf("install reported %d installs, want 3 (libdwarf, libelf, cmake):\n%s", got, out)
	}
	out = e.mustRun(t, "install", "--fake", "libdwarf")
	if strings.Contains(out, "installed ") || !strings.Contains(out, "skipped ") {
		t.Errorf("second install rebuilt something:\n%s", out)
	}

	out = e.mustRun(t, "find", "-l", "-p")
	for _, want := range []string{"cmake@=3.27.7", "libdwarf@=20130729", "libelf@=0.8.13", e.root, "==> 3 installed package(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("find output lacks %q:\n%s", want, out)
		}
	}
	out = e.mustRun(t, "find", "-x")
	if !strings.Contains(out, "==> 2 installed package(s)") {
		t.Errorf("find -x output:\n%s", out)
	}
	out = e.mustRun(t, "find", "-d", "libdwarf")
	if !strings.Contains(out, "libelf@=0.8.13") {
		t.Errorf("find -d lacks dependencies:\n%s", out)
	}

	out = e.mustRun(t, "verify")
	if strings.Count(out, "ok ") != 3 {
		t.Errorf("verify output:\n%s", out)
	}

	// Tamper with one installed file.
	var lib string
	filepath.WalkDir(e.root, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.Name() == "liblibelf.a" {
			lib = path
		}
		return nil
	})
	if lib == "" {
		t.Fatal("liblibelf.a not found")
	}
	if err := os.WriteFile(lib, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := e.run(t, "verify", "libelf")
	if err == nil || !strings.Contains(out, "FAILED") || !strings.Contains(out, "content changed") {
		t.Errorf("verify after tampering = %v:\n%s", err, out)
	}

	if _, err := e.run(t, "uninstall", "libelf"); err == nil {
		t.Error("uninstall of a needed dependency succeeded")
	}
	e.mustRun(t, "uninstall", "libdwarf")
	e.mustRun(t, "uninstall", "cmake")
	out = e.mustRun(t, "find")
	if !strings.Contains(out, "==> 1 installed package(s)") {
		t.Errorf("find after uninstall:\n%s", out)
	}
}

func TestProvidersVersions(t *testing.T) {
	e := newTestTree(t)
	out := e.mustRun(t, "providers")
	for _, want := range []string{"mpi:", "mpich", "provides mpi@:3", "when @3:", "openmpi"} {
		if !strings.Contains(out, want) {
			t.Errorf("providers output lacks %q:\n%s", want, out)
		}
	}
	if _, err := e.run(t, "providers", "libelf"); err == nil {
		t.Error("providers of a concrete package succeeded")
	}

	out = e.mustRun(t, "versions", "openmpi")
	if !strings.Contains(out, "4.1.5  preferred") || !strings.Contains(out, "5.0.0") {
		t.Errorf("versions output:\n%s", out)
	}
	out = e.mustRun(t, "versions", "mpileaks")
	if !strings.Contains(out, "1.0  deprecated") {
		t.Errorf("versions output:\n%s", out)
	}

	out = e.mustRun(t, "list")
	if !strings.Contains(out, "mpileaks  builtin") {
		t.Errorf("list output:\n%s", out)
	}
}

func TestConfigCommand(t *testing.T) {
	e := newTestTree(t)
	out := e.mustRun(t, "config")
	for _, want := range []string{"build_jobs: 2", "root: " + e.root, "spec: gcc@12.2.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("config output lacks %q:\n%s", want, out)
		}
	}
}
