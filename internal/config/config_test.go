package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goplus/spk/internal/concretize"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

const sample = `
config:
  install_tree:
    root: /opt/spk
    hash_length: 7
  build_jobs: 3
repos:
  - /srv/repos/site
packages:
  all:
    compiler: [gcc, clang]
    providers:
      mpi: [mpich, openmpi]
    target: [x86_64]
    variants: "~debug"
  mpileaks:
    version: ["2.2", "1.0:1.9"]
    variants: "+debug fabrics=verbs,ofi"
    compiler: [clang]
  mpi:
    providers:
      mpi: [openmpi]
  libelf:
    require: "@0.8.12: %gcc"
compilers:
  - spec: gcc@12.2.0
    runtime: "6.0.30"
    operating_system: ubuntu22.04
    target: x86_64
  - spec: clang@15.0.7
`

var _ concretize.Config = (*Config)(nil)

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	tree := c.InstallTree()
	assert.Equal(t, "/opt/spk", tree.Root)
	assert.Equal(t, DefaultProjection, tree.Projection)
	assert.Equal(t, 7, tree.HashLength)
	assert.Equal(t, 3, c.BuildJobs())
	assert.False(t, c.LooseABI())
	assert.Equal(t, []string{"/srv/repos/site"}, c.Repos)

	prefs := c.PreferredVersions("mpileaks")
	require.Len(t, prefs, 2)
	assert.True(t, prefs[0].Contains(version.MustParse("2.2.1")))
	assert.True(t, prefs[1].Contains(version.MustParse("1.5")))
	assert.Empty(t, c.PreferredVersions("libelf"))

	vars := c.VariantDefaults("mpileaks")
	assert.Equal(t, variant.BoolValue(true), vars["debug"])
	assert.Equal(t, variant.MultiValue("ofi", "verbs"), vars["fabrics"])
	assert.Equal(t, variant.BoolValue(false), c.VariantDefaults("callpath")["debug"])

	assert.Equal(t, []string{"clang"}, c.CompilerPreference("mpileaks"))
	assert.Equal(t, []string{"gcc", "clang"}, c.CompilerPreference("callpath"))
	assert.Equal(t, []string{"x86_64"}, c.TargetPreference("callpath"))
	assert.Equal(t, []string{"openmpi"}, c.ProviderPreference("mpi"))
	assert.Nil(t, c.ProviderPreference("blas"))

	req := c.Requirement("libelf")
	require.NotNil(t, req)
	assert.Equal(t, "@0.8.12: %gcc", req.String())
	assert.Nil(t, c.Requirement("mpileaks"))

	cs := c.Compilers()
	require.Len(t, cs, 2)
	assert.Equal(t, "gcc", cs[0].Name)
	assert.Equal(t, "12.2.0", cs[0].Version.String())
	assert.Equal(t, "6.0.30", cs[0].Runtime)
	assert.Equal(t, "ubuntu22.04", cs[0].OS)
	assert.Equal(t, "clang", cs[1].Name)
}

func TestDefault(t *testing.T) {
	c := Default()
	tree := c.InstallTree()
	assert.NotEmpty(t, tree.Root)
	assert.Equal(t, DefaultProjection, tree.Projection)
	assert.Zero(t, tree.HashLength)
	assert.Equal(t, runtime.NumCPU(), c.BuildJobs())
	assert.Empty(t, c.Compilers())
	assert.Nil(t, c.VariantDefaults("anything"))
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SPK_CONFIG_LOOSE_ABI", "true")
	t.Setenv("SPK_CONFIG_INSTALL_TREE_ROOT", "/tmp/spk-env")

	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.True(t, c.LooseABI())
	assert.Equal(t, "/tmp/spk-env", c.InstallTree().Root)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/spk", c.InstallTree().Root)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"version", "packages:\n  zlib:\n    version: [\"1.2:1.0\"]\n", "packages.zlib.version"},
		{"variants", "packages:\n  zlib:\n    variants: \"+shared ^cmake\"\n", "packages.zlib.variants"},
		{"variants name", "packages:\n  zlib:\n    variants: \"libelf +shared\"\n", "must only set variants"},
		{"require", "packages:\n  zlib:\n    require: \"cmake@3:\"\n", "must only constrain zlib"},
		{"compiler", "compilers:\n  - spec: gcc\n", "must be name@version"},
		{"hash length", "config:\n  install_tree:\n    hash_length: -1\n", "hash_length"},
		{"syntax", "packages: [\n", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestYAML(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	out, err := c.YAML()
	require.NoError(t, err)
	s := string(out)
	assert.True(t, strings.HasPrefix(s, "config:\n"))
	assert.Contains(t, s, "hash_length: 7")
	assert.Contains(t, s, "spec: gcc@12.2.0")

	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, c.CompilerPreference("mpileaks"), again.CompilerPreference("mpileaks"))
	assert.Equal(t, c.InstallTree(), again.InstallTree())
}
