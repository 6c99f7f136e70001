// Package config loads spk configuration from YAML through viper.
//
// Configuration is read from --config, else <UserConfigDir>/spk/config.yaml
// when present, else defaults only. Settings under config: can be overridden
// with SPK_ environment variables, e.g. SPK_CONFIG_INSTALL_TREE_ROOT.
//
// Viper folds keys to lower case, so package names in packages: are matched
// in lower case.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/goplus/spk/internal/env"
	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// DefaultProjection lays out installs by architecture and compiler.
const DefaultProjection = "{architecture}/{compiler.name}-{compiler.version}/{name}-{version}-{hash}"

// All is the packages: entry applying to every package.
const All = "all"

// InstallTree configures where packages are installed.
type InstallTree struct {
	Root       string `mapstructure:"root" yaml:"root"`
	Projection string `mapstructure:"projection" yaml:"projection"`
	// HashLength truncates hashes in install paths. Zero keeps the full hash.
	HashLength int `mapstructure:"hash_length" yaml:"hash_length"`
}

// Settings is the config: section.
type Settings struct {
	InstallTree InstallTree `mapstructure:"install_tree" yaml:"install_tree"`
	LooseABI    bool        `mapstructure:"loose_abi" yaml:"loose_abi"`
	BuildJobs   int         `mapstructure:"build_jobs" yaml:"build_jobs"`
}

// PackagePrefs holds the preferences for one package, or for all of them.
type PackagePrefs struct {
	Version   []string            `mapstructure:"version" yaml:"version,omitempty"`
	Variants  string              `mapstructure:"variants" yaml:"variants,omitempty"`
	Compiler  []string            `mapstructure:"compiler" yaml:"compiler,omitempty"`
	Providers map[string][]string `mapstructure:"providers" yaml:"providers,omitempty"`
	Target    []string            `mapstructure:"target" yaml:"target,omitempty"`
	Require   string              `mapstructure:"require" yaml:"require,omitempty"`
}

// CompilerEntry describes a detected compiler.
type CompilerEntry struct {
	Spec            string `mapstructure:"spec" yaml:"spec"`
	Runtime         string `mapstructure:"runtime" yaml:"runtime,omitempty"`
	OperatingSystem string `mapstructure:"operating_system" yaml:"operating_system,omitempty"`
	Target          string `mapstructure:"target" yaml:"target,omitempty"`
}

// Config is a loaded configuration. It is read-only after loading and
// safe for concurrent use.
type Config struct {
	Settings        Settings                `mapstructure:"config" yaml:"config"`
	Repos           []string                `mapstructure:"repos" yaml:"repos,omitempty"`
	Packages        map[string]PackagePrefs `mapstructure:"packages" yaml:"packages,omitempty"`
	CompilerEntries []CompilerEntry         `mapstructure:"compilers" yaml:"compilers,omitempty"`

	versions  map[string][]version.Range
	variants  map[string]variant.Map
	require   map[string]*spec.Spec
	compilers []compiler.Compiler
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SPK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	root, err := env.InstallRoot()
	if err != nil {
		root = "opt"
	}
	v.SetDefault("config.install_tree.root", root)
	v.SetDefault("config.install_tree.projection", DefaultProjection)
	v.SetDefault("config.install_tree.hash_length", 0)
	v.SetDefault("config.loose_abi", false)
	v.SetDefault("config.build_jobs", runtime.NumCPU())
	return v
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads the configuration file at path. An empty path selects the
// default file if it exists.
func Load(path string) (*Config, error) {
	v := newViper()
	if path == "" {
		if def, err := env.ConfigFile(); err == nil {
			if _, err := os.Stat(def); err == nil {
				path = def
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	c, err := decode(v)
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, err
	}
	return c, nil
}

// Parse reads a configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.compile(); err != nil {
		return nil, err
	}
	return &c, nil
}

// compile parses the string-valued preferences.
func (c *Config) compile() error {
	c.Settings.InstallTree.Root = expandHome(c.Settings.InstallTree.Root)
	if c.Settings.InstallTree.HashLength < 0 {
		return errors.New("config.install_tree.hash_length must not be negative")
	}
	if c.Settings.BuildJobs <= 0 {
		c.Settings.BuildJobs = 1
	}
	for i, r := range c.Repos {
		c.Repos[i] = expandHome(r)
	}

	c.versions = make(map[string][]version.Range)
	c.variants = make(map[string]variant.Map)
	c.require = make(map[string]*spec.Spec)
	for name, p := range c.Packages {
		for _, s := range p.Version {
			r, err := version.ParseRange(s)
			if err != nil {
				return fmt.Errorf("packages.%s.version: %w", name, err)
			}
			c.versions[name] = append(c.versions[name], r)
		}
		if p.Variants != "" {
			s, err := spec.Parse(p.Variants)
			if err != nil {
				return fmt.Errorf("packages.%s.variants: %w", name, err)
			}
			if !s.IsAnonymous() || len(s.Deps) > 0 {
				return fmt.Errorf("packages.%s.variants: %q must only set variants", name, p.Variants)
			}
			c.variants[name] = s.Variants
		}
		if p.Require != "" {
			s, err := spec.Parse(p.Require)
			if err != nil {
				return fmt.Errorf("packages.%s.require: %w", name, err)
			}
			if (s.Name != "" && s.Name != name) || len(s.Deps) > 0 {
				return fmt.Errorf("packages.%s.require: %q must only constrain %s", name, p.Require, name)
			}
			c.require[name] = s
		}
	}

	for _, e := range c.CompilerEntries {
		name, ver, ok := strings.Cut(e.Spec, "@")
		if !ok || name == "" {
			return fmt.Errorf("compilers: %q must be name@version", e.Spec)
		}
		v, err := version.Parse(ver)
		if err != nil {
			return fmt.Errorf("compilers: %q: %w", e.Spec, err)
		}
		c.compilers = append(c.compilers, compiler.Compiler{
			Name:    name,
			Version: v,
			Runtime: e.Runtime,
			OS:      e.OperatingSystem,
			Target:  e.Target,
		})
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AddCompilers appends detected compilers.
func (c *Config) AddCompilers(cs ...compiler.Compiler) {
	c.compilers = append(c.compilers, cs...)
}
