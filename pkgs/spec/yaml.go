package spec

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/goplus/spk/pkgs/arch"
	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// ErrHashMismatch is returned when a decoded node does not hash to the value
// recorded next to it.
var ErrHashMismatch = errors.New("hash mismatch")

const yamlFormatVersion = 1

type yamlDoc struct {
	Spec yamlSpec `yaml:"spec"`
}

type yamlSpec struct {
	Meta  yamlMeta   `yaml:"_meta"`
	Nodes []yamlNode `yaml:"nodes"`
}

type yamlMeta struct {
	Version int `yaml:"version"`
}

type yamlNode struct {
	Name         string         `yaml:"name"`
	Version      string         `yaml:"version"`
	Arch         yamlArch       `yaml:"arch"`
	Compiler     yamlCompiler   `yaml:"compiler"`
	Parameters   map[string]any `yaml:"parameters,omitempty"`
	Flags        Flags          `yaml:"flags,omitempty"`
	Dependencies []yamlDep      `yaml:"dependencies,omitempty"`
	Hash         string         `yaml:"hash"`
}

type yamlArch struct {
	Platform string `yaml:"platform"`
	OS       string `yaml:"platform_os"`
	Target   string `yaml:"target"`
}

type yamlCompiler struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Runtime string `yaml:"runtime,omitempty"`
}

type yamlDep struct {
	Name     string   `yaml:"name"`
	Hash     string   `yaml:"hash"`
	Types    []string `yaml:"type"`
	Virtuals []string `yaml:"virtuals,omitempty"`
}

// EncodeYAML encodes the DAG with the root node first and the remaining
// nodes dependents first.
func (d *DAG) EncodeYAML() ([]byte, error) {
	doc := yamlDoc{Spec: yamlSpec{Meta: yamlMeta{Version: yamlFormatVersion}}}
	for i := len(d.order) - 1; i >= 0; i-- {
		n := &d.nodes[d.order[i]]
		yn := yamlNode{
			Name:     n.Name,
			Version:  n.Version.String(),
			Arch:     yamlArch{n.Arch.Platform, n.Arch.OS, n.Arch.Target},
			Compiler: yamlCompiler{n.Compiler.Name, n.Compiler.Version.String(), n.Compiler.Runtime},
			Flags:    n.Flags,
			Hash:     n.hash,
		}
		if len(n.Variants) > 0 {
			yn.Parameters = make(map[string]any, len(n.Variants))
			for name, v := range n.Variants {
				switch v.Kind {
				case variant.Bool:
					yn.Parameters[name] = v.Bool
				case variant.Single:
					yn.Parameters[name] = v.Items[0]
				default:
					yn.Parameters[name] = v.Items
				}
			}
		}
		for _, e := range n.deps {
			c := &d.nodes[e.child]
			yn.Dependencies = append(yn.Dependencies, yamlDep{Name: c.Name, Hash: c.hash, Types: e.types.Names(), Virtuals: e.virtuals})
		}
		doc.Spec.Nodes = append(doc.Spec.Nodes, yn)
	}
	return yaml.Marshal(doc)
}

// DecodeYAML decodes a DAG written by EncodeYAML. Hashes are recomputed
// and must match the recorded ones.
func DecodeYAML(data []byte) (*DAG, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode spec: %w", err)
	}
	if v := doc.Spec.Meta.Version; v != yamlFormatVersion {
		return nil, fmt.Errorf("unsupported spec format version %d", v)
	}
	nodes := doc.Spec.Nodes
	if len(nodes) == 0 {
		return nil, errors.New("spec has no nodes")
	}
	b := NewBuilder()
	byHash := make(map[string]int, len(nodes))
	for _, yn := range nodes {
		nd, err := yn.nodeData()
		if err != nil {
			return nil, err
		}
		id, err := b.Add(nd)
		if err != nil {
			return nil, err
		}
		byHash[yn.Hash] = id
	}
	for i, yn := range nodes {
		for _, dep := range yn.Dependencies {
			child, ok := byHash[dep.Hash]
			if !ok {
				return nil, fmt.Errorf("%s depends on unknown node %s/%s", yn.Name, dep.Name, dep.Hash)
			}
			types, err := ParseDepTypes(dep.Types...)
			if err != nil {
				return nil, err
			}
			if err := b.Link(i, child, types, dep.Virtuals...); err != nil {
				return nil, err
			}
		}
	}
	d, err := b.Build(0)
	if err != nil {
		return nil, err
	}
	for i, yn := range nodes {
		if got := d.nodes[i].hash; got != yn.Hash {
			return nil, fmt.Errorf("%w: %s recorded %s, computed %s", ErrHashMismatch, yn.Name, yn.Hash, got)
		}
	}
	return d, nil
}

func (yn *yamlNode) nodeData() (NodeData, error) {
	v, err := version.Parse(yn.Version)
	if err != nil {
		return NodeData{}, fmt.Errorf("%s: %w", yn.Name, err)
	}
	cv, err := version.Parse(yn.Compiler.Version)
	if err != nil {
		return NodeData{}, fmt.Errorf("%s: compiler: %w", yn.Name, err)
	}
	nd := NodeData{
		Name:     yn.Name,
		Version:  v,
		Compiler: compiler.Compiler{Name: yn.Compiler.Name, Version: cv, Runtime: yn.Compiler.Runtime},
		Arch:     arch.Arch{Platform: yn.Arch.Platform, OS: yn.Arch.OS, Target: yn.Arch.Target},
		Flags:    yn.Flags,
		Variants: make(variant.Map, len(yn.Parameters)),
	}
	for name, p := range yn.Parameters {
		switch p := p.(type) {
		case bool:
			nd.Variants[name] = variant.BoolValue(p)
		case string:
			nd.Variants[name] = variant.Value{Kind: variant.Single, Items: []string{p}}
		case []any:
			items := make([]string, len(p))
			for i, it := range p {
				items[i] = fmt.Sprint(it)
			}
			nd.Variants[name] = variant.MultiValue(items...)
		default:
			nd.Variants[name] = variant.Value{Kind: variant.Single, Items: []string{fmt.Sprint(p)}}
		}
	}
	return nd, nil
}
