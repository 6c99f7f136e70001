package spec

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/json"
	"strings"
)

// HashLength is the number of characters in a full spec hash.
const HashLength = 32

type hashKV struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

type hashDep struct {
	Name  string   `json:"name"`
	Hash  string   `json:"hash"`
	Types []string `json:"types"`
}

type hashNode struct {
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Variants []hashKV  `json:"variants"`
	Flags    []hashKV  `json:"flags"`
	Compiler string    `json:"compiler"`
	Platform string    `json:"platform"`
	OS       string    `json:"os"`
	Target   string    `json:"target"`
	Deps     []hashDep `json:"deps"`
}

// computeHash hashes node id from its own fields and the hashes of its
// direct dependencies, which must already be computed.
func (d *DAG) computeHash(id int) string {
	n := &d.nodes[id]
	h := hashNode{
		Name:     n.Name,
		Version:  n.Version.String(),
		Compiler: n.Compiler.String(),
		Platform: n.Arch.Platform,
		OS:       n.Arch.OS,
		Target:   n.Arch.Target,
		Variants: []hashKV{},
		Flags:    []hashKV{},
		Deps:     []hashDep{},
	}
	for _, name := range n.Variants.Names() {
		h.Variants = append(h.Variants, hashKV{name, n.Variants[name].String()})
	}
	for _, k := range n.Flags.keys() {
		h.Flags = append(h.Flags, hashKV{k, strings.Join(n.Flags[k], " ")})
	}
	for _, e := range n.deps {
		c := &d.nodes[e.child]
		h.Deps = append(h.Deps, hashDep{Name: c.Name, Hash: c.hash, Types: e.types.Names()})
	}
	data, err := json.Marshal(h)
	if err != nil {
		panic(err) // plain strings and slices always marshal
	}
	return encodeHash(data)
}

func encodeHash(data []byte) string {
	sum := sha256.Sum256(data)
	enc := base32.StdEncoding.EncodeToString(sum[:])
	return strings.ToLower(enc[:HashLength])
}
