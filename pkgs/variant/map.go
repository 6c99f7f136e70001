package variant

import (
	"maps"
	"slices"
	"strings"
)

// Map holds variant values by name.
type Map map[string]Value

// Names returns the variant names in sorted order.
func (m Map) Names() []string {
	return slices.Sorted(maps.Keys(m))
}

// Clone returns a copy of m.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		v.Items = slices.Clone(v.Items)
		out[k] = v
	}
	return out
}

// Merge returns the union of a and b, failing on conflicting values.
func (m Map) Merge(o Map) (Map, error) {
	out := m.Clone()
	for _, name := range o.Names() {
		ov := o[name]
		mv, ok := out[name]
		if !ok {
			if out == nil {
				out = make(Map)
			}
			ov.Items = slices.Clone(ov.Items)
			out[name] = ov
			continue
		}
		v, err := Merge(name, mv, ov)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// Satisfies reports whether every value in o is also held by m.
func (m Map) Satisfies(o Map) bool {
	for name, ov := range o {
		mv, ok := m[name]
		if !ok || !mv.Contains(ov) {
			return false
		}
	}
	return true
}

// Equal reports whether m and o hold equal values.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for name, mv := range m {
		ov, ok := o[name]
		if !ok || !mv.Equal(ov) || mv.Propagate != ov.Propagate {
			return false
		}
	}
	return true
}

// String renders m in spec syntax: boolean variants first, then key=value
// pairs, each group sorted by name.
func (m Map) String() string {
	var bools, kvs []string
	for _, name := range m.Names() {
		v := m[name]
		if v.Kind == Bool {
			bools = append(bools, v.Format(name))
		} else {
			kvs = append(kvs, v.Format(name))
		}
	}
	parts := kvs
	if len(bools) > 0 {
		parts = append([]string{strings.Join(bools, "")}, kvs...)
	}
	return strings.Join(parts, " ")
}
