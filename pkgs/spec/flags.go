package spec

import (
	"maps"
	"slices"
	"strings"
)

// FlagNames lists the compiler flag keys accepted in spec strings.
var FlagNames = []string{"cflags", "cxxflags", "fflags", "cppflags", "ldflags", "ldlibs"}

// IsFlag reports whether name is a compiler flag key.
func IsFlag(name string) bool { return slices.Contains(FlagNames, name) }

// Flags holds compiler flags by key. Order within a key is preserved.
type Flags map[string][]string

// Clone returns a deep copy of f.
func (f Flags) Clone() Flags {
	if f == nil {
		return nil
	}
	out := make(Flags, len(f))
	for k, v := range f {
		out[k] = slices.Clone(v)
	}
	return out
}

// Merge returns the ordered union of f and o.
func (f Flags) Merge(o Flags) Flags {
	out := f.Clone()
	for _, k := range o.keys() {
		if out == nil {
			out = make(Flags)
		}
		for _, flag := range o[k] {
			if !slices.Contains(out[k], flag) {
				out[k] = append(out[k], flag)
			}
		}
	}
	return out
}

// Satisfies reports whether every flag in o is also in f.
func (f Flags) Satisfies(o Flags) bool {
	for k, flags := range o {
		for _, flag := range flags {
			if !slices.Contains(f[k], flag) {
				return false
			}
		}
	}
	return true
}

func (f Flags) keys() []string {
	return slices.Sorted(maps.Keys(f))
}

func (f Flags) tokens() []string {
	var out []string
	for _, k := range f.keys() {
		if len(f[k]) == 0 {
			continue
		}
		out = append(out, k+"="+quoteValue(strings.Join(f[k], " ")))
	}
	return out
}
