package version

import (
	"slices"
	"strings"
)

// List is a normalized union of ranges. The zero value places no
// constraint and contains every version. An empty intersection is reported
// by Intersect and never stored in a List.
type List struct {
	ranges []Range
}

// NewList returns the normalized union of rs. Unbounded ranges collapse the
// list to the unconstrained List.
func NewList(rs ...Range) List {
	out := make([]Range, 0, len(rs))
	for _, r := range rs {
		if r.IsAny() {
			return List{}
		}
		out = append(out, r)
	}
	return List{ranges: normalize(out)}
}

// ExactList returns the list holding exactly v.
func ExactList(v Version) List { return List{ranges: []Range{Exact(v)}} }

// ParseList parses a comma separated list of ranges, e.g. "1.0:1.4,2.0".
func ParseList(s string) (List, error) {
	var rs []Range
	for _, part := range strings.Split(s, ",") {
		r, err := ParseRange(strings.TrimSpace(part))
		if err != nil {
			return List{}, err
		}
		rs = append(rs, r)
	}
	return NewList(rs...), nil
}

// MustParseList is like ParseList but panics on error.
func MustParseList(s string) List {
	l, err := ParseList(s)
	if err != nil {
		panic(err)
	}
	return l
}

// IsAny reports whether l places no constraint.
func (l List) IsAny() bool { return len(l.ranges) == 0 }

// Ranges returns a copy of the ranges of l, sorted.
func (l List) Ranges() []Range { return slices.Clone(l.ranges) }

// Contains reports whether v satisfies l.
func (l List) Contains(v Version) bool {
	if l.IsAny() {
		return true
	}
	for _, r := range l.ranges {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

// Intersect returns the versions in both l and o. The boolean is false when
// no version satisfies both.
func (l List) Intersect(o List) (List, bool) {
	switch {
	case l.IsAny():
		return o, true
	case o.IsAny():
		return l, true
	}
	var out []Range
	for _, a := range l.ranges {
		for _, b := range o.ranges {
			if r, ok := Intersect(a, b); ok {
				out = append(out, r)
			}
		}
	}
	if len(out) == 0 {
		return List{}, false
	}
	return List{ranges: normalize(out)}, true
}

// Intersects reports whether some version satisfies both l and o.
func (l List) Intersects(o List) bool {
	_, ok := l.Intersect(o)
	return ok
}

// Union returns the versions in l or o.
func (l List) Union(o List) List {
	if l.IsAny() || o.IsAny() {
		return List{}
	}
	return List{ranges: normalize(append(slices.Clone(l.ranges), o.ranges...))}
}

// Satisfies reports whether every version in l is also in o.
func (l List) Satisfies(o List) bool {
	if o.IsAny() {
		return true
	}
	if l.IsAny() {
		return false
	}
	for _, a := range l.ranges {
		if !slices.ContainsFunc(o.ranges, func(b Range) bool { return Subset(a, b) }) {
			return false
		}
	}
	return true
}

// Single returns the version of a list made of one v:v or =v range.
func (l List) Single() (Version, bool) {
	if len(l.ranges) != 1 {
		return Version{}, false
	}
	return l.ranges[0].Single()
}

// Exact returns the version of a list that admits one version only: an
// exact range or a VCS reference.
func (l List) Exact() (Version, bool) {
	v, ok := l.Single()
	if !ok || !(l.ranges[0].exact || v.IsRef()) {
		return Version{}, false
	}
	return v, true
}

// Equal reports whether l and o hold the same ranges.
func (l List) Equal(o List) bool {
	return slices.EqualFunc(l.ranges, o.ranges, Range.Equal)
}

// String formats l in the syntax accepted by ParseList. The unconstrained
// list formats as ":".
func (l List) String() string {
	if l.IsAny() {
		return ":"
	}
	parts := make([]string, len(l.ranges))
	for i, r := range l.ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// normalize sorts rs and merges overlapping ranges.
func normalize(rs []Range) []Range {
	slices.SortFunc(rs, func(a, b Range) int {
		if c := cmpLower(a, b); c != 0 {
			return c
		}
		return cmpUpper(a, b)
	})
	out := rs[:0]
	for _, r := range rs {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if _, ok := Intersect(*last, r); ok {
				if cmpUpper(r, *last) > 0 {
					last.hi, last.exact = r.hi, r.exact
				}
				continue
			}
		}
		out = append(out, r)
	}
	return out
}
