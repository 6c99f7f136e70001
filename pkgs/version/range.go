package version

import (
	"fmt"
	"strings"
)

// Range is a closed interval of versions. Either bound may be missing.
//
// Unless the range is exact, the upper bound is prefix-inclusive: 1.2:1.4
// contains 1.4.9. A single version constraint such as 1.2 is the range
// 1.2:1.2 and therefore contains 1.2.1, while the exact range =1.2 contains
// 1.2 only.
type Range struct {
	lo, hi Version
	exact  bool
}

// Any returns the unbounded range.
func Any() Range { return Range{} }

// Exact returns the range containing v only.
func Exact(v Version) Range { return Range{lo: v, hi: v, exact: true} }

// Prefix returns the range v:v, which contains v and every version v is a
// prefix of.
func Prefix(v Version) Range {
	if v.IsRef() {
		return Exact(v)
	}
	return Range{lo: v, hi: v}
}

// Between returns the range lo:hi. A zero bound is unbounded.
func Between(lo, hi Version) Range { return Range{lo: lo, hi: hi} }

// Lo returns the lower bound and whether it exists.
func (r Range) Lo() (Version, bool) { return r.lo, !r.lo.IsZero() }

// Hi returns the upper bound and whether it exists.
func (r Range) Hi() (Version, bool) { return r.hi, !r.hi.IsZero() }

// IsAny reports whether r is unbounded on both sides.
func (r Range) IsAny() bool { return r.lo.IsZero() && r.hi.IsZero() }

// IsExact reports whether r contains exactly one version.
func (r Range) IsExact() bool { return r.exact && !r.lo.IsZero() }

// Single returns v when r is v:v or =v.
func (r Range) Single() (Version, bool) {
	if r.lo.IsZero() || r.hi.IsZero() || Compare(r.lo, r.hi) != 0 {
		return Version{}, false
	}
	return r.hi, true
}

// Contains reports whether v lies in r.
func (r Range) Contains(v Version) bool {
	if !r.lo.IsZero() && Compare(v, r.lo) < 0 {
		return false
	}
	if r.hi.IsZero() {
		return true
	}
	if Compare(v, r.hi) <= 0 {
		return !r.exact || Compare(v, r.hi) == 0
	}
	return !r.exact && r.hi.IsPrefixOf(v)
}

// Intersect returns the intersection of a and b. The boolean is false when
// the intersection is empty.
func Intersect(a, b Range) (Range, bool) {
	r := a
	if cmpLower(b, a) > 0 {
		r.lo = b.lo
	}
	if cmpUpper(b, a) < 0 {
		r.hi, r.exact = b.hi, b.exact
	}
	if r.lo.IsZero() || r.hi.IsZero() {
		return r, true
	}
	c := Compare(r.lo, r.hi)
	if c > 0 && (r.exact || !r.hi.IsPrefixOf(r.lo)) {
		return Range{}, false
	}
	if r.exact && c != 0 {
		return Range{}, false
	}
	return r, true
}

// Subset reports whether every version in a is also in b.
func Subset(a, b Range) bool {
	r, ok := Intersect(a, b)
	return ok && r.Equal(a)
}

// Equal reports whether a and b denote the same interval.
func (r Range) Equal(o Range) bool {
	return cmpLower(r, o) == 0 && cmpUpper(r, o) == 0
}

func (r Range) String() string {
	switch {
	case r.IsAny():
		return ":"
	case r.IsExact():
		return "=" + r.hi.String()
	}
	if v, ok := r.Single(); ok {
		return v.String()
	}
	var sb strings.Builder
	if !r.lo.IsZero() {
		sb.WriteString(r.lo.String())
	}
	sb.WriteByte(':')
	if !r.hi.IsZero() {
		sb.WriteString(r.hi.String())
	}
	return sb.String()
}

// ParseRange parses one element of a version list:
//
//	1.2        prefix range 1.2:1.2
//	=1.2       exact version
//	1.2:1.4    closed range, also written 1.2-1.4 for numeric versions
//	1.2:  :1.4  :   half-open and unbounded ranges
func ParseRange(s string) (Range, error) {
	if s == "" {
		return Range{}, fmt.Errorf("%w: empty range", ErrInvalid)
	}
	if rest, ok := strings.CutPrefix(s, "="); ok {
		v, err := Parse(rest)
		if err != nil {
			return Range{}, err
		}
		return Exact(v), nil
	}
	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		lo, hi, ok = cutNumericDash(s)
	}
	if !ok {
		v, err := Parse(s)
		if err != nil {
			return Range{}, err
		}
		return Prefix(v), nil
	}
	var r Range
	var err error
	if lo != "" {
		if r.lo, err = Parse(lo); err != nil {
			return Range{}, err
		}
	}
	if hi != "" {
		if r.hi, err = Parse(hi); err != nil {
			return Range{}, err
		}
	}
	if !r.lo.IsZero() && !r.hi.IsZero() && Compare(r.lo, r.hi) > 0 && !r.hi.IsPrefixOf(r.lo) {
		return Range{}, fmt.Errorf("%w: empty range %q", ErrInvalid, s)
	}
	return r, nil
}

// cutNumericDash splits "1.2-1.4" into a range when both sides are purely
// numeric dotted versions. "2.0-rc1" stays a single version.
func cutNumericDash(s string) (lo, hi string, ok bool) {
	lo, hi, ok = strings.Cut(s, "-")
	if !ok || !isNumericDotted(lo) || !isNumericDotted(hi) {
		return "", "", false
	}
	return lo, hi, true
}

func isNumericDotted(s string) bool {
	if s == "" || s[0] == '.' || s[len(s)-1] == '.' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			if s[i-1] == '.' {
				return false
			}
			continue
		}
		if !isDigit(c) {
			return false
		}
	}
	return true
}

// cmpLower orders lower bounds; a missing bound is the smallest.
func cmpLower(a, b Range) int {
	switch {
	case a.lo.IsZero() && b.lo.IsZero():
		return 0
	case a.lo.IsZero():
		return -1
	case b.lo.IsZero():
		return 1
	}
	return Compare(a.lo, b.lo)
}

// cmpUpper orders upper bounds; a missing bound is the largest. A prefix
// bound sorts above every version it is a prefix of.
func cmpUpper(a, b Range) int {
	switch {
	case a.hi.IsZero() && b.hi.IsZero():
		return 0
	case a.hi.IsZero():
		return 1
	case b.hi.IsZero():
		return -1
	}
	c := Compare(a.hi, b.hi)
	switch {
	case c == 0:
		switch {
		case a.exact == b.exact:
			return 0
		case a.exact:
			return -1
		}
		return 1
	case c < 0 && !a.exact && a.hi.IsPrefixOf(b.hi):
		return 1
	case c > 0 && !b.exact && b.hi.IsPrefixOf(a.hi):
		return -1
	}
	return c
}
