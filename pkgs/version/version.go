// Package version implements package versions, version ranges and version
// lists.
//
// A version string is split into segments of digits or letters. Separators
// (".", "-", "_") only delimit segments and do not take part in ordering.
// Segments compare as follows:
//
//	alphabetic < numeric < infinity
//
// where the infinity segments are, in increasing order, stable, trunk, head,
// master, main and develop. A version that is a prefix of another sorts
// before it, so 1.2 < 1.2.1.
package version

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned for malformed version strings.
var ErrInvalid = errors.New("invalid version")

var infinityNames = []string{"stable", "trunk", "head", "master", "main", "develop"}

type segment struct {
	num   string // digits without leading zeros, when numeric
	alpha string // letters, when alphabetic
	inf   int    // 1-based index in infinityNames, 0 if not infinite
}

// Version is a parsed version. The zero value is not a valid version.
type Version struct {
	str  string
	segs []segment
}

// Parse parses a version string such as "1.2.3", "2.0-rc1", "develop",
// "git.main" or a 40 character commit hash.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, fmt.Errorf("%w: empty", ErrInvalid)
	}
	var segs []segment
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case isDigit(c):
			j := i
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			segs = append(segs, segment{num: trimZeros(s[i:j])})
			i = j
		case isAlpha(c):
			j := i
			for j < len(s) && isAlpha(s[j]) {
				j++
			}
			word := s[i:j]
			seg := segment{alpha: word}
			for k, name := range infinityNames {
				if strings.EqualFold(word, name) {
					seg = segment{inf: k + 1}
				}
			}
			segs = append(segs, seg)
			i = j
		case isSep(c):
			i++
		default:
			return Version{}, fmt.Errorf("%w: %q contains %q", ErrInvalid, s, c)
		}
	}
	if len(segs) == 0 {
		return Version{}, fmt.Errorf("%w: %q has no segments", ErrInvalid, s)
	}
	return Version{str: s, segs: segs}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string { return v.str }

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool { return len(v.segs) == 0 }

// IsDevelop reports whether v contains an infinity segment such as develop
// or main.
func (v Version) IsDevelop() bool {
	for _, s := range v.segs {
		if s.inf > 0 {
			return true
		}
	}
	return false
}

// IsRef reports whether v names a VCS reference: a "git." prefixed version
// or a full commit hash. Refs are always exact.
func (v Version) IsRef() bool {
	if strings.HasPrefix(v.str, "git.") {
		return true
	}
	if len(v.str) != 40 {
		return false
	}
	for i := 0; i < len(v.str); i++ {
		c := v.str[i]
		if !isDigit(c) && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether the segments of v are a prefix of the segments
// of w. Every version is a prefix of itself.
func (v Version) IsPrefixOf(w Version) bool {
	if len(v.segs) > len(w.segs) {
		return false
	}
	for i := range v.segs {
		if compareSegment(v.segs[i], w.segs[i]) != 0 {
			return false
		}
	}
	return true
}

// UpTo returns the version made of the first n segments of v, joined by dots.
func (v Version) UpTo(n int) Version {
	if n >= len(v.segs) {
		return v
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = v.segs[i].String()
	}
	return Version{str: strings.Join(parts, "."), segs: v.segs[:n:n]}
}

// Equal reports whether v and w compare equal.
func (v Version) Equal(w Version) bool { return Compare(v, w) == 0 }

func (s segment) String() string {
	switch {
	case s.inf > 0:
		return infinityNames[s.inf-1]
	case s.alpha != "":
		return s.alpha
	case s.num == "":
		return "0"
	}
	return s.num
}

func trimZeros(s string) string {
	return strings.TrimLeft(s, "0")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSep(c byte) bool {
	return c == '.' || c == '-' || c == '_'
}
