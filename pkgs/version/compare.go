// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package version

// Compare compares two versions and returns:
//
//	-1 if a < b
//	 0 if a == b
//	 1 if a > b
//
// Segments are compared pairwise. When one version runs out of segments
// first it is the smaller one.
func Compare(a, b Version) int {
	n := min(len(a.segs), len(b.segs))
	for i := 0; i < n; i++ {
		if c := compareSegment(a.segs[i], b.segs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a.segs) < len(b.segs):
		return -1
	case len(a.segs) > len(b.segs):
		return 1
	}
	return 0
}

// Less reports whether a sorts before b.
func Less(a, b Version) bool { return Compare(a, b) < 0 }

func compareSegment(a, b segment) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return sign(ra - rb)
	}
	switch ra {
	case rankInfinity:
		return sign(a.inf - b.inf)
	case rankNumeric:
		return compareDigits(a.num, b.num)
	}
	switch {
	case a.alpha < b.alpha:
		return -1
	case a.alpha > b.alpha:
		return 1
	}
	return 0
}

const (
	rankAlpha = iota
	rankNumeric
	rankInfinity
)

func rank(s segment) int {
	switch {
	case s.inf > 0:
		return rankInfinity
	case s.alpha != "":
		return rankAlpha
	}
	return rankNumeric
}

// compareDigits compares two digit strings stripped of leading zeros by
// value: a longer string is the larger number, otherwise the first differing
// digit decides.
func compareDigits(a, b string) int {
	if len(a) != len(b) {
		return sign(len(a) - len(b))
	}
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			return sign(int(a[i]) - int(b[i]))
		}
	}
	return 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
