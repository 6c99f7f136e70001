package spec

import (
	"errors"
	"testing"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		a, b  string
		want  string
		field string
	}{
		{"libx@1.0:1.5", "libx@1.2:2.0", "libx@1.2:1.5", ""},
		{"libx", "@1.2", "libx@1.2", ""},
		{"libx+debug", "libx foobar=baz", "libx+debug foobar=baz", ""},
		{"libx %gcc@9:", "libx %gcc@:12", "libx %gcc@9:12", ""},
		{"libx platform=linux", "libx target=x86_64", "libx platform=linux target=x86_64", ""},
		{"a ^b@1:", "a ^b@:2 ^c", "a ^b@1:2 ^c", ""},
		{"libx cflags=-O2", "libx cflags=-g", `libx cflags="-O2 -g"`, ""},
		{"libx@1.0:1.1", "libx@1.2:", "", "version"},
		{"libx+debug", "libx~debug", "", "variant"},
		{"libx foobar=bar", "libx foobar=baz", "", "variant"},
		{"libx %gcc", "libx %clang", "", "compiler"},
		{"libx %gcc@:8", "libx %gcc@9:", "", "compiler"},
		{"libx target=x86_64", "libx target=aarch64", "", "target"},
		{"libx", "liby", "", "name"},
		{"a ^b@1", "a ^b@2", "", "version"},
	}
	for _, tt := range tests {
		a, b := MustParse(tt.a), MustParse(tt.b)
		before := a.String() + "|" + b.String()
		got, err := Merge(a, b)
		if after := a.String() + "|" + b.String(); after != before {
			t.Errorf("Merge(%q, %q) modified its inputs: %s", tt.a, tt.b, after)
		}
		if tt.field != "" {
			var ce *ConflictError
			if !errors.As(err, &ce) {
				t.Errorf("Merge(%q, %q) error = %v, want ConflictError", tt.a, tt.b, err)
				continue
			}
			if ce.Field != tt.field {
				t.Errorf("Merge(%q, %q) conflict on %q, want %q", tt.a, tt.b, ce.Field, tt.field)
			}
			continue
		}
		if err != nil {
			t.Errorf("Merge(%q, %q) error: %v", tt.a, tt.b, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("Merge(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMergeAlgebra(t *testing.T) {
	specs := []*Spec{
		MustParse("libx@1.0:2.0 +debug"),
		MustParse("libx@1.5: %gcc@9: fabrics=psm"),
		MustParse("libx@:1.8 target=x86_64 fabrics=verbs,psm ^zlib@1.2:"),
		MustParse("@1.6 ^zlib+shared"),
	}
	for i, a := range specs {
		for j, b := range specs {
			ab, err1 := Merge(a, b)
			ba, err2 := Merge(b, a)
			if err1 != nil || err2 != nil {
				t.Fatalf("Merge(%d, %d) errors: %v, %v", i, j, err1, err2)
			}
			if !ab.Equal(ba) {
				t.Errorf("Merge not commutative: %q vs %q", ab, ba)
			}
			for k, c := range specs {
				l, _ := Merge(ab, c)
				bc, _ := Merge(b, c)
				r, _ := Merge(a, bc)
				if !l.Equal(r) {
					t.Errorf("Merge not associative for (%d, %d, %d): %q vs %q", i, j, k, l, r)
				}
			}
		}
	}
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"libx@1.2.3+debug %gcc@12.2.0", "libx@1.2 %gcc", true},
		{"libx@1.2", "libx@1.2.3", false},
		{"libx+debug", "libx~debug", false},
		{"libx", "liby", false},
		{"libx ^zlib@1.3", "^zlib@1:", true},
		{"libx", "^zlib", false},
		{"libx arch=linux-rhel9-x86_64", "target=x86_64", true},
		{"libx fabrics=psm,verbs", "fabrics=psm", true},
	}
	for _, tt := range tests {
		if got := MustParse(tt.a).Satisfies(MustParse(tt.b)); got != tt.want {
			t.Errorf("%q.Satisfies(%q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
