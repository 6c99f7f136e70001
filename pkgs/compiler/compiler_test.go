package compiler

import (
	"errors"
	"testing"

	"github.com/goplus/spk/pkgs/version"
)

func mustCompiler(name, ver, runtime string) Compiler {
	return Compiler{Name: name, Version: version.MustParse(ver), Runtime: runtime}
}

func TestParseSpec(t *testing.T) {
	tests := []struct{ in, want string }{
		{"gcc", "gcc"},
		{"gcc@9:", "gcc@9:"},
		{"clang@10.0.1,12", "clang@10.0.1,12"},
	}
	for _, tt := range tests {
		s, err := ParseSpec(tt.in)
		if err != nil {
			t.Fatalf("ParseSpec(%q) error: %v", tt.in, err)
		}
		if s.String() != tt.want {
			t.Errorf("ParseSpec(%q) = %q, want %q", tt.in, s, tt.want)
		}
	}
	if _, err := ParseSpec("@9"); err == nil {
		t.Error("ParseSpec(@9) should fail")
	}
}

func TestSpecMerge(t *testing.T) {
	a, _ := ParseSpec("gcc@9:")
	b, _ := ParseSpec("gcc@:12")
	m, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}
	if m.String() != "gcc@9:12" {
		t.Errorf("Merge() = %q, want gcc@9:12", m)
	}
	if !m.Contains(mustCompiler("gcc", "12.2.0", "")) {
		t.Error("gcc@9:12 should contain gcc@12.2.0")
	}

	c, _ := ParseSpec("clang")
	if _, err := a.Merge(c); !errors.Is(err, ErrConflict) {
		t.Errorf("Merge(gcc, clang) error = %v, want ErrConflict", err)
	}
	d, _ := ParseSpec("gcc@:8")
	if _, err := a.Merge(d); !errors.Is(err, ErrConflict) {
		t.Errorf("Merge(gcc@9:, gcc@:8) error = %v, want ErrConflict", err)
	}
}

func TestCompatible(t *testing.T) {
	abi := NewABI()
	tests := []struct {
		name string
		a, b Compiler
		want bool
	}{
		{"same version", mustCompiler("clang", "12.0.0", ""), mustCompiler("clang", "12.0.0", ""), true},
		{"different family", mustCompiler("gcc", "12.2.0", ""), mustCompiler("clang", "12.2.0", ""), false},
		{"clang versions", mustCompiler("clang", "10.0.0", ""), mustCompiler("clang", "12.0.0", ""), false},
		{"gcc same runtime", mustCompiler("gcc", "12.1.0", "6.0.30"), mustCompiler("gcc", "12.2.0", "6.0.30"), true},
		{"gcc runtime differs", mustCompiler("gcc", "9.4.0", "6.0.28"), mustCompiler("gcc", "12.2.0", "6.0.30"), false},
		{"gcc runtime unknown", mustCompiler("gcc", "9.4.0", ""), mustCompiler("gcc", "12.2.0", ""), false},
		{"intel major.minor", mustCompiler("intel", "19.1.2", ""), mustCompiler("intel", "19.1.3", ""), true},
		{"intel minor differs", mustCompiler("intel", "19.0.5", ""), mustCompiler("intel", "19.1.3", ""), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := abi.Compatible(tt.a, tt.b); got != tt.want {
				t.Errorf("Compatible(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
