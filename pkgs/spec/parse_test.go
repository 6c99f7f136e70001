package spec

import (
	"errors"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct{ in, want string }{
		{"mpileaks", "mpileaks"},
		{
			"mpileaks@1.2:1.4,2.0 +debug ~shared foobar=baz %gcc@12: target=x86_64 ^mpich ^callpath@0.9",
			"mpileaks@1.2:1.4,2.0+debug~shared foobar=baz %gcc@12: target=x86_64 ^callpath@0.9 ^mpich",
		},
		{`coreutils cflags="-O3 -g"`, `coreutils cflags="-O3 -g"`},
		{"@1.2: +debug", "@1.2:+debug"},
		{"zlib arch=linux-ubuntu22.04-x86_64", "zlib arch=linux-ubuntu22.04-x86_64"},
		{"zlib platform=linux os=ubuntu22.04 target=x86_64", "zlib arch=linux-ubuntu22.04-x86_64"},
		{"hdf5 api==v18", "hdf5 api==v18"},
		{"a-b@2.0-rc1", "a-b@2.0-rc1"},
		{"a@1.2-1.4", "a@1.2:1.4"},
		{"pkg ^dep@1.0 ^dep+x", "pkg ^dep@1.0+x"},
		{"mpileaks fabrics=psm,verbs", "mpileaks fabrics=psm,verbs"},
		{"pkg@=1.2 %clang@=16.0.0", "pkg@=1.2 %clang@=16.0.0"},
	}
	for _, tt := range tests {
		s, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tt.in, err)
		}
		got := s.String()
		if got != tt.want {
			t.Errorf("Parse(%q).String() = %q, want %q", tt.in, got, tt.want)
		}
		again, err := Parse(got)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", got, err)
		}
		if !again.Equal(s) {
			t.Errorf("round trip of %q = %q", got, again)
		}
	}
}

func TestParseFields(t *testing.T) {
	s := MustParse("mpileaks@2.3 +debug %gcc@12 ^callpath@0.9 cflags=-O2")
	if s.Name != "mpileaks" {
		t.Errorf("Name = %q", s.Name)
	}
	if s.Versions.String() != "2.3" {
		t.Errorf("Versions = %q", s.Versions)
	}
	if v, ok := s.Variants["debug"]; !ok || !v.Bool {
		t.Errorf("Variants[debug] = %v, %v", v, ok)
	}
	if s.Compiler == nil || s.Compiler.Name != "gcc" {
		t.Errorf("Compiler = %v", s.Compiler)
	}
	dep, ok := s.Deps["callpath"]
	if !ok {
		t.Fatal("missing callpath dependency")
	}
	if dep.Spec.Versions.String() != "0.9" {
		t.Errorf("callpath versions = %q", dep.Spec.Versions)
	}
	if got := dep.Spec.Flags["cflags"]; len(got) != 1 || got[0] != "-O2" {
		t.Errorf("callpath cflags = %q", got)
	}
}

func TestParseAll(t *testing.T) {
	specs, err := ParseAll("mpileaks ^mpich zlib@1.3 +shared")
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 2 {
		t.Fatalf("ParseAll() returned %d specs, want 2", len(specs))
	}
	if specs[0].String() != "mpileaks ^mpich" || specs[1].String() != "zlib@1.3+shared" {
		t.Errorf("ParseAll() = %q, %q", specs[0], specs[1])
	}
	if _, err := Parse("a b"); err == nil {
		t.Error("Parse(a b) should fail")
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		"mpileaks@",
		"mpileaks ^",
		"mpileaks ^foo=bar",
		"mpileaks@1.0@2.0",
		"mpileaks +debug ~debug",
		`x cflags="unterminated`,
		"mpileaks %",
		"mpileaks os=a os=b",
		"mpileaks $",
		"mpileaks@1.0:0.5",
		"mpileaks %gcc@9 %clang",
		"",
		"   ",
	} {
		_, err := Parse(in)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("Parse(%q) error = %v, want SyntaxError", in, err)
		}
	}
}
