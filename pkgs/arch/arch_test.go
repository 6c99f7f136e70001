package arch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Arch
	}{
		{"linux-ubuntu22.04-x86_64", Arch{"linux", "ubuntu22.04", "x86_64"}},
		{"linux", Arch{Platform: "linux"}},
		{"None-None-aarch64", Arch{Target: "aarch64"}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
	if _, err := Parse("a-b-c-d"); err == nil {
		t.Error("Parse(a-b-c-d) should fail")
	}
}

func TestMerge(t *testing.T) {
	a := Arch{Platform: "linux"}
	b := Arch{Target: "x86_64"}
	got, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}
	if want := (Arch{Platform: "linux", Target: "x86_64"}); got != want {
		t.Errorf("Merge() = %+v, want %+v", got, want)
	}
	if got.String() != "linux-None-x86_64" {
		t.Errorf("String() = %q", got.String())
	}

	_, err = got.Merge(Arch{Target: "aarch64"})
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.Field != "target" {
		t.Fatalf("Merge() error = %v, want target conflict", err)
	}
}

func TestResolve(t *testing.T) {
	host := Arch{"linux", "rhel9", "x86_64"}
	got := Arch{Platform: "default", OS: "frontend", Target: "be"}.Resolve(host)
	if got != host {
		t.Errorf("Resolve() = %+v, want %+v", got, host)
	}
	if got := (Arch{Target: "aarch64"}).Resolve(host); got.Target != "aarch64" || got.OS != "" {
		t.Errorf("Resolve() changed a concrete field: %+v", got)
	}
}

func TestHost(t *testing.T) {
	h := Host()
	if !h.Concrete() {
		t.Errorf("Host() = %+v, want every field set", h)
	}
}

func TestOSRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "os-release")
	data := "NAME=\"Ubuntu\"\nID=ubuntu\nVERSION_ID=\"22.04\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := osRelease(path); got != "ubuntu22.04" {
		t.Errorf("osRelease() = %q, want %q", got, "ubuntu22.04")
	}
}
