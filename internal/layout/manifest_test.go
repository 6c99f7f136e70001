package layout

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVerify(t *testing.T) {
	d := testDAG(t, true)
	zlib := lookup(t, d, "zlib")
	l := newLayout(t, 0)

	if err := l.Verify(zlib); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("Verify before install = %v, want ErrNotInstalled", err)
	}

	prefix, err := l.CreateInstallDirectory(zlib)
	if err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"include/zlib.h": "#define ZLIB_VERSION \"1.3\"\n",
		"lib/libz.a":     "archive",
	}
	for name, content := range files {
		path := filepath.Join(prefix, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var verr *VerifyError
	if err := l.Verify(zlib); !errors.As(err, &verr) || len(verr.Problems) != 1 || !strings.Contains(verr.Problems[0].Path, ManifestFile) {
		t.Fatalf("Verify without manifest = %v, want missing manifest", err)
	}

	if err := l.WriteManifest(zlib); err != nil {
		t.Fatal(err)
	}
	if err := l.Verify(zlib); err != nil {
		t.Fatalf("Verify after WriteManifest: %v", err)
	}

	m, err := ReadManifest(prefix)
	if err != nil {
		t.Fatal(err)
	}
	if e := m["lib/libz.a"]; e.Type != "file" || e.Size != int64(len("archive")) || len(e.Hash) != 64 {
		t.Errorf("manifest[lib/libz.a] = %+v", e)
	}
	if _, ok := m[MetadataDir]; ok {
		t.Errorf("manifest contains %s", MetadataDir)
	}

	if err := os.WriteFile(filepath.Join(prefix, "lib", "libz.a"), []byte("patched"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(prefix, "include", "zlib.h")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(prefix, "lib", "extra.so"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	err = l.Verify(zlib)
	if !errors.As(err, &verr) {
		t.Fatalf("Verify after tampering = %v, want *VerifyError", err)
	}
	if !errors.Is(err, ErrInconsistentInstall) {
		t.Errorf("VerifyError does not unwrap to ErrInconsistentInstall")
	}
	want := []Problem{
		{"include/zlib.h", "removed"},
		{"lib/extra.so", "added"},
		{"lib/libz.a", "content changed"},
	}
	if len(verr.Problems) != len(want) {
		t.Fatalf("Problems = %v, want %v", verr.Problems, want)
	}
	for i, p := range want {
		if verr.Problems[i] != p {
			t.Errorf("Problems[%d] = %v, want %v", i, verr.Problems[i], p)
		}
	}
}

func TestVerifyTamperedSpec(t *testing.T) {
	d := testDAG(t, true)
	zlib := lookup(t, d, "zlib")
	l := newLayout(t, 0)

	prefix, err := l.CreateInstallDirectory(zlib)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.WriteManifest(zlib); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(prefix, MetadataDir, SpecFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Replace(string(data), "version: \"1.3\"", "version: \"1.4\"", 1)), 0o644); err != nil {
		t.Fatal(err)
	}
	var verr *VerifyError
	if err := VerifyPrefix(prefix, zlib.Hash()); !errors.As(err, &verr) || verr.Problems[0].Path != MetadataDir+"/"+SpecFile {
		t.Errorf("VerifyPrefix after editing spec.yaml = %v", err)
	}
}
