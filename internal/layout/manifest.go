package layout

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goplus/spk/pkgs/spec"
)

// Entry records one path of an install prefix.
type Entry struct {
	Type   string      `json:"type"`
	Mode   fs.FileMode `json:"mode"`
	Size   int64       `json:"size,omitempty"`
	Hash   string      `json:"hash,omitempty"`
	Target string      `json:"target,omitempty"`
}

// Manifest maps slash separated paths relative to the prefix to their
// entries. The metadata directory is not part of it.
type Manifest map[string]Entry

// Problem is one difference between a prefix and its manifest.
type Problem struct {
	Path   string
	Reason string
}

// VerifyError lists everything wrong with one install.
type VerifyError struct {
	Prefix   string
	Problems []Problem
}

func (e *VerifyError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d problem(s)", e.Prefix, len(e.Problems))
	for _, p := range e.Problems {
		fmt.Fprintf(&sb, "\n\t%s: %s", p.Path, p.Reason)
	}
	return sb.String()
}

func (e *VerifyError) Unwrap() error { return ErrInconsistentInstall }

// BuildManifest records every path below prefix.
func BuildManifest(prefix string) (Manifest, error) {
	m := make(Manifest)
	err := filepath.WalkDir(prefix, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(prefix, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if rel == MetadataDir {
			return fs.SkipDir
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		e := Entry{Mode: info.Mode().Perm()}
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			e.Type = "link"
			if e.Target, err = os.Readlink(path); err != nil {
				return err
			}
		case d.IsDir():
			e.Type = "dir"
		default:
			e.Type = "file"
			e.Size = info.Size()
			if e.Hash, err = hashFile(path); err != nil {
				return err
			}
		}
		m[filepath.ToSlash(rel)] = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteManifest records the current content of the prefix of s.
func (l *Layout) WriteManifest(s spec.ConcreteSpec) error {
	prefix := l.PathForSpec(s)
	m, err := BuildManifest(prefix)
	if err != nil {
		return fmt.Errorf("failed to build manifest: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(metadataPath(prefix, ManifestFile), data, 0o644)
}

// ReadManifest reads the manifest stored in prefix.
func ReadManifest(prefix string) (Manifest, error) {
	data, err := os.ReadFile(metadataPath(prefix, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Verify checks the prefix of s against spec.yaml and the manifest.
func (l *Layout) Verify(s spec.ConcreteSpec) error {
	return VerifyPrefix(l.PathForSpec(s), s.Hash())
}

// VerifyPrefix checks that prefix holds the spec with the given hash and
// that its files match the manifest. Differences are reported as a
// *VerifyError.
func VerifyPrefix(prefix, hash string) error {
	if _, err := os.Stat(prefix); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotInstalled, prefix)
		}
		return err
	}
	verr := &VerifyError{Prefix: prefix}
	report := func(path, format string, args ...any) {
		verr.Problems = append(verr.Problems, Problem{Path: path, Reason: fmt.Sprintf(format, args...)})
	}

	specPath := MetadataDir + "/" + SpecFile
	if d, err := ReadSpec(prefix); err != nil {
		report(specPath, "%v", err)
	} else if d.Hash() != hash {
		report(specPath, "holds %s, want %s", d.Hash(), hash)
	}

	want, err := ReadManifest(prefix)
	if err != nil {
		report(MetadataDir+"/"+ManifestFile, "%v", err)
		return verr
	}
	have, err := BuildManifest(prefix)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(want)+len(have))
	for p := range want {
		paths = append(paths, p)
	}
	for p := range have {
		if _, ok := want[p]; !ok {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)
	for _, p := range paths {
		w, inWant := want[p]
		h, inHave := have[p]
		switch {
		case !inHave:
			report(p, "removed")
		case !inWant:
			report(p, "added")
		case w.Type != h.Type:
			report(p, "type changed from %s to %s", w.Type, h.Type)
		case w.Hash != h.Hash || w.Size != h.Size:
			report(p, "content changed")
		case w.Target != h.Target:
			report(p, "link target changed from %s to %s", w.Target, h.Target)
		case w.Mode != h.Mode:
			report(p, "mode changed from %v to %v", w.Mode, h.Mode)
		}
	}
	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}
