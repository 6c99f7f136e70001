package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goplus/spk/pkgs/spec"
)

// FakeBuilder populates prefixes with placeholder files instead of
// building anything.
type FakeBuilder struct{}

func (FakeBuilder) Build(ctx context.Context, s spec.ConcreteSpec, prefix string, deps map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	slices.Sort(names)
	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "%s=%s\n", name, deps[name])
	}
	files := []struct {
		path    string
		content string
		mode    os.FileMode
	}{
		{filepath.Join("bin", s.Name()), "#!/bin/sh\necho '" + s.String() + "'\n", 0o755},
		{filepath.Join("lib", "lib"+s.Name()+".a"), s.String() + "\n", 0o644},
		{filepath.Join("share", s.Name(), "deps.txt"), sb.String(), 0o644},
	}
	for _, f := range files {
		path := filepath.Join(prefix, f.path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(f.content), f.mode); err != nil {
			return err
		}
	}
	return nil
}
