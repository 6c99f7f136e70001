// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package repo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// VCS fetches repositories from version control.
type VCS interface {
	// Clone checks out branch of remote into dir, which must not exist. An
	// empty branch selects the default branch.
	Clone(ctx context.Context, remote, branch, dir string) error
	// Pull updates the checkout in dir.
	Pull(ctx context.Context, dir string) error
}

type gitVCS struct{}

func NewGitVCS() VCS {
	return gitVCS{}
}

func (gitVCS) Clone(ctx context.Context, remote, branch, dir string) error {
	args := []string{"clone", "--depth=1"}
	if branch != "" {
		args = append(args, "-b", branch)
	}
	return git(ctx, "", append(args, remote, dir)...)
}

func (gitVCS) Pull(ctx context.Context, dir string) error {
	return git(ctx, dir, "pull", "--ff-only")
}

func git(ctx context.Context, dir string, args ...string) error {
	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(buf.String()))
	}
	return nil
}
