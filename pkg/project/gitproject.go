// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/archmagece/reposync/internal/gitcmd"
)

// gitProject is the concrete Project implementation backing every
// project built from a ProjectSpec: it shells out to git via
// internal/gitcmd.Executor for both halves of sync.
type gitProject struct {
	spec ProjectSpec
	exec *gitcmd.Executor
}

// NewGitProject builds a Project that drives real git commands for spec,
// using base for commands that need no per-call environment (gc,
// pack-refs, config) and a derived executor carrying SSH/auth env for
// fetch.
func NewGitProject(spec ProjectSpec, base *gitcmd.Executor) Project {
	if base == nil {
		base = gitcmd.NewExecutor()
	}
	return &gitProject{spec: spec, exec: base}
}

func (g *gitProject) Name() string          { return g.spec.Name }
func (g *gitProject) RelPath() string       { return g.spec.RelPath }
func (g *gitProject) ObjDir() string        { return g.spec.ObjDir }
func (g *gitProject) GitDir() string        { return g.spec.GitDir }
func (g *gitProject) RemoteURL() string     { return g.spec.RemoteURL }
func (g *gitProject) Revision() string      { return g.spec.Revision }
func (g *gitProject) Groups() string        { return g.spec.Groups }
func (g *gitProject) CloneFilter() string   { return g.spec.CloneFilter }
func (g *gitProject) UseGitWorktrees() bool { return g.spec.UseGitWorktrees }
func (g *gitProject) UseAlternates() bool   { return g.spec.GitDir != g.spec.ObjDir }

func (g *gitProject) ExistsOnDisk() bool {
	_, err := os.Stat(filepath.Join(g.spec.RelPath, ".git"))
	return err == nil
}

// FetchNetwork fetches new objects into ObjDir from RemoteURL, injecting
// token/SSH auth per spec.Auth and the caller-supplied SSH proxy
// environment (§6.1, §4.14 auth wiring).
func (g *gitProject) FetchNetwork(ctx context.Context, opts FetchOptions) (FetchResult, error) {
	auth, err := PrepareAuth(g.spec.RemoteURL, g.spec.Auth)
	if err != nil {
		return FetchResult{Err: err}, nil
	}
	if auth.TempKeyPath != "" {
		defer os.Remove(auth.TempKeyPath)
	}

	env := append(append([]string{}, opts.SSHProxyEnv...), auth.Env...)
	exec := g.exec
	if len(env) > 0 {
		exec = gitcmd.NewExecutor(gitcmd.WithEnv(env))
	}

	args := []string{"fetch"}
	if opts.Quiet {
		args = append(args, "--quiet")
	}
	if opts.Verbose {
		args = append(args, "--verbose")
	}
	if opts.Prune {
		args = append(args, "--prune")
	}
	if opts.Tags {
		args = append(args, "--tags")
	} else {
		args = append(args, "--no-tags")
	}
	if filter := cloneFilterArg(opts); filter != "" {
		args = append(args, "--filter="+filter)
	}
	args = append(args, auth.CloneURL)
	if opts.CurrentBranchOnly && g.spec.Revision != "" {
		args = append(args, g.spec.Revision)
	} else {
		// Mirror the remote's branches into ObjDir's own refs so the
		// clone made on first checkout can resolve Revision.
		args = append(args, "+refs/heads/*:refs/heads/*")
	}

	if err := os.MkdirAll(g.spec.ObjDir, 0o755); err != nil {
		return FetchResult{Err: fmt.Errorf("prepare objdir: %w", err)}, nil
	}

	result, runErr := exec.Run(ctx, g.spec.ObjDir, args...)
	if runErr != nil {
		return FetchResult{Output: result.Stdout + result.Stderr}, runErr
	}

	fr := FetchResult{
		Success:       result.ExitCode == 0,
		RemoteFetched: result.ExitCode == 0 && !strings.Contains(result.Stdout+result.Stderr, "up to date"),
		Output:        result.Stdout + result.Stderr,
	}
	if result.ExitCode != 0 {
		fr.Err = &gitcmd.GitError{Command: "git " + strings.Join(args, " "), ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return fr, nil
}

func cloneFilterArg(opts FetchOptions) string {
	if opts.CloneFilter != "" {
		return opts.CloneFilter
	}
	return opts.PartialCloneExclude
}

// CheckoutLocal updates the working tree at RelPath to Revision,
// materializing it first if this is the project's first sync.
func (g *gitProject) CheckoutLocal(ctx context.Context, opts CheckoutOptions) (CheckoutResult, error) {
	if !g.ExistsOnDisk() {
		if out, err := g.createWorktree(ctx); err != nil {
			return CheckoutResult{Output: out}, err
		}
	}

	args := []string{"checkout"}
	if opts.ForceCheckout || opts.ForceSync {
		args = append(args, "-f")
	}
	if opts.DetachHead {
		args = append(args, "--detach")
	}
	if opts.Verbose {
		args = append(args, "--progress")
	} else {
		args = append(args, "--quiet")
	}
	args = append(args, g.spec.Revision)

	result, err := g.exec.Run(ctx, g.spec.RelPath, args...)
	if err != nil {
		return CheckoutResult{Output: result.Stdout + result.Stderr}, err
	}

	cr := CheckoutResult{Success: result.ExitCode == 0, Output: result.Stdout + result.Stderr}
	if result.ExitCode != 0 {
		cr.Err = &gitcmd.GitError{Command: "git " + strings.Join(args, " "), ExitCode: result.ExitCode, Stderr: result.Stderr}
		return cr, nil
	}

	if opts.ForceRebase && !opts.DetachHead {
		rbResult, rbErr := g.exec.Run(ctx, g.spec.RelPath, "rebase", g.spec.Revision)
		if rbErr != nil {
			return cr, rbErr
		}
		if rbResult.ExitCode != 0 {
			cr.Success = false
			cr.Err = &gitcmd.GitError{Command: "git rebase " + g.spec.Revision, ExitCode: rbResult.ExitCode, Stderr: rbResult.Stderr}
		}
		cr.Output += rbResult.Stdout + rbResult.Stderr
	}
	return cr, nil
}

// createWorktree materializes RelPath on first checkout, sharing
// ObjDir's objects rather than duplicating them: via `git worktree add`
// when UseGitWorktrees, otherwise a `--reference`d clone that links to
// ObjDir through git alternates (§3 use_git_worktrees).
func (g *gitProject) createWorktree(ctx context.Context) (string, error) {
	if err := os.MkdirAll(filepath.Dir(g.spec.RelPath), 0o755); err != nil {
		return "", fmt.Errorf("prepare worktree parent: %w", err)
	}

	var result *gitcmd.Result
	var err error
	if g.spec.UseGitWorktrees {
		result, err = g.exec.Run(ctx, g.spec.ObjDir, "worktree", "add", "--no-checkout", g.spec.RelPath, "HEAD")
	} else {
		result, err = g.exec.Run(ctx, "", "clone", "--reference", g.spec.ObjDir, "--no-checkout", g.spec.ObjDir, g.spec.RelPath)
	}
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return result.Stdout + result.Stderr, &gitcmd.GitError{Command: "git clone/worktree add", ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return result.Stdout + result.Stderr, nil
}

// DeleteWorktree removes RelPath, refusing a dirty tree unless force.
func (g *gitProject) DeleteWorktree(ctx context.Context, verbose, force bool) error {
	if !force && g.ExistsOnDisk() {
		dirty, err := g.exec.RunOutput(ctx, g.spec.RelPath, "status", "--porcelain")
		if err == nil && strings.TrimSpace(dirty) != "" {
			return fmt.Errorf("project %s has uncommitted changes, refusing to remove without force", g.spec.Name)
		}
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "removing %s\n", g.spec.RelPath)
	}
	return os.RemoveAll(g.spec.RelPath)
}

// SetPreciousObjects toggles extensions.preciousObjects in ObjDir's config.
func (g *gitProject) SetPreciousObjects(ctx context.Context, enabled bool) error {
	_, err := g.exec.Run(ctx, g.spec.ObjDir, "config", "extensions.preciousObjects", fmt.Sprintf("%t", enabled))
	return err
}

// RunGC runs git gc against ObjDir.
func (g *gitProject) RunGC(ctx context.Context, auto bool, packThreads int) error {
	args := []string{"gc"}
	if auto {
		args = append(args, "--auto")
	}
	if packThreads > 0 {
		args = append(args, fmt.Sprintf("--threads=%d", packThreads))
	}
	result, err := g.exec.Run(ctx, g.spec.ObjDir, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return &gitcmd.GitError{Command: "git " + strings.Join(args, " "), ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return nil
}

// PackRefs runs git pack-refs against GitDir.
func (g *gitProject) PackRefs(ctx context.Context) error {
	result, err := g.exec.Run(ctx, g.spec.GitDir, "pack-refs", "--all")
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return &gitcmd.GitError{Command: "git pack-refs --all", ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return nil
}

// LastFetchTimestamp returns the modification time of FETCH_HEAD under
// GitDir, the same signal `repo sync --optimized-fetch` uses to decide
// whether a project's objects are fresh enough to skip.
func (g *gitProject) LastFetchTimestamp() int64 {
	info, err := os.Stat(filepath.Join(g.spec.GitDir, "FETCH_HEAD"))
	if err != nil {
		return 0
	}
	return info.ModTime().Unix()
}
