// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package reposync implements the two sync orchestrators (phased and
// interleaved) and the on-disk project-list / copy-link-file
// reconciliation that runs between their fetch and checkout phases.
package reposync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/huh"

	"github.com/archmagece/reposync/pkg/project"
)

// LinkFileSet is the copy-link-file manifest shape persisted alongside
// the project list: destinations created by <linkfile>/<copyfile>
// manifest elements, keyed by kind.
type LinkFileSet struct {
	LinkFile []string `json:"linkfile"`
	CopyFile []string `json:"copyfile"`
}

// allDests returns every destination path recorded in the set.
func (s LinkFileSet) allDests() []string {
	out := make([]string, 0, len(s.LinkFile)+len(s.CopyFile))
	out = append(out, s.LinkFile...)
	out = append(out, s.CopyFile...)
	return out
}

// ReconcileProjectList loads the previous project.list under subdir,
// diffs it against current projects, deletes the working tree of every
// relpath no longer present through the resolver attached to ctx
// (reverse-sorted so subdirectories are removed before parents), then
// writes the new list.
// force overrides a dirty-tree refusal (--force-remove-dirty).
func ReconcileProjectList(ctx context.Context, subdir string, projects []project.Project, force, verbose bool) error {
	listPath := filepath.Join(subdir, "project.list")

	previous, err := loadProjectList(listPath)
	if err != nil {
		return err
	}

	current := make(map[string]project.Project, len(projects))
	for _, p := range projects {
		current[p.RelPath()] = p
	}

	var removed []string
	for _, relpath := range previous {
		if _, ok := current[relpath]; !ok {
			removed = append(removed, relpath)
		}
	}
	// Reverse-sorted so subdirectories (which sort after their parent
	// lexicographically for same-prefix paths) are removed first.
	sort.Sort(sort.Reverse(sort.StringSlice(removed)))

	for _, relpath := range removed {
		if err := deleteRemovedWorktree(ctx, relpath, force, verbose); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.RelPath())
	}
	sort.Strings(names)
	return writeProjectList(listPath, names)
}

// deleteRemovedWorktree resolves relpath to a Project handle via the
// resolver attached to ctx (WithRemovedProjectResolver) and deletes its
// worktree. A removed project has no live Project in the current
// manifest pass, so the resolver must look it up from the previous
// manifest generation. A missing resolver or an unresolved relpath is a
// no-op, not an error.
//
// When force is false and the worktree turns out dirty, the user is
// asked interactively (--force-remove-dirty was not given) rather than
// silently skipping the deletion.
func deleteRemovedWorktree(ctx context.Context, relpath string, force, verbose bool) error {
	p, ok := ctx.Value(removedProjectResolverKey{}).(func(relpath string) (project.Project, bool))
	if !ok {
		return nil
	}
	proj, found := p(relpath)
	if !found {
		return nil
	}

	if force {
		return proj.DeleteWorktree(ctx, verbose, true)
	}

	err := proj.DeleteWorktree(ctx, verbose, false)
	if err == nil {
		return nil
	}
	if !confirmForceDelete(relpath) {
		return nil
	}
	return proj.DeleteWorktree(ctx, verbose, true)
}

// confirmForceDelete asks whether to remove a dirty worktree that is no
// longer in the manifest. A non-interactive terminal (huh.Run failing,
// e.g. no tty attached) is treated as a "no".
func confirmForceDelete(relpath string) bool {
	var ok bool
	form := huh.NewConfirm().
		Title(fmt.Sprintf("%s has uncommitted changes and is no longer in the manifest. Remove it anyway?", relpath)).
		Value(&ok)
	if err := form.Run(); err != nil {
		return false
	}
	return ok
}

type removedProjectResolverKey struct{}

// WithRemovedProjectResolver attaches a lookup function the project-list
// reconciler uses to find a Project handle for a relpath that has just
// dropped out of the manifest, so its worktree can be deleted.
func WithRemovedProjectResolver(ctx context.Context, resolve func(relpath string) (project.Project, bool)) context.Context {
	return context.WithValue(ctx, removedProjectResolverKey{}, resolve)
}

func loadProjectList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return splitNonEmptyLines(string(data)), nil
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	return lines
}

func writeProjectList(path string, names []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var data []byte
	for _, n := range names {
		data = append(data, []byte(n+"\n")...)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReconcileLinkFiles loads the previous copy-link-files.json under
// subdir, deletes any destination no longer present in next (best
// effort — a missing destination is not an error), and persists next.
func ReconcileLinkFiles(subdir string, next LinkFileSet) error {
	path := filepath.Join(subdir, "copy-link-files.json")

	previous, err := loadLinkFileSet(path)
	if err != nil {
		return err
	}

	nextDests := make(map[string]bool)
	for _, d := range next.allDests() {
		nextDests[d] = true
	}
	for _, d := range previous.allDests() {
		if !nextDests[d] {
			_ = os.Remove(d) // missing_ok
		}
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func loadLinkFileSet(path string) (LinkFileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return LinkFileSet{}, nil
		}
		return LinkFileSet{}, err
	}
	var s LinkFileSet
	if err := json.Unmarshal(data, &s); err != nil {
		return LinkFileSet{}, nil
	}
	return s, nil
}
