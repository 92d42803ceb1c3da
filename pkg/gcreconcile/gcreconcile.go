// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package gcreconcile reconciles git gc / precious-objects state after a
// fetch phase: it keeps extensions.preciousObjects in sync with whether
// a project's objdir is actually shared, and optionally runs gc.
package gcreconcile

import (
	"context"
	"runtime"

	"github.com/archmagece/reposync/pkg/project"
	"github.com/archmagece/reposync/pkg/workerpool"
)

// NameCounter reports how many manifest entries share a project name
// (the same repository checked out at multiple paths), used to decide
// whether preciousObjects should be expected.
type NameCounter func(name string) int

// Reconcile computes and applies the expected extensions.preciousObjects
// state for every project (§4.10), then, if autoGC is set, runs
// `git gc --auto` once per distinct objdir and `git pack-refs` for
// additional projects sharing that objdir with a separate gitdir. Work
// is bounded by jobs concurrent goroutines.
func Reconcile(ctx context.Context, projects []project.Project, nameCount NameCounter, autoGC bool, jobs int) error {
	if err := reconcilePreciousObjects(ctx, projects, nameCount); err != nil {
		return err
	}
	if !autoGC {
		return nil
	}
	return runGC(ctx, projects, jobs)
}

func reconcilePreciousObjects(ctx context.Context, projects []project.Project, nameCount NameCounter) error {
	for _, p := range projects {
		expected := expectedPreciousObjects(p, nameCount)
		// Actual state is opaque behind the Project contract; we simply
		// (re)assert the expected state every reconcile pass, which is
		// idempotent from the caller's perspective.
		if err := p.SetPreciousObjects(ctx, expected); err != nil {
			return err
		}
	}
	return nil
}

func expectedPreciousObjects(p project.Project, nameCount NameCounter) bool {
	if p.UseGitWorktrees() {
		return false
	}
	if nameCount(p.Name()) <= 1 {
		return false
	}
	return !p.UseAlternates()
}

func runGC(ctx context.Context, projects []project.Project, jobs int) error {
	// One unit per distinct objdir: the first project encountered for an
	// objdir "owns" that objdir's gc; this ordering dependency on the
	// project list's iteration order is inherited by design (see the
	// open question this preserves).
	seenObjDir := make(map[string]bool)
	type gcTask struct {
		owner   project.Project
		packOnly []project.Project
	}
	tasks := make(map[string]*gcTask)
	var order []string

	for _, p := range projects {
		objdir := p.ObjDir()
		if !seenObjDir[objdir] {
			seenObjDir[objdir] = true
			tasks[objdir] = &gcTask{owner: p}
			order = append(order, objdir)
			continue
		}
		t := tasks[objdir]
		if p.GitDir() != t.owner.GitDir() {
			t.packOnly = append(t.packOnly, p)
		}
	}

	units := make([]workerpool.Unit[string], 0, len(order))
	for _, objdir := range order {
		units = append(units, workerpool.Unit[string]{Items: []string{objdir}})
	}

	pool := workerpool.New[string, error](maxInt(jobs, 1))
	var firstErr error
	err := pool.Run(ctx, units,
		func(ctx context.Context, items []string) []error {
			objdir := items[0]
			t := tasks[objdir]
			results := make([]error, 0, 1+len(t.packOnly))
			results = append(results, t.owner.RunGC(ctx, true, maxInt(runtime.NumCPU()/maxInt(jobs, 1), 1)))
			for _, p := range t.packOnly {
				results = append(results, p.PackRefs(ctx))
			}
			return results
		},
		func(results []error) bool {
			for _, e := range results {
				if e != nil && firstErr == nil {
					firstErr = e
				}
			}
			return false
		},
	)
	if err != nil {
		return err
	}
	return firstErr
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
