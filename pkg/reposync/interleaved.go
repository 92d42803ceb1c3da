// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package reposync

import (
	"context"
	"sort"
	"strings"

	"github.com/archmagece/reposync/pkg/pathorder"
	"github.com/archmagece/reposync/pkg/project"
	"github.com/archmagece/reposync/pkg/sshproxy"
	"github.com/archmagece/reposync/pkg/syncerrors"
	"github.com/archmagece/reposync/pkg/syncops"
	"github.com/archmagece/reposync/pkg/syncstate"
	"github.com/archmagece/reposync/pkg/workerpool"
)

// unitResult is the fused fetch+checkout outcome for one project inside
// an interleaved unit.
type unitResult struct {
	relpath      string
	fetchSuccess bool
	checkoutDone bool
	checkoutOK   bool
}

// InterleavedSync runs the per-project fetch+checkout orchestrator
// (§4.9): repeatedly computes the set of not-yet-synced projects,
// resolves them into hierarchical levels, and for each level fuses
// fetch-then-checkout within one worker-pool unit per objdir group.
func InterleavedSync(ctx context.Context, reload ManifestReloader, syncedRelPaths func() map[string]bool, state *syncstate.Store, opts Options) error {
	agg := &syncerrors.Aggregate{FailFast: opts.FailFast}

	proxy, err := sshproxy.Open(opts.SSHDisabled)
	if err != nil {
		return err
	}
	defer proxy.Close()

	var previousRemaining string
	havePrevious := false
	for {
		all, err := reload(ctx)
		if err != nil {
			return err
		}

		synced := syncedRelPaths()
		var remaining []project.Project
		for _, p := range all {
			if !synced[p.RelPath()] {
				remaining = append(remaining, p)
			}
		}

		if len(remaining) == 0 {
			break
		}
		remainingKey := relPathSetKey(remaining)
		if havePrevious && remainingKey == previousRemaining {
			// Stall: two consecutive outer iterations left the identical
			// set of relpaths unsynced, not merely the same count (§4.9,
			// §9 open question 1).
			agg.Generic = append(agg.Generic, errStall(len(remaining)))
			break
		}
		previousRemaining = remainingKey
		havePrevious = true

		if err := runLevels(ctx, remaining, proxy, state, agg, opts); err != nil {
			return err
		}
		if agg.FailFast && agg.HasFailures() {
			break
		}
	}

	return agg.Build()
}

func runLevels(ctx context.Context, projects []project.Project, proxy *sshproxy.Proxy, state *syncstate.Store, agg *syncerrors.Aggregate, opts Options) error {
	entries := make([]pathorder.Entry, 0, len(projects))
	for _, p := range projects {
		entries = append(entries, pathorder.Entry{RelPath: p.RelPath(), Value: p})
	}

	for _, level := range pathorder.Resolve(entries) {
		if agg.FailFast && agg.HasFailures() {
			return nil
		}

		levelProjects := make([]project.Project, 0, len(level))
		for _, e := range level {
			levelProjects = append(levelProjects, e.Value.(project.Project))
		}

		units := workerpool.GroupByKey(levelProjects, func(p project.Project) string { return p.ObjDir() })
		pool := workerpool.New[project.Project, unitResult](opts.Jobs)

		err := pool.Run(ctx, units,
			func(ctx context.Context, items []project.Project) []unitResult {
				results := make([]unitResult, 0, len(items))
				for _, p := range items {
					results = append(results, syncOneFused(ctx, p, proxy, state, opts))
				}
				return results
			},
			func(results []unitResult) bool {
				for _, r := range results {
					if !r.fetchSuccess {
						agg.NetworkFailures = append(agg.NetworkFailures, r.relpath)
						continue
					}
					if r.checkoutDone && !r.checkoutOK {
						agg.CheckoutFailures = append(agg.CheckoutFailures, r.relpath)
					}
				}
				return opts.FailFast && agg.HasFailures()
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// syncOneFused runs fetch then checkout for one project, skipping
// fetch under --local-only and skipping checkout on fetch failure or
// under --network-only (§4.9 per-project behavior).
func syncOneFused(ctx context.Context, p project.Project, proxy *sshproxy.Proxy, state *syncstate.Store, opts Options) unitResult {
	res := unitResult{relpath: p.RelPath()}

	if opts.LocalOnly {
		res.fetchSuccess = true
	} else {
		fetchOpts := opts.FetchOptions
		fetchOpts.SSHProxyEnv = proxy.Env(hostOf(p.RemoteURL()))
		if opts.FetchTracker != nil {
			opts.FetchTracker.Start(p.RelPath())
		}
		fr := syncops.Fetch(ctx, p, fetchOpts)
		if opts.FetchTracker != nil {
			opts.FetchTracker.Finish(p.RelPath())
		}
		res.fetchSuccess = fr.Success
		if fr.Success {
			state.SetFetchTime(p.RelPath())
		}
	}

	if !res.fetchSuccess || opts.NetworkOnly {
		return res
	}

	if opts.CheckoutTracker != nil {
		opts.CheckoutTracker.Start(p.RelPath())
	}
	cr := syncops.Checkout(ctx, p, opts.CheckoutOptions)
	if opts.CheckoutTracker != nil {
		opts.CheckoutTracker.Finish(p.RelPath())
	}
	res.checkoutDone = true
	res.checkoutOK = cr.Success
	if cr.Success {
		state.SetCheckoutTime(p.RelPath())
	}
	return res
}

// relPathSetKey renders the relpaths of projects as a sorted,
// newline-joined string, giving two iterations' pending sets a value
// that is equal only when the sets of relpaths are identical, not
// merely equal in size.
func relPathSetKey(projects []project.Project) string {
	paths := make([]string, len(projects))
	for i, p := range projects {
		paths[i] = p.RelPath()
	}
	sort.Strings(paths)
	return strings.Join(paths, "\n")
}

func errStall(remaining int) error {
	return syncerrors.NewSyncError(stallMessage(remaining))
}

func stallMessage(remaining int) string {
	if remaining == 1 {
		return "sync stalled with 1 project still unsynced"
	}
	return "sync stalled with projects still unsynced"
}
