// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package reposync

import (
	"context"
	"sort"
	"strings"

	"github.com/archmagece/reposync/pkg/fetchtimes"
	"github.com/archmagece/reposync/pkg/gcreconcile"
	"github.com/archmagece/reposync/pkg/pathorder"
	"github.com/archmagece/reposync/pkg/progressmon"
	"github.com/archmagece/reposync/pkg/project"
	"github.com/archmagece/reposync/pkg/sshproxy"
	"github.com/archmagece/reposync/pkg/syncerrors"
	"github.com/archmagece/reposync/pkg/syncops"
	"github.com/archmagece/reposync/pkg/syncstate"
	"github.com/archmagece/reposync/pkg/workerpool"
)

// Options carries the orchestrator knobs derived from the CLI flags
// (§6.2) that both the phased and interleaved orchestrators honor.
type Options struct {
	JobsNetwork  int
	JobsCheckout int
	Jobs         int // interleaved mode uses one pool bound
	FailFast     bool
	NetworkOnly  bool
	LocalOnly    bool
	AutoGC       bool
	SSHDisabled  bool
	ForceRemoveDirty bool

	FetchOptions    project.FetchOptions
	CheckoutOptions project.CheckoutOptions

	ProjectListSubdir string

	// FetchTracker and CheckoutTracker, when set, are marked in-flight
	// around each project's FetchNetwork/CheckoutLocal call so a
	// progressmon.Monitor can render a live status line (§4.13). Either
	// may be nil, in which case that phase reports no progress.
	FetchTracker    *progressmon.Tracker
	CheckoutTracker *progressmon.Tracker
}

// ManifestReloader recomputes the authoritative project list, used by
// the missing-project loop (§4.8 step 5) to discover submodules that
// appeared mid-sync, and by the interleaved orchestrator's outer loop.
type ManifestReloader func(ctx context.Context) ([]project.Project, error)

// NameCounter is re-exported from the project list for gcreconcile's use.
type NameCounter = gcreconcile.NameCounter

// PhasedSync runs the global-fetch-then-global-checkout orchestrator
// (§4.8): fetch every project grouped by objdir, run the missing-project
// discovery loop, reconcile gc/precious-objects and the on-disk project
// list, then checkout level by level.
func PhasedSync(ctx context.Context, projects []project.Project, reload ManifestReloader, times *fetchtimes.Store, state *syncstate.Store, nameCount NameCounter, opts Options) error {
	agg := &syncerrors.Aggregate{FailFast: opts.FailFast}

	proxy, err := sshproxy.Open(opts.SSHDisabled)
	if err != nil {
		return err
	}
	defer proxy.Close()

	if !opts.LocalOnly {
		fetched, err := fetchAllGroupedByObjDir(ctx, projects, times, state, proxy, agg, opts)
		if err != nil {
			return err
		}

		// Missing-project loop: reload until the fetched set stops
		// changing relative to the freshly-discovered project list.
		current := projects
		for {
			if agg.FailFast && agg.HasFailures() {
				break
			}
			fresh, err := reload(ctx)
			if err != nil {
				return err
			}
			var missing []project.Project
			for _, p := range fresh {
				if !fetched[p.ObjDir()] {
					missing = append(missing, p)
				}
			}
			if len(missing) == 0 {
				current = fresh
				break
			}
			newlyFetched, err := fetchAllGroupedByObjDir(ctx, missing, times, state, proxy, agg, opts)
			if err != nil {
				return err
			}
			if len(newlyFetched) == 0 {
				current = fresh
				break
			}
			for k := range newlyFetched {
				fetched[k] = true
			}
			current = fresh
		}
		projects = current
	}

	if opts.NetworkOnly {
		return agg.Build()
	}

	if err := gcreconcile.Reconcile(ctx, projects, nameCount, opts.AutoGC, opts.Jobs); err != nil {
		agg.Generic = append(agg.Generic, err)
	}

	if opts.ProjectListSubdir != "" {
		if err := ReconcileProjectList(ctx, opts.ProjectListSubdir, projects, opts.ForceRemoveDirty, opts.CheckoutOptions.Verbose); err != nil {
			agg.ProjectListErr = err
		}
	}

	if err := checkoutByLevels(ctx, projects, state, agg, opts); err != nil {
		return err
	}

	return agg.Build()
}

// fetchAllGroupedByObjDir sorts projects by descending estimated fetch
// time, groups them by objdir, and fetches each group as one serial
// worker-pool unit. Returns the set of objdirs that completed a fetch
// attempt (success or failure — used only to detect newly-discovered
// objdirs, not to gate retries).
func fetchAllGroupedByObjDir(ctx context.Context, projects []project.Project, times *fetchtimes.Store, state *syncstate.Store, proxy *sshproxy.Proxy, agg *syncerrors.Aggregate, opts Options) (map[string]bool, error) {
	sorted := make([]project.Project, len(projects))
	copy(sorted, projects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return times.Get(sorted[i].Name()) > times.Get(sorted[j].Name())
	})

	units := workerpool.GroupByKey(sorted, func(p project.Project) string { return p.ObjDir() })
	pool := workerpool.New[project.Project, syncops.FetchResult](opts.JobsNetwork)

	fetched := make(map[string]bool)
	objDirOf := make(map[string]string, len(sorted))
	for _, p := range sorted {
		objDirOf[p.RelPath()] = p.ObjDir()
	}

	err := pool.Run(ctx, units,
		func(ctx context.Context, items []project.Project) []syncops.FetchResult {
			results := make([]syncops.FetchResult, 0, len(items))
			for _, p := range items {
				fetchOpts := opts.FetchOptions
				fetchOpts.SSHProxyEnv = proxy.Env(hostOf(p.RemoteURL()))
				if opts.FetchTracker != nil {
					opts.FetchTracker.Start(p.RelPath())
				}
				r := syncops.Fetch(ctx, p, fetchOpts)
				if opts.FetchTracker != nil {
					opts.FetchTracker.Finish(p.RelPath())
				}
				times.Set(p.Name(), r.Duration().Seconds())
				if r.Success {
					state.SetFetchTime(p.RelPath())
				}
				results = append(results, r)
			}
			return results
		},
		func(results []syncops.FetchResult) bool {
			for _, r := range results {
				fetched[objDirOf[r.RelPath]] = true
				if !r.Success {
					agg.NetworkFailures = append(agg.NetworkFailures, r.RelPath)
				}
			}
			return opts.FailFast && agg.HasFailures()
		},
	)
	if err != nil {
		return fetched, err
	}
	return fetched, nil
}

func checkoutByLevels(ctx context.Context, projects []project.Project, state *syncstate.Store, agg *syncerrors.Aggregate, opts Options) error {
	entries := make([]pathorder.Entry, 0, len(projects))
	for _, p := range projects {
		entries = append(entries, pathorder.Entry{RelPath: p.RelPath(), Value: p})
	}

	levels := pathorder.Resolve(entries)
	for _, level := range levels {
		if agg.FailFast && agg.HasFailures() {
			break
		}

		units := make([]workerpool.Unit[project.Project], 0, len(level))
		for _, e := range level {
			units = append(units, workerpool.Unit[project.Project]{Items: []project.Project{e.Value.(project.Project)}})
		}

		pool := workerpool.New[project.Project, syncops.CheckoutResult](opts.JobsCheckout)
		err := pool.Run(ctx, units,
			func(ctx context.Context, items []project.Project) []syncops.CheckoutResult {
				results := make([]syncops.CheckoutResult, 0, len(items))
				for _, p := range items {
					if opts.CheckoutTracker != nil {
						opts.CheckoutTracker.Start(p.RelPath())
					}
					r := syncops.Checkout(ctx, p, opts.CheckoutOptions)
					if opts.CheckoutTracker != nil {
						opts.CheckoutTracker.Finish(p.RelPath())
					}
					if r.Success {
						state.SetCheckoutTime(r.RelPath)
					}
					results = append(results, r)
				}
				return results
			},
			func(results []syncops.CheckoutResult) bool {
				for _, r := range results {
					if !r.Success {
						agg.CheckoutFailures = append(agg.CheckoutFailures, r.RelPath)
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

// hostOf extracts the SSH host portion of a remote URL, or "" for
// non-SSH remotes (sshproxy.Proxy.Env is a no-op for those).
func hostOf(remoteURL string) string {
	if remoteURL == "" {
		return ""
	}
	if scheme, rest, ok := strings.Cut(remoteURL, "://"); ok && scheme == "ssh" {
		return hostFromAuthority(rest)
	}
	if _, rest, ok := strings.Cut(remoteURL, "@"); ok {
		host, _, _ := strings.Cut(rest, ":")
		return host
	}
	return ""
}

func hostFromAuthority(authority string) string {
	authority, _, _ = strings.Cut(authority, "/")
	if _, rest, ok := strings.Cut(authority, "@"); ok {
		authority = rest
	}
	authority, _, _ = strings.Cut(authority, ":")
	return authority
}
