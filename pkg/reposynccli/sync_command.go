// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package reposynccli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/archmagece/reposync/internal/config"
	"github.com/archmagece/reposync/pkg/fetchtimes"
	"github.com/archmagece/reposync/pkg/gcreconcile"
	"github.com/archmagece/reposync/pkg/progressmon"
	"github.com/archmagece/reposync/pkg/project"
	"github.com/archmagece/reposync/pkg/reposync"
	"github.com/archmagece/reposync/pkg/smartsync"
	"github.com/archmagece/reposync/pkg/syncstate"
)

// syncFlags holds every §6.2 flag var, bound directly by newSyncCmd.
type syncFlags struct {
	jobs, jobsNetwork, jobsCheckout int
	interleaved                     bool
	networkOnly, localOnly          bool
	detach                          bool
	currentBranch, noCurrentBranch  bool
	forceSync, forceCheckout        bool
	forceRemoveDirty, forceBroken   bool
	rebase, failFast                bool
	prune, noPrune                  bool
	tags, noTags                    bool
	cloneBundle, noCloneBundle      bool
	optimizedFetch                  bool
	retryFetches                    int
	fetchSubmodules                 bool
	manifestName                    string
	smartSync                       bool
	smartTag                        string
	manifestUser, manifestPass      string
	autoGC, noAutoGC                bool
	useSuperproject, noUseSuperproject bool
	noManifestUpdate                bool
	noRepoVerify, repoUpgraded      bool
	progressMode                    string
	configPath, workRoot, reposRoot string
}

func (f CommandFactory) newSyncCmd() *cobra.Command {
	var fl syncFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch and checkout every configured project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, f, fl)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&fl.jobs, "jobs", "j", 0, "base concurrency; seeds network and checkout job counts")
	flags.IntVar(&fl.jobsNetwork, "jobs-network", 0, "override network concurrency (ignored in interleaved mode)")
	flags.IntVar(&fl.jobsCheckout, "jobs-checkout", 0, "override checkout concurrency (ignored in interleaved mode)")
	flags.BoolVar(&fl.interleaved, "interleaved", false, "fetch and checkout each project as one unit instead of two global phases")
	flags.BoolVarP(&fl.networkOnly, "network-only", "n", false, "stop after the fetch phase")
	flags.BoolVarP(&fl.localOnly, "local-only", "l", false, "skip all network work")
	flags.BoolVarP(&fl.detach, "detach", "d", false, "checkout detached at the manifest revision")
	flags.BoolVarP(&fl.currentBranch, "current-branch", "c", false, "restrict fetch to the tracked branch")
	flags.BoolVar(&fl.noCurrentBranch, "no-current-branch", false, "fetch every branch, not just the tracked one")
	flags.BoolVar(&fl.forceSync, "force-sync", false, "overwrite local changes on fetch/checkout conflicts")
	flags.BoolVar(&fl.forceCheckout, "force-checkout", false, "discard local changes on checkout")
	flags.BoolVar(&fl.forceRemoveDirty, "force-remove-dirty", false, "remove a dirty worktree no longer in the manifest without asking")
	flags.BoolVar(&fl.forceBroken, "force-broken", false, "obsolete, has no effect")
	flags.BoolVar(&fl.rebase, "rebase", false, "rebase local commits onto the new upstream revision")
	flags.BoolVar(&fl.failFast, "fail-fast", false, "stop dispatching new work on the first failure")
	flags.BoolVar(&fl.prune, "prune", true, "prune remote-tracking refs that no longer exist upstream")
	flags.BoolVar(&fl.noPrune, "no-prune", false, "disable pruning")
	flags.BoolVar(&fl.tags, "tags", false, "fetch tags")
	flags.BoolVar(&fl.noTags, "no-tags", false, "skip tags")
	flags.BoolVar(&fl.cloneBundle, "clone-bundle", false, "use a clone.bundle file when available")
	flags.BoolVar(&fl.noCloneBundle, "no-clone-bundle", false, "never use a clone.bundle file")
	flags.BoolVar(&fl.optimizedFetch, "optimized-fetch", false, "skip fetching a project whose objects are already fresh")
	flags.IntVar(&fl.retryFetches, "retry-fetches", 0, "retry attempts for a failed network fetch")
	flags.BoolVar(&fl.fetchSubmodules, "fetch-submodules", false, "also fetch submodules of each project")
	flags.StringVarP(&fl.manifestName, "manifest-name", "m", "", "use an alternate project config file for this run")
	flags.BoolVarP(&fl.smartSync, "smart-sync", "s", false, "resolve the manifest from the configured manifest server")
	flags.StringVarP(&fl.smartTag, "smart-tag", "t", "", "resolve a specific smart-sync tag from the manifest server")
	flags.StringVarP(&fl.manifestUser, "manifest-user", "u", "", "manifest-server username (requires -p)")
	flags.StringVarP(&fl.manifestPass, "manifest-pass", "p", "", "manifest-server password/token (requires -u)")
	flags.BoolVar(&fl.autoGC, "auto-gc", false, "run git gc --auto after fetching")
	flags.BoolVar(&fl.noAutoGC, "no-auto-gc", false, "skip git gc")
	flags.BoolVar(&fl.useSuperproject, "use-superproject", false, "resolve pinned revisions from the configured superproject (implies -c)")
	flags.BoolVar(&fl.noUseSuperproject, "no-use-superproject", false, "ignore the superproject even if configured")
	flags.BoolVar(&fl.noManifestUpdate, "no-manifest-update", false, "skip the self-update version check")
	flags.BoolVar(&fl.noRepoVerify, "no-repo-verify", false, "skip verifying the sync engine's own signature before self-update")
	flags.BoolVar(&fl.repoUpgraded, "repo-upgraded", false, "marks this invocation as the post-self-update re-exec, skipping the check again")
	flags.StringVar(&fl.progressMode, "progress", "plain", "progress rendering: plain or tui")
	flags.StringVar(&fl.configPath, "config", ".reposync.yaml", "path to the project config file")
	flags.StringVar(&fl.workRoot, "work-root", ".", "workspace root that project paths are relative to")
	flags.StringVar(&fl.reposRoot, "repos-root", ".repo", "directory holding object stores, gitdirs, and sync state")

	return cmd
}

func runSync(cmd *cobra.Command, f CommandFactory, fl syncFlags) error {
	flags := cmd.Flags()

	if err := validateMutualExclusions(flags); err != nil {
		return err
	}
	if fl.forceBroken {
		fmt.Fprintln(cmd.ErrOrStderr(), "--force-broken is obsolete and has no effect")
	}

	configPath := fl.configPath
	if flags.Changed("manifest-name") {
		configPath = fl.manifestName
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		if flags.Changed("config") || flags.Changed("manifest-name") {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = config.LoadDefault()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reposRoot := fl.reposRoot
	if !filepath.IsAbs(reposRoot) {
		reposRoot = filepath.Join(fl.workRoot, reposRoot)
	}

	// The override manifest path is a persisted cross-invocation state
	// file (§6.3): written on smart-sync, consulted to resolve this same
	// run's project set, and removed on the next ordinary (non-smart)
	// sync so a later plain run doesn't keep reusing a stale override.
	overridePath := filepath.Join(reposRoot, "smart_sync_override.xml")
	if fl.smartSync || fl.smartTag != "" {
		if err := resolveSmartSyncManifest(ctx, cmd, cfg, overridePath, fl); err != nil {
			return err
		}
		overrideCfg, err := config.Load(overridePath)
		if err != nil {
			return fmt.Errorf("load smart-sync manifest: %w", err)
		}
		cfg = overrideCfg
	} else if _, err := os.Stat(overridePath); err == nil {
		if err := os.Remove(overridePath); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to remove existing smart sync override manifest: %v\n", err)
		}
	}

	currentBranch := fl.currentBranch
	if fl.noCurrentBranch {
		currentBranch = false
	}
	useSuperproject := fl.useSuperproject
	if fl.noUseSuperproject {
		useSuperproject = false
	}
	if useSuperproject {
		currentBranch = true
	}

	parallel := cfg.Sync.Parallel
	if flags.Changed("jobs") {
		parallel = fl.jobs
	}
	if parallel <= 0 {
		parallel = 1
	}
	jobsNetwork := parallel
	if flags.Changed("jobs-network") {
		jobsNetwork = fl.jobsNetwork
	}
	jobsCheckout := parallel
	if flags.Changed("jobs-checkout") {
		jobsCheckout = fl.jobsCheckout
	}
	parallel, jobsNetwork, jobsCheckout = clampJobsToRlimit(cmd.ErrOrStderr(), parallel, jobsNetwork, jobsCheckout)

	strategy := cfg.Sync.Strategy
	if fl.interleaved {
		strategy = "interleaved"
	}

	prune := cfg.Sync.Prune
	if flags.Changed("prune") {
		prune = fl.prune
	}
	if fl.noPrune {
		prune = false
	}
	tags := cfg.Sync.Tags
	if flags.Changed("tags") {
		tags = fl.tags
	}
	if fl.noTags {
		tags = false
	}
	cloneBundle := cfg.Sync.CloneBundle
	if flags.Changed("clone-bundle") {
		cloneBundle = fl.cloneBundle
	}
	if fl.noCloneBundle {
		cloneBundle = false
	}
	autoGC := cfg.Sync.AutoGC
	if flags.Changed("auto-gc") {
		autoGC = fl.autoGC
	}
	if fl.noAutoGC {
		autoGC = false
	}
	retryFetches := cfg.Sync.RetryFetches
	if flags.Changed("retry-fetches") {
		retryFetches = fl.retryFetches
	}

	if !fl.noManifestUpdate && !fl.repoUpgraded {
		maybeWarnSelfUpdate(ctx, cmd, cfg, f.Version, fl.noRepoVerify)
	}

	authMap := buildAuthMap(cfg, fl.manifestPass)
	specs := cfg.ProjectSpecs(fl.workRoot, reposRoot, authMap)

	if useSuperproject {
		applySuperprojectPins(ctx, cmd, cfg, fl.workRoot, specs)
	}

	source := project.NewStaticManifestSource(specs, nil)
	projects := source.Projects()

	nameCounts := make(map[string]int, len(projects))
	for _, p := range projects {
		nameCounts[p.Name()]++
	}
	nameCounter := func(name string) int { return nameCounts[name] }

	times, err := fetchtimes.Load(filepath.Join(reposRoot, "fetch_times.json"))
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	state, err := syncstate.New(filepath.Join(reposRoot, "sync_state.json"), now)
	if err != nil {
		return err
	}

	tracker := progressmon.NewTracker("sync")
	sink := newProgressSink(fl.progressMode, cmd.OutOrStdout())
	monitor := progressmon.NewMonitor(tracker, sink, 0)
	monitor.Start()

	opts := reposync.Options{
		JobsNetwork:      jobsNetwork,
		JobsCheckout:     jobsCheckout,
		Jobs:             parallel,
		FailFast:         fl.failFast,
		NetworkOnly:      fl.networkOnly,
		LocalOnly:        fl.localOnly,
		AutoGC:           autoGC,
		SSHDisabled:      config.SSHMultiplexDisabled(),
		ForceRemoveDirty: fl.forceRemoveDirty,
		FetchOptions: project.FetchOptions{
			CurrentBranchOnly: currentBranch,
			ForceSync:         fl.forceSync,
			CloneBundle:       cloneBundle,
			Tags:              tags,
			OptimizedFetch:    fl.optimizedFetch,
			RetryFetches:      retryFetches,
			Prune:             prune,
		},
		CheckoutOptions: project.CheckoutOptions{
			DetachHead:    fl.detach,
			ForceSync:     fl.forceSync,
			ForceCheckout: fl.forceCheckout,
			ForceRebase:   fl.rebase,
		},
		ProjectListSubdir: reposRoot,
		FetchTracker:      tracker,
		CheckoutTracker:   tracker,
	}

	var syncErr error
	if strategy == "interleaved" {
		syncedRelPaths := func() map[string]bool {
			out := make(map[string]bool, len(projects))
			for _, p := range projects {
				entry, ok := state.Entry(p.RelPath())
				if !ok {
					continue
				}
				if opts.NetworkOnly {
					if entry.LastFetch == now {
						out[p.RelPath()] = true
					}
				} else if entry.LastCheckout == now {
					out[p.RelPath()] = true
				}
			}
			return out
		}
		syncErr = reposync.InterleavedSync(ctx, source.Reload, syncedRelPaths, state, opts)
		if syncErr == nil {
			if err := gcreconcile.Reconcile(ctx, projects, nameCounter, autoGC, parallel); err != nil {
				syncErr = err
			}
		}
		if syncErr == nil {
			rctx := reposync.WithRemovedProjectResolver(ctx, removedProjectResolver)
			syncErr = reposync.ReconcileProjectList(rctx, reposRoot, projects, fl.forceRemoveDirty, false)
		}
	} else {
		rctx := reposync.WithRemovedProjectResolver(ctx, removedProjectResolver)
		syncErr = reposync.PhasedSync(rctx, projects, source.Reload, times, state, nameCounter, opts)
	}

	monitor.Stop()
	_ = times.Save()
	_ = state.Save()

	if syncErr != nil {
		reportFailure(cmd.ErrOrStderr(), syncErr)
		return syncErr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "synced %d projects\n", len(projects))
	return nil
}

// removedProjectResolver looks up a Project handle for a relpath that
// dropped out of the manifest. Since the static config *is* the
// manifest, a removed project's object-store metadata is gone the
// moment its entry is deleted; DeleteWorktree only ever touches
// RelPath (a status check and a directory removal), so a bare spec
// carrying just the path is enough to act on it.
func removedProjectResolver(relpath string) (project.Project, bool) {
	return project.NewGitProject(project.ProjectSpec{Name: relpath, RelPath: relpath}, nil), true
}

func validateMutualExclusions(flags interface{ Changed(string) bool }) error {
	pairs := [][2]string{
		{"network-only", "detach"},
		{"network-only", "local-only"},
		{"manifest-name", "smart-sync"},
		{"manifest-name", "smart-tag"},
		{"smart-sync", "smart-tag"},
	}
	for _, p := range pairs {
		if flags.Changed(p[0]) && flags.Changed(p[1]) {
			return fmt.Errorf("-%s and -%s are mutually exclusive", p[0], p[1])
		}
	}
	if flags.Changed("manifest-user") != flags.Changed("manifest-pass") {
		return fmt.Errorf("-u/--manifest-user and -p/--manifest-pass must be given together")
	}
	if (flags.Changed("manifest-user") || flags.Changed("manifest-pass")) &&
		!(flags.Changed("smart-sync") || flags.Changed("smart-tag")) {
		return fmt.Errorf("-u/-p require -s/--smart-sync or -t/--smart-tag")
	}
	return nil
}

// resolveSmartSyncManifest fetches the manifest payload from the
// configured manifest server and atomically writes it to overridePath.
// The payload is YAML in the same shape as a project config file (§4.14:
// a forge repository stands in for the original tool's XML-RPC manifest
// server), reusing config.Load's parser on the caller's side rather than
// introducing a second manifest format.
func resolveSmartSyncManifest(ctx context.Context, cmd *cobra.Command, cfg *config.Config, overridePath string, fl syncFlags) error {
	owner, repo, path := cfg.Sync.ManifestOwner, cfg.Sync.ManifestRepo, cfg.Sync.ManifestPath
	if owner == "" || repo == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "smart-sync requested but no manifest_owner/manifest_repo configured; skipping manifest-server resolution")
		return nil
	}
	if path == "" {
		path = "manifests/default.yaml"
	}

	token := fl.manifestPass
	if token == "" {
		token = cfg.GitHub.Token
	}
	client := smartsync.NewGitHubManifestServer(token, smartsync.ManifestRef{Owner: owner, Repo: repo, Path: path})

	target := fl.smartTag
	if target == "" {
		target = config.SmartSyncTarget()
	}

	data, err := client.FetchManifest(ctx, target)
	if err != nil {
		return fmt.Errorf("smart-sync: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(overridePath), 0o755); err != nil {
		return err
	}
	tmp := overridePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, overridePath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "resolved smart-sync manifest to %s\n", overridePath)
	return nil
}

// buildAuthMap derives per-project credentials from the configured forge
// tokens, keyed by project name. An explicit manifest-server password
// (-p) takes priority over every per-forge token when set, matching the
// original tool's treatment of -u/-p as a blanket override.
func buildAuthMap(cfg *config.Config, manifestPass string) map[string]project.AuthConfig {
	out := make(map[string]project.AuthConfig, len(cfg.Projects))
	for _, e := range cfg.Projects {
		if manifestPass != "" {
			out[e.Name] = project.AuthConfig{Token: manifestPass}
			continue
		}
		switch {
		case strings.Contains(e.RemoteURL, "github.com") && cfg.GitHub.Token != "":
			out[e.Name] = project.AuthConfig{Token: cfg.GitHub.Token, Provider: "github"}
		case strings.Contains(e.RemoteURL, "gitlab.com") && cfg.GitLab.Token != "":
			out[e.Name] = project.AuthConfig{Token: cfg.GitLab.Token, Provider: "gitlab"}
		case cfg.Gitea.BaseURL != "" && strings.Contains(e.RemoteURL, hostOnly(cfg.Gitea.BaseURL)) && cfg.Gitea.Token != "":
			out[e.Name] = project.AuthConfig{Token: cfg.Gitea.Token, Provider: "gitea"}
		}
	}
	return out
}

func hostOnly(rawURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if idx := strings.Index(trimmed, "/"); idx != -1 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

// maybeWarnSelfUpdate performs a best-effort check against the
// configured manifest repository's latest release, printing a warning
// rather than failing the run if the check itself fails (§6.2
// --no-repo-verify/--repo-upgraded, §4.14 self-update hook).
func maybeWarnSelfUpdate(ctx context.Context, cmd *cobra.Command, cfg *config.Config, version string, skipVerify bool) {
	if version == "" || cfg.Sync.ManifestOwner == "" || cfg.Sync.ManifestRepo == "" {
		return
	}
	client := githubClientFor(cfg.GitHub.Token)
	checker := smartsync.NewSelfUpdateChecker(client, cfg.Sync.ManifestOwner, cfg.Sync.ManifestRepo)
	needsUpdate, latest, err := checker.UpdateRequired(ctx, version)
	if err != nil || !needsUpdate {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "a newer release is available: %s (current %s)\n", latest, version)
	if skipVerify {
		fmt.Fprintln(cmd.ErrOrStderr(), "skipping signature verification for the new release (--no-repo-verify)")
	}
}

// applySuperprojectPins resolves pinned revisions from the configured
// superproject (reusing the smart-sync manifest location, §4.14) and
// overrides each spec's Revision with its pinned commit when found. A
// resolution failure is logged and ignored: specs keep their
// manifest-declared revisions rather than failing the whole run.
func applySuperprojectPins(ctx context.Context, cmd *cobra.Command, cfg *config.Config, workRoot string, specs []project.ProjectSpec) {
	owner, repo := cfg.Sync.ManifestOwner, cfg.Sync.ManifestRepo
	if owner == "" || repo == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "--use-superproject requested but no manifest_owner/manifest_repo configured; keeping manifest revisions")
		return
	}

	client := githubClientFor(cfg.GitHub.Token)
	resolver := smartsync.NewGitHubSuperprojectResolver(client, owner, repo)
	pinned, err := resolver.ResolvePinnedRevisions(ctx, "HEAD")
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "superproject resolution failed, keeping manifest revisions: %v\n", err)
		return
	}

	for i := range specs {
		relPath, err := filepath.Rel(workRoot, specs[i].RelPath)
		if err != nil {
			continue
		}
		if rev, ok := pinned[relPath]; ok {
			specs[i].Revision = rev
		}
	}
}

func githubClientFor(token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(context.Background(), ts))
}
