// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package smartsync

import (
	"context"
	"fmt"

	"github.com/google/go-github/v66/github"
	"github.com/hashicorp/go-version"
)

// SuperprojectResolver resolves exact pinned commits for every project
// from a git-submodule-style superproject before the fetch phase
// (§4.14, "Superproject" in the glossary). The self-update decision is
// made separately by SelfUpdateChecker.
type SuperprojectResolver interface {
	// ResolvePinnedRevisions returns relpath -> pinned commit SHA for
	// every submodule entry found at ref in the superproject.
	ResolvePinnedRevisions(ctx context.Context, ref string) (map[string]string, error)
}

// GitHubSuperprojectResolver reads submodule pointers from a GitHub
// repository's tree, the closest equivalent GitHub exposes to "list
// submodules".
type GitHubSuperprojectResolver struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubSuperprojectResolver creates a resolver for owner/repo using
// an already-authenticated client supplied by the caller. The client is
// used as given; no retrying transport is added here.
func NewGitHubSuperprojectResolver(client *github.Client, owner, repo string) *GitHubSuperprojectResolver {
	return &GitHubSuperprojectResolver{client: client, owner: owner, repo: repo}
}

// ResolvePinnedRevisions implements SuperprojectResolver by walking the
// tree at ref recursively and collecting every entry of type "commit"
// (the tree-entry type git uses to record a submodule's pinned SHA).
func (r *GitHubSuperprojectResolver) ResolvePinnedRevisions(ctx context.Context, ref string) (map[string]string, error) {
	tree, _, err := r.client.Git.GetTree(ctx, r.owner, r.repo, ref, true)
	if err != nil {
		return nil, fmt.Errorf("get superproject tree %s/%s@%s: %w", r.owner, r.repo, ref, err)
	}

	pinned := make(map[string]string)
	for _, entry := range tree.Entries {
		if entry.GetType() == "commit" {
			pinned[entry.GetPath()] = entry.GetSHA()
		}
	}
	return pinned, nil
}

// SelfUpdateChecker compares the running binary's version against the
// latest release the forge advertises, deciding whether a
// RepoChangedException-style restart is required (§7, §6.2
// --repo-upgraded / REPO_SKIP_SELF_UPDATE).
type SelfUpdateChecker struct {
	client *github.Client
	owner  string
	repo   string
}

// NewSelfUpdateChecker creates a checker reading releases from
// owner/repo.
func NewSelfUpdateChecker(client *github.Client, owner, repo string) *SelfUpdateChecker {
	return &SelfUpdateChecker{client: client, owner: owner, repo: repo}
}

// UpdateRequired reports whether the latest release tag is newer than
// currentVersion (a semver string, e.g. "0.1.0").
func (c *SelfUpdateChecker) UpdateRequired(ctx context.Context, currentVersion string) (bool, string, error) {
	release, _, err := c.client.Repositories.GetLatestRelease(ctx, c.owner, c.repo)
	if err != nil {
		return false, "", fmt.Errorf("get latest release %s/%s: %w", c.owner, c.repo, err)
	}
	return compareVersions(currentVersion, release.GetTagName())
}

// compareVersions reports whether latestTag is a newer semver than
// currentVersion, isolated from the network call so it can be tested
// directly.
func compareVersions(currentVersion, latestTag string) (bool, string, error) {
	latest, err := version.NewVersion(latestTag)
	if err != nil {
		return false, "", fmt.Errorf("parse latest release version %q: %w", latestTag, err)
	}
	current, err := version.NewVersion(currentVersion)
	if err != nil {
		return false, "", fmt.Errorf("parse current version %q: %w", currentVersion, err)
	}
	return latest.GreaterThan(current), latestTag, nil
}
