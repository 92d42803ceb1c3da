// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package project defines the Project capability contract consumed by
// the sync engine, plus a static, YAML-driven reference source since
// manifest-XML parsing is out of scope for this module.
package project

import "context"

// Project is the capability surface the sync engine depends on. Manifest
// parsing and the concrete git plumbing behind FetchNetwork/CheckoutLocal
// are treated as opaque collaborators; tests substitute a fake
// implementation satisfying this interface.
type Project interface {
	// Name is the stable identifier, unique per manifest.
	Name() string
	// RelPath is the working-tree path relative to the workspace root.
	RelPath() string
	// ObjDir is the absolute path to the git object store backing this
	// project. Multiple projects may share one ObjDir.
	ObjDir() string
	// GitDir is the absolute path to the project's git directory.
	GitDir() string
	// RemoteURL is the upstream URL to fetch from.
	RemoteURL() string
	// Revision is the manifest-pinned revision.
	Revision() string
	// Groups is the manifest group membership string.
	Groups() string
	// CloneFilter is the partial-clone filter spec, if any.
	CloneFilter() string
	// UseGitWorktrees reports whether this project uses linked worktrees.
	UseGitWorktrees() bool
	// UseAlternates reports whether this project's object store is
	// attached via git alternates rather than owning its own objects.
	UseAlternates() bool
	// ExistsOnDisk reports whether the working tree is already present.
	ExistsOnDisk() bool

	// FetchNetwork performs the network half of sync: fetching new
	// objects into ObjDir. Implementations must tolerate concurrent
	// calls across distinct ObjDir values but never across projects
	// sharing one ObjDir (callers guarantee this serialization).
	FetchNetwork(ctx context.Context, opts FetchOptions) (FetchResult, error)

	// CheckoutLocal performs the local half of sync: updating the
	// working tree to Revision. Callers guarantee ancestor relpaths have
	// already completed checkout.
	CheckoutLocal(ctx context.Context, opts CheckoutOptions) (CheckoutResult, error)

	// DeleteWorktree removes a no-longer-manifested project's working
	// tree. force overrides a dirty-tree refusal.
	DeleteWorktree(ctx context.Context, verbose, force bool) error

	// SetPreciousObjects toggles extensions.preciousObjects in the
	// project's git config.
	SetPreciousObjects(ctx context.Context, enabled bool) error
	// RunGC runs git gc against ObjDir. auto requests "--auto" semantics.
	RunGC(ctx context.Context, auto bool, packThreads int) error
	// PackRefs runs git pack-refs against GitDir.
	PackRefs(ctx context.Context) error
	// LastFetchTimestamp returns the unix timestamp of the last
	// successful fetch recorded in this project's git directory, or 0.
	LastFetchTimestamp() int64
}

// FetchOptions carries the per-fetch flags from §6.2 of the sync
// contract down into FetchNetwork.
type FetchOptions struct {
	Quiet               bool
	Verbose             bool
	CurrentBranchOnly   bool
	ForceSync           bool
	CloneBundle         bool
	Tags                bool
	Archive             bool
	OptimizedFetch      bool
	RetryFetches        int
	Prune               bool
	SSHProxyEnv         []string
	CloneFilter         string
	PartialCloneExclude string
	CloneFilterForDepth string
}

// FetchResult is what FetchNetwork reports back to the caller.
type FetchResult struct {
	Success       bool
	RemoteFetched bool
	Output        string
	Err           error
}

// CheckoutOptions carries the per-checkout flags.
type CheckoutOptions struct {
	DetachHead   bool
	ForceSync    bool
	ForceCheckout bool
	ForceRebase  bool
	Verbose      bool
}

// CheckoutResult is what CheckoutLocal reports back to the caller.
type CheckoutResult struct {
	Success bool
	Output  string
	Err     error
}
