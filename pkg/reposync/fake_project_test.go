package reposync

import (
	"context"
	"errors"
	"sync"

	"github.com/archmagece/reposync/pkg/project"
)

type fakeProject struct {
	name      string
	relpath   string
	objdir    string
	gitdir    string
	remote    string
	failFetch bool
	failCheckout bool

	mu           sync.Mutex
	fetchCalls   int
	checkoutCalls int
}

func newFakeProject(name string) *fakeProject {
	return &fakeProject{name: name, relpath: name, objdir: "obj-" + name, gitdir: "git-" + name}
}

func (f *fakeProject) Name() string        { return f.name }
func (f *fakeProject) RelPath() string     { return f.relpath }
func (f *fakeProject) ObjDir() string      { return f.objdir }
func (f *fakeProject) GitDir() string      { return f.gitdir }
func (f *fakeProject) RemoteURL() string   { return f.remote }
func (f *fakeProject) Revision() string    { return "main" }
func (f *fakeProject) Groups() string      { return "" }
func (f *fakeProject) CloneFilter() string { return "" }
func (f *fakeProject) UseGitWorktrees() bool { return false }
func (f *fakeProject) UseAlternates() bool   { return false }
func (f *fakeProject) ExistsOnDisk() bool    { return true }

func (f *fakeProject) FetchNetwork(ctx context.Context, opts project.FetchOptions) (project.FetchResult, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	if f.failFetch {
		return project.FetchResult{Success: false}, errors.New("fetch failed")
	}
	return project.FetchResult{Success: true, RemoteFetched: true}, nil
}

func (f *fakeProject) CheckoutLocal(ctx context.Context, opts project.CheckoutOptions) (project.CheckoutResult, error) {
	f.mu.Lock()
	f.checkoutCalls++
	f.mu.Unlock()
	if f.failCheckout {
		return project.CheckoutResult{Success: false}, errors.New("checkout failed")
	}
	return project.CheckoutResult{Success: true}, nil
}

func (f *fakeProject) DeleteWorktree(ctx context.Context, verbose, force bool) error { return nil }
func (f *fakeProject) SetPreciousObjects(ctx context.Context, enabled bool) error     { return nil }
func (f *fakeProject) RunGC(ctx context.Context, auto bool, packThreads int) error    { return nil }
func (f *fakeProject) PackRefs(ctx context.Context) error                            { return nil }
func (f *fakeProject) LastFetchTimestamp() int64                                     { return 0 }
