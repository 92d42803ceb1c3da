package gcreconcile

import (
	"context"
	"testing"

	"github.com/archmagece/reposync/pkg/project"
)

type fakeProject struct {
	name            string
	objdir          string
	gitdir          string
	useWorktrees    bool
	useAlternates   bool
	preciousObjects bool
	gcRan           bool
	packRefsRan     bool
}

func (f *fakeProject) Name() string        { return f.name }
func (f *fakeProject) RelPath() string     { return f.name }
func (f *fakeProject) ObjDir() string      { return f.objdir }
func (f *fakeProject) GitDir() string      { return f.gitdir }
func (f *fakeProject) RemoteURL() string   { return "" }
func (f *fakeProject) Revision() string    { return "" }
func (f *fakeProject) Groups() string      { return "" }
func (f *fakeProject) CloneFilter() string { return "" }
func (f *fakeProject) UseGitWorktrees() bool { return f.useWorktrees }
func (f *fakeProject) UseAlternates() bool   { return f.useAlternates }
func (f *fakeProject) ExistsOnDisk() bool    { return true }
func (f *fakeProject) FetchNetwork(ctx context.Context, opts project.FetchOptions) (project.FetchResult, error) {
	return project.FetchResult{Success: true}, nil
}
func (f *fakeProject) CheckoutLocal(ctx context.Context, opts project.CheckoutOptions) (project.CheckoutResult, error) {
	return project.CheckoutResult{Success: true}, nil
}
func (f *fakeProject) DeleteWorktree(ctx context.Context, verbose, force bool) error { return nil }
func (f *fakeProject) SetPreciousObjects(ctx context.Context, enabled bool) error {
	f.preciousObjects = enabled
	return nil
}
func (f *fakeProject) RunGC(ctx context.Context, auto bool, packThreads int) error {
	f.gcRan = true
	return nil
}
func (f *fakeProject) PackRefs(ctx context.Context) error {
	f.packRefsRan = true
	return nil
}
func (f *fakeProject) LastFetchTimestamp() int64 { return 0 }

func TestExpectedPreciousObjectsWorktrees(t *testing.T) {
	p := &fakeProject{name: "a", useWorktrees: true}
	count := func(string) int { return 2 }
	if expectedPreciousObjects(p, count) {
		t.Errorf("expected false for linked-worktree project")
	}
}

func TestExpectedPreciousObjectsUniqueName(t *testing.T) {
	p := &fakeProject{name: "a"}
	count := func(string) int { return 1 }
	if expectedPreciousObjects(p, count) {
		t.Errorf("expected false when project name appears once")
	}
}

func TestExpectedPreciousObjectsSharedWithoutAlternates(t *testing.T) {
	p := &fakeProject{name: "a", useAlternates: false}
	count := func(string) int { return 2 }
	if !expectedPreciousObjects(p, count) {
		t.Errorf("expected true for shared name without alternates")
	}
}

func TestExpectedPreciousObjectsSharedWithAlternates(t *testing.T) {
	p := &fakeProject{name: "a", useAlternates: true}
	count := func(string) int { return 2 }
	if expectedPreciousObjects(p, count) {
		t.Errorf("expected false for shared name with alternates")
	}
}

func TestReconcileAppliesPreciousObjects(t *testing.T) {
	a := &fakeProject{name: "dup", objdir: "o1", gitdir: "g1"}
	b := &fakeProject{name: "dup", objdir: "o1", gitdir: "g2"}
	projects := []project.Project{a, b}
	counts := map[string]int{"dup": 2}
	countFn := func(name string) int { return counts[name] }

	if err := Reconcile(context.Background(), projects, countFn, false, 2); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !a.preciousObjects || !b.preciousObjects {
		t.Errorf("expected preciousObjects enabled for both shared-name projects")
	}
	if a.gcRan || b.gcRan {
		t.Errorf("expected no gc when autoGC is false")
	}
}

func TestReconcileRunsGCOncePerObjDir(t *testing.T) {
	a := &fakeProject{name: "a", objdir: "o1", gitdir: "g1"}
	b := &fakeProject{name: "b", objdir: "o1", gitdir: "g2"} // shares objdir, separate gitdir
	projects := []project.Project{a, b}
	countFn := func(string) int { return 1 }

	if err := Reconcile(context.Background(), projects, countFn, true, 2); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !a.gcRan {
		t.Errorf("expected the first project for objdir o1 to run gc")
	}
	if b.gcRan {
		t.Errorf("expected the second project sharing objdir o1 to NOT run gc")
	}
	if !b.packRefsRan {
		t.Errorf("expected the second project sharing objdir o1 to run pack-refs")
	}
}
