package syncops

import (
	"context"
	"errors"
	"testing"

	"github.com/archmagece/reposync/pkg/project"
)

type fakeFetchProject struct {
	name     string
	attempts int
	failN    int // number of leading calls that fail
	err      error
}

func (f *fakeFetchProject) Name() string        { return f.name }
func (f *fakeFetchProject) RelPath() string     { return f.name }
func (f *fakeFetchProject) ObjDir() string      { return "" }
func (f *fakeFetchProject) GitDir() string      { return "" }
func (f *fakeFetchProject) RemoteURL() string   { return "" }
func (f *fakeFetchProject) Revision() string    { return "" }
func (f *fakeFetchProject) Groups() string      { return "" }
func (f *fakeFetchProject) CloneFilter() string { return "" }
func (f *fakeFetchProject) UseGitWorktrees() bool { return false }
func (f *fakeFetchProject) UseAlternates() bool   { return false }
func (f *fakeFetchProject) ExistsOnDisk() bool    { return true }
func (f *fakeFetchProject) FetchNetwork(ctx context.Context, opts project.FetchOptions) (project.FetchResult, error) {
	f.attempts++
	if f.attempts <= f.failN {
		return project.FetchResult{Success: false}, f.err
	}
	return project.FetchResult{Success: true, RemoteFetched: true}, nil
}
func (f *fakeFetchProject) CheckoutLocal(ctx context.Context, opts project.CheckoutOptions) (project.CheckoutResult, error) {
	return project.CheckoutResult{Success: true}, nil
}
func (f *fakeFetchProject) DeleteWorktree(ctx context.Context, verbose, force bool) error { return nil }
func (f *fakeFetchProject) SetPreciousObjects(ctx context.Context, enabled bool) error     { return nil }
func (f *fakeFetchProject) RunGC(ctx context.Context, auto bool, packThreads int) error    { return nil }
func (f *fakeFetchProject) PackRefs(ctx context.Context) error                             { return nil }
func (f *fakeFetchProject) LastFetchTimestamp() int64                                      { return 0 }

func TestFetchSucceedsFirstTry(t *testing.T) {
	p := &fakeFetchProject{name: "a"}
	res := Fetch(context.Background(), p, project.FetchOptions{})
	if !res.Success || !res.RemoteFetched {
		t.Fatalf("expected success, got %+v", res)
	}
	if p.attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", p.attempts)
	}
}

func TestFetchRetriesOnFailure(t *testing.T) {
	p := &fakeFetchProject{name: "a", failN: 2, err: errors.New("network down")}
	res := Fetch(context.Background(), p, project.FetchOptions{RetryFetches: 3})
	if !res.Success {
		t.Fatalf("expected eventual success, got %+v", res)
	}
	if p.attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", p.attempts)
	}
}

func TestFetchExhaustsRetriesAndCapturesError(t *testing.T) {
	p := &fakeFetchProject{name: "a", failN: 99, err: errors.New("network down")}
	res := Fetch(context.Background(), p, project.FetchOptions{RetryFetches: 2})
	if res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Err == nil {
		t.Errorf("expected a captured error")
	}
	if p.attempts != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", p.attempts)
	}
}

func TestFetchRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeFetchProject{name: "a"}
	res := Fetch(ctx, p, project.FetchOptions{RetryFetches: 5})
	if res.Success {
		t.Fatalf("expected failure on cancelled context")
	}
	if p.attempts != 0 {
		t.Errorf("expected no attempts against a cancelled context, got %d", p.attempts)
	}
}
