package reposync

import (
	"context"
	"testing"

	"github.com/archmagece/reposync/pkg/fetchtimes"
	"github.com/archmagece/reposync/pkg/project"
	"github.com/archmagece/reposync/pkg/syncstate"
)

func noOpReload(projects []project.Project) ManifestReloader {
	return func(ctx context.Context) ([]project.Project, error) { return projects, nil }
}

func TestPhasedSyncHappyPath(t *testing.T) {
	a := newFakeProject("a")
	b := newFakeProject("b")
	projects := []project.Project{a, b}

	times, _ := fetchtimes.Load("")
	state, _ := syncstate.New("", 100)
	nameCount := func(string) int { return 1 }

	opts := Options{JobsNetwork: 2, JobsCheckout: 2, Jobs: 2}
	err := PhasedSync(context.Background(), projects, noOpReload(projects), times, state, nameCount, opts)
	if err != nil {
		t.Fatalf("PhasedSync: %v", err)
	}
	if a.fetchCalls != 1 || b.fetchCalls != 1 {
		t.Errorf("expected one fetch each, got a=%d b=%d", a.fetchCalls, b.fetchCalls)
	}
	if a.checkoutCalls != 1 || b.checkoutCalls != 1 {
		t.Errorf("expected one checkout each, got a=%d b=%d", a.checkoutCalls, b.checkoutCalls)
	}
}

func TestPhasedSyncNetworkOnlySkipsCheckout(t *testing.T) {
	a := newFakeProject("a")
	projects := []project.Project{a}
	times, _ := fetchtimes.Load("")
	state, _ := syncstate.New("", 100)

	opts := Options{JobsNetwork: 1, JobsCheckout: 1, Jobs: 1, NetworkOnly: true}
	err := PhasedSync(context.Background(), projects, noOpReload(projects), times, state, func(string) int { return 1 }, opts)
	if err != nil {
		t.Fatalf("PhasedSync: %v", err)
	}
	if a.checkoutCalls != 0 {
		t.Errorf("expected no checkout under --network-only, got %d calls", a.checkoutCalls)
	}
}

func TestPhasedSyncLocalOnlySkipsFetch(t *testing.T) {
	a := newFakeProject("a")
	projects := []project.Project{a}
	times, _ := fetchtimes.Load("")
	state, _ := syncstate.New("", 100)

	opts := Options{JobsNetwork: 1, JobsCheckout: 1, Jobs: 1, LocalOnly: true}
	err := PhasedSync(context.Background(), projects, noOpReload(projects), times, state, func(string) int { return 1 }, opts)
	if err != nil {
		t.Fatalf("PhasedSync: %v", err)
	}
	if a.fetchCalls != 0 {
		t.Errorf("expected no fetch under --local-only, got %d calls", a.fetchCalls)
	}
	if a.checkoutCalls != 1 {
		t.Errorf("expected checkout to still run, got %d calls", a.checkoutCalls)
	}
}

func TestPhasedSyncAggregatesNetworkFailures(t *testing.T) {
	a := newFakeProject("a")
	a.failFetch = true
	projects := []project.Project{a}
	times, _ := fetchtimes.Load("")
	state, _ := syncstate.New("", 100)

	opts := Options{JobsNetwork: 1, JobsCheckout: 1, Jobs: 1}
	err := PhasedSync(context.Background(), projects, noOpReload(projects), times, state, func(string) int { return 1 }, opts)
	if err == nil {
		t.Fatalf("expected an aggregated error")
	}
	if a.checkoutCalls != 1 {
		t.Errorf("phased checkout phase is independent of per-project fetch result in this orchestrator's level pass, expected it to still run")
	}
}

func TestPhasedSyncFetchesMissingProjectsFromReload(t *testing.T) {
	a := newFakeProject("a")
	b := newFakeProject("b") // appears only after reload (e.g. new submodule)

	times, _ := fetchtimes.Load("")
	state, _ := syncstate.New("", 100)

	calls := 0
	reload := func(ctx context.Context) ([]project.Project, error) {
		calls++
		if calls == 1 {
			return []project.Project{a, b}, nil
		}
		return []project.Project{a, b}, nil
	}

	opts := Options{JobsNetwork: 1, JobsCheckout: 1, Jobs: 1}
	err := PhasedSync(context.Background(), []project.Project{a}, reload, times, state, func(string) int { return 1 }, opts)
	if err != nil {
		t.Fatalf("PhasedSync: %v", err)
	}
	if b.fetchCalls == 0 {
		t.Errorf("expected the missing-project loop to fetch project b")
	}
}
