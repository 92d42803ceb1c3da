// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package workerpool is a bounded parallel executor over "units" of
// work, each unit itself a serial sequence of items (e.g. projects
// sharing one object directory). It mirrors golang.org/x/sync/errgroup's
// bounded fan-out, generalized with a per-unit callback that can close
// the pool (fail-fast) and a per-worker initializer hook.
package workerpool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Unit is one group of work items that must run serially, in order,
// within a single goroutine. Distinct units may run concurrently with
// each other, bounded by Pool's jobs limit.
type Unit[T any] struct {
	Items []T
}

// WorkerFunc processes one unit and returns its results. It must be pure
// with respect to shared state beyond what ctx carries — workers read a
// common immutable context, never globals (see package doc).
type WorkerFunc[T any, R any] func(ctx context.Context, items []T) []R

// Callback runs on the worker goroutine that processed a unit, after the
// unit completes; calls are serialized with each other. Returning true requests the pool stop dispatching further units
// (fail-fast); in-flight units are allowed to finish.
type Callback[R any] func(results []R) (stop bool)

// Pool runs units with bounded concurrency, chunksize 1 (one unit per
// worker slot at a time, so a slow unit never blocks fast ones behind
// it in the same slot beyond its own completion).
type Pool[T any, R any] struct {
	Jobs        int
	Initializer func(workerID int)

	sem      *semaphore.Weighted
	closedMu sync.Mutex
	closed   bool
}

// New creates a Pool bounded to jobs concurrent units. jobs < 1 is
// clamped to 1.
func New[T any, R any](jobs int) *Pool[T, R] {
	if jobs < 1 {
		jobs = 1
	}
	return &Pool[T, R]{Jobs: jobs, sem: semaphore.NewWeighted(int64(jobs))}
}

// Run dispatches units to worker goroutines, invoking fn for each unit
// and cb after each unit completes. Run blocks until every accepted unit
// has completed (successfully or not) and returns the first error
// encountered, if any. Once cb requests stop, no further units are
// dispatched, but units already accepted run to completion.
func (p *Pool[T, R]) Run(ctx context.Context, units []Unit[T], fn WorkerFunc[T, R], cb Callback[R]) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex // guards cb invocation ordering and closed flag
	var firstErr error
	workerID := 0

	for _, unit := range units {
		if p.isClosed() {
			break
		}
		if err := p.sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}
		if p.isClosed() {
			p.sem.Release(1)
			break
		}

		wg.Add(1)
		id := workerID
		workerID++
		go func(unit Unit[T], id int) {
			defer wg.Done()
			defer p.sem.Release(1)

			if p.Initializer != nil {
				p.Initializer(id)
			}

			results := fn(ctx, unit.Items)

			mu.Lock()
			defer mu.Unlock()
			if cb != nil && cb(results) {
				p.close()
			}
		}(unit, id)
	}

	wg.Wait()
	return firstErr
}

func (p *Pool[T, R]) close() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()
	p.closed = true
}

func (p *Pool[T, R]) isClosed() bool {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()
	return p.closed
}

// GroupByKey partitions items into units, grouping every item sharing
// the same key string into one serial unit (e.g. shared objdir), with
// chunksize 1 so no unit spans more than one key's items unless the
// caller already merged them.
func GroupByKey[T any](items []T, keyFn func(T) string) []Unit[T] {
	order := make([]string, 0)
	groups := make(map[string][]T)
	for _, item := range items {
		k := keyFn(item)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], item)
	}

	units := make([]Unit[T], 0, len(order))
	for _, k := range order {
		units = append(units, Unit[T]{Items: groups[k]})
	}
	return units
}
