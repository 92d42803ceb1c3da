// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package syncops wraps the opaque per-project FetchNetwork/CheckoutLocal
// contract (§6.1) with timing capture, retry, and the result-record shape
// the orchestrators persist into the fetch-time and sync-state stores.
package syncops

import (
	"context"
	"time"

	"github.com/archmagece/reposync/pkg/project"
)

// FetchResult is one project's outcome from the network half of sync.
type FetchResult struct {
	ProjectName   string
	RelPath       string
	Start         time.Time
	Finish        time.Time
	Success       bool
	RemoteFetched bool
	Output        string
	Err           error
}

// Duration returns how long the fetch took.
func (r FetchResult) Duration() time.Duration { return r.Finish.Sub(r.Start) }

// Fetch runs the network half of sync for one project, retrying up to
// opts.RetryFetches additional times on failure with a linear backoff,
// matching the teacher's clone/update retry loop. Errors are captured
// into the result, never returned, so a failing project does not abort
// sibling work in the same worker unit (§7 propagation policy).
func Fetch(ctx context.Context, p project.Project, opts project.FetchOptions) FetchResult {
	start := time.Now()
	res := FetchResult{ProjectName: p.Name(), RelPath: p.RelPath(), Start: start}

	attempts := opts.RetryFetches + 1
	if attempts < 1 {
		attempts = 1
	}

	var fr project.FetchResult
	var err error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}

		fr, err = p.FetchNetwork(ctx, opts)
		if err == nil && fr.Success {
			break
		}
		if i < attempts-1 {
			time.Sleep(time.Duration(i+1) * 300 * time.Millisecond)
		}
	}

	res.Finish = time.Now()
	res.Success = err == nil && fr.Success
	res.RemoteFetched = fr.RemoteFetched
	res.Output = fr.Output
	if err != nil {
		res.Err = err
	} else {
		res.Err = fr.Err
	}
	return res
}
