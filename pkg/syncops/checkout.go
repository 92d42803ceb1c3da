// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package syncops

import (
	"context"
	"time"

	"github.com/archmagece/reposync/pkg/project"
)

// CheckoutResult is one project's outcome from the local half of sync.
type CheckoutResult struct {
	ProjectName string
	RelPath     string
	Start       time.Time
	Finish      time.Time
	Success     bool
	Output      string
	Err         error
}

// Duration returns how long the checkout took.
func (r CheckoutResult) Duration() time.Duration { return r.Finish.Sub(r.Start) }

// Checkout runs the local half of sync for one project: updating the
// working tree to match the revision fetched during the network phase.
// Unlike Fetch, checkout is not retried — a dirty tree or detached head
// is a deterministic condition that a retry cannot resolve (§4.7).
func Checkout(ctx context.Context, p project.Project, opts project.CheckoutOptions) CheckoutResult {
	start := time.Now()
	res := CheckoutResult{ProjectName: p.Name(), RelPath: p.RelPath(), Start: start}

	cr, err := p.CheckoutLocal(ctx, opts)

	res.Finish = time.Now()
	res.Success = err == nil && cr.Success
	res.Output = cr.Output
	if err != nil {
		res.Err = err
	} else {
		res.Err = cr.Err
	}
	return res
}
