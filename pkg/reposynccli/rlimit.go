// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package reposynccli

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// jobsWarnThreshold is the effective-jobs ceiling above which a warning
// is surfaced, mirroring the original tool's _JOBS_WARN_THRESHOLD.
const jobsWarnThreshold = 100

// clampJobsToRlimit scales jobs/jobsNetwork/jobsCheckout down to the
// process's RLIMIT_NOFILE soft limit (§4.5): each fetch worker needs
// about 3 file descriptors, so the ceiling is max(1, (soft-5)/3). A
// failure to read the limit leaves the requested counts untouched
// rather than failing the run. Once clamped, it warns at most once if
// any of --jobs, --jobs-network, --jobs-checkout (checked in that
// priority order) still exceeds jobsWarnThreshold.
func clampJobsToRlimit(out io.Writer, jobs, jobsNetwork, jobsCheckout int) (int, int, int) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return jobs, jobsNetwork, jobsCheckout
	}

	ceiling := int((int64(rlimit.Cur) - 5) / 3)
	if ceiling < 1 {
		ceiling = 1
	}

	jobs = minInt(jobs, ceiling)
	jobsNetwork = minInt(jobsNetwork, ceiling)
	jobsCheckout = minInt(jobsCheckout, ceiling)

	named := []struct {
		flag  string
		value int
	}{
		{"--jobs", jobs},
		{"--jobs-network", jobsNetwork},
		{"--jobs-checkout", jobsCheckout},
	}
	for _, n := range named {
		if n.value > jobsWarnThreshold {
			fmt.Fprintf(out, "high job count (%d > %d) specified for %s; this may lead to excessive resource usage or diminishing returns\n", n.value, jobsWarnThreshold, n.flag)
			break
		}
	}

	return jobs, jobsNetwork, jobsCheckout
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
