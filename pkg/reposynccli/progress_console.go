// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package reposynccli

import (
	"fmt"
	"io"

	"github.com/archmagece/reposync/pkg/progressmon"
)

// newProgressSink builds the Sink named by mode ("plain" or "tui"),
// writing the plain variant to out. An unrecognized mode falls back to
// plain rather than failing the run over a cosmetic flag.
func newProgressSink(mode string, out io.Writer) progressmon.Sink {
	if mode == "tui" {
		return progressmon.NewTUISink()
	}
	return progressmon.NewConsoleSink(out)
}

// reportFailure writes a one-line failure summary to out, used when a
// sync run returns a non-nil error from the orchestrator.
func reportFailure(out io.Writer, err error) {
	fmt.Fprintf(out, "sync failed: %v\n", err)
}
