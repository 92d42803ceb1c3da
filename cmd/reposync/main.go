// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Command reposync drives the multi-repository sync engine from the
// command line.
package main

import (
	"fmt"
	"os"

	reposyncroot "github.com/archmagece/reposync"
	"github.com/archmagece/reposync/pkg/reposynccli"
)

func main() {
	factory := reposynccli.CommandFactory{
		Version:   reposyncroot.Version,
		Commit:    reposyncroot.GitCommit,
		BuildDate: reposyncroot.BuildDate,
	}

	root := factory.NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
