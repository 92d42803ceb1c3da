// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package reposynccli builds the Cobra command tree around the sync
// engine: a single "sync" command wiring every §6.2 flag into
// pkg/reposync's two orchestrators, plus a "version" command.
package reposynccli

import (
	"github.com/spf13/cobra"

	"github.com/archmagece/reposync/pkg/cliutil"
)

// CommandFactory builds a Cobra command tree that can be embedded into
// other CLIs or run standalone via cmd/reposync.
type CommandFactory struct {
	Use   string
	Short string

	Version   string
	Commit    string
	BuildDate string
}

// NewRootCmd returns a root command suitable for standalone binary usage.
func (f CommandFactory) NewRootCmd() *cobra.Command {
	use := f.Use
	if use == "" {
		use = "reposync"
	}
	short := f.Short
	if short == "" {
		short = "Multi-repository git sync engine"
	}

	root := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: short + "\n\n" + cliutil.QuickStartHelp(`  # Sync every project in .reposync.yaml under the current directory
  reposync sync

  # Fetch only, skipping the checkout phase
  reposync sync --network-only

  # Use the per-project interleaved orchestrator instead of phased sync
  reposync sync --interleaved -j8`),
	}

	syncGroup := &cobra.Group{ID: "sync", Title: cliutil.ColorYellowBold + "Sync Operations" + cliutil.ColorReset}
	diagGroup := &cobra.Group{ID: "diag", Title: cliutil.ColorYellowBold + "Diagnostics" + cliutil.ColorReset}
	root.AddGroup(syncGroup, diagGroup)

	syncCmd := f.newSyncCmd()
	syncCmd.GroupID = syncGroup.ID
	root.AddCommand(syncCmd)

	versionCmd := f.newVersionCmd()
	versionCmd.GroupID = diagGroup.ID
	root.AddCommand(versionCmd)

	return root
}
