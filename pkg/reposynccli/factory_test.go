// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package reposynccli

import "testing"

func TestCommandFactory_NewRootCmd_Defaults(t *testing.T) {
	factory := CommandFactory{}

	cmd := factory.NewRootCmd()

	if cmd.Use != "reposync" {
		t.Errorf("Use = %q, want %q", cmd.Use, "reposync")
	}
	if !cmd.SilenceUsage {
		t.Error("SilenceUsage should be true")
	}
	if !cmd.SilenceErrors {
		t.Error("SilenceErrors should be true")
	}
}

func TestCommandFactory_NewRootCmd_CustomUse(t *testing.T) {
	factory := CommandFactory{Use: "gitsync", Short: "Custom description"}

	cmd := factory.NewRootCmd()

	if cmd.Use != "gitsync" {
		t.Errorf("Use = %q, want %q", cmd.Use, "gitsync")
	}
	if cmd.Short != "Custom description" {
		t.Errorf("Short = %q, want %q", cmd.Short, "Custom description")
	}
}

func TestCommandFactory_NewRootCmd_HasSubcommands(t *testing.T) {
	cmd := (CommandFactory{}).NewRootCmd()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"sync", "version"} {
		if !names[want] {
			t.Errorf("expected subcommand %q not found", want)
		}
	}
}

func TestCommandFactory_NewRootCmd_HasGroups(t *testing.T) {
	cmd := (CommandFactory{}).NewRootCmd()

	ids := make(map[string]bool)
	for _, g := range cmd.Groups() {
		ids[g.ID] = true
	}
	for _, want := range []string{"sync", "diag"} {
		if !ids[want] {
			t.Errorf("expected group %q not found", want)
		}
	}
}

func TestCommandFactory_NewVersionCmd_NoVersionSet(t *testing.T) {
	cmd := (CommandFactory{}).newVersionCmd()
	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}
}
