// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/archmagece/reposync/pkg/project"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("sync:\n  parallel: 8\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.Parallel != 8 {
		t.Errorf("Parallel = %d, want 8", cfg.Sync.Parallel)
	}
	if cfg.Sync.Strategy != "phased" {
		t.Errorf("Strategy = %q, want default %q", cfg.Sync.Strategy, "phased")
	}
	if !cfg.Sync.Prune {
		t.Errorf("Prune should default true")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("REPO_ALLOW_SHALLOW", "1")
	t.Setenv("REPO_SKIP_SELF_UPDATE", "1")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if !cfg.Sync.AllowShallow {
		t.Errorf("AllowShallow should be true from REPO_ALLOW_SHALLOW=1")
	}
	if !cfg.Sync.SkipSelfUpdate {
		t.Errorf("SkipSelfUpdate should be true from REPO_SKIP_SELF_UPDATE=1")
	}
}

func TestSmartSyncTarget(t *testing.T) {
	t.Run("SYNC_TARGET wins", func(t *testing.T) {
		t.Setenv("SYNC_TARGET", "foo-bar")
		t.Setenv("TARGET_PRODUCT", "")
		if got := SmartSyncTarget(); got != "foo-bar" {
			t.Errorf("SmartSyncTarget() = %q, want %q", got, "foo-bar")
		}
	})

	t.Run("composed from triple", func(t *testing.T) {
		t.Setenv("SYNC_TARGET", "")
		t.Setenv("TARGET_PRODUCT", "sdk")
		t.Setenv("TARGET_RELEASE", "15")
		t.Setenv("TARGET_BUILD_VARIANT", "userdebug")
		want := "sdk-15-userdebug"
		if got := SmartSyncTarget(); got != want {
			t.Errorf("SmartSyncTarget() = %q, want %q", got, want)
		}
	})

	t.Run("empty when unset", func(t *testing.T) {
		t.Setenv("SYNC_TARGET", "")
		t.Setenv("TARGET_PRODUCT", "")
		t.Setenv("TARGET_RELEASE", "")
		t.Setenv("TARGET_BUILD_VARIANT", "")
		if got := SmartSyncTarget(); got != "" {
			t.Errorf("SmartSyncTarget() = %q, want empty", got)
		}
	})
}

func TestProjectSpecsLaysOutObjDirAndGitDir(t *testing.T) {
	cfg := &Config{
		Projects: []ProjectEntry{
			{Name: "core", Path: "src/core", RemoteURL: "https://example.com/core.git", Revision: "main"},
			{Name: "fork-of-core", Path: "src/fork", RemoteURL: "https://example.com/fork.git", Revision: "main", ObjdirKey: "src/core"},
		},
	}
	auth := map[string]project.AuthConfig{"core": {Token: "t"}}

	specs := cfg.ProjectSpecs("/work", "/work/.repo", auth)
	if len(specs) != 2 {
		t.Fatalf("len(specs) = %d, want 2", len(specs))
	}

	if specs[0].RelPath != "/work/src/core" {
		t.Errorf("RelPath = %q, want /work/src/core", specs[0].RelPath)
	}
	if specs[0].Auth.Token != "t" {
		t.Errorf("expected auth token carried through for core")
	}
	if specs[1].Auth.Token != "" {
		t.Errorf("expected no auth token for an entry absent from the auth map")
	}

	if specs[0].ObjDir != specs[1].ObjDir {
		t.Errorf("expected fork-of-core to share core's ObjDir via ObjdirKey, got %q vs %q", specs[0].ObjDir, specs[1].ObjDir)
	}
	if specs[0].GitDir == specs[1].GitDir {
		t.Errorf("expected distinct GitDirs per project path")
	}
}

func TestSSHMultiplexDisabled(t *testing.T) {
	t.Setenv("GIT_SSH", "")
	if SSHMultiplexDisabled() {
		t.Errorf("expected multiplexing enabled when GIT_SSH unset")
	}
	t.Setenv("GIT_SSH", "ssh")
	if !SSHMultiplexDisabled() {
		t.Errorf("expected multiplexing disabled when GIT_SSH set")
	}
}
