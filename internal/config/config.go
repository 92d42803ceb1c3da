// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package config loads the sync engine's YAML configuration file and
// applies environment variable overrides on top of it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/archmagece/reposync/pkg/project"
	"gopkg.in/yaml.v3"
)

// GitHubConfig holds GitHub forge credentials.
type GitHubConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// GitLabConfig holds GitLab forge credentials.
type GitLabConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// GiteaConfig holds Gitea forge credentials.
type GiteaConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// SyncConfig holds default concurrency and strategy knobs for a sync run.
// These are overridden per invocation by the matching CLI flags.
type SyncConfig struct {
	Parallel      int    `yaml:"parallel"`
	JobsNetwork   int    `yaml:"jobs_network"`
	JobsCheckout  int    `yaml:"jobs_checkout"`
	Strategy      string `yaml:"strategy"` // "phased" or "interleaved"
	AllowShallow  bool   `yaml:"allow_shallow"`
	AutoGC        bool   `yaml:"auto_gc"`
	Prune         bool   `yaml:"prune"`
	Tags          bool   `yaml:"tags"`
	CloneBundle   bool   `yaml:"clone_bundle"`
	RetryFetches  int    `yaml:"retry_fetches"`
	SkipSelfUpdate bool  `yaml:"skip_self_update"`

	// Smart-sync manifest location (§6.2 -s/-t), a forge repository
	// standing in for the original tool's bespoke manifest server.
	ManifestOwner string `yaml:"manifest_owner"`
	ManifestRepo  string `yaml:"manifest_repo"`
	ManifestPath  string `yaml:"manifest_path"`
}

// ProjectEntry is a single project's manifest row, as consumed by
// pkg/project.StaticManifestSource.
type ProjectEntry struct {
	Name       string `yaml:"name"`
	Path       string `yaml:"path"`
	RemoteURL  string `yaml:"remote_url"`
	Revision   string `yaml:"revision"`
	Groups     string `yaml:"groups"`
	ObjdirKey  string `yaml:"objdir_key"`
}

// Config is the full, top-level shape of the sync engine's config file.
type Config struct {
	GitHub   GitHubConfig   `yaml:"github"`
	GitLab   GitLabConfig   `yaml:"gitlab"`
	Gitea    GiteaConfig    `yaml:"gitea"`
	Sync     SyncConfig     `yaml:"sync"`
	Projects []ProjectEntry `yaml:"projects"`
}

// DefaultConfig returns a Config populated with the sync engine's
// documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			Parallel:     4,
			// JobsNetwork and JobsCheckout are parsed but not read by the
			// sync command, which derives both counts from Parallel and
			// the --jobs* flags.
			JobsNetwork:  0,
			JobsCheckout: 0,
			Strategy:     "phased",
			Prune:        true,
			Tags:         false,
			AutoGC:       false,
			RetryFetches: 0,
		},
	}
}

// Load reads and parses a YAML config file at path, then applies any
// recognized environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadDefault returns the default configuration with environment
// overrides applied, for callers that have no config file.
func LoadDefault() *Config {
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// applyEnvOverrides mutates cfg in place according to the sync engine's
// documented environment contract.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPO_ALLOW_SHALLOW"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sync.AllowShallow = b
		}
	}
	if v := os.Getenv("REPO_SKIP_SELF_UPDATE"); v == "1" {
		cfg.Sync.SkipSelfUpdate = true
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" && cfg.GitHub.Token == "" {
		cfg.GitHub.Token = v
	}
	if v := os.Getenv("GITLAB_TOKEN"); v != "" && cfg.GitLab.Token == "" {
		cfg.GitLab.Token = v
	}
	if v := os.Getenv("GITEA_TOKEN"); v != "" && cfg.Gitea.Token == "" {
		cfg.Gitea.Token = v
	}
}

// ProjectSpecs resolves every configured ProjectEntry into a
// project.ProjectSpec, laying out object stores under
// <reposRoot>/project-objects/<objdir key>.git, git directories under
// <reposRoot>/projects/<path>.git and working trees under
// <workRoot>/<path>, the .repo-style split the sync engine assumes
// (§3, GitDir vs ObjDir). auth supplies the per-project credentials
// keyed by project name; an entry absent from auth gets a zero
// AuthConfig and falls back to the system's own credential helper.
func (c *Config) ProjectSpecs(workRoot, reposRoot string, auth map[string]project.AuthConfig) []project.ProjectSpec {
	specs := make([]project.ProjectSpec, 0, len(c.Projects))
	for _, e := range c.Projects {
		key := e.ObjdirKey
		if key == "" {
			key = e.Path
		}
		specs = append(specs, project.ProjectSpec{
			Name:        e.Name,
			RelPath:     filepath.Join(workRoot, e.Path),
			ObjDir:      filepath.Join(reposRoot, "project-objects", key) + ".git",
			GitDir:      filepath.Join(reposRoot, "projects", e.Path) + ".git",
			RemoteURL:   e.RemoteURL,
			Revision:    e.Revision,
			Groups:      e.Groups,
			UseGitWorktrees: false,
			Auth:        auth[e.Name],
		})
	}
	return specs
}

// SmartSyncTarget composes the smart-sync target string from either
// SYNC_TARGET directly, or the TARGET_PRODUCT/TARGET_RELEASE/
// TARGET_BUILD_VARIANT triple, matching the documented environment
// contract. Returns "" when neither is set.
func SmartSyncTarget() string {
	if v := os.Getenv("SYNC_TARGET"); v != "" {
		return v
	}
	product := os.Getenv("TARGET_PRODUCT")
	release := os.Getenv("TARGET_RELEASE")
	variant := os.Getenv("TARGET_BUILD_VARIANT")
	if product == "" && release == "" && variant == "" {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", product, release, variant)
}

// SSHMultiplexDisabled reports whether GIT_SSH is set, which per the
// documented environment contract disables SSH control-master
// multiplexing in favor of the user's own ssh wrapper.
func SSHMultiplexDisabled() bool {
	return os.Getenv("GIT_SSH") != ""
}
