// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package project

import (
	"context"

	"github.com/archmagece/reposync/internal/gitcmd"
)

// ProjectSpec is the YAML-serializable description of one project row.
// It is the input to building a Project value; parsing a manifest XML
// into a []ProjectSpec is out of scope (§1 Non-goals) so the only
// source this module ships is StaticManifestSource below.
type ProjectSpec struct {
	Name            string     `yaml:"name"`
	RelPath         string     `yaml:"rel_path"`
	ObjDir          string     `yaml:"obj_dir"`
	GitDir          string     `yaml:"git_dir"`
	RemoteURL       string     `yaml:"remote_url"`
	Revision        string     `yaml:"revision"`
	Groups          string     `yaml:"groups"`
	CloneFilter     string     `yaml:"clone_filter"`
	UseGitWorktrees bool       `yaml:"use_git_worktrees"`
	Auth            AuthConfig `yaml:"-"`
}

// StaticManifestSource is a fixed, in-memory stand-in for the manifest
// repository the original tool clones and re-reads on every sync. It
// satisfies the reload contract the orchestrators use to discover newly
// added projects (§4.8 step 5, §4.9 outer loop): Reload always returns
// the same set, since nothing mutates it out of band.
type StaticManifestSource struct {
	specs []ProjectSpec
	exec  *gitcmd.Executor
}

// NewStaticManifestSource builds a source over specs, constructing one
// gitProject per entry against exec (nil selects the default executor).
func NewStaticManifestSource(specs []ProjectSpec, exec *gitcmd.Executor) *StaticManifestSource {
	return &StaticManifestSource{specs: specs, exec: exec}
}

// Projects materializes every spec into a Project.
func (s *StaticManifestSource) Projects() []Project {
	projects := make([]Project, len(s.specs))
	for i, spec := range s.specs {
		projects[i] = NewGitProject(spec, s.exec)
	}
	return projects
}

// Reload implements the orchestrators' ManifestReloader signature.
func (s *StaticManifestSource) Reload(_ context.Context) ([]Project, error) {
	return s.Projects(), nil
}
