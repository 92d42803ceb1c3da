// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package smartsync implements the two pre-sync preparation hooks
// spec.md treats as opaque collaborators: resolving a manifest from a
// forge-hosted manifest server (§6.2 -s/-t) and resolving pinned
// revisions from a superproject before the fetch phase.
package smartsync

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"code.gitea.io/sdk/gitea"
	"github.com/google/go-github/v66/github"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/xanzy/go-gitlab"
	"golang.org/x/oauth2"
)

// ManifestServerClient resolves a smart-sync/smart-tag target into the
// raw bytes of the manifest file, returned unparsed; the sync command
// atomically writes them to smart_sync_override.xml (§6.3) and loads
// that file as a YAML project config.
type ManifestServerClient interface {
	FetchManifest(ctx context.Context, target string) ([]byte, error)
}

// ManifestRef identifies the forge repository and path that stands in
// for the original tool's bespoke XML-RPC manifest server.
type ManifestRef struct {
	Owner string
	Repo  string
	Path  string // file path within the repo, e.g. "manifests/default.yaml"
	Ref   string // branch/tag/commit; "" means the repo's default branch
}

// retryableHTTPClient builds a retrying *http.Client wrapping an
// oauth2-authenticated transport. Only the GitHub manifest-server
// backend uses it; the GitLab and Gitea backends use their SDKs' own
// HTTP clients.
func retryableHTTPClient(base *http.Client) *http.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.Logger = nil
	return rc.StandardClient()
}

// --- GitHub ---

// GitHubManifestServer resolves manifests stored in a GitHub repository.
type GitHubManifestServer struct {
	client *github.Client
	ref    ManifestRef
}

// NewGitHubManifestServer creates a client authenticated with token (may
// be empty for public repositories) against the given manifest location.
func NewGitHubManifestServer(token string, ref ManifestRef) *GitHubManifestServer {
	var base *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		base = oauth2.NewClient(context.Background(), ts)
	} else {
		base = &http.Client{}
	}
	return &GitHubManifestServer{client: github.NewClient(retryableHTTPClient(base)), ref: ref}
}

// FetchManifest implements ManifestServerClient. target is encoded into
// the ref when non-empty, so a smart-sync target can pin a specific
// branch or tag of the manifest repository.
func (s *GitHubManifestServer) FetchManifest(ctx context.Context, target string) ([]byte, error) {
	ref := s.ref.Ref
	if target != "" {
		ref = target
	}
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	content, _, _, err := s.client.Repositories.GetContents(ctx, s.ref.Owner, s.ref.Repo, s.ref.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest from github %s/%s@%s: %w", s.ref.Owner, s.ref.Repo, ref, err)
	}
	if content == nil {
		return nil, fmt.Errorf("manifest path %q is not a file", s.ref.Path)
	}
	decoded, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode manifest content: %w", err)
	}
	return []byte(decoded), nil
}

// --- GitLab ---

// GitLabManifestServer resolves manifests stored in a GitLab project.
type GitLabManifestServer struct {
	client *gitlab.Client
	ref    ManifestRef
}

// NewGitLabManifestServer creates a client against baseURL (empty means
// gitlab.com) authenticated with token.
func NewGitLabManifestServer(token, baseURL string, ref ManifestRef) (*GitLabManifestServer, error) {
	var opts []gitlab.ClientOptionFunc
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gitlab client: %w", err)
	}
	return &GitLabManifestServer{client: client, ref: ref}, nil
}

// FetchManifest implements ManifestServerClient.
func (s *GitLabManifestServer) FetchManifest(ctx context.Context, target string) ([]byte, error) {
	ref := s.ref.Ref
	if target != "" {
		ref = target
	}
	if ref == "" {
		ref = "HEAD"
	}
	projectID := s.ref.Owner + "/" + s.ref.Repo
	file, _, err := s.client.RepositoryFiles.GetRawFile(projectID, s.ref.Path, &gitlab.GetRawFileOptions{Ref: gitlab.Ptr(ref)}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch manifest from gitlab %s@%s: %w", projectID, ref, err)
	}
	return file, nil
}

// --- Gitea ---

// GiteaManifestServer resolves manifests stored in a Gitea repository.
type GiteaManifestServer struct {
	client *gitea.Client
	ref    ManifestRef
}

// NewGiteaManifestServer creates a client against baseURL authenticated
// with token.
func NewGiteaManifestServer(token, baseURL string, ref ManifestRef) (*GiteaManifestServer, error) {
	client, err := gitea.NewClient(baseURL, gitea.SetToken(token))
	if err != nil {
		return nil, fmt.Errorf("create gitea client: %w", err)
	}
	return &GiteaManifestServer{client: client, ref: ref}, nil
}

// FetchManifest implements ManifestServerClient.
func (s *GiteaManifestServer) FetchManifest(ctx context.Context, target string) ([]byte, error) {
	ref := s.ref.Ref
	if target != "" {
		ref = target
	}
	data, _, err := s.client.GetContents(s.ref.Owner, s.ref.Repo, ref, s.ref.Path)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest from gitea %s/%s@%s: %w", s.ref.Owner, s.ref.Repo, ref, err)
	}
	if data.Content == nil {
		return nil, fmt.Errorf("manifest path %q is not a file", s.ref.Path)
	}
	decoded, err := base64.StdEncoding.DecodeString(*data.Content)
	if err != nil {
		return nil, fmt.Errorf("decode manifest content: %w", err)
	}
	return decoded, nil
}
