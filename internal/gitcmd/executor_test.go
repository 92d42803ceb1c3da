package gitcmd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/archmagece/reposync/internal/testutil"
)

func TestExecutorRunSuccess(t *testing.T) {
	dir := testutil.NewSeededRepo(t)
	e := NewExecutor()

	result, err := e.Run(context.Background(), dir, "status", "--porcelain")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0; stderr=%s", result.ExitCode, result.Stderr)
	}
	if result.Stdout != "" {
		t.Errorf("expected clean status, got %q", result.Stdout)
	}
}

func TestExecutorRunFailure(t *testing.T) {
	dir := t.TempDir()
	e := NewExecutor()

	result, err := e.Run(context.Background(), dir, "status")
	if err != nil {
		t.Fatalf("Run returned transport error: %v", err)
	}
	if result.ExitCode == 0 {
		t.Fatalf("expected non-zero exit code outside a git repository")
	}
}

func TestExecutorRunRejectsDangerousArgs(t *testing.T) {
	e := NewExecutor()
	_, err := e.Run(context.Background(), t.TempDir(), "status; rm -rf /")
	if err == nil {
		t.Fatalf("expected sanitization error for dangerous argument")
	}
}

func TestExecutorRunOutput(t *testing.T) {
	dir := testutil.NewSeededRepo(t)
	e := NewExecutor()

	out, err := e.RunOutput(context.Background(), dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		t.Fatalf("RunOutput: %v", err)
	}
	if out != "main" {
		t.Errorf("RunOutput = %q, want %q", out, "main")
	}
}

func TestExecutorRunOutputFailure(t *testing.T) {
	dir := t.TempDir()
	e := NewExecutor()

	_, err := e.RunOutput(context.Background(), dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err == nil {
		t.Fatalf("expected error outside a git repository")
	}
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		t.Fatalf("expected *GitError, got %T: %v", err, err)
	}
}

func TestExecutorRunLines(t *testing.T) {
	dir := testutil.NewSeededRepo(t)
	e := NewExecutor()

	lines, err := e.RunLines(context.Background(), dir, "ls-files")
	if err != nil {
		t.Fatalf("RunLines: %v", err)
	}
	if len(lines) != 1 || lines[0] != "README.md" {
		t.Errorf("RunLines = %v, want [README.md]", lines)
	}
}

func TestExecutorIsGitRepository(t *testing.T) {
	e := NewExecutor()

	repo := testutil.NewSeededRepo(t)
	if !e.IsGitRepository(context.Background(), repo) {
		t.Errorf("expected IsGitRepository true for seeded repo")
	}

	plain := t.TempDir()
	if e.IsGitRepository(context.Background(), plain) {
		t.Errorf("expected IsGitRepository false for plain directory")
	}
}

func TestExecutorGetGitVersion(t *testing.T) {
	e := NewExecutor()
	version, err := e.GetGitVersion(context.Background())
	if err != nil {
		t.Fatalf("GetGitVersion: %v", err)
	}
	if version == "" {
		t.Errorf("expected non-empty git version")
	}
}

func TestExecutorTimeout(t *testing.T) {
	dir := testutil.NewSeededRepo(t)
	e := NewExecutor(WithTimeout(1 * time.Nanosecond))

	result, _ := e.Run(context.Background(), dir, "status")
	if result.Error == nil {
		t.Skip("git completed faster than the nanosecond timeout on this machine")
	}
	if !strings.Contains(result.Error.Error(), "context deadline exceeded") &&
		result.Error != context.DeadlineExceeded {
		t.Errorf("expected a deadline-exceeded error, got %v", result.Error)
	}
}

func TestExecutorRunWithEnvAugmentsNotReplacesEnvironment(t *testing.T) {
	dir := testutil.NewSeededRepo(t)
	e := NewExecutor(WithEnv([]string{"REPOSYNC_TEST_MARKER=1"}))

	// "git rev-parse --is-inside-work-tree" still needs PATH/HOME to
	// find and configure git; if WithEnv replaced rather than augmented
	// the inherited environment this would fail outside a sandboxed PATH.
	result, err := e.Run(context.Background(), dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		t.Fatalf("Run returned transport error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0; stderr=%s (inherited environment was likely dropped)", result.ExitCode, result.Stderr)
	}
}

func TestGitErrorUnwrapAndIs(t *testing.T) {
	base := &GitError{Command: "git status", ExitCode: 1, Stderr: "boom"}
	if !base.Is(&GitError{}) {
		t.Errorf("expected Is to match any *GitError")
	}
	if base.Unwrap() != nil {
		t.Errorf("expected nil Cause to unwrap to nil")
	}
}
