// Package gitworkspace implements the Git Workspace Manager (C4): clone or
// update a repo, select a base branch, create a per-task branch.
package gitworkspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Failure classes (§4.3).
var (
	ErrRepoUnreachable  = errors.New("gitworkspace: repository unreachable")
	ErrAuthRequired     = errors.New("gitworkspace: authentication required")
	ErrBaseBranchMissing = errors.New("gitworkspace: base branch missing")
	ErrWorktreeConflict = errors.New("gitworkspace: worktree conflict")
)

// Prepared is the result of preparing a task's workspace.
type Prepared struct {
	RepoRoot   string
	BaseBranch string
	Branch     string
}

// execFunc builds the *exec.Cmd for a git/gh invocation; overridable in
// tests.
type execFunc func(ctx context.Context, dir, name string, args ...string) *exec.Cmd

// Manager implements clone/update/branch operations by shelling to `git`
// and, when available, the `gh` hoster CLI — matching the teacher's own
// "prefer the high-level CLI, fall back to plain git" pattern.
type Manager struct {
	// DataDir is the root under which cloned workspaces are materialized:
	// data/<env_id>/tasks/<task_id>/repo.
	DataDir string
	run     execFunc
}

// NewManager creates a Manager rooted at dataDir.
func NewManager(dataDir string) *Manager {
	return &Manager{DataDir: dataDir, run: defaultExecFunc}
}

func defaultExecFunc(ctx context.Context, dir, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd
}

// WithExecFunc overrides the process-spawning seam, for tests.
func (m *Manager) WithExecFunc(fn execFunc) *Manager {
	m.run = fn
	return m
}

// RepoPath is the per-task working tree path for a cloned workspace.
func (m *Manager) RepoPath(envID, taskID string) string {
	return filepath.Join(m.DataDir, envID, "tasks", taskID, "repo")
}

// PrepareCloned ensures a working tree exists for the task, cloning if
// empty, fetching if present, and re-cloning when recreateIfNeeded is set
// and the destination is not a valid working tree.
func (m *Manager) PrepareCloned(ctx context.Context, envID, taskID, remote, baseBranch string, recreateIfNeeded bool) (*Prepared, error) {
	repoPath := m.RepoPath(envID, taskID)

	isValid := m.isWorkingTree(ctx, repoPath)
	if !isValid {
		if _, err := os.Stat(repoPath); err == nil {
			if !recreateIfNeeded {
				return nil, fmt.Errorf("%w: %s exists but is not a valid working tree", ErrWorktreeConflict, repoPath)
			}
			if err := os.RemoveAll(repoPath); err != nil {
				return nil, fmt.Errorf("gitworkspace: remove stale worktree: %w", err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(repoPath), 0755); err != nil {
			return nil, fmt.Errorf("gitworkspace: mkdir: %w", err)
		}
		if err := m.clone(ctx, remote, repoPath); err != nil {
			return nil, err
		}
	} else {
		if err := m.fetch(ctx, repoPath); err != nil {
			return nil, err
		}
	}

	resolvedBase, err := m.resolveBaseBranch(ctx, repoPath, baseBranch)
	if err != nil {
		return nil, err
	}

	branch := fmt.Sprintf("agents-runner-%s", taskID)
	if err := m.createTaskBranch(ctx, repoPath, resolvedBase, branch); err != nil {
		return nil, err
	}

	return &Prepared{RepoRoot: repoPath, BaseBranch: resolvedBase, Branch: branch}, nil
}

// PrepareMounted validates that target is a readable, writable directory;
// it performs no cloning.
func (m *Manager) PrepareMounted(target string) (*Prepared, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("gitworkspace: mounted workspace %q: %w", target, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("gitworkspace: mounted workspace %q is not a directory", target)
	}
	testFile := filepath.Join(target, ".agents-runner-write-test")
	if f, err := os.Create(testFile); err != nil {
		return nil, fmt.Errorf("gitworkspace: mounted workspace %q is not writable: %w", target, err)
	} else {
		_ = f.Close()
		_ = os.Remove(testFile)
	}
	return &Prepared{RepoRoot: target}, nil
}

func (m *Manager) isWorkingTree(ctx context.Context, path string) bool {
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return false
	}
	out, err := m.run(ctx, path, "git", "rev-parse", "--is-inside-work-tree").CombinedOutput()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

func (m *Manager) clone(ctx context.Context, remote, dest string) error {
	if hasGH(ctx, m) {
		if out, err := m.run(ctx, "", "gh", "repo", "clone", remote, dest).CombinedOutput(); err == nil {
			return nil
		} else if isAuthError(string(out)) {
			return fmt.Errorf("%w: %s", ErrAuthRequired, strings.TrimSpace(string(out)))
		}
	}
	out, err := m.run(ctx, "", "git", "clone", remote, dest).CombinedOutput()
	if err != nil {
		if isAuthError(string(out)) {
			return fmt.Errorf("%w: %s", ErrAuthRequired, strings.TrimSpace(string(out)))
		}
		return fmt.Errorf("%w: %s", ErrRepoUnreachable, strings.TrimSpace(string(out)))
	}
	return nil
}

func (m *Manager) fetch(ctx context.Context, repoPath string) error {
	out, err := m.run(ctx, repoPath, "git", "fetch", "--all", "--prune").CombinedOutput()
	if err != nil {
		if isAuthError(string(out)) {
			return fmt.Errorf("%w: %s", ErrAuthRequired, strings.TrimSpace(string(out)))
		}
		return fmt.Errorf("%w: %s", ErrRepoUnreachable, strings.TrimSpace(string(out)))
	}
	return nil
}

func (m *Manager) resolveBaseBranch(ctx context.Context, repoPath, baseBranch string) (string, error) {
	if baseBranch == "" {
		out, err := m.run(ctx, repoPath, "git", "symbolic-ref", "refs/remotes/origin/HEAD").CombinedOutput()
		if err != nil {
			return "", fmt.Errorf("%w: could not determine remote default branch", ErrBaseBranchMissing)
		}
		ref := strings.TrimSpace(string(out))
		baseBranch = strings.TrimPrefix(ref, "refs/remotes/origin/")
	}

	if out, err := m.run(ctx, repoPath, "git", "rev-parse", "--verify", "origin/"+baseBranch).CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w: origin/%s: %s", ErrBaseBranchMissing, baseBranch, strings.TrimSpace(string(out)))
	}
	return baseBranch, nil
}

func (m *Manager) createTaskBranch(ctx context.Context, repoPath, baseBranch, branch string) error {
	if out, err := m.run(ctx, repoPath, "git", "checkout", "-B", branch, "origin/"+baseBranch).CombinedOutput(); err != nil {
		return fmt.Errorf("%w: creating branch %s: %s", ErrWorktreeConflict, branch, strings.TrimSpace(string(out)))
	}
	return nil
}

func hasGH(ctx context.Context, m *Manager) bool {
	_, err := exec.LookPath("gh")
	return err == nil
}

func isAuthError(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range []string{"authentication failed", "permission denied", "could not read username", "403", "401"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
