package gitworkspace

import (
	"path/filepath"
	"testing"
)

func TestPrepareMountedRejectsMissingDir(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.PrepareMounted(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestPrepareMountedAcceptsWritableDir(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(t.TempDir())
	prepared, err := m.PrepareMounted(dir)
	if err != nil {
		t.Fatalf("PrepareMounted() error = %v", err)
	}
	if prepared.RepoRoot != dir {
		t.Fatalf("RepoRoot = %q, want %q", prepared.RepoRoot, dir)
	}
}

func TestRepoPathLayout(t *testing.T) {
	m := NewManager("/data")
	got := m.RepoPath("env1", "task1")
	want := filepath.Join("/data", "env1", "tasks", "task1", "repo")
	if got != want {
		t.Fatalf("RepoPath() = %q, want %q", got, want)
	}
}

func TestIsAuthError(t *testing.T) {
	cases := map[string]bool{
		"fatal: Authentication failed for 'https://...'": true,
		"fatal: repository not found":                     false,
		"remote: Permission denied":                        true,
	}
	for msg, want := range cases {
		if got := isAuthError(msg); got != want {
			t.Errorf("isAuthError(%q) = %v, want %v", msg, got, want)
		}
	}
}
