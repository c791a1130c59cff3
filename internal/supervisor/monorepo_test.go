package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/midoriai/agents-runner/internal/taskmodel"
)

func writePnpmWorkspace(t *testing.T, root string, packages ...string) {
	t.Helper()
	content := "packages:\n"
	for _, pkg := range packages {
		content += "  - '" + pkg + "'\n"
	}
	if err := os.WriteFile(filepath.Join(root, "pnpm-workspace.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestResolvePackagePathNonPnpmFallsBackToLiteral(t *testing.T) {
	root := t.TempDir()
	env := taskmodel.NewEnvironment("env-1", "demo")
	task := &taskmodel.Task{PackagePath: "services/anything"}

	got, err := resolvePackagePath(root, env, task)
	if err != nil {
		t.Fatalf("resolvePackagePath() error = %v", err)
	}
	if got != "services/anything" {
		t.Errorf("resolvePackagePath() = %q, want literal pass-through", got)
	}
}

func TestResolvePackagePathEmptyIsNoScoping(t *testing.T) {
	root := t.TempDir()
	env := taskmodel.NewEnvironment("env-1", "demo")
	task := &taskmodel.Task{}

	got, err := resolvePackagePath(root, env, task)
	if err != nil {
		t.Fatalf("resolvePackagePath() error = %v", err)
	}
	if got != "" {
		t.Errorf("resolvePackagePath() = %q, want empty", got)
	}
}

func TestResolvePackagePathClassifiesAgainstPnpmWorkspace(t *testing.T) {
	root := t.TempDir()
	writePnpmWorkspace(t, root, "packages/*", "apps/*")
	for _, pkg := range []string{"packages/db", "apps/web"} {
		if err := os.MkdirAll(filepath.Join(root, pkg), 0755); err != nil {
			t.Fatal(err)
		}
	}

	env := taskmodel.NewEnvironment("env-1", "demo")
	env.PackageTiers = map[string][]string{"infra": {"packages/db"}}
	task := &taskmodel.Task{PackagePath: "web"}

	got, err := resolvePackagePath(root, env, task)
	if err != nil {
		t.Fatalf("resolvePackagePath() error = %v", err)
	}
	if got != "apps/web" {
		t.Errorf("resolvePackagePath() = %q, want apps/web", got)
	}
}

func TestResolvePackagePathRejectsUnknownPackage(t *testing.T) {
	root := t.TempDir()
	writePnpmWorkspace(t, root, "packages/*")
	if err := os.MkdirAll(filepath.Join(root, "packages/db"), 0755); err != nil {
		t.Fatal(err)
	}

	env := taskmodel.NewEnvironment("env-1", "demo")
	task := &taskmodel.Task{PackagePath: "nonexistent"}

	if _, err := resolvePackagePath(root, env, task); err == nil {
		t.Error("resolvePackagePath() expected error for unresolvable package_path")
	}
}
