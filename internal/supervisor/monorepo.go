package supervisor

import (
	"fmt"

	"github.com/midoriai/agents-runner/internal/taskmodel"
	"github.com/midoriai/agents-runner/internal/workspace"
)

// packageLabelPrefix is the label prefix the monorepo classifier looks for
// (SPEC_FULL.md supplemented feature #2's "pkg:<name>" labels).
const packageLabelPrefix = "pkg"

// resolvePackagePath narrows a Task's requested package_path against the
// host workspace root. When the root is a pnpm workspace, the path is
// classified via the environment's tiers and validated exactly as a
// GitHub-issue "pkg:" label would be; an unresolvable or cross-domain
// package_path fails the attempt instead of silently mounting the wrong
// directory. Non-pnpm workspaces fall back to the literal path, since
// there is no manifest to validate it against.
func resolvePackagePath(hostRoot string, env *taskmodel.Environment, t *taskmodel.Task) (string, error) {
	if t.PackagePath == "" {
		return "", nil
	}
	if !workspace.HasPnpmWorkspace(hostRoot) {
		return t.PackagePath, nil
	}

	labels := []string{fmt.Sprintf("%s:%s", packageLabelPrefix, t.PackagePath)}
	classifications, err := workspace.ClassifyPackageLabels(labels, packageLabelPrefix, env.PackageTiers, hostRoot)
	if err != nil {
		return "", fmt.Errorf("supervisor: classify package_path %q: %w", t.PackagePath, err)
	}
	resolved, err := workspace.ValidatePackageLabels(classifications)
	if err != nil {
		return "", fmt.Errorf("supervisor: validate package_path %q: %w", t.PackagePath, err)
	}
	return resolved, nil
}
