// Package workspace resolves and safely validates a host directory to
// mount into a task container (C3), following the same
// validator-struct/ValidationResult/FormatViolationError shape as the
// monorepo package-scope validator it is styled on.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// projectMarkers are the files/dirs that signal the root of a project.
var projectMarkers = []string{".git", "pyproject.toml"}

// systemDirs are always-unsafe mount roots and their descendants.
var systemDirs = []string{"/etc", "/var", "/usr", "/opt", "/srv", "/root", "/boot", "/sys", "/proc"}

// MaxMountDepth is the maximum relative depth (in non-"." components)
// between the candidate mount root and the user-requested path.
const MaxMountDepth = 3

// Resolution is the output of Resolve: a safe mount root and the
// corresponding container working directory.
type Resolution struct {
	MountRoot    string
	ContainerCWD string
}

// UnsafeMountError signals that a candidate mount root failed a safety
// check, identifying which boundary fired.
type UnsafeMountError struct {
	Candidate string
	Reason    string
}

func (e *UnsafeMountError) Error() string {
	return fmt.Sprintf("unsafe mount: %s (%s)", e.Candidate, e.Reason)
}

// Resolver resolves and validates host paths for mounting (C3).
type Resolver struct {
	// HomeDir overrides the resolved user home directory; empty means use
	// os.UserHomeDir().
	HomeDir string
	// MountContainerRoot is the container path prefix mount roots are
	// rebased under (M in §4.2); defaults to "/workspace".
	MountContainerRoot string
}

// NewResolver creates a Resolver with the given container mount root.
func NewResolver(mountContainerRoot string) *Resolver {
	if mountContainerRoot == "" {
		mountContainerRoot = "/workspace"
	}
	return &Resolver{MountContainerRoot: mountContainerRoot}
}

// Resolve implements the algorithm in §4.2: expand ~, resolve symlinks via
// realpath, walk parent-ward while a project marker is present in the
// parent, apply the safety check to the candidate (not to the raw input),
// and compute the container working directory.
func (r *Resolver) Resolve(hostPath string) (*Resolution, error) {
	expanded, err := r.expandHome(hostPath)
	if err != nil {
		return nil, err
	}

	real, err := filepath.EvalSymlinks(expanded)
	if err != nil {
		return nil, fmt.Errorf("workspace resolver: resolve %q: %w", hostPath, err)
	}
	real = filepath.Clean(real)

	candidate := r.walkToProjectRoot(real)

	if err := r.checkSafe(candidate, real); err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(candidate, real)
	if err != nil {
		return nil, fmt.Errorf("workspace resolver: relative path: %w", err)
	}
	containerCWD := r.MountContainerRoot
	if rel != "." {
		containerCWD = filepath.Join(r.MountContainerRoot, rel)
	}

	return &Resolution{MountRoot: candidate, ContainerCWD: containerCWD}, nil
}

// expandHome expands a leading "~" to the user's home directory.
func (r *Resolver) expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home := r.HomeDir
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("workspace resolver: resolve home dir: %w", err)
		}
	}
	if p == "~" {
		return home, nil
	}
	return filepath.Join(home, p[2:]), nil
}

// walkToProjectRoot walks parent-ward from p while the parent contains a
// project marker, stopping at the first parent without one or at the
// filesystem root.
func (r *Resolver) walkToProjectRoot(p string) string {
	cursor := p
	for {
		parent := filepath.Dir(cursor)
		if parent == cursor {
			return cursor // reached filesystem root
		}
		if !hasProjectMarker(parent) {
			return cursor
		}
		cursor = parent
	}
}

func hasProjectMarker(dir string) bool {
	for _, marker := range projectMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// checkSafe applies the §4.2 safety check to the candidate mount root.
func (r *Resolver) checkSafe(candidate, requested string) error {
	home := r.HomeDir
	if home == "" {
		home, _ = os.UserHomeDir()
	}

	if home != "" && pathEquals(candidate, home) {
		return &UnsafeMountError{Candidate: candidate, Reason: "candidate equals the user's home directory"}
	}
	if pathEquals(candidate, "/") {
		return &UnsafeMountError{Candidate: candidate, Reason: "candidate equals the filesystem root"}
	}
	for _, sysDir := range systemDirs {
		if pathEquals(candidate, sysDir) || isDescendant(candidate, sysDir) {
			return &UnsafeMountError{Candidate: candidate, Reason: fmt.Sprintf("candidate is %s or a descendant of it", sysDir)}
		}
	}

	depth, err := relDepth(candidate, requested)
	if err != nil {
		return fmt.Errorf("workspace resolver: compute depth: %w", err)
	}
	if depth > MaxMountDepth {
		return &UnsafeMountError{Candidate: candidate, Reason: fmt.Sprintf("relative depth %d exceeds max %d", depth, MaxMountDepth)}
	}

	return nil
}

// pathEquals treats same-file paths (e.g. a symlink cycle) as equal.
func pathEquals(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}

func isDescendant(path, ancestor string) bool {
	ancestor = filepath.Clean(ancestor)
	path = filepath.Clean(path)
	rel, err := filepath.Rel(ancestor, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}

// relDepth counts non-"." path components between root and target.
func relDepth(root, target string) (int, error) {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return 0, err
	}
	if rel == "." {
		return 0, nil
	}
	parts := strings.Split(rel, string(filepath.Separator))
	depth := 0
	for _, part := range parts {
		if part != "." && part != "" {
			depth++
		}
	}
	return depth, nil
}
