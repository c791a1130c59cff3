// Package preflight implements the Preflight Compiler (C5): converts the
// system/desktop/settings/environment scripts into mount-ready temp files
// and a shell prelude.
package preflight

import (
	"fmt"
	"os"
	"strings"
)

// Phase identifies one of the four preflight scripts.
type Phase string

const (
	PhaseSystem      Phase = "system"
	PhaseDesktop     Phase = "desktop"
	PhaseSettings    Phase = "settings"
	PhaseEnvironment Phase = "environment"
)

// phaseOrder is the fixed execution order of enabled runtime phases.
var phaseOrder = []Phase{PhaseSystem, PhaseDesktop, PhaseSettings, PhaseEnvironment}

// ScriptSet is the up-to-four input scripts plus which should run at
// container start versus be baked into a cache layer.
type ScriptSet struct {
	Scripts     map[Phase]string // script body, empty/absent = no-op
	RuntimeOnly map[Phase]bool   // true = execute at runtime (not cache-baked)
}

// Compiled is the Preflight Compiler's output: the shell prelude and the
// ordered list of mounts backing it.
type Compiled struct {
	Prelude string
	Mounts  []CompiledMount
}

// CompiledMount is a temp file to be mounted read-only at a fixed
// container path.
type CompiledMount struct {
	HostPath      string
	ContainerPath string
}

// Compiler builds a Compiled prelude for a task, writing temp files with a
// unique per-task prefix.
type Compiler struct {
	TempDir   string // defaults to os.TempDir() when empty
	AgentCLI  string // the agent binary name verified on $PATH
	GitName   string
	GitEmail  string
}

// NewCompiler creates a Compiler for the named agent CLI.
func NewCompiler(agentCLI string) *Compiler {
	return &Compiler{AgentCLI: agentCLI, GitName: "agents-runner", GitEmail: "agents-runner@localhost"}
}

// Compile writes the runtime-phase scripts of set to per-task temp files
// and composes the shell prelude. taskID namespaces the temp file prefix
// so concurrent tasks never collide; the caller deletes the returned
// mounts' HostPath entries on any exit path.
func (c *Compiler) Compile(taskID string, set ScriptSet) (*Compiled, error) {
	tempDir := c.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	var mounts []CompiledMount
	var sb strings.Builder

	sb.WriteString("set -euo pipefail\n")
	sb.WriteString(fmt.Sprintf("if [ -z \"$(git config --global user.email 2>/dev/null)\" ]; then git config --global user.name %q; git config --global user.email %q; fi\n", c.GitName, c.GitEmail))

	for _, phase := range phaseOrder {
		script := set.Scripts[phase]
		if script == "" {
			continue
		}
		if !set.RuntimeOnly[phase] {
			// Cache-baked phases are expected to already be part of the
			// runtime image; they are not re-executed here.
			continue
		}

		prefix := fmt.Sprintf("agents-runner-%s-%s-", taskID, phase)
		f, err := os.CreateTemp(tempDir, prefix+"*.sh")
		if err != nil {
			return nil, fmt.Errorf("preflight: create temp file for %s: %w", phase, err)
		}
		if _, err := f.WriteString(script); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("preflight: write temp file for %s: %w", phase, err)
		}
		_ = f.Close()

		containerPath := fmt.Sprintf("/tmp/preflight-%s.sh", phase)
		mounts = append(mounts, CompiledMount{HostPath: f.Name(), ContainerPath: containerPath})

		sb.WriteString(fmt.Sprintf("echo '[preflight] %s: running'\n", phase))
		sb.WriteString(fmt.Sprintf("bash %s\n", containerPath))
		sb.WriteString(fmt.Sprintf("echo '[preflight] %s: done'\n", phase))
	}

	sb.WriteString(fmt.Sprintf("if ! command -v %s >/dev/null 2>&1; then echo \"[preflight] agent CLI %s not found on PATH\" >&2; exit 127; fi\n", c.AgentCLI, c.AgentCLI))
	sb.WriteString("exec \"$@\"\n")

	return &Compiled{Prelude: sb.String(), Mounts: mounts}, nil
}

// Cleanup removes the temp files backing a Compiled prelude's mounts.
// Called by the supervisor on any exit path.
func Cleanup(compiled *Compiled) {
	for _, m := range compiled.Mounts {
		_ = os.Remove(m.HostPath)
	}
}

// EntrypointCommand builds the `/bin/bash -lc "<prelude's exec>; exec <argv>"`
// style entrypoint used for non-interactive runs (§4.8 step 5). The
// prelude itself ends in `exec "$@"`, so argv is passed as the trailing
// arguments to bash -c.
func EntrypointCommand(prelude string, argv []string) []string {
	cmd := []string{"/bin/bash", "-lc", prelude, "--"}
	return append(cmd, argv...)
}
