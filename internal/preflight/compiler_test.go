package preflight

import (
	"os"
	"strings"
	"testing"
)

func TestCompilePassThroughSkipsEmptyScripts(t *testing.T) {
	c := NewCompiler("codex")
	compiled, err := c.Compile("task-1", ScriptSet{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(compiled.Mounts) != 0 {
		t.Fatalf("expected no mounts for an empty script set, got %d", len(compiled.Mounts))
	}
	if !strings.Contains(compiled.Prelude, "set -euo pipefail") {
		t.Fatalf("prelude missing strict-mode header: %q", compiled.Prelude)
	}
	if !strings.Contains(compiled.Prelude, "exec \"$@\"") {
		t.Fatalf("prelude must end by exec'ing the agent argv: %q", compiled.Prelude)
	}
}

func TestCompileRuntimePhaseWritesTempFileAndOrder(t *testing.T) {
	c := NewCompiler("codex")
	c.TempDir = t.TempDir()
	set := ScriptSet{
		Scripts: map[Phase]string{
			PhaseSystem:      "echo system",
			PhaseEnvironment: "echo env",
		},
		RuntimeOnly: map[Phase]bool{
			PhaseSystem:      true,
			PhaseEnvironment: true,
		},
	}
	compiled, err := c.Compile("task-2", set)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(compiled.Mounts) != 2 {
		t.Fatalf("expected 2 mounts, got %d", len(compiled.Mounts))
	}
	for _, m := range compiled.Mounts {
		if _, err := os.Stat(m.HostPath); err != nil {
			t.Fatalf("mount temp file missing: %v", err)
		}
	}
	sysIdx := strings.Index(compiled.Prelude, "[preflight] system: running")
	envIdx := strings.Index(compiled.Prelude, "[preflight] environment: running")
	if sysIdx == -1 || envIdx == -1 || sysIdx > envIdx {
		t.Fatalf("expected system phase to precede environment phase in prelude: %q", compiled.Prelude)
	}
	Cleanup(compiled)
	for _, m := range compiled.Mounts {
		if _, err := os.Stat(m.HostPath); !os.IsNotExist(err) {
			t.Fatalf("expected Cleanup to remove %s", m.HostPath)
		}
	}
}

func TestCompileCacheBakedPhaseIsNotMounted(t *testing.T) {
	c := NewCompiler("codex")
	c.TempDir = t.TempDir()
	set := ScriptSet{
		Scripts:     map[Phase]string{PhaseSystem: "echo system"},
		RuntimeOnly: map[Phase]bool{PhaseSystem: false},
	}
	compiled, err := c.Compile("task-3", set)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(compiled.Mounts) != 0 {
		t.Fatalf("cache-baked phase should not produce a runtime mount, got %d", len(compiled.Mounts))
	}
	if strings.Contains(compiled.Prelude, "[preflight] system") {
		t.Fatalf("cache-baked phase should not be re-executed in the runtime prelude")
	}
}

func TestCompileMissingAgentExits127(t *testing.T) {
	c := NewCompiler("nonexistent-agent-cli")
	compiled, err := c.Compile("task-4", ScriptSet{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(compiled.Prelude, "exit 127") {
		t.Fatalf("expected a 127 exit guard for a missing agent CLI: %q", compiled.Prelude)
	}
}

func TestEntrypointCommandWrapsPreludeAndArgv(t *testing.T) {
	cmd := EntrypointCommand("set -e\nexec \"$@\"\n", []string{"codex", "exec", "do the thing"})
	if cmd[0] != "/bin/bash" || cmd[1] != "-lc" {
		t.Fatalf("expected bash -lc wrapper, got %v", cmd[:2])
	}
	if cmd[3] != "--" {
		t.Fatalf("expected -- separator before argv, got %q", cmd[3])
	}
	got := cmd[4:]
	want := []string{"codex", "exec", "do the thing"}
	if len(got) != len(want) {
		t.Fatalf("argv length mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("argv[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
