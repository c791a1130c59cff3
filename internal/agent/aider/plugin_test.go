package aider

import (
	"testing"

	"github.com/midoriai/agents-runner/internal/agent"
)

func TestBuildNonInteractiveArgvUsesMessageFlag(t *testing.T) {
	p := New()
	argv := p.BuildNonInteractiveArgv("fix the bug", nil, agent.BuildContext{})
	if argv[len(argv)-2] != "--message" {
		t.Fatalf("expected --message before the prompt, got %v", argv)
	}
}

func TestBuildInteractiveCommandPartsStripsAutoAcceptAndMessage(t *testing.T) {
	p := New()
	argv := p.BuildInteractiveCommandParts([]string{"--yes-always", "--message", "ignored"}, nil, "", false)
	for _, bad := range []string{"--yes-always", "--message", "ignored"} {
		for _, got := range argv {
			if got == bad {
				t.Fatalf("expected %q stripped, got %v", bad, argv)
			}
		}
	}
}
