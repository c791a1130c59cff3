package gemini

import (
	"testing"

	"github.com/midoriai/agents-runner/internal/agent"
)

func TestBuildNonInteractiveArgvUsesPromptFlag(t *testing.T) {
	p := New()
	argv := p.BuildNonInteractiveArgv("fix it", nil, agent.BuildContext{})
	if argv[len(argv)-2] != "--prompt" {
		t.Fatalf("expected --prompt before the prompt, got %v", argv)
	}
}

func TestBuildInteractiveCommandPartsStripsYoloAndPrompt(t *testing.T) {
	p := New()
	argv := p.BuildInteractiveCommandParts([]string{"--yolo", "--prompt", "ignored"}, nil, "", false)
	for _, bad := range []string{"--yolo", "--prompt", "ignored"} {
		for _, got := range argv {
			if got == bad {
				t.Fatalf("expected %q stripped, got %v", bad, argv)
			}
		}
	}
}
